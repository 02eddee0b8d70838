package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueItem is one durably persisted unit of work representing a received
// webhook event awaiting processing. Created by the ingress gateway, mutated
// exclusively by the dispatch worker, never deleted by this subsystem outside
// the retention sweep.
type QueueItem struct {
	ID                  uuid.UUID       `json:"id"`
	Source              string          `json:"source"`
	Event               string          `json:"event"`
	Payload             json.RawMessage `json:"payload"`
	Status              Status          `json:"status"`
	RetryCount          int             `json:"retry_count"`
	MaxRetries          int             `json:"max_retries"`
	ErrorMessage        *string         `json:"error_message,omitempty"`
	Result              json.RawMessage `json:"result,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	ProcessingStartedAt *time.Time      `json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time      `json:"processed_at,omitempty"`
}

// ProcessingLog correlates one worker claim of a queue item with its outcome.
type ProcessingLog struct {
	ID           uuid.UUID  `json:"id"`
	QueueID      uuid.UUID  `json:"queue_id"`
	Source       string     `json:"source"`
	Event        string     `json:"event"`
	Status       Status     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ElapsedMS    int64      `json:"elapsed_ms"`
}
