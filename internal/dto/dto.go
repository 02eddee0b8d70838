package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// InboundEvent is a normalized webhook call, produced by the recognizer chain
// before anything is persisted.
type InboundEvent struct {
	Source  string
	Event   string
	Payload json.RawMessage
}

// Job is what the dispatch worker hands to the orchestrator for one claimed
// queue item.
type Job struct {
	QueueID uuid.UUID
	LogID   uuid.UUID
	Source  string
	Event   string
	Payload json.RawMessage
}

// Notification is an outbound message produced by a handler side effect.
type Notification struct {
	Type    string          `json:"type"`
	Email   string          `json:"email"`
	QueueID uuid.UUID       `json:"queue_id"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ItemResult is the per-item outcome of one worker run.
type ItemResult struct {
	ID               uuid.UUID `json:"id"`
	Status           string    `json:"status"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	Error            string    `json:"error,omitempty"`
	RetryCount       int       `json:"retry_count,omitempty"`
}

// SweepResult aggregates a worker invocation: every claimed item's individual
// outcome plus total elapsed time, regardless of individual failures.
type SweepResult struct {
	Status      string       `json:"status"`
	Processed   int          `json:"processed"`
	Results     []ItemResult `json:"results"`
	TotalTimeMS int64        `json:"total_time_ms"`
}
