package response

import "encoding/json"

type Error struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Ack -.
type Ack struct {
	Status string `json:"status"`
}

// Heartbeat reports one session's current role in the multi-tab arbitration.
type Heartbeat struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

// Queued is the 202 body returned to webhook producers.
type Queued struct {
	Status           string `json:"status"`
	QueueID          string `json:"queue_id"`
	Source           string `json:"source"`
	Event            string `json:"event"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
}

type QueueItem struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Event       string          `json:"event"`
	Status      string          `json:"status"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	Error       string          `json:"error,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   string          `json:"created_at"`
	ProcessedAt string          `json:"processed_at,omitempty"`
}

type Flag struct {
	Key       string `json:"key"`
	Enabled   bool   `json:"enabled"`
	UpdatedBy string `json:"updated_by,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type Attempt struct {
	ID         string `json:"id"`
	SimuladoID string `json:"simulado_id"`
	State      string `json:"state"`
	Proctored  bool   `json:"proctored"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// ExitIntent is returned when a navigation away from a running attempt is
// withheld pending confirmation.
type ExitIntent struct {
	IntentID string `json:"intent_id,omitempty"`
	Target   string `json:"target"`
	Blocked  bool   `json:"blocked"`
}
