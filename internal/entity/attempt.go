package entity

import (
	"time"

	"github.com/google/uuid"
)

// AttemptState is the lifecycle state of an exam attempt. Terminal states are
// final; there is no transition out of them.
type AttemptState string

const (
	AttemptNotStarted   AttemptState = "NOT_STARTED"
	AttemptRunning      AttemptState = "RUNNING"
	AttemptFinished     AttemptState = "FINISHED"
	AttemptAbandoned    AttemptState = "ABANDONED"
	AttemptDisqualified AttemptState = "DISQUALIFIED"
	AttemptTimedOut     AttemptState = "TIMED_OUT"
)

// Terminal -.
func (s AttemptState) Terminal() bool {
	switch s {
	case AttemptFinished, AttemptAbandoned, AttemptDisqualified, AttemptTimedOut:
		return true
	}

	return false
}

// Attempt is one timed run of a simulado (proctored) or treino (practice) exam.
type Attempt struct {
	ID         uuid.UUID     `json:"id"`
	SimuladoID uuid.UUID     `json:"simulado_id"`
	State      AttemptState  `json:"state"`
	Proctored  bool          `json:"proctored"`
	Duration   time.Duration `json:"duration"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}
