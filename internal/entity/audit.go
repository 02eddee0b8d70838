package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditCategory distinguishes proctored exams from practice runs and purely
// system-originated entries.
type AuditCategory string

const (
	CategorySimulado AuditCategory = "SIMULADO"
	CategoryTreino   AuditCategory = "TREINO"
	CategorySystem   AuditCategory = "SYSTEM"
)

// AuditAction is an enumerated lifecycle action.
type AuditAction string

const (
	ActionStart        AuditAction = "START"
	ActionFinish       AuditAction = "FINISH"
	ActionInvalidate   AuditAction = "INVALIDATE"
	ActionDisqualify   AuditAction = "DISQUALIFY"
	ActionTimeout      AuditAction = "TIMEOUT"
	ActionError        AuditAction = "ERROR"
	ActionTabSwitch    AuditAction = "TAB_SWITCH"
	ActionCameraDenied AuditAction = "CAMERA_DENIED"
	ActionResume       AuditAction = "RESUME"
	ActionExit         AuditAction = "EXIT"
	ActionConsent      AuditAction = "CONSENT"
	ActionSnapshot     AuditAction = "SNAPSHOT"
)

// AuditLevel -.
type AuditLevel string

const (
	LevelInfo  AuditLevel = "info"
	LevelWarn  AuditLevel = "warn"
	LevelError AuditLevel = "error"
)

// AuditEntry is an append-only record of an exam lifecycle event. Entries are
// never mutated or deleted by the application.
type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	Category   AuditCategory  `json:"category"`
	Action     AuditAction    `json:"action"`
	Level      AuditLevel     `json:"level"`
	SimuladoID *uuid.UUID     `json:"simulado_id,omitempty"`
	AttemptID  *uuid.UUID     `json:"attempt_id,omitempty"`
	SessionID  string         `json:"session_id"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
