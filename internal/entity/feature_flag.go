package entity

import "time"

// FeatureFlag is a global boolean switch. Absent flags resolve to true — the
// fail-open default is a deliberate, named policy, see usecase/flags.
type FeatureFlag struct {
	Key         string    `json:"flag_key"`
	Value       bool      `json:"flag_value"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
	UpdatedBy   string    `json:"updated_by"`
}
