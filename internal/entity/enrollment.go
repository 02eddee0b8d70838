package entity

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus -.
type EnrollmentStatus string

const (
	EnrollmentActive  EnrollmentStatus = "active"
	EnrollmentRevoked EnrollmentStatus = "revoked"
)

// Enrollment is a granted-access record written by the purchase handlers.
type Enrollment struct {
	ID        uuid.UUID        `json:"id"`
	Email     string           `json:"email"`
	ProductID string           `json:"product_id"`
	Status    EnrollmentStatus `json:"status"`
	GrantedAt time.Time        `json:"granted_at"`
	RevokedAt *time.Time       `json:"revoked_at,omitempty"`
}
