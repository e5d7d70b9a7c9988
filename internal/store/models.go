package store

import (
	"time"

	"github.com/google/uuid"
)

// User is an account that owns habits. Subject is set for identities
// provisioned from an OIDC issuer.
type User struct {
	ID          uuid.UUID
	Subject     *string
	Email       string
	Name        string
	CreatedAt   time.Time
	LastLoginAt *time.Time
}

// HabitFilter narrows habit listings.
type HabitFilter struct {
	Frequency string
}
