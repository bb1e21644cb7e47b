package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated user account.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EventType names an auth state change.
type EventType string

const (
	EventSignedIn  EventType = "signed_in"
	EventSignedOut EventType = "signed_out"
	EventSignedUp  EventType = "signed_up"
)

// Event is published on every auth state change.
type Event struct {
	Type   EventType `json:"type"`
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role,omitempty"`
	At     time.Time `json:"at"`
}
