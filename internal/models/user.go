package models

import "time"

// DirectoryUser is the identity record owned by the external user
// directory. This service never persists it; it is resolved per request
// through the directory contract.
type DirectoryUser struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Directory user statuses.
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)
