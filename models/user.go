package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account that requests can be attributed to in the
// audit trail. Attribution is optional; anonymous requests are logged
// without a user ID.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize password hash
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
