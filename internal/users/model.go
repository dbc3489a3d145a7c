package users

import (
	"time"

	"github.com/google/uuid"
)

// User is an account known to the authentication provider. Plan and fitness
// data live in profiles.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
