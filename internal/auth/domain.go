package auth

import "time"

// User represents an authenticated user account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	ChangedAt    time.Time
}
