package domain

import "time"

// User is an account that owns external sessions. Passwords are stored as
// bcrypt hashes; the API key is optional and can be rotated or revoked.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	APIKey       *string
	IsAdmin      bool
	Preferences  map[string]any
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}
