package domain

import "time"

// User represents an account holder. Users are never updated or removed.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
