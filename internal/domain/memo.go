package domain

import "time"

// Memo is a short note owned by exactly one user.
type Memo struct {
	ID        int64
	UserID    int64
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Field bounds shared by validation and the schema.
const (
	MaxUsernameLength = 100
	MaxEmailLength    = 100
	MaxPasswordBytes  = 72
	MaxTitleLength    = 100
	MaxContentLength  = 1000
)
