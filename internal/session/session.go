package session

import (
	"context"
	"time"
)

// Session binds an opaque token to a user id.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"` // zero means no expiry
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store keeps sessions keyed by token. Get returns (nil, nil) for unknown tokens.
// Implementations must be safe for concurrent use.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// sweeper is implemented by stores that need expired sessions purged explicitly.
type sweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
