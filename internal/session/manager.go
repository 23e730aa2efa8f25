package session

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"memo-service/internal/domain"
)

// Config tunes session lifetime and sweeping.
type Config struct {
	TTL             time.Duration // zero disables expiry
	CleanupInterval time.Duration
	Logger          *logrus.Logger
}

// Manager is the single authority mapping session tokens to user ids.
type Manager struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func NewManager(store Store, cfg Config) *Manager {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Manager{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Create issues a new session for userID. Existing sessions of the user stay valid.
func (m *Manager) Create(ctx context.Context, userID int64) (Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return Session{}, err
	}

	now := m.now().UTC()
	s := Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
	}
	if m.cfg.TTL > 0 {
		s.ExpiresAt = now.Add(m.cfg.TTL)
	}

	if err := m.store.Create(ctx, s); err != nil {
		return Session{}, fmt.Errorf("create session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return s, nil
}

// Resolve returns the user bound to token. Unknown, revoked and expired tokens
// all yield domain.ErrUnauthenticated.
func (m *Manager) Resolve(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, domain.ErrUnauthenticated
	}

	s, err := m.store.Get(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("resolve session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	if s == nil {
		return 0, domain.ErrUnauthenticated
	}
	if s.Expired(m.now()) {
		if err := m.store.Delete(ctx, token); err != nil {
			m.cfg.Logger.WithError(err).Warn("delete expired session")
		}
		return 0, domain.ErrUnauthenticated
	}
	return s.UserID, nil
}

// Destroy revokes token. Destroying an unknown token is not an error.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("destroy session: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}

// Run purges expired sessions until ctx is done. Stores that expire entries on
// their own make it return immediately.
func (m *Manager) Run(ctx context.Context) {
	sw, ok := m.store.(sweeper)
	if !ok || m.cfg.TTL <= 0 {
		return
	}

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx, sw)
		}
	}
}

func (m *Manager) sweep(ctx context.Context, sw sweeper) {
	removed, err := sw.DeleteExpired(ctx, m.now())
	if err != nil {
		m.cfg.Logger.WithError(err).Warn("sweep expired sessions")
		return
	}
	if removed > 0 {
		m.cfg.Logger.WithField("removed", removed).Debug("expired sessions swept")
	}
}
