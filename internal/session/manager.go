// Package session manages logged-in console operators. A session is created
// by login, refreshed by activity and destroyed by logout or expiry.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ashureev/ops-console/internal/clock"
	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/store"
)

// Session is an operator session.
type Session = domain.OperatorSession

var (
	// ErrNotFound is returned for unknown or expired sessions.
	ErrNotFound = errors.New("session: not found")
	// ErrInvalidAccessKey is returned when login presents the wrong key.
	ErrInvalidAccessKey = errors.New("session: invalid access key")
	// ErrMissingEmail is returned when login has no email.
	ErrMissingEmail = errors.New("session: email is required")
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// Manager issues and resolves operator sessions.
type Manager struct {
	repo      store.Repository
	accessKey string
	ttl       time.Duration
	clock     clock.Clock
	logger    *slog.Logger
}

// NewManager returns a Manager storing sessions in repo. An empty accessKey
// accepts every login.
func NewManager(repo store.Repository, accessKey string, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		repo:      repo,
		accessKey: accessKey,
		ttl:       ttl,
		clock:     clock.Real(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the lifetime granted at login and on each touch.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Login checks accessKey and creates a session.
func (m *Manager) Login(ctx context.Context, email, name, accessKey string) (*Session, error) {
	if m.accessKey != "" && subtle.ConstantTimeCompare([]byte(accessKey), []byte(m.accessKey)) != 1 {
		m.logger.Warn("Rejected operator login", "email", email)
		return nil, ErrInvalidAccessKey
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrMissingEmail
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email
	}

	now := m.clock.Now()
	sess := &Session{
		ID:         ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Email:      email,
		Name:       name,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	m.logger.Info("Operator logged in", "session_id", sess.ID, "email", email)
	return sess, nil
}

// Get resolves a live session. Expired records are removed.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	sess, err := m.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.Expired(m.clock.Now()) {
		if _, err := m.repo.DeleteSession(ctx, id); err != nil {
			m.logger.Warn("Failed to delete expired session", "session_id", id, "error", err)
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// Touch extends a session's expiry from now.
func (m *Manager) Touch(ctx context.Context, sess *Session) error {
	now := m.clock.Now()
	expires := now.Add(m.ttl)
	if err := m.repo.TouchSession(ctx, sess.ID, now, expires); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	sess.LastSeenAt = now
	sess.ExpiresAt = expires
	return nil
}

// Logout destroys a session. Unknown IDs report ErrNotFound.
func (m *Manager) Logout(ctx context.Context, id string) error {
	existed, err := m.repo.DeleteSession(ctx, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !existed {
		return ErrNotFound
	}
	m.logger.Info("Operator logged out", "session_id", id)
	return nil
}
