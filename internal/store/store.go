// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/ops-console/internal/domain"
)

// Repository persists operator sessions.
type Repository interface {
	// CreateSession inserts a new operator session.
	CreateSession(ctx context.Context, sess *domain.OperatorSession) error

	// GetSession retrieves a session by ID. It returns nil, nil when no
	// such session exists.
	GetSession(ctx context.Context, id string) (*domain.OperatorSession, error)

	// TouchSession records activity and moves the expiry forward.
	TouchSession(ctx context.Context, id string, lastSeen, expiresAt time.Time) error

	// DeleteSession removes a session and reports whether it existed.
	DeleteSession(ctx context.Context, id string) (bool, error)

	// DeleteExpiredSessions removes every session expired at now and
	// returns their IDs.
	DeleteExpiredSessions(ctx context.Context, now time.Time) ([]string, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
