package session

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = 5 * time.Minute

// ExpiredCallback is called with the ID of every purged session.
type ExpiredCallback func(sessionID string)

// StartSweeper runs a background goroutine that periodically deletes expired
// sessions until ctx is done. The returned channel closes when it exits.
func StartSweeper(ctx context.Context, m *Manager, interval time.Duration, onExpired ExpiredCallback) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := m.clock.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ticker.Stop()
		m.logger.Info("Session sweeper started", "interval", interval, "ttl", m.ttl)

		for {
			select {
			case <-ticker.C:
				m.sweep(ctx, onExpired)
			case <-ctx.Done():
				m.logger.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
	return done
}

func (m *Manager) sweep(ctx context.Context, onExpired ExpiredCallback) {
	ids, err := m.repo.DeleteExpiredSessions(ctx, m.clock.Now())
	if err != nil {
		if ctx.Err() != nil {
			m.logger.Debug("Session sweep interrupted", "error", err)
			return
		}
		m.logger.Error("Session sweep failed", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	for _, id := range ids {
		if onExpired != nil {
			onExpired(id)
		}
	}
	m.logger.Info("Session sweep completed", "expired", len(ids))
}
