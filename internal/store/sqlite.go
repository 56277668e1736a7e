package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	busyRetries   = 3
	busyBaseDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS operator_sessions (
		session_id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_operator_sessions_expires ON operator_sessions(expires_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateSession inserts a new operator session.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *domain.OperatorSession) error {
	query := `
	INSERT INTO operator_sessions (session_id, email, name, created_at, last_seen_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.Email, sess.Name,
		sess.CreatedAt.UnixMilli(), sess.LastSeenAt.UnixMilli(), sess.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert operator session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*domain.OperatorSession, error) {
	query := `
		SELECT session_id, email, name, created_at, last_seen_at, expires_at
		FROM operator_sessions WHERE session_id = ?`

	var sess domain.OperatorSession
	var createdAt, lastSeen, expiresAt int64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.Email, &sess.Name,
		&createdAt, &lastSeen, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan operator session: %w", err)
	}

	sess.CreatedAt = time.UnixMilli(createdAt)
	sess.LastSeenAt = time.UnixMilli(lastSeen)
	sess.ExpiresAt = time.UnixMilli(expiresAt)
	return &sess, nil
}

// TouchSession records activity and moves the expiry forward.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string, lastSeen, expiresAt time.Time) error {
	return shared.RetryOnConflict(ctx, "touch operator session", busyRetries, busyBaseDelay, func() error {
		query := `UPDATE operator_sessions SET last_seen_at = ?, expires_at = ? WHERE session_id = ?`
		_, err := s.db.ExecContext(ctx, query, lastSeen.UnixMilli(), expiresAt.UnixMilli(), id)
		return err
	})
}

// DeleteSession removes a session.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := shared.RetryOnConflict(ctx, "delete operator session", busyRetries, busyBaseDelay, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM operator_sessions WHERE session_id = ?`, id)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		return err
	})
	return rows > 0, err
}

// DeleteExpiredSessions removes sessions whose expiry is not after now.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := shared.RetryOnConflict(ctx, "delete expired operator sessions", busyRetries, busyBaseDelay, func() error {
		ids = ids[:0]
		rows, err := s.db.QueryContext(ctx,
			`DELETE FROM operator_sessions WHERE expires_at <= ? RETURNING session_id`, now.UnixMilli())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}
