package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using an atomic database increment. Safe
// under concurrent writers: the upsert increments the counter server-side
// and returns the resulting count in the same statement.
type PostgresStore struct {
	pool       *pgxpool.Pool
	thresholds []Threshold
}

// NewPostgresStore creates a new PostgreSQL rate limit store
func NewPostgresStore(pool *pgxpool.Pool, thresholds []Threshold) *PostgresStore {
	return &PostgresStore{
		pool:       pool,
		thresholds: thresholds,
	}
}

// Get rehydrates the window for a key
func (s *PostgresStore) Get(ctx context.Context, key string) (*Window, error) {
	query := `
		SELECT attempt_count, window_start, window_end
		FROM rate_limit_counters
		WHERE key = $1
	`

	window := NewWindow(s.thresholds)
	var start, end sql.NullTime

	err := s.pool.QueryRow(ctx, query, key).Scan(&window.Count, &start, &end)
	if err != nil {
		if err == pgx.ErrNoRows {
			return window, nil
		}
		return nil, fmt.Errorf("failed to get rate limit counter: %w", err)
	}

	if start.Valid {
		window.WindowStart = start.Time
	}
	if end.Valid {
		window.WindowEnd = end.Time
	}
	return window, nil
}

// Hit atomically increments the counter, then evaluates the ladder and
// persists the lockout window when a threshold was crossed. Rows carry no
// expiry; a lock survives until an explicit Reset.
func (s *PostgresStore) Hit(ctx context.Context, key string, now time.Time) (*Window, error) {
	query := `
		INSERT INTO rate_limit_counters (key, attempt_count, updated_at)
		VALUES ($1, 1, $2)
		ON CONFLICT (key) DO UPDATE SET
			attempt_count = rate_limit_counters.attempt_count + 1,
			updated_at = EXCLUDED.updated_at
		RETURNING attempt_count, window_start, window_end
	`

	window := NewWindow(s.thresholds)
	var start, end sql.NullTime

	err := s.pool.QueryRow(ctx, query, key, now).Scan(&window.Count, &start, &end)
	if err != nil {
		return nil, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if start.Valid {
		window.WindowStart = start.Time
	}
	if end.Valid {
		window.WindowEnd = end.Time
	}

	// Increment already happened atomically above, so only evaluate here.
	wasActive := window.IsActive(now)
	window.BlockIfNeeded(now)

	if !wasActive && window.IsActive(now) {
		updateQuery := `
			UPDATE rate_limit_counters
			SET window_start = $2, window_end = $3, updated_at = $4
			WHERE key = $1
		`
		if _, err := s.pool.Exec(ctx, updateQuery, key, window.WindowStart, window.WindowEnd, now); err != nil {
			return nil, fmt.Errorf("failed to persist lockout window: %w", err)
		}
	}

	return window, nil
}

// Reset clears the counter and any lockout for a key
func (s *PostgresStore) Reset(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rate_limit_counters WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to reset rate limit counter: %w", err)
	}
	return nil
}
