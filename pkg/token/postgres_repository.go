package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/tokengenerator"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL token repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

const insertTokenQuery = `
	INSERT INTO tokens (
		id, user_id, type, expires_at, ip_address, user_agent, consumed_at, created_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8
	)`

// Save inserts the token record
func (r *PostgresRepository) Save(ctx context.Context, t *Token) error {
	_, err := r.pool.Exec(ctx, insertTokenQuery,
		t.ID, t.UserID, string(t.Type), t.ExpiresAt,
		t.Metadata.IPAddress, t.Metadata.UserAgent, t.ConsumedAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// FindByTokenID retrieves a token record by its jti
func (r *PostgresRepository) FindByTokenID(ctx context.Context, id uuid.UUID) (*Token, error) {
	query := `
		SELECT id, user_id, type, expires_at, ip_address, user_agent, consumed_at, created_at
		FROM tokens
		WHERE id = $1`

	var (
		tokenID, userID      uuid.UUID
		tokenType            string
		expiresAt            time.Time
		ipAddress, userAgent string
		consumedAt           *time.Time
		createdAt            time.Time
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tokenID, &userID, &tokenType, &expiresAt, &ipAddress, &userAgent, &consumedAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, autherr.NotFound("token", id.String())
		}
		return nil, fmt.Errorf("failed to find token: %w", err)
	}

	return Reconstitute(tokenID, userID, tokengenerator.TokenType(tokenType), expiresAt,
		Metadata{IPAddress: ipAddress, UserAgent: userAgent}, consumedAt, createdAt), nil
}

// DeleteByTokenID removes a token record
func (r *PostgresRepository) DeleteByTokenID(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return autherr.NotFound("token", id.String())
	}
	return nil
}

// DeleteByUserID removes every token record for a user
func (r *PostgresRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete tokens for user: %w", err)
	}
	return nil
}

// Rotate atomically replaces an old token record with a new one. If
// the old record has already been deleted by a concurrent rotation or
// logout, the whole transaction fails with not-found.
func (r *PostgresRepository) Rotate(ctx context.Context, oldID uuid.UUID, replacement *Token) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, oldID)
	if err != nil {
		return fmt.Errorf("failed to delete rotated token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return autherr.NotFound("token", oldID.String())
	}

	_, err = tx.Exec(ctx, insertTokenQuery,
		replacement.ID, replacement.UserID, string(replacement.Type), replacement.ExpiresAt,
		replacement.Metadata.IPAddress, replacement.Metadata.UserAgent,
		replacement.ConsumedAt, replacement.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert replacement token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rotation: %w", err)
	}
	return nil
}

// MarkConsumedIfNotConsumed consumes the token only if it is still unconsumed
func (r *PostgresRepository) MarkConsumedIfNotConsumed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `UPDATE tokens SET consumed_at = $1 WHERE id = $2 AND consumed_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark token consumed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
