package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	autherr "github.com/kandriws/authcore/pkg/errors"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL otp repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// Save upserts the one-time code
func (r *PostgresRepository) Save(ctx context.Context, o *Otp) error {
	query := `
		INSERT INTO otps (
			id, user_id, code, channel, purpose, expires_at, used_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (id) DO UPDATE SET
			used_at = EXCLUDED.used_at`

	_, err := r.pool.Exec(ctx, query,
		o.ID, o.UserID, o.Code, string(o.Channel), string(o.Purpose),
		o.ExpiresAt, o.UsedAt, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save otp: %w", err)
	}
	return nil
}

// FindByUserIDAndCode retrieves a code issued to the user
func (r *PostgresRepository) FindByUserIDAndCode(ctx context.Context, userID uuid.UUID, code string) (*Otp, error) {
	query := `
		SELECT id, user_id, code, channel, purpose, expires_at, used_at, created_at
		FROM otps
		WHERE user_id = $1 AND code = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanOne(r.pool.QueryRow(ctx, query, userID, code))
}

// FindActiveByUserAndPurpose retrieves the live (unexpired, unused)
// code for a user and purpose, if any
func (r *PostgresRepository) FindActiveByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose Purpose, now time.Time) (*Otp, error) {
	query := `
		SELECT id, user_id, code, channel, purpose, expires_at, used_at, created_at
		FROM otps
		WHERE user_id = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanOne(r.pool.QueryRow(ctx, query, userID, string(purpose), now))
}

// MarkUsedIfUnused consumes the code only if it is still unused
func (r *PostgresRepository) MarkUsedIfUnused(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	query := `UPDATE otps SET used_at = $1 WHERE id = $2 AND used_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark otp used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the code
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM otps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Otp, error) {
	var (
		id, userID       uuid.UUID
		code             string
		channel, purpose string
		expiresAt        time.Time
		usedAt           *time.Time
		createdAt        time.Time
	)
	err := row.Scan(&id, &userID, &code, &channel, &purpose, &expiresAt, &usedAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, autherr.New(autherr.ErrCodeNotFound, "otp not found")
		}
		return nil, fmt.Errorf("failed to find otp: %w", err)
	}
	return Reconstitute(id, userID, code, Channel(channel), Purpose(purpose), expiresAt, usedAt, createdAt), nil
}
