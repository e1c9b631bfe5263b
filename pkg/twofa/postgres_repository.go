package twofa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/secrets"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL twofa repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// FindByUserID retrieves the user's setting
func (r *PostgresRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*Setting, error) {
	query := `
		SELECT id, user_id, is_enabled, method, secret_ciphertext, secret_metadata,
		       verified_at, pending_method, pending_secret_ciphertext, pending_secret_metadata,
		       created_at, updated_at
		FROM two_factor_settings
		WHERE user_id = $1`

	var (
		s             Setting
		method        string
		secretMeta    []byte
		pendingMethod *string
		pendingMeta   []byte
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.IsEnabled, &method, &s.SecretCiphertext, &secretMeta,
		&s.VerifiedAt, &pendingMethod, &s.PendingSecretCiphertext, &pendingMeta,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, autherr.NotFound("two-factor setting", userID.String())
		}
		return nil, fmt.Errorf("failed to find two-factor setting: %w", err)
	}

	s.Method = Method(method)
	if pendingMethod != nil {
		m := Method(*pendingMethod)
		s.PendingMethod = &m
	}
	if s.SecretMetadata, err = unmarshalMetadata(secretMeta); err != nil {
		return nil, err
	}
	if s.PendingSecretMetadata, err = unmarshalMetadata(pendingMeta); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save upserts the setting on the user_id unique constraint
func (r *PostgresRepository) Save(ctx context.Context, s *Setting) error {
	secretMeta, err := marshalMetadata(s.SecretMetadata)
	if err != nil {
		return err
	}
	pendingMeta, err := marshalMetadata(s.PendingSecretMetadata)
	if err != nil {
		return err
	}

	var pendingMethod *string
	if s.PendingMethod != nil {
		m := string(*s.PendingMethod)
		pendingMethod = &m
	}

	query := `
		INSERT INTO two_factor_settings (
			id, user_id, is_enabled, method, secret_ciphertext, secret_metadata,
			verified_at, pending_method, pending_secret_ciphertext, pending_secret_metadata,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (user_id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			method = EXCLUDED.method,
			secret_ciphertext = EXCLUDED.secret_ciphertext,
			secret_metadata = EXCLUDED.secret_metadata,
			verified_at = EXCLUDED.verified_at,
			pending_method = EXCLUDED.pending_method,
			pending_secret_ciphertext = EXCLUDED.pending_secret_ciphertext,
			pending_secret_metadata = EXCLUDED.pending_secret_metadata,
			updated_at = EXCLUDED.updated_at`

	_, err = r.pool.Exec(ctx, query,
		s.ID, s.UserID, s.IsEnabled, string(s.Method), s.SecretCiphertext, secretMeta,
		s.VerifiedAt, pendingMethod, s.PendingSecretCiphertext, pendingMeta,
		s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save two-factor setting: %w", err)
	}
	return nil
}

// Delete removes the user's setting
func (r *PostgresRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM two_factor_settings WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete two-factor setting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return autherr.NotFound("two-factor setting", userID.String())
	}
	return nil
}

func marshalMetadata(m *secrets.Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secret metadata: %w", err)
	}
	return data, nil
}

func unmarshalMetadata(data []byte) (*secrets.Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m secrets.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret metadata: %w", err)
	}
	return &m, nil
}
