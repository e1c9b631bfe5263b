package user

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/utils"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL user repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
	}
}

// FindByID retrieves a user by id
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.findOne(ctx, "WHERE id = $1", id)
}

// FindByEmail retrieves a user by case-normalized email
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, "WHERE email = $1", utils.NormalizeEmail(email))
}

// ExistsByEmail checks whether an email is already registered
func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, utils.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// Save upserts the user snapshot
func (r *PostgresRepository) Save(ctx context.Context, u User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, phone,
			verified_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			verified_at = EXCLUDED.verified_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Phone,
		u.VerifiedAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// AssignRoles replaces the user's role set
func (r *PostgresRepository) AssignRoles(ctx context.Context, id uuid.UUID, roles []Role) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear user roles: %w", err)
	}

	for _, role := range roles {
		_, err := tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, name, realm) VALUES ($1, $2, $3)`,
			id, role.Name, role.Realm)
		if err != nil {
			return fmt.Errorf("failed to assign role %s: %w", role.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit role assignment: %w", err)
	}
	return nil
}

// AssignPermissions replaces the user's permission set
func (r *PostgresRepository) AssignPermissions(ctx context.Context, id uuid.UUID, permissions []Permission) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM user_permissions WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear user permissions: %w", err)
	}

	for _, permission := range permissions {
		_, err := tx.Exec(ctx,
			`INSERT INTO user_permissions (user_id, name, realm) VALUES ($1, $2, $3)`,
			id, permission.Name, permission.Realm)
		if err != nil {
			return fmt.Errorf("failed to assign permission %s: %w", permission.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit permission assignment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg interface{}) (*User, error) {
	query := `
		SELECT
			id, email, password_hash, first_name, last_name, phone,
			verified_at, created_at, updated_at
		FROM users ` + where

	var (
		u          User
		verifiedAt sql.NullTime
	)

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&verifiedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, autherr.NotFound("user", fmt.Sprintf("%v", arg))
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if verifiedAt.Valid {
		u.VerifiedAt = &verifiedAt.Time
	}

	roles, permissions, err := r.loadGrants(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	u.Permissions = permissions

	return &u, nil
}

func (r *PostgresRepository) loadGrants(ctx context.Context, id uuid.UUID) ([]Role, []Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, realm FROM user_roles WHERE user_id = $1`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.Name, &role.Realm); err != nil {
			return nil, nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if rows.Err() != nil {
		return nil, nil, fmt.Errorf("error iterating roles: %w", rows.Err())
	}

	permRows, err := r.pool.Query(ctx, `SELECT name, realm FROM user_permissions WHERE user_id = $1`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load user permissions: %w", err)
	}
	defer permRows.Close()

	var permissions []Permission
	for permRows.Next() {
		var permission Permission
		if err := permRows.Scan(&permission.Name, &permission.Realm); err != nil {
			return nil, nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, permission)
	}
	if permRows.Err() != nil {
		return nil, nil, fmt.Errorf("error iterating permissions: %w", permRows.Err())
	}

	return roles, permissions, nil
}
