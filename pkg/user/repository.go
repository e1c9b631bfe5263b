package user

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for user data access
type Repository interface {
	// Find a user by id
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Find a user by case-normalized email
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Check whether an email is already registered
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Save upserts the user snapshot
	Save(ctx context.Context, u User) error

	// Replace the user's role set
	AssignRoles(ctx context.Context, id uuid.UUID, roles []Role) error

	// Replace the user's permission set
	AssignPermissions(ctx context.Context, id uuid.UUID, permissions []Permission) error
}
