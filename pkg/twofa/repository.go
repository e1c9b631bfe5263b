package twofa

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists two-factor settings, at most one per user.
type Repository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Setting, error)
	Save(ctx context.Context, s *Setting) error
	Delete(ctx context.Context, userID uuid.UUID) error
}
