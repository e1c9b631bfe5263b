package token

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists server-side token records.
//
// Rotate replaces an old refresh token record with a new one as a
// single unit. If the old record is already gone the rotation fails
// with not-found rather than silently inserting the replacement.
//
// MarkConsumedIfNotConsumed is the compare-and-set primitive for reset
// tokens: it sets consumedAt only when the record is still unconsumed
// and reports whether this caller won.
type Repository interface {
	Save(ctx context.Context, t *Token) error
	FindByTokenID(ctx context.Context, id uuid.UUID) (*Token, error)
	DeleteByTokenID(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	Rotate(ctx context.Context, oldID uuid.UUID, replacement *Token) error
	MarkConsumedIfNotConsumed(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}
