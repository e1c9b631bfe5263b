package otp

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists one-time codes.
//
// MarkUsedIfUnused is the compare-and-set consumption primitive: it
// sets usedAt only when the row is still unused and reports whether
// this caller won. Concurrent consumers of the same code see exactly
// one true result.
type Repository interface {
	Save(ctx context.Context, o *Otp) error
	FindByUserIDAndCode(ctx context.Context, userID uuid.UUID, code string) (*Otp, error)
	FindActiveByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose Purpose, now time.Time) (*Otp, error)
	MarkUsedIfUnused(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
