package ratelimit

import (
	"context"
	"time"
)

// Store persists attempt counters and lockout windows. Implementations must
// keep locked windows until an explicit Reset; a lockout must never expire
// with a cache TTL.
type Store interface {
	// Get rehydrates the window for a key; a never-hit key yields an empty window
	Get(ctx context.Context, key string) (*Window, error)

	// Hit counts one failed attempt, evaluates the ladder and persists the
	// result. Callers must check IsActive beforehand; Hit itself does not
	// enforce the lockout.
	Hit(ctx context.Context, key string, now time.Time) (*Window, error)

	// Reset clears the counter and any lockout for a key
	Reset(ctx context.Context, key string) error
}
