package ratelimit

import (
	"context"
	"log/slog"
	"time"

	autherr "github.com/kandriws/authcore/pkg/errors"
)

// Limiter enforces the tiered lockout ladder for a class of attempts
// (login failures, OTP verification failures) keyed by user id.
type Limiter struct {
	store     Store
	keyPrefix string
}

// NewLimiter creates a limiter over the given store. keyPrefix namespaces
// counters so separate flows never share windows.
func NewLimiter(store Store, keyPrefix string) *Limiter {
	return &Limiter{
		store:     store,
		keyPrefix: keyPrefix,
	}
}

// Check fails with a rate-limit error while the key is locked out. Callers
// invoke it before any expensive comparison work so hashing and decryption
// are skipped for locked accounts.
func (l *Limiter) Check(ctx context.Context, key string) error {
	window, err := l.store.Get(ctx, l.keyPrefix+key)
	if err != nil {
		return autherr.InternalWrap(err, "failed to read rate limit window")
	}

	now := time.Now().UTC()
	if window.IsActive(now) {
		return lockedErr(window, now)
	}
	return nil
}

// Hit records one failed attempt. If the key is already locked it fails with
// a rate-limit error without counting; otherwise it returns the updated
// window so callers can echo attempt counts in their own errors.
func (l *Limiter) Hit(ctx context.Context, key string) (*Window, error) {
	storeKey := l.keyPrefix + key

	window, err := l.store.Get(ctx, storeKey)
	if err != nil {
		return nil, autherr.InternalWrap(err, "failed to read rate limit window")
	}

	now := time.Now().UTC()
	if window.IsActive(now) {
		return nil, lockedErr(window, now)
	}

	window, err = l.store.Hit(ctx, storeKey, now)
	if err != nil {
		return nil, autherr.InternalWrap(err, "failed to register rate limit attempt")
	}

	if window.IsActive(now) {
		slog.Warn("Lockout window activated", "key", storeKey, "attempts", window.Count, "until", window.WindowEnd)
	}
	return window, nil
}

// Reset clears the counter for a key, typically after a successful login
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.store.Reset(ctx, l.keyPrefix+key); err != nil {
		return autherr.InternalWrap(err, "failed to reset rate limit window")
	}
	return nil
}

func lockedErr(window *Window, now time.Time) error {
	return autherr.RateLimitExceeded(window.RetryAfter(now).String()).
		WithDetail("attempts", window.Count)
}
