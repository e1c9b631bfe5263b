package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter enforces a simple "at most N events per window" rule,
// used for OTP dispatch throttling (keyed by user, purpose and channel).
type FixedWindowLimiter interface {
	// Allow reports whether one more event fits in the current window
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisFixedWindowLimiter counts events with INCR and lets the first event
// in a window set the expiry. Unlike lockout windows, these counters may
// expire: the limit is a dispatch throttle, not a security lock.
type RedisFixedWindowLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisFixedWindowLimiter creates a Redis-backed fixed window limiter
func NewRedisFixedWindowLimiter(client *redis.Client, limit int, window time.Duration) *RedisFixedWindowLimiter {
	return &RedisFixedWindowLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Allow reports whether one more event fits in the current window
func (l *RedisFixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment send counter: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set send counter expiry: %w", err)
		}
	}

	return count <= int64(l.limit), nil
}

// InMemFixedWindowLimiter is a mutex-guarded in-process variant for tests
// and single-node deployments.
type InMemFixedWindowLimiter struct {
	mu     sync.Mutex
	counts map[string]*fixedWindowEntry
	limit  int
	window time.Duration
}

type fixedWindowEntry struct {
	count     int
	expiresAt time.Time
}

// NewInMemFixedWindowLimiter creates an in-memory fixed window limiter
func NewInMemFixedWindowLimiter(limit int, window time.Duration) *InMemFixedWindowLimiter {
	return &InMemFixedWindowLimiter{
		counts: make(map[string]*fixedWindowEntry),
		limit:  limit,
		window: window,
	}
}

// Allow reports whether one more event fits in the current window
func (l *InMemFixedWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.counts[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &fixedWindowEntry{expiresAt: now.Add(l.window)}
		l.counts[key] = entry
	}

	entry.count++
	return entry.count <= l.limit, nil
}
