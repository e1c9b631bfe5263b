package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWindowRecord is the JSON shape persisted per key
type redisWindowRecord struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"window_start,omitempty"`
	WindowEnd   time.Time `json:"window_end,omitempty"`
}

// RedisStore implements Store over a single key per counter. The
// read-modify-write cycle is not atomic, so concurrent failures may
// undercount slightly, but the write always follows the threshold
// evaluation, so a triggered lockout is never lost. Keys are stored
// WITHOUT expiry: a lock survives until an explicit Reset.
type RedisStore struct {
	client     *redis.Client
	thresholds []Threshold
}

// NewRedisStore creates a new Redis rate limit store
func NewRedisStore(client *redis.Client, thresholds []Threshold) *RedisStore {
	return &RedisStore{
		client:     client,
		thresholds: thresholds,
	}
}

// Get rehydrates the window for a key
func (s *RedisStore) Get(ctx context.Context, key string) (*Window, error) {
	window := NewWindow(s.thresholds)

	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return window, nil
		}
		return nil, fmt.Errorf("failed to get rate limit record: %w", err)
	}

	var record redisWindowRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("failed to decode rate limit record: %w", err)
	}

	window.Count = record.Count
	window.WindowStart = record.WindowStart
	window.WindowEnd = record.WindowEnd
	return window, nil
}

// Hit reads the record, counts the attempt, and writes the result back
func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time) (*Window, error) {
	window, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	window.RegisterAttemptAndBlockIfLimitReached(now)

	record := redisWindowRecord{
		Count:       window.Count,
		WindowStart: window.WindowStart,
		WindowEnd:   window.WindowEnd,
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rate limit record: %w", err)
	}

	// No TTL: the record lives until Reset.
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to store rate limit record: %w", err)
	}
	return window, nil
}

// Reset clears the counter and any lockout for a key
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit record: %w", err)
	}
	return nil
}
