package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisStoreHitAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewRedisStore(newTestRedis(t), testThresholds())

	now := time.Now().UTC()
	for i := 1; i <= 2; i++ {
		w, err := store.Hit(ctx, "login:u1", now)
		require.NoError(t, err)
		assert.Equal(t, i, w.Count)
		assert.False(t, w.IsActive(now))
	}

	w, err := store.Hit(ctx, "login:u1", now)
	require.NoError(t, err)
	assert.True(t, w.IsActive(now))

	// The lock round-trips through the persisted record.
	got, err := store.Get(ctx, "login:u1")
	require.NoError(t, err)
	assert.True(t, got.IsActive(now))
	assert.Equal(t, 3, got.Count)
}

func TestRedisStorePersistsLockWithoutExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), testThresholds())

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := store.Hit(ctx, "login:u1", now)
		require.NoError(t, err)
	}

	// No TTL on the record: the lock must survive until Reset, not until
	// a cache eviction.
	assert.Equal(t, time.Duration(0), mr.TTL("login:u1"))
}

func TestRedisStoreReset(t *testing.T) {
	ctx := context.Background()
	store := NewRedisStore(newTestRedis(t), testThresholds())

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := store.Hit(ctx, "login:u1", now)
		require.NoError(t, err)
	}

	require.NoError(t, store.Reset(ctx, "login:u1"))

	w, err := store.Get(ctx, "login:u1")
	require.NoError(t, err)
	assert.Equal(t, 0, w.Count)
	assert.False(t, w.IsActive(now))
}

func TestLimiterShortCircuitsWhileLocked(t *testing.T) {
	ctx := context.Background()
	limiter := NewLimiter(NewRedisStore(newTestRedis(t), testThresholds()), "login:")

	for i := 0; i < 3; i++ {
		_, err := limiter.Hit(ctx, "u1")
		require.NoError(t, err)
	}

	err := limiter.Check(ctx, "u1")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeRateLimitExceeded))

	// A hit while locked fails and does not increment.
	_, err = limiter.Hit(ctx, "u1")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeRateLimitExceeded))

	w, err := limiter.store.Get(ctx, "login:u1")
	require.NoError(t, err)
	assert.Equal(t, 3, w.Count)
}

func TestLimiterResetClearsLock(t *testing.T) {
	ctx := context.Background()
	limiter := NewLimiter(NewInMemStore(testThresholds()), "login:")

	for i := 0; i < 3; i++ {
		_, err := limiter.Hit(ctx, "u1")
		require.NoError(t, err)
	}
	require.Error(t, limiter.Check(ctx, "u1"))

	require.NoError(t, limiter.Reset(ctx, "u1"))
	require.NoError(t, limiter.Check(ctx, "u1"))
}

func TestRedisFixedWindowLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	limiter := NewRedisFixedWindowLimiter(
		redis.NewClient(&redis.Options{Addr: mr.Addr()}), 2, time.Minute)

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "otp:u1:email")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := limiter.Allow(ctx, "otp:u1:email")
	require.NoError(t, err)
	assert.False(t, ok)

	// Dispatch counters do expire, unlike lockout windows.
	mr.FastForward(2 * time.Minute)
	ok, err = limiter.Allow(ctx, "otp:u1:email")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemFixedWindowLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := NewInMemFixedWindowLimiter(1, time.Minute)

	ok, err := limiter.Allow(ctx, "otp:u1:email")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.Allow(ctx, "otp:u1:email")
	require.NoError(t, err)
	assert.False(t, ok)
}
