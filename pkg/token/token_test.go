package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/tokengenerator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestToken(t *testing.T, tokenType tokengenerator.TokenType) *Token {
	t.Helper()
	now := time.Now().UTC()
	tok, err := New(uuid.New(), uuid.New(), tokenType, now.Add(time.Hour),
		Metadata{IPAddress: "203.0.113.7", UserAgent: "test-agent"}, now)
	require.NoError(t, err)
	return tok
}

func TestNewRejectsPastExpiry(t *testing.T) {
	now := time.Now().UTC()
	_, err := New(uuid.New(), uuid.New(), tokengenerator.TokenTypeRefresh, now.Add(-time.Second), Metadata{}, now)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidInput))
}

func TestConsumeIsSingleShot(t *testing.T) {
	tok := newTestToken(t, tokengenerator.TokenTypeResetPassword)
	now := time.Now().UTC()

	require.NoError(t, tok.Consume(now))
	err := tok.Consume(now)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeConflict))
}

func TestRotateReplacesOldRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	old := newTestToken(t, tokengenerator.TokenTypeRefresh)
	require.NoError(t, repo.Save(ctx, old))

	replacement := newTestToken(t, tokengenerator.TokenTypeRefresh)
	require.NoError(t, repo.Rotate(ctx, old.ID, replacement))

	_, err := repo.FindByTokenID(ctx, old.ID)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeNotFound))

	got, err := repo.FindByTokenID(ctx, replacement.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement.ID, got.ID)
}

func TestRotateFailsWhenOldRecordGone(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	replacement := newTestToken(t, tokengenerator.TokenTypeRefresh)
	err := repo.Rotate(ctx, uuid.New(), replacement)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeNotFound))

	// The replacement must not have been inserted.
	_, err = repo.FindByTokenID(ctx, replacement.ID)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeNotFound))
}

func TestMarkConsumedIfNotConsumedIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	tok := newTestToken(t, tokengenerator.TokenTypeResetPassword)
	require.NoError(t, repo.Save(ctx, tok))

	now := time.Now().UTC()
	won, err := repo.MarkConsumedIfNotConsumed(ctx, tok.ID, now)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.MarkConsumedIfNotConsumed(ctx, tok.ID, now)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestMarkConsumedConcurrentCallersWinOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	tok := newTestToken(t, tokengenerator.TokenTypeResetPassword)
	require.NoError(t, repo.Save(ctx, tok))

	const callers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.MarkConsumedIfNotConsumed(ctx, tok.ID, time.Now().UTC())
			assert.NoError(t, err)
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestDeleteByUserID(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()
	userID := uuid.New()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		tok, err := New(uuid.New(), userID, tokengenerator.TokenTypeRefresh, now.Add(time.Hour), Metadata{}, now)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, tok))
	}
	other := newTestToken(t, tokengenerator.TokenTypeRefresh)
	require.NoError(t, repo.Save(ctx, other))

	require.NoError(t, repo.DeleteByUserID(ctx, userID))

	_, err := repo.FindByTokenID(ctx, other.ID)
	require.NoError(t, err)
}
