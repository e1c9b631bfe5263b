package otp

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kandriws/authcore/pkg/config"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []fakeSend
	err  error
}

type fakeSend struct {
	channel   Channel
	recipient string
	purpose   Purpose
	code      string
}

func (f *fakeSender) Send(channel Channel, recipient string, purpose Purpose, code string, ttl time.Duration, data map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, fakeSend{channel: channel, recipient: recipient, purpose: purpose, code: code})
	return nil
}

func newTestService(t *testing.T, sendLimit int) (*Service, *InMemRepository, *fakeSender) {
	t.Helper()
	repo := NewInMemRepository()
	sender := &fakeSender{}
	svc, err := NewService(repo, ratelimit.NewInMemFixedWindowLimiter(sendLimit, 15*time.Minute), sender,
		config.OtpConfig{CodeLength: 6, EmailCodeTTL: "10m", SmsCodeTTL: "5m"})
	require.NoError(t, err)
	return svc, repo, sender
}

func TestOtpMarkUsedIsSingleShot(t *testing.T) {
	now := time.Now().UTC()
	o, err := New(uuid.New(), "123456", ChannelEmail, PurposeEmailVerification, now.Add(10*time.Minute), now)
	require.NoError(t, err)

	require.NoError(t, o.MarkUsed(now))
	err = o.MarkUsed(now)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeOtpAlreadyUsed))
}

func TestOtpMarkUsedRejectsExpired(t *testing.T) {
	now := time.Now().UTC()
	o, err := New(uuid.New(), "123456", ChannelSms, PurposeTwoFactorAuthentication, now.Add(5*time.Minute), now)
	require.NoError(t, err)

	err = o.MarkUsed(now.Add(6 * time.Minute))
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeOtpExpired))
}

func TestOtpNewRejectsPastExpiry(t *testing.T) {
	now := time.Now().UTC()
	_, err := New(uuid.New(), "123456", ChannelEmail, PurposeEmailVerification, now.Add(-time.Minute), now)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidInput))
}

func TestServiceSendDispatchesCode(t *testing.T) {
	ctx := context.Background()
	svc, _, sender := newTestService(t, 5)
	userID := uuid.New()

	o, err := svc.Send(ctx, SendParams{
		UserID:    userID,
		Recipient: "user@example.com",
		Purpose:   PurposeEmailVerification,
		Channel:   ChannelEmail,
	})
	require.NoError(t, err)
	assert.Len(t, o.Code, 6)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, o.Code, sender.sent[0].code)
	assert.Equal(t, ChannelEmail, sender.sent[0].channel)
	assert.Equal(t, "user@example.com", sender.sent[0].recipient)
}

func TestServiceSendInvalidatesPriorCode(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t, 5)
	userID := uuid.New()
	params := SendParams{
		UserID:    userID,
		Recipient: "user@example.com",
		Purpose:   PurposeTwoFactorAuthentication,
		Channel:   ChannelEmail,
	}

	first, err := svc.Send(ctx, params)
	require.NoError(t, err)
	second, err := svc.Send(ctx, params)
	require.NoError(t, err)

	// Only the newest code survives.
	active, err := repo.FindActiveByUserAndPurpose(ctx, userID, PurposeTwoFactorAuthentication, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	_, err = repo.FindByUserIDAndCode(ctx, userID, first.Code)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeNotFound))
}

func TestServiceSendRateLimited(t *testing.T) {
	ctx := context.Background()
	svc, _, sender := newTestService(t, 1)
	params := SendParams{
		UserID:    uuid.New(),
		Recipient: "user@example.com",
		Purpose:   PurposeEmailVerification,
		Channel:   ChannelEmail,
	}

	_, err := svc.Send(ctx, params)
	require.NoError(t, err)

	_, err = svc.Send(ctx, params)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeRateLimitExceeded))
	assert.Len(t, sender.sent, 1)
}

func TestServiceConsume(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, 5)
	userID := uuid.New()

	o, err := svc.Send(ctx, SendParams{
		UserID:    userID,
		Recipient: "user@example.com",
		Purpose:   PurposeTwoFactorAuthentication,
		Channel:   ChannelEmail,
	})
	require.NoError(t, err)

	consumed, err := svc.Consume(ctx, userID, o.Code)
	require.NoError(t, err)
	assert.NotNil(t, consumed.UsedAt)

	_, err = svc.Consume(ctx, userID, o.Code)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeOtpAlreadyUsed))
}

func TestServiceConsumeUnknownCode(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, 5)

	_, err := svc.Consume(ctx, uuid.New(), "000000")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeOtpCodeInvalid))
}

func TestServiceConsumeExpiredCode(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()
	sender := &fakeSender{}

	current := time.Now().UTC()
	svc, err := NewService(repo, ratelimit.NewInMemFixedWindowLimiter(5, 15*time.Minute), sender,
		config.OtpConfig{CodeLength: 6, EmailCodeTTL: "10m", SmsCodeTTL: "5m"},
		WithClock(func() time.Time { return current }))
	require.NoError(t, err)

	userID := uuid.New()
	o, err := svc.Send(ctx, SendParams{
		UserID:    userID,
		Recipient: "+15005551234",
		Purpose:   PurposeTwoFactorAuthentication,
		Channel:   ChannelSms,
	})
	require.NoError(t, err)

	current = current.Add(6 * time.Minute) // past the 5m SMS ttl
	_, err = svc.Consume(ctx, userID, o.Code)
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeOtpExpired))
}

func TestRepositoryMarkUsedIfUnusedIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()
	now := time.Now().UTC()

	o, err := New(uuid.New(), "654321", ChannelEmail, PurposeTwoFactorAuthentication, now.Add(10*time.Minute), now)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, o))

	won, err := repo.MarkUsedIfUnused(ctx, o.ID, now)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.MarkUsedIfUnused(ctx, o.ID, now)
	require.NoError(t, err)
	assert.False(t, won)
}
