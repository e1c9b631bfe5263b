package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kandriws/authcore/pkg/config"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/notification"
	"github.com/kandriws/authcore/pkg/ratelimit"
	"github.com/kandriws/authcore/pkg/utils"
)

// CodeSender dispatches a generated code over a channel.
type CodeSender interface {
	Send(channel Channel, recipient string, purpose Purpose, code string, ttl time.Duration, data map[string]string) error
}

// SendParams identifies who gets a code and why.
type SendParams struct {
	UserID    uuid.UUID
	Recipient string
	FirstName string
	Purpose   Purpose
	Channel   Channel
}

// Service issues and consumes one-time codes. At most one live code
// exists per (user, purpose); issuing a new code invalidates the
// previous one first. Sends are throttled per (user, purpose, channel)
// with a fixed rolling window, separately from login rate limiting.
type Service struct {
	repo       Repository
	limiter    ratelimit.FixedWindowLimiter
	sender     CodeSender
	codeLength int
	emailTTL   time.Duration
	smsTTL     time.Duration
	now        func() time.Time
}

// ServiceOption configures the otp service
type ServiceOption func(*Service)

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new otp service
func NewService(repo Repository, limiter ratelimit.FixedWindowLimiter, sender CodeSender, cfg config.OtpConfig, opts ...ServiceOption) (*Service, error) {
	emailTTL, err := cfg.ParseEmailCodeTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid email code ttl: %w", err)
	}
	smsTTL, err := cfg.ParseSmsCodeTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid sms code ttl: %w", err)
	}

	s := &Service{
		repo:       repo,
		limiter:    limiter,
		sender:     sender,
		codeLength: cfg.CodeLength,
		emailTTL:   emailTTL,
		smsTTL:     smsTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send issues a fresh code and dispatches it. Any prior live code for
// the same (user, purpose) is invalidated before the send limiter is
// consulted, so a throttled request still leaves at most one live code.
func (s *Service) Send(ctx context.Context, params SendParams) (*Otp, error) {
	now := s.now().UTC()

	prior, err := s.repo.FindActiveByUserAndPurpose(ctx, params.UserID, params.Purpose, now)
	if err != nil && !autherr.IsCode(err, autherr.ErrCodeNotFound) {
		return nil, fmt.Errorf("failed to look up prior otp: %w", err)
	}
	if prior != nil {
		if err := s.repo.Delete(ctx, prior.ID); err != nil {
			return nil, fmt.Errorf("failed to invalidate prior otp: %w", err)
		}
	}

	allowed, err := s.limiter.Allow(ctx, sendLimitKey(params.UserID, params.Purpose, params.Channel))
	if err != nil {
		return nil, fmt.Errorf("otp send limiter failed: %w", err)
	}
	if !allowed {
		slog.Warn("otp send limit reached",
			"userId", params.UserID, "purpose", params.Purpose, "channel", params.Channel)
		return nil, autherr.RateLimitExceeded("")
	}

	code, err := utils.GenerateNumericCode(s.codeLength)
	if err != nil {
		return nil, autherr.InternalWrap(err, "failed to generate otp code")
	}

	ttl := s.ttlFor(params.Channel)
	o, err := New(params.UserID, code, params.Channel, params.Purpose, now.Add(ttl), now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to persist otp: %w", err)
	}

	data := map[string]string{
		"Code":      code,
		"ExpiresIn": formatTTL(ttl),
		"FirstName": params.FirstName,
	}
	if err := s.sender.Send(params.Channel, params.Recipient, params.Purpose, code, ttl, data); err != nil {
		return nil, fmt.Errorf("failed to dispatch otp: %w", err)
	}

	slog.Info("otp issued",
		"userId", params.UserID, "purpose", params.Purpose, "channel", params.Channel)
	return o, nil
}

// Consume looks up a code by (user, code) and marks it used. An
// absent code fails with a code-invalid error, an expired code and a
// spent code each fail with their own error. Concurrent consumption
// of the same code succeeds for exactly one caller.
func (s *Service) Consume(ctx context.Context, userID uuid.UUID, code string) (*Otp, error) {
	now := s.now().UTC()

	o, err := s.repo.FindByUserIDAndCode(ctx, userID, code)
	if err != nil {
		if autherr.IsCode(err, autherr.ErrCodeNotFound) {
			return nil, autherr.New(autherr.ErrCodeOtpCodeInvalid, "invalid otp code")
		}
		return nil, err
	}
	if o.IsUsed() {
		return nil, autherr.New(autherr.ErrCodeOtpAlreadyUsed, "otp code has already been used")
	}
	if o.IsExpired(now) {
		return nil, autherr.New(autherr.ErrCodeOtpExpired, "otp code has expired")
	}

	won, err := s.repo.MarkUsedIfUnused(ctx, o.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to consume otp: %w", err)
	}
	if !won {
		return nil, autherr.New(autherr.ErrCodeOtpAlreadyUsed, "otp code has already been used")
	}

	usedAt := now
	o.UsedAt = &usedAt
	return o, nil
}

func (s *Service) ttlFor(channel Channel) time.Duration {
	if channel == ChannelSms {
		return s.smsTTL
	}
	return s.emailTTL
}

func sendLimitKey(userID uuid.UUID, purpose Purpose, channel Channel) string {
	return fmt.Sprintf("otp:%s:%s:%s", userID, purpose, channel)
}

func formatTTL(ttl time.Duration) string {
	minutes := int(ttl.Minutes())
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// NotificationSender adapts the notification manager to the CodeSender
// interface, mapping purpose and channel to registered notice types.
type NotificationSender struct {
	manager *notification.NotificationManager
}

// NewNotificationSender creates a CodeSender backed by the notification manager
func NewNotificationSender(manager *notification.NotificationManager) *NotificationSender {
	return &NotificationSender{manager: manager}
}

func (n *NotificationSender) Send(channel Channel, recipient string, purpose Purpose, code string, ttl time.Duration, data map[string]string) error {
	system := notification.EmailSystem
	noticeType := notification.TwofaCodeEmailNotice

	switch {
	case channel == ChannelSms:
		system = notification.SMSSystem
		noticeType = notification.TwofaCodeSmsNotice
	case purpose == PurposeEmailVerification:
		noticeType = notification.EmailVerificationNotice
	}

	return n.manager.Send(noticeType, system, notification.NotificationData{
		To:   recipient,
		Data: data,
	})
}
