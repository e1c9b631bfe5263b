package otp

import (
	"time"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
)

// Channel is the delivery channel for a one-time code.
type Channel string

// Purpose identifies what a one-time code is allowed to prove.
type Purpose string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSms   Channel = "SMS"

	PurposeEmailVerification       Purpose = "EMAIL_VERIFICATION"
	PurposeTwoFactorAuthentication Purpose = "TWO_FACTOR_AUTHENTICATION"
	PurposeTwoFactorEnrollment     Purpose = "TWO_FACTOR_ENROLLMENT"
)

// Otp is a one-time code bound to a user, purpose, and channel. A code
// is live while it is unexpired and unused; marking it used is a
// one-way transition.
type Otp struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Code      string
	Channel   Channel
	Purpose   Purpose
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// New creates a one-time code. The expiry must be in the future.
func New(userID uuid.UUID, code string, channel Channel, purpose Purpose, expiresAt, now time.Time) (*Otp, error) {
	if code == "" {
		return nil, autherr.New(autherr.ErrCodeInvalidInput, "otp code cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, autherr.New(autherr.ErrCodeInvalidInput, "otp expiry must be in the future")
	}
	return &Otp{
		ID:        uuid.New(),
		UserID:    userID,
		Code:      code,
		Channel:   channel,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// Reconstitute rebuilds an Otp from persisted state.
func Reconstitute(id, userID uuid.UUID, code string, channel Channel, purpose Purpose, expiresAt time.Time, usedAt *time.Time, createdAt time.Time) *Otp {
	return &Otp{
		ID:        id,
		UserID:    userID,
		Code:      code,
		Channel:   channel,
		Purpose:   purpose,
		ExpiresAt: expiresAt,
		UsedAt:    usedAt,
		CreatedAt: createdAt,
	}
}

func (o *Otp) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

func (o *Otp) IsUsed() bool {
	return o.UsedAt != nil
}

// IsActive reports whether the code can still be consumed.
func (o *Otp) IsActive(now time.Time) bool {
	return !o.IsUsed() && !o.IsExpired(now)
}

// MarkUsed consumes the code. An expired code cannot be marked used,
// and a second call fails.
func (o *Otp) MarkUsed(now time.Time) error {
	if o.IsUsed() {
		return autherr.New(autherr.ErrCodeOtpAlreadyUsed, "otp code has already been used")
	}
	if o.IsExpired(now) {
		return autherr.New(autherr.ErrCodeOtpExpired, "otp code has expired")
	}
	usedAt := now
	o.UsedAt = &usedAt
	return nil
}
