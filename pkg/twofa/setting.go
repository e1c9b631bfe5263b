package twofa

import (
	"time"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/otp"
	"github.com/kandriws/authcore/pkg/secrets"
)

// Method is a second-factor verification method.
type Method string

const (
	MethodTotp     Method = "TOTP"
	MethodEmailOtp Method = "EMAIL_OTP"
	MethodSmsOtp   Method = "SMS_OTP"
)

// IsNotifyable reports whether the method delivers codes out-of-band.
// TOTP codes are computed locally by the user, everything else is sent.
func (m Method) IsNotifyable() bool {
	return m == MethodEmailOtp || m == MethodSmsOtp
}

// OtpChannel maps the method to its delivery channel.
func (m Method) OtpChannel() otp.Channel {
	if m == MethodSmsOtp {
		return otp.ChannelSms
	}
	return otp.ChannelEmail
}

// IsValid reports whether the method is one of the known values.
func (m Method) IsValid() bool {
	switch m {
	case MethodTotp, MethodEmailOtp, MethodSmsOtp:
		return true
	}
	return false
}

// Setting is the per-user two-factor configuration. There is at most
// one per user. A verified setting can stage a method change in the
// pending fields until the user confirms it; the current method is
// never overwritten directly while enabled.
type Setting struct {
	ID                      uuid.UUID
	UserID                  uuid.UUID
	IsEnabled               bool
	Method                  Method
	SecretCiphertext        string
	SecretMetadata          *secrets.Metadata
	VerifiedAt              *time.Time
	PendingMethod           *Method
	PendingSecretCiphertext string
	PendingSecretMetadata   *secrets.Metadata
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NewSetting creates an unverified, disabled setting for the method.
func NewSetting(userID uuid.UUID, method Method, now time.Time) (*Setting, error) {
	if !method.IsValid() {
		return nil, autherr.Newf(autherr.ErrCodeInvalidInput, "invalid two-factor method: %s", method)
	}
	return &Setting{
		ID:        uuid.New(),
		UserID:    userID,
		Method:    method,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Setting) IsVerified() bool {
	return s.VerifiedAt != nil
}

// SetSecret stores the encrypted TOTP secret as the current secret.
// Only valid while the setting has never been verified; an enabled
// setting stages new secrets through the pending fields instead.
func (s *Setting) SetSecret(ciphertext string, metadata secrets.Metadata, now time.Time) error {
	if s.IsVerified() {
		return autherr.Conflict("cannot overwrite the secret of a verified setting")
	}
	s.SecretCiphertext = ciphertext
	s.SecretMetadata = &metadata
	s.UpdatedAt = now
	return nil
}

// StagePendingTotp stages an encrypted TOTP secret as an in-flight
// method change awaiting confirmation.
func (s *Setting) StagePendingTotp(ciphertext string, metadata secrets.Metadata, now time.Time) {
	pending := MethodTotp
	s.PendingMethod = &pending
	s.PendingSecretCiphertext = ciphertext
	s.PendingSecretMetadata = &metadata
	s.UpdatedAt = now
}

// Verify transitions an unverified setting to verified and enabled.
// It is single-shot: a second call fails. The method must match the
// setting's current method; promoting a staged pending method goes
// through PromoteToTotp instead.
func (s *Setting) Verify(method Method, now time.Time) error {
	if s.IsVerified() {
		return autherr.Conflict("two-factor setting has already been verified")
	}
	if method != s.Method {
		return autherr.Newf(autherr.ErrCodeInvalidInput,
			"method %s does not match configured method %s", method, s.Method)
	}
	verifiedAt := now
	s.IsEnabled = true
	s.VerifiedAt = &verifiedAt
	s.UpdatedAt = now
	return nil
}

// PromoteToTotp promotes a staged pending TOTP secret to the current
// method. Fails when nothing is staged.
func (s *Setting) PromoteToTotp(now time.Time) error {
	if s.PendingMethod == nil || *s.PendingMethod != MethodTotp {
		return autherr.Conflict("no pending totp secret staged")
	}
	if s.PendingSecretCiphertext == "" || s.PendingSecretMetadata == nil {
		return autherr.Conflict("pending totp secret is incomplete")
	}

	verifiedAt := now
	s.Method = MethodTotp
	s.SecretCiphertext = s.PendingSecretCiphertext
	s.SecretMetadata = s.PendingSecretMetadata
	s.IsEnabled = true
	s.VerifiedAt = &verifiedAt
	s.PendingMethod = nil
	s.PendingSecretCiphertext = ""
	s.PendingSecretMetadata = nil
	s.UpdatedAt = now
	return nil
}
