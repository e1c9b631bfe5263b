package twofa

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/otp"
	"github.com/kandriws/authcore/pkg/secrets"
	"github.com/kandriws/authcore/pkg/user"
)

// OtpManager is the slice of the otp service the enrollment flows use.
type OtpManager interface {
	Send(ctx context.Context, params otp.SendParams) (*otp.Otp, error)
	Consume(ctx context.Context, userID uuid.UUID, code string) (*otp.Otp, error)
}

// SecretCipher encrypts and decrypts TOTP secrets.
type SecretCipher interface {
	Encrypt(plaintext string) (string, secrets.Metadata, error)
	Decrypt(ciphertext string, metadata secrets.Metadata) (string, error)
}

// EnableResult reports what the enrollment state machine did. The
// provisioning URI is set only for TOTP generation decisions.
type EnableResult struct {
	Decision        DecisionType
	Method          Method
	ProvisioningURI string
}

// Service drives two-factor enrollment, verification, and challenges.
type Service struct {
	repo       Repository
	otpManager OtpManager
	cipher     SecretCipher
	issuer     string
	now        func() time.Time
}

// ServiceOption configures the twofa service
type ServiceOption func(*Service)

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new twofa service. The issuer names this
// deployment in provisioning URIs.
func NewService(repo Repository, otpManager OtpManager, cipher SecretCipher, issuer string, opts ...ServiceOption) *Service {
	s := &Service{
		repo:       repo,
		otpManager: otpManager,
		cipher:     cipher,
		issuer:     issuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnableTwoFactor starts or advances enrollment for the requested
// method, applying the enable-request decision table.
func (s *Service) EnableTwoFactor(ctx context.Context, u *user.User, method Method) (*EnableResult, error) {
	if !method.IsValid() {
		return nil, autherr.Newf(autherr.ErrCodeInvalidInput, "invalid two-factor method: %s", method)
	}
	now := s.now().UTC()

	setting, err := s.repo.FindByUserID(ctx, u.ID)
	if err != nil {
		if !autherr.IsCode(err, autherr.ErrCodeNotFound) {
			return nil, err
		}
		return s.startEnrollment(ctx, u, method, now)
	}

	decision := DecideEnableRequest(setting, method)
	switch decision.Type {
	case DecisionAlreadyEnabled:
		return nil, autherr.Conflict("two-factor authentication is already enabled")

	case DecisionSendOtp:
		if err := s.sendChallengeCode(ctx, u, decision.Method, otp.PurposeTwoFactorEnrollment); err != nil {
			return nil, err
		}
		return &EnableResult{Decision: DecisionSendOtp, Method: decision.Method}, nil

	case DecisionGenerateTotp:
		uri, err := s.stagePendingTotp(ctx, setting, u, now)
		if err != nil {
			return nil, err
		}
		return &EnableResult{Decision: DecisionGenerateTotp, Method: MethodTotp, ProvisioningURI: uri}, nil

	case DecisionGenerateOtp:
		if method == MethodTotp {
			uri, err := s.stagePendingTotp(ctx, setting, u, now)
			if err != nil {
				return nil, err
			}
			return &EnableResult{Decision: DecisionGenerateOtp, Method: MethodTotp, ProvisioningURI: uri}, nil
		}
		setting.Method = method
		setting.UpdatedAt = now
		if err := s.repo.Save(ctx, setting); err != nil {
			return nil, err
		}
		if err := s.sendChallengeCode(ctx, u, method, otp.PurposeTwoFactorEnrollment); err != nil {
			return nil, err
		}
		return &EnableResult{Decision: DecisionGenerateOtp, Method: method}, nil
	}

	return nil, autherr.Internal(fmt.Sprintf("unhandled enrollment decision: %s", decision.Type))
}

// startEnrollment creates the first setting for a user. A TOTP secret
// is persisted directly since there is no prior enabled state to
// protect; notifyable methods get a code instead.
func (s *Service) startEnrollment(ctx context.Context, u *user.User, method Method, now time.Time) (*EnableResult, error) {
	setting, err := NewSetting(u.ID, method, now)
	if err != nil {
		return nil, err
	}

	if method == MethodTotp {
		secret, uri, err := GenerateTotpSecret(s.issuer, u.Email)
		if err != nil {
			return nil, err
		}
		ciphertext, metadata, err := s.cipher.Encrypt(secret)
		if err != nil {
			return nil, err
		}
		if err := setting.SetSecret(ciphertext, metadata, now); err != nil {
			return nil, err
		}
		if err := s.repo.Save(ctx, setting); err != nil {
			return nil, err
		}
		slog.Info("totp enrollment started", "userId", u.ID)
		return &EnableResult{Decision: DecisionGenerateOtp, Method: MethodTotp, ProvisioningURI: uri}, nil
	}

	if err := s.repo.Save(ctx, setting); err != nil {
		return nil, err
	}
	if err := s.sendChallengeCode(ctx, u, method, otp.PurposeTwoFactorEnrollment); err != nil {
		return nil, err
	}
	slog.Info("two-factor enrollment started", "userId", u.ID, "method", method)
	return &EnableResult{Decision: DecisionGenerateOtp, Method: method}, nil
}

// stagePendingTotp generates a fresh secret and stages it in the
// pending fields, leaving the current method untouched until the user
// confirms.
func (s *Service) stagePendingTotp(ctx context.Context, setting *Setting, u *user.User, now time.Time) (string, error) {
	secret, uri, err := GenerateTotpSecret(s.issuer, u.Email)
	if err != nil {
		return "", err
	}
	ciphertext, metadata, err := s.cipher.Encrypt(secret)
	if err != nil {
		return "", err
	}
	setting.StagePendingTotp(ciphertext, metadata, now)
	if err := s.repo.Save(ctx, setting); err != nil {
		return "", err
	}
	slog.Info("pending totp secret staged", "userId", setting.UserID)
	return uri, nil
}

// VerifyTwoFactor confirms enrollment with a code for the given
// method. TOTP codes are checked against the secret; notifyable codes
// are consumed from the otp store. On success the setting becomes
// enabled and verified.
func (s *Service) VerifyTwoFactor(ctx context.Context, u *user.User, method Method, code string) error {
	now := s.now().UTC()

	setting, err := s.repo.FindByUserID(ctx, u.ID)
	if err != nil {
		return err
	}

	if method == MethodTotp {
		ciphertext, metadata := setting.SecretCiphertext, setting.SecretMetadata
		promotePending := setting.PendingMethod != nil && *setting.PendingMethod == MethodTotp
		if promotePending {
			ciphertext, metadata = setting.PendingSecretCiphertext, setting.PendingSecretMetadata
		}
		if metadata == nil {
			return autherr.Conflict("no totp secret configured")
		}

		if err := s.checkTotpCode(ciphertext, *metadata, code); err != nil {
			return err
		}
		if promotePending {
			if err := setting.PromoteToTotp(now); err != nil {
				return err
			}
		} else if err := setting.Verify(MethodTotp, now); err != nil {
			return err
		}
		return s.repo.Save(ctx, setting)
	}

	if _, err := s.otpManager.Consume(ctx, u.ID, code); err != nil {
		return err
	}
	if err := setting.Verify(method, now); err != nil {
		return err
	}

	slog.Info("two-factor setting verified", "userId", u.ID, "method", method)
	return s.repo.Save(ctx, setting)
}

// UpdateToTotp promotes a staged pending TOTP secret to the current
// method after the user proves possession with a valid passcode.
func (s *Service) UpdateToTotp(ctx context.Context, u *user.User, code string) error {
	now := s.now().UTC()

	setting, err := s.repo.FindByUserID(ctx, u.ID)
	if err != nil {
		return err
	}
	if setting.PendingMethod == nil || *setting.PendingMethod != MethodTotp || setting.PendingSecretMetadata == nil {
		return autherr.Conflict("no pending totp secret staged")
	}

	if err := s.checkTotpCode(setting.PendingSecretCiphertext, *setting.PendingSecretMetadata, code); err != nil {
		return err
	}
	if err := setting.PromoteToTotp(now); err != nil {
		return err
	}

	slog.Info("two-factor method promoted to totp", "userId", u.ID)
	return s.repo.Save(ctx, setting)
}

// VerifyChallenge checks a login-time second factor against the user's
// enabled setting.
func (s *Service) VerifyChallenge(ctx context.Context, u *user.User, code string) error {
	setting, err := s.repo.FindByUserID(ctx, u.ID)
	if err != nil {
		return err
	}

	if setting.Method == MethodTotp {
		if setting.SecretMetadata == nil {
			return autherr.Conflict("no totp secret configured")
		}
		return s.checkTotpCode(setting.SecretCiphertext, *setting.SecretMetadata, code)
	}

	_, err = s.otpManager.Consume(ctx, u.ID, code)
	return err
}

// SendChallenge dispatches a login challenge for a notifyable method
// and reports which method the user is expected to answer with.
func (s *Service) SendChallenge(ctx context.Context, u *user.User) (Method, error) {
	setting, err := s.repo.FindByUserID(ctx, u.ID)
	if err != nil {
		return "", err
	}

	if setting.Method.IsNotifyable() {
		if err := s.sendChallengeCode(ctx, u, setting.Method, otp.PurposeTwoFactorAuthentication); err != nil {
			return "", err
		}
	}
	return setting.Method, nil
}

// VerifiedSetting returns the user's setting only when it is enabled
// and verified; anything else reports not-found. Login uses this to
// decide whether a second factor is required.
func (s *Service) VerifiedSetting(ctx context.Context, userID uuid.UUID) (*Setting, error) {
	setting, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !setting.IsEnabled || !setting.IsVerified() {
		return nil, autherr.NotFound("two-factor setting", userID.String())
	}
	return setting, nil
}

// DisableTwoFactor removes the user's setting after the user proves
// possession of the current second factor. An unverified setting can
// be discarded without a code.
func (s *Service) DisableTwoFactor(ctx context.Context, u *user.User, code string) error {
	setting, err := s.repo.FindByUserID(ctx, u.ID)
	if err != nil {
		return err
	}

	if setting.IsEnabled && setting.IsVerified() {
		if err := s.VerifyChallenge(ctx, u, code); err != nil {
			return err
		}
	}

	slog.Info("two-factor authentication disabled", "userId", u.ID)
	return s.repo.Delete(ctx, u.ID)
}

func (s *Service) checkTotpCode(ciphertext string, metadata secrets.Metadata, code string) error {
	secret, err := s.cipher.Decrypt(ciphertext, metadata)
	if err != nil {
		return err
	}
	valid, err := ValidateTotpPasscode(secret, code)
	if err != nil {
		return autherr.InternalWrap(err, "failed to validate totp passcode")
	}
	if !valid {
		return autherr.New(autherr.ErrCodeOtpCodeInvalid, "invalid otp code")
	}
	return nil
}

func (s *Service) sendChallengeCode(ctx context.Context, u *user.User, method Method, purpose otp.Purpose) error {
	recipient := u.Email
	if method == MethodSmsOtp {
		recipient = u.Phone
	}

	_, err := s.otpManager.Send(ctx, otp.SendParams{
		UserID:    u.ID,
		Recipient: recipient,
		FirstName: u.FirstName,
		Purpose:   purpose,
		Channel:   method.OtpChannel(),
	})
	return err
}
