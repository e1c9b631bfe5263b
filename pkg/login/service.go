package login

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/notification"
	"github.com/kandriws/authcore/pkg/otp"
	"github.com/kandriws/authcore/pkg/token"
	"github.com/kandriws/authcore/pkg/tokengenerator"
	"github.com/kandriws/authcore/pkg/user"
)

// OtpManager is the slice of the otp service the account flows use.
type OtpManager interface {
	Send(ctx context.Context, params otp.SendParams) (*otp.Otp, error)
	Consume(ctx context.Context, userID uuid.UUID, code string) (*otp.Otp, error)
}

// Notifier delivers account notices. *notification.NotificationManager
// satisfies it.
type Notifier interface {
	Send(noticeType notification.NoticeType, system notification.NotificationSystem, data notification.NotificationData) error
}

// RegisterParams carries the registration request fields.
type RegisterParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Service implements the account lifecycle around login: registration,
// email verification, and the password flows.
type Service struct {
	users        user.Repository
	tokens       token.Repository
	tokenGen     tokengenerator.TokenGenerator
	otpManager   OtpManager
	notifier     Notifier
	hasher       PasswordHasher
	resetBaseURL string
	now          func() time.Time
}

// ServiceOption configures the login service
type ServiceOption func(*Service)

// WithPasswordHasher overrides the default bcrypt hasher
func WithPasswordHasher(hasher PasswordHasher) ServiceOption {
	return func(s *Service) {
		s.hasher = hasher
	}
}

// WithResetBaseURL sets the base URL embedded in reset-password links
func WithResetBaseURL(baseURL string) ServiceOption {
	return func(s *Service) {
		s.resetBaseURL = baseURL
	}
}

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new login service
func NewService(users user.Repository, tokens token.Repository, tokenGen tokengenerator.TokenGenerator,
	otpManager OtpManager, notifier Notifier, opts ...ServiceOption) *Service {
	s := &Service{
		users:      users,
		tokens:     tokens,
		tokenGen:   tokenGen,
		otpManager: otpManager,
		notifier:   notifier,
		hasher:     NewBcryptHasher(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an unverified user and sends an email-verification
// code.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*user.User, error) {
	now := s.now().UTC()

	exists, err := s.users.ExistsByEmail(ctx, params.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, autherr.AlreadyExists("user", params.Email)
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, autherr.InternalWrap(err, "failed to hash password")
	}

	var createParams user.CreateParams
	if err := copier.Copy(&createParams, &params); err != nil {
		return nil, autherr.InternalWrap(err, "failed to map registration params")
	}
	createParams.PasswordHash = hash

	u := user.New(createParams, now)
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}

	if _, err := s.otpManager.Send(ctx, otp.SendParams{
		UserID:    u.ID,
		Recipient: u.Email,
		FirstName: u.FirstName,
		Purpose:   otp.PurposeEmailVerification,
		Channel:   otp.ChannelEmail,
	}); err != nil {
		return nil, err
	}

	slog.Info("user registered", "userId", u.ID)
	return &u, nil
}

// VerifyEmail consumes an email-verification code and marks the user
// verified.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	now := s.now().UTC()

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.IsVerified() {
		return autherr.Conflict("email is already verified")
	}

	if _, err := s.otpManager.Consume(ctx, u.ID, code); err != nil {
		return err
	}

	verified := u.WithVerified(now)
	if err := s.users.Save(ctx, verified); err != nil {
		return err
	}

	err = s.notifier.Send(notification.WelcomeNotice, notification.EmailSystem, notification.NotificationData{
		To:   u.Email,
		Data: map[string]string{"FirstName": u.FirstName},
	})
	if err != nil {
		slog.Warn("failed to send welcome notice", "userId", u.ID, "err", err)
	}

	slog.Info("email verified", "userId", u.ID)
	return nil
}

// ResendVerificationEmail issues a fresh email-verification code.
func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.IsVerified() {
		return autherr.Conflict("email is already verified")
	}

	_, err = s.otpManager.Send(ctx, otp.SendParams{
		UserID:    u.ID,
		Recipient: u.Email,
		FirstName: u.FirstName,
		Purpose:   otp.PurposeEmailVerification,
		Channel:   otp.ChannelEmail,
	})
	return err
}

// ForgotPassword mints a reset token and emails a reset link. An
// unknown email returns silently so callers cannot probe for accounts.
// Notification failure is swallowed: the token stays usable and
// delivery is best-effort, not transactional with issuance.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	now := s.now().UTC()

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if autherr.IsCode(err, autherr.ErrCodeNotFound) {
			return nil
		}
		return err
	}

	jti := uuid.New()
	tokenStr, expiresAt, err := s.tokenGen.Generate(tokengenerator.TokenTypeResetPassword, tokengenerator.GenerateParams{
		UserID: u.ID,
		Email:  u.Email,
		JTI:    jti.String(),
	})
	if err != nil {
		return err
	}

	record, err := token.New(jti, u.ID, tokengenerator.TokenTypeResetPassword, expiresAt, token.Metadata{}, now)
	if err != nil {
		return err
	}
	if err := s.tokens.Save(ctx, record); err != nil {
		return err
	}

	err = s.notifier.Send(notification.PasswordResetNotice, notification.EmailSystem, notification.NotificationData{
		To: u.Email,
		Data: map[string]string{
			"FirstName": u.FirstName,
			"ResetLink": fmt.Sprintf("%s?token=%s", s.resetBaseURL, tokenStr),
			"ExpiresIn": formatExpiry(expiresAt.Sub(now)),
		},
	})
	if err != nil {
		slog.Warn("failed to send password reset notice", "userId", u.ID, "err", err)
	}

	slog.Info("password reset token issued", "userId", u.ID)
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The
// token record is consumed with an atomic check-and-set so two
// concurrent resets with the same token cannot both succeed. Resetting
// also verifies the email if it was not verified yet, since the user
// just proved they control the mailbox.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	now := s.now().UTC()

	payload, err := s.tokenGen.Validate(resetToken, tokengenerator.TokenTypeResetPassword)
	if err != nil {
		return err
	}
	jti, err := uuid.Parse(payload.JTI)
	if err != nil {
		return autherr.New(autherr.ErrCodeTokenInvalid, "invalid token payload")
	}

	record, err := s.tokens.FindByTokenID(ctx, jti)
	if err != nil {
		return err
	}
	if record.IsConsumed() {
		return autherr.Conflict("token has already been consumed")
	}

	won, err := s.tokens.MarkConsumedIfNotConsumed(ctx, jti, now)
	if err != nil {
		return err
	}
	if !won {
		// Lost the race between the consumed check and the set.
		return autherr.Conflict("token has already been consumed")
	}

	u, err := s.users.FindByID(ctx, payload.UserID)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return autherr.InternalWrap(err, "failed to hash password")
	}

	updated := u.WithVerified(now).WithPassword(hash, now)
	if err := s.users.Save(ctx, updated); err != nil {
		return err
	}

	s.notifyPasswordChanged(updated)
	slog.Info("password reset completed", "userId", u.ID)
	return nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	now := s.now().UTC()

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	match, err := s.hasher.Verify(currentPassword, u.PasswordHash)
	if err != nil {
		return autherr.InternalWrap(err, "failed to verify password")
	}
	if !match {
		return autherr.InvalidCredentials()
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return autherr.InternalWrap(err, "failed to hash password")
	}

	updated := u.WithPassword(hash, now)
	if err := s.users.Save(ctx, updated); err != nil {
		return err
	}

	s.notifyPasswordChanged(updated)
	slog.Info("password changed", "userId", userID)
	return nil
}

func (s *Service) notifyPasswordChanged(u user.User) {
	err := s.notifier.Send(notification.PasswordChangedNotice, notification.EmailSystem, notification.NotificationData{
		To:   u.Email,
		Data: map[string]string{"FirstName": u.FirstName},
	})
	if err != nil {
		slog.Warn("failed to send password changed notice", "userId", u.ID, "err", err)
	}
}

func formatExpiry(d time.Duration) string {
	if d >= time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Minutes())
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
