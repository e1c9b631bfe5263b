package loginflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/login"
	"github.com/kandriws/authcore/pkg/otp"
	"github.com/kandriws/authcore/pkg/ratelimit"
	"github.com/kandriws/authcore/pkg/token"
	"github.com/kandriws/authcore/pkg/tokengenerator"
	"github.com/kandriws/authcore/pkg/twofa"
	"github.com/kandriws/authcore/pkg/user"
)

// TwoFactor is the slice of the twofa service the login gates use.
type TwoFactor interface {
	VerifiedSetting(ctx context.Context, userID uuid.UUID) (*twofa.Setting, error)
	SendChallenge(ctx context.Context, u *user.User) (twofa.Method, error)
	VerifyChallenge(ctx context.Context, u *user.User, code string) error
}

// OtpManager issues email-verification codes for unverified accounts.
type OtpManager interface {
	Send(ctx context.Context, params otp.SendParams) (*otp.Otp, error)
}

// LoginParams carries one login attempt. TwoFactorMethod is optional;
// when set it must name the method the enrolled setting expects.
type LoginParams struct {
	Email           string
	Password        string
	OtpCode         string
	TwoFactorMethod string
	IPAddress       string
	UserAgent       string
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// Result is a completed login: the issued pair plus the authenticated
// user snapshot.
type Result struct {
	Tokens TokenPair
	User   *user.User
}

// Service orchestrates the login state machine: lookup, email
// verification, rate limiting, the MFA gate, the password gate, and
// token issuance. Each gate is hard: failing one stops the attempt.
type Service struct {
	users      user.Repository
	tokens     token.Repository
	tokenGen   tokengenerator.TokenGenerator
	limiter    *ratelimit.Limiter
	twoFactor  TwoFactor
	otpManager OtpManager
	hasher     login.PasswordHasher
	now        func() time.Time
}

// ServiceOption configures the loginflow service
type ServiceOption func(*Service)

// WithPasswordHasher overrides the default bcrypt hasher
func WithPasswordHasher(hasher login.PasswordHasher) ServiceOption {
	return func(s *Service) {
		s.hasher = hasher
	}
}

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new loginflow service
func NewService(users user.Repository, tokens token.Repository, tokenGen tokengenerator.TokenGenerator,
	limiter *ratelimit.Limiter, twoFactor TwoFactor, otpManager OtpManager, opts ...ServiceOption) *Service {
	s := &Service{
		users:      users,
		tokens:     tokens,
		tokenGen:   tokenGen,
		limiter:    limiter,
		twoFactor:  twoFactor,
		otpManager: otpManager,
		hasher:     login.NewBcryptHasher(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login runs the gates in order and issues a token pair on success.
func (s *Service) Login(ctx context.Context, params LoginParams) (*Result, error) {
	// Gate 1: lookup. An unknown email fails exactly like a wrong
	// password.
	u, err := s.users.FindByEmail(ctx, params.Email)
	if err != nil {
		if autherr.IsCode(err, autherr.ErrCodeNotFound) {
			return nil, autherr.InvalidCredentials()
		}
		return nil, err
	}

	// Gate 2: email verification. This one does reveal state, to guide
	// the user to their inbox.
	if !u.IsVerified() {
		if _, err := s.otpManager.Send(ctx, otp.SendParams{
			UserID:    u.ID,
			Recipient: u.Email,
			FirstName: u.FirstName,
			Purpose:   otp.PurposeEmailVerification,
			Channel:   otp.ChannelEmail,
		}); err != nil {
			slog.Warn("failed to send verification code during login", "userId", u.ID, "err", err)
		}
		return nil, autherr.New(autherr.ErrCodeEmailNotVerified, "email is not verified")
	}

	// An active lockout short-circuits before any MFA or password work.
	rateKey := u.ID.String()
	if err := s.limiter.Check(ctx, rateKey); err != nil {
		return nil, err
	}

	// Gate 3: MFA.
	setting, err := s.twoFactor.VerifiedSetting(ctx, u.ID)
	if err != nil && !autherr.IsCode(err, autherr.ErrCodeNotFound) {
		return nil, err
	}
	if setting != nil {
		if params.TwoFactorMethod != "" && params.TwoFactorMethod != string(setting.Method) {
			return nil, autherr.New(autherr.ErrCodeInvalidInput, "two-factor method mismatch").
				WithDetail("method", string(setting.Method))
		}
		if params.OtpCode == "" {
			method, err := s.twoFactor.SendChallenge(ctx, u)
			if err != nil {
				return nil, err
			}
			return nil, autherr.New(autherr.ErrCodeOtpCodeRequired, "otp code required").
				WithDetail("method", string(method))
		}
		if err := s.twoFactor.VerifyChallenge(ctx, u, params.OtpCode); err != nil {
			return nil, s.failedAttempt(ctx, rateKey,
				autherr.New(autherr.ErrCodeOtpCodeInvalid, "invalid otp code"))
		}
	}

	// Gate 4: password.
	match, err := s.hasher.Verify(params.Password, u.PasswordHash)
	if err != nil {
		return nil, autherr.InternalWrap(err, "failed to verify password")
	}
	if !match {
		return nil, s.failedAttempt(ctx, rateKey, autherr.InvalidCredentials())
	}

	// Success: clear the counter, then issue the pair.
	if err := s.limiter.Reset(ctx, rateKey); err != nil {
		return nil, err
	}

	pair, err := s.issuePair(ctx, u, params.IPAddress, params.UserAgent)
	if err != nil {
		return nil, err
	}
	slog.Info("login succeeded", "userId", u.ID)
	return &Result{Tokens: *pair, User: u}, nil
}

// failedAttempt counts the failure and decorates the domain error with
// the current attempt counts. A hit against an already locked window
// returns the lockout error instead.
func (s *Service) failedAttempt(ctx context.Context, rateKey string, domainErr *autherr.Error) error {
	window, err := s.limiter.Hit(ctx, rateKey)
	if err != nil {
		return err
	}
	return domainErr.WithDetails(map[string]interface{}{
		"attempts":           window.Count,
		"remaining_attempts": window.RemainingAttempts(),
	})
}

// issuePair mints an access+refresh pair and persists the refresh
// token's server-side record. Roles and permissions are embedded in
// the access token at issuance; changes to them take effect on the
// next issuance, not immediately.
func (s *Service) issuePair(ctx context.Context, u *user.User, ipAddress, userAgent string) (*TokenPair, error) {
	now := s.now().UTC()

	accessToken, accessExpiresAt, err := s.tokenGen.Generate(tokengenerator.TokenTypeAccess, tokengenerator.GenerateParams{
		UserID:      u.ID,
		Email:       u.Email,
		Roles:       roleClaims(u.Roles),
		Permissions: permissionClaims(u.Permissions),
	})
	if err != nil {
		return nil, err
	}

	jti := uuid.New()
	refreshToken, refreshExpiresAt, err := s.tokenGen.Generate(tokengenerator.TokenTypeRefresh, tokengenerator.GenerateParams{
		UserID: u.ID,
		Email:  u.Email,
		JTI:    jti.String(),
	})
	if err != nil {
		return nil, err
	}

	record, err := token.New(jti, u.ID, tokengenerator.TokenTypeRefresh, refreshExpiresAt,
		token.Metadata{IPAddress: ipAddress, UserAgent: userAgent}, now)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, record); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: refreshExpiresAt,
	}, nil
}

// Refresh validates a refresh token, rotates its server-side record,
// and returns a fresh pair. A record that is already gone fails with
// not-found; the old token cannot be replayed after rotation.
func (s *Service) Refresh(ctx context.Context, refreshToken, ipAddress, userAgent string) (*TokenPair, error) {
	now := s.now().UTC()

	payload, err := s.tokenGen.Validate(refreshToken, tokengenerator.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	oldID, err := uuid.Parse(payload.JTI)
	if err != nil {
		return nil, autherr.New(autherr.ErrCodeTokenInvalid, "invalid token payload")
	}

	if _, err := s.tokens.FindByTokenID(ctx, oldID); err != nil {
		return nil, err
	}

	u, err := s.users.FindByID(ctx, payload.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, accessExpiresAt, err := s.tokenGen.Generate(tokengenerator.TokenTypeAccess, tokengenerator.GenerateParams{
		UserID:      u.ID,
		Email:       u.Email,
		Roles:       roleClaims(u.Roles),
		Permissions: permissionClaims(u.Permissions),
	})
	if err != nil {
		return nil, err
	}

	newID := uuid.New()
	newRefreshToken, refreshExpiresAt, err := s.tokenGen.Generate(tokengenerator.TokenTypeRefresh, tokengenerator.GenerateParams{
		UserID: u.ID,
		Email:  u.Email,
		JTI:    newID.String(),
	})
	if err != nil {
		return nil, err
	}

	replacement, err := token.New(newID, u.ID, tokengenerator.TokenTypeRefresh, refreshExpiresAt,
		token.Metadata{IPAddress: ipAddress, UserAgent: userAgent}, now)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Rotate(ctx, oldID, replacement); err != nil {
		return nil, err
	}

	slog.Info("refresh token rotated", "userId", u.ID)
	return &TokenPair{
		AccessToken:           accessToken,
		AccessTokenExpiresAt:  accessExpiresAt,
		RefreshToken:          newRefreshToken,
		RefreshTokenExpiresAt: refreshExpiresAt,
	}, nil
}

// Logout validates the refresh token and deletes its record without
// reissuing anything.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	payload, err := s.tokenGen.Validate(refreshToken, tokengenerator.TokenTypeRefresh)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(payload.JTI)
	if err != nil {
		return autherr.New(autherr.ErrCodeTokenInvalid, "invalid token payload")
	}

	if err := s.tokens.DeleteByTokenID(ctx, id); err != nil {
		return err
	}
	slog.Info("logout completed", "userId", payload.UserID)
	return nil
}

// LogoutAll revokes every persisted token for the user.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.DeleteByUserID(ctx, userID)
}

func roleClaims(roles []user.Role) []tokengenerator.RoleClaim {
	claims := make([]tokengenerator.RoleClaim, 0, len(roles))
	for _, r := range roles {
		claims = append(claims, tokengenerator.RoleClaim{Name: r.Name, Realm: r.Realm})
	}
	return claims
}

func permissionClaims(permissions []user.Permission) []tokengenerator.PermissionClaim {
	claims := make([]tokengenerator.PermissionClaim, 0, len(permissions))
	for _, p := range permissions {
		claims = append(claims, tokengenerator.PermissionClaim{Name: p.Name, Realm: p.Realm})
	}
	return claims
}
