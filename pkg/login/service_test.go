package login

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kandriws/authcore/pkg/config"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/notification"
	"github.com/kandriws/authcore/pkg/otp"
	"github.com/kandriws/authcore/pkg/token"
	"github.com/kandriws/authcore/pkg/tokengenerator"
	"github.com/kandriws/authcore/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOtpManager struct {
	sent  []otp.SendParams
	codes map[uuid.UUID]string
}

func newFakeOtpManager() *fakeOtpManager {
	return &fakeOtpManager{codes: make(map[uuid.UUID]string)}
}

func (f *fakeOtpManager) Send(ctx context.Context, params otp.SendParams) (*otp.Otp, error) {
	f.sent = append(f.sent, params)
	f.codes[params.UserID] = "111111"
	return &otp.Otp{UserID: params.UserID, Code: "111111", Channel: params.Channel, Purpose: params.Purpose}, nil
}

func (f *fakeOtpManager) Consume(ctx context.Context, userID uuid.UUID, code string) (*otp.Otp, error) {
	if f.codes[userID] != code {
		return nil, autherr.New(autherr.ErrCodeOtpCodeInvalid, "invalid otp code")
	}
	delete(f.codes, userID)
	return &otp.Otp{UserID: userID, Code: code}, nil
}

type fakeNotifier struct {
	notices []notification.NotificationData
	types   []notification.NoticeType
	err     error
}

func (f *fakeNotifier) Send(noticeType notification.NoticeType, system notification.NotificationSystem, data notification.NotificationData) error {
	if f.err != nil {
		return f.err
	}
	f.notices = append(f.notices, data)
	f.types = append(f.types, noticeType)
	return nil
}

type loginFixture struct {
	svc      *Service
	users    *user.InMemRepository
	tokens   *token.InMemRepository
	otps     *fakeOtpManager
	notifier *fakeNotifier
	tokenGen *tokengenerator.JwtTokenGenerator
}

func newFixture(t *testing.T) *loginFixture {
	t.Helper()
	tokenGen, err := tokengenerator.NewJwtTokenGenerator(config.JWTConfig{
		AccessSecret:        "access-secret-for-tests",
		RefreshSecret:       "refresh-secret-for-tests",
		ResetPasswordSecret: "reset-secret-for-tests",
		AccessTokenExpiry:   "15m",
		RefreshTokenExpiry:  "24h",
		ResetTokenExpiry:    "1h",
		Issuer:              "authcore",
		Audience:            "authcore",
	})
	require.NoError(t, err)

	f := &loginFixture{
		users:    user.NewInMemRepository(),
		tokens:   token.NewInMemRepository(),
		otps:     newFakeOtpManager(),
		notifier: &fakeNotifier{},
		tokenGen: tokenGen,
	}
	f.svc = NewService(f.users, f.tokens, tokenGen, f.otps, f.notifier,
		WithResetBaseURL("https://example.com/reset-password"))
	return f
}

func (f *loginFixture) register(t *testing.T) *user.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterParams{
		Email:     "a@b.com",
		Password:  "P@ssw0rd1",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	return u
}

func TestRegisterCreatesUnverifiedUserAndSendsCode(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)

	assert.Equal(t, "a@b.com", u.Email)
	assert.False(t, u.IsVerified())
	assert.NotEqual(t, "P@ssw0rd1", u.PasswordHash)

	require.Len(t, f.otps.sent, 1)
	assert.Equal(t, otp.PurposeEmailVerification, f.otps.sent[0].Purpose)
	assert.Equal(t, otp.ChannelEmail, f.otps.sent[0].Channel)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, err := f.svc.Register(context.Background(), RegisterParams{
		Email:    "A@B.com", // same address, different case
		Password: "An0ther!",
	})
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeAlreadyExists))
}

func TestVerifyEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t)

	require.NoError(t, f.svc.VerifyEmail(ctx, u.Email, "111111"))

	got, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified())

	require.NotEmpty(t, f.notifier.types)
	assert.Equal(t, notification.WelcomeNotice, f.notifier.types[len(f.notifier.types)-1])

	err = f.svc.VerifyEmail(ctx, u.Email, "111111")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeConflict))
}

func TestVerifyEmailRejectsBadCode(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)

	err := f.svc.VerifyEmail(context.Background(), u.Email, "999999")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeOtpCodeInvalid))
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.Empty(t, f.notifier.notices)
}

func TestForgotPasswordSwallowsNotifyFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t)

	f.notifier.err = assert.AnError
	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))
	assert.Empty(t, f.notifier.notices)
}

func resetTokenFromNotice(t *testing.T, data notification.NotificationData) string {
	t.Helper()
	link := data.Data["ResetLink"]
	idx := strings.Index(link, "token=")
	require.GreaterOrEqual(t, idx, 0)
	return link[idx+len("token="):]
}

func TestResetPasswordFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t)

	require.NoError(t, f.svc.ForgotPassword(ctx, u.Email))
	require.Len(t, f.notifier.notices, 1)
	resetToken := resetTokenFromNotice(t, f.notifier.notices[0])

	require.NoError(t, f.svc.ResetPassword(ctx, resetToken, "N3w-P@ss"))

	got, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified(), "reset proves mailbox control and verifies the email")

	match, err := NewBcryptHasher().Verify("N3w-P@ss", got.PasswordHash)
	require.NoError(t, err)
	assert.True(t, match)

	// The token was consumed: a replay fails.
	err = f.svc.ResetPassword(ctx, resetToken, "Again-1!")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeConflict))
}

func TestResetPasswordRejectsGarbageToken(t *testing.T) {
	f := newFixture(t)

	err := f.svc.ResetPassword(context.Background(), "not-a-token", "N3w-P@ss")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeTokenInvalid))
}

func TestResetPasswordRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	u := f.register(t)

	// A valid token of the wrong type must not pass reset validation.
	accessToken, _, err := f.tokenGen.Generate(tokengenerator.TokenTypeAccess, tokengenerator.GenerateParams{
		UserID: u.ID,
		Email:  u.Email,
	})
	require.NoError(t, err)

	err = f.svc.ResetPassword(context.Background(), accessToken, "N3w-P@ss")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeTokenInvalid))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t)

	err := f.svc.ChangePassword(ctx, u.ID, "wrong-password", "N3w-P@ss")
	require.Error(t, err)
	assert.True(t, autherr.IsCode(err, autherr.ErrCodeInvalidCredentials))

	require.NoError(t, f.svc.ChangePassword(ctx, u.ID, "P@ssw0rd1", "N3w-P@ss"))

	got, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	match, err := NewBcryptHasher().Verify("N3w-P@ss", got.PasswordHash)
	require.NoError(t, err)
	assert.True(t, match)

	// A password-changed notice went out.
	require.NotEmpty(t, f.notifier.types)
	assert.Equal(t, notification.PasswordChangedNotice, f.notifier.types[len(f.notifier.types)-1])
}
