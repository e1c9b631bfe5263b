package tokengenerator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kandriws/authcore/pkg/config"
	autherr "github.com/kandriws/authcore/pkg/errors"
)

// TokenType selects which signing configuration a token uses. Each
// type has its own secret and expiry.
type TokenType string

const (
	TokenTypeAccess        TokenType = "ACCESS"
	TokenTypeRefresh       TokenType = "REFRESH"
	TokenTypeResetPassword TokenType = "RESET_PASSWORD"
)

// RoleClaim is a role embedded in access-token claims.
type RoleClaim struct {
	Name  string `json:"name"`
	Realm string `json:"realm"`
}

// PermissionClaim is a permission embedded in access-token claims.
type PermissionClaim struct {
	Name  string `json:"name"`
	Realm string `json:"realm"`
}

// Claims is the JWT claim set minted by this package.
type Claims struct {
	Email       string            `json:"email,omitempty"`
	TokenType   string            `json:"token_type,omitempty"`
	Roles       []RoleClaim       `json:"roles,omitempty"`
	Permissions []PermissionClaim `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// TokenPayload is the structured result of validating or decoding a token.
type TokenPayload struct {
	UserID      uuid.UUID
	Email       string
	JTI         string
	TokenType   TokenType
	Roles       []RoleClaim
	Permissions []PermissionClaim
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// GenerateParams carries the identity and optional claims for a new token.
// JTI is embedded only when supplied; refresh and reset tokens carry a
// server-generated jti that doubles as the persisted token record's id.
type GenerateParams struct {
	UserID      uuid.UUID
	Email       string
	JTI         string
	Roles       []RoleClaim
	Permissions []PermissionClaim
}

// TokenGenerator mints and checks typed tokens.
type TokenGenerator interface {
	// Generate mints a signed token of the given type and returns it
	// with its expiry.
	Generate(tokenType TokenType, params GenerateParams) (string, time.Time, error)

	// Validate verifies signature and expiry against the type-specific
	// configuration and returns the payload. Every failure collapses
	// into a single invalid-token error so callers cannot tell which
	// check failed.
	Validate(tokenStr string, tokenType TokenType) (*TokenPayload, error)

	// Decode parses claims without verifying signature or expiry. Use
	// it only on freshly self-issued tokens, never on tokens received
	// from outside.
	Decode(tokenStr string) (*TokenPayload, error)
}

type typeConfig struct {
	secret []byte
	expiry time.Duration
}

// JwtTokenGenerator implements TokenGenerator with HMAC-SHA256 signing.
type JwtTokenGenerator struct {
	configs  map[TokenType]typeConfig
	issuer   string
	audience string
	now      func() time.Time
}

// Option configures a JwtTokenGenerator
type Option func(*JwtTokenGenerator)

// WithClock overrides the time source, used in tests
func WithClock(now func() time.Time) Option {
	return func(g *JwtTokenGenerator) {
		g.now = now
	}
}

// NewJwtTokenGenerator creates a generator from the JWT configuration
func NewJwtTokenGenerator(cfg config.JWTConfig, opts ...Option) (*JwtTokenGenerator, error) {
	accessExpiry, err := cfg.ParseAccessTokenExpiry()
	if err != nil {
		return nil, fmt.Errorf("invalid access token expiry: %w", err)
	}
	refreshExpiry, err := cfg.ParseRefreshTokenExpiry()
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token expiry: %w", err)
	}
	resetExpiry, err := cfg.ParseResetTokenExpiry()
	if err != nil {
		return nil, fmt.Errorf("invalid reset token expiry: %w", err)
	}

	g := &JwtTokenGenerator{
		configs: map[TokenType]typeConfig{
			TokenTypeAccess:        {secret: []byte(cfg.AccessSecret), expiry: accessExpiry},
			TokenTypeRefresh:       {secret: []byte(cfg.RefreshSecret), expiry: refreshExpiry},
			TokenTypeResetPassword: {secret: []byte(cfg.ResetPasswordSecret), expiry: resetExpiry},
		},
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate mints a signed token of the given type
func (g *JwtTokenGenerator) Generate(tokenType TokenType, params GenerateParams) (string, time.Time, error) {
	cfg, exists := g.configs[tokenType]
	if !exists {
		return "", time.Time{}, autherr.Newf(autherr.ErrCodeInvalidInput, "unknown token type: %s", tokenType)
	}

	now := g.now().UTC()
	expiresAt := now.Add(cfg.expiry)

	claims := Claims{
		Email:       params.Email,
		TokenType:   string(tokenType),
		Roles:       params.Roles,
		Permissions: params.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.issuer,
			Subject:   params.UserID.String(),
			ID:        params.JTI,
			Audience:  jwt.ClaimStrings{g.audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(cfg.secret)
	if err != nil {
		slog.Error("Failed to sign JWT claims", "err", err, "tokenType", tokenType)
		return "", time.Time{}, autherr.InternalWrap(err, "failed to sign token")
	}
	return ss, expiresAt, nil
}

// Validate verifies a token against the type-specific configuration
func (g *JwtTokenGenerator) Validate(tokenStr string, tokenType TokenType) (*TokenPayload, error) {
	cfg, exists := g.configs[tokenType]
	if !exists {
		return nil, invalidToken()
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.secret, nil
	}, jwt.WithTimeFunc(g.now))
	if err != nil || !token.Valid {
		return nil, invalidToken()
	}
	if claims.TokenType != string(tokenType) {
		return nil, invalidToken()
	}

	payload, err := payloadFromClaims(claims)
	if err != nil {
		return nil, invalidToken()
	}
	return payload, nil
}

// Decode parses claims without verifying signature or expiry
func (g *JwtTokenGenerator) Decode(tokenStr string) (*TokenPayload, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return nil, invalidToken()
	}

	payload, err := payloadFromClaims(claims)
	if err != nil {
		return nil, invalidToken()
	}
	return payload, nil
}

func payloadFromClaims(claims *Claims) (*TokenPayload, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}

	payload := &TokenPayload{
		UserID:      userID,
		Email:       claims.Email,
		JTI:         claims.ID,
		TokenType:   TokenType(claims.TokenType),
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
	}
	if claims.IssuedAt != nil {
		payload.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		payload.ExpiresAt = claims.ExpiresAt.Time
	}
	return payload, nil
}

// Every validation failure maps to the same error so callers cannot
// distinguish a bad signature from an expired or malformed token.
func invalidToken() error {
	return autherr.New(autherr.ErrCodeTokenInvalid, "invalid token payload")
}
