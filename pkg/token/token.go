package token

import (
	"time"

	"github.com/google/uuid"
	autherr "github.com/kandriws/authcore/pkg/errors"
	"github.com/kandriws/authcore/pkg/tokengenerator"
)

// Metadata records where a token was issued from.
type Metadata struct {
	IPAddress string
	UserAgent string
}

// Token is the server-side record of an issued token, keyed by the
// token's jti. Refresh tokens exist until rotation or logout deletes
// them; reset tokens are instead consumed exactly once via ConsumedAt.
type Token struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Type       tokengenerator.TokenType
	ExpiresAt  time.Time
	Metadata   Metadata
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// New creates a token record. The expiry must be strictly in the future.
func New(id, userID uuid.UUID, tokenType tokengenerator.TokenType, expiresAt time.Time, metadata Metadata, now time.Time) (*Token, error) {
	if !expiresAt.After(now) {
		return nil, autherr.New(autherr.ErrCodeInvalidInput, "token expiry must be in the future")
	}
	return &Token{
		ID:        id,
		UserID:    userID,
		Type:      tokenType,
		ExpiresAt: expiresAt,
		Metadata:  metadata,
		CreatedAt: now,
	}, nil
}

// Reconstitute rebuilds a Token from persisted state.
func Reconstitute(id, userID uuid.UUID, tokenType tokengenerator.TokenType, expiresAt time.Time, metadata Metadata, consumedAt *time.Time, createdAt time.Time) *Token {
	return &Token{
		ID:         id,
		UserID:     userID,
		Type:       tokenType,
		ExpiresAt:  expiresAt,
		Metadata:   metadata,
		ConsumedAt: consumedAt,
		CreatedAt:  createdAt,
	}
}

func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *Token) IsConsumed() bool {
	return t.ConsumedAt != nil
}

// Consume marks the token consumed. A second call fails.
func (t *Token) Consume(now time.Time) error {
	if t.IsConsumed() {
		return autherr.Conflict("token has already been consumed")
	}
	consumedAt := now
	t.ConsumedAt = &consumedAt
	return nil
}
