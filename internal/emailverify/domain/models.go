package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// TokenTTL is how long a verification link stays valid.
const TokenTTL = 24 * time.Hour

var (
	ErrTokenInvalid = errors.New("verification_token_invalid")
	ErrTokenExpired = errors.New("verification_token_expired")
	ErrTokenUsed    = errors.New("verification_token_used")
)

// VerificationToken is a single-use email verification secret.
type VerificationToken struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"not null;index"`
	Token     string       `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (VerificationToken) TableName() string { return "email_verification_tokens" }

type Service interface {
	// Issue creates a fresh token for the user and mails the verification
	// link. Older unused tokens for the same user are invalidated.
	Issue(ctx context.Context, userID snowflake.ID, email, name string) error

	// Verify consumes the token and marks the owning user verified.
	Verify(ctx context.Context, token string) (snowflake.ID, error)

	// Resend issues a new token for an unverified address. Unknown or
	// already-verified addresses return nil so the endpoint does not leak
	// which emails exist.
	Resend(ctx context.Context, email string) error
}
