package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidSession     = errors.New("invalid_session")
	ErrSessionExpired     = errors.New("session_expired")
	ErrSessionRevoked     = errors.New("session_revoked")
	ErrAccountInactive    = errors.New("account_inactive")
)

// Session is a server-side login session. Only the SHA-256 digest of the
// bearer token is stored; the token itself exists client-side only.
type Session struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	UserID    snowflake.ID `gorm:"not null;index"`
	TokenHash string       `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Session) TableName() string { return "sessions" }

type Service interface {
	// Login verifies the credentials and opens a session, returning the
	// opaque bearer token together with the user.
	Login(ctx context.Context, email, password string) (string, *userdomain.User, error)

	// Authenticate resolves a bearer token to its user.
	Authenticate(ctx context.Context, token string) (*userdomain.User, error)

	// Logout revokes the session behind the token. Revoking an unknown or
	// already-revoked token is not an error.
	Logout(ctx context.Context, token string) error
}
