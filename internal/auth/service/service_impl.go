package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/auth/domain"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	"github.com/mi42hq/mi42/internal/observability/logger"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock clock.Clock
	users userdomain.Repository
	cfg   config.Config
}

func Provide(db *gorm.DB, node *snowflake.Node, clk clock.Clock, users userdomain.Repository, cfg config.Config) domain.Service {
	return &service{db: db, node: node, clock: clk, users: users, cfg: cfg}
}

func (s *service) Login(ctx context.Context, email, password string) (string, *userdomain.User, error) {
	user, err := s.users.FindByEmail(ctx, s.db, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		// Burn a comparison anyway so unknown emails take as long as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, domain.ErrAccountInactive
	}

	token, err := newToken()
	if err != nil {
		return "", nil, err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			s.node.Generate(), user.ID, hashToken(token), now.Add(s.ttl()), now,
		).Error; err != nil {
			return err
		}
		return s.users.TouchLastSignedIn(ctx, tx, user.ID, now)
	})
	if err != nil {
		return "", nil, fmt.Errorf("open session: %w", err)
	}
	user.LastSignedIn = &now

	logger.FromContext(ctx).Info("user logged in", zap.Int64("user_id", int64(user.ID)))
	return token, user, nil
}

func (s *service) Authenticate(ctx context.Context, token string) (*userdomain.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, domain.ErrInvalidSession
	}

	var session domain.Session
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		 FROM sessions WHERE token_hash = ?`,
		hashToken(token),
	).Scan(&session).Error; err != nil {
		return nil, err
	}
	if session.ID == 0 {
		return nil, domain.ErrInvalidSession
	}
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if s.clock.Now().After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	user, err := s.users.FindByID(ctx, s.db, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, domain.ErrInvalidSession
	}
	return user, nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Exec(
		`UPDATE sessions SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
		s.clock.Now(), hashToken(token),
	).Error
}

const defaultSessionTTL = 7 * 24 * time.Hour

func (s *service) ttl() time.Duration {
	if s.cfg.SessionTTL > 0 {
		return s.cfg.SessionTTL
	}
	return defaultSessionTTL
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// dummyHash is bcrypt of an unguessable constant, used to equalize timing.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("mi42-timing-equalizer"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}()
