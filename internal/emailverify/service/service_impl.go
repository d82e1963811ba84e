package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	"github.com/mi42hq/mi42/internal/emailverify/domain"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"github.com/mi42hq/mi42/internal/providers/email"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock clock.Clock
	users userdomain.Repository
	mail  email.Provider
	cfg   config.Config
}

func Provide(db *gorm.DB, node *snowflake.Node, clk clock.Clock, users userdomain.Repository, mail email.Provider, cfg config.Config) domain.Service {
	return &service{db: db, node: node, clock: clk, users: users, mail: mail, cfg: cfg}
}

func (s *service) Issue(ctx context.Context, userID snowflake.ID, emailAddr, name string) error {
	token, err := newToken()
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A newly issued link supersedes all earlier ones.
		if err := tx.WithContext(ctx).Exec(
			`UPDATE email_verification_tokens SET used_at = ? WHERE user_id = ? AND used_at IS NULL`,
			now, userID,
		).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).Exec(
			`INSERT INTO email_verification_tokens (id, user_id, token, expires_at, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			s.node.Generate(), userID, token, now.Add(domain.TokenTTL), now,
		).Error
	})
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	link := fmt.Sprintf("%s/api/auth/verify-email?token=%s", s.cfg.BaseURL, token)
	if err := s.mail.Send(ctx, emailAddr, "Bitte bestätigen Sie Ihre E-Mail-Adresse", verificationBody(name, link)); err != nil {
		// The token is valid either way; resend covers delivery failures.
		logger.FromContext(ctx).Error("verification mail delivery failed",
			zap.String("email", emailAddr),
			zap.Error(err),
		)
	}
	return nil
}

func (s *service) Verify(ctx context.Context, token string) (snowflake.ID, error) {
	if len(token) != tokenLength {
		return 0, domain.ErrTokenInvalid
	}

	var row domain.VerificationToken
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, token, expires_at, used_at, created_at
		 FROM email_verification_tokens WHERE token = ?`,
		token,
	).Scan(&row).Error; err != nil {
		return 0, err
	}
	if row.ID == 0 {
		return 0, domain.ErrTokenInvalid
	}
	if row.UsedAt != nil {
		return 0, domain.ErrTokenUsed
	}
	now := s.clock.Now()
	if now.After(row.ExpiresAt) {
		return 0, domain.ErrTokenExpired
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Exec(
			`UPDATE email_verification_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL`,
			now, row.ID,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrTokenUsed
		}
		return s.users.MarkEmailVerified(ctx, tx, row.UserID)
	})
	if err != nil {
		return 0, err
	}

	logger.FromContext(ctx).Info("email verified", zap.Int64("user_id", int64(row.UserID)))
	return row.UserID, nil
}

func (s *service) Resend(ctx context.Context, emailAddr string) error {
	user, err := s.users.FindByEmail(ctx, s.db, emailAddr)
	if err != nil {
		return err
	}
	if user == nil || user.EmailVerified {
		return nil
	}
	return s.Issue(ctx, user.ID, user.Email, user.Name)
}

const tokenLength = 64

func newToken() (string, error) {
	buf := make([]byte, tokenLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func verificationBody(name, link string) string {
	greeting := "Hallo"
	if name != "" {
		greeting = "Hallo " + name
	}
	return fmt.Sprintf(`<html><body>
<p>%s,</p>
<p>vielen Dank für Ihre Registrierung bei Mi42. Bitte bestätigen Sie Ihre E-Mail-Adresse über den folgenden Link:</p>
<p><a href="%s">E-Mail-Adresse bestätigen</a></p>
<p>Der Link ist 24 Stunden gültig.</p>
<p>Ihr Mi42 Team</p>
</body></html>`, greeting, link)
}
