package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, email, password_hash, name, company_name, email_domain,
		                    role, is_freemium, is_active, email_verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Name,
		user.CompanyName,
		user.EmailDomain,
		user.Role,
		user.IsFreemium,
		user.IsActive,
		user.EmailVerified,
		user.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, password_hash, name, company_name, email_domain,
		        role, is_freemium, is_active, email_verified, created_at, last_signed_in
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, password_hash, name, company_name, email_domain,
		        role, is_freemium, is_active, email_verified, created_at, last_signed_in
		 FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) ListFreemiumByDomain(ctx context.Context, db *gorm.DB, domainName string, limit int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 2
	}
	var users []*domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, password_hash, name, company_name, email_domain,
		        role, is_freemium, is_active, email_verified, created_at, last_signed_in
		 FROM users
		 WHERE email_domain = ? AND is_freemium = ?
		 ORDER BY created_at ASC
		 LIMIT ?`,
		strings.ToLower(strings.TrimSpace(domainName)),
		true,
		limit,
	).Scan(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) MarkEmailVerified(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET email_verified = ? WHERE id = ?`,
		true,
		id,
	).Error
}

func (r *repo) TouchLastSignedIn(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET last_signed_in = ? WHERE id = ?`,
		at.UTC(),
		id,
	).Error
}
