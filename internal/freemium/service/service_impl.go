package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/freemium/domain"
	"github.com/mi42hq/mi42/internal/observability/logger"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
	dberr "github.com/mi42hq/mi42/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	users userdomain.Repository
	clock clock.Clock
}

func Provide(db *gorm.DB, users userdomain.Repository, clk clock.Clock) domain.Service {
	return &service{db: db, users: users, clock: clk}
}

func (s *service) CheckAvailability(ctx context.Context, email string) (domain.Availability, error) {
	domainName := domain.ExtractDomain(email)
	if domainName == "" {
		return domain.Availability{}, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, email)
	}

	now := s.clock.Now()
	if domain.IsFreemail(domainName) {
		return domain.Availability{
			Available:  true,
			Domain:     domainName,
			UsedSlots:  0,
			Limit:      domain.FreemailLimit,
			ResetDate:  now.AddDate(0, domain.WindowMonths, 0),
			IsFreemail: true,
		}, nil
	}

	row, err := s.find(ctx, domainName)
	if err != nil {
		return domain.Availability{}, err
	}
	if row == nil {
		return domain.Availability{
			Available: true,
			Domain:    domainName,
			UsedSlots: 0,
			Limit:     domain.DomainLimit,
			ResetDate: now.AddDate(0, domain.WindowMonths, 0),
		}, nil
	}

	return domain.Availability{
		Available: row.UserCount < domain.DomainLimit,
		Domain:    domainName,
		UsedSlots: row.UserCount,
		Limit:     domain.DomainLimit,
		ResetDate: row.ResetDate,
	}, nil
}

func (s *service) IncrementCount(ctx context.Context, email string) error {
	domainName := domain.ExtractDomain(email)
	if domainName == "" {
		return fmt.Errorf("%w: %q", domain.ErrUnknownDomain, email)
	}
	if domain.IsFreemail(domainName) {
		return nil
	}

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO freemium_domains (domain, user_count, reset_date, created_at, updated_at)
		 VALUES (?, 1, ?, ?, ?)`,
		domainName, now.AddDate(0, domain.WindowMonths, 0), now, now,
	).Error
	if err == nil {
		return nil
	}
	if !dberr.IsDuplicateKeyErr(err) {
		return err
	}

	res := s.db.WithContext(ctx).Exec(
		`UPDATE freemium_domains
		 SET user_count = user_count + 1, updated_at = ?
		 WHERE domain = ?`,
		now, domainName,
	)
	if res.Error != nil {
		return res.Error
	}
	logger.FromContext(ctx).Info("freemium slot consumed", zap.String("domain", domainName))
	return nil
}

func (s *service) FreemiumUsers(ctx context.Context, domainName string) ([]domain.FreemiumUser, error) {
	users, err := s.users.ListFreemiumByDomain(ctx, s.db, domainName, domain.DomainLimit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FreemiumUser, 0, len(users))
	for _, u := range users {
		out = append(out, domain.FreemiumUser{
			Email:        u.Email,
			Name:         u.Name,
			RegisteredAt: u.CreatedAt,
			LastSignedIn: u.LastSignedIn,
		})
	}
	return out, nil
}

// ResetIfExpired is safe to call repeatedly: the WHERE clause only matches
// rows whose stored reset date is already in the past.
func (s *service) ResetIfExpired(ctx context.Context, domainName string) error {
	domainName = strings.ToLower(strings.TrimSpace(domainName))
	if domainName == "" {
		return fmt.Errorf("%w: empty domain", domain.ErrUnknownDomain)
	}
	if domain.IsFreemail(domainName) {
		return nil
	}

	now := s.clock.Now()
	newReset := now.AddDate(0, domain.WindowMonths, 0)
	res := s.db.WithContext(ctx).Exec(
		`UPDATE freemium_domains
		 SET user_count = 0, reset_date = ?, updated_at = ?
		 WHERE domain = ? AND reset_date <= ?`,
		newReset, now, domainName, now,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		logger.FromContext(ctx).Info("freemium window reset",
			zap.String("domain", domainName),
			zap.Time("reset_date", newReset),
		)
	}
	return nil
}

func (s *service) find(ctx context.Context, domainName string) (*domain.FreemiumDomain, error) {
	var row domain.FreemiumDomain
	err := s.db.WithContext(ctx).Raw(
		`SELECT domain, user_count, reset_date, created_at, updated_at
		 FROM freemium_domains WHERE domain = ?`,
		strings.ToLower(domainName),
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.Domain == "" {
		return nil, nil
	}
	return &row, nil
}
