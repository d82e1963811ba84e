package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/clock"
	creditdomain "github.com/mi42hq/mi42/internal/credit/domain"
	emailverifydomain "github.com/mi42hq/mi42/internal/emailverify/domain"
	freemiumdomain "github.com/mi42hq/mi42/internal/freemium/domain"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"github.com/mi42hq/mi42/internal/observability/metrics"
	"github.com/mi42hq/mi42/internal/registration/domain"
	userdomain "github.com/mi42hq/mi42/internal/user/domain"
	dberr "github.com/mi42hq/mi42/pkg/db"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type service struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    clock.Clock
	users    userdomain.Repository
	credits  creditdomain.Service
	freemium freemiumdomain.Service
	verify   emailverifydomain.Service
	metrics  *metrics.Metrics
}

func Provide(
	db *gorm.DB,
	node *snowflake.Node,
	clk clock.Clock,
	users userdomain.Repository,
	credits creditdomain.Service,
	freemium freemiumdomain.Service,
	verify emailverifydomain.Service,
	m *metrics.Metrics,
) domain.Service {
	return &service{
		db:       db,
		node:     node,
		clock:    clk,
		users:    users,
		credits:  credits,
		freemium: freemium,
		verify:   verify,
		metrics:  m,
	}
}

func (s *service) Register(ctx context.Context, in domain.Input) (*userdomain.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.CompanyName = strings.TrimSpace(in.CompanyName)

	if err := validate(in); err != nil {
		s.metrics.RecordRegistration(ctx, "rejected")
		return nil, err
	}
	emailDomain := freemiumdomain.ExtractDomain(in.Email)

	existing, err := s.users.FindByEmail(ctx, s.db, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.metrics.RecordRegistration(ctx, "rejected")
		return nil, domain.ErrEmailTaken
	}

	// An expired tracking window is rolled over before the slot check so the
	// availability read itself stays free of writes.
	if err := s.freemium.ResetIfExpired(ctx, emailDomain); err != nil {
		return nil, err
	}
	avail, err := s.freemium.CheckAvailability(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		occupants, err := s.freemium.FreemiumUsers(ctx, avail.Domain)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordRegistration(ctx, "exhausted")
		return nil, &domain.ExhaustedError{
			Domain:    avail.Domain,
			Users:     occupants,
			ResetDate: avail.ResetDate,
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &userdomain.User{
		ID:           s.node.Generate(),
		Email:        in.Email,
		PasswordHash: string(hash),
		Name:         in.Name,
		CompanyName:  in.CompanyName,
		EmailDomain:  emailDomain,
		Role:         userdomain.RoleExternal,
		IsFreemium:   !avail.IsFreemail,
		IsActive:     true,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.users.Insert(ctx, s.db, user); err != nil {
		// The availability check above races with concurrent registrations;
		// the unique index is the arbiter.
		if dberr.IsDuplicateKeyErr(err) {
			s.metrics.RecordRegistration(ctx, "rejected")
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}

	if err := s.freemium.IncrementCount(ctx, in.Email); err != nil {
		return nil, err
	}
	if err := s.credits.EnsureAccount(ctx, user.ID); err != nil {
		return nil, err
	}

	// Delivery problems must not fail the registration.
	if err := s.verify.Issue(ctx, user.ID, user.Email, user.Name); err != nil {
		logger.FromContext(ctx).Error("issuing verification token failed",
			zap.Int64("user_id", int64(user.ID)),
			zap.Error(err),
		)
	}

	s.metrics.RecordRegistration(ctx, "created")
	logger.FromContext(ctx).Info("user registered",
		zap.Int64("user_id", int64(user.ID)),
		zap.String("domain", emailDomain),
	)
	return user, nil
}

func validate(in domain.Input) error {
	if in.Email == "" || in.Password == "" {
		return domain.ErrMissingRequired
	}
	if !in.AcceptedTerms {
		return domain.ErrMissingConsent
	}
	if strings.Count(in.Email, "@") != 1 {
		return domain.ErrInvalidEmail
	}
	if freemiumdomain.ExtractDomain(in.Email) == "" {
		return domain.ErrInvalidDomain
	}
	if len(in.Password) < domain.MinPasswordLength {
		return domain.ErrWeakPassword
	}
	return nil
}
