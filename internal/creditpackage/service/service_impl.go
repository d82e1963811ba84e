package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/clock"
	creditdomain "github.com/mi42hq/mi42/internal/credit/domain"
	"github.com/mi42hq/mi42/internal/creditpackage/domain"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   clock.Clock
	credits creditdomain.Service
}

func Provide(db *gorm.DB, node *snowflake.Node, clk clock.Clock, credits creditdomain.Service) domain.Service {
	return &service{db: db, node: node, clock: clk, credits: credits}
}

func (s *service) ListActive(ctx context.Context) ([]domain.Package, error) {
	var packages []domain.Package
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, name, credits, price_cents, currency, is_active, sort_order
		 FROM credit_packages
		 WHERE is_active = ?
		 ORDER BY sort_order ASC, id ASC`,
		true,
	).Scan(&packages).Error
	if err != nil {
		return nil, err
	}
	return packages, nil
}

func (s *service) Purchase(ctx context.Context, userID snowflake.ID, packageID int64) (*domain.Purchase, error) {
	var pkg domain.Package
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, name, credits, price_cents, currency, is_active, sort_order
		 FROM credit_packages WHERE id = ? AND is_active = ?`,
		packageID, true,
	).Scan(&pkg).Error
	if err != nil {
		return nil, err
	}
	if pkg.ID == 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrPackageNotFound, packageID)
	}

	purchase := &domain.Purchase{
		ID:         s.node.Generate(),
		UserID:     userID,
		PackageID:  pkg.ID,
		Credits:    pkg.Credits,
		PriceCents: pkg.PriceCents,
		Currency:   pkg.Currency,
		CreatedAt:  s.clock.Now(),
	}
	// The payment row and the ledger credit commit together: a failed credit
	// grant must not leave a completed purchase behind.
	reference := fmt.Sprintf("purchase:%d", purchase.ID)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO credit_purchases (id, user_id, package_id, credits, price_cents, currency, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			purchase.ID, purchase.UserID, purchase.PackageID, purchase.Credits,
			purchase.PriceCents, purchase.Currency, purchase.CreatedAt,
		).Error; err != nil {
			return err
		}
		return s.credits.AddTx(ctx, tx, userID, pkg.Credits, creditdomain.TransactionPurchase, pkg.Name, reference)
	})
	if err != nil {
		return nil, fmt.Errorf("credit purchased package: %w", err)
	}

	logger.FromContext(ctx).Info("credit package purchased",
		zap.Int64("user_id", int64(userID)),
		zap.Int64("package_id", pkg.ID),
		zap.Int64("credits", pkg.Credits),
	)
	return purchase, nil
}
