package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/credit/domain"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"github.com/mi42hq/mi42/internal/observability/metrics"
	dberr "github.com/mi42hq/mi42/pkg/db"
	"github.com/mi42hq/mi42/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics
}

func Provide(db *gorm.DB, node *snowflake.Node, clk clock.Clock, m *metrics.Metrics) domain.Service {
	return &service{db: db, node: node, clock: clk, metrics: m}
}

func (s *service) EnsureAccount(ctx context.Context, userID snowflake.ID) error {
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Exec(
			`INSERT INTO credit_accounts (user_id, balance, created_at, updated_at)
			 VALUES (?, ?, ?, ?)`,
			userID, domain.StartingCredits, now, now,
		)
		if res.Error != nil {
			return res.Error
		}
		return tx.WithContext(ctx).Exec(
			`INSERT INTO credit_transactions (id, user_id, type, amount, description, reference, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.node.Generate(), userID, domain.TransactionBonus, int64(domain.StartingCredits),
			"Willkommensguthaben", "", now,
		).Error
	})
	if err != nil {
		if dberr.IsDuplicateKeyErr(err) {
			return nil
		}
		return fmt.Errorf("ensure credit account: %w", err)
	}
	s.metrics.RecordCreditTransaction(ctx, string(domain.TransactionBonus))
	return nil
}

func (s *service) Deduct(ctx context.Context, userID snowflake.ID, amount int64, description, reference string) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional update keeps check and subtraction in one statement,
		// so two racing deductions can never both drain the same credits.
		res := tx.WithContext(ctx).Exec(
			`UPDATE credit_accounts
			 SET balance = balance - ?, updated_at = ?
			 WHERE user_id = ? AND balance >= ?`,
			amount, now, userID, amount,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			exists, err := s.accountExists(ctx, tx, userID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrAccountNotFound
			}
			return domain.ErrInsufficientCredits
		}
		return tx.WithContext(ctx).Exec(
			`INSERT INTO credit_transactions (id, user_id, type, amount, description, reference, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.node.Generate(), userID, domain.TransactionUsage, -amount, description, reference, now,
		).Error
	})
	if err != nil {
		return err
	}
	s.metrics.RecordCreditTransaction(ctx, string(domain.TransactionUsage))
	logger.FromContext(ctx).Debug("credits deducted",
		zap.Int64("user_id", int64(userID)),
		zap.Int64("amount", amount),
	)
	return nil
}

func (s *service) Add(ctx context.Context, userID snowflake.ID, amount int64, txType domain.TransactionType, description, reference string) error {
	return s.AddTx(ctx, s.db, userID, amount, txType, description, reference)
}

func (s *service) AddTx(ctx context.Context, db *gorm.DB, userID snowflake.ID, amount int64, txType domain.TransactionType, description, reference string) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	switch txType {
	case domain.TransactionPurchase, domain.TransactionRefund, domain.TransactionBonus:
	default:
		return fmt.Errorf("transaction type %q cannot credit an account", txType)
	}
	now := s.clock.Now()
	// When db is already transactional this nests as a savepoint, so the
	// balance update and the ledger row commit or roll back with the
	// caller's own writes.
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Exec(
			`UPDATE credit_accounts
			 SET balance = balance + ?, updated_at = ?
			 WHERE user_id = ?`,
			amount, now, userID,
		)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrAccountNotFound
		}
		return tx.WithContext(ctx).Exec(
			`INSERT INTO credit_transactions (id, user_id, type, amount, description, reference, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.node.Generate(), userID, txType, amount, description, reference, now,
		).Error
	})
	if err != nil {
		return err
	}
	s.metrics.RecordCreditTransaction(ctx, string(txType))
	return nil
}

func (s *service) Balance(ctx context.Context, userID snowflake.ID) (int64, error) {
	var row struct {
		UserID  snowflake.ID
		Balance int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT user_id, balance FROM credit_accounts WHERE user_id = ?`,
		userID,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	if row.UserID == 0 {
		return 0, domain.ErrAccountNotFound
	}
	return row.Balance, nil
}

func (s *service) History(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]domain.CreditTransaction, error) {
	page = page.Normalize()
	var txs []domain.CreditTransaction
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, amount, description, reference, created_at
		 FROM credit_transactions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, page.Limit, page.Offset,
	).Scan(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *service) accountExists(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM credit_accounts WHERE user_id = ?`,
		userID,
	).Scan(&count).Error
	return count > 0, err
}
