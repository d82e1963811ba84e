package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/pkg/db/pagination"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionPurchase TransactionType = "purchase"
	TransactionUsage    TransactionType = "usage"
	TransactionRefund   TransactionType = "refund"
	TransactionBonus    TransactionType = "bonus"
)

var (
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrAccountNotFound     = errors.New("credit_account_not_found")
	ErrInvalidAmount       = errors.New("invalid_amount")
)

// StartingCredits is the welcome grant provisioned for every new account.
const StartingCredits = 5000

// CreditAccount holds the current balance for one user. The balance is
// derived state: it always equals the sum of the account's transactions.
type CreditAccount struct {
	UserID    snowflake.ID `gorm:"primaryKey;column:user_id"`
	Balance   int64        `gorm:"not null;default:0"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// CreditTransaction is one append-only ledger entry. Amount is positive for
// purchase, refund and bonus entries and negative for usage entries.
type CreditTransaction struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	UserID      snowflake.ID    `gorm:"not null;index"`
	Type        TransactionType `gorm:"type:text;not null"`
	Amount      int64           `gorm:"not null"`
	Description string          `gorm:"type:text"`
	Reference   string          `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

type Service interface {
	// EnsureAccount creates the account with the starting grant if it does
	// not exist yet. Calling it again for the same user is a no-op.
	EnsureAccount(ctx context.Context, userID snowflake.ID) error

	// Deduct atomically subtracts amount from the balance and appends a
	// usage transaction. Returns ErrInsufficientCredits when the balance
	// would go negative; the account is left untouched in that case.
	Deduct(ctx context.Context, userID snowflake.ID, amount int64, description, reference string) error

	// Add credits the account and appends a transaction of the given type.
	Add(ctx context.Context, userID snowflake.ID, amount int64, txType TransactionType, description, reference string) error

	// AddTx is Add running inside the caller's transaction, so the caller
	// can keep its own writes atomic with the ledger entry.
	AddTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, amount int64, txType TransactionType, description, reference string) error

	Balance(ctx context.Context, userID snowflake.ID) (int64, error)
	History(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]CreditTransaction, error)
}
