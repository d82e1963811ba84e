package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrPackageNotFound = errors.New("credit_package_not_found")

// Package is a purchasable credit bundle.
type Package struct {
	ID         int64  `gorm:"primaryKey"`
	Name       string `gorm:"type:text;not null"`
	Credits    int64  `gorm:"not null"`
	PriceCents int64  `gorm:"not null"`
	Currency   string `gorm:"type:text;not null;default:EUR"`
	IsActive   bool   `gorm:"not null;default:true"`
	SortOrder  int    `gorm:"not null;default:0"`
}

func (Package) TableName() string { return "credit_packages" }

// Purchase records one completed package purchase. Price and credits are
// copied from the package so later price changes do not rewrite history.
type Purchase struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     snowflake.ID `gorm:"not null;index"`
	PackageID  int64        `gorm:"not null"`
	Credits    int64        `gorm:"not null"`
	PriceCents int64        `gorm:"not null"`
	Currency   string       `gorm:"type:text;not null"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Purchase) TableName() string { return "credit_purchases" }

type Service interface {
	// ListActive returns purchasable packages in display order.
	ListActive(ctx context.Context) ([]Package, error)

	// Purchase books the package: records the purchase and credits the
	// user's account.
	Purchase(ctx context.Context, userID snowflake.ID, packageID int64) (*Purchase, error)
}
