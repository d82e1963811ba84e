package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleInternal Role = "internal"
	RoleExternal Role = "external"
)

var (
	ErrNotFound   = errors.New("user_not_found")
	ErrEmailTaken = errors.New("email_taken")
)

// User is a registered account. EmailDomain is the lower-cased domain part
// of the email, captured at registration for freemium tracking.
type User struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	Email         string       `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash  string       `gorm:"type:text;not null"`
	Name          string       `gorm:"type:text"`
	CompanyName   string       `gorm:"type:text"`
	EmailDomain   string       `gorm:"type:text;not null;index"`
	Role          Role         `gorm:"type:text;not null;default:external"`
	IsFreemium    bool         `gorm:"not null;default:true"`
	IsActive      bool         `gorm:"not null;default:true"`
	EmailVerified bool         `gorm:"not null;default:false"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastSignedIn  *time.Time
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	ListFreemiumByDomain(ctx context.Context, db *gorm.DB, domain string, limit int) ([]*User, error)
	MarkEmailVerified(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	TouchLastSignedIn(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
