package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/pkg/db/pagination"
	"gorm.io/datatypes"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EntryType string

const (
	TypeAPICall  EntryType = "api_call"
	TypeLLMUsage EntryType = "llm_usage"
	TypeError    EntryType = "error"
	TypeAuth     EntryType = "auth"
	TypeSystem   EntryType = "system"
)

// Entry is one audit row. Details holds free-form structured context.
type Entry struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	Level     Level          `gorm:"type:text;not null"`
	Type      EntryType      `gorm:"type:text;not null;index"`
	Message   string         `gorm:"type:text;not null"`
	UserID    *snowflake.ID  `gorm:"index"`
	Details   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

func (Entry) TableName() string { return "system_logs" }

// Query filters the audit trail. Zero values mean "any".
type Query struct {
	Level  Level
	Type   EntryType
	UserID snowflake.ID
	Page   pagination.Pagination
}

type Service interface {
	// Write appends an audit entry. Failures are swallowed after logging:
	// auditing must never break the operation being audited.
	Write(ctx context.Context, level Level, entryType EntryType, message string, userID *snowflake.ID, details map[string]any)

	// List returns matching entries, newest first.
	List(ctx context.Context, q Query) ([]Entry, error)
}
