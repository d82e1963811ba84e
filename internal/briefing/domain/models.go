package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/pkg/db/pagination"
)

type BriefingType string

const (
	TypeDaily  BriefingType = "daily"
	TypeWeekly BriefingType = "weekly"
)

type GenerationStatus string

const (
	StatusPending   GenerationStatus = "pending"
	StatusGenerated GenerationStatus = "generated"
	StatusSent      GenerationStatus = "sent"
	StatusFailed    GenerationStatus = "failed"
)

var (
	ErrNotFound    = errors.New("briefing_not_found")
	ErrUnknownType = errors.New("unknown_briefing_type")
)

// Briefing is an agent result belonging to one user.
type Briefing struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	UserID      snowflake.ID `gorm:"not null;index"`
	AgentType   string       `gorm:"type:text;not null"`
	Title       string       `gorm:"type:text;not null"`
	Content     string       `gorm:"type:text;not null"`
	CreditsUsed int64        `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

func (Briefing) TableName() string { return "briefings" }

// AutomatedBriefing is one scheduled generation run. Failed runs are kept
// with their error so the history shows gaps instead of hiding them.
type AutomatedBriefing struct {
	ID           snowflake.ID     `gorm:"primaryKey"`
	BriefingType BriefingType     `gorm:"type:text;not null;index"`
	Status       GenerationStatus `gorm:"type:text;not null"`
	Title        string           `gorm:"type:text"`
	Content      string           `gorm:"type:text"`
	Error        string           `gorm:"type:text"`
	GeneratedAt  time.Time        `gorm:"not null;index"`
	ScheduledFor time.Time        `gorm:"not null"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (AutomatedBriefing) TableName() string { return "automated_briefings" }

type Service interface {
	// Record persists an agent result.
	Record(ctx context.Context, b *Briefing) error

	// ListForUser returns the user's briefings, newest first.
	ListForUser(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]Briefing, error)

	// GetForUser returns one briefing, scoped to its owner.
	GetForUser(ctx context.Context, userID, briefingID snowflake.ID) (*Briefing, error)

	// GenerateScheduled runs one automated generation and persists the
	// outcome. A generation failure still writes a row (status failed) and
	// returns the error.
	GenerateScheduled(ctx context.Context, briefingType BriefingType) (*AutomatedBriefing, error)

	// ListAutomated returns scheduled runs, newest first, optionally
	// filtered by type.
	ListAutomated(ctx context.Context, briefingType BriefingType, page pagination.Pagination) ([]AutomatedBriefing, error)

	// LatestAutomated returns the most recent successfully generated run
	// of a type. Failed runs never surface here.
	LatestAutomated(ctx context.Context, briefingType BriefingType) (*AutomatedBriefing, error)
}
