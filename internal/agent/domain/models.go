package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/pkg/db/pagination"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

var (
	ErrUnknownAgent = errors.New("unknown_agent")
	ErrEmptyPrompt  = errors.New("empty_prompt")
	ErrRateLimited  = errors.New("rate_limited")
	ErrTaskNotFound = errors.New("task_not_found")
)

// Task is one agent execution with its billing outcome.
type Task struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	UserID         snowflake.ID `gorm:"not null;index"`
	AgentType      string       `gorm:"type:text;not null"`
	Status         TaskStatus   `gorm:"type:text;not null"`
	Prompt         string       `gorm:"type:text;not null"`
	Error          string       `gorm:"type:text"`
	CreditsCharged int64        `gorm:"not null;default:0"`
	BriefingID     *snowflake.ID
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	CompletedAt    *time.Time
}

func (Task) TableName() string { return "agent_tasks" }

// Info is the catalog entry shown to clients.
type Info struct {
	Type             string `json:"type"`
	Name             string `json:"name"`
	EstimatedCredits int64  `json:"estimatedCredits"`
}

type Service interface {
	// ListAgents returns the enabled agents from the catalog.
	ListAgents(ctx context.Context) []Info

	// Execute runs one agent task end to end: charge credits, call the
	// model, persist the briefing. A model failure refunds the charge and
	// leaves a failed task behind.
	Execute(ctx context.Context, userID snowflake.ID, agentType, prompt string) (*Task, error)

	// GetTask returns one task, scoped to its owner.
	GetTask(ctx context.Context, userID, taskID snowflake.ID) (*Task, error)

	// ListTasks returns the user's tasks, newest first.
	ListTasks(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]Task, error)
}
