package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/briefing/domain"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"github.com/mi42hq/mi42/internal/providers/llm"
	systemlogdomain "github.com/mi42hq/mi42/internal/systemlog/domain"
	"github.com/mi42hq/mi42/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock clock.Clock
	llm   llm.Provider
	audit systemlogdomain.Service
}

func Provide(db *gorm.DB, node *snowflake.Node, clk clock.Clock, provider llm.Provider, audit systemlogdomain.Service) domain.Service {
	return &service{db: db, node: node, clock: clk, llm: provider, audit: audit}
}

func (s *service) Record(ctx context.Context, b *domain.Briefing) error {
	if b.ID == 0 {
		b.ID = s.node.Generate()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.clock.Now()
	}
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO briefings (id, user_id, agent_type, title, content, credits_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.AgentType, b.Title, b.Content, b.CreditsUsed, b.CreatedAt,
	).Error
}

func (s *service) ListForUser(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]domain.Briefing, error) {
	page = page.Normalize()
	var briefings []domain.Briefing
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, agent_type, title, content, credits_used, created_at
		 FROM briefings
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, page.Limit, page.Offset,
	).Scan(&briefings).Error
	if err != nil {
		return nil, err
	}
	return briefings, nil
}

func (s *service) GetForUser(ctx context.Context, userID, briefingID snowflake.ID) (*domain.Briefing, error) {
	var b domain.Briefing
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, agent_type, title, content, credits_used, created_at
		 FROM briefings WHERE id = ? AND user_id = ?`,
		briefingID, userID,
	).Scan(&b).Error
	if err != nil {
		return nil, err
	}
	if b.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (s *service) GenerateScheduled(ctx context.Context, briefingType domain.BriefingType) (*domain.AutomatedBriefing, error) {
	now := s.clock.Now()
	title, prompt, err := scheduledPrompts(briefingType, now)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With(zap.String("briefing_type", string(briefingType)))

	content, genErr := s.llm.Generate(ctx, briefingSystemPrompt, prompt)

	row := &domain.AutomatedBriefing{
		ID:           s.node.Generate(),
		BriefingType: briefingType,
		Title:        title,
		GeneratedAt:  now,
		ScheduledFor: now,
		CreatedAt:    now,
	}
	if genErr != nil {
		row.Status = domain.StatusFailed
		row.Error = genErr.Error()
	} else {
		row.Status = domain.StatusGenerated
		row.Content = content
	}

	if err := s.insertAutomated(ctx, row); err != nil {
		return nil, err
	}

	if genErr != nil {
		log.Error("scheduled briefing generation failed", zap.Error(genErr))
		s.audit.Write(ctx, systemlogdomain.LevelError, systemlogdomain.TypeLLMUsage,
			"scheduled briefing generation failed", nil,
			map[string]any{"briefing_type": string(briefingType), "error": genErr.Error()})
		return row, fmt.Errorf("generate %s briefing: %w", briefingType, genErr)
	}

	log.Info("scheduled briefing generated", zap.String("title", title))
	s.audit.Write(ctx, systemlogdomain.LevelInfo, systemlogdomain.TypeLLMUsage,
		"scheduled briefing generated", nil,
		map[string]any{"briefing_type": string(briefingType), "title": title})
	return row, nil
}

func (s *service) ListAutomated(ctx context.Context, briefingType domain.BriefingType, page pagination.Pagination) ([]domain.AutomatedBriefing, error) {
	page = page.Normalize()
	query := `SELECT id, briefing_type, status, title, content, error, generated_at, scheduled_for, created_at
	          FROM automated_briefings`
	args := []any{}
	if briefingType != "" {
		query += " WHERE briefing_type = ?"
		args = append(args, briefingType)
	}
	query += " ORDER BY generated_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	var rows []domain.AutomatedBriefing
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *service) LatestAutomated(ctx context.Context, briefingType domain.BriefingType) (*domain.AutomatedBriefing, error) {
	var row domain.AutomatedBriefing
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, briefing_type, status, title, content, error, generated_at, scheduled_for, created_at
		 FROM automated_briefings
		 WHERE briefing_type = ? AND status IN (?, ?)
		 ORDER BY generated_at DESC, id DESC
		 LIMIT 1`,
		briefingType, domain.StatusGenerated, domain.StatusSent,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (s *service) insertAutomated(ctx context.Context, row *domain.AutomatedBriefing) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO automated_briefings (id, briefing_type, status, title, content, error, generated_at, scheduled_for, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.BriefingType, row.Status, row.Title, row.Content, row.Error, row.GeneratedAt, row.ScheduledFor, row.CreatedAt,
	).Error
}
