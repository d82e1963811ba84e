package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/mi42hq/mi42/internal/agent/domain"
	briefingdomain "github.com/mi42hq/mi42/internal/briefing/domain"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	creditdomain "github.com/mi42hq/mi42/internal/credit/domain"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"github.com/mi42hq/mi42/internal/observability/metrics"
	"github.com/mi42hq/mi42/internal/providers/llm"
	"github.com/mi42hq/mi42/internal/ratelimit"
	systemlogdomain "github.com/mi42hq/mi42/internal/systemlog/domain"
	"github.com/mi42hq/mi42/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     clock.Clock
	catalog   *config.AgentCatalogHolder
	credits   creditdomain.Service
	briefings briefingdomain.Service
	llm       llm.Provider
	limiter   *ratelimit.Limiter
	audit     systemlogdomain.Service
	metrics   *metrics.Metrics
}

func Provide(
	db *gorm.DB,
	node *snowflake.Node,
	clk clock.Clock,
	catalog *config.AgentCatalogHolder,
	credits creditdomain.Service,
	briefings briefingdomain.Service,
	provider llm.Provider,
	limiter *ratelimit.Limiter,
	audit systemlogdomain.Service,
	m *metrics.Metrics,
) agentdomain.Service {
	return &service{
		db:        db,
		node:      node,
		clock:     clk,
		catalog:   catalog,
		credits:   credits,
		briefings: briefings,
		llm:       provider,
		limiter:   limiter,
		audit:     audit,
		metrics:   m,
	}
}

func (s *service) ListAgents(context.Context) []agentdomain.Info {
	catalog := s.catalog.Get()
	infos := make([]agentdomain.Info, 0, len(catalog.Agents))
	for _, spec := range catalog.Agents {
		if spec.Disabled {
			continue
		}
		infos = append(infos, agentdomain.Info{
			Type:             spec.Type,
			Name:             spec.Name,
			EstimatedCredits: spec.EstimatedCredits,
		})
	}
	return infos
}

func (s *service) Execute(ctx context.Context, userID snowflake.ID, agentType, prompt string) (*agentdomain.Task, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, agentdomain.ErrEmptyPrompt
	}

	spec, ok := s.catalog.Get().Lookup(agentType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", agentdomain.ErrUnknownAgent, agentType)
	}

	if !s.limiter.Allow(ctx, userID) {
		return nil, agentdomain.ErrRateLimited
	}

	task := &agentdomain.Task{
		ID:        s.node.Generate(),
		UserID:    userID,
		AgentType: spec.Type,
		Status:    agentdomain.StatusPending,
		Prompt:    prompt,
		CreatedAt: s.clock.Now(),
	}
	if err := s.insertTask(ctx, task); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With(
		zap.Int64("task_id", int64(task.ID)),
		zap.String("agent_type", spec.Type),
	)

	// Charge before calling the model so a draining balance cannot be
	// outrun by parallel tasks.
	reference := fmt.Sprintf("task:%d", task.ID)
	if err := s.credits.Deduct(ctx, userID, spec.EstimatedCredits, spec.Name, reference); err != nil {
		s.failTask(ctx, task, err)
		s.metrics.RecordAgentTask(ctx, spec.Type, "rejected")
		return task, err
	}
	task.CreditsCharged = spec.EstimatedCredits

	if err := s.updateTaskStatus(ctx, task, agentdomain.StatusRunning); err != nil {
		return nil, err
	}

	start := time.Now()
	content, genErr := s.llm.Generate(ctx, spec.SystemPrompt, prompt)
	if genErr != nil {
		// The user pays only for delivered results.
		if refundErr := s.credits.Add(ctx, userID, spec.EstimatedCredits, creditdomain.TransactionRefund,
			"Erstattung: "+spec.Name, reference); refundErr != nil {
			log.Error("refund after failed task did not go through", zap.Error(refundErr))
		} else {
			task.CreditsCharged = 0
		}
		s.failTask(ctx, task, genErr)
		s.metrics.RecordAgentTask(ctx, spec.Type, "failed")
		s.audit.Write(ctx, systemlogdomain.LevelError, systemlogdomain.TypeLLMUsage,
			"agent task failed", &userID,
			map[string]any{"agent_type": spec.Type, "error": genErr.Error()})
		return task, fmt.Errorf("agent %s: %w", spec.Type, genErr)
	}

	briefing := &briefingdomain.Briefing{
		UserID:      userID,
		AgentType:   spec.Type,
		Title:       taskTitle(spec.Name, prompt),
		Content:     content,
		CreditsUsed: spec.EstimatedCredits,
	}
	if err := s.briefings.Record(ctx, briefing); err != nil {
		s.failTask(ctx, task, err)
		return task, err
	}

	now := s.clock.Now()
	task.Status = agentdomain.StatusCompleted
	task.BriefingID = &briefing.ID
	task.CompletedAt = &now
	if err := s.db.WithContext(ctx).Exec(
		`UPDATE agent_tasks
		 SET status = ?, briefing_id = ?, credits_charged = ?, completed_at = ?
		 WHERE id = ?`,
		task.Status, briefing.ID, task.CreditsCharged, now, task.ID,
	).Error; err != nil {
		return nil, err
	}

	s.metrics.RecordAgentTask(ctx, spec.Type, "completed")
	s.audit.Write(ctx, systemlogdomain.LevelInfo, systemlogdomain.TypeLLMUsage,
		"agent task completed", &userID,
		map[string]any{
			"agent_type": spec.Type,
			"credits":    spec.EstimatedCredits,
			"duration":   time.Since(start).String(),
		})
	log.Info("agent task completed", zap.Duration("duration", time.Since(start)))
	return task, nil
}

func (s *service) GetTask(ctx context.Context, userID, taskID snowflake.ID) (*agentdomain.Task, error) {
	var task agentdomain.Task
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, agent_type, status, prompt, error, credits_charged, briefing_id, created_at, completed_at
		 FROM agent_tasks WHERE id = ? AND user_id = ?`,
		taskID, userID,
	).Scan(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == 0 {
		return nil, agentdomain.ErrTaskNotFound
	}
	return &task, nil
}

func (s *service) ListTasks(ctx context.Context, userID snowflake.ID, page pagination.Pagination) ([]agentdomain.Task, error) {
	page = page.Normalize()
	var tasks []agentdomain.Task
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, user_id, agent_type, status, prompt, error, credits_charged, briefing_id, created_at, completed_at
		 FROM agent_tasks
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, page.Limit, page.Offset,
	).Scan(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *service) insertTask(ctx context.Context, task *agentdomain.Task) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO agent_tasks (id, user_id, agent_type, status, prompt, credits_charged, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.AgentType, task.Status, task.Prompt, task.CreditsCharged, task.CreatedAt,
	).Error
}

func (s *service) updateTaskStatus(ctx context.Context, task *agentdomain.Task, status agentdomain.TaskStatus) error {
	task.Status = status
	return s.db.WithContext(ctx).Exec(
		`UPDATE agent_tasks SET status = ?, credits_charged = ? WHERE id = ?`,
		status, task.CreditsCharged, task.ID,
	).Error
}

func (s *service) failTask(ctx context.Context, task *agentdomain.Task, cause error) {
	now := s.clock.Now()
	task.Status = agentdomain.StatusFailed
	task.Error = cause.Error()
	task.CompletedAt = &now
	if err := s.db.WithContext(ctx).Exec(
		`UPDATE agent_tasks SET status = ?, error = ?, credits_charged = ?, completed_at = ? WHERE id = ?`,
		task.Status, task.Error, task.CreditsCharged, now, task.ID,
	).Error; err != nil {
		logger.FromContext(ctx).Error("marking task failed did not persist",
			zap.Int64("task_id", int64(task.ID)),
			zap.Error(err),
		)
	}
}

func taskTitle(agentName, prompt string) string {
	const maxLen = 80
	excerpt := prompt
	if runes := []rune(excerpt); len(runes) > maxLen {
		cut := string(runes[:maxLen])
		if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
			cut = cut[:idx]
		}
		excerpt = cut + "…"
	}
	return agentName + ": " + excerpt
}
