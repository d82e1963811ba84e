package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"github.com/mi42hq/mi42/internal/systemlog/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock clock.Clock
}

func Provide(db *gorm.DB, node *snowflake.Node, clk clock.Clock) domain.Service {
	return &service{db: db, node: node, clock: clk}
}

func (s *service) Write(ctx context.Context, level domain.Level, entryType domain.EntryType, message string, userID *snowflake.ID, details map[string]any) {
	var payload []byte
	if len(details) > 0 {
		var err error
		payload, err = json.Marshal(details)
		if err != nil {
			logger.FromContext(ctx).Warn("system log details not serializable", zap.Error(err))
			payload = nil
		}
	}

	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO system_logs (id, level, type, message, user_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.node.Generate(), level, entryType, message, userID, payload, s.clock.Now(),
	).Error
	if err != nil {
		logger.FromContext(ctx).Error("system log write failed",
			zap.String("type", string(entryType)),
			zap.Error(err),
		)
	}
}

func (s *service) List(ctx context.Context, q domain.Query) ([]domain.Entry, error) {
	page := q.Page.Normalize()

	var (
		where []string
		args  []any
	)
	if q.Level != "" {
		where = append(where, "level = ?")
		args = append(args, q.Level)
	}
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, q.Type)
	}
	if q.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}

	query := `SELECT id, level, type, message, user_id, details, created_at FROM system_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	var entries []domain.Entry
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
