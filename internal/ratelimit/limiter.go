package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mi42hq/mi42/internal/observability/logger"
	"github.com/mi42hq/mi42/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter caps how many agent executions a user may start per window.
// Without redis it fails open: a single instance is then only protected
// by credit deduction itself.
type Limiter struct {
	client  *redis.Client
	metrics *metrics.Metrics
	limit   int
	window  time.Duration
}

const (
	defaultExecutionLimit  = 10
	defaultExecutionWindow = time.Minute
)

func NewLimiter(client *redis.Client, m *metrics.Metrics) *Limiter {
	return &Limiter{
		client:  client,
		metrics: m,
		limit:   defaultExecutionLimit,
		window:  defaultExecutionWindow,
	}
}

// Allow reports whether the user may start another execution right now.
func (l *Limiter) Allow(ctx context.Context, userID snowflake.ID) bool {
	if l == nil || l.client == nil {
		return true
	}

	key := fmt.Sprintf("mi42:ratelimit:agent:%d", userID)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		logger.FromContext(ctx).Warn("rate limit check failed, allowing request", zap.Error(err))
		return true
	}
	if count == 1 {
		l.client.Expire(ctx, key, l.window)
	}
	if count > int64(l.limit) {
		l.metrics.RecordRateLimitDenied(ctx, "agent_execute", "window_exceeded")
		return false
	}
	return true
}
