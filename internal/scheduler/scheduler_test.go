package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	briefingdomain "github.com/mi42hq/mi42/internal/briefing/domain"
	briefingservice "github.com/mi42hq/mi42/internal/briefing/service"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	"github.com/mi42hq/mi42/internal/observability/metrics"
	systemlogdomain "github.com/mi42hq/mi42/internal/systemlog/domain"
	systemlogservice "github.com/mi42hq/mi42/internal/systemlog/service"
	"github.com/mi42hq/mi42/pkg/db/dbtest"
	"github.com/mi42hq/mi42/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLLM struct {
	err   error
	calls int
}

func (s *stubLLM) Generate(context.Context, string, string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "Inhalt", nil
}

func schedulerConfig() config.Config {
	return config.Config{
		Scheduler: config.SchedulerConfig{
			DailyHour:   8,
			DailyMinute: 0,
			WeeklyHour:  9,
			Timezone:    "UTC",
			LockTTL:     10 * time.Minute,
		},
	}
}

func newScheduler(t *testing.T, provider *stubLLM) (*Scheduler, briefingdomain.Service, *clock.FakeClock) {
	t.Helper()
	metrics.ResetSchedulerMetricsForTest()
	conn := dbtest.Open(t, &briefingdomain.AutomatedBriefing{}, &briefingdomain.Briefing{}, &systemlogdomain.Entry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)) // a Wednesday
	audit := systemlogservice.Provide(conn, node, clk)
	briefings := briefingservice.Provide(conn, node, clk, provider, audit)

	s, err := New(Params{
		Log:         zap.NewNop(),
		Clock:       clk,
		BriefingSvc: briefings,
		Config:      schedulerConfig(),
	})
	require.NoError(t, err)
	return s, briefings, clk
}

func TestNextSlotDaily(t *testing.T) {
	s, _, _ := newScheduler(t, &stubLLM{})

	// Before today's slot: fires today at 08:00.
	now := time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC), s.NextSlot(briefingdomain.TypeDaily, now))

	// Exactly at the slot: next day.
	now = time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC), s.NextSlot(briefingdomain.TypeDaily, now))

	// After the slot: next day.
	now = time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC), s.NextSlot(briefingdomain.TypeDaily, now))
}

func TestNextSlotWeekly(t *testing.T) {
	s, _, _ := newScheduler(t, &stubLLM{})

	// Wednesday: next Monday 09:00.
	now := time.Date(2026, 3, 4, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), s.NextSlot(briefingdomain.TypeWeekly, now))

	// Monday before 09:00: fires the same day.
	now = time.Date(2026, 3, 9, 8, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), s.NextSlot(briefingdomain.TypeWeekly, now))

	// Monday after 09:00: a week later.
	now = time.Date(2026, 3, 9, 9, 0, 1, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), s.NextSlot(briefingdomain.TypeWeekly, now))
}

func TestTriggerDailyWritesRowPerRun(t *testing.T) {
	provider := &stubLLM{}
	s, briefings, clk := newScheduler(t, provider)
	ctx := context.Background()

	require.NoError(t, s.TriggerDaily(ctx))
	clk.Advance(24 * time.Hour)
	require.NoError(t, s.TriggerDaily(ctx))

	rows, err := briefings.ListAutomated(ctx, briefingdomain.TypeDaily, pagination.Pagination{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, provider.calls)
}

func TestTriggerSurvivesGeneratorFailure(t *testing.T) {
	provider := &stubLLM{err: errors.New("model down")}
	s, briefings, _ := newScheduler(t, provider)
	ctx := context.Background()

	require.Error(t, s.TriggerDaily(ctx))

	rows, err := briefings.ListAutomated(ctx, briefingdomain.TypeDaily, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, briefingdomain.StatusFailed, rows[0].Status)

	// The scheduler stays usable: the next run succeeds.
	provider.err = nil
	require.NoError(t, s.TriggerWeekly(ctx))
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := schedulerConfig()
	cfg.Scheduler.DailyHour = 25
	_, err := New(Params{
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(time.Now()),
		BriefingSvc: nil,
		Config:      cfg,
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
