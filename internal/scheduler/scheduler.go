package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	briefingdomain "github.com/mi42hq/mi42/internal/briefing/domain"
	"github.com/mi42hq/mi42/internal/clock"
	"github.com/mi42hq/mi42/internal/config"
	obsmetrics "github.com/mi42hq/mi42/internal/observability/metrics"
	"github.com/mi42hq/mi42/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	Log         *zap.Logger
	Clock       clock.Clock
	BriefingSvc briefingdomain.Service
	Locker      *ratelimit.Locker `optional:"true"`
	Config      config.Config
}

// Scheduler fires the automated briefing slots: the daily briefing every
// morning and the weekly analysis on Monday. Each slot reschedules itself
// regardless of whether the generation succeeded.
type Scheduler struct {
	log       *zap.Logger
	clock     clock.Clock
	briefings briefingdomain.Service
	locker    *ratelimit.Locker
	cfg       config.SchedulerConfig
	loc       *time.Location

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.BriefingSvc == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.Scheduler
	if cfg.DailyHour < 0 || cfg.DailyHour > 23 || cfg.WeeklyHour < 0 || cfg.WeeklyHour > 23 ||
		cfg.DailyMinute < 0 || cfg.DailyMinute > 59 {
		return nil, ErrInvalidConfig
	}

	loc := time.Local
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler: timezone %q: %w", cfg.Timezone, err)
		}
	}

	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		clock:     p.Clock,
		briefings: p.BriefingSvc,
		locker:    p.Locker,
		cfg:       cfg,
		loc:       loc,
	}, nil
}

// Start launches one goroutine per slot. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, slot := range []briefingdomain.BriefingType{briefingdomain.TypeDaily, briefingdomain.TypeWeekly} {
		s.wg.Add(1)
		go func(slot briefingdomain.BriefingType) {
			defer s.wg.Done()
			s.runSlotLoop(ctx, slot)
		}(slot)
	}
	s.log.Info("briefing scheduler started",
		zap.Int("daily_hour", s.cfg.DailyHour),
		zap.Int("weekly_hour", s.cfg.WeeklyHour),
		zap.String("timezone", s.loc.String()),
	)
}

// Stop cancels the slot loops and waits for in-flight generations.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.log.Info("briefing scheduler stopped")
}

func (s *Scheduler) runSlotLoop(ctx context.Context, slot briefingdomain.BriefingType) {
	for {
		now := s.clock.Now()
		next := s.NextSlot(slot, now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.runOnce(ctx, slot, next)
	}
}

// NextSlot returns the next firing time of a slot strictly after now.
func (s *Scheduler) NextSlot(slot briefingdomain.BriefingType, now time.Time) time.Time {
	local := now.In(s.loc)
	switch slot {
	case briefingdomain.TypeWeekly:
		next := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.WeeklyHour, 0, 0, 0, s.loc)
		daysUntilMonday := (int(time.Monday) - int(local.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, daysUntilMonday)
		if !next.After(local) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	default:
		next := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.DailyHour, s.cfg.DailyMinute, 0, 0, s.loc)
		if !next.After(local) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// TriggerDaily runs the daily slot immediately.
func (s *Scheduler) TriggerDaily(ctx context.Context) error {
	return s.generate(ctx, briefingdomain.TypeDaily)
}

// TriggerWeekly runs the weekly slot immediately.
func (s *Scheduler) TriggerWeekly(ctx context.Context) error {
	return s.generate(ctx, briefingdomain.TypeWeekly)
}

func (s *Scheduler) runOnce(ctx context.Context, slot briefingdomain.BriefingType, slotTime time.Time) {
	// Only one replica generates a given slot; the others skip.
	if s.locker != nil {
		key := ratelimit.SlotKey(string(slot), slotTime)
		ttl := s.cfg.LockTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		_, acquired, err := s.locker.TryLock(ctx, key, ttl)
		if err != nil {
			s.log.Warn("slot lock unavailable, running anyway",
				zap.String("briefing_type", string(slot)),
				zap.Error(err),
			)
		} else if !acquired {
			obsmetrics.Scheduler().IncSlotSkipped(string(slot))
			s.log.Info("slot held by another replica, skipping",
				zap.String("briefing_type", string(slot)),
			)
			return
		}
		// The lock expires by TTL on purpose: releasing it early would let
		// a lagging replica rerun the same slot.
	}

	if err := s.generate(ctx, slot); err != nil {
		s.log.Error("slot generation failed",
			zap.String("briefing_type", string(slot)),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) generate(ctx context.Context, slot briefingdomain.BriefingType) error {
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncSlotRun(string(slot))

	start := time.Now()
	_, err := s.briefings.GenerateScheduled(ctx, slot)
	schedMetrics.ObserveSlotDuration(string(slot), time.Since(start))
	if err != nil {
		schedMetrics.IncSlotError(string(slot))
		return err
	}
	return nil
}
