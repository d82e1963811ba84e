package metrics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics captures briefing scheduler health signals.
type SchedulerMetrics struct {
	slotRuns     *prometheus.CounterVec
	slotErrors   *prometheus.CounterVec
	slotDuration *prometheus.HistogramVec
	slotSkipped  *prometheus.CounterVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &SchedulerMetrics{
		slotRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mi42_briefing_slot_runs_total",
			Help: "Briefing slot executions by briefing type.",
		}, []string{"briefing_type"}),
		slotErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mi42_briefing_slot_errors_total",
			Help: "Briefing slot failures by briefing type.",
		}, []string{"briefing_type"}),
		slotDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mi42_briefing_slot_duration_seconds",
			Help:    "Briefing generation duration by briefing type.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"briefing_type"}),
		slotSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mi42_briefing_slot_skipped_total",
			Help: "Briefing slots skipped because another replica holds the lock.",
		}, []string{"briefing_type"}),
	}

	m.slotRuns = registerCounterVec(registerer, m.slotRuns)
	m.slotErrors = registerCounterVec(registerer, m.slotErrors)
	m.slotDuration = registerHistogramVec(registerer, m.slotDuration)
	m.slotSkipped = registerCounterVec(registerer, m.slotSkipped)
	return m
}

// register* tolerate re-registration so the singleton can be rebuilt in tests.
func registerCounterVec(r prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := r.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func registerHistogramVec(r prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := r.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(*prometheus.HistogramVec)
		}
		panic(err)
	}
	return h
}

func (m *SchedulerMetrics) IncSlotRun(briefingType string) {
	if m == nil {
		return
	}
	m.slotRuns.WithLabelValues(normalizeLabel(briefingType)).Inc()
}

func (m *SchedulerMetrics) IncSlotError(briefingType string) {
	if m == nil {
		return
	}
	m.slotErrors.WithLabelValues(normalizeLabel(briefingType)).Inc()
}

func (m *SchedulerMetrics) ObserveSlotDuration(briefingType string, d time.Duration) {
	if m == nil {
		return
	}
	m.slotDuration.WithLabelValues(normalizeLabel(briefingType)).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncSlotSkipped(briefingType string) {
	if m == nil {
		return
	}
	m.slotSkipped.WithLabelValues(normalizeLabel(briefingType)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
