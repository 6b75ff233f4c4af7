// Package metrics provides counters and Prometheus collectors for one
// check-in run, and pushes them to a Pushgateway or InfluxDB at the end.
package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// 1. Internal State (Source of Truth)
var (
	checkinsSuccess     int64
	checkinsFailed      int64
	balanceChanges      int64
	notificationsSent   int64
	notificationsFailed int64
	lastRun             int64
)

const counterInc int64 = 1

// 2. Prometheus Collectors
var (
	registry = prometheus.NewRegistry()

	promCheckins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocheckin_checkins_total",
			Help: "Total check-in attempts by outcome",
		},
		[]string{"status"},
	)
	promBalanceChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autocheckin_balance_changes_total",
			Help: "Total accounts whose balance changed since the previous run",
		},
	)
	promNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autocheckin_notifications_total",
			Help: "Total notification deliveries by platform and outcome",
		},
		[]string{"platform", "status"},
	)
	promCheckinDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "autocheckin_checkin_duration_seconds",
			Help: "Duration of a single account check-in",
			Buckets: []float64{
				0.25,
				0.5,
				1,
				2,
				5,
				10,
				30,
				60,
			},
		},
	)
	promLastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autocheckin_last_run_timestamp_seconds",
			Help: "Unix timestamp of last run",
		},
	)
)

func init() {
	registry.MustRegister(
		promCheckins,
		promBalanceChanges,
		promNotifications,
		promCheckinDuration,
		promLastRun,
	)
}

// 3. Public API (Updates both Atomic and Prometheus)

// IncCheckinSuccess counts a successful check-in.
func IncCheckinSuccess() {
	atomic.AddInt64(&checkinsSuccess, counterInc)
	promCheckins.WithLabelValues("success").Inc()
}

// IncCheckinFailed counts a failed check-in.
func IncCheckinFailed() {
	atomic.AddInt64(&checkinsFailed, counterInc)
	promCheckins.WithLabelValues("failed").Inc()
}

// IncBalanceChanged counts an account whose balance changed.
func IncBalanceChanged() {
	atomic.AddInt64(&balanceChanges, counterInc)
	promBalanceChanges.Inc()
}

// ObserveCheckinDuration records how long one account took, in seconds.
func ObserveCheckinDuration(seconds float64) {
	promCheckinDuration.Observe(seconds)
}

// SetLastRun stores the provided time as the last run timestamp and
// updates the corresponding Prometheus gauge.
func SetLastRun(t time.Time) {
	atomic.StoreInt64(&lastRun, t.Unix())
	promLastRun.Set(float64(t.Unix()))
}

// Recorder feeds notification outcomes into the counters. It satisfies
// notify.Observer.
type Recorder struct{}

func (Recorder) NotificationSent(platform string) {
	atomic.AddInt64(&notificationsSent, counterInc)
	promNotifications.WithLabelValues(platform, "success").Inc()
}

func (Recorder) NotificationFailed(platform string, _ error) {
	atomic.AddInt64(&notificationsFailed, counterInc)
	promNotifications.WithLabelValues(platform, "failed").Inc()
}

// 4. JSON Snapshot Struct

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	CheckinsSuccess     int64  `json:"checkins_success"`
	CheckinsFailed      int64  `json:"checkins_failed"`
	BalanceChanges      int64  `json:"balance_changes"`
	NotificationsSent   int64  `json:"notifications_sent"`
	NotificationsFailed int64  `json:"notifications_failed"`
	LastRun             int64  `json:"last_run_timestamp"`
	LastRunHuman        string `json:"last_run_human"`
}

// GetSnapshot returns a StatsSnapshot with the current values of all
// internal counters and timestamps.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastRun)
	return StatsSnapshot{
		CheckinsSuccess:     atomic.LoadInt64(&checkinsSuccess),
		CheckinsFailed:      atomic.LoadInt64(&checkinsFailed),
		BalanceChanges:      atomic.LoadInt64(&balanceChanges),
		NotificationsSent:   atomic.LoadInt64(&notificationsSent),
		NotificationsFailed: atomic.LoadInt64(&notificationsFailed),
		LastRun:             ts,
		LastRunHuman:        time.Unix(ts, 0).Format(time.RFC3339),
	}
}

// 5. Push

// Push sends every collector to the Pushgateway at url under job, replacing
// the previous push of the same grouping.
func Push(ctx context.Context, url, job string, groupings map[string]string) error {
	p := push.New(url, job).Gatherer(registry)
	for k, v := range groupings {
		p = p.Grouping(k, v)
	}
	return p.PushContext(ctx)
}
