package monitoring

import (
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hive-backend/models"
)

var (
	eventTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_transitions_total",
			Help: "Total event state transitions",
		},
		[]string{"from", "to", "type"},
	)

	advancerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advancer_runs_total",
			Help: "Total advancer runs by outcome",
		},
		[]string{"status"},
	)

	advancerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "advancer_run_duration_seconds",
			Help:    "Duration of advancer runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	advancerBatchSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "advancer_batch_size",
			Help: "Number of events advanced by the last run",
		},
	)

	eventsByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "events_by_state",
			Help: "Current number of events per lifecycle state",
		},
		[]string{"state"},
	)

	feedSyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_sync_runs_total",
			Help: "Total feed sync runs by outcome",
		},
		[]string{"status"},
	)

	feedEventsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_events_synced_total",
			Help: "Total events imported from the campus feed",
		},
	)

	notificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Total notification publishes by outcome",
		},
		[]string{"status"},
	)
)

type Monitor struct {
	app      core.App
	interval time.Duration
}

func NewMonitor(app core.App, interval time.Duration) *Monitor {
	monitor := &Monitor{app: app, interval: interval}

	// Start metrics collection
	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for range ticker.C {
		m.collectStateCounts()
	}
}

func (m *Monitor) collectStateCounts() {
	for _, state := range models.AllStates {
		count, err := m.app.CountRecords("events", dbx.HashExp{"state": string(state)})
		if err != nil {
			continue
		}
		eventsByState.WithLabelValues(string(state)).Set(float64(count))
	}
}

// TrackTransition counts one state change.
func TrackTransition(from, to models.State, transitionType models.TransitionType) {
	eventTransitions.WithLabelValues(string(from), string(to), string(transitionType)).Inc()
}

// TrackAdvancerRun records the outcome of one advancer run.
func TrackAdvancerRun(status string, duration time.Duration, batchSize int) {
	advancerRuns.WithLabelValues(status).Inc()
	advancerDuration.Observe(duration.Seconds())
	advancerBatchSize.Set(float64(batchSize))
}

// TrackFeedSync records the outcome of one feed sync run.
func TrackFeedSync(status string, imported int) {
	feedSyncRuns.WithLabelValues(status).Inc()
	feedEventsSynced.Add(float64(imported))
}

// TrackNotification counts one publish attempt.
func TrackNotification(status string) {
	notificationsPublished.WithLabelValues(status).Inc()
}
