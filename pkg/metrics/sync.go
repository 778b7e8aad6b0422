package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes recorded by SyncMetrics.
const (
	OutcomeSynced    = "synced"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeNetwork   = "network"
	OutcomeError     = "error"
)

// SyncMetrics tracks the offline queue and the coordinator's drain runs.
type SyncMetrics struct {
	pending     prometheus.Gauge
	state       prometheus.Gauge
	online      prometheus.Gauge
	submissions *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	m := &SyncMetrics{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sale_queue_pending",
			Help:      "Sales waiting in the offline queue.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_state",
			Help:      "Coordinator state: 0 idle, 1 syncing, 2 backoff.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_online",
			Help:      "1 when the remote backend answered the last liveness check.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_submissions_total",
			Help:      "Sale submissions to the remote backend by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Drain runs by trigger.",
		}, []string{"trigger"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of drain runs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.pending, m.state, m.online, m.submissions, m.runs, m.runDuration)
	return m
}

func (m *SyncMetrics) SetPending(n int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *SyncMetrics) SetState(state int32) {
	if m == nil || m.state == nil {
		return
	}
	m.state.Set(float64(state))
}

func (m *SyncMetrics) SetOnline(online bool) {
	if m == nil || m.online == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

func (m *SyncMetrics) IncSubmission(outcome string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *SyncMetrics) ObserveRun(trigger string, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(trigger)).Inc()
	m.runDuration.Observe(duration.Seconds())
}
