package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts sync activity. A nil *Metrics records nothing.
type Metrics struct {
	runs            *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	created         *prometheus.CounterVec
	sessionFailures prometheus.Counter
	unmatched       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volunteer_sync_runs_total",
				Help: "Sync phase runs by outcome.",
			},
			[]string{"phase", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volunteer_sync_phase_duration_seconds",
				Help:    "Duration of sync phases in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volunteer_sync_records_written_total",
				Help: "Records created or overwritten by sync, by kind.",
			},
			[]string{"kind"},
		),
		sessionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "volunteer_sync_session_failures_total",
			Help: "Sessions whose attendees could not be fetched.",
		}),
		unmatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "volunteer_sync_unmatched_events",
			Help: "Series events without a mapped group in the last discovery.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.duration, m.created, m.sessionFailures, m.unmatched)
	}
	return m
}

func (m *Metrics) observePhase(phase string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.runs.WithLabelValues(phase, outcome).Inc()
	m.duration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

func (m *Metrics) rejected(phase string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(phase, "rejected").Inc()
}

func (m *Metrics) recordDiscovery(r DiscoveryResult) {
	if m == nil {
		return
	}
	m.created.WithLabelValues("session").Add(float64(r.NewSessions))
	m.unmatched.Set(float64(len(r.UnmatchedEvents)))
}

func (m *Metrics) recordAttendees(r AttendeeResult) {
	if m == nil {
		return
	}
	m.created.WithLabelValues("profile").Add(float64(r.NewProfiles))
	m.created.WithLabelValues("entry").Add(float64(r.NewEntries))
	m.created.WithLabelValues("consent").Add(float64(r.NewRecords))
	m.sessionFailures.Add(float64(len(r.Errors)))
}
