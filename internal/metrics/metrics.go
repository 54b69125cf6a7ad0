package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "alfred"

// Metrics holds the Prometheus collectors for the scheduling flow.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	conflictChecks *prometheus.CounterVec
	bookings       *prometheus.CounterVec
}

// MustNewMetrics registers the collectors on reg and panics on a
// registration error, mirroring promauto. Tests pass a fresh registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "requests_total",
				Help:      "Messages handled, by resolved category and language.",
			},
			[]string{"category", "language"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "stage_duration_seconds",
				Help:      "Time spent in each flow stage.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		conflictChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "conflict_checks_total",
				Help:      "Conflict checks by result (free, conflict, fail_open, fail_closed).",
			},
			[]string{"result"},
		),
		bookings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "bookings_total",
				Help:      "Event creation attempts by outcome.",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.requests, m.stageDuration, m.conflictChecks, m.bookings)
	return m
}

func (m *Metrics) RecordRequest(category, language string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(category, language).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RecordConflictCheck(result string) {
	if m == nil {
		return
	}
	m.conflictChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}
