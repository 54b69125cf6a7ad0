package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.RecordRequest("APPOINTMENT", "hebrew")
	m.RecordRequest("APPOINTMENT", "hebrew")
	m.RecordConflictCheck("fail_open")
	m.RecordBooking("created")
	m.ObserveStage("routing", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("APPOINTMENT", "hebrew")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflictChecks.WithLabelValues("fail_open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("created")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("GENERAL", "english")
		m.RecordConflictCheck("free")
		m.RecordBooking("conflict")
		m.ObserveStage("responding", time.Millisecond)
	})
}

func TestMustNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustNewMetrics(reg)
	assert.Panics(t, func() { MustNewMetrics(reg) })
}
