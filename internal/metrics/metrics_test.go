package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementRegistered()
	m.ObservePatch("denied")
	m.ObservePatch("denied")
	m.ObservePermission("approved")
	m.IncrementNotificationFailure("ExperienceUpdated")
	m.ObserveHTTP("PATCH", 403)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExperiencesRegistered))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PatchOutcomes.WithLabelValues("denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PermissionTransitions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationFailures.WithLabelValues("ExperienceUpdated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("PATCH", "4xx")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementRegistered()
		m.ObservePatch("applied")
		m.ObservePermission("requested")
		m.IncrementNotificationFailure("x")
		m.IncrementSideEffectFailure("index")
		m.ObserveOperation("patch", time.Now())
		m.ObserveHTTP("GET", 200)
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(409))
	assert.Equal(t, "5xx", statusClass(503))
}
