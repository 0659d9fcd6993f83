package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var operationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics covers the experience workflow: registrations, patch outcomes,
// edit-permission transitions and best-effort side effects.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ExperiencesRegistered prometheus.Counter
	PatchOutcomes         *prometheus.CounterVec
	PermissionTransitions *prometheus.CounterVec
	NotificationFailures  *prometheus.CounterVec
	SideEffectFailures    *prometheus.CounterVec
	OperationDuration     *prometheus.HistogramVec
	HTTPRequests          *prometheus.CounterVec
}

// New registers every metric on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExperiencesRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "experiences_registered_total",
			Help: "Total number of experiences registered",
		}),
		PatchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "experiences_patch_total",
			Help: "Patch attempts by outcome",
		}, []string{"outcome"}),
		PermissionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "experiences_edit_permission_transitions_total",
			Help: "Edit permission transitions (requested, approved)",
		}, []string{"transition"}),
		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "experiences_notification_failures_total",
			Help: "Notifications that could not be delivered",
		}, []string{"event"}),
		SideEffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "experiences_side_effect_failures_total",
			Help: "Post-commit side effects (index, archive, email) that failed",
		}, []string{"effect"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "experiences_operation_duration_seconds",
			Help:    "Duration of workflow operations",
			Buckets: operationBuckets,
		}, []string{"operation"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "experiences_http_requests_total",
			Help: "HTTP requests by method and status class",
		}, []string{"method", "status"}),
	}
}

func (m *Metrics) IncrementRegistered() {
	if m == nil {
		return
	}
	m.ExperiencesRegistered.Inc()
}

// ObservePatch records a patch outcome such as "applied", "not_found",
// "denied", "expired" or "failed".
func (m *Metrics) ObservePatch(outcome string) {
	if m == nil {
		return
	}
	m.PatchOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePermission(transition string) {
	if m == nil {
		return
	}
	m.PermissionTransitions.WithLabelValues(transition).Inc()
}

func (m *Metrics) IncrementNotificationFailure(event string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(event).Inc()
}

func (m *Metrics) IncrementSideEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.SideEffectFailures.WithLabelValues(effect).Inc()
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTP(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
