package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records gateway webhook processing outcomes.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	outcomes  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Webhook deliveries accepted for processing.",
	}, []string{"gateway"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_rejected",
		Help: "Webhook deliveries rejected before processing.",
	}, []string{"gateway", "reason"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_reconcile_outcomes",
		Help: "Reconciliation outcomes per processed event.",
	}, []string{"gateway", "outcome"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_handle_duration_seconds",
		Help:    "Duration of webhook handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})
	reg.MustRegister(received, rejected, outcomes, durations)
	return &WebhookMetrics{
		received:  received,
		rejected:  rejected,
		outcomes:  outcomes,
		durations: durations,
	}
}

// IncReceived counts an accepted delivery for the gateway.
func (m *WebhookMetrics) IncReceived(gateway string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(gateway)).Inc()
}

// IncRejected counts a rejected delivery with the rejection reason.
func (m *WebhookMetrics) IncRejected(gateway, reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(gateway), normalizeLabel(reason)).Inc()
}

// IncOutcome counts a reconciliation outcome for the gateway.
func (m *WebhookMetrics) IncOutcome(gateway, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(gateway), normalizeLabel(outcome)).Inc()
}

// ObserveDuration records handling duration for the gateway.
func (m *WebhookMetrics) ObserveDuration(gateway string, duration time.Duration) {
	if m == nil || m.durations == nil {
		return
	}
	m.durations.WithLabelValues(normalizeLabel(gateway)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
