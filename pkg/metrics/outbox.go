package metrics

import "github.com/prometheus/client_golang/prometheus"

// Publish results used as the "result" label.
const (
	PublishResultPublished    = "published"
	PublishResultRetry        = "retry"
	PublishResultDeadLettered = "dead_lettered"
)

// OutboxMetrics counts outbox rows by publish result.
type OutboxMetrics struct {
	results *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_publish_total",
		Help:      "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(results)
	return &OutboxMetrics{results: results}
}

func (m *OutboxMetrics) Inc(eventType, result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(eventType), result).Inc()
}
