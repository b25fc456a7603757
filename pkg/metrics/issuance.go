package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Issuance outcomes used as the "outcome" label.
const (
	OutcomeIssued            = "issued"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeInvalidState      = "invalid_state"
	OutcomeNotFound          = "not_found"
	OutcomeError             = "error"
)

// IssuanceMetrics tracks issuance attempts and stock alerts.
type IssuanceMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
	lowStock prometheus.Counter
	returns  prometheus.Counter
}

// NewIssuanceMetrics registers the issuance metrics on reg. A nil registerer
// yields a no-op recorder.
func NewIssuanceMetrics(reg prometheus.Registerer) *IssuanceMetrics {
	if reg == nil {
		return &IssuanceMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "issuance_attempts_total",
		Help:      "Material request issuance attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "issuance_duration_seconds",
		Help:      "Duration of the issuance unit of work.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	lowStock := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inventory_low_stock_crossings_total",
		Help:      "Inventory records that dropped to or below their alert quantity.",
	})
	returns := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "material_returns_total",
		Help:      "Material returns recorded.",
	})
	reg.MustRegister(outcomes, duration, lowStock, returns)
	return &IssuanceMetrics{
		outcomes: outcomes,
		duration: duration,
		lowStock: lowStock,
		returns:  returns,
	}
}

// Observe records one issuance attempt.
func (m *IssuanceMetrics) Observe(outcome string, d time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	if outcome == "" {
		outcome = OutcomeError
	}
	m.outcomes.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *IssuanceMetrics) IncLowStock(n int) {
	if m == nil || m.lowStock == nil || n <= 0 {
		return
	}
	m.lowStock.Add(float64(n))
}

func (m *IssuanceMetrics) IncReturn() {
	if m == nil || m.returns == nil {
		return
	}
	m.returns.Inc()
}
