package payment

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricInitiations            = "payment_initiations_total"
	MetricCallbacks              = "payment_callbacks_total"
	MetricSignatureFailures      = "payment_signature_failures_total"
	MetricGatewayRequestDuration = "payment_gateway_request_duration_seconds"
	MetricDuplicateCallbacks     = "payment_duplicate_callback_deliveries_total"
)

// Metrics contains Prometheus metrics for payment operations.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	initiations        *prometheus.CounterVec
	callbacks          *prometheus.CounterVec
	signatureFailures  prometheus.Counter
	gatewayDuration    *prometheus.HistogramVec
	duplicateCallbacks prometheus.Counter
}

// NewMetrics creates payment metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		initiations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricInitiations,
				Help: "Total number of payment initiations by outcome",
			},
			[]string{"outcome"},
		),
		callbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCallbacks,
				Help: "Total number of gateway callbacks by outcome",
			},
			[]string{"outcome"},
		),
		signatureFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricSignatureFailures,
				Help: "Total number of callbacks whose verify_sign did not match",
			},
		),
		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricGatewayRequestDuration,
				Help:    "Duration of gateway initiation requests in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
			[]string{"result"},
		),
		duplicateCallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricDuplicateCallbacks,
				Help: "Total number of repeated deliveries of an already accepted callback",
			},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.initiations,
		m.callbacks,
		m.signatureFailures,
		m.gatewayDuration,
		m.duplicateCallbacks,
	}
}

func (m *Metrics) incInitiation(outcome string) {
	if m == nil {
		return
	}
	m.initiations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incCallback(outcome string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incSignatureFailure() {
	if m == nil {
		return
	}
	m.signatureFailures.Inc()
}

func (m *Metrics) observeGateway(result string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(result).Observe(seconds)
}

// IncDuplicateCallback counts a repeated delivery of an accepted callback.
func (m *Metrics) IncDuplicateCallback() {
	if m == nil {
		return
	}
	m.duplicateCallbacks.Inc()
}
