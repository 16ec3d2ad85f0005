package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	ProviderErrors    *prometheus.CounterVec
	ShipmentStatuses  *prometheus.CounterVec
}

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendparcel_operations_total",
				Help: "Total number of flow operations by operation, provider, and outcome",
			},
			[]string{"operation", "provider", "outcome"},
		),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sendparcel_operation_duration_seconds",
				Help:    "Flow operation duration in seconds by operation and provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "provider"},
		),
		ProviderErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendparcel_provider_errors_total",
				Help: "Total provider API errors by provider and error type",
			},
			[]string{"provider", "error_type"},
		),
		ShipmentStatuses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendparcel_shipment_status_total",
				Help: "Total shipment status transitions by target status",
			},
			[]string{"status"},
		),
	}
}

// RecordOperation records an operation metric.
func (m *Metrics) RecordOperation(operation, provider, outcome string, duration float64) {
	m.OperationsTotal.WithLabelValues(operation, provider, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation, provider).Observe(duration)
}

// RecordError records a provider error metric.
func (m *Metrics) RecordError(provider, errorType string) {
	m.ProviderErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordStatus records a shipment status transition.
func (m *Metrics) RecordStatus(status string) {
	m.ShipmentStatuses.WithLabelValues(status).Inc()
}
