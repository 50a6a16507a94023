// Package middleware provides cross-cutting concerns for the consensus
// engine: Prometheus metrics collection and OpenTelemetry tracing
// around strategy execution.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-concord/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It exposes aggregation latency, throughput, and the
// consensus quality signals (agreement, entropy, outlier rate) emitted
// by the instrumented strategy wrapper.
type PrometheusMetrics struct {
	aggregationLatency *prometheus.HistogramVec
	operationCounter   *prometheus.CounterVec
	qualityGauges      *prometheus.GaugeVec
	valueHistograms    *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and
// registers its metrics with the given registerer. A nil registerer
// uses the global default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		aggregationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "consensus_aggregation_duration_seconds",
				Help:    "Execution time of consensus aggregation operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "strategy"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consensus_operations_total",
				Help: "Total number of consensus operations performed.",
			},
			[]string{"metric", "strategy"},
		),
		qualityGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "consensus_quality",
				Help: "Current consensus quality signals (agreement, entropy, outlier rate).",
			},
			[]string{"metric", "strategy"},
		),
		valueHistograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "consensus_value_distribution",
				Help:    "Distributions of per-aggregation values such as consensus confidence.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"metric", "strategy"},
		),
	}
}

// strategyLabel extracts the strategy label, defaulting to "unknown"
// so a missing label never drops a sample.
func strategyLabel(labels map[string]string) string {
	if s, ok := labels["strategy"]; ok {
		return s
	}
	return "unknown"
}

// RecordLatency records aggregation latency in the duration histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.aggregationLatency.WithLabelValues(operation, strategyLabel(labels)).Observe(duration.Seconds())
}

// RecordCounter increments the operation counter for the given metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	pm.operationCounter.WithLabelValues(metric, strategyLabel(labels)).Add(value)
}

// RecordGauge sets a consensus quality gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.qualityGauges.WithLabelValues(metric, strategyLabel(labels)).Set(value)
}

// RecordHistogram observes a value in the per-metric distribution.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.valueHistograms.WithLabelValues(metric, strategyLabel(labels)).Observe(value)
}
