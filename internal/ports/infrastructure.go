package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-concord/internal/domain"
)

// EmbeddingProvider maps text to dense vectors for similarity
// computation. Implementations wrap hosted embedding APIs or local
// models; callers make no normalization assumption and normalize
// explicitly when needed.
type EmbeddingProvider interface {
	// Embed returns one embedding per input text, preserving order.
	// Embeddings are produced fresh per call; no caching is guaranteed.
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Arbiter resolves a tournament match between two predictions.
// Implementations range from a deterministic heuristic to an LLM-backed
// judge; either way they return a winner, a rationale, and a confidence
// adjustment within a bounded range.
type Arbiter interface {
	// Arbitrate rules on a single match. The task parameter is the
	// original question the predictions answer and provides context for
	// the ruling. Implementations should respect context cancellation;
	// the tournament strategy enforces a per-match timeout and falls
	// back to confidence comparison when arbitration fails.
	Arbitrate(ctx context.Context, a, b domain.Prediction, task string) (domain.ArbitrationResult, error)
}

// MetricsCollector defines the interface for collecting operational
// metrics. Implementations integrate with observability platforms such
// as Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
