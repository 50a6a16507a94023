package domain

import "time"

// PerformanceMetrics is a per-aggregation snapshot captured by the
// instrumented aggregator. Snapshots are appended to a bounded history
// owned by one aggregator instance and are never shared across instances.
type PerformanceMetrics struct {
	// AgreementScore measures how much the input predictions agree:
	// 1 - coefficient of variation for numeric inputs, or
	// 1 - normalized distinct-value count for categorical inputs.
	AgreementScore float64 `json:"agreement_score"`

	// PredictionEntropy is the Shannon entropy of the input value
	// distribution (histogram-based for numeric, frequency-based for
	// categorical).
	PredictionEntropy float64 `json:"prediction_entropy"`

	// Confidence is the confidence of the synthesized consensus.
	Confidence float64 `json:"confidence"`

	// Contributions maps contributor IDs to their estimated share in the
	// final result.
	Contributions map[string]float64 `json:"contributions"`

	// OutlierRate is the fraction of contributors whose confidence fell
	// more than two standard deviations below the mean.
	OutlierRate float64 `json:"outlier_rate"`

	// Duration is the wall-clock time of the wrapped strategy call.
	Duration time.Duration `json:"duration"`

	// Stability reports the perturbation robustness score in [0, 1] when
	// perturbation testing is enabled; 1.0 means the output did not move.
	Stability float64 `json:"stability"`

	// StabilityVariance is the variance of the per-trial stability scores.
	StabilityVariance float64 `json:"stability_variance"`

	// Clusters carries the wrapped strategy's cluster diagnostics when it
	// exposes them.
	Clusters *ClusterSummary `json:"clusters,omitempty"`

	// Timestamp records when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`
}

// PerformanceSummary aggregates the most recent PerformanceMetrics
// snapshots into headline numbers for dashboards and logs.
type PerformanceSummary struct {
	// Snapshots is the number of recent snapshots summarized.
	Snapshots int `json:"snapshots"`

	// TotalAggregations is the lifetime count of aggregations observed,
	// including snapshots already evicted from the history.
	TotalAggregations int `json:"total_aggregations"`

	AvgAgreement  float64 `json:"avg_agreement"`
	AvgEntropy    float64 `json:"avg_entropy"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgOutlier    float64 `json:"avg_outlier_rate"`

	// AvgDuration is the mean wall-clock aggregation time.
	AvgDuration time.Duration `json:"avg_duration"`

	// TopContributors lists contributors by descending mean contribution
	// over the summarized snapshots.
	TopContributors []ContributorScore `json:"top_contributors"`
}

// ContributorScore pairs a contributor with its mean contribution
// weight.
type ContributorScore struct {
	ContributorID string  `json:"contributor_id"`
	Score         float64 `json:"score"`
}

// ContributorPerformance reports one contributor's standing across the
// retained metrics history.
type ContributorPerformance struct {
	// Participations counts the snapshots the contributor appeared in.
	Participations int `json:"participations"`

	// AverageContribution is the mean contribution weight across those
	// snapshots.
	AverageContribution float64 `json:"average_contribution"`

	// Trend is the recent mean contribution minus the overall mean;
	// positive values indicate an improving contributor.
	Trend float64 `json:"trend"`

	// Consistency is 1 - the coefficient of variation of the
	// contribution weights; erratic contributors score low.
	Consistency float64 `json:"consistency"`
}

// History is a bounded, append-only buffer. Once the capacity is reached
// the oldest entries are evicted. It is not safe for concurrent use; the
// consensus engine assumes a single aggregation in flight per instance.
type History[T any] struct {
	cap   int
	items []T
}

// NewHistory creates a History holding at most capacity entries.
// A non-positive capacity defaults to 1.
func NewHistory[T any](capacity int) *History[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &History[T]{cap: capacity}
}

// Append adds an entry, evicting the oldest when the buffer is full.
func (h *History[T]) Append(v T) {
	h.items = append(h.items, v)
	if len(h.items) > h.cap {
		// Shift rather than reslice so the backing array does not pin
		// evicted entries.
		copy(h.items, h.items[len(h.items)-h.cap:])
		h.items = h.items[:h.cap]
	}
}

// Len returns the number of retained entries.
func (h *History[T]) Len() int { return len(h.items) }

// Items returns a copy of the retained entries, oldest first.
func (h *History[T]) Items() []T {
	out := make([]T, len(h.items))
	copy(out, h.items)
	return out
}

// Recent returns a copy of the most recent n entries, oldest first.
// When fewer than n entries are retained, all of them are returned.
func (h *History[T]) Recent(n int) []T {
	if n <= 0 {
		return nil
	}
	if n > len(h.items) {
		n = len(h.items)
	}
	out := make([]T, n)
	copy(out, h.items[len(h.items)-n:])
	return out
}
