package strategies

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/vecmath"
)

var _ ports.Strategy = (*InstrumentedStrategy)(nil)

// InstrumentedConfig defines the configuration parameters for the
// InstrumentedStrategy.
type InstrumentedConfig struct {
	// HistorySize caps the retained metrics snapshots; older snapshots
	// are evicted.
	//
	// Default: 100.
	HistorySize int `yaml:"history_size" json:"history_size" validate:"min=1"`

	// SummaryWindow is the number of most recent snapshots aggregated by
	// Summary.
	//
	// Default: 10.
	SummaryWindow int `yaml:"summary_window" json:"summary_window" validate:"min=1"`

	// EnablePerturbation turns on the perturbation robustness test:
	// the wrapped strategy is rerun with Gaussian noise added to the
	// input confidences and the output drift is measured. This
	// multiplies the cost of every aggregation by PerturbationTrials.
	EnablePerturbation bool `yaml:"enable_perturbation" json:"enable_perturbation"`

	// PerturbationTrials is the number of noisy reruns per aggregation.
	//
	// Default: 5.
	PerturbationTrials int `yaml:"perturbation_trials" json:"perturbation_trials" validate:"min=1,max=50"`

	// PerturbationNoise is the standard deviation of the Gaussian noise
	// added to each confidence.
	//
	// Default: 0.05.
	PerturbationNoise float64 `yaml:"perturbation_noise" json:"perturbation_noise" validate:"min=0"`
}

// DefaultInstrumentedConfig returns the standard instrumentation
// parameters with perturbation testing disabled.
func DefaultInstrumentedConfig() InstrumentedConfig {
	return InstrumentedConfig{
		HistorySize:        100,
		SummaryWindow:      10,
		PerturbationTrials: 5,
		PerturbationNoise:  0.05,
	}
}

// InstrumentedStrategy decorates any strategy with per-aggregation
// measurement: agreement, entropy, outlier rate, per-contributor
// contribution estimates, wall-clock duration, and an optional
// perturbation robustness test. Snapshots accumulate in a bounded
// history with summary and per-contributor query methods.
//
// Metric computation never fails an aggregation: the wrapped result is
// returned as-is and measurement problems only reduce snapshot detail.
//
// The wrapper owns mutable history buffers, so a single instance must
// not serve concurrent Aggregate calls.
type InstrumentedStrategy struct {
	inner   ports.Strategy
	config  InstrumentedConfig
	logger  *zap.Logger
	metrics ports.MetricsCollector
	// rng drives perturbation noise; injectable for reproducible tests.
	rng *rand.Rand

	history *domain.History[domain.PerformanceMetrics]
	// contributions keeps each contributor's weight series across
	// aggregations, bounded like the snapshot history.
	contributions map[string]*domain.History[float64]
	total         int
}

// NewInstrumentedStrategy wraps inner with instrumentation. The metrics
// collector may be nil when no metrics backend is wired; a nil logger
// falls back to a no-op logger and a nil rng to an unseeded source.
func NewInstrumentedStrategy(inner ports.Strategy, config InstrumentedConfig, logger *zap.Logger, metrics ports.MetricsCollector, rng *rand.Rand) (*InstrumentedStrategy, error) {
	if inner == nil {
		return nil, ErrNilStrategy
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &InstrumentedStrategy{
		inner:         inner,
		config:        config,
		logger:        logger.With(zap.String("strategy", inner.Name())),
		metrics:       metrics,
		rng:           rng,
		history:       domain.NewHistory[domain.PerformanceMetrics](config.HistorySize),
		contributions: make(map[string]*domain.History[float64]),
	}, nil
}

// Name returns the wrapped strategy's identifier; instrumentation is
// transparent to registry lookups and logging.
func (s *InstrumentedStrategy) Name() string { return s.inner.Name() }

// Validate checks the wrapped strategy.
func (s *InstrumentedStrategy) Validate() error { return s.inner.Validate() }

// MetricsHistory returns the retained snapshots, oldest first.
func (s *InstrumentedStrategy) MetricsHistory() []domain.PerformanceMetrics {
	return s.history.Items()
}

// Aggregate delegates to the wrapped strategy and records a metrics
// snapshot for the call.
func (s *InstrumentedStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	start := time.Now()
	result, err := s.inner.Aggregate(ctx, predictions)
	duration := time.Since(start)
	if err != nil {
		s.logger.Warn("wrapped strategy failed",
			zap.Duration("duration", duration),
			zap.Error(err))
		return domain.Prediction{}, err
	}

	snapshot := domain.PerformanceMetrics{
		AgreementScore:    agreementScore(predictions),
		PredictionEntropy: predictionEntropy(predictions),
		Confidence:        result.Confidence,
		Contributions:     s.estimateContributions(predictions, result),
		OutlierRate:       outlierRate(predictions),
		Duration:          duration,
		Timestamp:         time.Now(),
	}

	if s.config.EnablePerturbation && len(predictions) > 1 {
		snapshot.Stability, snapshot.StabilityVariance = s.perturbationTest(ctx, predictions, result)
	}

	if cd, ok := s.inner.(ports.ClusterDiagnostics); ok {
		if cr, ok := cd.LastClusterResult(); ok {
			summary := cr.Summary()
			snapshot.Clusters = &summary
		}
	}

	s.record(snapshot)

	s.logger.Debug("aggregation measured",
		zap.Float64("agreement", snapshot.AgreementScore),
		zap.Float64("entropy", snapshot.PredictionEntropy),
		zap.Float64("confidence", snapshot.Confidence),
		zap.Float64("outlier_rate", snapshot.OutlierRate),
		zap.Duration("duration", duration))

	return result, nil
}

// Summary aggregates the most recent snapshots (the configured summary
// window) into headline numbers.
func (s *InstrumentedStrategy) Summary() domain.PerformanceSummary {
	recent := s.history.Recent(s.config.SummaryWindow)
	summary := domain.PerformanceSummary{
		Snapshots:         len(recent),
		TotalAggregations: s.total,
	}
	if len(recent) == 0 {
		return summary
	}

	var durations time.Duration
	perContributor := make(map[string][]float64)
	for _, m := range recent {
		summary.AvgAgreement += m.AgreementScore
		summary.AvgEntropy += m.PredictionEntropy
		summary.AvgConfidence += m.Confidence
		summary.AvgOutlier += m.OutlierRate
		durations += m.Duration
		for id, w := range m.Contributions {
			perContributor[id] = append(perContributor[id], w)
		}
	}
	n := float64(len(recent))
	summary.AvgAgreement /= n
	summary.AvgEntropy /= n
	summary.AvgConfidence /= n
	summary.AvgOutlier /= n
	summary.AvgDuration = durations / time.Duration(len(recent))

	for id, ws := range perContributor {
		summary.TopContributors = append(summary.TopContributors, domain.ContributorScore{
			ContributorID: id,
			Score:         vecmath.Mean(ws),
		})
	}
	sort.SliceStable(summary.TopContributors, func(i, j int) bool {
		return summary.TopContributors[i].Score > summary.TopContributors[j].Score
	})
	if len(summary.TopContributors) > 5 {
		summary.TopContributors = summary.TopContributors[:5]
	}
	return summary
}

// ContributorPerformance reports one contributor's contribution record
// across the retained history.
func (s *InstrumentedStrategy) ContributorPerformance(contributorID string) domain.ContributorPerformance {
	h, ok := s.contributions[contributorID]
	if !ok || h.Len() == 0 {
		return domain.ContributorPerformance{}
	}

	series := h.Items()
	mean := vecmath.Mean(series)
	recent := vecmath.Mean(h.Recent(5))

	consistency := 0.0
	if mean > 0 {
		consistency = 1 - vecmath.StdDev(series)/mean
		if consistency < 0 {
			consistency = 0
		}
	}

	return domain.ContributorPerformance{
		Participations:      len(series),
		AverageContribution: mean,
		Trend:               recent - mean,
		Consistency:         consistency,
	}
}

// record appends the snapshot and feeds the per-contributor series and
// the metrics backend.
func (s *InstrumentedStrategy) record(snapshot domain.PerformanceMetrics) {
	s.history.Append(snapshot)
	s.total++

	for id, w := range snapshot.Contributions {
		h, ok := s.contributions[id]
		if !ok {
			h = domain.NewHistory[float64](s.config.HistorySize)
			s.contributions[id] = h
		}
		h.Append(w)
	}

	if s.metrics == nil {
		return
	}
	labels := map[string]string{"strategy": s.inner.Name()}
	s.metrics.RecordLatency("aggregate", snapshot.Duration, labels)
	s.metrics.RecordCounter("aggregations_total", 1, labels)
	s.metrics.RecordGauge("agreement_score", snapshot.AgreementScore, labels)
	s.metrics.RecordGauge("prediction_entropy", snapshot.PredictionEntropy, labels)
	s.metrics.RecordHistogram("consensus_confidence", snapshot.Confidence, labels)
	s.metrics.RecordGauge("outlier_rate", snapshot.OutlierRate, labels)
}

// perturbationTest reruns the wrapped strategy with Gaussian noise on
// the input confidences and scores how far the output moves. A score of
// 1.0 means the output did not move at all.
func (s *InstrumentedStrategy) perturbationTest(ctx context.Context, predictions []domain.Prediction, original domain.Prediction) (float64, float64) {
	scores := make([]float64, 0, s.config.PerturbationTrials)
	for trial := 0; trial < s.config.PerturbationTrials; trial++ {
		perturbed := make([]domain.Prediction, len(predictions))
		for i, p := range predictions {
			perturbed[i] = p.WithConfidence(p.Confidence + s.rng.NormFloat64()*s.config.PerturbationNoise)
		}
		rerun, err := s.inner.Aggregate(ctx, perturbed)
		if err != nil {
			s.logger.Debug("perturbation trial failed",
				zap.Int("trial", trial),
				zap.Error(err))
			continue
		}
		scores = append(scores, stabilityScore(original, rerun))
	}
	if len(scores) == 0 {
		return 0, 0
	}
	return vecmath.Mean(scores), vecmath.Variance(scores)
}

// stabilityScore compares the original and perturbed outputs: numeric
// outputs score by relative deviation, others by exact value equality.
func stabilityScore(original, perturbed domain.Prediction) float64 {
	if ov, ok := original.Value.Float(); ok {
		if pv, ok := perturbed.Value.Float(); ok {
			deviation := math.Abs(ov-pv) / (math.Abs(ov) + 1e-9)
			if deviation > 1 {
				deviation = 1
			}
			return 1 - deviation
		}
	}
	if original.Value.String() == perturbed.Value.String() {
		return 1
	}
	return 0
}

// estimateContributions attributes shares of the final result to the
// contributors: the wrapped strategy's own tracked weights when it
// exposes them, otherwise a similarity/confidence heuristic against the
// result value.
func (s *InstrumentedStrategy) estimateContributions(predictions []domain.Prediction, result domain.Prediction) map[string]float64 {
	if tracker, ok := s.inner.(ports.ContributionTracker); ok {
		if weights, ok := tracker.Contributions(); ok {
			return weights
		}
	}

	raw := make(map[string]float64, len(predictions))
	var total float64
	for _, p := range predictions {
		w := resultSimilarity(p.Value, result.Value) * p.Confidence
		raw[p.ContributorID] += w
		total += w
	}
	if total > 0 {
		for id := range raw {
			raw[id] /= total
		}
	}
	return raw
}

// resultSimilarity scores how close a contributor's value is to the
// consensus value: relative closeness for numeric pairs, normalized
// Levenshtein similarity for text.
func resultSimilarity(value, result domain.Value) float64 {
	if v, ok := value.Float(); ok {
		if r, ok := result.Float(); ok {
			deviation := math.Abs(v-r) / (math.Max(math.Abs(v), math.Abs(r)) + 1e-9)
			if deviation > 1 {
				deviation = 1
			}
			return 1 - deviation
		}
	}

	a, b := value.String(), result.String()
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

// agreementScore measures input agreement: 1 - coefficient of variation
// for numeric predictions, 1 - normalized distinct-value ratio for
// categorical predictions.
func agreementScore(predictions []domain.Prediction) float64 {
	if len(predictions) < 2 {
		return 1
	}

	if values, ok := numericValues(predictions); ok {
		mean := vecmath.Mean(values)
		std := vecmath.StdDev(values)
		if math.Abs(mean) < 1e-12 {
			if std < 1e-12 {
				return 1
			}
			return 0
		}
		cv := std / math.Abs(mean)
		return domain.ClampConfidence(1 - cv)
	}

	distinct := make(map[string]struct{}, len(predictions))
	for _, p := range predictions {
		distinct[p.Value.String()] = struct{}{}
	}
	ratio := float64(len(distinct)-1) / float64(len(predictions))
	return domain.ClampConfidence(1 - ratio)
}

// predictionEntropy measures input dispersion: histogram-based Shannon
// entropy for numeric values, frequency-based for categorical.
func predictionEntropy(predictions []domain.Prediction) float64 {
	if values, ok := numericValues(predictions); ok {
		return vecmath.HistogramEntropy(values, 10)
	}
	counts := make(map[string]int, len(predictions))
	for _, p := range predictions {
		counts[p.Value.String()]++
	}
	return vecmath.FrequencyEntropy(counts)
}

// outlierRate is the fraction of contributors whose confidence falls
// more than two standard deviations below the mean.
func outlierRate(predictions []domain.Prediction) float64 {
	if len(predictions) < 2 {
		return 0
	}
	confidences := make([]float64, len(predictions))
	for i, p := range predictions {
		confidences[i] = p.Confidence
	}
	mean := vecmath.Mean(confidences)
	std := vecmath.StdDev(confidences)
	if std == 0 {
		return 0
	}
	cutoff := mean - 2*std
	outliers := 0
	for _, c := range confidences {
		if c < cutoff {
			outliers++
		}
	}
	return float64(outliers) / float64(len(confidences))
}
