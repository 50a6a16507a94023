package strategies

import (
	"context"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/vecmath"
)

var _ ports.Strategy = (*TopConfidenceStrategy)(nil)
var _ ports.Strategy = (*MajorityVoteStrategy)(nil)
var _ ports.Strategy = (*WeightedAverageStrategy)(nil)

// TopConfidenceStrategy selects the prediction with the highest
// self-reported confidence. Ties resolve to the first-encountered
// prediction.
//
// The strategy is stateless and safe for concurrent use.
type TopConfidenceStrategy struct {
	name string
}

// NewTopConfidenceStrategy creates a TopConfidenceStrategy with the
// given instance name.
func NewTopConfidenceStrategy(name string) (*TopConfidenceStrategy, error) {
	if name == "" {
		return nil, ErrEmptyStrategyName
	}
	return &TopConfidenceStrategy{name: name}, nil
}

// Name returns the unique identifier for this strategy instance.
func (s *TopConfidenceStrategy) Name() string { return s.name }

// Validate reports whether the strategy is ready for execution.
func (s *TopConfidenceStrategy) Validate() error { return nil }

// Aggregate returns the most confident prediction's value under the
// top-confidence consensus ID.
func (s *TopConfidenceStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	if err := checkInput(predictions); err != nil {
		return domain.Prediction{}, err
	}
	if len(predictions) == 1 {
		return predictions[0], nil
	}

	best := topByConfidence(predictions)
	return domain.Prediction{
		ContributorID: ConsensusTopConfidence,
		Value:         best.Value,
		Confidence:    domain.ClampConfidence(best.Confidence),
	}, nil
}

// MajorityVoteStrategy returns the most frequent stringified value.
// Ties resolve to the first-encountered value; the output confidence is
// the mean confidence of the winning value's supporters.
//
// The strategy is stateless and safe for concurrent use.
type MajorityVoteStrategy struct {
	name string
}

// NewMajorityVoteStrategy creates a MajorityVoteStrategy with the given
// instance name.
func NewMajorityVoteStrategy(name string) (*MajorityVoteStrategy, error) {
	if name == "" {
		return nil, ErrEmptyStrategyName
	}
	return &MajorityVoteStrategy{name: name}, nil
}

// Name returns the unique identifier for this strategy instance.
func (s *MajorityVoteStrategy) Name() string { return s.name }

// Validate reports whether the strategy is ready for execution.
func (s *MajorityVoteStrategy) Validate() error { return nil }

// Aggregate counts stringified values and returns the plurality winner.
func (s *MajorityVoteStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	if err := checkInput(predictions); err != nil {
		return domain.Prediction{}, err
	}
	if len(predictions) == 1 {
		return predictions[0], nil
	}

	counts := make(map[string]int, len(predictions))
	supporters := make(map[string][]domain.Prediction, len(predictions))
	order := make([]string, 0, len(predictions))
	for _, p := range predictions {
		key := p.Value.String()
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
		supporters[key] = append(supporters[key], p)
	}

	bestKey := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[bestKey] {
			bestKey = key
		}
	}

	winners := supporters[bestKey]
	return domain.Prediction{
		ContributorID: ConsensusMajorityVote,
		Value:         winners[0].Value,
		Confidence:    domain.ClampConfidence(meanConfidence(winners)),
	}, nil
}

// WeightedAverageStrategy computes the confidence-weighted mean of
// numeric prediction values: sum(value * confidence) / sum(confidence).
// When total confidence is zero it degrades to the unweighted mean, and
// when any value is non-numeric it degrades to the categorical
// confidence-weighted vote rather than raising.
//
// The strategy is stateless and safe for concurrent use.
type WeightedAverageStrategy struct {
	name string
}

// NewWeightedAverageStrategy creates a WeightedAverageStrategy with the
// given instance name.
func NewWeightedAverageStrategy(name string) (*WeightedAverageStrategy, error) {
	if name == "" {
		return nil, ErrEmptyStrategyName
	}
	return &WeightedAverageStrategy{name: name}, nil
}

// Name returns the unique identifier for this strategy instance.
func (s *WeightedAverageStrategy) Name() string { return s.name }

// Validate reports whether the strategy is ready for execution.
func (s *WeightedAverageStrategy) Validate() error { return nil }

// Aggregate produces the confidence-weighted value with the mean input
// confidence as the output confidence.
func (s *WeightedAverageStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	if err := checkInput(predictions); err != nil {
		return domain.Prediction{}, err
	}
	if len(predictions) == 1 {
		return predictions[0], nil
	}

	weights := make([]float64, len(predictions))
	for i, p := range predictions {
		weights[i] = p.Confidence
	}
	value := weightedValue(predictions, weights)

	return domain.Prediction{
		ContributorID: ConsensusWeightedAverage,
		Value:         value,
		Confidence:    domain.ClampConfidence(vecmath.Mean(weights)),
	}, nil
}
