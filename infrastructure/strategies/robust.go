package strategies

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/vecmath"
)

var _ ports.Strategy = (*RobustConsensusStrategy)(nil)

// Sub-strategy names accepted by the robust combiner configuration.
const (
	SubStrategyClustering = "semantic_clustering"
	SubStrategyShapley    = "shapley"
	SubStrategyEntropy    = "entropy"
)

// RobustConfig selects which similarity-based sub-strategies the
// combiner runs.
type RobustConfig struct {
	// Strategies is the subset of sub-strategies to run.
	//
	// Default: all three.
	Strategies []string `yaml:"strategies" json:"strategies" validate:"omitempty,dive,oneof=semantic_clustering shapley entropy"`
}

// DefaultRobustConfig returns a configuration running every
// similarity-based sub-strategy.
func DefaultRobustConfig() RobustConfig {
	return RobustConfig{Strategies: []string{SubStrategyClustering, SubStrategyShapley, SubStrategyEntropy}}
}

// RobustConsensusStrategy runs a caller-selected set of sub-strategies
// (typically semantic clustering, Shapley, and entropy) and fuses their
// outputs. A sub-strategy that fails is logged and excluded from the
// fusion; if every sub-strategy fails the combiner falls back to a
// plain majority vote or mean over the raw inputs. Partial results are
// therefore always accompanied by log entries naming what was skipped.
//
// Concurrency follows the sub-strategies: the combiner itself adds no
// shared state, but sub-strategies that retain diagnostics are not safe
// for concurrent use.
type RobustConsensusStrategy struct {
	name   string
	subs   []ports.Strategy
	logger *zap.Logger
}

// NewRobustConsensusStrategy creates a RobustConsensusStrategy over the
// given sub-strategies. A nil logger falls back to a no-op logger.
func NewRobustConsensusStrategy(name string, subs []ports.Strategy, logger *zap.Logger) (*RobustConsensusStrategy, error) {
	if name == "" {
		return nil, ErrEmptyStrategyName
	}
	if len(subs) == 0 {
		return nil, ErrNoSubStrategies
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobustConsensusStrategy{
		name:   name,
		subs:   subs,
		logger: logger.With(zap.String("strategy", name)),
	}, nil
}

// Name returns the unique identifier for this strategy instance.
func (s *RobustConsensusStrategy) Name() string { return s.name }

// Validate checks every sub-strategy.
func (s *RobustConsensusStrategy) Validate() error {
	if len(s.subs) == 0 {
		return ErrNoSubStrategies
	}
	for _, sub := range s.subs {
		if err := sub.Validate(); err != nil {
			return fmt.Errorf("sub-strategy %q: %w", sub.Name(), err)
		}
	}
	return nil
}

// Aggregate runs each sub-strategy in turn and fuses the survivors by
// confidence-weighted vote (string outputs) or confidence-weighted
// average (numeric outputs).
func (s *RobustConsensusStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	if err := checkInput(predictions); err != nil {
		return domain.Prediction{}, err
	}
	if len(predictions) == 1 {
		return predictions[0], nil
	}

	outputs := make([]domain.Prediction, 0, len(s.subs))
	for _, sub := range s.subs {
		result, err := sub.Aggregate(ctx, predictions)
		if err != nil {
			s.logger.Warn("sub-strategy failed, excluding from fusion",
				zap.String("sub_strategy", sub.Name()),
				zap.Error(err))
			continue
		}
		outputs = append(outputs, result)
	}

	if len(outputs) == 0 {
		s.logger.Error("all sub-strategies failed, falling back to basic consensus over raw inputs")
		return s.fallback(predictions), nil
	}

	weights := make([]float64, len(outputs))
	for i, o := range outputs {
		weights[i] = o.Confidence
	}
	value := weightedValue(outputs, weights)

	return domain.Prediction{
		ContributorID: ConsensusRobust,
		Value:         value,
		Confidence:    domain.ClampConfidence(meanConfidence(outputs)),
	}, nil
}

// fallback reduces the raw inputs without any sub-strategy: the plain
// mean for all-numeric values, the plain majority otherwise. The result
// still carries the robust consensus ID since it was synthesized here.
func (s *RobustConsensusStrategy) fallback(predictions []domain.Prediction) domain.Prediction {
	if values, ok := numericValues(predictions); ok {
		return domain.Prediction{
			ContributorID: ConsensusRobust,
			Value:         domain.NumericValue(vecmath.Mean(values)),
			Confidence:    domain.ClampConfidence(meanConfidence(predictions)),
		}
	}

	counts := make(map[string]int, len(predictions))
	order := make([]string, 0, len(predictions))
	for _, p := range predictions {
		key := p.Value.String()
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}
	bestKey := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[bestKey] {
			bestKey = key
		}
	}
	var value domain.Value
	var confSum float64
	var supporters int
	for _, p := range predictions {
		if p.Value.String() == bestKey {
			if supporters == 0 {
				value = p.Value
			}
			confSum += p.Confidence
			supporters++
		}
	}
	return domain.Prediction{
		ContributorID: ConsensusRobust,
		Value:         value,
		Confidence:    domain.ClampConfidence(confSum / float64(supporters)),
	}
}
