// Package strategies provides the consensus strategies that implement
// the ports.Strategy interface for the go-concord consensus engine.
//
// Each strategy reduces a set of contributor predictions to one
// synthesized prediction. The basic strategies are pure functions of
// their input; the similarity-based strategies additionally consume an
// embedding provider, and the tournament strategy consumes an arbiter.
package strategies

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-concord/internal/domain"
)

// Contributor IDs carried by synthesized consensus predictions. These
// never collide with raw contributor output: callers are expected to
// use their own namespace for contributor IDs.
const (
	// ConsensusTopConfidence marks output of the top-confidence strategy.
	ConsensusTopConfidence = "top_confidence"

	// ConsensusMajorityVote marks output of the majority-vote strategy.
	ConsensusMajorityVote = "majority_vote"

	// ConsensusWeightedAverage marks output of the weighted-average strategy.
	ConsensusWeightedAverage = "weighted_average"

	// ConsensusAdaptive marks output of the adaptive selector, whichever
	// basic strategy it routed to.
	ConsensusAdaptive = "adaptive_consensus"

	// ConsensusSemantic marks output of the semantic clustering strategy.
	ConsensusSemantic = "semantic_consensus"

	// ConsensusShapley marks output of the Shapley approximation strategy.
	ConsensusShapley = "shapley_consensus"

	// ConsensusEntropy marks output of the entropy-based strategy.
	ConsensusEntropy = "entropy_consensus"

	// ConsensusRobust marks output of the robust combiner.
	ConsensusRobust = "robust_consensus"

	// ConsensusTournamentPrefix prefixes the champion's contributor ID in
	// tournament output ("tournament_winner_<contributor>").
	ConsensusTournamentPrefix = "tournament_winner_"
)

// Common errors returned by strategy constructors.
// These errors provide consistent error handling across all strategy
// implementations.
var (
	// ErrEmptyStrategyName is returned when attempting to create a
	// strategy with an empty name.
	ErrEmptyStrategyName = errors.New("strategy name cannot be empty")

	// ErrNilEmbedder is returned when a similarity-based strategy is
	// created without an embedding provider.
	ErrNilEmbedder = errors.New("embedding provider cannot be nil")

	// ErrNilArbiter is returned when the tournament strategy is created
	// without an arbiter.
	ErrNilArbiter = errors.New("arbiter cannot be nil")

	// ErrNoSubStrategies is returned when the robust combiner is created
	// with an empty strategy set.
	ErrNoSubStrategies = errors.New("robust combiner requires at least one sub-strategy")

	// ErrNilStrategy is returned when the instrumented wrapper is created
	// without a strategy to wrap.
	ErrNilStrategy = errors.New("wrapped strategy cannot be nil")
)

// Package-level validator instance for configuration validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// checkInput validates a prediction list before aggregation: it must be
// non-empty and every confidence must lie in [0, 1]. Input errors are
// returned synchronously; strategies never log-and-swallow them.
func checkInput(predictions []domain.Prediction) error {
	if len(predictions) == 0 {
		return domain.ErrNoPredictions
	}
	for _, p := range predictions {
		if p.Confidence < 0 || p.Confidence > 1 {
			return fmt.Errorf("contributor %q: confidence %v: %w",
				p.ContributorID, p.Confidence, domain.ErrInvalidConfidence)
		}
	}
	return nil
}

// topByConfidence returns the prediction with maximum confidence.
// Ties resolve to the first-encountered prediction, a deliberate
// deterministic policy.
func topByConfidence(predictions []domain.Prediction) domain.Prediction {
	best := predictions[0]
	for _, p := range predictions[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	return best
}

// numericValues coerces every prediction value to float64. It reports
// false when any value is non-numeric, signaling the caller to take the
// categorical code path instead.
func numericValues(predictions []domain.Prediction) ([]float64, bool) {
	out := make([]float64, len(predictions))
	for i, p := range predictions {
		f, ok := p.Value.Float()
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// meanConfidence returns the mean confidence across the predictions.
func meanConfidence(predictions []domain.Prediction) float64 {
	var sum float64
	for _, p := range predictions {
		sum += p.Confidence
	}
	return sum / float64(len(predictions))
}

// weightedValue reduces predictions under per-prediction weights:
// a weighted average for all-numeric values, or a weighted vote over
// stringified values otherwise (the degenerate-coercion fallback).
// A zero weight total degrades to equal weights.
func weightedValue(predictions []domain.Prediction, weights []float64) domain.Value {
	var totalW float64
	for _, w := range weights {
		totalW += w
	}

	if values, ok := numericValues(predictions); ok {
		if totalW <= 0 {
			var sum float64
			for _, v := range values {
				sum += v
			}
			return domain.NumericValue(sum / float64(len(values)))
		}
		var sum float64
		for i, v := range values {
			sum += v * weights[i]
		}
		return domain.NumericValue(sum / totalW)
	}

	// Categorical: accumulate weight per distinct stringified value and
	// keep the first-encountered argmax.
	tally := make(map[string]float64, len(predictions))
	order := make([]string, 0, len(predictions))
	for i, p := range predictions {
		key := p.Value.String()
		if _, seen := tally[key]; !seen {
			order = append(order, key)
		}
		w := weights[i]
		if totalW <= 0 {
			w = 1
		}
		tally[key] += w
	}
	bestKey := order[0]
	for _, key := range order[1:] {
		if tally[key] > tally[bestKey] {
			bestKey = key
		}
	}
	// Preserve the winning prediction's original value representation.
	for _, p := range predictions {
		if p.Value.String() == bestKey {
			return p.Value
		}
	}
	return domain.TextValue(bestKey)
}

// stringTexts returns the canonical textual form of each prediction
// value, in input order, for embedding.
func stringTexts(predictions []domain.Prediction) []string {
	texts := make([]string, len(predictions))
	for i, p := range predictions {
		texts[i] = p.Value.String()
	}
	return texts
}
