package strategies

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/vecmath"
)

var _ ports.Strategy = (*AdaptiveConsensusStrategy)(nil)

// AdaptiveConsensusConfig defines the routing thresholds for the
// adaptive selector. The thresholds are heuristic constants, chosen by
// observation rather than derivation.
type AdaptiveConsensusConfig struct {
	// ConfidenceVarianceThreshold routes numeric inputs to the weighted
	// average once the population variance of the confidences exceeds it.
	// High variance means the confidences carry signal worth weighting by.
	ConfidenceVarianceThreshold float64 `yaml:"confidence_variance_threshold" json:"confidence_variance_threshold" validate:"min=0,max=1"`

	// DiversityThreshold routes to majority vote while the value
	// diversity (distinct values over N-1) stays below it. Low diversity
	// means repeated values exist for a vote to find.
	DiversityThreshold float64 `yaml:"diversity_threshold" json:"diversity_threshold" validate:"min=0"`
}

// DefaultAdaptiveConsensusConfig returns the routing thresholds used in
// production.
func DefaultAdaptiveConsensusConfig() AdaptiveConsensusConfig {
	return AdaptiveConsensusConfig{
		ConfidenceVarianceThreshold: 0.01,
		DiversityThreshold:          0.5,
	}
}

// AdaptiveConsensusStrategy inspects the input predictions and routes
// them to the basic strategy best suited to their shape: weighted
// average for numeric values with meaningful confidence spread,
// majority vote for low-diversity categorical values, top confidence
// otherwise. The routed result is relabeled with the adaptive consensus
// ID so callers can tell it was produced through routing.
//
// The strategy is stateless apart from its immutable configuration and
// is safe for concurrent use.
type AdaptiveConsensusStrategy struct {
	name   string
	config AdaptiveConsensusConfig

	weighted *WeightedAverageStrategy
	majority *MajorityVoteStrategy
	top      *TopConfidenceStrategy
}

// NewAdaptiveConsensusStrategy creates an AdaptiveConsensusStrategy
// with the specified routing thresholds.
func NewAdaptiveConsensusStrategy(name string, config AdaptiveConsensusConfig) (*AdaptiveConsensusStrategy, error) {
	if name == "" {
		return nil, ErrEmptyStrategyName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	weighted, err := NewWeightedAverageStrategy(name + "_weighted")
	if err != nil {
		return nil, err
	}
	majority, err := NewMajorityVoteStrategy(name + "_majority")
	if err != nil {
		return nil, err
	}
	top, err := NewTopConfidenceStrategy(name + "_top")
	if err != nil {
		return nil, err
	}

	return &AdaptiveConsensusStrategy{
		name:     name,
		config:   config,
		weighted: weighted,
		majority: majority,
		top:      top,
	}, nil
}

// Name returns the unique identifier for this strategy instance.
func (s *AdaptiveConsensusStrategy) Name() string { return s.name }

// Validate reports whether the strategy is ready for execution.
func (s *AdaptiveConsensusStrategy) Validate() error {
	return validate.Struct(s.config)
}

// UnmarshalParameters decodes YAML configuration and replaces the
// routing thresholds after validation.
func (s *AdaptiveConsensusStrategy) UnmarshalParameters(params yaml.Node) error {
	var config AdaptiveConsensusConfig
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	s.config = config
	return nil
}

// Aggregate classifies the inputs and delegates to the selected basic
// strategy.
func (s *AdaptiveConsensusStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	if err := checkInput(predictions); err != nil {
		return domain.Prediction{}, err
	}
	if len(predictions) == 1 {
		return predictions[0], nil
	}

	result, err := s.route(predictions).Aggregate(ctx, predictions)
	if err != nil {
		return domain.Prediction{}, err
	}
	result.ContributorID = ConsensusAdaptive
	return result, nil
}

// route picks the basic strategy for the given input shape.
func (s *AdaptiveConsensusStrategy) route(predictions []domain.Prediction) ports.Strategy {
	confidences := make([]float64, len(predictions))
	for i, p := range predictions {
		confidences[i] = p.Confidence
	}

	_, numeric := numericValues(predictions)
	if numeric && vecmath.Variance(confidences) > s.config.ConfidenceVarianceThreshold {
		return s.weighted
	}

	distinct := make(map[string]struct{}, len(predictions))
	for _, p := range predictions {
		distinct[p.Value.String()] = struct{}{}
	}
	diversity := float64(len(distinct)) / float64(len(predictions)-1)
	if diversity < s.config.DiversityThreshold {
		return s.majority
	}

	return s.top
}
