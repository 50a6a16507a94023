package strategies

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/vecmath"
)

var _ ports.Strategy = (*EntropyStrategy)(nil)

// EntropyConfig defines the uncertainty threshold for the entropy-based
// strategy.
type EntropyConfig struct {
	// HighEntropyThreshold is the normalized disagreement entropy above
	// which the input set is treated as too uncertain for weighting and
	// the strategy falls back to the single most confident prediction.
	//
	// Range: 0.0 to 1.0. Default: 0.6.
	HighEntropyThreshold float64 `yaml:"high_entropy_threshold" json:"high_entropy_threshold" validate:"min=0.0,max=1.0"`
}

// DefaultEntropyConfig returns the standard uncertainty threshold.
func DefaultEntropyConfig() EntropyConfig {
	return EntropyConfig{HighEntropyThreshold: 0.6}
}

// EntropyStrategy measures how much the predictions disagree via the
// Shannon entropy of their pairwise dissimilarity distribution and
// discounts the consensus confidence by (1 - entropy).
//
// Above the entropy threshold the set is considered unreliable and the
// most confident prediction is returned, heavily discounted. Below it,
// each prediction is weighted by its mean similarity to all others for
// a similarity-weighted vote or average.
//
// The strategy is stateless apart from its immutable configuration and
// embedding provider and is safe for concurrent use.
type EntropyStrategy struct {
	name     string
	config   EntropyConfig
	embedder ports.EmbeddingProvider
}

// NewEntropyStrategy creates an EntropyStrategy with the specified
// configuration and embedding provider.
func NewEntropyStrategy(name string, config EntropyConfig, embedder ports.EmbeddingProvider) (*EntropyStrategy, error) {
	if name == "" {
		return nil, ErrEmptyStrategyName
	}
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &EntropyStrategy{name: name, config: config, embedder: embedder}, nil
}

// Name returns the unique identifier for this strategy instance.
func (s *EntropyStrategy) Name() string { return s.name }

// Validate reports whether the strategy is ready for execution.
func (s *EntropyStrategy) Validate() error {
	if s.embedder == nil {
		return ErrNilEmbedder
	}
	return validate.Struct(s.config)
}

// UnmarshalParameters decodes YAML configuration and replaces the
// threshold after validation.
func (s *EntropyStrategy) UnmarshalParameters(params yaml.Node) error {
	config := s.config
	if err := params.Decode(&config); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("parameter validation failed: %w", err)
	}
	s.config = config
	return nil
}

// Aggregate computes the normalized disagreement entropy and takes
// either the high-uncertainty branch (top confidence, discounted) or
// the similarity-weighted branch (also discounted).
func (s *EntropyStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	if err := checkInput(predictions); err != nil {
		return domain.Prediction{}, err
	}
	if len(predictions) == 1 {
		return predictions[0], nil
	}

	embeddings, err := s.embedder.Embed(ctx, stringTexts(predictions))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("embedding predictions: %w", err)
	}
	if len(embeddings) != len(predictions) {
		return domain.Prediction{}, fmt.Errorf("%w: got %d for %d texts",
			domain.ErrNoEmbeddings, len(embeddings), len(predictions))
	}

	sim := vecmath.PairwiseCosine(embeddings)
	entropy := vecmath.DisagreementEntropy(vecmath.UpperTriangle(sim))
	discount := 1 - entropy

	if entropy > s.config.HighEntropyThreshold {
		// Too much disagreement to trust any weighting; surface the most
		// confident prediction with the uncertainty priced in.
		best := topByConfidence(predictions)
		return domain.Prediction{
			ContributorID: ConsensusEntropy,
			Value:         best.Value,
			Confidence:    domain.ClampConfidence(best.Confidence * discount),
		}, nil
	}

	// Low entropy: weight each prediction by how central it is to the
	// group (mean similarity to all others, floored at zero).
	n := len(predictions)
	weights := make([]float64, n)
	var totalW float64
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			if j != i {
				sum += sim[i][j]
			}
		}
		w := sum / float64(n-1)
		if w < 0 {
			w = 0
		}
		weights[i] = w
		totalW += w
	}

	value := weightedValue(predictions, weights)

	var confidence float64
	if totalW > 0 {
		for i, p := range predictions {
			confidence += weights[i] * p.Confidence
		}
		confidence /= totalW
	} else {
		confidence = meanConfidence(predictions)
	}

	return domain.Prediction{
		ContributorID: ConsensusEntropy,
		Value:         value,
		Confidence:    domain.ClampConfidence(confidence * discount),
	}, nil
}
