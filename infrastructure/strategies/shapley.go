package strategies

import (
	"context"
	"fmt"
	"math/rand"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
	"github.com/ahrav/go-concord/internal/vecmath"
)

var _ ports.Strategy = (*ShapleyStrategy)(nil)
var _ ports.ContributionTracker = (*ShapleyStrategy)(nil)

// ShapleyConfig defines the sampling parameters for the Monte Carlo
// Shapley approximation.
type ShapleyConfig struct {
	// Permutations is the number of random contributor orderings sampled
	// to estimate marginal values. More samples tighten the estimate at
	// linear cost.
	//
	// Default: 64.
	Permutations int `yaml:"permutations" json:"permutations" validate:"min=1,max=10000"`
}

// DefaultShapleyConfig returns the standard sampling configuration.
func DefaultShapleyConfig() ShapleyConfig {
	return ShapleyConfig{Permutations: 64}
}

// ShapleyStrategy estimates each contributor's marginal effect on group
// agreement with a Monte Carlo approximation of Shapley values, then
// uses the normalized estimates as weights for a vote or average.
//
// Coalition utility is the mean pairwise cosine similarity of the
// coalition members' embeddings; a singleton coalition has utility 1.0
// by convention. Contributors that pull the group toward agreement earn
// positive marginals and therefore higher weight.
//
// The strategy retains the most recent contribution weights for the
// instrumented aggregator, so a single instance must not serve
// concurrent Aggregate calls.
type ShapleyStrategy struct {
	name     string
	config   ShapleyConfig
	embedder ports.EmbeddingProvider
	// rng drives permutation sampling; injectable for reproducible runs.
	rng *rand.Rand

	lastContributions map[string]float64
}

// NewShapleyStrategy creates a ShapleyStrategy with the specified
// configuration and embedding provider. A nil rng falls back to an
// unseeded source.
func NewShapleyStrategy(name string, config ShapleyConfig, embedder ports.EmbeddingProvider, rng *rand.Rand) (*ShapleyStrategy, error) {
	if name == "" {
		return nil, ErrEmptyStrategyName
	}
	if embedder == nil {
		return nil, ErrNilEmbedder
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &ShapleyStrategy{
		name:     name,
		config:   config,
		embedder: embedder,
		rng:      rng,
	}, nil
}

// Name returns the unique identifier for this strategy instance.
func (s *ShapleyStrategy) Name() string { return s.name }

// Validate reports whether the strategy is ready for execution.
func (s *ShapleyStrategy) Validate() error {
	if s.embedder == nil {
		return ErrNilEmbedder
	}
	return validate.Struct(s.config)
}

// UnmarshalParameters decodes YAML configuration and replaces the
// sampling parameters after validation.
func (s *ShapleyStrategy) UnmarshalParameters(params yaml.Node) error {
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

// Contributions returns the normalized per-contributor weights from the
// most recent Aggregate call.
func (s *ShapleyStrategy) Contributions() (map[string]float64, bool) {
	if s.lastContributions == nil {
		return nil, false
	}
	out := make(map[string]float64, len(s.lastContributions))
	for k, v := range s.lastContributions {
		out[k] = v
	}
	return out, true
}

// Aggregate estimates Shapley weights and reduces the predictions under
// them. The output confidence is the weight-averaged input confidence.
func (s *ShapleyStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
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
	weights := s.estimateWeights(sim)

	s.lastContributions = make(map[string]float64, len(predictions))
	for i, p := range predictions {
		// Contributors appearing more than once accumulate their weight.
		s.lastContributions[p.ContributorID] += weights[i]
	}

	value := weightedValue(predictions, weights)

	var confidence float64
	for i, p := range predictions {
		confidence += weights[i] * p.Confidence
	}

	return domain.Prediction{
		ContributorID: ConsensusShapley,
		Value:         value,
		Confidence:    domain.ClampConfidence(confidence),
	}, nil
}

// estimateWeights samples random permutations and accumulates each
// contributor's marginal utility, then clamps negatives to zero and
// normalizes to a weight vector summing to 1. A non-positive raw sum
// degrades to equal weights.
func (s *ShapleyStrategy) estimateWeights(sim [][]float64) []float64 {
	n := len(sim)
	marginals := make([]float64, n)

	for p := 0; p < s.config.Permutations; p++ {
		perm := s.rng.Perm(n)

		// Walk the permutation maintaining the coalition's pairwise
		// similarity sum incrementally, so each permutation costs O(n^2)
		// instead of O(n^3).
		coalition := make([]int, 0, n)
		var pairSum float64
		before := 0.0
		for _, member := range perm {
			for _, existing := range coalition {
				pairSum += sim[member][existing]
			}
			coalition = append(coalition, member)
			after := coalitionUtility(pairSum, len(coalition))
			marginals[member] += after - before
			before = after
		}
	}

	weights := make([]float64, n)
	var total float64
	for i, m := range marginals {
		w := m / float64(s.config.Permutations)
		if w < 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
		return weights
	}
	for i := range weights {
		weights[i] /= total
	}
	return weights
}

// coalitionUtility is the mean pairwise similarity over a coalition of
// the given size with the given pairwise sum. Singleton coalitions have
// utility 1.0 by convention; the empty coalition has utility 0.
func coalitionUtility(pairSum float64, size int) float64 {
	if size == 0 {
		return 0
	}
	if size == 1 {
		return 1.0
	}
	pairs := size * (size - 1) / 2
	return pairSum / float64(pairs)
}
