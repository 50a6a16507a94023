package strategies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/testutils"
)

func TestFactories_ParameterlessStrategies(t *testing.T) {
	s, err := NewTopConfidenceFromConfig("tc", map[string]any{"ignored": true})
	require.NoError(t, err)
	assert.Equal(t, "tc", s.Name())

	s, err = NewMajorityVoteFromConfig("mv", nil)
	require.NoError(t, err)
	assert.Equal(t, "mv", s.Name())

	s, err = NewWeightedAverageFromConfig("wa", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "wa", s.Name())
}

func TestFactories_ConfigOverlay(t *testing.T) {
	embedder := testutils.NewMockEmbedder(nil)

	t.Run("valid overrides are applied on top of defaults", func(t *testing.T) {
		s, err := NewShapleyFromConfig("shapley", map[string]any{"permutations": 16}, embedder, nil)
		require.NoError(t, err)
		assert.Equal(t, "shapley", s.Name())

		s, err = NewSemanticClusteringFromConfig("clustering",
			map[string]any{"similarity_threshold": 0.9}, embedder, nil)
		require.NoError(t, err)
		assert.Equal(t, "clustering", s.Name())

		s, err = NewAdaptiveConsensusFromConfig("adaptive",
			map[string]any{"diversity_threshold": 0.4})
		require.NoError(t, err)
		assert.Equal(t, "adaptive", s.Name())
	})

	t.Run("invalid overrides fail validation", func(t *testing.T) {
		_, err := NewShapleyFromConfig("shapley", map[string]any{"permutations": 0}, embedder, nil)
		assert.Error(t, err)

		_, err = NewSemanticClusteringFromConfig("clustering",
			map[string]any{"method": "agglomerative"}, embedder, nil)
		assert.Error(t, err)

		_, err = NewTournamentFromConfig("tournament",
			map[string]any{"max_concurrency": 0}, testutils.ConfidenceArbiter{}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("unparsable values are rejected", func(t *testing.T) {
		_, err := NewEntropyFromConfig("entropy",
			map[string]any{"high_entropy_threshold": "not-a-number"}, embedder)
		assert.Error(t, err)
	})
}

func TestNewRobustFromConfig(t *testing.T) {
	embedder := testutils.NewMockEmbedder(map[string][]float64{"A": {1, 0}})

	t.Run("default selection builds all sub-strategies", func(t *testing.T) {
		s, err := NewRobustFromConfig("robust", nil, embedder, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "robust", s.Name())
		require.NoError(t, s.Validate())
	})

	t.Run("subset selection aggregates through the chosen sub-strategy", func(t *testing.T) {
		s, err := NewRobustFromConfig("robust",
			map[string]any{"strategies": []string{SubStrategyEntropy}}, embedder, nil, nil)
		require.NoError(t, err)

		predictions := []domain.Prediction{
			testutils.TextPrediction("a1", "A", 0.6),
			testutils.TextPrediction("a2", "A", 0.8),
		}
		result, err := s.Aggregate(context.Background(), predictions)
		require.NoError(t, err)
		assert.Equal(t, ConsensusRobust, result.ContributorID)
		assert.Equal(t, "A", result.Value.String())
	})

	t.Run("unknown sub-strategy is rejected", func(t *testing.T) {
		_, err := NewRobustFromConfig("robust",
			map[string]any{"strategies": []string{"bogus"}}, embedder, nil, nil)
		assert.Error(t, err)
	})
}

func TestNewStrictSemanticClusteringFromConfig(t *testing.T) {
	s, err := NewStrictSemanticClusteringFromConfig("strict",
		nil, testutils.NewMockEmbedder(nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "strict", s.Name())
}
