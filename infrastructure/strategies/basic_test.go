package strategies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/testutils"
)

func TestTopConfidenceStrategy_Aggregate(t *testing.T) {
	strategy, err := NewTopConfidenceStrategy("top_confidence")
	require.NoError(t, err)

	tests := []struct {
		name          string
		predictions   []domain.Prediction
		expectedValue string
		expectedConf  float64
		expectedError error
	}{
		{
			name: "highest confidence wins",
			predictions: []domain.Prediction{
				testutils.TextPrediction("a1", "x", 0.4),
				testutils.TextPrediction("a2", "y", 0.9),
				testutils.TextPrediction("a3", "z", 0.3),
			},
			expectedValue: "y",
			expectedConf:  0.9,
		},
		{
			name: "ties resolve to the first-encountered prediction",
			predictions: []domain.Prediction{
				testutils.TextPrediction("a1", "first", 0.8),
				testutils.TextPrediction("a2", "second", 0.8),
			},
			expectedValue: "first",
			expectedConf:  0.8,
		},
		{
			name:          "empty input is rejected",
			predictions:   nil,
			expectedError: domain.ErrNoPredictions,
		},
		{
			name: "invalid confidence is rejected",
			predictions: []domain.Prediction{
				testutils.TextPrediction("a1", "x", 1.4),
			},
			expectedError: domain.ErrInvalidConfidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := strategy.Aggregate(context.Background(), tt.predictions)
			if tt.expectedError != nil {
				require.ErrorIs(t, err, tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ConsensusTopConfidence, result.ContributorID)
			assert.Equal(t, tt.expectedValue, result.Value.String())
			assert.InDelta(t, tt.expectedConf, result.Confidence, 1e-9)
		})
	}
}

func TestMajorityVoteStrategy_Aggregate(t *testing.T) {
	strategy, err := NewMajorityVoteStrategy("majority_vote")
	require.NoError(t, err)

	t.Run("plurality value wins", func(t *testing.T) {
		predictions := []domain.Prediction{
			testutils.TextPrediction("a1", "A", 0.9),
			testutils.TextPrediction("a2", "A", 0.7),
			testutils.TextPrediction("a3", "A", 0.8),
			testutils.TextPrediction("a4", "B", 0.95),
			testutils.TextPrediction("a5", "B", 0.85),
		}

		result, err := strategy.Aggregate(context.Background(), predictions)
		require.NoError(t, err)
		assert.Equal(t, "A", result.Value.String())
		assert.Equal(t, ConsensusMajorityVote, result.ContributorID)
		assert.InDelta(t, 0.8, result.Confidence, 1e-9, "mean confidence of the supporters")
	})

	t.Run("ties break by first-encountered value", func(t *testing.T) {
		predictions := []domain.Prediction{
			testutils.TextPrediction("a1", "B", 0.1),
			testutils.TextPrediction("a2", "A", 0.9),
			testutils.TextPrediction("a3", "A", 0.9),
			testutils.TextPrediction("a4", "B", 0.1),
		}

		result, err := strategy.Aggregate(context.Background(), predictions)
		require.NoError(t, err)
		assert.Equal(t, "B", result.Value.String())
	})

	t.Run("numeric and text forms of the same value count together", func(t *testing.T) {
		predictions := []domain.Prediction{
			testutils.NumericPrediction("a1", 18, 0.5),
			testutils.TextPrediction("a2", "18", 0.5),
			testutils.TextPrediction("a3", "other", 0.5),
		}

		result, err := strategy.Aggregate(context.Background(), predictions)
		require.NoError(t, err)
		assert.Equal(t, "18", result.Value.String())
	})

	t.Run("singleton is returned unchanged", func(t *testing.T) {
		p := testutils.TextPrediction("solo", "only", 0.42)
		result, err := strategy.Aggregate(context.Background(), []domain.Prediction{p})
		require.NoError(t, err)
		assert.Equal(t, p, result)
	})
}

func TestWeightedAverageStrategy_Aggregate(t *testing.T) {
	strategy, err := NewWeightedAverageStrategy("weighted_average")
	require.NoError(t, err)

	t.Run("confidence-weighted mean of numeric values", func(t *testing.T) {
		predictions := []domain.Prediction{
			testutils.NumericPrediction("a1", 10, 0.2),
			testutils.NumericPrediction("a2", 20, 0.8),
		}

		result, err := strategy.Aggregate(context.Background(), predictions)
		require.NoError(t, err)

		value, ok := result.Value.Float()
		require.True(t, ok)
		assert.InDelta(t, 18.0, value, 1e-9)
		assert.Equal(t, ConsensusWeightedAverage, result.ContributorID)
		assert.InDelta(t, 0.5, result.Confidence, 1e-9)
	})

	t.Run("zero total confidence degrades to the unweighted mean", func(t *testing.T) {
		predictions := []domain.Prediction{
			testutils.NumericPrediction("a1", 10, 0),
			testutils.NumericPrediction("a2", 30, 0),
		}

		result, err := strategy.Aggregate(context.Background(), predictions)
		require.NoError(t, err)

		value, ok := result.Value.Float()
		require.True(t, ok)
		assert.InDelta(t, 20.0, value, 1e-9)
	})

	t.Run("non-numeric values degrade to a weighted vote", func(t *testing.T) {
		predictions := []domain.Prediction{
			testutils.TextPrediction("a1", "yes", 0.9),
			testutils.TextPrediction("a2", "no", 0.3),
			testutils.TextPrediction("a3", "no", 0.3),
		}

		result, err := strategy.Aggregate(context.Background(), predictions)
		require.NoError(t, err)
		assert.Equal(t, "yes", result.Value.String(), "0.9 outweighs 0.3+0.3")
	})

	t.Run("text numbers participate in the numeric path", func(t *testing.T) {
		predictions := []domain.Prediction{
			testutils.TextPrediction("a1", "10", 0.5),
			testutils.NumericPrediction("a2", 20, 0.5),
		}

		result, err := strategy.Aggregate(context.Background(), predictions)
		require.NoError(t, err)

		value, ok := result.Value.Float()
		require.True(t, ok)
		assert.InDelta(t, 15.0, value, 1e-9)
	})
}

func TestStrategyConstructors_RejectEmptyName(t *testing.T) {
	_, err := NewTopConfidenceStrategy("")
	assert.ErrorIs(t, err, ErrEmptyStrategyName)

	_, err = NewMajorityVoteStrategy("")
	assert.ErrorIs(t, err, ErrEmptyStrategyName)

	_, err = NewWeightedAverageStrategy("")
	assert.ErrorIs(t, err, ErrEmptyStrategyName)
}
