package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/infrastructure/strategies"
	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/testutils"
)

func engineConfig(t *testing.T, doc string) *EngineConfig {
	t.Helper()
	cfg, err := LoadEngineConfig([]byte(doc))
	require.NoError(t, err)
	return cfg
}

func TestNewConsensusEngine_DispatchesByID(t *testing.T) {
	deps := testDependencies()
	registry := NewDefaultStrategyRegistry(deps)
	cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - id: primary
    type: top_confidence
  - id: votes
    type: majority_vote
`)

	engine, err := NewConsensusEngine(cfg, registry, deps)
	require.NoError(t, err)

	predictions := []domain.Prediction{
		testutils.TextPrediction("a1", "A", 0.9),
		testutils.TextPrediction("a2", "B", 0.4),
		testutils.TextPrediction("a3", "B", 0.5),
	}

	t.Run("empty id selects the first declared strategy", func(t *testing.T) {
		result, err := engine.Aggregate(context.Background(), "", predictions)
		require.NoError(t, err)
		assert.Equal(t, "A", result.Value.String(), "top confidence wins")
	})

	t.Run("explicit id selects the named strategy", func(t *testing.T) {
		result, err := engine.Aggregate(context.Background(), "votes", predictions)
		require.NoError(t, err)
		assert.Equal(t, "B", result.Value.String(), "majority wins")
	})

	t.Run("unconfigured id lists the configured ids", func(t *testing.T) {
		_, err := engine.Aggregate(context.Background(), "missing", predictions)
		require.Error(t, err)

		var unknownErr *UnknownStrategyError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "missing", unknownErr.Name)
		assert.Equal(t, []string{"primary", "votes"}, unknownErr.Valid)
	})

	t.Run("strategies are addressable", func(t *testing.T) {
		s, ok := engine.Strategy("votes")
		require.True(t, ok)
		assert.Equal(t, "votes", s.Name())

		_, ok = engine.Strategy("missing")
		assert.False(t, ok)
	})
}

func TestNewConsensusEngine_InstrumentationWrapsStrategies(t *testing.T) {
	deps := testDependencies()
	registry := NewDefaultStrategyRegistry(deps)
	cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: weighted_average
instrumentation:
  enabled: true
  parameters:
    history_size: 5
`)

	engine, err := NewConsensusEngine(cfg, registry, deps)
	require.NoError(t, err)

	s, ok := engine.Strategy("weighted_average")
	require.True(t, ok)
	instrumented, ok := s.(*strategies.InstrumentedStrategy)
	require.True(t, ok, "instrumentation must wrap the declared strategy")

	_, err = engine.Aggregate(context.Background(), "", []domain.Prediction{
		testutils.NumericPrediction("a1", 10, 0.5),
		testutils.NumericPrediction("a2", 20, 0.5),
	})
	require.NoError(t, err)
	assert.Len(t, instrumented.MetricsHistory(), 1)
}

func TestNewConsensusEngine_Errors(t *testing.T) {
	deps := testDependencies()
	registry := NewDefaultStrategyRegistry(deps)

	t.Run("nil config", func(t *testing.T) {
		_, err := NewConsensusEngine(nil, registry, deps)
		assert.Error(t, err)
	})

	t.Run("nil registry", func(t *testing.T) {
		cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: majority_vote
`)
		_, err := NewConsensusEngine(cfg, nil, deps)
		assert.Error(t, err)
	})

	t.Run("unknown strategy type surfaces the registry error", func(t *testing.T) {
		cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: does_not_exist
`)
		_, err := NewConsensusEngine(cfg, registry, deps)
		require.Error(t, err)

		var unknownErr *UnknownStrategyError
		assert.ErrorAs(t, err, &unknownErr)
	})

	t.Run("aggregation errors pass through", func(t *testing.T) {
		cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: majority_vote
`)
		engine, err := NewConsensusEngine(cfg, registry, deps)
		require.NoError(t, err)

		_, err = engine.Aggregate(context.Background(), "", nil)
		assert.ErrorIs(t, err, domain.ErrNoPredictions)
	})
}
