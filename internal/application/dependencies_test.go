package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/infrastructure/arbiter"
	"github.com/ahrav/go-concord/infrastructure/embedding"
	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/testutils"
)

func TestBuildDependencies(t *testing.T) {
	t.Run("local providers need no credentials", func(t *testing.T) {
		cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: majority_vote
embedding:
  provider: termfreq
arbiter:
  type: heuristic
`)
		deps, err := BuildDependencies(cfg, Dependencies{})
		require.NoError(t, err)
		assert.NotNil(t, deps.Embedder)
		assert.NotNil(t, deps.Arbiter)
	})

	t.Run("empty sections keep injected capabilities", func(t *testing.T) {
		base := testDependencies()
		cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: majority_vote
`)
		deps, err := BuildDependencies(cfg, base)
		require.NoError(t, err)
		assert.Equal(t, base.Embedder, deps.Embedder)
		assert.Equal(t, base.Arbiter, deps.Arbiter)
	})

	t.Run("hosted provider reads its key from the environment", func(t *testing.T) {
		t.Setenv("CONCORD_TEST_OPENAI_KEY", "test-key")
		cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: majority_vote
embedding:
  provider: openai
  api_key_env: CONCORD_TEST_OPENAI_KEY
`)
		deps, err := BuildDependencies(cfg, Dependencies{})
		require.NoError(t, err)
		assert.NotNil(t, deps.Embedder)
	})

	t.Run("hosted provider without a key fails at build time", func(t *testing.T) {
		cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: majority_vote
embedding:
  provider: openai
  api_key_env: CONCORD_TEST_UNSET_KEY
`)
		_, err := BuildDependencies(cfg, Dependencies{})
		assert.ErrorIs(t, err, embedding.ErrEmptyAPIKey)
	})

	t.Run("llm arbiter reads its key from the environment", func(t *testing.T) {
		t.Setenv("CONCORD_TEST_ANTHROPIC_KEY", "test-key")
		cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: majority_vote
arbiter:
  type: llm
  api_key_env: CONCORD_TEST_ANTHROPIC_KEY
  requests_per_minute: 60
`)
		deps, err := BuildDependencies(cfg, Dependencies{})
		require.NoError(t, err)
		assert.NotNil(t, deps.Arbiter)
	})

	t.Run("llm arbiter without a key fails at build time", func(t *testing.T) {
		cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: majority_vote
arbiter:
  type: llm
`)
		_, err := BuildDependencies(cfg, Dependencies{})
		assert.ErrorIs(t, err, arbiter.ErrEmptyAPIKey)
	})

	t.Run("unknown arbiter type is rejected", func(t *testing.T) {
		// Bypasses LoadEngineConfig so the switch guards hand-built configs too.
		cfg := &EngineConfig{Arbiter: ArbiterConfig{Type: "coin-flip"}}
		_, err := BuildDependencies(cfg, Dependencies{})
		assert.ErrorContains(t, err, "unknown arbiter type")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := BuildDependencies(nil, Dependencies{})
		assert.Error(t, err)
	})
}

func TestNewEngineFromConfig(t *testing.T) {
	cfg := engineConfig(t, `
version: "1.0.0"
metadata:
  name: test
strategies:
  - type: majority_vote
  - type: semantic_clustering
  - type: tournament
embedding:
  provider: termfreq
arbiter:
  type: heuristic
`)

	engine, err := NewEngineFromConfig(cfg, Dependencies{})
	require.NoError(t, err)

	_, ok := engine.Strategy("semantic_clustering")
	assert.True(t, ok, "config-declared embedder must reach the similarity strategies")
	_, ok = engine.Strategy("tournament")
	assert.True(t, ok, "config-declared arbiter must reach the tournament")

	// Five identical answers and one unrelated: the term-frequency
	// embedder built from the config drives the clustering end to end.
	predictions := []domain.Prediction{
		testutils.TextPrediction("a1", "the sky is blue", 0.6),
		testutils.TextPrediction("a2", "the sky is blue", 0.7),
		testutils.TextPrediction("a3", "the sky is blue", 0.8),
		testutils.TextPrediction("a4", "the sky is blue", 0.6),
		testutils.TextPrediction("a5", "the sky is blue", 0.7),
		testutils.TextPrediction("a6", "oranges taste great", 0.9),
	}
	result, err := engine.Aggregate(context.Background(), "semantic_clustering", predictions)
	require.NoError(t, err)
	assert.Equal(t, "the sky is blue", result.Value.String())
	assert.InDelta(t, 0.8, result.Confidence, 1e-9,
		"representative confidence times perfect within-group similarity")
}
