package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validEngineConfig = `
version: "1.0.0"
metadata:
  name: production-consensus
  description: consensus over the answer-generation fleet
  labels:
    team: ml-platform
strategies:
  - id: primary
    type: semantic_clustering
    parameters:
      similarity_threshold: 0.8
  - type: majority_vote
embedding:
  provider: openai
  api_key_env: OPENAI_API_KEY
arbiter:
  type: heuristic
instrumentation:
  enabled: true
  parameters:
    history_size: 200
`

func TestLoadEngineConfig_Valid(t *testing.T) {
	cfg, err := LoadEngineConfig([]byte(validEngineConfig))
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "production-consensus", cfg.Metadata.Name)
	require.Len(t, cfg.Strategies, 2)
	assert.Equal(t, "primary", cfg.Strategies[0].ID)
	assert.Equal(t, "semantic_clustering", cfg.Strategies[0].Type)
	assert.Empty(t, cfg.Strategies[1].ID, "id is optional and defaults later")
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "heuristic", cfg.Arbiter.Type)
	assert.True(t, cfg.Instrumentation.Enabled)

	params, err := ParametersMap(cfg.Strategies[0].Parameters)
	require.NoError(t, err)
	assert.Equal(t, 0.8, params["similarity_threshold"])
}

func TestLoadEngineConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "malformed yaml",
			yaml: "version: [unclosed",
		},
		{
			name: "non-semver version",
			yaml: `
version: "not-a-version"
metadata:
  name: x
strategies:
  - type: majority_vote
`,
		},
		{
			name: "missing metadata name",
			yaml: `
version: "1.0.0"
metadata:
  description: nameless
strategies:
  - type: majority_vote
`,
		},
		{
			name: "no strategies",
			yaml: `
version: "1.0.0"
metadata:
  name: x
strategies: []
`,
		},
		{
			name: "unknown embedding provider",
			yaml: `
version: "1.0.0"
metadata:
  name: x
strategies:
  - type: majority_vote
embedding:
  provider: word2vec
`,
		},
		{
			name: "duplicate strategy ids",
			yaml: `
version: "1.0.0"
metadata:
  name: x
strategies:
  - id: same
    type: majority_vote
  - id: same
    type: top_confidence
`,
		},
		{
			name: "implicit id collides with explicit id",
			yaml: `
version: "1.0.0"
metadata:
  name: x
strategies:
  - id: majority_vote
    type: top_confidence
  - type: majority_vote
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadEngineConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParametersMap(t *testing.T) {
	t.Run("zero node yields an empty map", func(t *testing.T) {
		params, err := ParametersMap(yaml.Node{})
		require.NoError(t, err)
		assert.Empty(t, params)
	})

	t.Run("mapping node decodes to a map", func(t *testing.T) {
		var node yaml.Node
		require.NoError(t, yaml.Unmarshal([]byte("a: 1\nb: two"), &node))
		// Unmarshal wraps the mapping in a document node.
		params, err := ParametersMap(*node.Content[0])
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1, "b": "two"}, params)
	})

	t.Run("scalar node is rejected", func(t *testing.T) {
		var node yaml.Node
		require.NoError(t, yaml.Unmarshal([]byte("just-a-string"), &node))
		_, err := ParametersMap(*node.Content[0])
		assert.Error(t, err)
	})
}
