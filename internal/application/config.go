package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// EngineConfig is the top-level configuration for a consensus engine
// deployment: which strategies to expose, how to reach the embedding
// provider and arbiter, and whether to instrument aggregations.
type EngineConfig struct {
	// Version specifies the configuration schema version using semantic
	// versioning to ensure compatibility across updates.
	Version string `yaml:"version" validate:"required,semver"`

	// Metadata contains descriptive information about this engine
	// configuration.
	Metadata Metadata `yaml:"metadata" validate:"required"`

	// Strategies declares the strategy instances to construct. At least
	// one is required; the first entry is the default strategy.
	Strategies []StrategyConfig `yaml:"strategies" validate:"required,min=1,dive"`

	// Embedding configures the embedding provider backing the
	// similarity-based strategies. Optional when only basic strategies
	// are declared.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Arbiter configures the tournament arbiter. Optional when the
	// tournament strategy is not declared.
	Arbiter ArbiterConfig `yaml:"arbiter"`

	// Instrumentation enables the metrics wrapper around every declared
	// strategy.
	Instrumentation InstrumentationConfig `yaml:"instrumentation"`
}

// Metadata provides descriptive information about an engine
// configuration for organization and operational management.
type Metadata struct {
	// Name is the human-readable identifier for this engine
	// configuration.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains the configuration's purpose.
	Description string `yaml:"description" validate:"max=1000"`
	// Labels are arbitrary key-value pairs for integration with external
	// systems.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// StrategyConfig declares one strategy instance.
type StrategyConfig struct {
	// ID is the unique instance identifier within this configuration.
	// When omitted it defaults to the strategy type.
	ID string `yaml:"id" validate:"omitempty,min=1,max=100"`

	// Type names the registered strategy to instantiate.
	Type string `yaml:"type" validate:"required,min=1,max=100"`

	// Parameters contains strategy-specific configuration as flexible
	// YAML, validated by the strategy's own config struct on creation.
	Parameters yaml.Node `yaml:"parameters"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider names the embedding backend ("openai", "google",
	// "termfreq").
	Provider string `yaml:"provider" validate:"omitempty,oneof=openai google termfreq"`
	// Model overrides the provider's default embedding model.
	Model string `yaml:"model" validate:"max=200"`
	// APIKeyEnv names the environment variable holding the provider API
	// key. Keys are never placed in configuration files directly.
	APIKeyEnv string `yaml:"api_key_env" validate:"max=200"`
	// BaseURL overrides the provider endpoint, e.g. for proxies.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

// ArbiterConfig selects and configures the tournament arbiter.
type ArbiterConfig struct {
	// Type names the arbiter implementation ("heuristic", "llm").
	Type string `yaml:"type" validate:"omitempty,oneof=heuristic llm"`
	// Model overrides the LLM arbiter's default model.
	Model string `yaml:"model" validate:"max=200"`
	// APIKeyEnv names the environment variable holding the LLM API key.
	APIKeyEnv string `yaml:"api_key_env" validate:"max=200"`
	// RequestsPerMinute rate-limits LLM arbitration calls. Zero disables
	// limiting.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=0,max=10000"`
}

// InstrumentationConfig toggles the metrics wrapper.
type InstrumentationConfig struct {
	// Enabled wraps every declared strategy with instrumentation.
	Enabled bool `yaml:"enabled"`
	// Parameters configures the wrapper (history size, perturbation
	// testing).
	Parameters yaml.Node `yaml:"parameters"`
}

// LoadEngineConfig parses and validates an engine configuration
// document. It returns the first validation problem found; the
// configuration is rejected as a whole rather than partially applied.
func LoadEngineConfig(data []byte) (*EngineConfig, error) {
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse engine config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("engine config validation failed: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.Strategies))
	for i, sc := range cfg.Strategies {
		id := sc.ID
		if id == "" {
			id = sc.Type
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate strategy id %q at index %d", id, i)
		}
		seen[id] = struct{}{}
	}
	return &cfg, nil
}

// ParametersMap converts a flexible YAML parameters node into the
// map form consumed by strategy factories. A zero node yields an empty
// map.
func ParametersMap(node yaml.Node) (map[string]any, error) {
	if node.IsZero() {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := node.Decode(&params); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}
