package application

import (
	"fmt"
	"os"

	"github.com/ahrav/go-concord/infrastructure/arbiter"
	"github.com/ahrav/go-concord/infrastructure/embedding"
)

// Arbiter types accepted by ArbiterConfig.
const (
	ArbiterTypeHeuristic = "heuristic"
	ArbiterTypeLLM       = "llm"
)

// BuildDependencies resolves the embedding and arbiter sections of an
// engine configuration into injectable capabilities. Fields already set
// on base (logger, metrics, rand, or a caller-constructed embedder or
// arbiter) are kept; a declared provider or arbiter type overrides the
// corresponding base field. API keys are read from the environment
// variable named in the configuration, never from the file itself.
func BuildDependencies(cfg *EngineConfig, base Dependencies) (Dependencies, error) {
	if cfg == nil {
		return base, fmt.Errorf("engine config cannot be nil")
	}
	deps := base

	if cfg.Embedding.Provider != "" {
		provider, err := embedding.NewProvider(cfg.Embedding.Provider, embedding.ClientConfig{
			APIKey:  apiKeyFromEnv(cfg.Embedding.APIKeyEnv),
			Model:   cfg.Embedding.Model,
			BaseURL: cfg.Embedding.BaseURL,
		})
		if err != nil {
			return base, fmt.Errorf("embedding provider %q: %w", cfg.Embedding.Provider, err)
		}
		deps.Embedder = provider
	}

	switch cfg.Arbiter.Type {
	case "":
		// Keep whatever the caller injected.
	case ArbiterTypeHeuristic:
		deps.Arbiter = arbiter.NewHeuristicArbiter(base.Rand)
	case ArbiterTypeLLM:
		llm, err := arbiter.NewLLMArbiter(arbiter.LLMConfig{
			APIKey:            apiKeyFromEnv(cfg.Arbiter.APIKeyEnv),
			Model:             cfg.Arbiter.Model,
			RequestsPerMinute: cfg.Arbiter.RequestsPerMinute,
		})
		if err != nil {
			return base, fmt.Errorf("llm arbiter: %w", err)
		}
		deps.Arbiter = llm
	default:
		return base, fmt.Errorf("unknown arbiter type %q", cfg.Arbiter.Type)
	}

	return deps, nil
}

// NewEngineFromConfig is the one-call composition path: it builds the
// dependencies declared in the configuration, constructs a registry
// around them, and assembles the engine. Callers needing custom
// factories or pre-built capabilities compose the pieces themselves.
func NewEngineFromConfig(cfg *EngineConfig, base Dependencies) (*ConsensusEngine, error) {
	deps, err := BuildDependencies(cfg, base)
	if err != nil {
		return nil, err
	}
	registry := NewDefaultStrategyRegistry(deps)
	return NewConsensusEngine(cfg, registry, deps)
}

func apiKeyFromEnv(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}
