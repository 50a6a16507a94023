// Package application wires the consensus strategies into a registry
// and engine configuration layer. It owns strategy selection by name
// and dependency injection for strategies that need external
// capabilities (embedding providers, arbiters, logging, metrics).
package application

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ahrav/go-concord/infrastructure/strategies"
	"github.com/ahrav/go-concord/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.StrategyRegistry = (*DefaultStrategyRegistry)(nil)

// Built-in strategy names.
const (
	StrategyTopConfidence            = "top_confidence"
	StrategyMajorityVote             = "majority_vote"
	StrategyWeightedAverage          = "weighted_average"
	StrategyAdaptiveConsensus        = "adaptive_consensus"
	StrategySemanticClustering       = "semantic_clustering"
	StrategySemanticClusteringStrict = "semantic_clustering_strict"
	StrategyShapley                  = "shapley"
	StrategyEntropy                  = "entropy"
	StrategyRobustConsensus          = "robust_consensus"
	StrategyTournament               = "tournament"
)

// UnknownStrategyError is returned when a strategy name has no
// registered factory. It lists the valid names so callers can correct
// the configuration without consulting the source.
type UnknownStrategyError struct {
	Name  string
	Valid []string
}

// Error implements the error interface.
func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown strategy %q (valid strategies: %s)",
		e.Name, strings.Join(e.Valid, ", "))
}

// Dependencies carries the external capabilities injected into
// strategies that need them. Zero-value fields are acceptable for
// registries that only create basic strategies; creating a
// similarity-based strategy without an embedder (or the tournament
// without an arbiter) fails at creation time.
type Dependencies struct {
	// Embedder backs the similarity-based strategies.
	Embedder ports.EmbeddingProvider
	// Arbiter resolves tournament matches.
	Arbiter ports.Arbiter
	// Logger receives strategy diagnostics; nil means no-op.
	Logger *zap.Logger
	// Metrics receives instrumentation output; nil disables it.
	Metrics ports.MetricsCollector
	// Rand seeds the randomized strategies (Shapley sampling, bracket
	// shuffling, kmeans initialization). Nil means a fresh unseeded
	// source per strategy; inject a seeded generator for reproducible
	// runs.
	Rand *rand.Rand
}

// DefaultStrategyRegistry implements the StrategyRegistry interface,
// providing a factory for creating consensus strategies based on name
// and configuration. It is an explicit object: construct one at process
// start and pass it by reference rather than relying on global state.
type DefaultStrategyRegistry struct {
	// factories maps strategy names to their factory functions.
	factories map[string]ports.StrategyFactory
	// mu protects concurrent access to the factories map.
	mu sync.RWMutex
	// deps holds the capabilities injected into built strategies.
	deps Dependencies
}

// NewDefaultStrategyRegistry creates a strategy registry with the
// standard strategies pre-registered.
func NewDefaultStrategyRegistry(deps Dependencies) *DefaultStrategyRegistry {
	registry := &DefaultStrategyRegistry{
		factories: make(map[string]ports.StrategyFactory),
		deps:      deps,
	}
	registry.registerBuiltinFactories()
	return registry
}

// registerBuiltinFactories registers the standard consensus strategies.
func (r *DefaultStrategyRegistry) registerBuiltinFactories() {
	deps := r.deps

	r.factories[StrategyTopConfidence] = strategies.NewTopConfidenceFromConfig
	r.factories[StrategyMajorityVote] = strategies.NewMajorityVoteFromConfig
	r.factories[StrategyWeightedAverage] = strategies.NewWeightedAverageFromConfig
	r.factories[StrategyAdaptiveConsensus] = strategies.NewAdaptiveConsensusFromConfig

	r.factories[StrategySemanticClustering] = func(id string, config map[string]any) (ports.Strategy, error) {
		return strategies.NewSemanticClusteringFromConfig(id, config, deps.Embedder, deps.Rand)
	}
	r.factories[StrategySemanticClusteringStrict] = func(id string, config map[string]any) (ports.Strategy, error) {
		return strategies.NewStrictSemanticClusteringFromConfig(id, config, deps.Embedder, deps.Rand)
	}
	r.factories[StrategyShapley] = func(id string, config map[string]any) (ports.Strategy, error) {
		return strategies.NewShapleyFromConfig(id, config, deps.Embedder, deps.Rand)
	}
	r.factories[StrategyEntropy] = func(id string, config map[string]any) (ports.Strategy, error) {
		return strategies.NewEntropyFromConfig(id, config, deps.Embedder)
	}
	r.factories[StrategyRobustConsensus] = func(id string, config map[string]any) (ports.Strategy, error) {
		return strategies.NewRobustFromConfig(id, config, deps.Embedder, deps.Logger, deps.Rand)
	}
	r.factories[StrategyTournament] = func(id string, config map[string]any) (ports.Strategy, error) {
		return strategies.NewTournamentFromConfig(id, config, deps.Arbiter, deps.Logger, deps.Rand)
	}
}

// CreateStrategy builds a new instance of the named strategy with the
// given instance id and configuration map. An empty id defaults to the
// strategy name. Unknown names fail with an UnknownStrategyError
// listing the valid names.
func (r *DefaultStrategyRegistry) CreateStrategy(name, id string, config map[string]any) (ports.Strategy, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, &UnknownStrategyError{Name: name, Valid: r.Strategies()}
	}

	if id == "" {
		id = name
	}
	if config == nil {
		config = make(map[string]any)
	}

	strategy, err := factory(id, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy %s of type %s: %w", id, name, err)
	}
	return strategy, nil
}

// RegisterStrategyFactory registers a factory for a custom strategy
// name, extending the registry at runtime. Registering an existing name
// replaces its factory.
func (r *DefaultStrategyRegistry) RegisterStrategyFactory(name string, factory ports.StrategyFactory) error {
	if name == "" {
		return fmt.Errorf("strategy name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	return nil
}

// Strategies returns the registered strategy names, sorted for stable
// error messages and help output.
func (r *DefaultStrategyRegistry) Strategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
