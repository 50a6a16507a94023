package strategies

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-concord/internal/ports"
)

// decodeConfig overlays a configuration map onto defaults via YAML
// round-tripping. This is the boundary adapter between untyped
// configuration and the typed, validated config structs.
func decodeConfig[T any](config map[string]any, defaults T) (T, error) {
	cfg := defaults
	if len(config) == 0 {
		return cfg, nil
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return cfg, fmt.Errorf("marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// NewTopConfidenceFromConfig creates a TopConfidenceStrategy from a
// configuration map. The strategy has no parameters; the map is
// accepted for factory uniformity.
func NewTopConfidenceFromConfig(id string, config map[string]any) (ports.Strategy, error) {
	return NewTopConfidenceStrategy(id)
}

// NewMajorityVoteFromConfig creates a MajorityVoteStrategy from a
// configuration map.
func NewMajorityVoteFromConfig(id string, config map[string]any) (ports.Strategy, error) {
	return NewMajorityVoteStrategy(id)
}

// NewWeightedAverageFromConfig creates a WeightedAverageStrategy from a
// configuration map.
func NewWeightedAverageFromConfig(id string, config map[string]any) (ports.Strategy, error) {
	return NewWeightedAverageStrategy(id)
}

// NewAdaptiveConsensusFromConfig creates an AdaptiveConsensusStrategy
// from a configuration map overlaid on the default thresholds.
func NewAdaptiveConsensusFromConfig(id string, config map[string]any) (ports.Strategy, error) {
	cfg, err := decodeConfig(config, DefaultAdaptiveConsensusConfig())
	if err != nil {
		return nil, err
	}
	return NewAdaptiveConsensusStrategy(id, cfg)
}

// NewSemanticClusteringFromConfig creates a SemanticClusteringStrategy
// from a configuration map overlaid on the default clustering
// parameters.
func NewSemanticClusteringFromConfig(id string, config map[string]any, embedder ports.EmbeddingProvider, rng *rand.Rand) (ports.Strategy, error) {
	cfg, err := decodeConfig(config, DefaultSemanticClusteringConfig())
	if err != nil {
		return nil, err
	}
	return NewSemanticClusteringStrategy(id, cfg, embedder, rng)
}

// NewStrictSemanticClusteringFromConfig creates a
// SemanticClusteringStrategy from a configuration map overlaid on the
// strict preset (tighter similarity, larger minimum cluster).
func NewStrictSemanticClusteringFromConfig(id string, config map[string]any, embedder ports.EmbeddingProvider, rng *rand.Rand) (ports.Strategy, error) {
	cfg, err := decodeConfig(config, StrictSemanticClusteringConfig())
	if err != nil {
		return nil, err
	}
	return NewSemanticClusteringStrategy(id, cfg, embedder, rng)
}

// NewShapleyFromConfig creates a ShapleyStrategy from a configuration
// map overlaid on the default sampling parameters.
func NewShapleyFromConfig(id string, config map[string]any, embedder ports.EmbeddingProvider, rng *rand.Rand) (ports.Strategy, error) {
	cfg, err := decodeConfig(config, DefaultShapleyConfig())
	if err != nil {
		return nil, err
	}
	return NewShapleyStrategy(id, cfg, embedder, rng)
}

// NewEntropyFromConfig creates an EntropyStrategy from a configuration
// map overlaid on the default threshold.
func NewEntropyFromConfig(id string, config map[string]any, embedder ports.EmbeddingProvider) (ports.Strategy, error) {
	cfg, err := decodeConfig(config, DefaultEntropyConfig())
	if err != nil {
		return nil, err
	}
	return NewEntropyStrategy(id, cfg, embedder)
}

// NewRobustFromConfig creates a RobustConsensusStrategy from a
// configuration map. The selected sub-strategies are built with their
// default parameters; callers needing tuned sub-strategies construct
// them directly with NewRobustConsensusStrategy.
func NewRobustFromConfig(id string, config map[string]any, embedder ports.EmbeddingProvider, logger *zap.Logger, rng *rand.Rand) (ports.Strategy, error) {
	cfg, err := decodeConfig(config, DefaultRobustConfig())
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	subs := make([]ports.Strategy, 0, len(cfg.Strategies))
	for _, name := range cfg.Strategies {
		var sub ports.Strategy
		var err error
		switch name {
		case SubStrategyClustering:
			sub, err = NewSemanticClusteringStrategy(id+"_clustering", DefaultSemanticClusteringConfig(), embedder, rng)
		case SubStrategyShapley:
			sub, err = NewShapleyStrategy(id+"_shapley", DefaultShapleyConfig(), embedder, rng)
		case SubStrategyEntropy:
			sub, err = NewEntropyStrategy(id+"_entropy", DefaultEntropyConfig(), embedder)
		default:
			err = fmt.Errorf("unknown sub-strategy %q", name)
		}
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return NewRobustConsensusStrategy(id, subs, logger)
}

// NewTournamentFromConfig creates a TournamentStrategy from a
// configuration map overlaid on the default tournament parameters.
func NewTournamentFromConfig(id string, config map[string]any, arbiter ports.Arbiter, logger *zap.Logger, rng *rand.Rand) (ports.Strategy, error) {
	cfg, err := decodeConfig(config, DefaultTournamentConfig())
	if err != nil {
		return nil, err
	}
	return NewTournamentStrategy(id, cfg, arbiter, logger, rng)
}

// NewInstrumentedFromConfig wraps an existing strategy with
// instrumentation configured from a map overlaid on the defaults.
func NewInstrumentedFromConfig(inner ports.Strategy, config map[string]any, logger *zap.Logger, metrics ports.MetricsCollector, rng *rand.Rand) (ports.Strategy, error) {
	cfg, err := decodeConfig(config, DefaultInstrumentedConfig())
	if err != nil {
		return nil, err
	}
	return NewInstrumentedStrategy(inner, cfg, logger, metrics, rng)
}
