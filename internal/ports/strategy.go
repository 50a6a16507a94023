// Package ports defines the interfaces that form the contract between the
// domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the engine testable.
package ports

import (
	"context"

	"github.com/ahrav/go-concord/internal/domain"
)

// Strategy reduces a set of independently produced predictions about the
// same question to one synthesized consensus prediction.
// Strategy bodies are CPU-bound and do not suspend; the context exists so
// the contract composes with async orchestrators and so strategies that
// call external capabilities (embedding providers, arbiters) can
// propagate cancellation.
type Strategy interface {
	// Name returns the unique registry name of this strategy.
	// The name is used for logging, metrics labels, and registry lookups.
	Name() string

	// Aggregate synthesizes a single consensus Prediction.
	// It returns domain.ErrNoPredictions when predictions is empty and
	// returns the sole element unchanged when exactly one is given.
	// The returned prediction's confidence is always within [0, 1] and
	// its ContributorID distinguishes it from raw contributor output.
	Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error)

	// Validate checks that the strategy is properly configured and ready
	// for execution. Return nil if validation passes, or an error
	// describing what is invalid.
	Validate() error
}

// StrategyFactory creates a configured strategy instance. The id
// becomes the instance name; the config map holds strategy-specific
// parameters in their YAML shape.
type StrategyFactory func(id string, config map[string]any) (Strategy, error)

// StrategyRegistry resolves strategy names to configured instances.
// The registry is an explicit object constructed once at process start
// and passed by reference; there is no package-level mutable registry.
type StrategyRegistry interface {
	// CreateStrategy builds a new instance of the named strategy.
	// Unknown names fail with an error listing the valid names.
	CreateStrategy(name, id string, config map[string]any) (Strategy, error)

	// RegisterStrategyFactory adds a custom strategy type at runtime.
	RegisterStrategyFactory(name string, factory StrategyFactory) error

	// Strategies returns the registered strategy names, sorted.
	Strategies() []string
}

// ContributionTracker is an optional capability for strategies that
// compute per-contributor weights as part of aggregation (e.g. the
// Shapley approximation). The instrumented aggregator checks for this
// interface instead of probing attributes.
type ContributionTracker interface {
	// Contributions returns the per-contributor weights from the most
	// recent Aggregate call, or false when none are available yet.
	Contributions() (map[string]float64, bool)
}

// ClusterDiagnostics is an optional capability for strategies that
// produce cluster structure as part of aggregation. The instrumented
// aggregator folds the summary into its metrics snapshots.
type ClusterDiagnostics interface {
	// LastClusterResult returns the cluster result from the most recent
	// Aggregate call, or false when none is available yet.
	LastClusterResult() (domain.ClusterResult, bool)
}
