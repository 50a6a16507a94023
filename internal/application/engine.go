package application

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ahrav/go-concord/infrastructure/strategies"
	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

// ConsensusEngine is the application-level entry point: it owns a set
// of configured strategy instances and dispatches aggregation requests
// to them by id. Engines are built once from an EngineConfig and a
// registry; the strategy set is immutable afterwards.
//
// Individual strategies may carry per-instance history buffers, so one
// engine instance assumes a single aggregation in flight per strategy.
type ConsensusEngine struct {
	strategies map[string]ports.Strategy
	defaultID  string
	logger     *zap.Logger
}

// NewConsensusEngine constructs every strategy declared in the
// configuration through the registry, optionally wrapping each with
// instrumentation. The first declared strategy becomes the default.
func NewConsensusEngine(cfg *EngineConfig, registry ports.StrategyRegistry, deps Dependencies) (*ConsensusEngine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine config cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("strategy registry cannot be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	engine := &ConsensusEngine{
		strategies: make(map[string]ports.Strategy, len(cfg.Strategies)),
		logger:     logger,
	}

	for _, sc := range cfg.Strategies {
		id := sc.ID
		if id == "" {
			id = sc.Type
		}

		params, err := ParametersMap(sc.Parameters)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", id, err)
		}
		strategy, err := registry.CreateStrategy(sc.Type, id, params)
		if err != nil {
			return nil, err
		}

		if cfg.Instrumentation.Enabled {
			wrapParams, err := ParametersMap(cfg.Instrumentation.Parameters)
			if err != nil {
				return nil, fmt.Errorf("instrumentation: %w", err)
			}
			strategy, err = strategies.NewInstrumentedFromConfig(strategy, wrapParams, logger, deps.Metrics, deps.Rand)
			if err != nil {
				return nil, fmt.Errorf("instrumenting strategy %q: %w", id, err)
			}
		}

		engine.strategies[id] = strategy
		if engine.defaultID == "" {
			engine.defaultID = id
		}
	}

	return engine, nil
}

// Strategy returns the configured strategy instance with the given id.
func (e *ConsensusEngine) Strategy(id string) (ports.Strategy, bool) {
	s, ok := e.strategies[id]
	return s, ok
}

// StrategyIDs returns the configured strategy ids, sorted for stable
// error messages.
func (e *ConsensusEngine) StrategyIDs() []string {
	ids := make([]string, 0, len(e.strategies))
	for id := range e.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aggregate dispatches the predictions to the strategy with the given
// id; an empty id selects the default strategy.
func (e *ConsensusEngine) Aggregate(ctx context.Context, strategyID string, predictions []domain.Prediction) (domain.Prediction, error) {
	if strategyID == "" {
		strategyID = e.defaultID
	}
	strategy, ok := e.strategies[strategyID]
	if !ok {
		return domain.Prediction{}, &UnknownStrategyError{Name: strategyID, Valid: e.StrategyIDs()}
	}

	result, err := strategy.Aggregate(ctx, predictions)
	if err != nil {
		e.logger.Error("aggregation failed",
			zap.String("strategy", strategyID),
			zap.Int("predictions", len(predictions)),
			zap.Error(err))
		return domain.Prediction{}, err
	}
	return result, nil
}
