// Package testutils provides shared test doubles for the consensus
// engine: a scripted embedding provider, scripted and failing arbiters,
// and prediction builders. These keep strategy tests deterministic and
// free of network access.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/ahrav/go-concord/internal/domain"
)

// MockEmbedder is a scripted embedding provider: each known text maps
// to a fixed vector. Unknown texts either fail or fall back to a
// configured default vector, so tests control similarity structure
// exactly.
type MockEmbedder struct {
	mu sync.Mutex

	// Vectors maps exact input texts to their embeddings.
	Vectors map[string][]float64

	// Default is returned for unknown texts when non-nil.
	Default []float64

	// Err, when set, fails every Embed call.
	Err error

	// Calls counts Embed invocations, for asserting rerun behavior.
	Calls int
}

// NewMockEmbedder creates a MockEmbedder over the given text-to-vector
// script.
func NewMockEmbedder(vectors map[string][]float64) *MockEmbedder {
	return &MockEmbedder{Vectors: vectors}
}

// Embed returns the scripted vector for each text, in order.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := m.Vectors[t]
		if !ok {
			if m.Default == nil {
				return nil, fmt.Errorf("no scripted embedding for %q", t)
			}
			v = m.Default
		}
		out[i] = v
	}
	return out, nil
}

// ScriptedArbiter resolves every match with a fixed ruling. Rationales
// can vary per call through the RationaleFunc hook.
type ScriptedArbiter struct {
	mu sync.Mutex

	// Winner is the side returned for every match.
	Winner domain.ArbitrationWinner

	// Rationale is the ruling text; RationaleFunc overrides it when set,
	// receiving the 0-based call index.
	Rationale     string
	RationaleFunc func(call int) string

	// Delta is the confidence adjustment returned with every ruling.
	Delta float64

	// Err, when set, fails every arbitration (exercising the fallback).
	Err error

	// Calls counts Arbitrate invocations.
	Calls int
}

// Arbitrate returns the scripted ruling.
func (a *ScriptedArbiter) Arbitrate(ctx context.Context, pa, pb domain.Prediction, task string) (domain.ArbitrationResult, error) {
	a.mu.Lock()
	call := a.Calls
	a.Calls++
	a.mu.Unlock()

	if a.Err != nil {
		return domain.ArbitrationResult{}, a.Err
	}
	rationale := a.Rationale
	if a.RationaleFunc != nil {
		rationale = a.RationaleFunc(call)
	}
	return domain.ArbitrationResult{
		Winner:          a.Winner,
		Rationale:       rationale,
		ConfidenceDelta: a.Delta,
	}, nil
}

// ConfidenceArbiter picks whichever prediction reports higher
// confidence, a deterministic stand-in for a real judge.
type ConfidenceArbiter struct{}

// Arbitrate rules for the more confident prediction with a neutral
// rationale and no confidence adjustment.
func (ConfidenceArbiter) Arbitrate(ctx context.Context, a, b domain.Prediction, task string) (domain.ArbitrationResult, error) {
	winner := domain.WinnerA
	if b.Confidence > a.Confidence {
		winner = domain.WinnerB
	}
	return domain.ArbitrationResult{
		Winner:    winner,
		Rationale: fmt.Sprintf("preferred the more confident of %s and %s", a.ContributorID, b.ContributorID),
	}, nil
}

// HangingArbiter blocks until the context is canceled, exercising the
// tournament's timeout-and-fallback path.
type HangingArbiter struct{}

// Arbitrate waits for context cancellation and returns its error.
func (HangingArbiter) Arbitrate(ctx context.Context, a, b domain.Prediction, task string) (domain.ArbitrationResult, error) {
	<-ctx.Done()
	return domain.ArbitrationResult{}, ctx.Err()
}

// TextPrediction builds a text-valued prediction.
func TextPrediction(contributor, value string, confidence float64) domain.Prediction {
	return domain.Prediction{
		ContributorID: contributor,
		Value:         domain.TextValue(value),
		Confidence:    confidence,
	}
}

// NumericPrediction builds a numeric prediction.
func NumericPrediction(contributor string, value, confidence float64) domain.Prediction {
	return domain.Prediction{
		ContributorID: contributor,
		Value:         domain.NumericValue(value),
		Confidence:    confidence,
	}
}
