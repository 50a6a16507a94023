// Package arbiter provides Arbiter implementations for the tournament
// strategy: a deterministic-cost heuristic for offline use and an
// LLM-backed judge for production arbitration.
package arbiter

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

var _ ports.Arbiter = (*HeuristicArbiter)(nil)

// Heuristic scoring weights. The jitter term keeps repeated brackets
// from degenerating into a pure confidence sort while confidence stays
// the dominant signal.
const (
	heuristicConfidenceWeight = 0.7
	heuristicLengthBonus      = 0.1
	heuristicJitter           = 0.1
	heuristicMaxDelta         = 0.1
)

// HeuristicArbiter rules on matches without any model call: each side
// scores by weighted confidence plus a small bonus for the more
// detailed answer, with bounded random jitter. It is the fallback
// arbiter for offline runs and the default when no LLM is configured.
type HeuristicArbiter struct {
	mu sync.Mutex
	// rng drives the jitter; injectable for reproducible rulings.
	rng *rand.Rand
}

// NewHeuristicArbiter creates a HeuristicArbiter. A nil rng falls back
// to an unseeded source.
func NewHeuristicArbiter(rng *rand.Rand) *HeuristicArbiter {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &HeuristicArbiter{rng: rng}
}

// Arbitrate scores both predictions and rules for the higher score.
// Ties go to A.
func (h *HeuristicArbiter) Arbitrate(ctx context.Context, a, b domain.Prediction, task string) (domain.ArbitrationResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ArbitrationResult{}, err
	}

	h.mu.Lock()
	jitterA := (h.rng.Float64()*2 - 1) * heuristicJitter
	jitterB := (h.rng.Float64()*2 - 1) * heuristicJitter
	delta := h.rng.Float64() * heuristicMaxDelta
	h.mu.Unlock()

	scoreA := heuristicConfidenceWeight*a.Confidence + jitterA
	scoreB := heuristicConfidenceWeight*b.Confidence + jitterB
	textA, textB := a.Value.String(), b.Value.String()
	if len(textA) > len(textB) {
		scoreA += heuristicLengthBonus
	} else if len(textB) > len(textA) {
		scoreB += heuristicLengthBonus
	}

	winner := domain.WinnerA
	winnerID := a.ContributorID
	if scoreB > scoreA {
		winner = domain.WinnerB
		winnerID = b.ContributorID
	}

	return domain.ArbitrationResult{
		Winner: winner,
		Rationale: fmt.Sprintf("%s wins on confidence and answer detail (%.3f vs %.3f)",
			winnerID, scoreA, scoreB),
		ConfidenceDelta: delta,
	}, nil
}
