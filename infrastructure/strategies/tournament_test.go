package strategies

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/testutils"
)

func fiveContestants() []domain.Prediction {
	return []domain.Prediction{
		testutils.TextPrediction("a1", "one", 0.5),
		testutils.TextPrediction("a2", "two", 0.6),
		testutils.TextPrediction("a3", "three", 0.7),
		testutils.TextPrediction("a4", "four", 0.8),
		testutils.TextPrediction("a5", "five", 0.9),
	}
}

func TestTournamentStrategy_FullBracket(t *testing.T) {
	strategy, err := NewTournamentStrategy("tournament", DefaultTournamentConfig(),
		testutils.ConfidenceArbiter{}, nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	result, err := strategy.Aggregate(context.Background(), fiveContestants())
	require.NoError(t, err)

	// The highest-confidence contestant takes every bye and wins its one
	// arbitrated match under a confidence-preferring judge.
	assert.Equal(t, ConsensusTournamentPrefix+"a5", result.ContributorID)
	assert.Equal(t, "five", result.Value.String())
	assert.InDelta(t, 0.95, result.Confidence, 1e-9,
		"champion confidence plus the winner boost, no repetition penalty")

	rounds := strategy.LastRounds()
	require.Len(t, rounds, 3, "5 contestants resolve in 3 rounds")
	require.NotNil(t, rounds[0].Bye, "odd first round grants a bye")
	assert.Equal(t, "a5", rounds[0].Bye.ContributorID, "bye goes to the confidence leader")
	assert.Len(t, rounds[0].Matches, 2)
	assert.Len(t, rounds[1].Matches, 1)
	assert.Len(t, rounds[2].Matches, 1)

	history := strategy.History()
	require.Len(t, history, 1)
	assert.Equal(t, 5, history[0].Participants)
	assert.Equal(t, 3, history[0].Rounds)
	assert.Equal(t, 4, history[0].Matches, "a 5-contestant bracket plays exactly 4 matches")
	assert.Equal(t, "a5", history[0].ChampionID)
}

func TestTournamentStrategy_ContributorStats(t *testing.T) {
	strategy, err := NewTournamentStrategy("tournament", DefaultTournamentConfig(),
		testutils.ConfidenceArbiter{}, nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	_, err = strategy.Aggregate(context.Background(), fiveContestants())
	require.NoError(t, err)

	champ := strategy.ContributorStats("a5")
	assert.Equal(t, 1, champ.Matches, "byes do not count as matches")
	assert.Equal(t, 1, champ.Wins)
	assert.InDelta(t, 1.0, champ.WinRate, 1e-9)

	// The lowest-confidence contestant loses whatever pairing it draws.
	loser := strategy.ContributorStats("a1")
	assert.Equal(t, 1, loser.Matches)
	assert.Zero(t, loser.Wins)

	assert.Zero(t, strategy.ContributorStats("never-played").Matches)
}

func TestTournamentStrategy_ArbitrationFailureFallsBack(t *testing.T) {
	arbiter := &testutils.ScriptedArbiter{Err: errors.New("judge unavailable")}
	strategy, err := NewTournamentStrategy("tournament", DefaultTournamentConfig(),
		arbiter, nil, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	predictions := []domain.Prediction{
		testutils.TextPrediction("a1", "one", 0.4),
		testutils.TextPrediction("a2", "two", 0.9),
		testutils.TextPrediction("a3", "three", 0.6),
		testutils.TextPrediction("a4", "four", 0.3),
	}

	result, err := strategy.Aggregate(context.Background(), predictions)
	require.NoError(t, err)

	assert.Equal(t, ConsensusTournamentPrefix+"a2", result.ContributorID,
		"confidence comparison decides every fallback match")

	for _, round := range strategy.LastRounds() {
		for _, m := range round.Matches {
			assert.True(t, m.Fallback)
		}
	}
}

func TestTournamentStrategy_InvalidWinnerFallsBack(t *testing.T) {
	arbiter := &testutils.ScriptedArbiter{Winner: "C", Rationale: "confused ruling"}
	strategy, err := NewTournamentStrategy("tournament", DefaultTournamentConfig(),
		arbiter, nil, rand.New(rand.NewSource(2)))
	require.NoError(t, err)

	result, err := strategy.Aggregate(context.Background(), []domain.Prediction{
		testutils.TextPrediction("a1", "one", 0.4),
		testutils.TextPrediction("a2", "two", 0.9),
	})
	require.NoError(t, err)

	assert.Equal(t, ConsensusTournamentPrefix+"a2", result.ContributorID)
	require.Len(t, strategy.LastRounds(), 1)
	assert.True(t, strategy.LastRounds()[0].Matches[0].Fallback)
}

func TestTournamentStrategy_TimeoutFallsBack(t *testing.T) {
	cfg := DefaultTournamentConfig()
	cfg.ArbitrationTimeout = 10 * time.Millisecond

	strategy, err := NewTournamentStrategy("tournament", cfg,
		testutils.HangingArbiter{}, nil, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	done := make(chan struct{})
	var result domain.Prediction
	go func() {
		defer close(done)
		result, err = strategy.Aggregate(context.Background(), []domain.Prediction{
			testutils.TextPrediction("a1", "one", 0.7),
			testutils.TextPrediction("a2", "two", 0.5),
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tournament did not terminate on arbitration timeout")
	}

	require.NoError(t, err)
	assert.Equal(t, ConsensusTournamentPrefix+"a1", result.ContributorID)
	assert.True(t, strategy.LastRounds()[0].Matches[0].Fallback)
}

func TestTournamentStrategy_ConsistencyPenalty(t *testing.T) {
	contestants := []domain.Prediction{
		testutils.TextPrediction("a1", "one", 0.8),
		testutils.TextPrediction("a2", "two", 0.8),
		testutils.TextPrediction("a3", "three", 0.8),
		testutils.TextPrediction("a4", "four", 0.8),
	}

	run := func(arbiter *testutils.ScriptedArbiter) float64 {
		strategy, err := NewTournamentStrategy("tournament", DefaultTournamentConfig(),
			arbiter, nil, rand.New(rand.NewSource(4)))
		require.NoError(t, err)
		result, err := strategy.Aggregate(context.Background(), contestants)
		require.NoError(t, err)
		return result.Confidence
	}

	// The champion wins two matches. Identical rationales repeat every
	// substantive token; fully distinct rationales repeat none.
	templated := run(&testutils.ScriptedArbiter{
		Winner:    domain.WinnerA,
		Rationale: "because stronger reasoning throughout analysis",
	})
	varied := run(&testutils.ScriptedArbiter{
		Winner: domain.WinnerA,
		RationaleFunc: func(call int) string {
			rationales := []string{
				"stronger numerical grounding",
				"better citation coverage overall",
				"cleaner logical structure presented",
			}
			return rationales[call%len(rationales)]
		},
	})

	assert.InDelta(t, 0.80, templated, 1e-9, "0.8 - 0.5*penalty + boost")
	assert.InDelta(t, 0.85, varied, 1e-9, "0.8 + boost, no penalty")
	assert.Greater(t, varied, templated)
}

func TestTournamentStrategy_ConfidenceDeltaClamped(t *testing.T) {
	arbiter := &testutils.ScriptedArbiter{
		Winner:    domain.WinnerA,
		Rationale: "decisive margin observed",
		Delta:     0.9, // far above the configured cap
	}
	strategy, err := NewTournamentStrategy("tournament", DefaultTournamentConfig(),
		arbiter, nil, rand.New(rand.NewSource(5)))
	require.NoError(t, err)

	_, err = strategy.Aggregate(context.Background(), []domain.Prediction{
		testutils.TextPrediction("a1", "one", 0.5),
		testutils.TextPrediction("a2", "two", 0.5),
	})
	require.NoError(t, err)

	match := strategy.LastRounds()[0].Matches[0]
	assert.InDelta(t, 0.2, match.ConfidenceDelta, 1e-9)
	assert.InDelta(t, 0.7, match.Winner.Confidence, 1e-9)
}

func TestTournamentStrategy_HistoryBounded(t *testing.T) {
	cfg := DefaultTournamentConfig()
	cfg.HistorySize = 2

	strategy, err := NewTournamentStrategy("tournament", cfg,
		testutils.ConfidenceArbiter{}, nil, rand.New(rand.NewSource(6)))
	require.NoError(t, err)

	predictions := []domain.Prediction{
		testutils.TextPrediction("a1", "one", 0.6),
		testutils.TextPrediction("a2", "two", 0.7),
	}
	for i := 0; i < 3; i++ {
		_, err := strategy.Aggregate(context.Background(), predictions)
		require.NoError(t, err)
	}
	assert.Len(t, strategy.History(), 2)
}

func TestTournamentStrategy_Validation(t *testing.T) {
	_, err := NewTournamentStrategy("", DefaultTournamentConfig(),
		testutils.ConfidenceArbiter{}, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyStrategyName)

	_, err = NewTournamentStrategy("tournament", DefaultTournamentConfig(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilArbiter)

	cfg := DefaultTournamentConfig()
	cfg.MaxConcurrency = 0
	_, err = NewTournamentStrategy("tournament", cfg, testutils.ConfidenceArbiter{}, nil, nil)
	assert.Error(t, err)
}

func TestTournamentStrategy_SingletonPassthrough(t *testing.T) {
	strategy, err := NewTournamentStrategy("tournament", DefaultTournamentConfig(),
		testutils.ConfidenceArbiter{}, nil, nil)
	require.NoError(t, err)

	p := testutils.TextPrediction("solo", "only", 0.4)
	result, err := strategy.Aggregate(context.Background(), []domain.Prediction{p})
	require.NoError(t, err)
	assert.Equal(t, p, result)
	assert.Empty(t, strategy.History(), "no tournament is recorded for a single input")
}
