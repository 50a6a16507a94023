package arbiter

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/testutils"
)

func TestHeuristicArbiter_Arbitrate(t *testing.T) {
	t.Run("large confidence gap decides regardless of jitter", func(t *testing.T) {
		// Worst case for A: 0.7*0.95 - 0.1 jitter = 0.565.
		// Best case for B: 0.7*0.05 + 0.1 jitter + 0.1 length bonus = 0.235.
		a := testutils.TextPrediction("strong", "short", 0.95)
		b := testutils.TextPrediction("weak", "a much longer and more detailed answer", 0.05)

		arbiter := NewHeuristicArbiter(rand.New(rand.NewSource(1)))
		for i := 0; i < 20; i++ {
			result, err := arbiter.Arbitrate(context.Background(), a, b, "")
			require.NoError(t, err)
			assert.Equal(t, domain.WinnerA, result.Winner)
			assert.Contains(t, result.Rationale, "strong")
			assert.GreaterOrEqual(t, result.ConfidenceDelta, 0.0)
			assert.LessOrEqual(t, result.ConfidenceDelta, heuristicMaxDelta)
		}
	})

	t.Run("seeded rulings are reproducible", func(t *testing.T) {
		a := testutils.TextPrediction("a", "answer one", 0.6)
		b := testutils.TextPrediction("b", "answer two", 0.55)

		first, err := NewHeuristicArbiter(rand.New(rand.NewSource(9))).
			Arbitrate(context.Background(), a, b, "task")
		require.NoError(t, err)
		second, err := NewHeuristicArbiter(rand.New(rand.NewSource(9))).
			Arbitrate(context.Background(), a, b, "task")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("canceled context aborts the ruling", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		arbiter := NewHeuristicArbiter(nil)
		_, err := arbiter.Arbitrate(ctx,
			testutils.TextPrediction("a", "x", 0.5),
			testutils.TextPrediction("b", "y", 0.5), "")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
