package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/testutils"
)

// echoStrategy returns its canned result, or its canned error.
type echoStrategy struct {
	name string
	out  domain.Prediction
	err  error
}

func (e echoStrategy) Name() string    { return e.name }
func (e echoStrategy) Validate() error { return e.err }

func (e echoStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	if e.err != nil {
		return domain.Prediction{}, e.err
	}
	return e.out, nil
}

func TestTracedStrategy_Passthrough(t *testing.T) {
	expected := testutils.TextPrediction("consensus", "A", 0.9)
	traced := NewTracedStrategy(echoStrategy{name: "inner", out: expected})

	assert.Equal(t, "inner", traced.Name())
	require.NoError(t, traced.Validate())

	result, err := traced.Aggregate(context.Background(), []domain.Prediction{
		testutils.TextPrediction("a1", "A", 0.9),
	})
	require.NoError(t, err)
	assert.Equal(t, expected, result, "tracing must not alter the result")
}

func TestTracedStrategy_ErrorPassthrough(t *testing.T) {
	innerErr := errors.New("aggregation broke")
	traced := NewTracedStrategy(echoStrategy{name: "inner", err: innerErr})

	_, err := traced.Aggregate(context.Background(), nil)
	assert.ErrorIs(t, err, innerErr)
	assert.ErrorIs(t, traced.Validate(), innerErr)
}
