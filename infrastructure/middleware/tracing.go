package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-concord/internal/domain"
	"github.com/ahrav/go-concord/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.Strategy = (*TracedStrategy)(nil)

// TracedStrategy decorates a strategy with an OpenTelemetry span per
// aggregation, recording the input size and the synthesized result as
// span attributes. It composes with the instrumented wrapper; wrap the
// instrumented strategy to capture its measurement time in the span.
type TracedStrategy struct {
	inner  ports.Strategy
	tracer trace.Tracer
}

// NewTracedStrategy wraps inner with tracing.
func NewTracedStrategy(inner ports.Strategy) *TracedStrategy {
	return &TracedStrategy{
		inner:  inner,
		tracer: otel.Tracer("consensus-engine"),
	}
}

// Name returns the wrapped strategy's identifier.
func (t *TracedStrategy) Name() string { return t.inner.Name() }

// Validate checks the wrapped strategy.
func (t *TracedStrategy) Validate() error { return t.inner.Validate() }

// Aggregate delegates to the wrapped strategy inside a span.
func (t *TracedStrategy) Aggregate(ctx context.Context, predictions []domain.Prediction) (domain.Prediction, error) {
	ctx, span := t.tracer.Start(ctx, "Strategy.Aggregate", trace.WithAttributes(
		attribute.String("consensus.strategy", t.inner.Name()),
		attribute.Int("consensus.predictions", len(predictions)),
	))
	defer span.End()

	result, err := t.inner.Aggregate(ctx, predictions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Prediction{}, err
	}

	span.SetAttributes(
		attribute.String("consensus.contributor_id", result.ContributorID),
		attribute.Float64("consensus.confidence", result.Confidence),
	)
	span.SetStatus(codes.Ok, "aggregation completed")
	return result, nil
}
