package domain

import "errors"

// Common domain errors raised by aggregation strategies.
var (
	// ErrNoPredictions is returned when a strategy is invoked with an
	// empty prediction list. Input errors are raised synchronously and
	// immediately to the caller.
	ErrNoPredictions = errors.New("no predictions to aggregate")

	// ErrNoEmbeddings is returned when the embedding provider produced
	// fewer embeddings than the number of input texts.
	ErrNoEmbeddings = errors.New("embedding provider returned wrong number of embeddings")

	// ErrInvalidConfidence is returned when a prediction carries a
	// confidence outside the [0, 1] range.
	ErrInvalidConfidence = errors.New("confidence must be between 0.0 and 1.0")
)
