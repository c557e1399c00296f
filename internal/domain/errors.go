package domain

import "errors"

var (
	// ErrInvalidFilter signals a malformed metadata filter value.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidRequest signals a contradictory or ambiguous request shape.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrDimensionMismatch signals an embedding whose length differs from
	// the collection dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrStoreExec signals an underlying store failure.
	ErrStoreExec = errors.New("store execution error")
	// ErrStoreTimeout signals that the store aborted an operation on timeout.
	ErrStoreTimeout = errors.New("store timeout")
)
