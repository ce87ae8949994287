package retrieval

import "errors"

var (
	// ErrEmbedding indicates the embedder could not produce a query vector.
	// Retrieval cannot proceed; callers may retry or abort.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStoreConnection indicates the chunk store could not be queried.
	ErrStoreConnection = errors.New("chunk store unreachable")

	// ErrDimensionMismatch indicates a stored vector's dimensionality does
	// not match the embedder's output.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
