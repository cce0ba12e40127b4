// Package vector provides the in-process vector index used for semantic
// search: top-k inner product over normalized embeddings, with chunk-id
// filtering. A FAISS-backed implementation is available behind the faiss
// build tag; the default is a brute-force in-memory index rebuilt from the
// corpus store at startup.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch reports a vector whose length differs from the
	// index dimensionality. Recovery is operational, not automatic: re-ingest
	// the corpus with the current embedding model, or revert the model.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyIndex reports a search against an index holding no vectors.
	// Callers treat it as zero results, not a failure.
	ErrEmptyIndex = errors.New("vector index is empty")
)

// Index stores normalized embeddings by chunk ID and answers filtered
// similarity searches.
type Index interface {
	// Add upserts vectors by ID. Adding an existing ID replaces its vector.
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns up to k hits ordered by descending inner product with
	// query. A non-nil allow set restricts hits to those IDs. Ties are broken
	// by ID ascending so identical inputs always rank identically.
	Search(ctx context.Context, query []float32, k int, allow map[string]struct{}) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Size() int
	Dimensions() int
	Close() error
}

// Result is a single vector search hit.
type Result struct {
	ID string
	// Score is the inner product, which equals cosine similarity for unit
	// vectors.
	Score float64
}
