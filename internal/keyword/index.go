// Package keyword provides BM25 keyword search over the chunk corpus.
//
// The keyword index is derived state. It is rebuilt in memory from the
// corpus store on startup and after every ingest, so it carries no
// persistence of its own.
package keyword

import (
	"context"
	"errors"

	"github.com/hyperjump/shirabe/internal/models"
)

// ErrEmptyIndex reports a search against an index that has not been
// populated by a rebuild yet.
var ErrEmptyIndex = errors.New("keyword index is empty")

// Index defines keyword search over chunk text and titles.
type Index interface {
	// Rebuild replaces the index contents with the given chunks. The swap
	// is atomic: concurrent searches see either the old corpus or the new
	// one, never a partial state.
	Rebuild(ctx context.Context, chunks []*models.Chunk) error

	// Search runs a free-text match over chunk text and title, restricted
	// by the metadata filters, and returns up to limit hits ordered by
	// descending score.
	Search(ctx context.Context, query string, limit int, filters models.Filters) ([]*Result, error)

	// DocCount reports the number of indexed chunks.
	DocCount() (uint64, error)

	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}
