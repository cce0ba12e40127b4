// Package storage defines the persistence interface for the chunk corpus.
// The store is the source of truth: chunk text, metadata, content hashes, and
// embeddings all live here, and both search indexes are rebuilt from it.
package storage

import (
	"context"

	"github.com/hyperjump/shirabe/internal/models"
)

// IndexMeta records which embedding model produced the stored embeddings.
// Ingest validates against it so vectors from different models never mix.
type IndexMeta struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// Storage defines corpus persistence operations.
type Storage interface {
	// UpsertChunks inserts or replaces chunks and their embeddings in one
	// transaction. chunks[i] pairs with embeddings[i]; a nil embedding stores
	// SQL NULL.
	UpsertChunks(ctx context.Context, chunks []*models.Chunk, embeddings [][]float32) error
	// GetChunks returns the stored chunks for ids, keyed by id. Missing ids
	// are simply absent from the map.
	GetChunks(ctx context.Context, ids []string) (map[string]*models.Chunk, error)
	// DeleteChunks removes chunks by id. Unknown ids are ignored.
	DeleteChunks(ctx context.Context, ids []string) error

	// ContentHashes returns id -> content hash for every stored chunk. The
	// incremental indexer diffs incoming batches against this map.
	ContentHashes(ctx context.Context) (map[string]string, error)
	// AllChunks returns every stored chunk without embeddings. Used for
	// keyword index rebuilds and summary generation.
	AllChunks(ctx context.Context) ([]*models.Chunk, error)
	// AllEmbeddings returns every stored embedding with its chunk id. Used to
	// rebuild the vector index at startup.
	AllEmbeddings(ctx context.Context) ([]string, [][]float32, error)

	// FilterIDs resolves metadata filters to the set of matching chunk ids,
	// or nil when the filters are empty (no restriction).
	FilterIDs(ctx context.Context, f models.Filters) (map[string]struct{}, error)

	Count(ctx context.Context) (int64, error)
	CountBySource(ctx context.Context) (map[string]int64, error)

	// IndexMeta returns the stored embedding model metadata, or nil when the
	// corpus has never been ingested.
	IndexMeta(ctx context.Context) (*IndexMeta, error)
	SetIndexMeta(ctx context.Context, meta IndexMeta) error

	// Reset drops all chunks and index metadata. Full re-ingest only.
	Reset(ctx context.Context) error

	Close() error
}
