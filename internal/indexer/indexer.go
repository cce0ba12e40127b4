// Package indexer implements incremental corpus ingestion: content-hash
// diffing against the store, embedding of changed chunks, summary
// regeneration, and rebuilds of both derived indexes.
package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/domain"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/keyword"
	"github.com/hyperjump/shirabe/internal/metrics"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/storage"
	"github.com/hyperjump/shirabe/internal/summary"
	"github.com/hyperjump/shirabe/internal/topic"
	"github.com/hyperjump/shirabe/internal/vector"
)

// ErrInvalidChunk marks batch rejections caused by the submitted chunks
// rather than by engine state. The whole batch is refused with the
// offending record named.
var ErrInvalidChunk = errors.New("invalid chunk")

// Indexer is the single writer of the corpus store and the derived indexes.
type Indexer struct {
	store     storage.Storage
	embedder  embedding.Embedder
	vector    vector.Index
	keyword   keyword.Index
	topics    *topic.Matcher
	summaries *summary.Builder
	kinds     map[string]struct{}
	cfg       *config.EmbeddingConfig
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// Option configures optional indexer collaborators.
type Option func(*Indexer)

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = logger }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(idx *Indexer) { idx.metrics = m }
}

// NewIndexer creates an indexer for one domain's corpus. The topic matcher
// both tags chunks and drives summary membership.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	dom domain.Domain,
	topics *topic.Matcher,
	cfg *config.EmbeddingConfig,
	opts ...Option,
) *Indexer {
	kinds := make(map[string]struct{})
	for _, k := range dom.SourceKinds() {
		kinds[k] = struct{}{}
	}
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		vector:    vectorIndex,
		keyword:   keywordIndex,
		topics:    topics,
		summaries: summary.NewBuilder(topics),
		kinds:     kinds,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest runs one incremental batch: validate, diff by content hash, embed
// and upsert what changed, regenerate summaries, and rebuild the keyword
// index. Stats count only the batch chunks; summary writes are logged.
// Re-running with an unchanged batch performs zero writes.
func (idx *Indexer) Ingest(ctx context.Context, chunks []*models.Chunk) (models.IngestStats, error) {
	var stats models.IngestStats

	for i, c := range chunks {
		if err := c.Validate(); err != nil {
			return stats, fmt.Errorf("%w at position %d: %v", ErrInvalidChunk, i, err)
		}
		if _, ok := idx.kinds[c.SourceKind]; !ok {
			return stats, fmt.Errorf("%w: chunk %q has source kind %q, not part of this domain", ErrInvalidChunk, c.ID, c.SourceKind)
		}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		c.ContentHash = models.HashText(c.Text)
	}

	if err := idx.checkDimensions(ctx); err != nil {
		return stats, err
	}

	stored, err := idx.store.ContentHashes(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load stored hashes: %w", err)
	}
	var changed []*models.Chunk
	for _, c := range chunks {
		if stored[c.ID] == c.ContentHash {
			stats.Skipped++
			continue
		}
		changed = append(changed, c)
	}

	if len(changed) > 0 {
		for _, c := range changed {
			c.Metadata.TopicClusters = idx.topics.Match(c.Text)
		}
		if err := idx.writeChunks(ctx, changed); err != nil {
			return stats, err
		}
		stats.Embedded = len(changed)
		stats.Upserted = len(changed)
	}

	if err := idx.refreshSummaries(ctx); err != nil {
		return stats, err
	}
	if err := idx.rebuildKeyword(ctx); err != nil {
		return stats, err
	}

	idx.metrics.RecordIngest(stats)
	idx.logger.Info("ingest complete",
		zap.Int("embedded", stats.Embedded),
		zap.Int("upserted", stats.Upserted),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// RebuildIndexes hydrates both derived indexes from the store. Called at
// startup and by the explicit rebuild operation.
func (idx *Indexer) RebuildIndexes(ctx context.Context) error {
	ids, embs, err := idx.store.AllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}
	if len(ids) > 0 {
		if err := idx.vector.Add(ctx, ids, embs); err != nil {
			return fmt.Errorf("failed to rebuild vector index: %w", err)
		}
	}
	if err := idx.rebuildKeyword(ctx); err != nil {
		return err
	}
	idx.logger.Info("indexes rebuilt", zap.Int("embeddings", len(ids)))
	return nil
}

// checkDimensions guards the store against vectors from a different
// embedding configuration. First ingest records the configuration instead.
func (idx *Indexer) checkDimensions(ctx context.Context) error {
	meta, err := idx.store.IndexMeta(ctx)
	if err != nil {
		return fmt.Errorf("failed to load index metadata: %w", err)
	}
	dims := idx.embedder.Dimensions()
	if meta == nil {
		return idx.store.SetIndexMeta(ctx, storage.IndexMeta{Model: idx.cfg.Model, Dimensions: dims})
	}
	if meta.Dimensions != dims || meta.Model != idx.cfg.Model {
		return fmt.Errorf("%w: corpus indexed with model %q (%d dimensions) but the embedder is %q (%d dimensions); re-ingest the corpus or revert the embedding config",
			vector.ErrDimensionMismatch, meta.Model, meta.Dimensions, idx.cfg.Model, dims)
	}
	return nil
}

// writeChunks embeds a changed set and upserts it into the store and the
// vector index in one pass.
func (idx *Indexer) writeChunks(ctx context.Context, chunks []*models.Chunk) error {
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ids[i] = c.ID
	}
	embs, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if err := idx.store.UpsertChunks(ctx, chunks, embs); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	if err := idx.vector.Add(ctx, ids, embs); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	return nil
}

// refreshSummaries regenerates the summary set from the full corpus and
// writes only what changed. Summaries whose topic or document no longer has
// members are retired.
func (idx *Indexer) refreshSummaries(ctx context.Context) error {
	all, err := idx.store.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load corpus for summaries: %w", err)
	}
	built := idx.summaries.Build(all)

	stored, err := idx.store.ContentHashes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stored hashes: %w", err)
	}

	current := make(map[string]struct{}, len(built))
	var changed []*models.Chunk
	for _, s := range built {
		current[s.ID] = struct{}{}
		if stored[s.ID] == s.ContentHash {
			continue
		}
		changed = append(changed, s)
	}
	var stale []string
	for id := range stored {
		if !models.IsSummaryID(id) {
			continue
		}
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}

	if len(changed) > 0 {
		if err := idx.writeChunks(ctx, changed); err != nil {
			return err
		}
	}
	if len(stale) > 0 {
		if err := idx.store.DeleteChunks(ctx, stale); err != nil {
			return fmt.Errorf("failed to retire summaries: %w", err)
		}
		if err := idx.vector.Remove(ctx, stale); err != nil {
			return fmt.Errorf("failed to retire summary vectors: %w", err)
		}
	}
	if len(changed) > 0 || len(stale) > 0 {
		idx.logger.Info("summaries refreshed",
			zap.Int("written", len(changed)),
			zap.Int("retired", len(stale)),
		)
	}
	return nil
}

// rebuildKeyword swaps in a fresh keyword index built from the full corpus
// and refreshes the corpus gauges.
func (idx *Indexer) rebuildKeyword(ctx context.Context) error {
	all, err := idx.store.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load corpus for keyword rebuild: %w", err)
	}
	if err := idx.keyword.Rebuild(ctx, all); err != nil {
		return fmt.Errorf("failed to rebuild keyword index: %w", err)
	}
	idx.metrics.RecordKeywordRebuild()
	idx.metrics.SetIndexedChunks(int64(len(all)))
	return nil
}
