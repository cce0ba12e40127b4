package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/expand"
	"github.com/hyperjump/shirabe/internal/keyword"
	"github.com/hyperjump/shirabe/internal/metrics"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/storage"
	"github.com/hyperjump/shirabe/internal/topic"
	"github.com/hyperjump/shirabe/internal/vector"
)

// ErrTimeout reports that every variant search timed out, leaving nothing
// to fuse. A subset timing out degrades silently instead.
var ErrTimeout = errors.New("all variant searches timed out")

// Engine runs the hybrid retrieval pipeline over the corpus store and the
// two derived indexes. It is read-only: ingest and index rebuilds belong to
// the indexer.
type Engine struct {
	store    storage.Storage
	embedder embedding.Embedder
	vector   vector.Index
	keyword  keyword.Index
	expander *expand.Expander
	topics   *topic.Matcher
	cfg      *config.RetrievalConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a retrieval engine with the given dependencies.
func NewEngine(
	store storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.Index,
	keywordIndex keyword.Index,
	expander *expand.Expander,
	topics *topic.Matcher,
	cfg *config.RetrievalConfig,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:    store,
		embedder: embedder,
		vector:   vectorIndex,
		keyword:  keywordIndex,
		expander: expander,
		topics:   topics,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve runs the full pipeline for one request: expand the query, search
// every variant on both engines, fuse, diversify, inject summary anchors,
// and hydrate the top k chunks. Identical requests against an identical
// index state return identical responses.
func (e *Engine) Retrieve(ctx context.Context, req *models.RetrievalRequest) (*models.RetrievalResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if e.cfg.QueryTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.QueryTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	exp := e.expander.Expand(req.Query)
	matchedTopics := e.topics.Match(req.Query)

	lists, err := e.dispatch(ctx, exp.Variants, req.Filters)
	if err != nil {
		return nil, err
	}
	fused := Fuse(lists, e.cfg.RRFK)

	// Hydrate every candidate once: the diversifier needs source kinds and
	// the response needs text, so one batched read serves both.
	ids := make([]string, len(fused))
	for i, fc := range fused {
		ids[i] = fc.ID
	}
	chunks, err := e.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load result chunks: %w", err)
	}

	kept := make([]*FusedChunk, 0, len(fused))
	sourceOf := make(map[string]string, len(fused))
	for _, fc := range fused {
		chunk, ok := chunks[fc.ID]
		if !ok {
			// The indexes trail the store briefly after a delete.
			e.logger.Warn("chunk missing from store, dropped from results", zap.String("id", fc.ID))
			continue
		}
		kept = append(kept, fc)
		sourceOf[fc.ID] = chunk.SourceKind
	}

	ranked := Diversify(kept, sourceOf, e.quotas(exp))
	ranked, err = e.injectAnchors(ctx, ranked, chunks, matchedTopics, req.K)
	if err != nil {
		return nil, err
	}

	total := len(ranked)
	if len(ranked) > req.K {
		ranked = ranked[:req.K]
	}

	results := make([]*models.RetrievedChunk, 0, len(ranked))
	for i, fc := range ranked {
		chunk := chunks[fc.ID]
		results = append(results, &models.RetrievedChunk{
			ChunkID:    chunk.ID,
			Text:       chunk.Text,
			SourceKind: chunk.SourceKind,
			Metadata:   chunk.Metadata,
			Score:      fc.Score,
			Rank:       i + 1,
		})
	}

	variantTexts := make([]string, len(exp.Variants))
	for i, v := range exp.Variants {
		variantTexts[i] = v.Text
	}

	elapsed := time.Since(start)
	e.metrics.RecordQuery(elapsed, len(results))
	e.logger.Debug("retrieval complete",
		zap.String("query", req.Query),
		zap.Int("variants", len(exp.Variants)),
		zap.Strings("topics", matchedTopics),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", elapsed),
	)

	return &models.RetrievalResponse{
		Query:       req.Query,
		Results:     results,
		Total:       total,
		Topics:      matchedTopics,
		Variants:    variantTexts,
		QueryTimeMs: elapsed.Milliseconds(),
	}, nil
}

// VectorIndexSize reports how many embedded chunks are searchable.
func (e *Engine) VectorIndexSize() int {
	return e.vector.Size()
}

// quotas derives the diversifier's per-source minimums: every relevant
// source gets min_per_source, and a specialized query raises the
// specialized source's quota by one.
func (e *Engine) quotas(exp expand.Expansion) map[string]int {
	quotas := make(map[string]int)
	for _, src := range exp.RelevantSources() {
		quotas[src] = e.cfg.MinPerSource
	}
	if exp.Specialized && exp.SpecializedSource != "" {
		quotas[exp.SpecializedSource] = e.cfg.MinPerSource + 1
	}
	return quotas
}

type searchTask struct {
	variant  models.QueryVariant
	semantic bool
	weight   float64
	filters  models.Filters
	allow    map[string]struct{}
}

type taskOutcome struct {
	ok       bool
	timedOut bool
	err      error
	fatal    error
}

// dispatch fans the variants out across both engines under the worker pool
// and collects one ranked list per task, in task order. A variant that
// times out or fails contributes an empty list; if nothing succeeds the
// whole query errors.
func (e *Engine) dispatch(ctx context.Context, variants []models.QueryVariant, base models.Filters) ([]RankedList, error) {
	var tasks []*searchTask
	allowSets := make(map[models.Filters]map[string]struct{})
	for _, v := range variants {
		filters, ok := effectiveFilters(base, v.TargetSource)
		if !ok {
			// The request filter pins a different source; this variant
			// cannot match anything.
			continue
		}
		if e.cfg.SemanticWeight > 0 {
			allow, seen := allowSets[filters]
			if !seen {
				var err error
				allow, err = e.store.FilterIDs(ctx, filters)
				if err != nil {
					return nil, fmt.Errorf("failed to resolve filters: %w", err)
				}
				allowSets[filters] = allow
			}
			tasks = append(tasks, &searchTask{
				variant:  v,
				semantic: true,
				weight:   v.Weight * e.cfg.SemanticWeight,
				filters:  filters,
				allow:    allow,
			})
		}
		if e.cfg.KeywordWeight > 0 {
			tasks = append(tasks, &searchTask{
				variant: v,
				weight:  v.Weight * e.cfg.KeywordWeight,
				filters: filters,
			})
		}
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	lists := make([]RankedList, len(tasks))
	outcomes := make([]taskOutcome, len(tasks))

	workers := e.cfg.SearchWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	taskCh := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskCh {
				t := tasks[i]
				ids, err := e.runTask(ctx, t)
				lists[i] = RankedList{IDs: ids, Weight: t.weight}
				outcomes[i] = e.classify(ctx, t, err)
			}
		}()
	}
	for i := range tasks {
		taskCh <- i
	}
	close(taskCh)
	wg.Wait()

	var (
		okCount   int
		timeouts  int
		firstFail error
	)
	for _, o := range outcomes {
		if o.fatal != nil {
			return nil, o.fatal
		}
		if o.ok {
			okCount++
		}
		if o.timedOut {
			timeouts++
		}
		if o.err != nil && firstFail == nil {
			firstFail = o.err
		}
	}
	if okCount == 0 {
		if firstFail != nil {
			return nil, fmt.Errorf("all variant searches failed: %w", firstFail)
		}
		if timeouts > 0 {
			return nil, ErrTimeout
		}
	}
	return lists, nil
}

// runTask executes one (variant, engine) search under the variant timeout.
func (e *Engine) runTask(ctx context.Context, t *searchTask) ([]string, error) {
	if e.cfg.VariantTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.VariantTimeoutMs)*time.Millisecond)
		defer cancel()
	}

	limit := e.cfg.CandidatesPerVariant
	if t.semantic {
		emb, err := e.embedder.Embed(ctx, t.variant.Text)
		if err != nil {
			return nil, err
		}
		results, err := e.vector.Search(ctx, emb, limit, t.allow)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.ID
		}
		return ids, nil
	}

	results, err := e.keyword.Search(ctx, t.variant.Text, limit, t.filters)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids, nil
}

// classify sorts a task error into the degradation policy: empty indexes
// are fine, variant timeouts degrade, dimension mismatches and query-level
// cancellation abort, anything else degrades with a warning.
func (e *Engine) classify(ctx context.Context, t *searchTask, err error) taskOutcome {
	switch {
	case err == nil:
		return taskOutcome{ok: true}
	case errors.Is(err, vector.ErrEmptyIndex), errors.Is(err, keyword.ErrEmptyIndex):
		return taskOutcome{ok: true}
	case errors.Is(err, vector.ErrDimensionMismatch):
		return taskOutcome{fatal: err}
	case ctx.Err() != nil:
		return taskOutcome{fatal: fmt.Errorf("retrieval cancelled: %w", ctx.Err())}
	case errors.Is(err, context.DeadlineExceeded):
		e.metrics.RecordVariantTimeout()
		e.logger.Warn("variant search timed out",
			zap.String("variant", t.variant.Kind),
			zap.Bool("semantic", t.semantic),
		)
		return taskOutcome{timedOut: true}
	default:
		e.logger.Warn("variant search failed",
			zap.String("variant", t.variant.Kind),
			zap.Bool("semantic", t.semantic),
			zap.Error(err),
		)
		return taskOutcome{err: err}
	}
}

// effectiveFilters merges the request filters with a variant's target
// source. The second return is false when the two pin different sources,
// which makes the variant unsatisfiable.
func effectiveFilters(base models.Filters, targetSource string) (models.Filters, bool) {
	if targetSource == "" {
		return base, true
	}
	if base.Source != "" && base.Source != targetSource {
		return models.Filters{}, false
	}
	base.Source = targetSource
	return base, true
}
