package e2e

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/domain"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/expand"
	"github.com/hyperjump/shirabe/internal/indexer"
	"github.com/hyperjump/shirabe/internal/keyword"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/search"
	"github.com/hyperjump/shirabe/internal/storage"
	"github.com/hyperjump/shirabe/internal/topic"
	"github.com/hyperjump/shirabe/internal/vector"
)

const (
	corpusSize    = 100
	retrieveDepth = 30
	e2eDims       = 64
)

type stack struct {
	store    *storage.SQLiteStorage
	embedder embedding.Embedder
	vec      vector.Index
	kw       keyword.Index
	engine   *search.Engine
	indexer  *indexer.Indexer
}

func (s *stack) Close() {
	_ = s.kw.Close()
	_ = s.vec.Close()
	_ = s.embedder.Close()
	_ = s.store.Close()
}

func newStack(t *testing.T) *stack {
	t.Helper()
	dom, err := domain.NewMedicare()
	if err != nil {
		t.Fatalf("NewMedicare: %v", err)
	}
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "corpus.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	embedder := embedding.NewHashingEmbedder(e2eDims)
	vec, err := vector.NewMemoryIndex(e2eDims)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	kw, err := keyword.NewBleveIndex()
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	topics, err := topic.NewMatcher(dom.TopicDefinitions())
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}
	retrieval := &config.RetrievalConfig{
		DefaultK:             retrieveDepth,
		SemanticWeight:       0.6,
		KeywordWeight:        0.4,
		RRFK:                 60,
		MinPerSource:         1,
		MaxVariants:          6,
		CandidatesPerVariant: 2 * retrieveDepth,
		QueryTimeoutMs:       10000,
		VariantTimeoutMs:     3000,
		SearchWorkers:        4,
	}
	expander := expand.New(dom.Rules(), retrieval.MaxVariants)
	engine := search.NewEngine(store, embedder, vec, kw, expander, topics, retrieval)
	emb := &config.EmbeddingConfig{Model: "hashing-64", Dimensions: e2eDims, MaxTokens: 128}
	idx := indexer.NewIndexer(store, embedder, vec, kw, dom, topics, emb)
	return &stack{store: store, embedder: embedder, vec: vec, kw: kw, engine: engine, indexer: idx}
}

func containsAny(ids []string, wanted []string) bool {
	for _, id := range ids {
		for _, w := range wanted {
			if id == w {
				return true
			}
		}
	}
	return false
}

// TestE2E_RetrievalFindsSignatureChunks ingests the generated corpus and
// checks that every query case surfaces its signature chunk within the
// retrieval depth.
func TestE2E_RetrievalFindsSignatureChunks(t *testing.T) {
	s := newStack(t)
	defer s.Close()
	ctx := context.Background()

	corpus := BuildCorpus(corpusSize)
	stats, err := s.indexer.Ingest(ctx, corpus.Chunks)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Embedded != corpusSize {
		t.Fatalf("embedded %d chunks, want %d", stats.Embedded, corpusSize)
	}
	if len(corpus.QueryCases) == 0 {
		t.Fatal("corpus produced no query cases")
	}

	for _, tc := range corpus.QueryCases {
		t.Run(tc.Description, func(t *testing.T) {
			resp, err := s.engine.Retrieve(ctx, &models.RetrievalRequest{
				Query: tc.Query,
				K:     retrieveDepth,
			})
			if err != nil {
				t.Fatalf("Retrieve(%q): %v", tc.Query, err)
			}
			if !containsAny(resp.IDs(), tc.ExpectedChunkIDs) {
				t.Errorf("query %q: expected one of %v in top %d, got %v",
					tc.Query, tc.ExpectedChunkIDs, retrieveDepth, resp.IDs())
			}
		})
	}
}

// TestE2E_ReingestSkipsUnchangedCorpus feeds the identical corpus a second
// time. The content hash diff must skip every chunk, including the cycled
// near-duplicates that share text but differ in id.
func TestE2E_ReingestSkipsUnchangedCorpus(t *testing.T) {
	s := newStack(t)
	defer s.Close()
	ctx := context.Background()

	corpus := BuildCorpus(corpusSize)
	if _, err := s.indexer.Ingest(ctx, corpus.Chunks); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	stats, err := s.indexer.Ingest(ctx, corpus.Chunks)
	if err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	if stats.Embedded != 0 || stats.Upserted != 0 || stats.Skipped != corpusSize {
		t.Errorf("re-ingest stats = %+v, want 0 embedded, 0 upserted, %d skipped", stats, corpusSize)
	}
}

// TestE2E_SourceFilterStaysInKind retrieves with a source filter over the
// full corpus and checks that no chunk of another kind leaks through, even
// though other kinds also match the query text.
func TestE2E_SourceFilterStaysInKind(t *testing.T) {
	s := newStack(t)
	defer s.Close()
	ctx := context.Background()

	corpus := BuildCorpus(corpusSize)
	if _, err := s.indexer.Ingest(ctx, corpus.Chunks); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	resp, err := s.engine.Retrieve(ctx, &models.RetrievalRequest{
		Query:   "cardiac rehabilitation program",
		K:       retrieveDepth,
		Filters: models.Filters{Source: "codes"},
	})
	if err != nil {
		t.Fatalf("Retrieve(source=codes): %v", err)
	}
	if resp.Total == 0 {
		t.Fatal("source filter should still find codes chunks")
	}
	for _, r := range resp.Results {
		if r.SourceKind != "codes" {
			t.Errorf("source filter leaked %s chunk %s", r.SourceKind, r.ChunkID)
		}
	}
	if !containsAny(resp.IDs(), []string{"e2e-codes-025"}) {
		t.Errorf("expected the S9472 chunk under the codes filter, got %v", resp.IDs())
	}
}
