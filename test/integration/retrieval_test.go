// Package integration exercises the full pipeline end to end: real SQLite
// storage, bleve keyword index, in-memory vector index, and the packaged
// Medicare domain.
package integration

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/domain"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/eval"
	"github.com/hyperjump/shirabe/internal/expand"
	"github.com/hyperjump/shirabe/internal/indexer"
	"github.com/hyperjump/shirabe/internal/keyword"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/search"
	"github.com/hyperjump/shirabe/internal/storage"
	"github.com/hyperjump/shirabe/internal/topic"
	"github.com/hyperjump/shirabe/internal/vector"
)

const testDims = 64

// stack is one fully wired process: storage plus both derived indexes plus
// the engine and indexer on top of them.
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

func newStack(t *testing.T, dbPath string) *stack {
	t.Helper()
	dom, err := domain.NewMedicare()
	if err != nil {
		t.Fatalf("NewMedicare: %v", err)
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	embedder := embedding.NewHashingEmbedder(testDims)
	vec, err := vector.NewMemoryIndex(testDims)
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
		DefaultK:             8,
		SemanticWeight:       0.6,
		KeywordWeight:        0.4,
		RRFK:                 60,
		MinPerSource:         1,
		MaxVariants:          6,
		CandidatesPerVariant: 20,
		QueryTimeoutMs:       5000,
		VariantTimeoutMs:     2000,
		SearchWorkers:        4,
	}
	expander := expand.New(dom.Rules(), retrieval.MaxVariants)
	engine := search.NewEngine(store, embedder, vec, kw, expander, topics, retrieval)
	emb := &config.EmbeddingConfig{Model: "hashing-64", Dimensions: testDims, MaxTokens: 64}
	idx := indexer.NewIndexer(store, embedder, vec, kw, dom, topics, emb)
	return &stack{store: store, embedder: embedder, vec: vec, kw: kw, engine: engine, indexer: idx}
}

func corpusChunks() []*models.Chunk {
	return []*models.Chunk{
		{
			ID: "iom-cr-1", SourceKind: "iom",
			Text: "Cardiac rehabilitation programs are covered for beneficiaries who have had a myocardial infarction in the preceding twelve months. A physician must supervise each session.",
			Metadata: models.ChunkMetadata{DocID: "100-02-ch15", Manual: "100-02", Chapter: "15", Title: "Cardiac Rehabilitation Programs"},
		},
		{
			ID: "iom-cr-2", SourceKind: "iom",
			Text: "Cardiac rehabilitation sessions are limited to two one-hour sessions per day, up to a maximum of 36 sessions over 36 weeks.",
			Metadata: models.ChunkMetadata{DocID: "100-02-ch15", Manual: "100-02", Chapter: "15", Title: "Session Limits"},
		},
		{
			ID: "iom-amb-1", SourceKind: "iom",
			Text: "Ambulance transport is covered only when any other means of transportation would endanger the beneficiary's health.",
			Metadata: models.ChunkMetadata{DocID: "100-02-ch10", Manual: "100-02", Chapter: "10", Title: "Ambulance Services"},
		},
		{
			ID: "mcd-cr-1", SourceKind: "mcd",
			Text: "LCD L34696: cardiac rehabilitation coverage requires a qualifying cardiac event and documented exercise tolerance testing.",
			Metadata: models.ChunkMetadata{DocID: "L34696", Jurisdiction: "JH", State: "TX", Title: "Cardiac Rehabilitation LCD"},
		},
		{
			ID: "mcd-cr-2", SourceKind: "mcd",
			Text: "This local coverage determination describes documentation requirements for intensive cardiac rehabilitation program participation.",
			Metadata: models.ChunkMetadata{DocID: "L35000", Jurisdiction: "JL", State: "PA", Title: "Intensive Cardiac Rehab Documentation"},
		},
		{
			ID: "mcd-amb-1", SourceKind: "mcd",
			Text: "Ambulance services: prior authorization applies to repetitive scheduled non-emergent ambulance transports in this jurisdiction.",
			Metadata: models.ChunkMetadata{DocID: "L38004", Jurisdiction: "JH", State: "TX", Title: "Ambulance Prior Authorization"},
		},
		{
			ID: "codes-cr-1", SourceKind: "codes",
			Text: "HCPCS code S9472 describes a cardiac rehabilitation program, non-physician provider, per diem.",
			Metadata: models.ChunkMetadata{DocID: "hcpcs-s", Title: "S9472"},
		},
	}
}

func TestIntegration_IngestAndRetrieve(t *testing.T) {
	s := newStack(t, filepath.Join(t.TempDir(), "corpus.db"))
	defer s.Close()
	ctx := context.Background()

	stats, err := s.indexer.Ingest(ctx, corpusChunks())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if stats.Embedded != 7 || stats.Upserted != 7 || stats.Skipped != 0 {
		t.Errorf("first ingest stats = %+v, want 7 embedded, 7 upserted, 0 skipped", stats)
	}

	// Unchanged batch: the content hash diff must skip every chunk.
	stats, err = s.indexer.Ingest(ctx, corpusChunks())
	if err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	if stats.Embedded != 0 || stats.Upserted != 0 || stats.Skipped != 7 {
		t.Errorf("re-ingest stats = %+v, want 0 embedded, 0 upserted, 7 skipped", stats)
	}

	resp, err := s.engine.Retrieve(ctx, &models.RetrievalRequest{
		Query: "Is cardiac rehabilitation covered after a heart attack?",
		K:     8,
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if resp.Total == 0 {
		t.Fatal("expected results, got none")
	}
	bySource := map[string]int{}
	for i, r := range resp.Results {
		if r.Rank != i+1 {
			t.Errorf("rank at position %d = %d, want %d", i, r.Rank, i+1)
		}
		if r.Text == "" {
			t.Errorf("result %s has no hydrated text", r.ChunkID)
		}
		bySource[r.SourceKind]++
	}
	if bySource["iom"] == 0 || bySource["mcd"] == 0 {
		t.Errorf("expected both iom and mcd in results, got %v", bySource)
	}
	if len(resp.Topics) == 0 {
		t.Error("cardiac query should match a topic")
	}
}

func TestIntegration_FilteredRetrieve(t *testing.T) {
	s := newStack(t, filepath.Join(t.TempDir(), "corpus.db"))
	defer s.Close()
	ctx := context.Background()

	if _, err := s.indexer.Ingest(ctx, corpusChunks()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	resp, err := s.engine.Retrieve(ctx, &models.RetrievalRequest{
		Query:   "cardiac rehabilitation documentation",
		K:       8,
		Filters: models.Filters{Source: "mcd"},
	})
	if err != nil {
		t.Fatalf("Retrieve(source=mcd): %v", err)
	}
	if resp.Total == 0 {
		t.Fatal("source filter should still find mcd chunks")
	}
	for _, r := range resp.Results {
		if r.SourceKind != "mcd" {
			t.Errorf("source filter leaked %s chunk %s", r.SourceKind, r.ChunkID)
		}
	}

	resp, err = s.engine.Retrieve(ctx, &models.RetrievalRequest{
		Query:   "ambulance prior authorization",
		K:       8,
		Filters: models.Filters{State: "TX"},
	})
	if err != nil {
		t.Fatalf("Retrieve(state=TX): %v", err)
	}
	if resp.Total == 0 {
		t.Fatal("state filter should still find TX chunks")
	}
	for _, r := range resp.Results {
		if r.Metadata.State != "TX" {
			t.Errorf("state filter leaked chunk %s with state %q", r.ChunkID, r.Metadata.State)
		}
	}
}

func TestIntegration_RestartPreservesOrdering(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")
	ctx := context.Background()
	req := &models.RetrievalRequest{Query: "cardiac rehabilitation coverage criteria", K: 8}

	first := newStack(t, dbPath)
	if _, err := first.indexer.Ingest(ctx, corpusChunks()); err != nil {
		first.Close()
		t.Fatalf("Ingest: %v", err)
	}
	resp, err := first.engine.Retrieve(ctx, req)
	if err != nil {
		first.Close()
		t.Fatalf("Retrieve before restart: %v", err)
	}
	ids := resp.IDs()
	first.Close()

	// A fresh process starts with empty derived indexes and hydrates them
	// from the store.
	second := newStack(t, dbPath)
	defer second.Close()
	if second.engine.VectorIndexSize() != 0 {
		t.Fatalf("fresh vector index should start empty, has %d", second.engine.VectorIndexSize())
	}
	if err := second.indexer.RebuildIndexes(ctx); err != nil {
		t.Fatalf("RebuildIndexes: %v", err)
	}
	if second.engine.VectorIndexSize() == 0 {
		t.Fatal("rebuild should hydrate the vector index")
	}
	resp, err = second.engine.Retrieve(ctx, req)
	if err != nil {
		t.Fatalf("Retrieve after restart: %v", err)
	}
	if !reflect.DeepEqual(ids, resp.IDs()) {
		t.Errorf("ordering changed across restart:\n before %v\n after  %v", ids, resp.IDs())
	}
}

func TestIntegration_EvalAndGate(t *testing.T) {
	s := newStack(t, filepath.Join(t.TempDir(), "corpus.db"))
	defer s.Close()
	ctx := context.Background()

	if _, err := s.indexer.Ingest(ctx, corpusChunks()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	questions := []eval.Question{
		{
			ID:               "cr-coverage",
			Query:            "Is cardiac rehabilitation covered after a heart attack?",
			ExpectedKeywords: []string{"cardiac rehabilitation"},
			ExpectedSources:  []string{"iom", "mcd"},
			Category:         "coverage",
			Difficulty:       "easy",
			ConsistencyGroup: "cardiac-rehab",
		},
		{
			ID:               "cr-coverage-rephrase",
			Query:            "Does Medicare pay for cardiac rehab following myocardial infarction?",
			ExpectedKeywords: []string{"cardiac"},
			ExpectedSources:  []string{"iom", "mcd"},
			Category:         "coverage",
			Difficulty:       "medium",
			ConsistencyGroup: "cardiac-rehab",
		},
		{
			ID:               "ambulance-coverage",
			Query:            "When is ambulance transport covered?",
			ExpectedKeywords: []string{"ambulance"},
			ExpectedSources:  []string{"iom", "mcd"},
			Category:         "coverage",
			Difficulty:       "easy",
		},
	}

	runner := eval.NewRunner(s.engine, &config.EvalConfig{MinKeywordFraction: 0.5})
	report, err := runner.Run(ctx, questions, 8)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Overall.HitRate != 1.0 {
		t.Errorf("hit rate = %.3f, want 1.0; results %+v", report.Overall.HitRate, report.Results)
	}
	if report.Overall.MRR == 0 {
		t.Error("MRR should be positive")
	}
	if len(report.Consistency) != 1 || report.Consistency[0].Group != "cardiac-rehab" {
		t.Fatalf("unexpected consistency groups: %+v", report.Consistency)
	}
	if report.Consistency[0].MeanJaccard == 0 {
		t.Error("rephrasings of the same question should overlap")
	}

	// Round-trip the baseline through disk and gate the same run against it:
	// identical metrics must pass.
	baselinePath := filepath.Join(t.TempDir(), "baseline.json")
	if err := eval.SaveBaseline(baselinePath, report.Baseline()); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}
	loaded, err := eval.LoadBaseline(baselinePath)
	if err != nil {
		t.Fatalf("LoadBaseline: %v", err)
	}
	regressions, err := eval.Gate(loaded, report.Overall, report.K)
	if err != nil {
		t.Fatalf("Gate: %v", err)
	}
	if len(regressions) != 0 {
		t.Errorf("self-gate should pass, got regressions %+v", regressions)
	}
}
