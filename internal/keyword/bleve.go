package keyword

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/shirabe/internal/models"
)

const rebuildBatchSize = 500

// indexDoc is the shape of a chunk inside the bleve index. Text and title
// get the standard analyzer; the filter fields use the keyword analyzer so
// values like "100-02" or "TX" match exactly instead of being tokenized.
type indexDoc struct {
	Text         string `json:"text"`
	Title        string `json:"title"`
	SourceKind   string `json:"source_kind"`
	Manual       string `json:"manual"`
	Jurisdiction string `json:"jurisdiction"`
	State        string `json:"state"`
}

// BleveIndex is an in-memory keyword index backed by bleve's BM25 scoring.
type BleveIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

var _ Index = (*BleveIndex)(nil)

// NewBleveIndex creates an empty in-memory index. Searches return
// ErrEmptyIndex until the first Rebuild.
func NewBleveIndex() (*BleveIndex, error) {
	idx, err := newMemIndex()
	if err != nil {
		return nil, err
	}
	return &BleveIndex{index: idx}, nil
}

func newMemIndex() (bleve.Index, error) {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name

	filterField := bleve.NewTextFieldMapping()
	filterField.Analyzer = keywordanalyzer.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", textField)
	doc.AddFieldMappingsAt("title", textField)
	doc.AddFieldMappingsAt("source_kind", filterField)
	doc.AddFieldMappingsAt("manual", filterField)
	doc.AddFieldMappingsAt("jurisdiction", filterField)
	doc.AddFieldMappingsAt("state", filterField)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc

	idx, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return idx, nil
}

// Rebuild indexes the chunks into a fresh in-memory index and swaps it in.
// The old index keeps serving searches until the swap.
func (b *BleveIndex) Rebuild(ctx context.Context, chunks []*models.Chunk) error {
	fresh, err := newMemIndex()
	if err != nil {
		return err
	}

	batch := fresh.NewBatch()
	for i, chunk := range chunks {
		if i%rebuildBatchSize == 0 {
			if err := ctx.Err(); err != nil {
				_ = fresh.Close()
				return err
			}
		}
		doc := indexDoc{
			Text:         chunk.Text,
			Title:        chunk.Metadata.Title,
			SourceKind:   chunk.SourceKind,
			Manual:       chunk.Metadata.Manual,
			Jurisdiction: chunk.Metadata.Jurisdiction,
			State:        chunk.Metadata.State,
		}
		if err := batch.Index(chunk.ID, doc); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
		}
		if batch.Size() >= rebuildBatchSize {
			if err := fresh.Batch(batch); err != nil {
				_ = fresh.Close()
				return fmt.Errorf("failed to apply index batch: %w", err)
			}
			batch = fresh.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := fresh.Batch(batch); err != nil {
			_ = fresh.Close()
			return fmt.Errorf("failed to apply index batch: %w", err)
		}
	}

	b.mu.Lock()
	old := b.index
	b.index = fresh
	b.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Search matches query against chunk text and title. Non-empty filter
// fields become exact-term conjuncts, so every hit satisfies all of them.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, filters models.Filters) ([]*Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.index == nil {
		return nil, ErrEmptyIndex
	}
	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to read index size: %w", err)
	}
	if count == 0 {
		return nil, ErrEmptyIndex
	}
	if limit <= 0 {
		return nil, nil
	}

	textQuery := bleve.NewMatchQuery(query)
	textQuery.SetField("text")
	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")

	var q blevequery.Query = bleve.NewDisjunctionQuery(textQuery, titleQuery)
	if clauses := filterClauses(filters); len(clauses) > 0 {
		q = bleve.NewConjunctionQuery(append([]blevequery.Query{q}, clauses...)...)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	results := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, &Result{ID: hit.ID, Score: hit.Score})
	}
	// Equal scores are ordered by chunk ID so repeated searches agree.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func filterClauses(f models.Filters) []blevequery.Query {
	var clauses []blevequery.Query
	add := func(field, value string) {
		if value == "" {
			return
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		clauses = append(clauses, tq)
	}
	add("source_kind", f.Source)
	add("manual", f.Manual)
	add("jurisdiction", f.Jurisdiction)
	add("state", f.State)
	return clauses
}

// DocCount reports the number of chunks in the active index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, nil
	}
	return b.index.DocCount()
}

// Close releases the active index. The index is unusable afterwards.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
