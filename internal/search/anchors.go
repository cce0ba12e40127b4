package search

import (
	"context"
	"fmt"

	"github.com/hyperjump/shirabe/internal/models"
)

// injectAnchors inserts summary chunks for the matched topics: each topic's
// summary document, plus the document summary of every source document
// visible in the top k results. Summaries already in the list stay where
// they are, so re-running injection is a no-op. New chunks fetched here are
// added to the chunks map for hydration.
func (e *Engine) injectAnchors(ctx context.Context, list []*FusedChunk, chunks map[string]*models.Chunk, matchedTopics []string, k int) ([]*FusedChunk, error) {
	if len(matchedTopics) == 0 || len(list) == 0 {
		return list, nil
	}

	present := make(map[string]bool, len(list))
	for _, fc := range list {
		present[fc.ID] = true
	}

	var anchorIDs []string
	for _, t := range matchedTopics {
		if id := models.TopicSummaryID(t); !present[id] {
			anchorIDs = append(anchorIDs, id)
		}
	}
	top := list
	if len(top) > k {
		top = top[:k]
	}
	seenDoc := make(map[string]bool)
	for _, fc := range top {
		chunk := chunks[fc.ID]
		if chunk == nil || chunk.Metadata.IsSummary {
			continue
		}
		docID := chunk.Metadata.DocID
		if docID == "" || seenDoc[docID] {
			continue
		}
		seenDoc[docID] = true
		if id := models.DocSummaryID(docID); !present[id] {
			anchorIDs = append(anchorIDs, id)
		}
	}
	if len(anchorIDs) == 0 {
		return list, nil
	}

	anchors, err := e.store.GetChunks(ctx, anchorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary anchors: %w", err)
	}

	for _, id := range anchorIDs {
		anchor, ok := anchors[id]
		if !ok {
			// Summary not generated yet; nothing to inject.
			continue
		}
		chunks[id] = anchor
		list = insertAnchor(list, anchor, e.cfg.MinPerSource, chunks)
	}
	return list, nil
}

// insertAnchor places the summary immediately after the min-per-source-th
// chunk of its own source kind, never at the head of the list. The anchor
// inherits its predecessor's score so the descending-score contract holds.
func insertAnchor(list []*FusedChunk, anchor *models.Chunk, minPerSource int, chunks map[string]*models.Chunk) []*FusedChunk {
	pos := anchorPosition(list, anchor.SourceKind, minPerSource, chunks)
	fc := &FusedChunk{
		ID:       anchor.ID,
		Score:    list[pos-1].Score,
		BestRank: list[pos-1].BestRank,
	}
	list = append(list, nil)
	copy(list[pos+1:], list[pos:])
	list[pos] = fc
	return list
}

func anchorPosition(list []*FusedChunk, source string, minPerSource int, chunks map[string]*models.Chunk) int {
	if minPerSource < 1 {
		minPerSource = 1
	}
	count := 0
	afterLast := 0
	for i, fc := range list {
		chunk := chunks[fc.ID]
		if chunk == nil || chunk.SourceKind != source {
			continue
		}
		count++
		afterLast = i + 1
		if count == minPerSource {
			return i + 1
		}
	}
	if count > 0 {
		return afterLast
	}
	pos := minPerSource
	if pos > len(list) {
		pos = len(list)
	}
	if pos < 1 {
		pos = 1
	}
	return pos
}
