// Package summary derives the synthetic anchor chunks from the indexed
// corpus: one summary per matched topic cluster and one per multi-chunk
// source document. A summary is a deterministic function of its member
// chunks, so rebuilding over an unchanged corpus reproduces identical text
// and content hashes and the incremental indexer writes nothing.
package summary

import (
	"sort"
	"strings"

	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/topic"
)

const (
	// snippetWords is how many leading words each member contributes.
	snippetWords = 40
	// maxMembers bounds how many members feed one summary.
	maxMembers = 8
	// minDocMembers is the membership threshold for document summaries. A
	// single-chunk document already is its own summary.
	minDocMembers = 2
)

// Builder derives topic and document summary chunks.
type Builder struct {
	topics *topic.Matcher
}

// NewBuilder creates a builder. The matcher applies the same membership rule
// to chunk text that retrieval applies to queries.
func NewBuilder(topics *topic.Matcher) *Builder {
	return &Builder{topics: topics}
}

// Build returns the complete summary set for the corpus: topic summaries in
// definition order, then document summaries in doc id order. Summary chunks
// in the input are ignored, so a corpus that already contains summaries is
// safe to feed back in.
func (b *Builder) Build(chunks []*models.Chunk) []*models.Chunk {
	members := make([]*models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Metadata.IsSummary {
			continue
		}
		members = append(members, c)
	}
	// Chunk id order makes snippet selection independent of store order.
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })

	out := b.topicSummaries(members)
	return append(out, docSummaries(members)...)
}

func (b *Builder) topicSummaries(members []*models.Chunk) []*models.Chunk {
	byTopic := make(map[string][]*models.Chunk)
	for _, c := range members {
		for _, name := range b.topics.Match(c.Text) {
			byTopic[name] = append(byTopic[name], c)
		}
	}

	var out []*models.Chunk
	for _, def := range b.topics.Definitions() {
		group := byTopic[def.Name]
		if len(group) == 0 {
			continue
		}
		text := def.SummaryPrefix + joinSnippets(group)
		out = append(out, &models.Chunk{
			ID:          models.TopicSummaryID(def.Name),
			Text:        text,
			SourceKind:  dominantSource(group),
			ContentHash: models.HashText(text),
			Metadata: models.ChunkMetadata{
				Title:         def.Label,
				TopicClusters: []string{def.Name},
				IsSummary:     true,
				SummaryKind:   models.SummaryKindTopic,
			},
		})
	}
	return out
}

func docSummaries(members []*models.Chunk) []*models.Chunk {
	byDoc := make(map[string][]*models.Chunk)
	for _, c := range members {
		if c.Metadata.DocID == "" {
			continue
		}
		byDoc[c.Metadata.DocID] = append(byDoc[c.Metadata.DocID], c)
	}
	docIDs := make([]string, 0, len(byDoc))
	for id, group := range byDoc {
		if len(group) >= minDocMembers {
			docIDs = append(docIDs, id)
		}
	}
	sort.Strings(docIDs)

	out := make([]*models.Chunk, 0, len(docIDs))
	for _, docID := range docIDs {
		group := byDoc[docID]
		text := "Summary of " + docID + ": " + joinSnippets(group)
		out = append(out, &models.Chunk{
			ID:          models.DocSummaryID(docID),
			Text:        text,
			SourceKind:  dominantSource(group),
			ContentHash: models.HashText(text),
			Metadata: models.ChunkMetadata{
				DocID:        docID,
				Manual:       uniformValue(group, func(m models.ChunkMetadata) string { return m.Manual }),
				Jurisdiction: uniformValue(group, func(m models.ChunkMetadata) string { return m.Jurisdiction }),
				State:        uniformValue(group, func(m models.ChunkMetadata) string { return m.State }),
				IsSummary:    true,
				SummaryKind:  models.SummaryKindDocument,
			},
		})
	}
	return out
}

func joinSnippets(group []*models.Chunk) string {
	n := len(group)
	if n > maxMembers {
		n = maxMembers
	}
	snippets := make([]string, 0, n)
	for _, c := range group[:n] {
		words := embedding.TruncateWords(embedding.SplitWords(c.Text), snippetWords)
		snippets = append(snippets, embedding.JoinWords(words))
	}
	return strings.Join(snippets, " ")
}

// dominantSource is the most common member source kind, smallest name on ties.
func dominantSource(group []*models.Chunk) string {
	counts := make(map[string]int)
	for _, c := range group {
		counts[c.SourceKind]++
	}
	best, bestN := "", 0
	for kind, n := range counts {
		if n > bestN || (n == bestN && kind < best) {
			best, bestN = kind, n
		}
	}
	return best
}

// uniformValue keeps a filterable field only when every member that sets it
// agrees on one value. Summaries then surface under the same filters as
// their members.
func uniformValue(group []*models.Chunk, field func(models.ChunkMetadata) string) string {
	value := ""
	for _, c := range group {
		v := field(c.Metadata)
		if v == "" {
			continue
		}
		if value == "" {
			value = v
			continue
		}
		if v != value {
			return ""
		}
	}
	return value
}
