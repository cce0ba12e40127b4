// Package models defines core data structures for chunks, retrieval requests, and results.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SummaryKindTopic and SummaryKindDocument label the two kinds of synthetic
// summary chunks the summary builder produces.
const (
	SummaryKindTopic    = "topic"
	SummaryKindDocument = "document"
)

// ChunkMetadata carries the filterable attributes of a chunk. All fields are
// optional; empty strings mean "not set".
type ChunkMetadata struct {
	DocID         string   `json:"doc_id,omitempty"`
	Manual        string   `json:"manual,omitempty"`
	Chapter       string   `json:"chapter,omitempty"`
	Jurisdiction  string   `json:"jurisdiction,omitempty"`
	State         string   `json:"state,omitempty"`
	Title         string   `json:"title,omitempty"`
	TopicClusters []string `json:"topic_clusters,omitempty"`
	IsSummary     bool     `json:"is_summary,omitempty"`
	SummaryKind   string   `json:"summary_kind,omitempty"`
}

// Chunk is one indexed passage of a source document. Chunks are immutable once
// indexed; a change of text produces a new content hash and a full replace.
type Chunk struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	SourceKind  string        `json:"source_kind"`
	ContentHash string        `json:"content_hash,omitempty"`
	Metadata    ChunkMetadata `json:"metadata"`
}

// Validate checks the fields that ingest cannot repair itself. The id may be
// empty (one is assigned during ingest); text and source kind may not.
func (c *Chunk) Validate() error {
	if c.Text == "" {
		return fmt.Errorf("chunk %q has empty text", c.ID)
	}
	if c.SourceKind == "" {
		return fmt.Errorf("chunk %q has empty source_kind", c.ID)
	}
	return nil
}

// HashText returns the content hash for chunk text: hex-encoded SHA-256.
// Equal text always hashes equal, which is what the incremental indexer keys on.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// TopicSummaryID is the chunk id of a topic's summary document. The scheme is
// deterministic so the anchor injector can address summaries without lookups.
func TopicSummaryID(topic string) string {
	return "topic-summary:" + topic
}

// DocSummaryID is the chunk id of a source document's summary.
func DocSummaryID(docID string) string {
	return "doc-summary:" + docID
}

// IsSummaryID reports whether a chunk id belongs to the summary id scheme.
// The indexer uses this to retire summaries whose topic or document is gone.
func IsSummaryID(id string) bool {
	return strings.HasPrefix(id, "topic-summary:") || strings.HasPrefix(id, "doc-summary:")
}

// IngestStats reports what one ingest batch actually did.
type IngestStats struct {
	Embedded int `json:"embedded"`
	Upserted int `json:"upserted"`
	Skipped  int `json:"skipped"`
}

// Add accumulates another batch's stats.
func (s *IngestStats) Add(other IngestStats) {
	s.Embedded += other.Embedded
	s.Upserted += other.Upserted
	s.Skipped += other.Skipped
}
