package models

// RetrievedChunk is a single ranked retrieval hit with its hydrated text and
// metadata. Rank is 1-indexed within the response.
type RetrievedChunk struct {
	ChunkID    string        `json:"chunk_id"`
	Text       string        `json:"text"`
	SourceKind string        `json:"source_kind"`
	Metadata   ChunkMetadata `json:"metadata"`
	Score      float64       `json:"score"`
	Rank       int           `json:"rank"`
}

// RetrievalResponse is the ordered result of one retrieval call.
// Results ordering is the contract: the engine's fusion, diversification, and
// anchor injection stages fully determine it, and identical inputs always
// produce identical output.
type RetrievalResponse struct {
	Query   string            `json:"query"`
	Results []*RetrievedChunk `json:"results"`
	Total   int               `json:"total"`
	// Topics holds the topic identifiers the query matched, if any.
	Topics []string `json:"topics,omitempty"`
	// Variants holds the expanded query variant texts, for diagnostics.
	Variants    []string `json:"variants,omitempty"`
	QueryTimeMs int64    `json:"query_time_ms"`
}

// IDs returns the chunk ids of the results in rank order.
func (r *RetrievalResponse) IDs() []string {
	ids := make([]string, len(r.Results))
	for i, res := range r.Results {
		ids[i] = res.ChunkID
	}
	return ids
}
