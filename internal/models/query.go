package models

import "fmt"

// Filters narrows retrieval to chunks matching every non-empty field.
type Filters struct {
	Source       string `json:"source,omitempty"`
	Manual       string `json:"manual,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	State        string `json:"state,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f Filters) IsZero() bool {
	return f.Source == "" && f.Manual == "" && f.Jurisdiction == "" && f.State == ""
}

// RetrievalRequest is a retrieval call: free-text query, result depth, and
// optional metadata filters.
type RetrievalRequest struct {
	Query   string  `json:"query"`
	K       int     `json:"k,omitempty"`
	Filters Filters `json:"filters,omitempty"`
}

// Validate ensures the request has valid fields and sets defaults.
// Returns an error if the query is empty; otherwise normalizes k.
func (r *RetrievalRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if r.K <= 0 {
		r.K = 8
	}
	if r.K > 100 {
		r.K = 100
	}
	return nil
}

// QueryVariant is one expansion of a raw query. Variants exist only for the
// duration of a single retrieval call.
type QueryVariant struct {
	Text string `json:"text"`
	// TargetSource restricts this variant's searches to one source kind.
	// Empty means no restriction.
	TargetSource string  `json:"target_source,omitempty"`
	Weight       float64 `json:"weight"`
	// Kind labels how the variant was produced. Used for logging only.
	Kind string `json:"kind,omitempty"`
}

// Variant kind labels.
const (
	VariantOriginal = "original"
	VariantSource   = "source"
	VariantExpanded = "expanded"
	VariantTopic    = "topic"
	VariantConcept  = "concept"
)
