// Package eval implements the retrieval evaluation harness: question-set
// validation, per-question relevance scoring, aggregate and consistency
// metrics, and the baseline regression gate.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
)

// Question is one evaluation case. A retrieved chunk counts as relevant to
// it when the chunk's source kind is expected and its text contains enough
// of the expected keywords.
type Question struct {
	ID               string   `json:"id"`
	Query            string   `json:"query"`
	ExpectedKeywords []string `json:"expected_keywords"`
	ExpectedSources  []string `json:"expected_sources"`
	Category         string   `json:"category"`
	Difficulty       string   `json:"difficulty"`
	Description      string   `json:"description,omitempty"`
	ConsistencyGroup string   `json:"consistency_group,omitempty"`
	// RelevantCount is the known total of relevant chunks in the corpus.
	// Zero means unknown; such questions are excluded from recall.
	RelevantCount int `json:"relevant_count,omitempty"`
}

// ValidationError reports a malformed evaluation input together with the
// offending record, per the fail-with-specifics error contract.
type ValidationError struct {
	Record string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("invalid eval input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid eval record %q: %s", e.Record, e.Reason)
}

// LoadQuestions reads and validates an eval question file.
func LoadQuestions(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}
	questions, err := ParseQuestions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return questions, nil
}

// ParseQuestions parses a JSON question array and applies the hard
// validation rules: unique non-empty ids, all required fields present,
// at least five distinct categories and two difficulties across the set,
// and consistency groups of at least two members.
func ParseQuestions(data []byte) ([]Question, error) {
	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	if len(questions) == 0 {
		return nil, &ValidationError{Reason: "question set is empty"}
	}

	seen := make(map[string]bool, len(questions))
	categories := make(map[string]bool)
	difficulties := make(map[string]bool)
	groups := make(map[string]int)

	for i, q := range questions {
		record := q.ID
		if record == "" {
			record = fmt.Sprintf("index %d", i)
		}
		switch {
		case q.ID == "":
			return nil, &ValidationError{Record: record, Reason: "missing id"}
		case seen[q.ID]:
			return nil, &ValidationError{Record: record, Reason: "duplicate id"}
		case q.Query == "":
			return nil, &ValidationError{Record: record, Reason: "missing query"}
		case len(q.ExpectedKeywords) == 0:
			return nil, &ValidationError{Record: record, Reason: "missing expected_keywords"}
		case len(q.ExpectedSources) == 0:
			return nil, &ValidationError{Record: record, Reason: "missing expected_sources"}
		case q.Category == "":
			return nil, &ValidationError{Record: record, Reason: "missing category"}
		case q.Difficulty == "":
			return nil, &ValidationError{Record: record, Reason: "missing difficulty"}
		case q.RelevantCount < 0:
			return nil, &ValidationError{Record: record, Reason: fmt.Sprintf("negative relevant_count %d", q.RelevantCount)}
		}
		for _, kw := range q.ExpectedKeywords {
			if kw == "" {
				return nil, &ValidationError{Record: record, Reason: "empty expected keyword"}
			}
		}
		seen[q.ID] = true
		categories[q.Category] = true
		difficulties[q.Difficulty] = true
		if q.ConsistencyGroup != "" {
			groups[q.ConsistencyGroup]++
		}
	}

	if len(categories) < 5 {
		return nil, &ValidationError{Reason: fmt.Sprintf("only %d distinct category value(s); the set must cover at least 5", len(categories))}
	}
	if len(difficulties) < 2 {
		return nil, &ValidationError{Reason: fmt.Sprintf("only %d distinct difficulty value(s); the set must cover at least 2", len(difficulties))}
	}
	for group, n := range groups {
		if n < 2 {
			return nil, &ValidationError{Record: group, Reason: fmt.Sprintf("consistency group has %d member, need at least 2", n)}
		}
	}
	return questions, nil
}
