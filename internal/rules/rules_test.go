package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testTable = `{
	"source_order": ["iom", "mcd"],
	"sources": {
		"iom": {
			"patterns": ["\\bmanual\\b", "\\bchapter\\b", "\\bbenefit\\b"],
			"expansion": "policy guidelines manual chapter"
		},
		"mcd": {
			"patterns": ["\\blcd\\b", "coverage (criteria|determination)"],
			"expansion": "coverage determination criteria"
		}
	},
	"synonyms": [
		{"pattern": "\\bdme\\b", "expansion": "durable medical equipment"}
	],
	"specialized_source": "mcd",
	"specialized_query_patterns": ["\\blcd\\b", "\\bcovered\\b"],
	"specialized_topic_patterns": [
		{"pattern": "cardiac\\s*rehab", "expansion": "cardiac rehabilitation program coverage criteria"}
	],
	"strip_noise_patterns": ["\\b(what|when|is|the)\\b"],
	"strip_filler_patterns": ["\\?+"],
	"default_relevance": {"iom": 0.6, "mcd": 0.4}
}`

func TestParse(t *testing.T) {
	rs, err := Parse([]byte(testTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rs.SourceOrder) != 2 || rs.SourceOrder[0] != "iom" {
		t.Errorf("SourceOrder = %v", rs.SourceOrder)
	}
	if rs.SpecializedSource != "mcd" {
		t.Errorf("SpecializedSource = %q", rs.SpecializedSource)
	}
	if rs.DefaultRelevance["iom"] != 0.6 {
		t.Errorf("DefaultRelevance[iom] = %v", rs.DefaultRelevance["iom"])
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"no sources", `{"sources": {}}`, "no sources"},
		{"bad regex", `{"sources": {"a": {"patterns": ["[unclosed"], "expansion": "x"}}}`, "invalid source"},
		{"unknown specialized source", `{"sources": {"a": {"patterns": [], "expansion": "x"}}, "specialized_source": "b"}`, "not a defined source"},
		{"unknown relevance source", `{"sources": {"a": {"patterns": [], "expansion": "x"}}, "default_relevance": {"b": 0.5}}`, "unknown source"},
		{"relevance out of range", `{"sources": {"a": {"patterns": [], "expansion": "x"}}, "default_relevance": {"a": 1.5}}`, "must be in [0,1]"},
		{"order mismatch", `{"sources": {"a": {"patterns": [], "expansion": "x"}}, "source_order": ["a", "b"]}`, "source_order"},
		{"empty expansion", `{"sources": {"a": {"patterns": [], "expansion": "x"}}, "synonyms": [{"pattern": "y", "expansion": ""}]}`, "empty expansion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(testTable), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(rs.Sources) != 2 {
		t.Errorf("sources = %d, want 2", len(rs.Sources))
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"sources": {}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err = LoadFile(bad)
	if err == nil {
		t.Fatal("expected error for invalid table")
	}
	// The path names the offending file.
	if !strings.Contains(err.Error(), bad) {
		t.Errorf("error %q does not name %s", err.Error(), bad)
	}
}

func TestSourceMatchCounts(t *testing.T) {
	rs, err := Parse([]byte(testTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	counts := rs.SourceMatchCounts("which manual chapter covers this benefit")
	if counts["iom"] != 3 {
		t.Errorf("iom matches = %d, want 3", counts["iom"])
	}
	if counts["mcd"] != 0 {
		t.Errorf("mcd matches = %d, want 0", counts["mcd"])
	}
	// Case-insensitive.
	counts = rs.SourceMatchCounts("LCD coverage criteria")
	if counts["mcd"] != 2 {
		t.Errorf("mcd matches = %d, want 2", counts["mcd"])
	}
}

func TestIsSpecialized(t *testing.T) {
	rs, err := Parse([]byte(testTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !rs.IsSpecialized("is cardiac rehab covered") {
		t.Error("expected specialized match for 'covered'")
	}
	if rs.IsSpecialized("general wellness advice") {
		t.Error("unexpected specialized match")
	}
}

func TestTopicExpansion(t *testing.T) {
	rs, err := Parse([]byte(testTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := rs.TopicExpansion("is cardiac rehab covered?")
	want := "cardiac rehabilitation program coverage criteria"
	if got != want {
		t.Errorf("TopicExpansion = %q, want %q", got, want)
	}
	if rs.TopicExpansion("knee replacement") != "" {
		t.Error("expected no expansion for unmatched query")
	}
}

func TestStripConcept(t *testing.T) {
	rs, err := Parse([]byte(testTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := rs.StripConcept("what is the cardiac rehab?")
	if got != "cardiac rehab" {
		t.Errorf("StripConcept = %q, want %q", got, "cardiac rehab")
	}
}
