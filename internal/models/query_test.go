package models

import (
	"testing"
)

func TestRetrievalRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *RetrievalRequest
		wantErr bool
		wantK   int
	}{
		{"empty query", &RetrievalRequest{Query: ""}, true, 0},
		{"valid query", &RetrievalRequest{Query: "cardiac rehab coverage", K: 5}, false, 5},
		{"sets default k", &RetrievalRequest{Query: "x", K: 0}, false, 8},
		{"caps k at 100", &RetrievalRequest{Query: "x", K: 500}, false, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.req.K != tt.wantK {
				t.Errorf("K = %d, want %d", tt.req.K, tt.wantK)
			}
		})
	}
}

func TestFilters_IsZero(t *testing.T) {
	if !(Filters{}).IsZero() {
		t.Error("empty Filters should be zero")
	}
	if (Filters{Source: "iom"}).IsZero() {
		t.Error("Filters with source set should not be zero")
	}
	if (Filters{State: "CA"}).IsZero() {
		t.Error("Filters with state set should not be zero")
	}
}

func TestHashText(t *testing.T) {
	a := HashText("some chunk text")
	b := HashText("some chunk text")
	c := HashText("some chunk text.")
	if a != b {
		t.Errorf("equal text should hash equal: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different text should hash different")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestChunk_Validate(t *testing.T) {
	tests := []struct {
		name    string
		chunk   *Chunk
		wantErr bool
	}{
		{"valid", &Chunk{ID: "c1", Text: "text", SourceKind: "iom"}, false},
		{"empty id ok", &Chunk{Text: "text", SourceKind: "iom"}, false},
		{"empty text", &Chunk{ID: "c1", SourceKind: "iom"}, true},
		{"empty source", &Chunk{ID: "c1", Text: "text"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.chunk.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
