package e2e

import (
	"strings"
	"testing"

	"github.com/hyperjump/shirabe/internal/models"
)

func TestBuildCorpus_Size(t *testing.T) {
	corpus := BuildCorpus(100)
	if len(corpus.Chunks) != 100 {
		t.Errorf("built %d chunks, want 100", len(corpus.Chunks))
	}

	seen := make(map[string]bool, len(corpus.Chunks))
	for _, c := range corpus.Chunks {
		if seen[c.ID] {
			t.Errorf("duplicate chunk id %s", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestBuildCorpus_ChunksAreValid(t *testing.T) {
	kinds := make(map[string]bool)
	for _, c := range BuildCorpus(100).Chunks {
		if err := c.Validate(); err != nil {
			t.Errorf("chunk %s invalid: %v", c.ID, err)
		}
		kinds[c.SourceKind] = true
	}
	for _, want := range []string{"iom", "mcd", "codes"} {
		if !kinds[want] {
			t.Errorf("corpus has no %s chunks", want)
		}
	}
}

func TestBuildCorpus_QueryCasesReferenceCorpus(t *testing.T) {
	corpus := BuildCorpus(100)
	if len(corpus.QueryCases) != len(queryPhrases) {
		t.Fatalf("built %d query cases, want one per phrase (%d)", len(corpus.QueryCases), len(queryPhrases))
	}

	byID := make(map[string]*models.Chunk, len(corpus.Chunks))
	for _, c := range corpus.Chunks {
		byID[c.ID] = c
	}
	for _, tc := range corpus.QueryCases {
		if tc.Query == "" || len(tc.ExpectedChunkIDs) == 0 {
			t.Errorf("malformed query case %+v", tc)
			continue
		}
		for _, id := range tc.ExpectedChunkIDs {
			c, ok := byID[id]
			if !ok {
				t.Errorf("case %q expects chunk %s which is not in the corpus", tc.Query, id)
				continue
			}
			if !containsPhrase(c, tc.Query) {
				t.Errorf("expected chunk %s does not contain query phrase %q", id, tc.Query)
			}
		}
	}
}

// Small corpora still have to yield cases for every phrase, otherwise the
// retrieval test would silently skip queries.
func TestBuildCorpus_SmallCorpusKeepsAllCases(t *testing.T) {
	corpus := BuildCorpus(len(passages))
	if len(corpus.QueryCases) != len(queryPhrases) {
		t.Errorf("single-cycle corpus yields %d cases, want %d", len(corpus.QueryCases), len(queryPhrases))
	}
}

func TestBuildCorpus_RevisionTitles(t *testing.T) {
	corpus := BuildCorpus(2 * len(passages))
	first, second := corpus.Chunks[0], corpus.Chunks[len(passages)]
	if first.Text != second.Text {
		t.Error("cycled chunk should repeat the passage text")
	}
	if first.Metadata.Title == second.Metadata.Title {
		t.Errorf("cycled chunk should get a revision title, both are %q", first.Metadata.Title)
	}
	if !strings.Contains(second.Metadata.Title, "revision") {
		t.Errorf("cycled title = %q, want a revision marker", second.Metadata.Title)
	}
}

func TestContainsPhrase(t *testing.T) {
	chunk := &models.Chunk{
		Text:     "Coverage of cardiac rehabilitation requires a qualifying event.",
		Metadata: models.ChunkMetadata{Title: "S9472"},
	}
	cases := []struct {
		phrase string
		want   bool
	}{
		{"cardiac rehabilitation", true},
		{"qualifying event", true},
		{"S9472", true},
		{"Cardiac Rehabilitation", false},
		{"hyperbaric oxygen", false},
	}
	for _, tc := range cases {
		if got := containsPhrase(chunk, tc.phrase); got != tc.want {
			t.Errorf("containsPhrase(%q) = %v, want %v", tc.phrase, got, tc.want)
		}
	}
}
