package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Domain != "medicare" {
		t.Errorf("default domain = %q, want medicare", cfg.Domain)
	}
	if cfg.Retrieval.RRFK != 60 {
		t.Errorf("default rrf_k = %d, want 60", cfg.Retrieval.RRFK)
	}
	if cfg.Retrieval.SemanticWeight != 0.6 || cfg.Retrieval.KeywordWeight != 0.4 {
		t.Errorf("default weights = %v/%v, want 0.6/0.4",
			cfg.Retrieval.SemanticWeight, cfg.Retrieval.KeywordWeight)
	}
	if cfg.Retrieval.MinPerSource != 2 {
		t.Errorf("default min_per_source = %d, want 2", cfg.Retrieval.MinPerSource)
	}
	if cfg.Retrieval.MaxVariants != 6 {
		t.Errorf("default max_variants = %d, want 6", cfg.Retrieval.MaxVariants)
	}
	if cfg.Eval.MinKeywordFraction != 0.5 {
		t.Errorf("default min_keyword_fraction = %v, want 0.5", cfg.Eval.MinKeywordFraction)
	}
	if cfg.Vector.IndexType != "memory" {
		t.Errorf("default vector index_type = %q, want memory", cfg.Vector.IndexType)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Retrieval.RRFK = 10
	cfg.Retrieval.SemanticWeight = 0.7
	cfg.Eval.MinKeywordFraction = 0.25
	ApplyDefaults(cfg)

	if cfg.Retrieval.RRFK != 10 {
		t.Errorf("explicit rrf_k overwritten: %d", cfg.Retrieval.RRFK)
	}
	if cfg.Retrieval.SemanticWeight != 0.7 {
		t.Errorf("explicit semantic_weight overwritten: %v", cfg.Retrieval.SemanticWeight)
	}
	if cfg.Eval.MinKeywordFraction != 0.25 {
		t.Errorf("explicit min_keyword_fraction overwritten: %v", cfg.Eval.MinKeywordFraction)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `debug: true
domain: auto
storage:
  database_path: ./corpus.db
retrieval:
  rrf_k: 30
  min_per_source: 3
topics:
  definitions_path: ./topics.json
rules:
  tables_path: ./rules.json
chunking:
  mcd:
    size: 1500
    overlap: 300
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Domain != "auto" {
		t.Errorf("domain = %q, want auto", cfg.Domain)
	}
	if cfg.Retrieval.RRFK != 30 {
		t.Errorf("rrf_k = %d, want 30", cfg.Retrieval.RRFK)
	}
	if cfg.Retrieval.MinPerSource != 3 {
		t.Errorf("min_per_source = %d, want 3", cfg.Retrieval.MinPerSource)
	}
	// Defaults still fill the rest.
	if cfg.Retrieval.SemanticWeight != 0.6 {
		t.Errorf("semantic_weight = %v, want default 0.6", cfg.Retrieval.SemanticWeight)
	}
	// "./" paths resolve relative to the config directory.
	want := filepath.Join(dir, "corpus.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if want := filepath.Join(dir, "topics.json"); cfg.Topics.DefinitionsPath != want {
		t.Errorf("topics definitions_path = %q, want %q", cfg.Topics.DefinitionsPath, want)
	}
	if want := filepath.Join(dir, "rules.json"); cfg.Rules.TablesPath != want {
		t.Errorf("rules tables_path = %q, want %q", cfg.Rules.TablesPath, want)
	}
	if cs, ok := cfg.Chunking["mcd"]; !ok || cs.Size != 1500 || cs.Overlap != 300 {
		t.Errorf("chunking override = %+v, want size 1500 overlap 300", cs)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}
