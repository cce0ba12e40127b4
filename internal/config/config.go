// Package config provides configuration loading and structs for the Shirabe engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Domain    string          `yaml:"domain"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Eval      EvalConfig      `yaml:"eval"`
	Topics    TopicsConfig    `yaml:"topics"`
	Rules     RulesConfig     `yaml:"rules"`
	// Chunking overrides the domain's per-source chunk size/overlap settings.
	// Consumed by the external extraction stage; surfaced via the status API.
	Chunking map[string]ChunkSettings `yaml:"chunking"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the corpus database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds embedder settings. When ModelPath is empty the
// deterministic hashing embedder is used instead of ONNX.
type EmbeddingConfig struct {
	// Model identifies the embedding model. Changing it against an existing
	// index is detected at ingest/startup and surfaced as a dimension
	// mismatch error rather than silently mixing vector spaces.
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	VocabPath  string `yaml:"vocab_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// VectorConfig selects the vector index implementation.
type VectorConfig struct {
	// IndexType is "memory" or "faiss" (requires -tags=faiss).
	IndexType string `yaml:"index_type"`
}

// RetrievalConfig holds the fusion, diversification, and dispatch knobs.
type RetrievalConfig struct {
	DefaultK             int     `yaml:"default_k"`
	SemanticWeight       float64 `yaml:"semantic_weight"`
	KeywordWeight        float64 `yaml:"keyword_weight"`
	RRFK                 int     `yaml:"rrf_k"`
	MinPerSource         int     `yaml:"min_per_source"`
	MaxVariants          int     `yaml:"max_variants"`
	CandidatesPerVariant int     `yaml:"candidates_per_variant"`
	QueryTimeoutMs       int     `yaml:"query_timeout_ms"`
	VariantTimeoutMs     int     `yaml:"variant_timeout_ms"`
	SearchWorkers        int     `yaml:"search_workers"`
}

// EvalConfig holds evaluation harness settings.
type EvalConfig struct {
	// MinKeywordFraction is the fraction of a question's expected keywords
	// that must appear in a chunk's text (case-insensitive substring) for the
	// chunk to count as relevant.
	MinKeywordFraction float64 `yaml:"min_keyword_fraction"`
}

// TopicsConfig holds the optional topic definitions override.
type TopicsConfig struct {
	// DefinitionsPath points at a topic definitions JSON file that replaces
	// the active domain's packaged defaults.
	DefinitionsPath string `yaml:"definitions_path"`
}

// RulesConfig holds the optional query rule table override.
type RulesConfig struct {
	// TablesPath points at a rule table JSON file that replaces the active
	// domain's packaged defaults.
	TablesPath string `yaml:"tables_path"`
}

// ChunkSettings is a per-source-kind chunking override.
type ChunkSettings struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Embedding.VocabPath != "" {
		cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	}
	if cfg.Topics.DefinitionsPath != "" {
		cfg.Topics.DefinitionsPath = expandPath(cfg.Topics.DefinitionsPath, configDir)
	}
	if cfg.Rules.TablesPath != "" {
		cfg.Rules.TablesPath = expandPath(cfg.Rules.TablesPath, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
