package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestQueryArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"cardiac rehab coverage", "-k", "12"},
			expected: []string{"-k", "12", "cardiac rehab coverage"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "12", "cardiac rehab coverage"},
			expected: []string{"-k", "12", "cardiac rehab coverage"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"cardiac rehab coverage"},
			expected: []string{"cardiac rehab coverage"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-source", "mcd"},
			expected: []string{"-source", "mcd", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queryArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("queryArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"hospice"}, "hospice"},
		{"multiple words", []string{"cardiac", "rehab"}, "cardiac rehab"},
		{"single quoted phrase", []string{"cardiac rehab"}, "cardiac rehab"},
		{"three words", []string{"ambulance", "prior", "authorization"}, "ambulance prior authorization"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
		{"one space", []string{" "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestQueryConfigPathFromArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		defaultPath string
		want        string
	}{
		{"no config flag", []string{"-k", "5", "query"}, "/default.yaml", "/default.yaml"},
		{"-config present", []string{"-config", "/custom.yaml", "query"}, "/default.yaml", "/custom.yaml"},
		{"--config present", []string{"--config", "/other.yaml"}, "/default.yaml", "/other.yaml"},
		{"config at end", []string{"query", "-config", "/end.yaml"}, "/default.yaml", "/end.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queryConfigPathFromArgs(tt.args, tt.defaultPath)
			if got != tt.want {
				t.Errorf("queryConfigPathFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueryDepthDefaultFromConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
retrieval:
  default_k: 12
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if got := queryDepthDefaultFromConfig(configPath); got != 12 {
		t.Errorf("queryDepthDefaultFromConfig() = %d, want 12", got)
	}
	// Missing file returns 8
	if got := queryDepthDefaultFromConfig(filepath.Join(dir, "nonexistent.yaml")); got != 8 {
		t.Errorf("queryDepthDefaultFromConfig(nonexistent) = %d, want 8", got)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestChunkFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	files, err := chunkFiles(dir)
	if err != nil {
		t.Fatalf("chunkFiles(dir): %v", err)
	}
	want := []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("chunkFiles(dir) = %v, want %v", files, want)
	}

	single := filepath.Join(dir, "a.json")
	files, err = chunkFiles(single)
	if err != nil {
		t.Fatalf("chunkFiles(file): %v", err)
	}
	if !reflect.DeepEqual(files, []string{single}) {
		t.Errorf("chunkFiles(file) = %v, want [%s]", files, single)
	}

	if _, err := chunkFiles(filepath.Join(dir, "missing")); err == nil {
		t.Error("chunkFiles(missing) should fail")
	}
}

func TestLoadChunkFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.json")
	content := `[
  {"id": "iom-1", "text": "Cardiac rehabilitation is covered.", "source_kind": "iom",
   "metadata": {"manual": "100-02", "chapter": "15"}},
  {"id": "mcd-1", "text": "LCD coverage criteria.", "source_kind": "mcd"}
]`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	chunks, err := loadChunkFile(path)
	if err != nil {
		t.Fatalf("loadChunkFile: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != "iom-1" || chunks[0].Metadata.Manual != "100-02" {
		t.Errorf("unexpected first chunk: %+v", chunks[0])
	}
	if chunks[1].SourceKind != "mcd" {
		t.Errorf("unexpected second chunk: %+v", chunks[1])
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadChunkFile(bad); err == nil {
		t.Error("loadChunkFile(bad) should fail")
	}
}
