// Package main is the Shirabe CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/shirabe/internal/cli"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/domain"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/eval"
	"github.com/hyperjump/shirabe/internal/expand"
	"github.com/hyperjump/shirabe/internal/indexer"
	"github.com/hyperjump/shirabe/internal/keyword"
	"github.com/hyperjump/shirabe/internal/metrics"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/rules"
	"github.com/hyperjump/shirabe/internal/search"
	"github.com/hyperjump/shirabe/internal/server"
	"github.com/hyperjump/shirabe/internal/storage"
	"github.com/hyperjump/shirabe/internal/topic"
	"github.com/hyperjump/shirabe/internal/vector"
	"github.com/hyperjump/shirabe/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shirabe/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "shirabe server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "query":
		runQuery()
	case "ingest":
		runIngest()
	case "rebuild":
		runRebuild()
	case "eval":
		runEval()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("shirabe version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (per-variant searches, ingest diffs, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("domain", cfg.Domain),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// The derived indexes live in memory; hydrate them from the store before
	// accepting queries.
	if err := components.Indexer.RebuildIndexes(context.Background()); err != nil {
		logger.Fatal("Failed to rebuild indexes", zap.Error(err))
	}
	logger.Info("indexes ready", zap.Int("vector_size", components.Engine.VectorIndexSize()))

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		components.Domain,
		cfg,
		components.Metrics,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printQueryUsage prints query subcommand usage and filtering hints.
func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: shirabe query [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "The question is all remaining arguments joined by spaces. Multi-word questions work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results come from every configured source; use filters to narrow them.
  • --source restricts to one source kind (e.g. iom, mcd).
  • --manual / --jurisdiction / --state match chunk metadata exactly.
  • --prompt prints the full generator prompt (system prompt + context + question) instead of the result list.

Examples:
  shirabe query cardiac rehab coverage criteria
  shirabe query "cardiac rehab coverage criteria"      # same as above
  shirabe query --source mcd --state TX ambulance prior authorization
  shirabe query -k 12 --output json hospice eligibility
`)
}

// buildQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// queryConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func queryConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// queryDepthDefaultFromConfig loads config at path and returns the default
// result depth for the -k flag. On load failure, returns 8.
func queryDepthDefaultFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil || cfg.Retrieval.DefaultK <= 0 {
		return 8
	}
	return cfg.Retrieval.DefaultK
}

// queryArgsReorder moves any flags (and their values) that appear after the question
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "shirabe query \"question\" -k 12"
// would otherwise leave -k unparsed.
func queryArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runQuery() {
	queryArgs := queryArgsReorder(os.Args[2:])
	configPath := queryConfigPathFromArgs(queryArgs, defaultConfigPath)
	defaultK := queryDepthDefaultFromConfig(configPath)

	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage when server is not running)")
	k := fs.Int("k", defaultK, "number of results")
	source := fs.String("source", "", "restrict to one source kind")
	manual := fs.String("manual", "", "restrict to one manual number")
	jurisdiction := fs.String("jurisdiction", "", "restrict to one contractor jurisdiction")
	state := fs.String("state", "", "restrict to one state code")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	promptOut := fs.Bool("prompt", false, "print the full generator prompt instead of the result list")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(queryArgs)

	if fs.NArg() < 1 {
		printQueryUsage(fs)
		os.Exit(1)
	}
	queryStr := buildQuery(fs.Args())
	if queryStr == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}

	req := &models.RetrievalRequest{
		Query: queryStr,
		K:     *k,
		Filters: models.Filters{
			Source:       *source,
			Manual:       *manual,
			Jurisdiction: *jurisdiction,
			State:        *state,
		},
	}

	if *serverURL != "" {
		// Use the HTTP API when a server is running (avoids a second SQLite open).
		response, err := queryViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		if *promptOut {
			systemPrompt, err := domainSystemPrompt(*configPathFlag)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to resolve domain prompt: %v\n", err)
				os.Exit(1)
			}
			cli.WriteAnswerPrompt(os.Stdout, systemPrompt, queryStr, response.Results)
			return
		}
		if err := cli.WriteRetrievalResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct storage access (when server is not running).
	cfg, _, err := loadConfig(*configPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Indexer.RebuildIndexes(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rebuild indexes: %v\n", err)
		os.Exit(1)
	}
	response, err := components.Engine.Retrieve(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if *promptOut {
		cli.WriteAnswerPrompt(os.Stdout, components.Domain.SystemPrompt(), queryStr, response.Results)
		return
	}
	if err := cli.WriteRetrievalResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func queryViaHTTP(serverURL string, req *models.RetrievalRequest) (*models.RetrievalResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.RetrievalResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// domainSystemPrompt resolves the configured domain's system prompt without
// opening storage.
func domainSystemPrompt(configPath string) (string, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return "", err
	}
	domains, err := domain.Builtin()
	if err != nil {
		return "", err
	}
	dom, err := domains.Get(cfg.Domain)
	if err != nil {
		return "", err
	}
	return dom.SystemPrompt(), nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	reset := fs.Bool("reset", false, "drop all stored chunks before ingesting")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: shirabe ingest [flags] <chunk-json-file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if *reset {
		if err := components.Storage.Reset(ctx); err != nil {
			fmt.Printf("Reset failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Storage reset.")
	}

	files, err := chunkFiles(path)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No chunk JSON files found in %s\n", path)
		os.Exit(1)
	}

	var total models.IngestStats
	for _, file := range files {
		chunks, err := loadChunkFile(file)
		if err != nil {
			fmt.Printf("Failed to load %s: %v\n", file, err)
			os.Exit(1)
		}
		stats, err := components.Indexer.Ingest(ctx, chunks)
		if err != nil {
			fmt.Printf("Ingest of %s failed: %v\n", file, err)
			os.Exit(1)
		}
		total.Add(stats)
		fmt.Printf("Ingested %s: %d embedded, %d upserted, %d skipped\n",
			filepath.Base(file), stats.Embedded, stats.Upserted, stats.Skipped)
	}
	fmt.Printf("Done: %d file(s), %d embedded, %d upserted, %d skipped\n",
		len(files), total.Embedded, total.Upserted, total.Skipped)
}

// chunkFiles resolves an ingest path to the list of chunk JSON files: the
// path itself when it is a file, or every .json entry when a directory.
func chunkFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	return files, nil
}

func loadChunkFile(path string) ([]*models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chunks []*models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("parse chunk JSON: %w", err)
	}
	return chunks, nil
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		resp, err := http.Post(*serverURL+"/api/v1/rebuild", "application/json", nil)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Rebuild failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Println("Indexes rebuilt.")
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Indexer.RebuildIndexes(context.Background()); err != nil {
		fmt.Printf("Rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Indexes rebuilt.")
}

func runEval() {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	evalFile := fs.String("eval-file", "", "path to the evaluation question set (required)")
	k := fs.Int("k", 0, "retrieval depth (default: retrieval.default_k from config)")
	outputFormat := fs.String("output", "text", "report format on stdout: text or json")
	reportPath := fs.String("report", "", "also write the JSON report to this path")
	baselinePath := fs.String("baseline", "", "gate this run against the stored baseline at this path")
	saveBaseline := fs.Bool("save-baseline", false, "record this run as the new baseline instead of gating against it")
	_ = fs.Parse(os.Args[2:])

	if *evalFile == "" {
		fmt.Println("Usage: shirabe eval --eval-file <questions.json> [flags]")
		os.Exit(1)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	questions, err := eval.LoadQuestions(*evalFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load questions: %v\n", err)
		os.Exit(1)
	}

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Indexer.RebuildIndexes(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to rebuild indexes: %v\n", err)
		os.Exit(1)
	}

	depth := *k
	if depth <= 0 {
		depth = cfg.Retrieval.DefaultK
	}
	runnerOpts := []eval.Option{}
	if cfg.Debug {
		runnerOpts = append(runnerOpts, eval.WithLogger(logger))
	}
	runner := eval.NewRunner(components.Engine, &cfg.Eval, runnerOpts...)
	report, err := runner.Run(ctx, questions, depth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		if err := report.WriteJSON(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		report.WriteHuman(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	if *reportPath != "" {
		f, err := os.Create(*reportPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
			os.Exit(1)
		}
		writeErr := report.WriteJSON(f)
		if closeErr := f.Close(); writeErr == nil {
			writeErr = closeErr
		}
		if writeErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", writeErr)
			os.Exit(1)
		}
		fmt.Printf("Report written: %s\n", *reportPath)
	}

	if *baselinePath == "" {
		return
	}
	if *saveBaseline {
		if err := eval.SaveBaseline(*baselinePath, report.Baseline()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save baseline: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Baseline saved: %s\n", *baselinePath)
		return
	}
	// Gating is fail-closed: a missing or malformed baseline is an error, not
	// a pass.
	base, err := eval.LoadBaseline(*baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load baseline: %v\n", err)
		os.Exit(1)
	}
	regressions, err := eval.Gate(base, report.Overall, report.K)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Regression gate failed: %v\n", err)
		os.Exit(1)
	}
	eval.WriteRegressions(os.Stdout, regressions)
	if len(regressions) > 0 {
		os.Exit(1)
	}
}

// statusEmbedding holds embedder info returned by status.
type statusEmbedding struct {
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Domain            string           `json:"domain"`
	DisplayName       string           `json:"display_name"`
	Chunks            int64            `json:"chunks"`
	ChunksBySource    map[string]int64 `json:"chunks_by_source"`
	VectorIndexSize   int              `json:"vector_index_size"`
	DatabaseSizeBytes *int64           `json:"database_size_bytes,omitempty"`
	Embedding         statusEmbedding  `json:"embedding"`
	States            []string         `json:"states,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		ctx := context.Background()
		if err := components.Indexer.RebuildIndexes(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rebuild indexes: %v\n", err)
			os.Exit(1)
		}
		chunkCount, err := components.Storage.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
			os.Exit(1)
		}
		bySource, err := components.Storage.CountBySource(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count by source failed: %v\n", err)
			os.Exit(1)
		}
		status = statusResponse{
			Domain:          components.Domain.Name(),
			DisplayName:     components.Domain.DisplayName(),
			Chunks:          chunkCount,
			ChunksBySource:  bySource,
			VectorIndexSize: components.Engine.VectorIndexSize(),
			Embedding: statusEmbedding{
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
			},
		}
		if dbBytes, err := storage.DatabaseSizeBytes(cfg.Storage.DatabasePath); err == nil {
			status.DatabaseSizeBytes = &dbBytes
		}
		for _, p := range components.Domain.States() {
			status.States = append(status.States, p.Code)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("domain:              %s (%s)\n", status.Domain, status.DisplayName)
		fmt.Printf("chunks:              %d   # stored chunks, summaries included\n", status.Chunks)
		fmt.Printf("vector_index_size:   %d   # embedded chunks searchable\n", status.VectorIndexSize)
		if status.DatabaseSizeBytes != nil {
			fmt.Printf("database_size_bytes: %d\n", *status.DatabaseSizeBytes)
		}
		fmt.Printf("embedding:           %s (%d dimensions)\n", status.Embedding.Model, status.Embedding.Dimensions)
		if len(status.States) > 0 {
			fmt.Printf("states:              %s\n", strings.Join(status.States, ", "))
		}
		if len(status.ChunksBySource) > 0 {
			fmt.Println()
			fmt.Println("# chunks by source")
			kinds := make([]string, 0, len(status.ChunksBySource))
			for kind := range status.ChunksBySource {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				fmt.Printf("%-20s %d\n", kind+":", status.ChunksBySource[kind])
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	VectorIndex  vector.Index
	KeywordIndex keyword.Index
	Domain       domain.Domain
	Topics       *topic.Matcher
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	Metrics      *metrics.Metrics
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	domains, err := domain.Builtin()
	if err != nil {
		return nil, fmt.Errorf("failed to load builtin domains: %w", err)
	}
	dom, err := domains.Get(cfg.Domain)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.New(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectorIndex, err := vector.New(cfg.Vector.IndexType, cfg.Embedding.Dimensions)
	if err != nil {
		// Fall back to memory index if configured type fails (e.g., FAISS not compiled in)
		if cfg.Vector.IndexType != string(vector.IndexTypeMemory) && cfg.Vector.IndexType != "" {
			if logger != nil {
				logger.Warn("failed to create vector index, falling back to memory",
					zap.String("requested_type", cfg.Vector.IndexType),
					zap.Error(err))
			}
			vectorIndex, err = vector.New(string(vector.IndexTypeMemory), cfg.Embedding.Dimensions)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize vector index: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}

	keywordIndex, err := keyword.NewBleveIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	defs := dom.TopicDefinitions()
	if cfg.Topics.DefinitionsPath != "" {
		defs, err = topic.LoadFile(cfg.Topics.DefinitionsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load topic definitions: %w", err)
		}
	}
	topics, err := topic.NewMatcher(defs)
	if err != nil {
		return nil, fmt.Errorf("failed to compile topic definitions: %w", err)
	}

	ruleSet := dom.Rules()
	if cfg.Rules.TablesPath != "" {
		ruleSet, err = rules.LoadFile(cfg.Rules.TablesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load rule tables: %w", err)
		}
	}

	expander := expand.New(ruleSet, cfg.Retrieval.MaxVariants)
	m := metrics.New()

	engineOpts := []search.Option{search.WithMetrics(m)}
	idxOpts := []indexer.Option{indexer.WithMetrics(m)}
	if debug && logger != nil {
		engineOpts = append(engineOpts, search.WithLogger(logger))
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	engine := search.NewEngine(store, embedder, vectorIndex, keywordIndex, expander, topics, &cfg.Retrieval, engineOpts...)
	idx := indexer.NewIndexer(store, embedder, vectorIndex, keywordIndex, dom, topics, &cfg.Embedding, idxOpts...)

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		KeywordIndex: keywordIndex,
		Domain:       dom,
		Topics:       topics,
		Engine:       engine,
		Indexer:      idx,
		Metrics:      m,
	}, nil
}

func printUsage() {
	fmt.Println(`shirabe - Hybrid retrieval engine for regulatory corpora

Usage:
  shirabe server [flags]             Start the HTTP server
  shirabe query [flags] <question>   Retrieve passages for a question
  shirabe ingest [flags] <path>      Ingest chunk JSON (file or directory of .json files)
  shirabe rebuild [flags]            Rebuild vector and keyword indexes from storage
  shirabe eval [flags]               Run the evaluation question set
  shirabe status [flags]             Show corpus and index status
  shirabe version                    Show version
  shirabe help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/shirabe/config.yaml)
  --debug            Enable debug logging (per-variant searches, ingest diffs, etc.)

Query Flags:
  --config string        Config file path (for direct storage mode; also used for the -k default)
  --server string        Server URL (default: http://localhost:8080). Use empty (--server "") to use direct storage when server is not running.
  -k int                 Number of results (default: retrieval.default_k from config)
  --source string        Restrict to one source kind (e.g. iom, mcd)
  --manual string        Restrict to one manual number
  --jurisdiction string  Restrict to one contractor jurisdiction
  --state string         Restrict to one state code
  --output string        Output format: text or json (default: text)
  --prompt               Print the full generator prompt instead of the result list

Ingest Flags:
  --config string    Config file path
  --reset            Drop all stored chunks before ingesting

Rebuild Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.

Eval Flags:
  --config string      Config file path
  --eval-file string   Path to the evaluation question set (required)
  -k int               Retrieval depth (default: retrieval.default_k from config)
  --output string      Report format on stdout: text or json (default: text)
  --report string      Also write the JSON report to this path
  --baseline string    Gate this run against the stored baseline at this path
  --save-baseline      Record this run as the new baseline instead of gating against it

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Examples:
  shirabe server
  shirabe query cardiac rehab coverage criteria
  shirabe query --source mcd --state TX "ambulance prior authorization"
  shirabe query --output json "hospice eligibility"
  shirabe ingest --reset chunks/
  shirabe rebuild
  shirabe eval --eval-file eval/questions.json --baseline eval/baseline.json
  shirabe eval --eval-file eval/questions.json --baseline eval/baseline.json --save-baseline
  shirabe status --output json`)
}
