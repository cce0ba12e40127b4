// Package cli provides output formatting for the Shirabe command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/shirabe/internal/models"
)

// OutputFormat is the format for retrieval result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates an --output flag value. An empty string means text.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteRetrievalResults writes retrieval results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteRetrievalResults(w io.Writer, response *models.RetrievalResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeRetrievalText(w, response)
		return nil
	}
}

func writeRetrievalText(w io.Writer, response *models.RetrievalResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms\n", response.Total, response.QueryTimeMs)
	if len(response.Topics) > 0 {
		fmt.Fprintf(w, "Topics: %s\n", strings.Join(response.Topics, ", "))
	}
	if len(response.Variants) > 1 {
		fmt.Fprintf(w, "Query variants: %d\n", len(response.Variants))
	}
	fmt.Fprintln(w)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result *models.RetrievedChunk) {
	label := result.SourceKind
	if result.Metadata.IsSummary {
		label += " summary"
	}
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "[%s] Rank: %d | Score: %.4f\n", label, result.Rank, result.Score)
	fmt.Fprintf(w, "ID: %s\n", result.ChunkID)
	if result.Metadata.Title != "" {
		fmt.Fprintf(w, "Title: %s\n", result.Metadata.Title)
	}
	if loc := locationLine(&result.Metadata); loc != "" {
		fmt.Fprintf(w, "Location: %s\n", loc)
	}
	fmt.Fprintf(w, "\n%s\n", Truncate(result.Text, 300))
	fmt.Fprintln(w)
}

// locationLine joins the citation metadata a reader needs to find the passage
// in its source publication.
func locationLine(m *models.ChunkMetadata) string {
	var parts []string
	if m.Manual != "" {
		parts = append(parts, "Manual "+m.Manual)
	}
	if m.Chapter != "" {
		parts = append(parts, "Chapter "+m.Chapter)
	}
	if m.Jurisdiction != "" {
		parts = append(parts, "Jurisdiction "+m.Jurisdiction)
	}
	if m.State != "" {
		parts = append(parts, "State "+m.State)
	}
	if m.DocID != "" {
		parts = append(parts, "Doc "+m.DocID)
	}
	return strings.Join(parts, " | ")
}

// PrintRetrievalResults prints results to stdout in text format.
func PrintRetrievalResults(response *models.RetrievalResponse) {
	_ = WriteRetrievalResults(os.Stdout, response, OutputText)
}

// AnswerContext renders retrieved chunks as the numbered context block handed
// to a downstream answer generator. Each chunk becomes one "[i] (source) text"
// block, in rank order.
func AnswerContext(results []*models.RetrievedChunk) string {
	blocks := make([]string, len(results))
	for i, result := range results {
		blocks[i] = fmt.Sprintf("[%d] (%s) %s", i+1, result.SourceKind, result.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// WriteAnswerPrompt writes the full prompt for the downstream generator:
// the domain system prompt, the numbered context, and the question.
func WriteAnswerPrompt(w io.Writer, systemPrompt, question string, results []*models.RetrievedChunk) {
	fmt.Fprintf(w, "%s\n\n", systemPrompt)
	fmt.Fprintf(w, "Context:\n%s\n\n", AnswerContext(results))
	fmt.Fprintf(w, "Question: %s\n", question)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
