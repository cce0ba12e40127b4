package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Report is the full output of one eval run.
type Report struct {
	K               int                  `json:"k"`
	GeneratedAt     time.Time            `json:"generated_at"`
	Overall         Aggregate            `json:"overall"`
	ByCategory      map[string]Aggregate `json:"by_category"`
	ByDifficulty    map[string]Aggregate `json:"by_difficulty"`
	BySource        map[string]Aggregate `json:"by_source"`
	Consistency     []GroupConsistency   `json:"consistency,omitempty"`
	MeanConsistency float64              `json:"mean_consistency"`
	Results         []QuestionResult     `json:"results"`
}

// Baseline snapshots the run's gated metrics for saving as a new baseline.
func (r *Report) Baseline() *Baseline {
	return &Baseline{
		K:            r.K,
		HitRate:      r.Overall.HitRate,
		MRR:          r.Overall.MRR,
		AvgPrecision: r.Overall.AvgPrecision,
		AvgRecall:    r.Overall.AvgRecall,
	}
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteHuman writes a readable report summary.
func (r *Report) WriteHuman(w io.Writer) {
	fmt.Fprintf(w, "\nEvaluation report: %d questions at k=%d\n", r.Overall.Questions, r.K)
	fmt.Fprintf(w, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintln(w, "Overall:")
	writeAggregate(w, r.Overall)

	writeGrouped(w, "By category", r.ByCategory)
	writeGrouped(w, "By difficulty", r.ByDifficulty)
	writeGrouped(w, "By expected source", r.BySource)

	if len(r.Consistency) > 0 {
		fmt.Fprintf(w, "Consistency (mean %.3f):\n", r.MeanConsistency)
		for _, g := range r.Consistency {
			fmt.Fprintf(w, "  %-24s jaccard %.3f  (%d questions)\n", g.Group, g.MeanJaccard, len(g.Questions))
		}
		fmt.Fprintln(w)
	}

	misses := 0
	for _, qr := range r.Results {
		if !qr.Hit {
			misses++
		}
	}
	if misses > 0 {
		fmt.Fprintf(w, "Missed questions (%d):\n", misses)
		for _, qr := range r.Results {
			if !qr.Hit {
				fmt.Fprintf(w, "  %s: %s\n", qr.ID, truncateQuery(qr.Query, 80))
			}
		}
		fmt.Fprintln(w)
	}
}

func truncateQuery(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func writeAggregate(w io.Writer, agg Aggregate) {
	fmt.Fprintf(w, "  hit_rate       %.3f\n", agg.HitRate)
	fmt.Fprintf(w, "  mrr            %.3f\n", agg.MRR)
	fmt.Fprintf(w, "  avg_precision  %.3f\n", agg.AvgPrecision)
	if agg.RecallBasis > 0 {
		fmt.Fprintf(w, "  avg_recall     %.3f  (over %d of %d questions)\n", agg.AvgRecall, agg.RecallBasis, agg.Questions)
	} else {
		fmt.Fprintf(w, "  avg_recall     n/a\n")
	}
	fmt.Fprintf(w, "  avg_ndcg       %.3f\n\n", agg.AvgNDCG)
}

func writeGrouped(w io.Writer, title string, groups map[string]Aggregate) {
	if len(groups) == 0 {
		return
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "%s:\n", title)
	for _, name := range names {
		agg := groups[name]
		fmt.Fprintf(w, "  %-16s hit %.3f  mrr %.3f  p@k %.3f  ndcg %.3f  (%d questions)\n",
			name, agg.HitRate, agg.MRR, agg.AvgPrecision, agg.AvgNDCG, agg.Questions)
	}
	fmt.Fprintln(w)
}

// WriteRegressions writes the gate verdict with per-metric deltas.
func WriteRegressions(w io.Writer, regressions []Regression) {
	if len(regressions) == 0 {
		fmt.Fprintln(w, "Regression gate: PASS")
		return
	}
	fmt.Fprintf(w, "Regression gate: FAIL (%d metrics below baseline)\n", len(regressions))
	for _, reg := range regressions {
		fmt.Fprintf(w, "  %-14s baseline %.4f  current %.4f  delta %+.4f\n",
			reg.Metric, reg.Baseline, reg.Current, reg.Delta())
	}
}
