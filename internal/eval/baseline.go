package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrBaselineKMismatch means the baseline was recorded at a different
// retrieval depth than the current run; the metrics are not comparable and
// the gate fails closed.
var ErrBaselineKMismatch = errors.New("baseline k does not match current run")

// Baseline pins the metric floor a run must not fall below. A fresh
// project starts from an all-zero baseline, which any run passes.
type Baseline struct {
	K            int     `json:"k"`
	HitRate      float64 `json:"hit_rate"`
	MRR          float64 `json:"mrr"`
	AvgPrecision float64 `json:"avg_precision"`
	AvgRecall    float64 `json:"avg_recall"`
}

// IsZero reports the uninitialized placeholder: no depth and no floors.
func (b *Baseline) IsZero() bool {
	return b.K == 0 && b.HitRate == 0 && b.MRR == 0 && b.AvgPrecision == 0 && b.AvgRecall == 0
}

// Regression is one gated metric that fell below its baseline.
type Regression struct {
	Metric   string  `json:"metric"`
	Baseline float64 `json:"baseline"`
	Current  float64 `json:"current"`
}

func (r Regression) Delta() float64 { return r.Current - r.Baseline }

// LoadBaseline reads a baseline file.
func LoadBaseline(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline %s: %w", path, err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	// The all-zero placeholder is a legal uninitialized baseline.
	if b.K <= 0 && !b.IsZero() {
		return nil, fmt.Errorf("parse baseline %s: k must be positive, got %d", path, b.K)
	}
	return &b, nil
}

// SaveBaseline writes a baseline file.
func SaveBaseline(path string, b *Baseline) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write baseline %s: %w", path, err)
	}
	return nil
}

// Gate compares a run's aggregate against the baseline. Any gated metric
// strictly below its baseline value is a regression; the run passes only
// when the list comes back empty. A depth mismatch is not comparable and
// returns ErrBaselineKMismatch instead of a verdict. The uninitialized
// placeholder sets no floor and passes any run.
func Gate(b *Baseline, current Aggregate, k int) ([]Regression, error) {
	if b.IsZero() {
		return nil, nil
	}
	if b.K != k {
		return nil, fmt.Errorf("%w: baseline recorded at k=%d, current run at k=%d", ErrBaselineKMismatch, b.K, k)
	}
	var regressions []Regression
	check := func(metric string, baseline, cur float64) {
		if cur < baseline {
			regressions = append(regressions, Regression{Metric: metric, Baseline: baseline, Current: cur})
		}
	}
	check("hit_rate", b.HitRate, current.HitRate)
	check("mrr", b.MRR, current.MRR)
	check("avg_precision", b.AvgPrecision, current.AvgPrecision)
	check("avg_recall", b.AvgRecall, current.AvgRecall)
	return regressions, nil
}
