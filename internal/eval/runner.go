package eval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/models"
)

// Retriever is the retrieval surface the harness drives. The search engine
// satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, req *models.RetrievalRequest) (*models.RetrievalResponse, error)
}

// Runner executes a question set against a retriever and scores the runs.
type Runner struct {
	retriever   Retriever
	minFraction float64
	logger      *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner builds a runner. A nil config falls back to the default
// keyword-match fraction.
func NewRunner(retriever Retriever, cfg *config.EvalConfig, opts ...Option) *Runner {
	r := &Runner{
		retriever:   retriever,
		minFraction: DefaultMinKeywordFraction,
		logger:      zap.NewNop(),
	}
	if cfg != nil && cfg.MinKeywordFraction > 0 {
		r.minFraction = cfg.MinKeywordFraction
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run retrieves every question at depth k and assembles the scored report.
// The first retrieval error aborts the run.
func (r *Runner) Run(ctx context.Context, questions []Question, k int) (*Report, error) {
	if k <= 0 {
		return nil, fmt.Errorf("eval depth must be positive, got %d", k)
	}

	start := time.Now()
	results := make([]QuestionResult, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		resp, err := r.retriever.Retrieve(ctx, &models.RetrievalRequest{Query: q.Query, K: k})
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		qr := Score(q, resp.Results, k, r.minFraction)
		r.logger.Debug("question scored",
			zap.String("id", q.ID),
			zap.Bool("hit", qr.Hit),
			zap.Float64("precision", qr.Precision),
			zap.Float64("ndcg", qr.NDCG))
		results = append(results, qr)
	}

	consistency := Consistency(results)
	report := &Report{
		K:               k,
		GeneratedAt:     time.Now().UTC(),
		Overall:         Summarize(results),
		ByCategory:      ByCategory(results),
		ByDifficulty:    ByDifficulty(results),
		BySource:        ByExpectedSource(results),
		Consistency:     consistency,
		MeanConsistency: MeanConsistency(consistency),
		Results:         results,
	}
	r.logger.Info("eval run complete",
		zap.Int("questions", len(questions)),
		zap.Int("k", k),
		zap.Float64("hit_rate", report.Overall.HitRate),
		zap.Float64("mrr", report.Overall.MRR),
		zap.Duration("took", time.Since(start)))
	return report, nil
}
