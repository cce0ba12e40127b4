package eval

import (
	"math"
	"strings"

	"github.com/hyperjump/shirabe/internal/models"
)

// DefaultMinKeywordFraction is the fraction of a question's expected
// keywords that must appear in a chunk before it counts as relevant.
const DefaultMinKeywordFraction = 0.5

// QuestionResult is one question's scored retrieval at depth k.
type QuestionResult struct {
	ID             string   `json:"id"`
	Query          string   `json:"query"`
	Category       string   `json:"category"`
	Difficulty     string   `json:"difficulty"`
	Hit            bool     `json:"hit"`
	ReciprocalRank float64  `json:"reciprocal_rank"`
	Precision      float64  `json:"precision"`
	Recall         float64  `json:"recall"`
	NDCG           float64  `json:"ndcg"`
	RelevantFound  int      `json:"relevant_found"`
	RetrievedIDs   []string `json:"retrieved_ids"`

	// hasRecall marks questions whose recall denominator is known.
	hasRecall bool
	sources   []string
	group     string
}

// Aggregate is the mean metric set over a group of question results.
type Aggregate struct {
	Questions    int     `json:"questions"`
	HitRate      float64 `json:"hit_rate"`
	MRR          float64 `json:"mrr"`
	AvgPrecision float64 `json:"avg_precision"`
	AvgRecall    float64 `json:"avg_recall"`
	AvgNDCG      float64 `json:"avg_ndcg"`
	// RecallBasis is how many questions carried a known relevant_count;
	// AvgRecall is the mean over those alone.
	RecallBasis int `json:"recall_basis"`
}

// Relevant applies the relevance rule: expected source kind AND at least
// minFraction of the expected keywords present as case-insensitive
// substrings of the chunk text.
func Relevant(r *models.RetrievedChunk, q *Question, minFraction float64) bool {
	expected := false
	for _, src := range q.ExpectedSources {
		if r.SourceKind == src {
			expected = true
			break
		}
	}
	if !expected {
		return false
	}
	text := strings.ToLower(r.Text)
	matched := 0
	for _, kw := range q.ExpectedKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			matched++
		}
	}
	return float64(matched) >= minFraction*float64(len(q.ExpectedKeywords))
}

// Score computes a question's metrics over its retrieval at depth k.
func Score(q *Question, results []*models.RetrievedChunk, k int, minFraction float64) QuestionResult {
	qr := QuestionResult{
		ID:         q.ID,
		Query:      q.Query,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		sources:    q.ExpectedSources,
		group:      q.ConsistencyGroup,
	}

	dcg := 0.0
	for i, r := range results {
		qr.RetrievedIDs = append(qr.RetrievedIDs, r.ChunkID)
		if !Relevant(r, q, minFraction) {
			continue
		}
		qr.RelevantFound++
		rank := i + 1
		if !qr.Hit {
			qr.Hit = true
			qr.ReciprocalRank = 1.0 / float64(rank)
		}
		dcg += 1.0 / math.Log2(float64(rank)+1)
	}

	if k > 0 {
		qr.Precision = float64(qr.RelevantFound) / float64(k)
	}
	if q.RelevantCount > 0 {
		qr.hasRecall = true
		qr.Recall = float64(qr.RelevantFound) / float64(q.RelevantCount)
	}
	qr.NDCG = ndcg(dcg, qr.RelevantFound, q.RelevantCount, k)
	return qr
}

// ndcg normalizes a binary-gain DCG by the ideal ordering. The ideal set
// size is capped at k and never smaller than what was actually found, so an
// unknown relevant_count still yields a sane denominator.
func ndcg(dcg float64, relevantFound, relevantCount, k int) float64 {
	ideal := relevantFound
	if relevantCount > ideal {
		ideal = relevantCount
	}
	if k > 0 && ideal > k {
		ideal = k
	}
	if ideal == 0 {
		return 0
	}
	idcg := 0.0
	for i := 1; i <= ideal; i++ {
		idcg += 1.0 / math.Log2(float64(i)+1)
	}
	return dcg / idcg
}

// Summarize averages question results into one aggregate.
func Summarize(results []QuestionResult) Aggregate {
	agg := Aggregate{Questions: len(results)}
	if len(results) == 0 {
		return agg
	}
	var recallSum float64
	for _, qr := range results {
		if qr.Hit {
			agg.HitRate++
		}
		agg.MRR += qr.ReciprocalRank
		agg.AvgPrecision += qr.Precision
		agg.AvgNDCG += qr.NDCG
		if qr.hasRecall {
			recallSum += qr.Recall
			agg.RecallBasis++
		}
	}
	n := float64(len(results))
	agg.HitRate /= n
	agg.MRR /= n
	agg.AvgPrecision /= n
	agg.AvgNDCG /= n
	if agg.RecallBasis > 0 {
		agg.AvgRecall = recallSum / float64(agg.RecallBasis)
	}
	return agg
}

// GroupBy buckets question results by a label function and summarizes each
// bucket. Results may land in several buckets when the function returns
// more than one label.
func GroupBy(results []QuestionResult, labels func(QuestionResult) []string) map[string]Aggregate {
	buckets := make(map[string][]QuestionResult)
	for _, qr := range results {
		for _, label := range labels(qr) {
			buckets[label] = append(buckets[label], qr)
		}
	}
	out := make(map[string]Aggregate, len(buckets))
	for label, group := range buckets {
		out[label] = Summarize(group)
	}
	return out
}

// ByCategory buckets by question category.
func ByCategory(results []QuestionResult) map[string]Aggregate {
	return GroupBy(results, func(qr QuestionResult) []string { return []string{qr.Category} })
}

// ByDifficulty buckets by question difficulty.
func ByDifficulty(results []QuestionResult) map[string]Aggregate {
	return GroupBy(results, func(qr QuestionResult) []string { return []string{qr.Difficulty} })
}

// ByExpectedSource buckets by expected source kind; a question expecting
// two sources contributes to both buckets.
func ByExpectedSource(results []QuestionResult) map[string]Aggregate {
	return GroupBy(results, func(qr QuestionResult) []string { return qr.sources })
}
