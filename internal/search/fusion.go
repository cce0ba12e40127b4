// Package search implements the hybrid retrieval pipeline: variant fan-out
// across the semantic and keyword engines, reciprocal rank fusion,
// cross-source diversification, and summary anchor injection.
package search

import "sort"

// RankedList is one engine's ranked candidate ids for one query variant,
// with the weight its contributions carry in fusion.
type RankedList struct {
	IDs    []string
	Weight float64
}

// FusedChunk is one chunk's accumulated fusion state.
type FusedChunk struct {
	ID    string
	Score float64
	// BestRank is the best (lowest) rank the chunk reached in any
	// contributing list. It is the first tie-breaker.
	BestRank int
}

// Fuse merges the ranked lists with reciprocal rank fusion: a chunk at rank
// r (1-indexed) in a list of weight w accumulates w/(rrfK+r). Chunks absent
// from a list contribute nothing for it, so agreement across lists outranks
// a single strong showing regardless of each engine's score scale. Ordering
// is descending score, then best rank, then chunk id, making the output a
// pure function of the input lists.
func Fuse(lists []RankedList, rrfK int) []*FusedChunk {
	if rrfK < 1 {
		rrfK = 60
	}
	acc := make(map[string]*FusedChunk)
	for _, list := range lists {
		for i, id := range list.IDs {
			rank := i + 1
			fc, ok := acc[id]
			if !ok {
				fc = &FusedChunk{ID: id, BestRank: rank}
				acc[id] = fc
			}
			fc.Score += list.Weight / float64(rrfK+rank)
			if rank < fc.BestRank {
				fc.BestRank = rank
			}
		}
	}

	fused := make([]*FusedChunk, 0, len(acc))
	for _, fc := range acc {
		fused = append(fused, fc)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		if fused[i].BestRank != fused[j].BestRank {
			return fused[i].BestRank < fused[j].BestRank
		}
		return fused[i].ID < fused[j].ID
	})
	return fused
}
