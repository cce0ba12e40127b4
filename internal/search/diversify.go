package search

// Diversify reorders fused results so every source kind with a quota fills
// it ahead of over-quota chunks. The walk keeps fused order within each
// group: chunks that count toward an unmet quota are emitted first, and
// everything else backfills behind them, still in fused order. Nothing is
// removed, and a source with fewer candidates than its quota fills what it
// has rather than padding.
func Diversify(fused []*FusedChunk, sourceOf map[string]string, quotas map[string]int) []*FusedChunk {
	if len(fused) == 0 || len(quotas) == 0 {
		return fused
	}

	avail := make(map[string]int)
	for _, fc := range fused {
		avail[sourceOf[fc.ID]]++
	}
	need := make(map[string]int, len(quotas))
	total := 0
	for src, quota := range quotas {
		if a := avail[src]; a < quota {
			quota = a
		}
		if quota > 0 {
			need[src] = quota
			total += quota
		}
	}
	if total == 0 {
		return fused
	}

	block := make([]*FusedChunk, 0, total)
	deferred := make([]*FusedChunk, 0, len(fused)-total)
	counts := make(map[string]int, len(need))
	for _, fc := range fused {
		src := sourceOf[fc.ID]
		if quota, ok := need[src]; ok && counts[src] < quota {
			block = append(block, fc)
			counts[src]++
			continue
		}
		deferred = append(deferred, fc)
	}
	return append(block, deferred...)
}
