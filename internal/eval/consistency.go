package eval

import "sort"

// GroupConsistency is the mean pairwise result overlap for the questions
// of one consistency group.
type GroupConsistency struct {
	Group       string   `json:"group"`
	Questions   []string `json:"questions"`
	MeanJaccard float64  `json:"mean_jaccard"`
}

// Jaccard is |a ∩ b| / |a ∪ b| over retrieved chunk id sets. Two empty
// result sets agree perfectly.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, id := range a {
		setA[id] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, id := range b {
		setB[id] = struct{}{}
	}
	inter := 0
	for id := range setA {
		if _, ok := setB[id]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 1.0
	}
	return float64(inter) / float64(union)
}

// Consistency scores every consistency group found in the results: the
// mean Jaccard overlap across all pairs of the group's retrieved sets.
// Groups are returned sorted by name.
func Consistency(results []QuestionResult) []GroupConsistency {
	groups := make(map[string][]QuestionResult)
	for _, qr := range results {
		if qr.group == "" {
			continue
		}
		groups[qr.group] = append(groups[qr.group], qr)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]GroupConsistency, 0, len(names))
	for _, name := range names {
		members := groups[name]
		gc := GroupConsistency{Group: name}
		for _, m := range members {
			gc.Questions = append(gc.Questions, m.ID)
		}
		var sum float64
		pairs := 0
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				sum += Jaccard(members[i].RetrievedIDs, members[j].RetrievedIDs)
				pairs++
			}
		}
		if pairs > 0 {
			gc.MeanJaccard = sum / float64(pairs)
		}
		out = append(out, gc)
	}
	return out
}

// MeanConsistency averages group scores; no groups yields zero.
func MeanConsistency(groups []GroupConsistency) float64 {
	if len(groups) == 0 {
		return 0
	}
	var sum float64
	for _, g := range groups {
		sum += g.MeanJaccard
	}
	return sum / float64(len(groups))
}
