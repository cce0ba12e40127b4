// Package expand turns one raw query into a bounded, deterministic set of
// weighted query variants using a domain's compiled rule tables. The original
// query is always the first variant; source-targeted, synonym-expanded, and
// specialized variants follow, capped by dropping the lowest weights first.
package expand

import (
	"strings"

	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/rules"
)

// Variant weights by kind. The original query always dominates; derived
// variants contribute progressively less to fusion.
const (
	weightOriginal = 1.0
	weightSource   = 0.8
	weightExpanded = 0.6
	weightTopic    = 0.6
	weightConcept  = 0.5
)

// Expansion is the result of expanding one query.
type Expansion struct {
	// Variants is ordered and deterministic for a given query and rule set.
	// Variants[0] is always the unmodified original query.
	Variants []models.QueryVariant
	// Relevance scores each source kind in (0, 1]. When no detection pattern
	// matches at all, this is the domain's default relevance map.
	Relevance map[string]float64
	// Specialized reports that a specialized-query pattern matched, which
	// raises the diversifier's minimum for SpecializedSource.
	Specialized       bool
	SpecializedSource string

	order []string
}

// RelevantSources returns the source kinds with positive relevance, ordered by
// relevance descending with the rule table's source order breaking ties.
func (e Expansion) RelevantSources() []string {
	return e.order
}

// Expander produces query variants from one domain's rule tables.
type Expander struct {
	rules       *rules.RuleSet
	maxVariants int
}

// New returns an expander over the given rule set. maxVariants bounds the
// fan-out; values below 1 keep only the original query.
func New(rs *rules.RuleSet, maxVariants int) *Expander {
	if maxVariants < 1 {
		maxVariants = 1
	}
	return &Expander{rules: rs, maxVariants: maxVariants}
}

// Expand builds the variant set for a raw query. Given identical query and
// rule tables the output is always identical, including order.
func (e *Expander) Expand(query string) Expansion {
	rs := e.rules
	exp := Expansion{
		Variants: []models.QueryVariant{{
			Text:   query,
			Weight: weightOriginal,
			Kind:   models.VariantOriginal,
		}},
		Specialized:       rs.IsSpecialized(query),
		SpecializedSource: rs.SpecializedSource,
	}
	exp.Relevance, exp.order = e.detectRelevance(query)

	// Source-targeted variants, most relevant source first. Only sources with
	// at least one detection match get a variant; default-relevance fallback
	// feeds the diversifier, not the variant set.
	counts := rs.SourceMatchCounts(query)
	for _, kind := range exp.order {
		if counts[kind] == 0 {
			continue
		}
		exp.Variants = append(exp.Variants, models.QueryVariant{
			Text:         query + " " + rs.Sources[kind].Expansion,
			TargetSource: kind,
			Weight:       weightSource,
			Kind:         models.VariantSource,
		})
	}

	// One generic variant collecting every matched synonym expansion.
	if expanded := e.synonymExpand(query); expanded != "" {
		exp.Variants = append(exp.Variants, models.QueryVariant{
			Text:   expanded,
			Weight: weightExpanded,
			Kind:   models.VariantExpanded,
		})
	}

	if exp.Specialized {
		if topicExp := rs.TopicExpansion(query); topicExp != "" {
			exp.Variants = append(exp.Variants, models.QueryVariant{
				Text:         query + " " + topicExp,
				TargetSource: rs.SpecializedSource,
				Weight:       weightTopic,
				Kind:         models.VariantTopic,
			})
		}
		if concept := rs.StripConcept(query); concept != "" && !strings.EqualFold(concept, query) {
			exp.Variants = append(exp.Variants, models.QueryVariant{
				Text:         concept,
				TargetSource: rs.SpecializedSource,
				Weight:       weightConcept,
				Kind:         models.VariantConcept,
			})
		}
	}

	exp.Variants = capVariants(exp.Variants, e.maxVariants)
	return exp
}

// detectRelevance scores each source kind by how many of its detection
// patterns match, against a threshold of a third of the pattern count. When
// nothing matches the domain's default relevance map is used instead.
func (e *Expander) detectRelevance(query string) (map[string]float64, []string) {
	rs := e.rules
	counts := rs.SourceMatchCounts(query)

	relevance := make(map[string]float64, len(rs.Sources))
	any := false
	for _, kind := range rs.SourceOrder {
		n := counts[kind]
		if n == 0 {
			continue
		}
		any = true
		threshold := len(rs.Sources[kind].Patterns) / 3
		if threshold < 1 {
			threshold = 1
		}
		score := float64(n) / float64(threshold)
		if score > 1 {
			score = 1
		}
		relevance[kind] = score
	}
	if !any {
		for kind, rel := range rs.DefaultRelevance {
			relevance[kind] = rel
		}
	}

	order := make([]string, 0, len(relevance))
	for _, kind := range rs.SourceOrder {
		if relevance[kind] > 0 {
			order = append(order, kind)
		}
	}
	// Stable by construction: equal relevance keeps source order.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && relevance[order[j]] > relevance[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	return relevance, order
}

// synonymExpand returns the query with every matched synonym expansion
// appended, or "" when no synonym matches.
func (e *Expander) synonymExpand(query string) string {
	var additions []string
	for _, rule := range e.rules.Synonyms {
		if rule.Pattern.MatchString(query) {
			additions = append(additions, rule.Expansion)
		}
	}
	if len(additions) == 0 {
		return ""
	}
	return query + " " + strings.Join(additions, " ")
}

// capVariants drops lowest-weight variants until at most max remain. Among
// equal weights the later variant goes first; the original at index 0 is
// never dropped.
func capVariants(vs []models.QueryVariant, max int) []models.QueryVariant {
	for len(vs) > max {
		drop := -1
		for i := 1; i < len(vs); i++ {
			if drop == -1 || vs[i].Weight <= vs[drop].Weight {
				drop = i
			}
		}
		if drop == -1 {
			break
		}
		vs = append(vs[:drop], vs[drop+1:]...)
	}
	return vs
}
