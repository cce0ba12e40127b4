// Package rules loads and compiles the per-domain query pattern tables:
// source detection patterns, source expansion strings, synonym expansions,
// specialized query patterns, and noise/filler strip patterns. Tables are
// plain JSON data; all regexes compile once at load time and invalid patterns
// fail fast with the offending pattern in the error.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// ExpansionRule pairs a detection regex with the expansion text to append or
// substitute when it matches.
type ExpansionRule struct {
	Pattern   *regexp.Regexp
	Expansion string
}

// SourceRules holds the compiled detection patterns and the expansion string
// for one source kind.
type SourceRules struct {
	Patterns  []*regexp.Regexp
	Expansion string
}

// RuleSet is one domain's compiled pattern tables.
type RuleSet struct {
	// SourceOrder fixes the iteration order over Sources so expansion output
	// is deterministic.
	SourceOrder []string
	Sources     map[string]*SourceRules
	Synonyms    []ExpansionRule

	// SpecializedSource is the source kind that specialized queries concern.
	SpecializedSource string
	Specialized       []*regexp.Regexp
	SpecializedTopics []ExpansionRule

	StripNoise  []*regexp.Regexp
	StripFiller []*regexp.Regexp

	// DefaultRelevance is the per-source relevance used when a query matches
	// no source detection pattern at all.
	DefaultRelevance map[string]float64
}

type patternExpansion struct {
	Pattern   string `json:"pattern"`
	Expansion string `json:"expansion"`
}

type rawSource struct {
	Patterns  []string `json:"patterns"`
	Expansion string   `json:"expansion"`
}

type ruleFile struct {
	SourceOrder              []string             `json:"source_order"`
	Sources                  map[string]rawSource `json:"sources"`
	Synonyms                 []patternExpansion   `json:"synonyms"`
	SpecializedSource        string               `json:"specialized_source"`
	SpecializedQueryPatterns []string             `json:"specialized_query_patterns"`
	SpecializedTopicPatterns []patternExpansion   `json:"specialized_topic_patterns"`
	StripNoisePatterns       []string             `json:"strip_noise_patterns"`
	StripFillerPatterns      []string             `json:"strip_filler_patterns"`
	DefaultRelevance         map[string]float64   `json:"default_relevance"`
}

// Parse compiles a rule table from its JSON form.
func Parse(data []byte) (*RuleSet, error) {
	var raw ruleFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}
	if len(raw.Sources) == 0 {
		return nil, fmt.Errorf("rule table defines no sources")
	}

	rs := &RuleSet{
		Sources:           make(map[string]*SourceRules, len(raw.Sources)),
		SpecializedSource: raw.SpecializedSource,
		DefaultRelevance:  make(map[string]float64, len(raw.DefaultRelevance)),
	}

	for kind, src := range raw.Sources {
		compiled, err := compileAll(src.Patterns, "source "+kind)
		if err != nil {
			return nil, err
		}
		rs.Sources[kind] = &SourceRules{Patterns: compiled, Expansion: src.Expansion}
	}

	rs.SourceOrder = raw.SourceOrder
	if len(rs.SourceOrder) == 0 {
		for kind := range rs.Sources {
			rs.SourceOrder = append(rs.SourceOrder, kind)
		}
		sort.Strings(rs.SourceOrder)
	} else {
		if len(rs.SourceOrder) != len(rs.Sources) {
			return nil, fmt.Errorf("source_order lists %d sources, table defines %d",
				len(rs.SourceOrder), len(rs.Sources))
		}
		for _, kind := range rs.SourceOrder {
			if _, ok := rs.Sources[kind]; !ok {
				return nil, fmt.Errorf("source_order names unknown source %q", kind)
			}
		}
	}

	var err error
	if rs.Synonyms, err = compileExpansions(raw.Synonyms, "synonym"); err != nil {
		return nil, err
	}
	if rs.Specialized, err = compileAll(raw.SpecializedQueryPatterns, "specialized query"); err != nil {
		return nil, err
	}
	if rs.SpecializedTopics, err = compileExpansions(raw.SpecializedTopicPatterns, "specialized topic"); err != nil {
		return nil, err
	}
	if rs.StripNoise, err = compileAll(raw.StripNoisePatterns, "strip noise"); err != nil {
		return nil, err
	}
	if rs.StripFiller, err = compileAll(raw.StripFillerPatterns, "strip filler"); err != nil {
		return nil, err
	}

	if rs.SpecializedSource != "" {
		if _, ok := rs.Sources[rs.SpecializedSource]; !ok {
			return nil, fmt.Errorf("specialized_source %q is not a defined source", rs.SpecializedSource)
		}
	}
	for kind, rel := range raw.DefaultRelevance {
		if _, ok := rs.Sources[kind]; !ok {
			return nil, fmt.Errorf("default_relevance names unknown source %q", kind)
		}
		if rel < 0 || rel > 1 {
			return nil, fmt.Errorf("default_relevance for %q is %v, must be in [0,1]", kind, rel)
		}
		rs.DefaultRelevance[kind] = rel
	}

	return rs, nil
}

// LoadFile reads and compiles a rule table from a JSON file.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// SourceMatchCounts returns, per source kind, how many distinct detection
// patterns match the query.
func (rs *RuleSet) SourceMatchCounts(query string) map[string]int {
	counts := make(map[string]int, len(rs.Sources))
	for kind, src := range rs.Sources {
		n := 0
		for _, p := range src.Patterns {
			if p.MatchString(query) {
				n++
			}
		}
		counts[kind] = n
	}
	return counts
}

// IsSpecialized reports whether any specialized query pattern matches.
func (rs *RuleSet) IsSpecialized(query string) bool {
	for _, p := range rs.Specialized {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}

// TopicExpansion returns the expansion of the first specialized topic pattern
// matching the query, or "" when none match.
func (rs *RuleSet) TopicExpansion(query string) string {
	for _, rule := range rs.SpecializedTopics {
		if rule.Pattern.MatchString(query) {
			return rule.Expansion
		}
	}
	return ""
}

// StripConcept removes domain noise and filler wording from a query, leaving
// the core concept terms.
func (rs *RuleSet) StripConcept(query string) string {
	s := query
	for _, p := range rs.StripNoise {
		s = p.ReplaceAllString(s, " ")
	}
	for _, p := range rs.StripFiller {
		s = p.ReplaceAllString(s, " ")
	}
	return strings.Join(strings.Fields(s), " ")
}

func compileAll(patterns []string, what string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile("(?i)" + pat)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", what, pat, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func compileExpansions(rules []patternExpansion, what string) ([]ExpansionRule, error) {
	compiled := make([]ExpansionRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", what, r.Pattern, err)
		}
		if r.Expansion == "" {
			return nil, fmt.Errorf("%s pattern %q has empty expansion", what, r.Pattern)
		}
		compiled = append(compiled, ExpansionRule{Pattern: re, Expansion: r.Expansion})
	}
	return compiled, nil
}
