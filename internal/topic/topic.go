// Package topic provides topic definitions and matching. A query or chunk
// matches a topic when at least min_pattern_matches of the topic's distinct
// patterns match its text, case-insensitively. The same rule is applied to
// queries at retrieval time and to chunk text at index time.
package topic

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Definition is one topic as loaded from a definitions file.
type Definition struct {
	Name              string   `json:"name"`
	Label             string   `json:"label"`
	Patterns          []string `json:"patterns"`
	MinPatternMatches int      `json:"min_pattern_matches"`
	SummaryPrefix     string   `json:"summary_prefix"`
}

type compiledDef struct {
	def      Definition
	patterns []*regexp.Regexp
}

// Matcher matches text against a fixed set of compiled topic definitions.
type Matcher struct {
	defs []compiledDef
}

// Load parses topic definitions from JSON and validates them: names must be
// unique and non-empty, every topic needs at least one pattern, and
// min_pattern_matches must be >= 1 and <= the pattern count.
func Load(data []byte) ([]Definition, error) {
	var defs []Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse topic definitions: %w", err)
	}
	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("topic definition %d has empty name", i)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate topic name %q", d.Name)
		}
		seen[d.Name] = true
		if len(d.Patterns) == 0 {
			return nil, fmt.Errorf("topic %q has no patterns", d.Name)
		}
		if d.MinPatternMatches < 1 {
			return nil, fmt.Errorf("topic %q has min_pattern_matches %d, must be >= 1",
				d.Name, d.MinPatternMatches)
		}
		if d.MinPatternMatches > len(d.Patterns) {
			return nil, fmt.Errorf("topic %q requires %d matches but has only %d patterns",
				d.Name, d.MinPatternMatches, len(d.Patterns))
		}
	}
	return defs, nil
}

// LoadFile reads and parses topic definitions from a JSON file.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topic definitions: %w", err)
	}
	defs, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// NewMatcher compiles the definitions' patterns. Invalid regexes fail here,
// not at match time.
func NewMatcher(defs []Definition) (*Matcher, error) {
	m := &Matcher{defs: make([]compiledDef, 0, len(defs))}
	for _, d := range defs {
		cd := compiledDef{def: d, patterns: make([]*regexp.Regexp, 0, len(d.Patterns))}
		for _, pat := range d.Patterns {
			re, err := regexp.Compile("(?i)" + pat)
			if err != nil {
				return nil, fmt.Errorf("topic %q: invalid pattern %q: %w", d.Name, pat, err)
			}
			cd.patterns = append(cd.patterns, re)
		}
		m.defs = append(m.defs, cd)
	}
	return m, nil
}

// Match returns the names of all topics the text matches, in definition order.
func (m *Matcher) Match(text string) []string {
	var matched []string
	for _, cd := range m.defs {
		n := 0
		for _, p := range cd.patterns {
			if p.MatchString(text) {
				n++
				if n >= cd.def.MinPatternMatches {
					break
				}
			}
		}
		if n >= cd.def.MinPatternMatches {
			matched = append(matched, cd.def.Name)
		}
	}
	return matched
}

// Definitions returns the definitions backing this matcher, in order.
func (m *Matcher) Definitions() []Definition {
	defs := make([]Definition, len(m.defs))
	for i, cd := range m.defs {
		defs[i] = cd.def
	}
	return defs
}

// Definition returns the named definition, if present.
func (m *Matcher) Definition(name string) (Definition, bool) {
	for _, cd := range m.defs {
		if cd.def.Name == name {
			return cd.def, true
		}
	}
	return Definition{}, false
}
