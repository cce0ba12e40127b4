package domain

import (
	_ "embed"
	"fmt"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/rules"
	"github.com/hyperjump/shirabe/internal/topic"
)

//go:embed data/medicare_rules.json
var medicareRulesJSON []byte

//go:embed data/medicare_topics.json
var medicareTopicsJSON []byte

// Medicare covers IOM manuals, MCD (LCD/NCD) coverage determinations, and
// HCPCS / ICD-10-CM code files. Federal scope, no state partitioning.
type Medicare struct {
	rules  *rules.RuleSet
	topics []topic.Definition
}

// NewMedicare parses the packaged Medicare rule tables and topic definitions.
func NewMedicare() (*Medicare, error) {
	rs, err := rules.Parse(medicareRulesJSON)
	if err != nil {
		return nil, fmt.Errorf("medicare rules: %w", err)
	}
	defs, err := topic.Load(medicareTopicsJSON)
	if err != nil {
		return nil, fmt.Errorf("medicare topics: %w", err)
	}
	return &Medicare{rules: rs, topics: defs}, nil
}

func (m *Medicare) Name() string           { return "medicare" }
func (m *Medicare) DisplayName() string    { return "Medicare" }
func (m *Medicare) CollectionName() string { return "medicare" }

func (m *Medicare) SourceKinds() []string {
	return []string{"iom", "mcd", "codes"}
}

func (m *Medicare) Rules() *rules.RuleSet { return m.rules }

func (m *Medicare) TopicDefinitions() []topic.Definition { return m.topics }

// ChunkOverrides keeps MCD coverage-determination articles in larger chunks
// so that indications and limitations stay in one passage.
func (m *Medicare) ChunkOverrides() map[string]config.ChunkSettings {
	return map[string]config.ChunkSettings{
		"mcd": {Size: 1500, Overlap: 300},
	}
}

func (m *Medicare) QuickQuestions() []string {
	return []string{
		"What is Medicare timely filing?",
		"How does LCD coverage determination work?",
		"Explain modifier 59 usage",
		"What are HCPCS Level II codes?",
		"ICD-10-CM coding guidelines overview",
		"Medicare claims appeal process",
		"What is a National Coverage Determination?",
		"Outpatient prospective payment system basics",
	}
}

func (m *Medicare) SystemPrompt() string {
	return "You are a Medicare Revenue Cycle Management assistant. " +
		"Answer the user's question using ONLY the provided context. " +
		"Cite sources using [1], [2], etc. corresponding to the numbered context items. " +
		"If the context is insufficient to answer, say so explicitly. " +
		"This is not legal or medical advice."
}

func (m *Medicare) States() []StateProfile { return nil }

var _ Domain = (*Medicare)(nil)
