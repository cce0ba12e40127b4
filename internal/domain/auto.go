package domain

import (
	_ "embed"
	"fmt"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/rules"
	"github.com/hyperjump/shirabe/internal/topic"
)

//go:embed data/auto_rules.json
var autoRulesJSON []byte

//go:embed data/auto_topics.json
var autoTopicsJSON []byte

// Auto covers US auto insurance: state regulations, policy forms, claims
// handling, and rate filings for the top US markets.
type Auto struct {
	rules  *rules.RuleSet
	topics []topic.Definition
}

// NewAuto parses the packaged auto insurance rule tables and topic definitions.
func NewAuto() (*Auto, error) {
	rs, err := rules.Parse(autoRulesJSON)
	if err != nil {
		return nil, fmt.Errorf("auto rules: %w", err)
	}
	defs, err := topic.Load(autoTopicsJSON)
	if err != nil {
		return nil, fmt.Errorf("auto topics: %w", err)
	}
	return &Auto{rules: rs, topics: defs}, nil
}

func (a *Auto) Name() string           { return "auto" }
func (a *Auto) DisplayName() string    { return "Auto Insurance" }
func (a *Auto) CollectionName() string { return "auto_insurance" }

func (a *Auto) SourceKinds() []string {
	return []string{"regulations", "forms", "claims", "rates"}
}

func (a *Auto) Rules() *rules.RuleSet { return a.rules }

func (a *Auto) TopicDefinitions() []topic.Definition { return a.topics }

// ChunkOverrides keeps state regulation text in larger chunks so that a
// requirement and its exceptions stay together.
func (a *Auto) ChunkOverrides() map[string]config.ChunkSettings {
	return map[string]config.ChunkSettings{
		"regulations": {Size: 1500, Overlap: 300},
	}
}

func (a *Auto) QuickQuestions() []string {
	return []string{
		"What are California's minimum auto liability limits?",
		"How does no-fault insurance work in Florida?",
		"What is PIP coverage and which states require it?",
		"Explain the difference between collision and comprehensive coverage",
		"What are uninsured/underinsured motorist requirements by state?",
		"How does the subrogation process work in auto claims?",
		"What factors affect auto insurance premiums?",
		"What is the tort vs no-fault system for auto insurance?",
	}
}

func (a *Auto) SystemPrompt() string {
	return "You are a US auto insurance specialist. " +
		"Answer the user's question using ONLY the provided context. " +
		"When relevant, note state-specific requirements and variations. " +
		"Cite sources using [1], [2], etc. corresponding to the numbered context items. " +
		"If the context is insufficient to answer, say so explicitly. " +
		"This is not legal or financial advice."
}

func (a *Auto) States() []StateProfile { return topMarketStates() }

var _ Domain = (*Auto)(nil)
