// Package domain defines the corpus domain interface and the registry of
// built-in domains. A domain bundles everything source-specific: source
// kinds, query pattern tables, topic definitions, chunking overrides, and
// the prompt surfaced to the downstream answer generator. Registration is an
// explicit startup call; nothing registers itself at import time.
package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/rules"
	"github.com/hyperjump/shirabe/internal/topic"
)

// Domain is one retrievable corpus domain.
type Domain interface {
	Name() string
	DisplayName() string
	CollectionName() string
	SourceKinds() []string
	// Rules returns the domain's compiled query pattern tables.
	Rules() *rules.RuleSet
	// TopicDefinitions returns the packaged topic definitions. A config
	// override path replaces these at wiring time.
	TopicDefinitions() []topic.Definition
	// ChunkOverrides returns per-source chunk size/overlap settings consumed
	// by the external extraction stage.
	ChunkOverrides() map[string]config.ChunkSettings
	QuickQuestions() []string
	SystemPrompt() string
	// States returns per-state regulatory profiles, or nil for domains
	// without state partitioning.
	States() []StateProfile
}

// Registry holds registered domains by name.
type Registry struct {
	mu      sync.RWMutex
	domains map[string]Domain
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{domains: make(map[string]Domain)}
}

// Register adds a domain. Registering a name twice is an error.
func (r *Registry) Register(d Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := d.Name()
	if name == "" {
		return fmt.Errorf("domain has empty name")
	}
	if _, exists := r.domains[name]; exists {
		return fmt.Errorf("domain %q already registered", name)
	}
	r.domains[name] = d
	return nil
}

// Get returns the named domain.
func (r *Registry) Get(name string) (Domain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[name]
	if !ok {
		return nil, fmt.Errorf("unknown domain %q (known: %s)", name, strings.Join(r.list(), ", "))
	}
	return d, nil
}

// List returns the registered domain names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.list()
}

func (r *Registry) list() []string {
	names := make([]string, 0, len(r.domains))
	for name := range r.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin constructs a registry with the built-in domains registered.
// This is the explicit startup call; callers needing a different set
// register domains on a fresh registry themselves.
func Builtin() (*Registry, error) {
	r := NewRegistry()

	medicare, err := NewMedicare()
	if err != nil {
		return nil, fmt.Errorf("medicare domain: %w", err)
	}
	if err := r.Register(medicare); err != nil {
		return nil, err
	}

	auto, err := NewAuto()
	if err != nil {
		return nil, fmt.Errorf("auto domain: %w", err)
	}
	if err := r.Register(auto); err != nil {
		return nil, err
	}

	return r, nil
}
