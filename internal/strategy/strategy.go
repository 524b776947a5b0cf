// Package strategy defines the Strategy interface for signal generators and
// provides a Registry for managing multiple strategy implementations.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"candlebt/internal/domain"
)

// ErrUnknownStrategy is returned by Lookup for names that were never
// registered.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy is the interface that all signal generators must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// GenerateSignals scans bars and returns one Annotation per bar, at the
	// same index. The input slice is never modified and the returned slice is
	// freshly allocated on every call.
	GenerateSignals(bars []domain.Bar) []domain.Annotation
}

// Describer is implemented by strategies that carry a human readable
// description of their rules.
type Describer interface {
	Description() string
}

// Info summarises a strategy for listings.
type Info struct {
	Name        string
	Description string
}

// Describe returns the name and, when available, the description of s.
func Describe(s Strategy) Info {
	info := Info{Name: s.Name()}
	if d, ok := s.(Describer); ok {
		info.Description = d.Description()
	}
	return info
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Lookup is Get with an error for unknown names.
func (r *Registry) Lookup(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownStrategy, name, r.List())
	}
	return s, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
