// Package extension holds the generator protocol that produces and checks
// tasks, and the static registry the service resolves generators from.
package extension

import (
	"fmt"
	"sort"

	"github.com/rtm-python/est/internal/domain"
)

// Input is the raw answer form submitted by a player.
type Input map[string]string

// Generator produces tasks for one extension and normalizes submitted answers.
// Implementations must not touch persistence.
type Generator interface {
	Name() string
	// Generate builds a task payload from the test configuration. It returns
	// an error wrapping domain.ErrInvalidConfig when the config is unusable.
	Generate(config []byte) (domain.Payload, error)
	// Validate returns the normalized answer, or the problems found in input.
	Validate(input Input) (string, []string)
}

// Registry maps extension names to generators. It is built once at startup.
type Registry struct {
	generators map[string]Generator
}

func NewRegistry(generators ...Generator) *Registry {
	r := &Registry{generators: make(map[string]Generator, len(generators))}
	for _, g := range generators {
		r.generators[g.Name()] = g
	}
	return r
}

// Default registers every built-in extension.
func Default() *Registry {
	return NewRegistry(NewArithmetic(nil), NewClock(nil))
}

func (r *Registry) Lookup(name string) (Generator, error) {
	g, ok := r.generators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrExtensionNotFound, name)
	}
	return g, nil
}

// Names lists registered extensions in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
