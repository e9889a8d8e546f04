package persona

import (
	"fmt"
	"sort"
)

// Registry holds the configured persona set. It is populated at startup and
// read-only afterwards, so lookups need no locking.
type Registry struct {
	personas map[string]Persona
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		personas: make(map[string]Persona),
	}
}

// Register adds a persona. Returns an error for an invalid identity or a
// duplicate ID.
func (r *Registry) Register(p Persona) error {
	id := p.Identity()
	if err := id.Validate(); err != nil {
		return fmt.Errorf("invalid persona: %w", err)
	}

	if _, exists := r.personas[id.ID]; exists {
		return fmt.Errorf("persona %q is already registered", id.ID)
	}

	r.personas[id.ID] = p
	return nil
}

// Get returns the persona for an ID, or false if unknown.
func (r *Registry) Get(personaID string) (Persona, bool) {
	p, ok := r.personas[personaID]
	return p, ok
}

// IDs returns all registered persona IDs, sorted for deterministic
// selection and iteration.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.personas))
	for id := range r.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered personas.
func (r *Registry) Len() int {
	return len(r.personas)
}

// Weights returns the persona ID -> priority weight map consumed by the
// consensus engine.
func (r *Registry) Weights() map[string]float64 {
	weights := make(map[string]float64, len(r.personas))
	for id, p := range r.personas {
		weights[id] = p.Identity().Weight
	}
	return weights
}
