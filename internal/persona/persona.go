// Package persona defines the analyzer contract for council members and the
// registry that holds the configured set of them.
package persona

import (
	"context"
	"fmt"

	"github.com/dyluth/quorum/pkg/blackboard"
)

// Identity is a persona's fixed, read-only configuration: who it is, what it
// knows about, and how heavily its vote counts.
type Identity struct {
	ID      string   // Registry key, e.g. "architect"
	Name    string   // Display name, e.g. "The Architect"
	Domains []string // Expertise domains matched against request signals
	Weight  float64  // Priority weight applied to confidence during voting
}

// Validate checks the identity's field values.
func (id Identity) Validate() error {
	if id.ID == "" {
		return fmt.Errorf("persona ID cannot be empty")
	}

	if id.Name == "" {
		return fmt.Errorf("persona name cannot be empty")
	}

	if len(id.Domains) == 0 {
		return fmt.Errorf("persona %q must declare at least one expertise domain", id.ID)
	}

	if id.Weight <= 0 {
		return fmt.Errorf("persona %q weight must be positive, got %v", id.ID, id.Weight)
	}

	return nil
}

// Input is everything a persona sees for one round: the query, the request
// context merged with recalled memory, and the board entries visible at
// dispatch time. The baseline protocol is single-pass, so Board is normally
// empty; it exists so the contract does not have to change for a future
// debate extension.
type Input struct {
	Query   string
	Context map[string]string
	Recall  []string // Memory snippets recalled for this persona, best-effort
	Board   []blackboard.Entry
}

// Persona is the closed analyzer contract. Implementations must be safe to
// invoke concurrently from multiple rounds: no shared mutable state between
// calls beyond read-only configuration.
//
// Analyze returns an error for malformed input or internal failure. It must
// never fabricate a low-confidence placeholder opinion instead; the
// orchestrator converts errors into absence markers.
type Persona interface {
	Identity() Identity
	Analyze(ctx context.Context, in Input) (*blackboard.PersonaOpinion, error)
}
