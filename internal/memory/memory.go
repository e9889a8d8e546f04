// Package memory provides the long-term memory contract consumed by the
// orchestrator, plus the Redis-backed reference implementation. Recall runs
// before a round to enrich persona context; Store runs after, fire and
// forget. Both are best-effort: failures are logged by the caller and never
// surface to the deliberation caller.
package memory

import "context"

// Snippet is one recalled memory fragment.
type Snippet struct {
	ID          string   `json:"id"`
	PersonaID   string   `json:"persona_id"`
	Content     string   `json:"content"`
	Importance  float64  `json:"importance"` // [0,1], set at store time
	Valence     float64  `json:"valence"`    // [-1,1] emotional valence of the stored outcome
	Tags        []string `json:"tags,omitempty"`
	CreatedAtMs int64    `json:"created_at_ms"`
}

// Store is the memory collaborator contract.
type Store interface {
	// Recall returns up to limit snippets relevant to the query for the
	// persona, most relevant first. An empty result is not an error.
	Recall(ctx context.Context, personaID, query string, contextMap map[string]string, limit int) ([]Snippet, error)

	// Store persists one memory for the persona.
	Store(ctx context.Context, personaID, content string, contextMap map[string]string, importance, valence float64, tags []string) error
}

// NullStore is the no-op Store used when no memory backend is configured.
type NullStore struct{}

// Recall always returns no snippets.
func (NullStore) Recall(ctx context.Context, personaID, query string, contextMap map[string]string, limit int) ([]Snippet, error) {
	return nil, nil
}

// Store discards the memory.
func (NullStore) Store(ctx context.Context, personaID, content string, contextMap map[string]string, importance, valence float64, tags []string) error {
	return nil
}
