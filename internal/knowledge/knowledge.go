// Package knowledge provides the knowledge-graph contract consumed by the
// orchestrator, plus the Redis-backed reference implementation. Deliberation
// outcomes become decision nodes, linked to the concept terms that surfaced
// during the round. All calls are best-effort from the orchestrator's
// perspective.
package knowledge

import (
	"context"

	"github.com/dyluth/quorum/pkg/deliberation"
)

// Graph is the knowledge-graph collaborator contract.
type Graph interface {
	// AddDeliberationNode records the outcome as a decision node and
	// returns the node ID.
	AddDeliberationNode(ctx context.Context, outcome *deliberation.Outcome) (string, error)

	// LinkConcepts links the decision node to concept names, building the
	// concept -> decisions index.
	LinkConcepts(ctx context.Context, nodeID string, concepts []string) error
}

// NullGraph is the no-op Graph used when no knowledge backend is configured.
type NullGraph struct{}

// AddDeliberationNode discards the outcome and returns an empty node ID.
func (NullGraph) AddDeliberationNode(ctx context.Context, outcome *deliberation.Outcome) (string, error) {
	return "", nil
}

// LinkConcepts does nothing.
func (NullGraph) LinkConcepts(ctx context.Context, nodeID string, concepts []string) error {
	return nil
}
