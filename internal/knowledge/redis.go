package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dyluth/quorum/pkg/deliberation"
)

// Redis key pattern helpers
//
// Decision node hash: quorum:{instance}:node:{node_id}
// Node concept set:   quorum:{instance}:node:{node_id}:concepts
// Concept index set:  quorum:{instance}:concept:{concept} (members = node IDs)

// nodeKey returns the Redis key for a decision node hash.
func nodeKey(instanceName, nodeID string) string {
	return fmt.Sprintf("quorum:%s:node:%s", instanceName, nodeID)
}

// nodeConceptsKey returns the Redis key for a node's concept set.
func nodeConceptsKey(instanceName, nodeID string) string {
	return fmt.Sprintf("quorum:%s:node:%s:concepts", instanceName, nodeID)
}

// conceptKey returns the Redis key for a concept's node index set.
func conceptKey(instanceName, concept string) string {
	return fmt.Sprintf("quorum:%s:concept:%s", instanceName, concept)
}

// RedisGraph is the Redis-backed Graph implementation. It stores decision
// nodes as hashes and maintains a bidirectional node/concept index with
// plain sets, which is all the recall path needs.
type RedisGraph struct {
	rdb          *redis.Client
	instanceName string
}

// NewRedisGraph creates a knowledge graph for the given instance.
// Returns an error if instanceName is empty.
func NewRedisGraph(redisOpts *redis.Options, instanceName string) (*RedisGraph, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &RedisGraph{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (g *RedisGraph) Close() error {
	return g.rdb.Close()
}

// AddDeliberationNode records the outcome as a decision node.
func (g *RedisGraph) AddDeliberationNode(ctx context.Context, outcome *deliberation.Outcome) (string, error) {
	if outcome == nil {
		return "", fmt.Errorf("outcome cannot be nil")
	}

	nodeID := uuid.New().String()

	fields := map[string]interface{}{
		"outcome_id":      outcome.ID,
		"round_id":        outcome.RoundID,
		"query":           outcome.Request.Query,
		"topic":           outcome.Request.Topic,
		"decision":        outcome.Result.Decision,
		"confidence":      strconv.FormatFloat(outcome.Result.Confidence, 'f', -1, 64),
		"agreement_level": strconv.FormatFloat(outcome.Result.AgreementLevel, 'f', -1, 64),
		"method":          string(outcome.Result.Method),
		"degraded":        strconv.FormatBool(outcome.Degraded),
		"supporting":      strings.Join(outcome.Result.Supporting, ","),
		"dissenting":      strings.Join(outcome.Result.Dissenting, ","),
		"created_at_ms":   strconv.FormatInt(outcome.CreatedAtMs, 10),
	}

	key := nodeKey(g.instanceName, nodeID)
	if err := g.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return "", fmt.Errorf("failed to write decision node to Redis: %w", err)
	}

	return nodeID, nil
}

// LinkConcepts links the node to each concept, normalized to lower case.
// Empty concept names are skipped.
func (g *RedisGraph) LinkConcepts(ctx context.Context, nodeID string, concepts []string) error {
	if nodeID == "" {
		return fmt.Errorf("node ID cannot be empty")
	}

	for _, concept := range concepts {
		concept = strings.ToLower(strings.TrimSpace(concept))
		if concept == "" {
			continue
		}

		if err := g.rdb.SAdd(ctx, nodeConceptsKey(g.instanceName, nodeID), concept).Err(); err != nil {
			return fmt.Errorf("failed to link concept %q to node: %w", concept, err)
		}

		if err := g.rdb.SAdd(ctx, conceptKey(g.instanceName, concept), nodeID).Err(); err != nil {
			return fmt.Errorf("failed to index node under concept %q: %w", concept, err)
		}
	}

	return nil
}

// NodesForConcept returns the decision node IDs linked to a concept.
func (g *RedisGraph) NodesForConcept(ctx context.Context, concept string) ([]string, error) {
	concept = strings.ToLower(strings.TrimSpace(concept))
	ids, err := g.rdb.SMembers(ctx, conceptKey(g.instanceName, concept)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read concept index: %w", err)
	}
	return ids, nil
}
