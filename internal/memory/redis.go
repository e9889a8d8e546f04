package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key pattern helpers
//
// All keys are namespaced by instance name so multiple Quorum engines can
// safely coexist on a single Redis server.
//
// Memory hash:  quorum:{instance}:memory:{memory_id}
// Persona index: quorum:{instance}:memory_index:{persona_id} (ZSET, score = importance)

// memoryKey returns the Redis key for a stored memory.
func memoryKey(instanceName, memoryID string) string {
	return fmt.Sprintf("quorum:%s:memory:%s", instanceName, memoryID)
}

// memoryIndexKey returns the Redis key for a persona's memory index ZSET.
func memoryIndexKey(instanceName, personaID string) string {
	return fmt.Sprintf("quorum:%s:memory_index:%s", instanceName, personaID)
}

// recallScanLimit bounds how many candidates Recall pulls from the
// importance index before relevance ranking.
const recallScanLimit = 64

// RedisStore is the Redis-backed Store implementation. Memories are stored
// as JSON in per-memory keys, indexed per persona by importance. Recall
// ranks the most important candidates by term overlap with the query plus
// context.
//
// The store is safe for concurrent use.
type RedisStore struct {
	rdb          *redis.Client
	instanceName string
}

// NewRedisStore creates a memory store for the given instance.
// Returns an error if instanceName is empty.
func NewRedisStore(redisOpts *redis.Options, instanceName string) (*RedisStore, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &RedisStore{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Store persists one memory and indexes it for the persona.
func (s *RedisStore) Store(ctx context.Context, personaID, content string, contextMap map[string]string, importance, valence float64, tags []string) error {
	if personaID == "" {
		return fmt.Errorf("persona ID cannot be empty")
	}

	if content == "" {
		return fmt.Errorf("content cannot be empty")
	}

	if importance < 0 || importance > 1 {
		return fmt.Errorf("importance must be in [0,1], got %v", importance)
	}

	snippet := Snippet{
		ID:          uuid.New().String(),
		PersonaID:   personaID,
		Content:     content,
		Importance:  importance,
		Valence:     valence,
		Tags:        tags,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	payload, err := json.Marshal(snippet)
	if err != nil {
		return fmt.Errorf("failed to serialize memory: %w", err)
	}

	key := memoryKey(s.instanceName, snippet.ID)
	if err := s.rdb.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write memory to Redis: %w", err)
	}

	indexKey := memoryIndexKey(s.instanceName, personaID)
	z := redis.Z{Score: importance, Member: snippet.ID}
	if err := s.rdb.ZAdd(ctx, indexKey, z).Err(); err != nil {
		return fmt.Errorf("failed to index memory: %w", err)
	}

	return nil
}

// Recall returns up to limit snippets for the persona, ranked by term
// overlap with the query and context, then by importance.
func (s *RedisStore) Recall(ctx context.Context, personaID, query string, contextMap map[string]string, limit int) ([]Snippet, error) {
	if limit <= 0 {
		return nil, nil
	}

	indexKey := memoryIndexKey(s.instanceName, personaID)
	ids, err := s.rdb.ZRevRange(ctx, indexKey, 0, recallScanLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory index: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	terms := queryTerms(query, contextMap)

	type scored struct {
		snippet Snippet
		score   float64
	}

	candidates := make([]scored, 0, len(ids))
	for _, id := range ids {
		payload, err := s.rdb.Get(ctx, memoryKey(s.instanceName, id)).Result()
		if err == redis.Nil {
			// Index entry outlived the memory; skip.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read memory %s: %w", id, err)
		}

		var snippet Snippet
		if err := json.Unmarshal([]byte(payload), &snippet); err != nil {
			return nil, fmt.Errorf("failed to deserialize memory %s: %w", id, err)
		}

		candidates = append(candidates, scored{
			snippet: snippet,
			score:   relevance(terms, snippet.Content) + snippet.Importance,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].snippet.CreatedAtMs > candidates[j].snippet.CreatedAtMs
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	snippets := make([]Snippet, len(candidates))
	for i, c := range candidates {
		snippets[i] = c.snippet
	}

	return snippets, nil
}

// queryTerms extracts the lower-case word set of the query and context.
func queryTerms(query string, contextMap map[string]string) map[string]bool {
	terms := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(query)) {
		terms[word] = true
	}
	for key, value := range contextMap {
		for _, word := range strings.Fields(strings.ToLower(key + " " + value)) {
			terms[word] = true
		}
	}
	return terms
}

// relevance counts how many query terms appear in the content.
func relevance(terms map[string]bool, content string) float64 {
	hits := 0.0
	for _, word := range strings.Fields(strings.ToLower(content)) {
		if terms[word] {
			hits++
		}
	}
	return hits
}
