package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/quorum/internal/memory"
	"github.com/dyluth/quorum/internal/persona"
	"github.com/dyluth/quorum/pkg/blackboard"
	"github.com/dyluth/quorum/pkg/deliberation"
)

// fakePersona is a scripted council member: fixed stance, optional delay,
// optional failure mode. Safe for concurrent rounds like the real contract
// requires.
type fakePersona struct {
	id             string
	weight         float64
	recommendation string
	confidence     float64
	delay          time.Duration
	err            error
	panics         bool

	mu        sync.Mutex
	lastInput persona.Input
}

func (p *fakePersona) Identity() persona.Identity {
	weight := p.weight
	if weight == 0 {
		weight = 1.0
	}
	return persona.Identity{
		ID:      p.id,
		Name:    "Fake " + p.id,
		Domains: []string{"testing"},
		Weight:  weight,
	}
}

func (p *fakePersona) Analyze(ctx context.Context, in persona.Input) (*blackboard.PersonaOpinion, error) {
	p.mu.Lock()
	p.lastInput = in
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.panics {
		panic("scripted failure")
	}

	if p.err != nil {
		return nil, p.err
	}

	return &blackboard.PersonaOpinion{
		PersonaID:      p.id,
		Recommendation: p.recommendation,
		Reasoning:      "scripted stance",
		Confidence:     p.confidence,
		Priority:       blackboard.PriorityMedium,
	}, nil
}

func (p *fakePersona) recordedInput() persona.Input {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastInput
}

// recordingStore is a memory.Store that serves canned recall and records
// every Store call.
type recordingStore struct {
	mu       sync.Mutex
	recall   map[string][]memory.Snippet // pool -> snippets
	stored   []string
	storeErr error
}

func (s *recordingStore) Recall(ctx context.Context, personaID, query string, contextMap map[string]string, limit int) ([]memory.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recall[personaID], nil
}

func (s *recordingStore) Store(ctx context.Context, personaID, content string, contextMap map[string]string, importance, valence float64, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return s.storeErr
	}
	s.stored = append(s.stored, content)
	return nil
}

func (s *recordingStore) storedContents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.stored...)
}

// recordingGraph is a knowledge.Graph that records nodes and concept links.
type recordingGraph struct {
	mu       sync.Mutex
	nodes    []*deliberation.Outcome
	concepts map[string][]string
}

func (g *recordingGraph) AddDeliberationNode(ctx context.Context, outcome *deliberation.Outcome) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes = append(g.nodes, outcome)
	return "node-1", nil
}

func (g *recordingGraph) LinkConcepts(ctx context.Context, nodeID string, concepts []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.concepts == nil {
		g.concepts = make(map[string][]string)
	}
	g.concepts[nodeID] = append(g.concepts[nodeID], concepts...)
	return nil
}

func (g *recordingGraph) nodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// setupEngine builds an engine over the given fakes with no-op persistence.
func setupEngine(t *testing.T, fakes ...*fakePersona) *Engine {
	t.Helper()

	registry := persona.NewRegistry()
	for _, f := range fakes {
		require.NoError(t, registry.Register(f))
	}

	return NewEngine(registry, nil, nil, "test-instance")
}

// testRequest returns a request with timeouts short enough for tests.
func testRequest() deliberation.Request {
	return deliberation.Request{
		Query:          "should we split the billing module?",
		Topic:          "billing",
		Method:         deliberation.MethodWeighted,
		RoundTimeout:   2 * time.Second,
		PersonaTimeout: 500 * time.Millisecond,
	}
}

func TestDeliberate_WeightedConsensus(t *testing.T) {
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.8},
		&fakePersona{id: "guardian", recommendation: "proceed", confidence: 0.6},
		&fakePersona{id: "skeptic", recommendation: "hold", confidence: 0.9},
	)

	outcome, err := engine.Deliberate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "proceed", outcome.Result.Decision)
	assert.InDelta(t, (0.8+0.6)/(0.8+0.6+0.9), outcome.Result.Confidence, 1e-9)
	assert.InDelta(t, 2.0/3.0, outcome.Result.AgreementLevel, 1e-9)
	assert.Equal(t, []string{"architect", "guardian"}, outcome.Result.Supporting)
	assert.Equal(t, []string{"skeptic"}, outcome.Result.Dissenting)
	assert.Len(t, outcome.Opinions, 3)
	assert.Empty(t, outcome.Absences)
	assert.False(t, outcome.Degraded)
	assert.NotEmpty(t, outcome.ID)
	assert.NotEmpty(t, outcome.RoundID)
	assert.NotZero(t, outcome.CreatedAtMs)
}

func TestDeliberate_RequiredPersonaAbsentDegradesOutcome(t *testing.T) {
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.9},
		&fakePersona{id: "guardian", recommendation: "proceed", confidence: 0.9, delay: 10 * time.Second},
		&fakePersona{id: "skeptic", recommendation: "proceed", confidence: 0.9},
	)

	req := testRequest()
	req.RequiredPersonas = []string{"guardian"}
	req.PersonaTimeout = 100 * time.Millisecond
	req.RoundTimeout = time.Second

	outcome, err := engine.Deliberate(context.Background(), req)
	require.NoError(t, err)

	// The remaining council still agrees, but a missing required persona
	// marks the outcome degraded and caps its confidence.
	assert.Equal(t, "proceed", outcome.Result.Decision)
	assert.True(t, outcome.Degraded)
	assert.LessOrEqual(t, outcome.Result.Confidence, 0.5)
	assert.Equal(t, []string{"guardian"}, outcome.Result.Absent)
	assert.Contains(t, outcome.Absences, "guardian")
	assert.Len(t, outcome.Opinions, 2)
}

func TestDeliberate_AllPersonasTimeOut(t *testing.T) {
	slow := 10 * time.Second
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.9, delay: slow},
		&fakePersona{id: "guardian", recommendation: "proceed", confidence: 0.9, delay: slow},
	)

	req := testRequest()
	req.PersonaTimeout = 50 * time.Millisecond
	req.RoundTimeout = 250 * time.Millisecond

	start := time.Now()
	outcome, err := engine.Deliberate(context.Background(), req)
	require.NoError(t, err)

	// An empty council is still a valid outcome: explicit no-consensus with
	// every persona accounted for as absent.
	assert.False(t, outcome.Result.Reached())
	assert.Equal(t, "", outcome.Result.Decision)
	assert.Equal(t, 0.0, outcome.Result.Confidence)
	assert.Equal(t, []string{"architect", "guardian"}, outcome.Result.Absent)
	assert.Len(t, outcome.Absences, 2)
	assert.Empty(t, outcome.Opinions)

	assert.Less(t, time.Since(start), 2*time.Second, "round must not wait out slow personas")
}

func TestDeliberate_PersonaErrorBecomesAbsence(t *testing.T) {
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.8},
		&fakePersona{id: "guardian", err: errors.New("backend unavailable")},
	)

	outcome, err := engine.Deliberate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, blackboard.AbsenceError, outcome.Absences["guardian"])
	assert.Equal(t, []string{"guardian"}, outcome.Result.Absent)
	assert.Len(t, outcome.Opinions, 1)
}

func TestDeliberate_PersonaPanicBecomesAbsence(t *testing.T) {
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.8},
		&fakePersona{id: "guardian", panics: true},
	)

	outcome, err := engine.Deliberate(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, blackboard.AbsenceError, outcome.Absences["guardian"])
	assert.Equal(t, "proceed", outcome.Result.Decision)
}

func TestDeliberate_PersonaSubset(t *testing.T) {
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.8},
		&fakePersona{id: "guardian", recommendation: "hold", confidence: 0.8},
		&fakePersona{id: "skeptic", recommendation: "hold", confidence: 0.8},
	)

	req := testRequest()
	req.Personas = []string{"architect"}

	outcome, err := engine.Deliberate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "proceed", outcome.Result.Decision)
	assert.Len(t, outcome.Opinions, 1)
	assert.Empty(t, outcome.Absences)
}

func TestDeliberate_ValidationErrors(t *testing.T) {
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.8},
	)

	tests := []struct {
		name   string
		mutate func(*deliberation.Request)
	}{
		{
			name:   "empty query",
			mutate: func(r *deliberation.Request) { r.Query = "" },
		},
		{
			name:   "unknown persona",
			mutate: func(r *deliberation.Request) { r.Personas = []string{"oracle"} },
		},
		{
			name: "required persona outside selection",
			mutate: func(r *deliberation.Request) {
				r.Personas = []string{"architect"}
				r.RequiredPersonas = []string{"guardian"}
			},
		},
		{
			name:   "unknown method",
			mutate: func(r *deliberation.Request) { r.Method = "plurality" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest()
			tt.mutate(&req)

			_, err := engine.Deliberate(context.Background(), req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}

	t.Run("empty registry", func(t *testing.T) {
		empty := NewEngine(persona.NewRegistry(), nil, nil, "test-instance")
		_, err := empty.Deliberate(context.Background(), testRequest())
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})
}

func TestDeliberate_RecallEnrichesPersonaInput(t *testing.T) {
	architect := &fakePersona{id: "architect", recommendation: "proceed", confidence: 0.8}

	store := &recordingStore{recall: map[string][]memory.Snippet{
		"architect": {{Content: "the architect held last time"}},
		"council":   {{Content: "prior billing split was approved"}},
	}}

	registry := persona.NewRegistry()
	require.NoError(t, registry.Register(architect))
	engine := NewEngine(registry, store, nil, "test-instance")

	_, err := engine.Deliberate(context.Background(), testRequest())
	require.NoError(t, err)

	// The persona sees its own pool plus the shared council pool.
	recall := architect.recordedInput().Recall
	assert.Contains(t, recall, "the architect held last time")
	assert.Contains(t, recall, "prior billing split was approved")
}

func TestDeliberate_PersistsOutcomeAsynchronously(t *testing.T) {
	store := &recordingStore{}
	graph := &recordingGraph{}

	registry := persona.NewRegistry()
	require.NoError(t, registry.Register(&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.8}))
	engine := NewEngine(registry, store, graph, "test-instance")

	outcome, err := engine.Deliberate(context.Background(), testRequest())
	require.NoError(t, err)

	// Persistence is detached from the call; wait for it to land.
	require.Eventually(t, func() bool {
		return graph.nodeCount() == 1 && len(store.storedContents()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	graph.mu.Lock()
	node := graph.nodes[0]
	concepts := graph.concepts["node-1"]
	graph.mu.Unlock()

	assert.Equal(t, outcome.ID, node.ID)
	assert.Contains(t, concepts, "billing")

	stored := store.storedContents()
	assert.Contains(t, stored[0], outcome.Result.Decision)
}

func TestDeliberate_ProgressSinkSeesEverySettlement(t *testing.T) {
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.8},
		&fakePersona{id: "guardian", err: errors.New("backend unavailable")},
		&fakePersona{id: "skeptic", recommendation: "hold", confidence: 0.7},
	)

	events := make(chan Settlement, 16)
	engine.SetProgressSink(func(s Settlement) {
		events <- s
	})

	outcome, err := engine.Deliberate(context.Background(), testRequest())
	require.NoError(t, err)

	seen := make(map[string]Settlement)
	for len(seen) < 3 {
		select {
		case s := <-events:
			seen[s.PersonaID] = s
		case <-time.After(2 * time.Second):
			t.Fatalf("progress sink saw %d of 3 settlements", len(seen))
		}
	}

	assert.NotNil(t, seen["architect"].Opinion)
	assert.Nil(t, seen["guardian"].Opinion)
	assert.Equal(t, blackboard.AbsenceError, seen["guardian"].Absence)
	assert.Equal(t, outcome.RoundID, seen["architect"].RoundID)
}

func TestDeliberate_DeadlineRaceSettlesEveryPersonaOnce(t *testing.T) {
	// Persona and round deadlines nearly coincide, so each task's own
	// absence post races the collector's deadline sweep. Whoever wins the
	// board write, the sink must see every persona exactly once.
	slow := 10 * time.Second
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.9, delay: slow},
		&fakePersona{id: "guardian", recommendation: "proceed", confidence: 0.9, delay: slow},
		&fakePersona{id: "operator", recommendation: "proceed", confidence: 0.9, delay: slow},
		&fakePersona{id: "skeptic", recommendation: "proceed", confidence: 0.9, delay: slow},
	)

	events := make(chan Settlement, 16)
	engine.SetProgressSink(func(s Settlement) {
		events <- s
	})

	req := testRequest()
	req.PersonaTimeout = 150 * time.Millisecond
	req.RoundTimeout = 151 * time.Millisecond

	outcome, err := engine.Deliberate(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, outcome.Absences, 4)

	seen := make(map[string]int)
	for count := 0; count < 4; count++ {
		select {
		case s := <-events:
			seen[s.PersonaID]++
			assert.Nil(t, s.Opinion)
		case <-time.After(2 * time.Second):
			t.Fatalf("progress sink saw %d of 4 settlements: %v", count, seen)
		}
	}

	// No persona is reported twice, even by a late echo.
	select {
	case s := <-events:
		t.Fatalf("extra settlement for %s", s.PersonaID)
	case <-time.After(200 * time.Millisecond):
	}

	for _, id := range []string{"architect", "guardian", "operator", "skeptic"} {
		assert.Equal(t, 1, seen[id], "persona %s settled %d times", id, seen[id])
	}
}

func TestDeliberate_ConcurrentRounds(t *testing.T) {
	engine := setupEngine(t,
		&fakePersona{id: "architect", recommendation: "proceed", confidence: 0.8},
		&fakePersona{id: "guardian", recommendation: "proceed", confidence: 0.6},
	)

	const rounds = 8

	var wg sync.WaitGroup
	outcomes := make([]*deliberation.Outcome, rounds)

	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := engine.Deliberate(context.Background(), testRequest())
			assert.NoError(t, err)
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	roundIDs := make(map[string]bool, rounds)
	for _, outcome := range outcomes {
		require.NotNil(t, outcome)
		assert.Equal(t, "proceed", outcome.Result.Decision)
		assert.Len(t, outcome.Opinions, 2)
		assert.False(t, roundIDs[outcome.RoundID], "round ID reused across rounds")
		roundIDs[outcome.RoundID] = true
	}
}

func TestConceptsFromOutcome(t *testing.T) {
	outcome := &deliberation.Outcome{
		Request: deliberation.Request{
			Query: "Should we split the billing module into separate services?",
			Topic: "Billing",
		},
	}

	concepts := conceptsFromOutcome(outcome)

	assert.Equal(t, "billing", concepts[0], "topic leads and is normalized")
	assert.Contains(t, concepts, "module")
	assert.Contains(t, concepts, "services")
	assert.NotContains(t, concepts, "we", "short words are not concepts")
	assert.LessOrEqual(t, len(concepts), 8)
}
