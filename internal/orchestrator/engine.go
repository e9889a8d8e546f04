// Package orchestrator owns the deliberation lifecycle: it enriches a
// request with recalled memory, fans the query out to the council, closes
// the round at its deadline, invokes the consensus engine exactly once, and
// persists the outcome best-effort.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dyluth/quorum/internal/consensus"
	"github.com/dyluth/quorum/internal/knowledge"
	"github.com/dyluth/quorum/internal/memory"
	"github.com/dyluth/quorum/internal/persona"
	"github.com/dyluth/quorum/pkg/blackboard"
	"github.com/dyluth/quorum/pkg/deliberation"
)

const (
	// authorOrchestrator is the entry author for system annotations.
	authorOrchestrator = "orchestrator"

	// sharedPoolID is the pseudo-persona under which round outcomes are
	// stored; recall merges this shared pool into every persona's context.
	sharedPoolID = "council"

	// degradedConfidenceCap bounds the confidence of a degraded outcome so
	// a round missing a required persona is never presented as a full
	// consensus.
	degradedConfidenceCap = 0.5

	// defaultRecallLimit is how many memory snippets are recalled per pool
	// for each persona.
	defaultRecallLimit = 5

	// persistTimeout bounds the detached fire-and-forget persistence call.
	persistTimeout = 10 * time.Second

	// progressBuffer is the progress sink channel capacity. Events beyond
	// it are dropped rather than ever blocking the round.
	progressBuffer = 64
)

// Settlement is the progress event fired once per persona as it settles,
// with either its opinion or the reason it is absent.
type Settlement struct {
	RoundID   string
	PersonaID string
	Opinion   *blackboard.PersonaOpinion // nil when the persona is absent
	Absence   blackboard.AbsenceReason   // set when Opinion is nil
	Detail    string                     // failure diagnostics
}

// ProgressFunc consumes settlement events from the optional progress sink.
type ProgressFunc func(Settlement)

// Engine is the deliberation orchestrator. It owns the blackboard and the
// consensus engine, and consumes the memory and knowledge collaborators
// through their contracts only. Safe for concurrent Deliberate calls;
// unrelated rounds never contend beyond the board's round map.
type Engine struct {
	board        *blackboard.Board
	registry     *persona.Registry
	consensus    *consensus.Engine
	memory       memory.Store
	graph        knowledge.Graph
	instanceName string
	recallLimit  int
	progress     chan Settlement
}

// NewEngine creates an orchestrator over the given persona registry.
// Nil collaborators default to the no-op implementations.
func NewEngine(registry *persona.Registry, mem memory.Store, graph knowledge.Graph, instanceName string) *Engine {
	if mem == nil {
		mem = memory.NullStore{}
	}
	if graph == nil {
		graph = knowledge.NullGraph{}
	}

	return &Engine{
		board:        blackboard.NewBoard(),
		registry:     registry,
		consensus:    consensus.New(registry.Weights()),
		memory:       mem,
		graph:        graph,
		instanceName: instanceName,
		recallLimit:  defaultRecallLimit,
	}
}

// SetProgressSink installs the optional progress callback. Emission is
// buffered and asynchronous: a slow consumer drops events, it never blocks
// the round. Must be called before the first Deliberate.
func (e *Engine) SetProgressSink(fn ProgressFunc) {
	if fn == nil {
		return
	}

	e.progress = make(chan Settlement, progressBuffer)
	go func() {
		for s := range e.progress {
			fn(s)
		}
	}()
}

// Deliberate runs one full round for the request and returns its outcome.
//
// Only validation failures return an error; every validated request yields
// an outcome, even when all personas end up absent. The call never blocks
// much past the request's round timeout: at the deadline still-running
// personas are marked absent and their eventual results are discarded.
func (e *Engine) Deliberate(ctx context.Context, req deliberation.Request) (*deliberation.Outcome, error) {
	selected, err := e.selectPersonas(req)
	if err != nil {
		return nil, err
	}

	roundID := e.board.OpenRound()
	start := time.Now()

	var tags []string
	if req.Topic != "" {
		tags = []string{req.Topic}
	}

	e.logEvent("round_opened", map[string]interface{}{
		"round_id": roundID,
		"topic":    req.Topic,
		"method":   string(req.Method),
		"personas": selected,
	})

	e.postAnnotation(roundID, tags, fmt.Sprintf("round opened with %d personas", len(selected)))

	// Fan out one task per persona. The settled channel is buffered to the
	// persona count so tasks can always deliver, even after the collector
	// has given up on them.
	roundCtx, cancelRound := context.WithTimeout(ctx, req.RoundTimeout)
	defer cancelRound()

	settled := make(chan Settlement, len(selected))
	for _, id := range selected {
		p, _ := e.registry.Get(id)
		go e.runPersona(roundCtx, roundID, p, req, tags, settled)
	}

	e.collectSettlements(roundCtx, roundID, selected, tags, settled)

	e.postAnnotation(roundID, tags, "round closed")
	if err := e.board.CloseRound(roundID); err != nil {
		// Round IDs come from OpenRound above; failure here is a bug.
		return nil, fmt.Errorf("failed to close round %s: %w", roundID, err)
	}

	entries, err := e.board.Read(roundID, blackboard.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to drain round %s: %w", roundID, err)
	}

	result := e.consensus.Aggregate(entries, req.Method)

	outcome := buildOutcome(roundID, req, result, entries, time.Since(start))
	if outcome.Degraded && outcome.Result.Confidence > degradedConfidenceCap {
		outcome.Result.Confidence = degradedConfidenceCap
	}

	e.logEvent("round_completed", map[string]interface{}{
		"round_id":        roundID,
		"decision":        outcome.Result.Decision,
		"confidence":      outcome.Result.Confidence,
		"agreement_level": outcome.Result.AgreementLevel,
		"absent":          outcome.Result.Absent,
		"degraded":        outcome.Degraded,
		"duration_ms":     outcome.Duration.Milliseconds(),
	})

	// Persistence is fire-and-forget: the caller gets the outcome without
	// waiting on the collaborators.
	go e.persistOutcome(outcome)

	e.board.DiscardRound(roundID)

	return outcome, nil
}

// selectPersonas resolves the request's persona selection against the
// registry. Selection is a pure function of request and registry; it does
// not change during the round.
func (e *Engine) selectPersonas(req deliberation.Request) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}

	selected := req.Personas
	if len(selected) == 0 {
		selected = e.registry.IDs()
	} else {
		for _, id := range selected {
			if _, ok := e.registry.Get(id); !ok {
				return nil, &ValidationError{Reason: fmt.Sprintf("unknown persona %q", id)}
			}
		}
	}

	if len(selected) == 0 {
		return nil, &ValidationError{Reason: "no personas registered"}
	}

	inSelection := make(map[string]bool, len(selected))
	for _, id := range selected {
		inSelection[id] = true
	}
	for _, id := range req.RequiredPersonas {
		if !inSelection[id] {
			return nil, &ValidationError{Reason: fmt.Sprintf("required persona %q is not in the selection", id)}
		}
	}

	return selected, nil
}

// collectSettlements waits until every dispatched persona has settled or the
// round deadline elapses, whichever comes first. At the deadline it posts
// absence markers for the stragglers; their eventual board writes are
// rejected by the duplicate-author and closed-round checks. Every persona
// produces exactly one progress event, even when its own settlement races
// the deadline.
func (e *Engine) collectSettlements(roundCtx context.Context, roundID string, selected, tags []string, settled <-chan Settlement) {
	remaining := make(map[string]bool, len(selected))
	for _, id := range selected {
		remaining[id] = true
	}

	// settle records one persona's settlement. Late echoes from tasks the
	// deadline branch already marked absent are dropped here, so the sink
	// never sees a persona twice.
	settle := func(s Settlement) {
		if !remaining[s.PersonaID] {
			return
		}
		delete(remaining, s.PersonaID)
		e.emitProgress(s)
	}

	for len(remaining) > 0 {
		select {
		case s := <-settled:
			settle(s)

		case <-roundCtx.Done():
			// Round deadline: everything still running is absent now.
			for len(remaining) > 0 {
				// Settlements that raced the deadline still count; drain
				// them before declaring anyone absent.
				select {
				case s := <-settled:
					settle(s)
					continue
				default:
				}

				var id string
				for _, candidate := range selected {
					if remaining[candidate] {
						id = candidate
						break
					}
				}

				detail := "still running at round deadline"
				_, err := e.board.Post(roundID, blackboard.Entry{
					AuthorID: id,
					Kind:     blackboard.EntryKindAbsence,
					Absence:  blackboard.AbsenceTimeout,
					Detail:   detail,
					Tags:     tags,
				})
				switch {
				case err == nil:
					settle(Settlement{
						RoundID:   roundID,
						PersonaID: id,
						Absence:   blackboard.AbsenceTimeout,
						Detail:    detail,
					})
				case blackboard.IsDuplicate(err):
					// The persona posted its own record first; its
					// settlement is in flight on the channel. Block for
					// the next one rather than losing the event. Each
					// task sends exactly one settlement, so this always
					// returns.
					settle(<-settled)
				default:
					log.Printf("[Orchestrator] Failed to post absence for %s in round %s: %v", id, roundID, err)
					delete(remaining, id)
				}
			}
			return
		}
	}
}

// emitProgress forwards a settlement to the sink without ever blocking.
func (e *Engine) emitProgress(s Settlement) {
	if e.progress == nil {
		return
	}

	select {
	case e.progress <- s:
	default:
		// Sink is saturated; drop rather than stall the round.
	}
}

// buildOutcome assembles the immutable outcome from the drained board.
func buildOutcome(roundID string, req deliberation.Request, result deliberation.Result, entries []blackboard.Entry, duration time.Duration) *deliberation.Outcome {
	outcome := &deliberation.Outcome{
		ID:          uuid.New().String(),
		RoundID:     roundID,
		Request:     req,
		Result:      result,
		Duration:    duration,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	for _, entry := range entries {
		switch entry.Kind {
		case blackboard.EntryKindOpinion:
			outcome.Opinions = append(outcome.Opinions, *entry.Opinion)
		case blackboard.EntryKindAbsence:
			if outcome.Absences == nil {
				outcome.Absences = make(map[string]blackboard.AbsenceReason)
			}
			outcome.Absences[entry.AuthorID] = entry.Absence
		}
	}

	for _, id := range req.RequiredPersonas {
		if _, absent := outcome.Absences[id]; absent {
			outcome.Degraded = true
			break
		}
	}

	return outcome
}

// persistOutcome stores the outcome via the memory and knowledge
// collaborators. Runs detached from the caller; failures are logged only.
func (e *Engine) persistOutcome(outcome *deliberation.Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	content := fmt.Sprintf("deliberation on %q: decision %q (confidence %.2f, agreement %.2f)",
		outcome.Request.Query, outcome.Result.Decision, outcome.Result.Confidence, outcome.Result.AgreementLevel)

	// Valence maps agreement onto [-1,1]: full agreement is a positive
	// memory, a split council a negative one.
	valence := outcome.Result.AgreementLevel*2 - 1

	var tags []string
	if outcome.Request.Topic != "" {
		tags = []string{outcome.Request.Topic}
	}

	if err := e.memory.Store(ctx, sharedPoolID, content, outcome.Request.Context, outcome.Result.Confidence, valence, tags); err != nil {
		log.Printf("[Orchestrator] Memory store failed for outcome %s: %v", outcome.ID, err)
	}

	nodeID, err := e.graph.AddDeliberationNode(ctx, outcome)
	if err != nil {
		log.Printf("[Orchestrator] Knowledge node creation failed for outcome %s: %v", outcome.ID, err)
		return
	}

	if nodeID == "" {
		return
	}

	if err := e.graph.LinkConcepts(ctx, nodeID, conceptsFromOutcome(outcome)); err != nil {
		log.Printf("[Orchestrator] Concept linking failed for outcome %s: %v", outcome.ID, err)
	}
}

// conceptsFromOutcome extracts the concept names a decision node links to:
// the topic plus the significant query terms.
func conceptsFromOutcome(outcome *deliberation.Outcome) []string {
	const maxConcepts = 8

	var concepts []string
	seen := make(map[string]bool)

	if topic := strings.ToLower(strings.TrimSpace(outcome.Request.Topic)); topic != "" {
		concepts = append(concepts, topic)
		seen[topic] = true
	}

	words := strings.Fields(strings.ToLower(outcome.Request.Query))
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	for _, word := range words {
		if len(concepts) >= maxConcepts {
			break
		}
		word = strings.Trim(word, ".,!?:;\"'()")
		if len(word) < 5 || seen[word] {
			continue
		}
		concepts = append(concepts, word)
		seen[word] = true
	}

	return concepts
}

// postAnnotation writes a system note to the round. Best-effort.
func (e *Engine) postAnnotation(roundID string, tags []string, detail string) {
	_, err := e.board.Post(roundID, blackboard.Entry{
		AuthorID: authorOrchestrator,
		Kind:     blackboard.EntryKindAnnotation,
		Detail:   detail,
		Tags:     tags,
	})
	if err != nil {
		log.Printf("[Orchestrator] Failed to annotate round %s: %v", roundID, err)
	}
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "orchestrator"
	data["event_type"] = eventType
	data["instance"] = e.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Orchestrator] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
