package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/quorum/internal/persona"
	"github.com/dyluth/quorum/pkg/blackboard"
	"github.com/dyluth/quorum/pkg/deliberation"
)

// analyzeResult carries one persona's analysis back across the timeout
// boundary.
type analyzeResult struct {
	opinion *blackboard.PersonaOpinion
	err     error
}

// runPersona executes one persona task: recall, analysis under the
// per-persona timeout, and a single board write. A failure here never
// aborts the round; it becomes an absence marker with a reason code.
func (e *Engine) runPersona(roundCtx context.Context, roundID string, p persona.Persona, req deliberation.Request, tags []string, settled chan<- Settlement) {
	id := p.Identity().ID

	// The per-persona budget is a child of the round deadline, so a task
	// can never outlive the round but its own timeout cancels only itself.
	taskCtx, cancel := context.WithTimeout(roundCtx, req.PersonaTimeout)
	defer cancel()

	in := persona.Input{
		Query:   req.Query,
		Context: req.Context,
		Recall:  e.recallFor(taskCtx, id, req),
		// Single-pass protocol: personas do not see peers' opinions.
	}

	results := make(chan analyzeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- analyzeResult{err: fmt.Errorf("persona panicked: %v", r)}
			}
		}()

		opinion, err := p.Analyze(taskCtx, in)
		results <- analyzeResult{opinion: opinion, err: err}
	}()

	var res analyzeResult
	select {
	case res = <-results:
	case <-taskCtx.Done():
		e.settleAbsent(roundID, id, blackboard.AbsenceTimeout, "exceeded persona timeout", tags, settled)
		return
	}

	if res.err != nil {
		e.settleAbsent(roundID, id, blackboard.AbsenceError, res.err.Error(), tags, settled)
		return
	}

	opinion := res.opinion
	if opinion == nil || opinion.PersonaID != id {
		e.settleAbsent(roundID, id, blackboard.AbsenceError, "persona returned a malformed opinion", tags, settled)
		return
	}

	if opinion.ProducedAtMs == 0 {
		opinion.ProducedAtMs = time.Now().UnixMilli()
	}

	_, err := e.board.Post(roundID, blackboard.Entry{
		AuthorID: id,
		Kind:     blackboard.EntryKindOpinion,
		Opinion:  opinion,
		Tags:     tags,
	})
	if err != nil {
		// Closed round or an already-posted absence marker: the result
		// arrived too late and is discarded.
		if !blackboard.IsClosed(err) && !blackboard.IsDuplicate(err) {
			log.Printf("[Orchestrator] Failed to post opinion from %s in round %s: %v", id, roundID, err)
		}
		settled <- Settlement{RoundID: roundID, PersonaID: id, Absence: blackboard.AbsenceTimeout, Detail: "opinion arrived after round close"}
		return
	}

	settled <- Settlement{RoundID: roundID, PersonaID: id, Opinion: opinion}
}

// settleAbsent posts the persona's absence marker and reports the
// settlement.
func (e *Engine) settleAbsent(roundID, personaID string, reason blackboard.AbsenceReason, detail string, tags []string, settled chan<- Settlement) {
	e.logEvent("persona_absent", map[string]interface{}{
		"round_id":   roundID,
		"persona_id": personaID,
		"reason":     string(reason),
		"detail":     detail,
	})

	_, err := e.board.Post(roundID, blackboard.Entry{
		AuthorID: personaID,
		Kind:     blackboard.EntryKindAbsence,
		Absence:  reason,
		Detail:   detail,
		Tags:     tags,
	})
	if err != nil && !blackboard.IsClosed(err) && !blackboard.IsDuplicate(err) {
		log.Printf("[Orchestrator] Failed to post absence for %s in round %s: %v", personaID, roundID, err)
	}

	settled <- Settlement{RoundID: roundID, PersonaID: personaID, Absence: reason, Detail: detail}
}

// recallFor fetches memory snippets for a persona: its own pool plus the
// shared council pool. Recall failures are logged and treated as no extra
// context, never as fatal.
func (e *Engine) recallFor(ctx context.Context, personaID string, req deliberation.Request) []string {
	var texts []string

	for _, pool := range []string{personaID, sharedPoolID} {
		snippets, err := e.memory.Recall(ctx, pool, req.Query, req.Context, e.recallLimit)
		if err != nil {
			log.Printf("[Orchestrator] Recall failed for pool %s: %v", pool, err)
			continue
		}
		for _, s := range snippets {
			texts = append(texts, s.Content)
		}
	}

	return texts
}
