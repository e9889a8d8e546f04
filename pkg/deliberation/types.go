// Package deliberation defines the request/result contract of the Quorum
// council: what a caller submits, and what a finished round returns.
package deliberation

import (
	"fmt"
	"time"

	"github.com/dyluth/quorum/pkg/blackboard"
)

// ConsensusMethod selects how opinions are aggregated into a decision.
type ConsensusMethod string

const (
	// MethodWeighted weighs each opinion by confidence times the persona's
	// registry weight. The default.
	MethodWeighted ConsensusMethod = "weighted"

	// MethodMajority counts one vote per persona, ignoring confidence.
	MethodMajority ConsensusMethod = "majority"

	// MethodUnanimous succeeds only when every participating persona lands
	// in the same cluster; otherwise the result is an explicit no-consensus.
	MethodUnanimous ConsensusMethod = "unanimous"
)

// Validate checks if the ConsensusMethod is a valid enum value.
func (m ConsensusMethod) Validate() error {
	switch m {
	case MethodWeighted, MethodMajority, MethodUnanimous:
		return nil
	default:
		return fmt.Errorf("unknown consensus method: %q", m)
	}
}

// Request describes one deliberation. Immutable once dispatched.
type Request struct {
	Query            string            `json:"query"`                       // The question put to the council
	Context          map[string]string `json:"context,omitempty"`           // Arbitrary key/value context, scanned by personas for signals
	Topic            string            `json:"topic,omitempty"`             // Optional grouping key, applied as a board tag
	Personas         []string          `json:"personas,omitempty"`          // Explicit persona selection; empty means the full registry
	RequiredPersonas []string          `json:"required_personas,omitempty"` // Personas that must respond or the outcome is degraded
	Method           ConsensusMethod   `json:"method"`
	RoundTimeout     time.Duration     `json:"round_timeout"`   // Hard deadline for the whole round
	PersonaTimeout   time.Duration     `json:"persona_timeout"` // Budget for each persona task, including its recall
}

// Validate checks the request before a round is opened.
// Invalid requests fail fast; no round is opened for them.
func (r *Request) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}

	if err := r.Method.Validate(); err != nil {
		return err
	}

	if r.PersonaTimeout <= 0 {
		return fmt.Errorf("persona timeout must be positive, got %v", r.PersonaTimeout)
	}

	if r.RoundTimeout <= r.PersonaTimeout {
		return fmt.Errorf("round timeout (%v) must exceed persona timeout (%v)", r.RoundTimeout, r.PersonaTimeout)
	}

	return nil
}

// Result is the aggregated decision computed from one round's board.
//
// A Result with an empty Decision and zero Confidence is the explicit
// no-consensus shape: either zero personas participated, or the unanimous
// method was requested and the council disagreed. Callers must check for an
// empty decision rather than expect an error.
type Result struct {
	Decision         string            `json:"decision"`
	Confidence       float64           `json:"confidence"`      // [0,1]
	AgreementLevel   float64           `json:"agreement_level"` // Fraction of participants in the winning cluster
	Method           ConsensusMethod   `json:"method"`
	Supporting       []string          `json:"supporting_personas"`         // Members of the winning cluster, sorted
	Dissenting       []string          `json:"dissenting_personas"`         // All other participants, sorted
	AlternativeViews map[string]string `json:"alternative_views,omitempty"` // Representative persona -> recommendation per dissenting cluster
	Absent           []string          `json:"absent_personas,omitempty"`   // Personas that timed out or errored, sorted
}

// Reached reports whether the round produced a decision.
func (r *Result) Reached() bool {
	return r.Decision != ""
}

// Outcome is the full record of one deliberation: the request, the
// aggregated result, and every opinion that informed it. Immutable once
// constructed. Persistence is best-effort and asynchronous; the caller
// receives the outcome regardless of whether it was stored.
type Outcome struct {
	ID       string                     `json:"id"`       // UUID of this outcome
	RoundID  string                     `json:"round_id"` // The board round that produced it
	Request  Request                    `json:"request"`
	Result   Result                     `json:"result"`
	Opinions []blackboard.PersonaOpinion `json:"opinions"` // All usable opinions, in board sequence order

	// Absences maps each absent persona to the reason it produced no
	// usable opinion.
	Absences map[string]blackboard.AbsenceReason `json:"absences,omitempty"`

	// Degraded is set when a required persona ended up absent. The result
	// is still returned, with its confidence capped, but callers that need
	// strict guarantees must check this flag.
	Degraded bool `json:"degraded"`

	Duration    time.Duration `json:"duration"`      // Wall-clock round duration
	CreatedAtMs int64         `json:"created_at_ms"` // Unix timestamp in milliseconds
}
