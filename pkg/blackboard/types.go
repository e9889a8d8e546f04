package blackboard

import (
	"fmt"

	"github.com/google/uuid"
)

// Priority expresses how urgently a persona believes its recommendation
// should be acted on.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// AbsenceReason records why a persona produced no usable opinion for a round.
type AbsenceReason string

const (
	// AbsenceTimeout indicates the persona exceeded its per-persona deadline
	// or was still running when the round closed.
	AbsenceTimeout AbsenceReason = "timeout"

	// AbsenceError indicates the persona returned an error or panicked.
	AbsenceError AbsenceReason = "error"
)

// EntryKind identifies what an entry's payload carries.
type EntryKind string

const (
	// EntryKindOpinion carries a PersonaOpinion.
	EntryKindOpinion EntryKind = "opinion"

	// EntryKindAbsence is the explicit marker posted when a persona timed
	// out or errored. Absences carry no voting weight but keep the
	// one-record-per-persona-per-round invariant intact.
	EntryKindAbsence EntryKind = "absence"

	// EntryKindAnnotation carries a system note (round opened, round
	// closed). Annotations never participate in consensus.
	EntryKindAnnotation EntryKind = "annotation"
)

// PersonaOpinion is a single persona's structured position on a query.
// Opinions are immutable once posted to the board.
type PersonaOpinion struct {
	PersonaID      string   `json:"persona_id"`     // Registry ID of the authoring persona
	Recommendation string   `json:"recommendation"` // The position itself; clustered by normalized equality
	Reasoning      string   `json:"reasoning"`      // Why the persona holds this position
	Confidence     float64  `json:"confidence"`     // [0,1], varies with context relevance
	Concerns       []string `json:"concerns"`       // Ordered list of risks the persona sees
	Opportunities  []string `json:"opportunities"`  // Ordered list of upsides the persona sees
	Priority       Priority `json:"priority"`
	ProducedAtMs   int64    `json:"produced_at_ms"` // Unix timestamp in milliseconds
}

// Entry is one record on the blackboard. Exactly one payload field is
// populated, selected by Kind.
type Entry struct {
	RoundID  string          `json:"round_id"`
	AuthorID string          `json:"author_id"` // Persona ID, or "orchestrator" for annotations
	Kind     EntryKind       `json:"kind"`
	Opinion  *PersonaOpinion `json:"opinion,omitempty"`
	Absence  AbsenceReason   `json:"absence,omitempty"`
	Detail   string          `json:"detail,omitempty"` // Failure diagnostics or annotation text
	Tags     []string        `json:"tags,omitempty"`   // Topic labels used by Read filters
	Seq      int64           `json:"seq"`              // Assigned by Post; strictly increasing per round
}

// Filter narrows a Read. Zero-value fields match everything.
type Filter struct {
	Kind     EntryKind // Match entries of this kind only
	AuthorID string    // Match entries from this author only
	Tag      string    // Match entries carrying this tag
}

// Validate checks if the Priority is a valid enum value.
func (p Priority) Validate() error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return nil
	default:
		return fmt.Errorf("unknown priority: %q", p)
	}
}

// Validate checks if the AbsenceReason is a valid enum value.
func (r AbsenceReason) Validate() error {
	switch r {
	case AbsenceTimeout, AbsenceError:
		return nil
	default:
		return fmt.Errorf("unknown absence reason: %q", r)
	}
}

// Validate checks if the EntryKind is a valid enum value.
func (k EntryKind) Validate() error {
	switch k {
	case EntryKindOpinion, EntryKindAbsence, EntryKindAnnotation:
		return nil
	default:
		return fmt.Errorf("unknown entry kind: %q", k)
	}
}

// Validate checks if the PersonaOpinion has valid field values.
// Returns an error if any validation fails.
func (o *PersonaOpinion) Validate() error {
	if o.PersonaID == "" {
		return fmt.Errorf("persona ID cannot be empty")
	}

	if o.Recommendation == "" {
		return fmt.Errorf("recommendation cannot be empty")
	}

	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %v", o.Confidence)
	}

	if err := o.Priority.Validate(); err != nil {
		return fmt.Errorf("invalid priority: %w", err)
	}

	return nil
}

// Validate checks if the Entry is internally consistent: a known kind, a
// valid round ID, and the payload field matching the kind.
func (e *Entry) Validate() error {
	if !isValidUUID(e.RoundID) {
		return fmt.Errorf("invalid round ID: not a valid UUID")
	}

	if e.AuthorID == "" {
		return fmt.Errorf("author ID cannot be empty")
	}

	if err := e.Kind.Validate(); err != nil {
		return err
	}

	switch e.Kind {
	case EntryKindOpinion:
		if e.Opinion == nil {
			return fmt.Errorf("opinion entry has no opinion payload")
		}
		if err := e.Opinion.Validate(); err != nil {
			return fmt.Errorf("invalid opinion: %w", err)
		}
		if e.Opinion.PersonaID != e.AuthorID {
			return fmt.Errorf("opinion persona ID %q does not match entry author %q", e.Opinion.PersonaID, e.AuthorID)
		}

	case EntryKindAbsence:
		if err := e.Absence.Validate(); err != nil {
			return fmt.Errorf("invalid absence marker: %w", err)
		}
		if e.Opinion != nil {
			return fmt.Errorf("absence entry cannot carry an opinion payload")
		}

	case EntryKindAnnotation:
		if e.Detail == "" {
			return fmt.Errorf("annotation entry has no detail text")
		}
	}

	return nil
}

// Matches reports whether the entry satisfies the filter.
func (e *Entry) Matches(f Filter) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}

	if f.AuthorID != "" && e.AuthorID != f.AuthorID {
		return false
	}

	if f.Tag != "" {
		found := false
		for _, tag := range e.Tags {
			if tag == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
