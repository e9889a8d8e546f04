package persona

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dyluth/quorum/pkg/blackboard"
)

// Advisor is the shared scaffolding behind the built-in domain specialists.
// Each advisor scans the query, context, and recalled memory for the signal
// terms of its expertise domains and takes a stance from what it finds.
//
// Confidence is a function of how much of the advisor's expertise is
// actually engaged by the input: the fraction of its domains with at least
// one signal hit, plus a small bonus for the breadth of distinct hits. An
// advisor with no relevant signal in the input stays at its floor
// confidence no matter what it recommends.
type Advisor struct {
	identity Identity
	signals  map[string][]string // domain -> lower-case signal terms
	caution  []string            // terms that flip the stance from proceed to hold
	proceed  string              // recommendation when no caution term is present
	hold     string              // recommendation when caution terms are present
}

const (
	// confidenceFloor is what an advisor reports when none of its domains
	// are engaged by the input.
	confidenceFloor = 0.2

	// confidenceCeiling caps reported confidence; no heuristic match is
	// certainty.
	confidenceCeiling = 0.95

	coverageSpan = 0.55 // confidence gained from full domain coverage
	breadthStep  = 0.05 // confidence gained per distinct signal hit
	breadthCap   = 4    // distinct hits counted toward the breadth bonus
)

// NewAdvisor builds an advisor. If signals is nil, each domain name doubles
// as its own signal term. Returns an error for an invalid identity or empty
// stances.
func NewAdvisor(identity Identity, signals map[string][]string, caution []string, proceed, hold string) (*Advisor, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	if proceed == "" || hold == "" {
		return nil, fmt.Errorf("persona %q must define both a proceed and a hold recommendation", identity.ID)
	}

	if signals == nil {
		signals = make(map[string][]string, len(identity.Domains))
	}
	for _, domain := range identity.Domains {
		if len(signals[domain]) == 0 {
			signals[domain] = []string{strings.ToLower(domain)}
		}
	}

	lowered := make(map[string][]string, len(signals))
	for domain, terms := range signals {
		ls := make([]string, len(terms))
		for i, term := range terms {
			ls[i] = strings.ToLower(term)
		}
		lowered[domain] = ls
	}

	cautionLowered := make([]string, len(caution))
	for i, term := range caution {
		cautionLowered[i] = strings.ToLower(term)
	}

	return &Advisor{
		identity: identity,
		signals:  lowered,
		caution:  cautionLowered,
		proceed:  proceed,
		hold:     hold,
	}, nil
}

// Identity returns the advisor's fixed identity.
func (a *Advisor) Identity() Identity {
	return a.identity
}

// Analyze produces the advisor's opinion for one round.
// Safe for concurrent use; the advisor carries no mutable state.
func (a *Advisor) Analyze(ctx context.Context, in Input) (*blackboard.PersonaOpinion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("persona %s: query is empty", a.identity.ID)
	}

	corpus := buildCorpus(in)

	matchedDomains := 0
	var hits []string
	for _, domain := range a.identity.Domains {
		domainHit := false
		for _, term := range a.signals[domain] {
			if strings.Contains(corpus, term) {
				domainHit = true
				hits = append(hits, term)
			}
		}
		if domainHit {
			matchedDomains++
		}
	}
	hits = dedupe(hits)

	var cautionHits []string
	for _, term := range a.caution {
		if strings.Contains(corpus, term) {
			cautionHits = append(cautionHits, term)
		}
	}
	cautionHits = dedupe(cautionHits)

	coverage := float64(matchedDomains) / float64(len(a.identity.Domains))
	breadth := len(hits)
	if breadth > breadthCap {
		breadth = breadthCap
	}

	confidence := confidenceFloor + coverageSpan*coverage + breadthStep*float64(breadth)
	if confidence > confidenceCeiling {
		confidence = confidenceCeiling
	}

	recommendation := a.proceed
	if len(cautionHits) > 0 {
		recommendation = a.hold
	}

	opinion := &blackboard.PersonaOpinion{
		PersonaID:      a.identity.ID,
		Recommendation: recommendation,
		Reasoning:      a.reasoning(matchedDomains, hits, cautionHits),
		Confidence:     confidence,
		Priority:       priorityFor(coverage, len(cautionHits)),
		ProducedAtMs:   time.Now().UnixMilli(),
	}

	for _, term := range cautionHits {
		opinion.Concerns = append(opinion.Concerns, fmt.Sprintf("%s flagged %q in the request", a.identity.Name, term))
	}
	for _, term := range hits {
		opinion.Opportunities = append(opinion.Opportunities, fmt.Sprintf("relevant %s signal: %q", a.identity.ID, term))
	}

	return opinion, nil
}

// reasoning renders a short explanation of how the stance was reached.
func (a *Advisor) reasoning(matchedDomains int, hits, cautionHits []string) string {
	if matchedDomains == 0 {
		return fmt.Sprintf("%s found no signals for its domains (%s); opinion offered at floor confidence",
			a.identity.Name, strings.Join(a.identity.Domains, ", "))
	}

	base := fmt.Sprintf("%s matched %d of %d domains via signals [%s]",
		a.identity.Name, matchedDomains, len(a.identity.Domains), strings.Join(hits, ", "))

	if len(cautionHits) > 0 {
		return base + fmt.Sprintf("; caution terms [%s] shift the stance to holding", strings.Join(cautionHits, ", "))
	}

	return base
}

// priorityFor maps signal strength to an opinion priority.
func priorityFor(coverage float64, cautionCount int) blackboard.Priority {
	switch {
	case cautionCount >= 2:
		return blackboard.PriorityCritical
	case cautionCount == 1:
		return blackboard.PriorityHigh
	case coverage == 0:
		return blackboard.PriorityLow
	default:
		return blackboard.PriorityMedium
	}
}

// buildCorpus flattens the input into one lower-case string for term
// matching. Context keys participate too: a key like "security_review" is a
// signal even with an empty value.
func buildCorpus(in Input) string {
	var sb strings.Builder
	sb.WriteString(in.Query)

	keys := make([]string, 0, len(in.Context))
	for key := range in.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		sb.WriteByte(' ')
		sb.WriteString(key)
		sb.WriteByte(' ')
		sb.WriteString(in.Context[key])
	}

	for _, snippet := range in.Recall {
		sb.WriteByte(' ')
		sb.WriteString(snippet)
	}

	return strings.ToLower(sb.String())
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	var out []string
	for _, term := range terms {
		if !seen[term] {
			seen[term] = true
			out = append(out, term)
		}
	}
	return out
}
