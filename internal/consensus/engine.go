// Package consensus aggregates one round's blackboard entries into a single
// weighted decision with a measurable agreement level.
package consensus

import (
	"sort"
	"strings"

	"github.com/dyluth/quorum/pkg/blackboard"
	"github.com/dyluth/quorum/pkg/deliberation"
)

// Engine computes consensus results. It is stateless apart from the fixed
// per-persona priority weights taken from the registry at construction, so
// one engine can serve concurrent rounds.
type Engine struct {
	weights map[string]float64 // persona ID -> priority weight
}

// New creates a consensus engine with the given persona priority weights.
// Personas missing from the map get weight 1.0.
func New(weights map[string]float64) *Engine {
	return &Engine{weights: weights}
}

// cluster groups opinions whose normalized recommendations are equal.
type cluster struct {
	rec     string   // representative recommendation (earliest posted, original casing)
	members []string // persona IDs in board sequence order
	weight  float64  // sum of confidence * persona weight
	count   int
	minSeq  int64 // lowest board sequence number in the cluster; tie-break key
}

// Aggregate drains the round's entries and computes the consensus result.
//
// Opinions are clustered by case-insensitive, whitespace-trimmed
// recommendation equality. Absence markers are excluded from all weights and
// denominators but reported in Result.Absent. Given the same entries with
// the same sequence numbers, Aggregate is fully deterministic: ties between
// equal-scoring clusters go to the cluster containing the earliest-posted
// opinion.
func (e *Engine) Aggregate(entries []blackboard.Entry, method deliberation.ConsensusMethod) deliberation.Result {
	var absent []string
	clusters := make(map[string]*cluster)
	order := make([]string, 0) // cluster keys in first-seen order

	totalWeight := 0.0
	totalCount := 0

	for _, entry := range entries {
		switch entry.Kind {
		case blackboard.EntryKindAbsence:
			absent = append(absent, entry.AuthorID)

		case blackboard.EntryKindOpinion:
			op := entry.Opinion
			key := normalizeRecommendation(op.Recommendation)
			w := op.Confidence * e.weight(op.PersonaID)

			c, ok := clusters[key]
			if !ok {
				c = &cluster{rec: op.Recommendation, minSeq: entry.Seq}
				clusters[key] = c
				order = append(order, key)
			}
			c.members = append(c.members, op.PersonaID)
			c.weight += w
			c.count++
			if entry.Seq < c.minSeq {
				c.minSeq = entry.Seq
			}

			totalWeight += w
			totalCount++
		}
	}

	sort.Strings(absent)

	result := deliberation.Result{
		Method:     method,
		Supporting: []string{},
		Dissenting: []string{},
		Absent:     absent,
	}

	// Zero participating personas: explicit no-consensus shape.
	if totalCount == 0 {
		return result
	}

	ranked := rankClusters(clusters, order, method)

	if method == deliberation.MethodUnanimous && len(ranked) > 1 {
		// Disagreement under unanimous: no winner is forced. Agreement
		// still reports how close the council came, measured by the
		// largest cluster by headcount, not by weight.
		largest := 0
		for _, c := range ranked {
			if c.count > largest {
				largest = c.count
			}
		}
		result.AgreementLevel = float64(largest) / float64(totalCount)
		return result
	}

	winner := ranked[0]

	result.Decision = winner.rec
	result.AgreementLevel = float64(winner.count) / float64(totalCount)

	switch method {
	case deliberation.MethodWeighted, deliberation.MethodUnanimous:
		if totalWeight > 0 {
			result.Confidence = winner.weight / totalWeight
		}
	case deliberation.MethodMajority:
		result.Confidence = float64(winner.count) / float64(totalCount)
	}

	result.Supporting = append(result.Supporting, winner.members...)
	sort.Strings(result.Supporting)

	for _, c := range ranked[1:] {
		result.Dissenting = append(result.Dissenting, c.members...)
		if result.AlternativeViews == nil {
			result.AlternativeViews = make(map[string]string)
		}
		// One representative view per dissenting cluster, keyed by its
		// earliest-posted member.
		result.AlternativeViews[c.members[0]] = c.rec
	}
	sort.Strings(result.Dissenting)

	return result
}

// rankClusters orders clusters best-first by the method's score, breaking
// ties by lowest sequence number (earliest posted wins).
func rankClusters(clusters map[string]*cluster, order []string, method deliberation.ConsensusMethod) []*cluster {
	ranked := make([]*cluster, 0, len(clusters))
	for _, key := range order {
		ranked = append(ranked, clusters[key])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		var scoreA, scoreB float64
		if method == deliberation.MethodMajority {
			scoreA, scoreB = float64(a.count), float64(b.count)
		} else {
			scoreA, scoreB = a.weight, b.weight
		}

		if scoreA != scoreB {
			return scoreA > scoreB
		}
		return a.minSeq < b.minSeq
	})

	return ranked
}

// weight returns the persona's fixed priority weight, defaulting to 1.0.
func (e *Engine) weight(personaID string) float64 {
	if w, ok := e.weights[personaID]; ok && w > 0 {
		return w
	}
	return 1.0
}

// normalizeRecommendation is the baseline clustering rule: lower-case,
// trimmed, inner whitespace collapsed. Deliberately not semantic similarity.
func normalizeRecommendation(rec string) string {
	return strings.Join(strings.Fields(strings.ToLower(rec)), " ")
}
