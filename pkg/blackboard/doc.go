// Package blackboard provides the round-scoped shared log at the heart of
// the Quorum deliberation engine.
//
// # Overview
//
// The blackboard implements the Blackboard architectural pattern: a shared
// workspace where independent personas collaborate by writing structured
// opinions that the consensus engine later reads as a whole. Unlike a
// process-wide singleton, the Board here is owned by the orchestrator and
// handed to persona tasks by reference, scoped to a single round.
//
// # Core concepts
//
// A round is one complete deliberation cycle over a single request,
// identified by a UUID round ID. All entries written during that cycle share
// the round ID; entries from different rounds are never mixed.
//
// Entries are append-only and immutable once posted. Each entry carries an
// opinion, an absence marker, or a system annotation, plus a set of tags for
// topic-scoped reads. Post assigns every entry a strictly increasing
// sequence number under the round's mutex, giving a total order on arrival
// that the consensus engine uses for deterministic tie-breaking.
//
// Absence markers keep the books balanced: before consensus runs, every
// dispatched persona has either exactly one opinion or an explicit absence
// on the board.
//
// # Lifecycle
//
//	board := blackboard.NewBoard()
//	roundID := board.OpenRound()
//
//	seq, err := board.Post(roundID, blackboard.Entry{
//		AuthorID: "architect",
//		Kind:     blackboard.EntryKindOpinion,
//		Opinion:  opinion,
//	})
//
//	board.CloseRound(roundID) // rejects all further writes
//	entries, err := board.Read(roundID, blackboard.Filter{Kind: blackboard.EntryKindOpinion})
//	board.DiscardRound(roundID) // once the outcome is built
//
// # Concurrency
//
// The Board guards its round map with one lock and each round with another,
// so unrelated rounds never contend. Posts within a round are linearized:
// two concurrent posts can never interleave partially or share a sequence
// number.
package blackboard
