package blackboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrRoundNotFound is returned when the round ID is unknown or the
	// round has already been discarded.
	ErrRoundNotFound = errors.New("round not found")

	// ErrRoundClosed is returned by Post once CloseRound has been called.
	// Late writes from cancelled persona tasks land here and are discarded.
	ErrRoundClosed = errors.New("round is closed")

	// ErrDuplicateAuthor is returned by Post when the author already has an
	// opinion or absence marker in the round. The board enforces the
	// one-record-per-persona-per-round invariant; annotations are exempt.
	ErrDuplicateAuthor = errors.New("author already posted in this round")
)

// Board is the in-process blackboard. It owns one append-only log per round,
// keyed by round ID. The board itself only guards the round map; each round
// has its own mutex, so concurrent rounds never contend with each other.
//
// The board is ephemeral: it is not the long-term memory store. Once an
// outcome has been constructed the round's entries can be discarded with
// DiscardRound.
type Board struct {
	mu     sync.RWMutex
	rounds map[string]*round
}

// round holds the entries for a single deliberation round. The mutex
// linearizes posts so each entry receives a strictly increasing sequence
// number, which the consensus engine later uses for deterministic
// tie-breaking.
type round struct {
	mu      sync.Mutex
	closed  bool
	nextSeq int64
	entries []Entry
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{
		rounds: make(map[string]*round),
	}
}

// OpenRound allocates a fresh round and returns its ID.
// Round IDs are UUIDs and unique per deliberation.
func (b *Board) OpenRound() string {
	roundID := uuid.New().String()

	b.mu.Lock()
	b.rounds[roundID] = &round{nextSeq: 1}
	b.mu.Unlock()

	return roundID
}

// Post appends an entry to the round's log and returns the sequence number
// assigned to it. The entry is validated before being accepted; the caller's
// RoundID field must match roundID.
//
// Post is atomic: concurrent posts from different persona tasks never
// interleave partially. Returns ErrRoundClosed after CloseRound, which is
// how late results from cancelled tasks are rejected.
func (b *Board) Post(roundID string, e Entry) (int64, error) {
	r, err := b.round(roundID)
	if err != nil {
		return 0, err
	}

	e.RoundID = roundID
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("invalid entry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrRoundClosed
	}

	if e.Kind != EntryKindAnnotation {
		for _, existing := range r.entries {
			if existing.Kind != EntryKindAnnotation && existing.AuthorID == e.AuthorID {
				return 0, fmt.Errorf("%w: %s", ErrDuplicateAuthor, e.AuthorID)
			}
		}
	}

	e.Seq = r.nextSeq
	r.nextSeq++
	r.entries = append(r.entries, e)

	return e.Seq, nil
}

// Read returns the round's entries matching the filter, in sequence order.
// The returned slice is a copy; callers cannot mutate board state through it.
// Reads are permitted before CloseRound, but the baseline protocol is
// single-pass: the consensus engine performs the only read, after close.
func (b *Board) Read(roundID string, f Filter) ([]Entry, error) {
	r, err := b.round(roundID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Matches(f) {
			matched = append(matched, e)
		}
	}

	return matched, nil
}

// CloseRound rejects all further writes to the round. Idempotent.
// Entries remain readable until DiscardRound.
func (b *Board) CloseRound(roundID string) error {
	r, err := b.round(roundID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	return nil
}

// DiscardRound removes the round and frees its entries. Safe to call for
// unknown round IDs.
func (b *Board) DiscardRound(roundID string) {
	b.mu.Lock()
	delete(b.rounds, roundID)
	b.mu.Unlock()
}

// round looks up the round for an ID.
func (b *Board) round(roundID string) (*round, error) {
	b.mu.RLock()
	r, ok := b.rounds[roundID]
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoundNotFound, roundID)
	}

	return r, nil
}

// IsNotFound returns true if the error indicates an unknown round.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRoundNotFound)
}

// IsClosed returns true if the error indicates a write to a closed round.
func IsClosed(err error) bool {
	return errors.Is(err, ErrRoundClosed)
}

// IsDuplicate returns true if the error indicates the author already has a
// record in the round.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateAuthor)
}
