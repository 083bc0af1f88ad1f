// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package phasestore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/rabia/types"
)

const numShards = 16

type shard struct {
	mu     sync.Mutex
	phases map[types.PhaseId]*PhaseData
}

// Store is the concurrent, sharded EngineState phase map plus the
// atomic current_phase / highest_committed counters (spec §3, §4.2).
// No shard lock is ever held across a channel send or other
// suspension point (spec §5).
type Store struct {
	quorum int

	currentPhase     atomic.Uint64
	highestCommitted atomic.Uint64

	shards [numShards]*shard
}

// New returns an empty Store for a cluster whose strict-majority size
// is quorum.
func New(quorum int) *Store {
	s := &Store{quorum: quorum}
	for i := range s.shards {
		s.shards[i] = &shard{phases: make(map[types.PhaseId]*PhaseData)}
	}
	return s
}

func (s *Store) shardFor(p types.PhaseId) *shard {
	return s.shards[uint64(p)%numShards]
}

// CurrentPhase returns the current_phase counter (invariant 1, 5).
func (s *Store) CurrentPhase() types.PhaseId {
	return types.PhaseId(s.currentPhase.Load())
}

// HighestCommitted returns the highest_committed counter.
func (s *Store) HighestCommitted() types.PhaseId {
	return types.PhaseId(s.highestCommitted.Load())
}

// AdvancePhase increments current_phase with a compare-and-swap
// "only increase" loop (spec §4.2) and returns the new value.
func (s *Store) AdvancePhase() types.PhaseId {
	for {
		cur := s.currentPhase.Load()
		next := cur + 1
		if s.currentPhase.CompareAndSwap(cur, next) {
			return types.PhaseId(next)
		}
	}
}

// ObservePhase bumps current_phase up to at least p without exceeding
// it downward, used when a peer message references a phase this node
// has not locally advanced to yet (still bounded by the caller's
// lookahead validation).
func (s *Store) ObservePhase(p types.PhaseId) {
	for {
		cur := s.currentPhase.Load()
		if uint64(p) <= cur {
			return
		}
		if s.currentPhase.CompareAndSwap(cur, uint64(p)) {
			return
		}
	}
}

// GetOrCreatePhase lazily inserts and returns the PhaseData for p
// (spec §4.2). The first message referring to a phase, whether a
// self-initiated or peer propose, creates it.
func (s *Store) GetOrCreatePhase(p types.PhaseId) *PhaseData {
	sh := s.shardFor(p)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	pd, ok := sh.phases[p]
	if !ok {
		pd = newPhase(p)
		sh.phases[p] = pd
	}
	return pd
}

// Get returns the PhaseData for p if it exists.
func (s *Store) Get(p types.PhaseId) (*PhaseData, bool) {
	sh := s.shardFor(p)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	pd, ok := sh.phases[p]
	return pd, ok
}

// CommitResult is the outcome of CommitPhase.
type CommitResult uint8

const (
	Committed CommitResult = iota
	AlreadyCommitted
	InvalidOrdering
)

// CommitPhase sets highest_committed to max(current, p) only if
// p <= current_phase (spec §4.2, invariant 5). It never decreases
// highest_committed.
func (s *Store) CommitPhase(p types.PhaseId) CommitResult {
	if uint64(p) > s.currentPhase.Load() {
		return InvalidOrdering
	}
	for {
		cur := s.highestCommitted.Load()
		if uint64(p) <= cur {
			return AlreadyCommitted
		}
		if s.highestCommitted.CompareAndSwap(cur, uint64(p)) {
			return Committed
		}
	}
}

// MarkTerminal transitions pd to status (Applied, Aborted, or
// Terminal) and stamps TerminalAt, under the owning shard's lock.
func (s *Store) MarkTerminal(p types.PhaseId, status Status) {
	sh := s.shardFor(p)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	pd, ok := sh.phases[p]
	if !ok {
		return
	}
	pd.Status = status
	pd.TerminalAt = time.Now()
}

// SetStatus transitions pd to status without marking it terminal, for
// the non-terminal transitions of spec §4.8 (New->Proposed->...).
func (s *Store) SetStatus(p types.PhaseId, status Status) {
	sh := s.shardFor(p)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if pd, ok := sh.phases[p]; ok {
		pd.Status = status
	}
}

// Cleanup removes terminal phases whose TerminalAt predates before,
// and returns how many were removed (spec §4.2). Callers choose
// before conservatively enough to satisfy invariant 6 (retaining
// phases within the sync retention window).
func (s *Store) Cleanup(before time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, pd := range sh.phases {
			if pd.Status.IsTerminal() && !pd.TerminalAt.IsZero() && pd.TerminalAt.Before(before) {
				delete(sh.phases, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// StalledPhase is a snapshot of a non-terminal phase taken by Stalled,
// safe to read without the owning shard's lock.
type StalledPhase struct {
	Phase    types.PhaseId
	BatchId  types.BatchId
	Proposer types.NodeId
	Status   Status
}

// Stalled returns every non-terminal phase created before cutoff, for
// the engine's stall-detection timer (spec §4.1). Order is
// unspecified.
func (s *Store) Stalled(cutoff time.Time) []StalledPhase {
	var stalled []StalledPhase
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, pd := range sh.phases {
			if !pd.Status.IsTerminal() && pd.CreatedAt.Before(cutoff) {
				stalled = append(stalled, StalledPhase{
					Phase:    id,
					BatchId:  pd.BatchId,
					Proposer: pd.Proposer,
					Status:   pd.Status,
				})
			}
		}
		sh.mu.Unlock()
	}
	return stalled
}

// Len returns the number of phases currently tracked (terminal or
// not), used for ActivePhases metrics and tests.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.phases)
		sh.mu.Unlock()
	}
	return n
}
