// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package phasestore

import (
	"github.com/luxfi/rabia/types"
)

// VoteOutcome is the result of recording one vote (spec §4.2).
type VoteOutcome uint8

const (
	// RecordedNoMajority means the vote was recorded but its value has
	// not reached a strict majority for this (phase, round), or, in
	// round 2, the value at majority is V?, which never becomes a
	// decision.
	RecordedNoMajority VoteOutcome = iota
	// RecordedReachedMajority means the vote's value is at or above a
	// strict majority for this (phase, round): the vote that first
	// reaches the majority and every later vote for the same value both
	// report it. The result's Value field holds the majority value. For round 1, the value may be VUncertain; for
	// round 2, voting logic in package vote guarantees it never is.
	RecordedReachedMajority
	// Duplicate means this voter already voted in this (phase, round);
	// the vote was ignored.
	Duplicate
	// Stale means the phase is already terminal; the vote was ignored.
	Stale
)

// VoteResult carries a VoteOutcome and, when the outcome is
// RecordedReachedMajority, the value that reached majority.
type VoteResult struct {
	Outcome VoteOutcome
	Value   types.StateValue
}

// SetProposal records the batch and proposer for a phase the first
// time it is observed (from a self-initiated submit or a peer
// Propose), transitioning it New -> Proposed. A later Propose for the
// same phase from a different proposer or batch is ignored: the first
// proposal observed wins, which is what makes round-1 conflict
// detection meaningful.
func (s *Store) SetProposal(p types.PhaseId, batch *types.CommandBatch, proposer types.NodeId) {
	sh := s.shardFor(p)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	pd, ok := sh.phases[p]
	if !ok {
		pd = newPhase(p)
		sh.phases[p] = pd
	}
	if pd.Batch != nil {
		return
	}
	pd.Batch = batch
	if batch != nil {
		pd.BatchId = batch.BatchId
	}
	pd.Proposer = proposer
	if pd.Status == New {
		pd.Status = Proposed
	}
}

// HasConflictingProposal reports whether phase p already has a
// recorded batch different from candidate — the trigger for the
// round-1 "vote V? on conflict" rule (spec §4.3).
func (s *Store) HasConflictingProposal(p types.PhaseId, candidate types.BatchId) bool {
	pd, ok := s.Get(p)
	if !ok || pd.Batch == nil {
		return false
	}
	return pd.BatchId != candidate
}

// RecordVote records voter's vote for value in the given round of
// phase p (spec §4.2). Majority detection requires a strict majority
// of the fixed cluster size (quorum, ⌊N/2⌋+1 passed to New); V? never
// counts as a round-2 decision even if it reaches quorum — callers
// (package vote) are responsible for never emitting V? in round 2, but
// RecordVote defends the invariant regardless by refusing to set
// Decision to VUncertain.
func (s *Store) RecordVote(p types.PhaseId, round types.Round, voter types.NodeId, value types.StateValue) VoteResult {
	sh := s.shardFor(p)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	pd, ok := sh.phases[p]
	if !ok {
		pd = newPhase(p)
		sh.phases[p] = pd
	}
	if pd.Status.IsTerminal() {
		return VoteResult{Outcome: Stale}
	}

	votes, tally := pd.round1Votes, &pd.round1Tally
	if round == types.Round2 {
		votes, tally = pd.round2Votes, &pd.round2Tally
	}

	if _, voted := votes[voter]; voted {
		return VoteResult{Outcome: Duplicate}
	}
	votes[voter] = value
	tally.Add(value)

	count := tally.Count(value)
	if count < s.quorum {
		return VoteResult{Outcome: RecordedNoMajority}
	}

	if round == types.Round1 {
		if !pd.round1HasOutcome {
			pd.round1Outcome = value
			pd.round1HasOutcome = true
			if pd.Status == Proposed {
				pd.Status = Round1Decided
			}
		}
		return VoteResult{Outcome: RecordedReachedMajority, Value: pd.round1Outcome}
	}

	// Round 2: only V0/V1 may ever become the permanent decision
	// (invariant 3). Re-derivation always yields the same value because
	// we only ever set it once, on the first round-2 value to reach
	// quorum.
	if !pd.hasDecision && value.IsDecidable() {
		pd.Decision = value
		pd.hasDecision = true
		pd.Status = Decided
	}
	if pd.hasDecision {
		return VoteResult{Outcome: RecordedReachedMajority, Value: pd.Decision}
	}
	return VoteResult{Outcome: RecordedNoMajority}
}
