// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package phasestore

import (
	"time"

	"github.com/luxfi/rabia/internal/bag"
	"github.com/luxfi/rabia/types"
)

// PhaseData is the per-PhaseId record described in spec §3. All
// mutation goes through Store methods, which hold the owning shard's
// lock; callers must never mutate a PhaseData they obtained via Get
// directly.
type PhaseData struct {
	Phase     types.PhaseId
	Status    Status
	Batch     *types.CommandBatch
	BatchId   types.BatchId
	Proposer  types.NodeId

	round1Votes map[types.NodeId]types.StateValue
	round1Tally bag.Bag[types.StateValue]
	round1Outcome   types.StateValue
	round1HasOutcome bool

	round2Votes map[types.NodeId]types.StateValue
	round2Tally bag.Bag[types.StateValue]

	Decision    types.StateValue
	hasDecision bool

	CreatedAt  time.Time
	TerminalAt time.Time
}

func newPhase(p types.PhaseId) *PhaseData {
	return &PhaseData{
		Phase:       p,
		Status:      New,
		round1Votes: make(map[types.NodeId]types.StateValue),
		round1Tally: bag.New[types.StateValue](),
		round2Votes: make(map[types.NodeId]types.StateValue),
		round2Tally: bag.New[types.StateValue](),
		CreatedAt:   time.Now(),
	}
}

// Round1Outcome returns the value that reached a round-1 majority, if
// any. It may be V0, V1, or VUncertain — VUncertain only forces round
// 2, it is never itself a decision (spec §4.3).
func (p *PhaseData) Round1Outcome() (types.StateValue, bool) {
	return p.round1Outcome, p.round1HasOutcome
}

// Round1Tally returns a copy of the round-1 vote counts, used by
// package vote to compute the biased round-2 vote when round 1 is
// inconclusive.
func (p *PhaseData) Round1Tally() bag.Bag[types.StateValue] {
	tally := bag.New[types.StateValue]()
	for _, v := range p.round1Votes {
		tally.Add(v)
	}
	return tally
}

// Decided returns the phase's final decision, if round 2 has reached
// a strict majority.
func (p *PhaseData) Decided() (types.StateValue, bool) {
	return p.Decision, p.hasDecision
}
