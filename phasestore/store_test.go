// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package phasestore

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rabia/types"
	"github.com/stretchr/testify/require"
)

func threeNodes() []types.NodeId {
	return []types.NodeId{ids.GenerateTestNodeID(), ids.GenerateTestNodeID(), ids.GenerateTestNodeID()}
}

func TestRecordVoteReachesMajorityAtQuorum(t *testing.T) {
	require := require.New(t)

	s := New(2) // quorum 2 of 3
	nodes := threeNodes()
	phase := s.AdvancePhase()

	r1 := s.RecordVote(phase, types.Round1, nodes[0], types.V1)
	require.Equal(RecordedNoMajority, r1.Outcome)

	r2 := s.RecordVote(phase, types.Round1, nodes[1], types.V1)
	require.Equal(RecordedReachedMajority, r2.Outcome)
	require.Equal(types.V1, r2.Value)

	outcome, ok := s.Get(phase)
	require.True(ok)
	v, has := outcome.Round1Outcome()
	require.True(has)
	require.Equal(types.V1, v)
}

func TestRecordVoteRejectsDuplicateVoter(t *testing.T) {
	require := require.New(t)

	s := New(2)
	nodes := threeNodes()
	phase := s.AdvancePhase()

	require.Equal(RecordedNoMajority, s.RecordVote(phase, types.Round1, nodes[0], types.V1).Outcome)
	require.Equal(Duplicate, s.RecordVote(phase, types.Round1, nodes[0], types.V0).Outcome)
}

func TestRecordVoteRound2NeverDecidesUncertain(t *testing.T) {
	require := require.New(t)

	s := New(2)
	nodes := threeNodes()
	phase := s.AdvancePhase()

	require.Equal(RecordedNoMajority, s.RecordVote(phase, types.Round2, nodes[0], types.VUncertain).Outcome)
	r := s.RecordVote(phase, types.Round2, nodes[1], types.VUncertain)
	// Even though V? reached a 2-of-3 majority, it must never become a
	// decision (invariant 3).
	require.Equal(RecordedNoMajority, r.Outcome)

	pd, ok := s.Get(phase)
	require.True(ok)
	_, has := pd.Decided()
	require.False(has)
}

func TestRecordVoteIgnoresVotesOnTerminalPhase(t *testing.T) {
	require := require.New(t)

	s := New(2)
	nodes := threeNodes()
	phase := s.AdvancePhase()
	s.GetOrCreatePhase(phase)
	s.MarkTerminal(phase, Applied)

	r := s.RecordVote(phase, types.Round1, nodes[0], types.V1)
	require.Equal(Stale, r.Outcome)
}

func TestSetProposalFirstWriteWins(t *testing.T) {
	require := require.New(t)

	s := New(2)
	nodes := threeNodes()
	phase := s.AdvancePhase()

	first := &types.CommandBatch{BatchId: ids.GenerateTestID()}
	second := &types.CommandBatch{BatchId: ids.GenerateTestID()}

	s.SetProposal(phase, first, nodes[0])
	s.SetProposal(phase, second, nodes[1])

	pd, ok := s.Get(phase)
	require.True(ok)
	require.Equal(first.BatchId, pd.BatchId)
	require.True(s.HasConflictingProposal(phase, second.BatchId))
	require.False(s.HasConflictingProposal(phase, first.BatchId))
}

func TestCommitPhaseNeverDecreasesHighestCommitted(t *testing.T) {
	require := require.New(t)

	s := New(2)
	s.AdvancePhase()
	s.AdvancePhase()
	s.AdvancePhase()

	require.Equal(Committed, s.CommitPhase(2))
	require.Equal(types.PhaseId(2), s.HighestCommitted())
	require.Equal(AlreadyCommitted, s.CommitPhase(1))
	require.Equal(types.PhaseId(2), s.HighestCommitted())
}

func TestCommitPhaseRejectsBeyondCurrentPhase(t *testing.T) {
	require := require.New(t)

	s := New(2)
	s.AdvancePhase()
	require.Equal(InvalidOrdering, s.CommitPhase(5))
}

func TestCleanupRetainsRecentTerminalPhases(t *testing.T) {
	require := require.New(t)

	s := New(2)
	old := s.AdvancePhase()
	recent := s.AdvancePhase()
	s.GetOrCreatePhase(old)
	s.GetOrCreatePhase(recent)

	s.MarkTerminal(old, Applied)
	s.MarkTerminal(recent, Applied)

	// Backdate old's terminal timestamp so Cleanup's retention window
	// picks it but not recent.
	shard := s.shardFor(old)
	shard.mu.Lock()
	shard.phases[old].TerminalAt = time.Now().Add(-time.Hour)
	shard.mu.Unlock()

	removed := s.Cleanup(time.Now().Add(-time.Minute))
	require.Equal(1, removed)

	_, ok := s.Get(old)
	require.False(ok)
	_, ok = s.Get(recent)
	require.True(ok)
}

func TestApplySyncedDecisionIsIdempotent(t *testing.T) {
	require := require.New(t)

	s := New(2)
	phase := s.AdvancePhase()
	batch := &types.CommandBatch{BatchId: ids.GenerateTestID()}

	s.ApplySyncedDecision(phase, batch, types.V1)
	s.ApplySyncedDecision(phase, nil, types.V0) // replayed response must not flip the decision

	pd, ok := s.Get(phase)
	require.True(ok)
	v, has := pd.Decided()
	require.True(has)
	require.Equal(types.V1, v)
	require.Equal(batch.BatchId, pd.BatchId)
}

func TestStalledReturnsOnlyNonTerminalOldPhases(t *testing.T) {
	require := require.New(t)

	s := New(2)
	stale := s.AdvancePhase()
	fresh := s.AdvancePhase()
	s.GetOrCreatePhase(stale)
	s.GetOrCreatePhase(fresh)
	s.MarkTerminal(fresh, Applied)

	shard := s.shardFor(stale)
	shard.mu.Lock()
	shard.phases[stale].CreatedAt = time.Now().Add(-time.Hour)
	shard.mu.Unlock()

	stalled := s.Stalled(time.Now().Add(-time.Minute))
	require.Len(stalled, 1)
	require.Equal(stale, stalled[0].Phase)
}
