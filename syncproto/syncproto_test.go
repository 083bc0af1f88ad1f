// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package syncproto

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rabia/apply"
	"github.com/luxfi/rabia/config"
	"github.com/luxfi/rabia/pending"
	"github.com/luxfi/rabia/phasestore"
	"github.com/luxfi/rabia/statemachine/kv"
	transportmem "github.com/luxfi/rabia/transport/memory"
	"github.com/luxfi/rabia/types"
	"github.com/stretchr/testify/require"
)

type noopResubmitter struct{}

func (noopResubmitter) Resubmit(ctx context.Context, batchID types.BatchId) error { return nil }

func newTestHandler(t *testing.T, limits config.Limits) (*Handler, *phasestore.Store, *kv.Machine, *apply.Pipeline) {
	t.Helper()
	store := phasestore.New(2)
	machine := kv.New()
	p := pending.New()
	pl := apply.New(store, p, machine, noopResubmitter{}, nil, 0)

	self := ids.GenerateTestNodeID()
	hub := transportmem.NewHub()
	node := hub.Join(self, 16)

	return New(self, limits, store, machine, nil, pl, node, nil), store, machine, pl
}

func batchWith(key, value string) types.CommandBatch {
	return types.CommandBatch{
		BatchId:  ids.GenerateTestID(),
		Commands: []types.Command{{ID: ids.GenerateTestID(), Payload: []byte(key + "=" + value)}},
	}
}

func TestOnHeartbeatDetectsLagAndIgnoresCaughtUp(t *testing.T) {
	require := require.New(t)

	h, store, _, _ := newTestHandler(t, config.Limits{})
	store.AdvancePhase()
	store.CommitPhase(1)

	req, should := h.OnHeartbeat(&types.Heartbeat{HighestCommitted: 1, CurrentPhase: 1})
	require.False(should, "peer is not ahead, no sync request needed")
	require.Nil(req)

	req, should = h.OnHeartbeat(&types.Heartbeat{HighestCommitted: 5, CurrentPhase: 5})
	require.True(should)
	require.Equal(types.PhaseId(1), req.FromPhase)
}

func TestHandleSyncRequestReturnsContiguousDecisions(t *testing.T) {
	require := require.New(t)

	h, store, _, _ := newTestHandler(t, config.Limits{SnapshotGapThreshold: 100, SyncChunkSize: 100})
	p1 := store.AdvancePhase()
	b1 := batchWith("k", "v")
	store.SetProposal(p1, &b1, ids.GenerateTestNodeID())
	store.ApplySyncedDecision(p1, &b1, types.V1)
	store.CommitPhase(p1)

	p2 := store.AdvancePhase()
	store.ApplySyncedDecision(p2, nil, types.V0)
	store.CommitPhase(p2)

	resp, err := h.HandleSyncRequest(&types.SyncRequest{FromPhase: 0})
	require.NoError(err)
	require.Empty(resp.Snapshot)
	require.Len(resp.Entries, 2)
	require.Equal(types.V1, resp.Entries[0].Value)
	require.NotNil(resp.Entries[0].Batch)
	require.Equal(types.V0, resp.Entries[1].Value)
	require.Nil(resp.Entries[1].Batch)
}

func TestHandleSyncRequestIsEmptyWhenRequesterIsCaughtUp(t *testing.T) {
	require := require.New(t)

	h, store, _, _ := newTestHandler(t, config.Limits{SnapshotGapThreshold: 100})
	p1 := store.AdvancePhase()
	store.ApplySyncedDecision(p1, nil, types.V0)
	store.CommitPhase(p1)

	resp, err := h.HandleSyncRequest(&types.SyncRequest{FromPhase: 1})
	require.NoError(err)
	require.Empty(resp.Entries)
	require.Empty(resp.Snapshot)
}

func TestHandleSyncRequestFallsBackToSnapshotBeyondGapThreshold(t *testing.T) {
	require := require.New(t)

	h, store, _, _ := newTestHandler(t, config.Limits{SnapshotGapThreshold: 1})
	for i := 0; i < 3; i++ {
		p := store.AdvancePhase()
		store.ApplySyncedDecision(p, nil, types.V0)
		store.CommitPhase(p)
	}

	resp, err := h.HandleSyncRequest(&types.SyncRequest{FromPhase: 0})
	require.NoError(err)
	require.Empty(resp.Entries)
	require.NotEmpty(resp.Snapshot)
	require.Equal(types.PhaseId(3), resp.SnapshotAsOfPhase)
}

func TestHandleSyncRequestFallsBackToSnapshotWhenPhaseWasCleanedUp(t *testing.T) {
	require := require.New(t)

	h, store, _, _ := newTestHandler(t, config.Limits{SnapshotGapThreshold: 100})
	p1 := store.AdvancePhase()
	store.ApplySyncedDecision(p1, nil, types.V0)
	store.CommitPhase(p1)
	store.MarkTerminal(p1, phasestore.Applied)
	removed := store.Cleanup(time.Now().Add(time.Hour)) // force-expire everything
	require.Equal(1, removed)

	resp, err := h.HandleSyncRequest(&types.SyncRequest{FromPhase: 0})
	require.NoError(err)
	require.NotEmpty(resp.Snapshot, "a decision window missing from the local store must fall back to snapshot")
}

func TestHandleSyncResponseAppliesEntriesAndDrains(t *testing.T) {
	require := require.New(t)

	h, store, _, _ := newTestHandler(t, config.Limits{})
	b1 := batchWith("k", "v")

	resp := &types.SyncResponse{
		Entries: []types.SyncEntry{
			{PhaseId: 1, Value: types.V1, Batch: &b1},
			{PhaseId: 2, Value: types.V0},
		},
	}
	require.NoError(h.HandleSyncResponse(context.Background(), resp))

	require.Equal(types.PhaseId(2), store.HighestCommitted())
	pd1, ok := store.Get(1)
	require.True(ok)
	require.Equal(phasestore.Applied, pd1.Status)
	pd2, ok := store.Get(2)
	require.True(ok)
	require.Equal(phasestore.Aborted, pd2.Status)
}

func TestHandleSyncResponseRejectsRegressingSnapshot(t *testing.T) {
	require := require.New(t)

	h, store, _, _ := newTestHandler(t, config.Limits{})
	store.ObservePhase(10)
	store.CommitPhase(10)

	resp := &types.SyncResponse{Snapshot: []byte("{}"), SnapshotAsOfPhase: 3}
	err := h.HandleSyncResponse(context.Background(), resp)
	require.ErrorIs(err, ErrRegressingSnapshot)
}

func TestHandleSyncResponseInstallsSnapshotAndFastForwards(t *testing.T) {
	require := require.New(t)

	h, store, _, pl := newTestHandler(t, config.Limits{})
	resp := &types.SyncResponse{Snapshot: []byte(`{"k":"dmFsdWU="}`), SnapshotAsOfPhase: 7}
	require.NoError(h.HandleSyncResponse(context.Background(), resp))

	require.Equal(types.PhaseId(7), store.HighestCommitted())
	require.Equal(types.PhaseId(8), pl.NextPhase())
}
