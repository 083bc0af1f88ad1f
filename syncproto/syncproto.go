// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package syncproto implements the sync subprotocol (spec §4.5): a
// replica that falls behind detects the gap from a peer's Heartbeat,
// requests a catch-up, and either replays a contiguous run of
// decisions or installs an application snapshot when the gap is too
// wide to replay economically.
package syncproto

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/rabia/apply"
	"github.com/luxfi/rabia/codec"
	"github.com/luxfi/rabia/config"
	"github.com/luxfi/rabia/metrics"
	"github.com/luxfi/rabia/phasestore"
	"github.com/luxfi/rabia/statemachine"
	"github.com/luxfi/rabia/storage"
	"github.com/luxfi/rabia/transport"
	"github.com/luxfi/rabia/types"
)

// Handler owns both sides of the sync subprotocol: answering a peer's
// SyncRequest, and installing a peer's SyncResponse locally.
type Handler struct {
	self    types.NodeId
	limits  config.Limits
	store   *phasestore.Store
	machine statemachine.Machine
	storage storage.Store
	pipeline *apply.Pipeline
	transport transport.Transport
	metrics *metrics.Metrics
}

// New returns a Handler. storageStore may be nil, in which case
// installed snapshots are not persisted (a pure in-memory deployment).
func New(self types.NodeId, limits config.Limits, store *phasestore.Store, machine statemachine.Machine, storageStore storage.Store, pipeline *apply.Pipeline, t transport.Transport, m *metrics.Metrics) *Handler {
	return &Handler{
		self:      self,
		limits:    limits,
		store:     store,
		machine:   machine,
		storage:   storageStore,
		pipeline:  pipeline,
		transport: t,
		metrics:   m,
	}
}

// OnHeartbeat inspects a peer's advertised progress and reports a
// SyncRequest to send if this node is behind (spec §4.5).
func (h *Handler) OnHeartbeat(hb *types.Heartbeat) (*types.SyncRequest, bool) {
	local := h.store.HighestCommitted()
	if hb.HighestCommitted <= local {
		return nil, false
	}
	return &types.SyncRequest{
		Envelope:  types.Envelope{Kind: types.KindSyncRequest, Sender: h.self, Timestamp: time.Now()},
		FromPhase: local,
	}, true
}

// RequestSync seals and sends req to peer.
func (h *Handler) RequestSync(ctx context.Context, peer types.NodeId, req *types.SyncRequest) error {
	frame, err := codec.Seal(req)
	if err != nil {
		return fmt.Errorf("syncproto: seal request: %w", err)
	}
	return h.transport.Send(ctx, peer, frame)
}

// HandleSyncRequest builds the response to req: a contiguous run of
// decided phases when the gap is within limits.SnapshotGapThreshold
// and the local phase store still retains every phase in range, or an
// application snapshot otherwise (spec §4.5). An empty response (no
// entries, no snapshot) means the requester is already caught up,
// which is a valid, idempotent answer to repeat requests.
func (h *Handler) HandleSyncRequest(req *types.SyncRequest) (*types.SyncResponse, error) {
	resp := &types.SyncResponse{Envelope: types.Envelope{Kind: types.KindSyncResponse, Sender: h.self, Timestamp: time.Now()}}

	highest := h.store.HighestCommitted()
	if highest <= req.FromPhase {
		return resp, nil
	}

	gap := uint64(highest) - uint64(req.FromPhase)
	if h.limits.SnapshotGapThreshold == 0 || gap <= h.limits.SnapshotGapThreshold {
		if entries, ok := h.gatherEntries(req.FromPhase, highest); ok {
			resp.Entries = entries
			return resp, nil
		}
	}

	snap, err := h.machine.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("syncproto: snapshot: %w", err)
	}
	resp.Snapshot = snap
	resp.SnapshotAsOfPhase = h.store.HighestCommitted()
	return resp, nil
}

// gatherEntries returns the decided phases in (from, highest], capped
// at limits.SyncChunkSize, and false if any phase in that window has
// already been garbage collected from the local store (forcing the
// caller to fall back to a snapshot).
func (h *Handler) gatherEntries(from, highest types.PhaseId) ([]types.SyncEntry, bool) {
	end := highest
	if h.limits.SyncChunkSize > 0 {
		if limit := from + types.PhaseId(h.limits.SyncChunkSize); end > limit {
			end = limit
		}
	}

	entries := make([]types.SyncEntry, 0, uint64(end-from))
	for p := from + 1; p <= end; p++ {
		pd, ok := h.store.Get(p)
		if !ok {
			return nil, false
		}
		value, has := pd.Decided()
		if !has {
			return nil, false
		}
		entry := types.SyncEntry{PhaseId: p, Value: value}
		if value == types.V1 && pd.Batch != nil {
			b := *pd.Batch
			entry.Batch = &b
		}
		entries = append(entries, entry)
	}
	return entries, true
}

// Respond seals and sends resp to peer.
func (h *Handler) Respond(ctx context.Context, peer types.NodeId, resp *types.SyncResponse) error {
	frame, err := codec.Seal(resp)
	if err != nil {
		return fmt.Errorf("syncproto: seal response: %w", err)
	}
	return h.transport.Send(ctx, peer, frame)
}

// HandleSyncResponse installs resp locally: a snapshot (if present) is
// restored into the application state machine and the apply pipeline
// is fast-forwarded past it, then every decided entry is recorded and
// drained in order (spec §4.5, §4.7). It rejects a snapshot that would
// move highest_committed backwards (invariant 5).
func (h *Handler) HandleSyncResponse(ctx context.Context, resp *types.SyncResponse) error {
	if len(resp.Snapshot) > 0 {
		if resp.SnapshotAsOfPhase < h.store.HighestCommitted() {
			return ErrRegressingSnapshot
		}
		if err := h.machine.Restore(resp.Snapshot); err != nil {
			return fmt.Errorf("syncproto: restore snapshot: %w", err)
		}
		h.store.ObservePhase(resp.SnapshotAsOfPhase)
		h.store.CommitPhase(resp.SnapshotAsOfPhase)
		h.pipeline.FastForward(resp.SnapshotAsOfPhase)
		if h.storage != nil {
			sum, err := codec.Checksum(resp.Snapshot)
			if err == nil {
				_ = h.storage.SaveState(storage.PersistedState{
					HighestCommitted: resp.SnapshotAsOfPhase,
					Checksum:         sum,
				})
			}
		}
	}

	for _, entry := range resp.Entries {
		h.store.ObservePhase(entry.PhaseId)
		h.store.ApplySyncedDecision(entry.PhaseId, entry.Batch, entry.Value)
	}
	h.pipeline.Drain(ctx)

	if h.metrics != nil && len(resp.Entries) > 0 {
		h.metrics.SyncLagApplied.Add(float64(len(resp.Entries)))
	}
	return nil
}
