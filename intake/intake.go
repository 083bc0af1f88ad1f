// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package intake admits client batches, records proposer identity,
// and correlates each batch to a phase once proposed (spec §4.4).
package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/rabia/codec"
	"github.com/luxfi/rabia/config"
	"github.com/luxfi/rabia/metrics"
	"github.com/luxfi/rabia/pending"
	"github.com/luxfi/rabia/phasestore"
	"github.com/luxfi/rabia/transport"
	"github.com/luxfi/rabia/types"
)

// LocalVoter casts this node's own round-1 vote for a phase it just
// proposed. The memory and real transports' Broadcast never loops a
// frame back to its sender, so without this hook the proposer's own
// vote would never be recorded and the achievable quorum pool for that
// phase would shrink by one (spec §4.3, §4.4). Package engine's Engine
// satisfies this.
type LocalVoter interface {
	BeginRound1(ctx context.Context, phase types.PhaseId, proposed types.StateValue, conflicting bool)
}

// Intake owns the pending map and the propose side of admission.
type Intake struct {
	self    types.NodeId
	cluster config.Cluster
	limits  config.Limits

	pending   *pending.Map
	store     *phasestore.Store
	transport transport.Transport
	metrics   *metrics.Metrics
	voter     LocalVoter
}

// New returns an Intake.
func New(self types.NodeId, cluster config.Cluster, limits config.Limits, p *pending.Map, s *phasestore.Store, t transport.Transport, m *metrics.Metrics) *Intake {
	return &Intake{
		self:      self,
		cluster:   cluster,
		limits:    limits,
		pending:   p,
		store:     s,
		transport: t,
		metrics:   m,
	}
}

// SetLocalVoter wires the hook propose uses to cast the proposer's own
// round-1 vote. It is a setter rather than a New parameter because the
// engine that implements LocalVoter is constructed after, and wraps,
// this Intake.
func (i *Intake) SetLocalVoter(v LocalVoter) {
	i.voter = v
}

// Submit admits batch, checks reachable quorum, assigns it a phase,
// and broadcasts a Propose (spec §4.1, §4.4).
func (i *Intake) Submit(ctx context.Context, batch types.CommandBatch) error {
	sum, err := codec.Checksum(batch)
	if err != nil {
		return fmt.Errorf("intake: checksum batch: %w", err)
	}
	batch.Checksum = sum

	if _, err := codec.EncodeFramed(batch); err != nil {
		return fmt.Errorf("intake: %w", err)
	}

	reachable := len(i.transport.ConnectedPeers()) + 1 // +1 for self
	if reachable < i.cluster.Quorum() {
		return ErrQuorumUnavailable
	}

	i.pending.Put(batch, i.self, time.Now())
	return i.propose(ctx, batch)
}

// propose assigns batch a fresh phase, broadcasts it, and then casts
// this node's own round-1 vote via LocalVoter (spec §4.3, §4.4). It is
// used both by Submit and by Resubmit, so a phase re-proposed after a
// stall timeout or a V0 abort gets the proposer's vote exactly the
// same way a fresh submission does.
func (i *Intake) propose(ctx context.Context, batch types.CommandBatch) error {
	phase := i.store.AdvancePhase()
	i.pending.AssignPhase(batch.BatchId, phase)
	i.store.SetProposal(phase, &batch, i.self)

	msg := &types.Propose{
		Envelope: types.Envelope{Kind: types.KindPropose, Sender: i.self, Timestamp: time.Now()},
		PhaseId:  phase,
		BatchId:  batch.BatchId,
		Value:    types.V1,
		Batch:    batch,
	}
	frame, err := codec.Seal(msg)
	if err != nil {
		return fmt.Errorf("intake: seal propose: %w", err)
	}
	if i.metrics != nil {
		i.metrics.PhasesProposed.Inc()
		i.metrics.PendingBatches.Set(float64(i.pending.Len()))
	}
	// A broadcast failure is treated as a drop: peers that missed the
	// Propose are covered by the stall retry, and the local vote is cast
	// regardless.
	_ = i.transport.Broadcast(ctx, frame)
	if i.voter != nil {
		i.voter.BeginRound1(ctx, phase, types.V1, false)
	}
	return nil
}

// Resubmit re-proposes a batch that was aborted (decided V0) under a
// fresh phase, up to limits.MaxRetries attempts (spec §4.4). It
// returns ErrBatchRejected once the budget is exhausted, after removing
// the batch's pending entry itself.
func (i *Intake) Resubmit(ctx context.Context, batchID types.BatchId) error {
	entry, ok := i.pending.Get(batchID)
	if !ok {
		return nil // already removed, nothing to retry
	}
	if i.pending.IncrementRetries(batchID) > i.limits.MaxRetries {
		i.pending.Remove(batchID)
		if i.metrics != nil {
			i.metrics.BatchesRejected.Inc()
		}
		return ErrBatchRejected
	}
	return i.propose(ctx, entry.Batch)
}
