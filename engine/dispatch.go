// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/luxfi/rabia/codec"
	"github.com/luxfi/rabia/phasestore"
	"github.com/luxfi/rabia/syncproto"
	"github.com/luxfi/rabia/transport"
	"github.com/luxfi/rabia/types"
	"github.com/luxfi/rabia/vote"
)

// handleSubmit admits batch through intake. Intake casts this node's
// own round-1 vote as soon as it proposes the phase (via LocalVoter),
// since the transport's Broadcast never loops a frame back to its
// sender (spec §4.3, §4.4).
func (e *Engine) handleSubmit(ctx context.Context, batch types.CommandBatch) error {
	return e.intake.Submit(ctx, batch)
}

// BeginRound1 satisfies intake.LocalVoter: it lets intake's propose
// step (used by Submit, a stall-timeout retry, and an abort retry)
// request this node's own round-1 vote for a phase it just
// originated. propose can be called from the dispatch loop's own
// goroutine (a fresh Submit, a stall retry) or from the apply
// pipeline's separate resubmit goroutine (an abort retry), so this
// hands the request to the dispatch loop over a channel rather than
// calling beginRound1 directly. The phase store's vote bookkeeping
// and the per-node randomness source are only ever safe to touch from
// that one goroutine (spec §4.1). A full queue means the dispatch
// loop is badly behind; the vote is dropped and a later stall retry
// re-proposes the phase.
func (e *Engine) BeginRound1(ctx context.Context, phase types.PhaseId, proposed types.StateValue, conflicting bool) {
	select {
	case e.localVoteCh <- localVoteRequest{phase: phase, proposed: proposed, conflicting: conflicting}:
	default:
		e.logger.Warnw("engine: local-vote queue full, dropping own round-1 vote", "phase", phase)
	}
}

// beginRound1 casts and records this node's round-1 vote for phase,
// then carries any immediate majority forward.
func (e *Engine) beginRound1(ctx context.Context, phase types.PhaseId, proposed types.StateValue, conflicting bool) {
	e.store.SetStatus(phase, phasestore.Round1Voting)
	v := vote.Round1(proposed, conflicting, e.biases, e.rng)
	result := e.store.RecordVote(phase, types.Round1, e.self, v)
	e.sendVote(ctx, phase, types.Round1, v)
	e.handleVoteResult(ctx, phase, types.Round1, result)
}

// handleVoteResult reacts to a vote that was just recorded (whether
// this node's own or a peer's): a round-1 majority triggers this
// node's round-2 vote, and a round-2 majority is a decision (spec
// §4.3).
func (e *Engine) handleVoteResult(ctx context.Context, phase types.PhaseId, round types.Round, result phasestore.VoteResult) {
	if result.Outcome != phasestore.RecordedReachedMajority {
		return
	}
	pd, ok := e.store.Get(phase)
	if !ok {
		return
	}

	if round == types.Round1 {
		v2 := vote.Round2(result.Value, pd.Round1Tally(), e.biases, e.rng)
		e.store.SetStatus(phase, phasestore.Round2Voting)
		r2 := e.store.RecordVote(phase, types.Round2, e.self, v2)
		e.sendVote(ctx, phase, types.Round2, v2)
		e.handleVoteResult(ctx, phase, types.Round2, r2)
		return
	}

	if e.metrics != nil && !pd.CreatedAt.IsZero() {
		e.metrics.PhaseDuration.Observe(time.Since(pd.CreatedAt).Seconds())
	}
	e.broadcastDecision(ctx, phase, pd.BatchId, result.Value)
	e.pipeline.Drain(ctx)
}

func (e *Engine) sendVote(ctx context.Context, phase types.PhaseId, round types.Round, value types.StateValue) {
	msg := &types.Vote{
		Envelope: types.Envelope{Kind: types.KindVote, Sender: e.self, Timestamp: time.Now()},
		PhaseId:  phase,
		Round:    round,
		Value:    value,
	}
	frame, err := codec.Seal(msg)
	if err != nil {
		e.reportFatal(err)
		return
	}
	if err := e.transport.Broadcast(ctx, frame); err != nil {
		e.logger.Warnw("engine: broadcast vote failed", "phase", phase, "round", round, "err", err)
	}
}

func (e *Engine) broadcastDecision(ctx context.Context, phase types.PhaseId, batchID types.BatchId, value types.StateValue) {
	msg := &types.Decision{
		Envelope: types.Envelope{Kind: types.KindDecision, Sender: e.self, Timestamp: time.Now()},
		PhaseId:  phase,
		BatchId:  batchID,
		Value:    value,
	}
	frame, err := codec.Seal(msg)
	if err != nil {
		e.reportFatal(err)
		return
	}
	if err := e.transport.Broadcast(ctx, frame); err != nil {
		e.logger.Warnw("engine: broadcast decision failed", "phase", phase, "err", err)
	}
}

func (e *Engine) broadcastHeartbeat(ctx context.Context) {
	msg := &types.Heartbeat{
		Envelope:         types.Envelope{Kind: types.KindHeartbeat, Sender: e.self, Timestamp: time.Now()},
		HighestCommitted: e.store.HighestCommitted(),
		CurrentPhase:     e.store.CurrentPhase(),
	}
	frame, err := codec.Seal(msg)
	if err != nil {
		e.reportFatal(err)
		return
	}
	if err := e.transport.Broadcast(ctx, frame); err != nil {
		e.logger.Debugw("engine: broadcast heartbeat failed", "err", err)
	}
}

// checkStalls re-proposes phases this node originally proposed that
// have sat non-terminal past the stall timeout, in case the original
// Propose or a subsequent vote round was lost (spec §4.1).
func (e *Engine) checkStalls(ctx context.Context) {
	cutoff := time.Now().Add(-e.timing.PhaseStall)
	for _, sp := range e.store.Stalled(cutoff) {
		if sp.Proposer != e.self {
			continue
		}
		if _, ok := e.pendingM.Get(sp.BatchId); ok {
			e.logger.Infow("engine: re-proposing stalled phase", "phase", sp.Phase, "status", sp.Status)
			_ = e.intake.Resubmit(ctx, sp.BatchId)
		}
	}
}

func (e *Engine) handleInbound(ctx context.Context, in transport.Inbound) {
	kind, err := codec.PeekKind(in.Frame)
	if err != nil {
		e.drop("malformed", err)
		return
	}
	switch kind {
	case types.KindPropose:
		e.onPropose(ctx, in.Frame)
	case types.KindVote:
		e.onVote(ctx, in.Frame)
	case types.KindDecision:
		e.onDecision(ctx, in.Frame)
	case types.KindHeartbeat:
		e.onHeartbeat(ctx, in.Frame)
	case types.KindSyncRequest:
		e.onSyncRequest(ctx, in.Frame)
	case types.KindSyncResponse:
		e.onSyncResponse(ctx, in.Frame)
	default:
		e.drop("unknown_kind", nil)
	}
}

func (e *Engine) validate(env *types.Envelope, phaseID types.PhaseId, hasPhase bool) error {
	if err := codec.ValidateEnvelope(env, time.Now(), e.limits.MaxClockSkew, e.isMember); err != nil {
		return err
	}
	if hasPhase {
		return codec.ValidatePhaseBounds(phaseID, e.store.CurrentPhase(), e.limits.BoundedLookahead)
	}
	return nil
}

func (e *Engine) onPropose(ctx context.Context, frame []byte) {
	var msg types.Propose
	if err := codec.DecodeAndVerify(frame, &msg); err != nil {
		e.drop("propose_decode", err)
		return
	}
	if err := e.validate(&msg.Envelope, msg.PhaseId, true); err != nil {
		e.drop("propose_validate", err)
		return
	}

	e.store.ObservePhase(msg.PhaseId)
	conflicting := e.store.HasConflictingProposal(msg.PhaseId, msg.BatchId)
	e.store.SetProposal(msg.PhaseId, &msg.Batch, msg.Sender)
	if e.metrics != nil {
		e.metrics.PhasesProposed.Inc()
	}
	e.beginRound1(ctx, msg.PhaseId, msg.Value, conflicting)
}

func (e *Engine) onVote(ctx context.Context, frame []byte) {
	var msg types.Vote
	if err := codec.DecodeAndVerify(frame, &msg); err != nil {
		e.drop("vote_decode", err)
		return
	}
	if err := e.validate(&msg.Envelope, msg.PhaseId, true); err != nil {
		e.drop("vote_validate", err)
		return
	}

	e.store.ObservePhase(msg.PhaseId)
	result := e.store.RecordVote(msg.PhaseId, msg.Round, msg.Sender, msg.Value)
	e.handleVoteResult(ctx, msg.PhaseId, msg.Round, result)
}

func (e *Engine) onDecision(ctx context.Context, frame []byte) {
	var msg types.Decision
	if err := codec.DecodeAndVerify(frame, &msg); err != nil {
		e.drop("decision_decode", err)
		return
	}
	if err := e.validate(&msg.Envelope, msg.PhaseId, true); err != nil {
		e.drop("decision_validate", err)
		return
	}

	e.store.ObservePhase(msg.PhaseId)
	e.store.ApplySyncedDecision(msg.PhaseId, nil, msg.Value)
	e.pipeline.Drain(ctx)
}

func (e *Engine) onHeartbeat(ctx context.Context, frame []byte) {
	var msg types.Heartbeat
	if err := codec.DecodeAndVerify(frame, &msg); err != nil {
		e.drop("heartbeat_decode", err)
		return
	}
	if err := e.validate(&msg.Envelope, 0, false); err != nil {
		e.drop("heartbeat_validate", err)
		return
	}

	req, should := e.sync.OnHeartbeat(&msg)
	if !should {
		return
	}
	if err := e.sync.RequestSync(ctx, msg.Sender, req); err != nil {
		e.logger.Warnw("engine: sync request failed", "peer", msg.Sender, "err", err)
	}
}

func (e *Engine) onSyncRequest(ctx context.Context, frame []byte) {
	var msg types.SyncRequest
	if err := codec.DecodeAndVerify(frame, &msg); err != nil {
		e.drop("sync_request_decode", err)
		return
	}
	if err := e.validate(&msg.Envelope, 0, false); err != nil {
		e.drop("sync_request_validate", err)
		return
	}

	resp, err := e.sync.HandleSyncRequest(&msg)
	if err != nil {
		e.logger.Warnw("engine: building sync response failed", "peer", msg.Sender, "err", err)
		return
	}
	if err := e.sync.Respond(ctx, msg.Sender, resp); err != nil {
		e.logger.Warnw("engine: sending sync response failed", "peer", msg.Sender, "err", err)
	}
}

func (e *Engine) onSyncResponse(ctx context.Context, frame []byte) {
	var msg types.SyncResponse
	if err := codec.DecodeAndVerify(frame, &msg); err != nil {
		e.drop("sync_response_decode", err)
		return
	}
	if err := e.validate(&msg.Envelope, 0, false); err != nil {
		e.drop("sync_response_validate", err)
		return
	}

	if err := e.sync.HandleSyncResponse(ctx, &msg); err != nil {
		if errors.Is(err, syncproto.ErrRegressingSnapshot) {
			e.drop("sync_response_regression", err)
			return
		}
		e.logger.Warnw("engine: applying sync response failed", "peer", msg.Sender, "err", err)
	}
}

func (e *Engine) drop(reason string, err error) {
	if e.metrics != nil {
		e.metrics.ValidationDrops.WithLabelValues(reason).Inc()
	}
	if err != nil {
		e.logger.Debugw("engine: dropped inbound message", "reason", reason, "err", err)
	}
}
