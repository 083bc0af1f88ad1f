// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine implements the single-threaded dispatcher that
// drives one replica's participation in consensus (spec §4.1): it
// multiplexes client submissions, inbound network frames, and timers
// onto one goroutine so that the per-node randomness source and the
// phase store's vote bookkeeping are never touched concurrently.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/rabia/apply"
	"github.com/luxfi/rabia/config"
	"github.com/luxfi/rabia/intake"
	"github.com/luxfi/rabia/internal/sampler"
	"github.com/luxfi/rabia/logging"
	"github.com/luxfi/rabia/metrics"
	"github.com/luxfi/rabia/pending"
	"github.com/luxfi/rabia/phasestore"
	"github.com/luxfi/rabia/statemachine"
	"github.com/luxfi/rabia/storage"
	"github.com/luxfi/rabia/syncproto"
	"github.com/luxfi/rabia/transport"
	"github.com/luxfi/rabia/types"
	"github.com/luxfi/rabia/vote"
	"github.com/prometheus/client_golang/prometheus"
)

// Engine owns every per-replica component and is the only thing that
// touches them concurrently with the outside world; callers interact
// with it only through Submit, Run, Shutdown, Statistics, and Fatal.
type Engine struct {
	self    types.NodeId
	cluster config.Cluster
	timing  config.Timing
	limits  config.Limits
	biases  vote.Biases

	logger logging.Logger

	store     *phasestore.Store
	pendingM  *pending.Map
	intake    *intake.Intake
	pipeline  *apply.Pipeline
	sync      *syncproto.Handler
	transport transport.Transport
	metrics   *metrics.Metrics
	rng       sampler.Source

	members map[types.NodeId]bool

	submitCh    chan submitRequest
	localVoteCh chan localVoteRequest
	fatalCh     chan error

	cancel context.CancelFunc
	doneCh chan struct{}
}

type submitRequest struct {
	batch  types.CommandBatch
	result chan error
}

// localVoteRequest carries a BeginRound1 call from whatever goroutine
// originated a phase (the dispatch loop itself for a fresh Submit or a
// stall retry, or the apply pipeline's separate resubmit goroutine for
// an abort retry) onto the single dispatch loop, which is the only
// goroutine allowed to touch the phase store's vote bookkeeping and the
// per-node randomness source (spec §4.1).
type localVoteRequest struct {
	phase       types.PhaseId
	proposed    types.StateValue
	conflicting bool
}

// New wires every component from params, restoring persisted state if
// store has any, and returns a ready-to-run Engine.
func New(params config.Parameters, t transport.Transport, store storage.Store, machine statemachine.Machine, reg prometheus.Registerer, logger logging.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	ps := phasestore.New(params.Cluster.Quorum())
	startFrom := types.NoPhase
	persisted, has, err := store.LoadState()
	if err != nil {
		return nil, fmt.Errorf("engine: load persisted state: %w", err)
	}
	if has {
		ps.ObservePhase(persisted.HighestCommitted)
		ps.CommitPhase(persisted.HighestCommitted)
		startFrom = persisted.HighestCommitted
	}

	pendingM := pending.New()
	ik := intake.New(params.Cluster.Self, params.Cluster, params.Limits, pendingM, ps, t, m)
	pl := apply.New(ps, pendingM, machine, ik, m, startFrom)
	sh := syncproto.New(params.Cluster.Self, params.Limits, ps, machine, store, pl, t, m)

	members := make(map[types.NodeId]bool, len(params.Cluster.Nodes))
	for _, n := range params.Cluster.Nodes {
		members[n] = true
	}

	e := &Engine{
		self:    params.Cluster.Self,
		cluster: params.Cluster,
		timing:  params.Timing,
		limits:  params.Limits,
		biases:  vote.Biases{R1BiasV1: params.Randomization.R1BiasV1, R2TieBiasV1: params.Randomization.R2TieBiasV1},
		logger:  logger,

		store:     ps,
		pendingM:  pendingM,
		intake:    ik,
		pipeline:  pl,
		sync:      sh,
		transport: t,
		metrics:   m,
		rng:       sampler.New(),

		members: members,

		submitCh:    make(chan submitRequest),
		localVoteCh: make(chan localVoteRequest, 256),
		fatalCh:     make(chan error, 1),
		doneCh:      make(chan struct{}),
	}
	ik.SetLocalVoter(e)
	return e, nil
}

// Submit admits a client batch and blocks until it has been handed to
// the consensus protocol (not until it is decided).
func (e *Engine) Submit(ctx context.Context, batch types.CommandBatch) error {
	req := submitRequest{batch: batch, result: make(chan error, 1)}
	select {
	case e.submitCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.doneCh:
		return fmt.Errorf("engine: shut down")
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fatal returns a channel that receives an error if the engine hits a
// condition it cannot recover from (spec §7: no panics). The engine
// keeps running its dispatch loop after a fatal error is reported;
// the caller decides whether to shut down.
func (e *Engine) Fatal() <-chan error {
	return e.fatalCh
}

func (e *Engine) reportFatal(err error) {
	e.logger.Errorw("engine: fatal condition", "err", err)
	select {
	case e.fatalCh <- err:
	default:
	}
}

// Run blocks, dispatching work until ctx is canceled or Shutdown is
// called. It returns ctx's error (or nil on an explicit Shutdown).
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer close(e.doneCh)

	inboundCh := make(chan transport.Inbound, 256)
	readerDone := make(chan struct{})
	go e.readInbound(runCtx, inboundCh, readerDone)

	heartbeat := time.NewTicker(e.timing.Heartbeat)
	stall := time.NewTicker(e.timing.PhaseStall)
	cleanup := time.NewTicker(e.timing.CleanupInterval)
	defer heartbeat.Stop()
	defer stall.Stop()
	defer cleanup.Stop()

	for {
		select {
		case <-runCtx.Done():
			<-readerDone
			return ctx.Err()

		case req := <-e.submitCh:
			req.result <- e.handleSubmit(runCtx, req.batch)

		case lv := <-e.localVoteCh:
			e.beginRound1(runCtx, lv.phase, lv.proposed, lv.conflicting)

		case in := <-inboundCh:
			e.handleInbound(runCtx, in)

		case <-heartbeat.C:
			e.broadcastHeartbeat(runCtx)

		case <-stall.C:
			e.checkStalls(runCtx)

		case <-cleanup.C:
			before := time.Now().Add(-4 * e.timing.PhaseStall)
			e.store.Cleanup(before)
		}
	}
}

// Shutdown cancels the run loop and waits up to the configured grace
// period for it to drain.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	select {
	case <-e.doneCh:
		return nil
	case <-time.After(e.timing.ShutdownGrace):
		return fmt.Errorf("engine: shutdown grace period of %s exceeded", e.timing.ShutdownGrace)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) readInbound(ctx context.Context, out chan<- transport.Inbound, done chan<- struct{}) {
	defer close(done)
	for {
		in, err := e.transport.NextInbound(ctx)
		if err != nil {
			if ctx.Err() == nil {
				e.logger.Warnw("engine: transport read failed", "err", err)
			}
			return
		}
		select {
		case out <- in:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) isMember(id types.NodeId) bool {
	return e.members[id]
}
