// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package apply implements the apply pipeline (spec §4.7): committing
// decided batches to the application state machine in PhaseId order,
// at most once, with no gaps.
package apply

import (
	"context"
	"sync"

	"github.com/luxfi/rabia/metrics"
	"github.com/luxfi/rabia/pending"
	"github.com/luxfi/rabia/phasestore"
	"github.com/luxfi/rabia/statemachine"
	"github.com/luxfi/rabia/types"
)

// Resubmitter is the narrow slice of package intake the apply
// pipeline needs to trigger a retry after an abort.
type Resubmitter interface {
	Resubmit(ctx context.Context, batchID types.BatchId) error
}

// Pipeline serializes apply_commands invocations in PhaseId order.
// The application state machine is exclusively owned by Pipeline; no
// other component may call into it (spec §3).
type Pipeline struct {
	store    *phasestore.Store
	pending  *pending.Map
	machine  statemachine.Machine
	resubmit Resubmitter
	metrics  *metrics.Metrics

	mu   sync.Mutex
	next types.PhaseId
}

// New returns a Pipeline that starts applying from startFrom+1 (the
// phase after whatever highest_committed was restored to at startup).
func New(store *phasestore.Store, pendingMap *pending.Map, machine statemachine.Machine, resubmit Resubmitter, m *metrics.Metrics, startFrom types.PhaseId) *Pipeline {
	return &Pipeline{
		store:    store,
		pending:  pendingMap,
		machine:  machine,
		resubmit: resubmit,
		metrics:  m,
		next:     startFrom + 1,
	}
}

// Drain applies every contiguously-decided phase starting at p.next,
// stopping at the first phase that is missing or not yet decided
// (spec §4.7: "out-of-order V1 decisions wait"). It is safe to call
// repeatedly and concurrently; only one call does real work at a time.
func (p *Pipeline) Drain(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		pd, ok := p.store.Get(p.next)
		if !ok {
			return
		}
		decision, has := pd.Decided()
		if !has {
			return
		}

		if decision == types.V1 && pd.Batch == nil {
			// Decided V1 but the batch itself hasn't arrived yet (e.g.
			// this node only saw an optimization Decision message, not
			// the original Propose). Wait for the sync subprotocol or a
			// retried Propose to deliver it rather than silently
			// skipping the commands.
			return
		}

		switch decision {
		case types.V1:
			p.applyCommit(pd)
		default: // V0
			p.applyAbort(ctx, pd)
		}
		p.next++
	}
}

func (p *Pipeline) applyCommit(pd *phasestore.PhaseData) {
	if pd.Batch != nil {
		// Command-level errors are recorded but never stop the engine
		// or the apply sequence (spec §7): the batch is still
		// considered committed because the command order itself is
		// consensus-decided, independent of each command's outcome.
		_ = p.machine.ApplyCommands(pd.Batch.Commands)
		p.pending.Remove(pd.Batch.BatchId)
	}
	p.store.ObservePhase(pd.Phase)
	p.store.CommitPhase(pd.Phase)
	p.store.MarkTerminal(pd.Phase, phasestore.Applied)
	if p.metrics != nil {
		p.metrics.PhasesCommitted.Inc()
		p.metrics.PendingBatches.Set(float64(p.pending.Len()))
	}
}

func (p *Pipeline) applyAbort(ctx context.Context, pd *phasestore.PhaseData) {
	p.store.ObservePhase(pd.Phase)
	p.store.CommitPhase(pd.Phase)
	p.store.MarkTerminal(pd.Phase, phasestore.Aborted)
	if p.metrics != nil {
		p.metrics.PhasesAborted.Inc()
	}

	if pd.BatchId == (types.BatchId{}) {
		return
	}
	if _, ok := p.pending.Get(pd.BatchId); !ok || p.resubmit == nil {
		return
	}
	// Resubmission runs without the pipeline lock held, since it may
	// need to broadcast and should never block draining of later
	// phases.
	batchID := pd.BatchId
	go func() {
		_ = p.resubmit.Resubmit(ctx, batchID)
	}()
}

// NextPhase returns the next phase the pipeline is waiting to apply,
// for tests and statistics.
func (p *Pipeline) NextPhase() types.PhaseId {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next
}

// FastForward moves the pipeline's apply cursor to asOf+1 if it is not
// already past that point. It is used after installing an application
// snapshot received via sync (spec §4.5): the snapshot already
// reflects every phase up to and including asOf, so those phases must
// never be replayed through the state machine.
func (p *Pipeline) FastForward(asOf types.PhaseId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if asOf+1 > p.next {
		p.next = asOf + 1
	}
}
