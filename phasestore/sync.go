// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package phasestore

import (
	"time"

	"github.com/luxfi/rabia/types"
)

// ApplySyncedDecision installs a decision learned from a peer's
// SyncResponse rather than from locally-counted votes (spec §4.5).
// It is idempotent: a phase that already carries a decision is left
// untouched, so replaying the same sync response twice is safe.
func (s *Store) ApplySyncedDecision(p types.PhaseId, batch *types.CommandBatch, value types.StateValue) {
	sh := s.shardFor(p)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	pd, ok := sh.phases[p]
	if !ok {
		pd = newPhase(p)
		sh.phases[p] = pd
	}
	if pd.Batch == nil && batch != nil {
		pd.Batch = batch
		pd.BatchId = batch.BatchId
	}
	if pd.hasDecision {
		return
	}
	pd.Decision = value
	pd.hasDecision = true
	if pd.Status == New || pd.Status == Proposed || pd.Status == Round1Voting || pd.Status == Round1Decided || pd.Status == Round2Voting {
		pd.Status = Decided
	}
	if pd.CreatedAt.IsZero() {
		pd.CreatedAt = time.Now()
	}
}
