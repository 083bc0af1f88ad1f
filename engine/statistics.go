// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import "github.com/luxfi/rabia/types"

// Statistics is a point-in-time snapshot of engine progress, exposed
// alongside the Prometheus metrics for callers that want it without a
// scrape (spec §4.1).
type Statistics struct {
	CurrentPhase     types.PhaseId
	HighestCommitted types.PhaseId
	PendingBatches   int
	ActivePhases     int
	NextToApply      types.PhaseId
}

// Statistics returns a snapshot of the engine's current progress.
func (e *Engine) Statistics() Statistics {
	return Statistics{
		CurrentPhase:     e.store.CurrentPhase(),
		HighestCommitted: e.store.HighestCommitted(),
		PendingBatches:   e.pendingM.Len(),
		ActivePhases:     e.store.Len(),
		NextToApply:      e.pipeline.NextPhase(),
	}
}
