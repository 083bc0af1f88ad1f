// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage declares the persistence capability the engine
// consumes (spec §6). Writes happen off the hot path; a crashed node
// recovers by loading the snapshot, restoring the application state
// machine, then invoking sync.
package storage

import "github.com/luxfi/rabia/types"

// PersistedState is the minimum a crashed node needs to resume: how
// far it had committed, an identifier for the application snapshot it
// last took, and a checksum (package syncproto stores the checksum of
// an installed snapshot's bytes).
type PersistedState struct {
	HighestCommitted  types.PhaseId
	SnapshotID        types.BatchId
	Checksum          uint64
}

// Store is the persistence capability set.
type Store interface {
	SaveState(PersistedState) error
	LoadState() (PersistedState, bool, error)
}
