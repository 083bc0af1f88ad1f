// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package memory implements storage.Store in memory, for tests and
// the cmd/rabia local cluster. A real deployment persists to disk
// (the out-of-scope collaborator spec §6 describes); this fake just
// gives the engine something to recover state from across a simulated
// restart.
package memory

import (
	"sync"

	"github.com/luxfi/rabia/storage"
)

// Store is an in-memory storage.Store.
type Store struct {
	mu    sync.Mutex
	state storage.PersistedState
	has   bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) SaveState(st storage.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	s.has = true
	return nil
}

func (s *Store) LoadState() (storage.PersistedState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.has, nil
}
