// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package counter is a tiny deterministic application state machine
// used in benchmarks (cmd/rabia bench): every command adds a signed
// delta to a single int64.
package counter

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/luxfi/rabia/statemachine"
	"github.com/luxfi/rabia/types"
)

// Machine is a replicated counter.
type Machine struct {
	mu    sync.Mutex
	value int64
}

// New returns a counter starting at zero.
func New() *Machine {
	return &Machine{}
}

var _ statemachine.Machine = (*Machine)(nil)

func (m *Machine) ApplyCommands(cmds []types.Command) []statemachine.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]statemachine.Result, len(cmds))
	for i, cmd := range cmds {
		if len(cmd.Payload) != 8 {
			results[i] = statemachine.Result{CommandID: cmd.ID, Err: fmt.Errorf("counter: payload must be 8 bytes, got %d", len(cmd.Payload))}
			continue
		}
		delta := int64(binary.BigEndian.Uint64(cmd.Payload))
		m.value += delta
		out := make([]byte, 8)
		binary.BigEndian.PutUint64(out, uint64(m.value))
		results[i] = statemachine.Result{CommandID: cmd.ID, Output: out}
	}
	return results
}

func (m *Machine) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, uint64(m.value))
	return out, nil
}

func (m *Machine) Restore(snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(snapshot) != 8 {
		return fmt.Errorf("counter: snapshot must be 8 bytes, got %d", len(snapshot))
	}
	m.value = int64(binary.BigEndian.Uint64(snapshot))
	return nil
}

// Value returns the current counter value, for tests.
func (m *Machine) Value() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}
