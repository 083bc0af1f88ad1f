// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kv is a minimal deterministic key-value application state
// machine: a reference front end, not an engine component, in the
// spirit of the teacher's examples/ demo apps (spec.md explicitly
// scopes KV/banking/counter front ends out of the consensus core).
package kv

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/luxfi/rabia/statemachine"
	"github.com/luxfi/rabia/types"
)

// Op is a single key-value operation, the command payload's decoded
// form.
type Op struct {
	Kind  string `json:"kind"` // "set", "delete", or "get"
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
}

// Machine is a deterministic in-memory KV store.
type Machine struct {
	mu    sync.Mutex
	store map[string][]byte
}

// New returns an empty Machine.
func New() *Machine {
	return &Machine{store: make(map[string][]byte)}
}

var _ statemachine.Machine = (*Machine)(nil)

func (m *Machine) ApplyCommands(cmds []types.Command) []statemachine.Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	results := make([]statemachine.Result, len(cmds))
	for i, cmd := range cmds {
		var op Op
		if err := json.Unmarshal(cmd.Payload, &op); err != nil {
			results[i] = statemachine.Result{CommandID: cmd.ID, Err: fmt.Errorf("kv: decode command: %w", err)}
			continue
		}
		switch op.Kind {
		case "set":
			m.store[op.Key] = op.Value
			results[i] = statemachine.Result{CommandID: cmd.ID, Output: op.Value}
		case "delete":
			delete(m.store, op.Key)
			results[i] = statemachine.Result{CommandID: cmd.ID}
		case "get":
			results[i] = statemachine.Result{CommandID: cmd.ID, Output: m.store[op.Key]}
		default:
			results[i] = statemachine.Result{CommandID: cmd.ID, Err: fmt.Errorf("kv: unknown op kind %q", op.Kind)}
		}
	}
	return results
}

func (m *Machine) Snapshot() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return json.Marshal(m.store)
}

func (m *Machine) Restore(snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	store := make(map[string][]byte)
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &store); err != nil {
			return fmt.Errorf("kv: restore: %w", err)
		}
	}
	m.store = store
	return nil
}

// Get reads a key directly, for tests asserting on the replicated
// state rather than going through ApplyCommands.
func (m *Machine) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[key]
	return v, ok
}
