// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package statemachine declares the application state machine
// capability the apply pipeline drives (spec §6). Determinism is a
// hard precondition: any two replicas with the same snapshot and
// command sequence must produce byte-identical results.
package statemachine

import "github.com/luxfi/rabia/types"

// Result is the outcome of executing a single command.
type Result struct {
	CommandID types.BatchId // command's own ids.ID, reusing the opaque ID type
	Output    []byte
	Err       error
}

// Machine is the capability set the apply pipeline consumes. No other
// component may call into it (spec §3: "exclusively owned by the
// apply pipeline").
type Machine interface {
	// ApplyCommands executes cmds in order and returns one Result per
	// command. An error on an individual command is recorded in that
	// command's Result and does not stop the engine or the sequence
	// (spec §7): the batch is still considered committed because the
	// command sequence itself is consensus-decided.
	ApplyCommands(cmds []types.Command) []Result
	// Snapshot returns a byte-serialized copy of the machine's current
	// state, used by the sync subprotocol's snapshot path.
	Snapshot() ([]byte, error)
	// Restore replaces the machine's state with a previously taken
	// snapshot.
	Restore(snapshot []byte) error
}
