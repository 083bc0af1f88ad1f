// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types defines the data model shared across the engine:
// identifiers, commands, batches, and the StateValue vote lattice
// (spec §3).
package types

import (
	"time"

	"github.com/luxfi/ids"
)

// PhaseId is a monotonically increasing counter identifying one
// instance of the agreement procedure. 0 is reserved ("no phase").
type PhaseId uint64

// NoPhase is the reserved zero value meaning "no phase assigned yet".
const NoPhase PhaseId = 0

// NodeId is the opaque identity of a replica.
type NodeId = ids.NodeID

// BatchId is the opaque identity of a client-submitted batch.
type BatchId = ids.ID

// Command is an atomic, opaque unit of application work inside a batch.
type Command struct {
	ID        ids.ID
	Payload   []byte
	CreatedAt time.Time
}

// CommandBatch is an ordered sequence of commands agreed upon as a
// single consensus value. The order of Commands is part of the
// consensus value: two replicas that commit the same BatchId commit
// the same command order.
type CommandBatch struct {
	BatchId  BatchId
	Commands []Command
	// Checksum is set by package intake on submit to the checksum of
	// the batch's canonical encoding. It is excluded from that
	// encoding, so it is not carried on the wire and is not verified on
	// decode; a batch in a message is covered by the Envelope checksum.
	Checksum uint64 `cbor:"-"`
}

// StateValue is the three-valued lattice voted over during a phase.
// V? (uncertain) is a randomization sentinel: it is recorded during
// voting but is never itself a final decision.
type StateValue uint8

const (
	// V0 means "forfeit this batch" (abort).
	V0 StateValue = iota
	// V1 means "commit this batch".
	V1
	// VUncertain ("V?") records round-1 inconclusiveness and forces
	// round 2; it must never be emitted as a round-2 vote or recorded
	// as a decision.
	VUncertain
)

func (v StateValue) String() string {
	switch v {
	case V0:
		return "V0"
	case V1:
		return "V1"
	case VUncertain:
		return "V?"
	default:
		return "invalid"
	}
}

// IsDecidable reports whether v is a value that may be a final
// decision (V0 or V1, never VUncertain).
func (v StateValue) IsDecidable() bool {
	return v == V0 || v == V1
}
