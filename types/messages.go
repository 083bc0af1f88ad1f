// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "time"

// Round identifies which of the two Rabia voting rounds a Vote belongs
// to.
type Round uint8

const (
	Round1 Round = 1
	Round2 Round = 2
)

// MessageKind discriminates the wire message types so a receiver can
// decode a frame's envelope before committing to a concrete payload
// type (spec §4.6).
type MessageKind uint8

const (
	KindPropose MessageKind = iota + 1
	KindVote
	KindDecision
	KindHeartbeat
	KindSyncRequest
	KindSyncResponse
)

// Envelope carries the fields every wire message has in common (spec
// §6): which kind of message this is, sender identity, a monotonic
// timestamp for clock-skew checking, and a checksum over the canonical
// encoding of the payload. Codec fills Checksum at encode time; each
// constructor is responsible for setting Kind.
type Envelope struct {
	Kind      MessageKind
	Sender    NodeId
	Timestamp time.Time
	Checksum  uint64
}

// Enveloped is implemented by every wire message type so that package
// codec can seal and verify the Envelope's checksum generically.
type Enveloped interface {
	EnvelopeRef() *Envelope
}

// Propose carries a batch proposal for a phase.
type Propose struct {
	Envelope
	PhaseId PhaseId
	BatchId BatchId
	Value   StateValue
	Batch   CommandBatch
}

// Vote carries one node's round-1 or round-2 vote for a phase.
type Vote struct {
	Envelope
	PhaseId PhaseId
	BatchId BatchId
	Round   Round
	Value   StateValue
}

// Decision is an optional optimization: decisions are otherwise
// derivable from votes, but broadcasting them lets replicas skip
// redundant vote processing.
type Decision struct {
	Envelope
	PhaseId PhaseId
	BatchId BatchId
	Value   StateValue // V0 or V1, never VUncertain
}

// Heartbeat advertises a node's progress so peers can detect lag.
type Heartbeat struct {
	Envelope
	HighestCommitted PhaseId
	CurrentPhase     PhaseId
}

// SyncRequest asks a peer for every decision after FromPhase.
type SyncRequest struct {
	Envelope
	FromPhase PhaseId
}

// SyncEntry is one decided phase returned in a SyncResponse.
type SyncEntry struct {
	PhaseId PhaseId
	Value   StateValue
	// Batch is populated only for V1 (committed) entries.
	Batch *CommandBatch
}

// SyncResponse carries a contiguous run of decisions, or, when the gap
// is large, an application snapshot as of SnapshotAsOfPhase (spec
// §4.5). A snapshot response built by package syncproto carries no
// decision suffix in Entries.
type SyncResponse struct {
	Envelope
	// SnapshotID identifies Snapshot; package syncproto leaves it zero
	// and identifies a snapshot by SnapshotAsOfPhase.
	SnapshotID      BatchId
	Snapshot        []byte
	SnapshotAsOfPhase PhaseId
	Entries         []SyncEntry
}

func (m *Propose) EnvelopeRef() *Envelope      { return &m.Envelope }
func (m *Vote) EnvelopeRef() *Envelope         { return &m.Envelope }
func (m *Decision) EnvelopeRef() *Envelope     { return &m.Envelope }
func (m *Heartbeat) EnvelopeRef() *Envelope    { return &m.Envelope }
func (m *SyncRequest) EnvelopeRef() *Envelope  { return &m.Envelope }
func (m *SyncResponse) EnvelopeRef() *Envelope { return &m.Envelope }
