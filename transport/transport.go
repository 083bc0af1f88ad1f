// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport declares the narrow capability interface the
// engine consumes for wire I/O (spec §6). It is a consumed contract,
// not a protocol implementation: connection management, peer
// discovery, and retries live entirely behind it.
package transport

import (
	"context"

	"github.com/luxfi/ids"
)

// Inbound is one received message: the raw encoded frame plus the
// peer it arrived from. Package codec/engine decodes and validates it.
type Inbound struct {
	From  ids.NodeID
	Frame []byte
}

// Transport is the capability set the engine requires from the
// network layer (spec §6). Every method may fail with a transient
// error; the engine treats transport failures as drops and relies on
// subsequent protocol activity (heartbeats, retries) rather than its
// own retry loop.
type Transport interface {
	// Send delivers frame to target. Errors are transient.
	Send(ctx context.Context, target ids.NodeID, frame []byte) error
	// Broadcast delivers frame to every connected peer except exclude.
	Broadcast(ctx context.Context, frame []byte, exclude ...ids.NodeID) error
	// NextInbound blocks until a frame arrives or ctx is done.
	NextInbound(ctx context.Context) (Inbound, error)
	// ConnectedPeers returns the currently reachable peer set,
	// including or excluding self per the implementation's convention;
	// package intake treats it as "other reachable nodes" and adds one
	// for self when computing quorum.
	ConnectedPeers() map[ids.NodeID]struct{}
}
