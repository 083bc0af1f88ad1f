// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package memory implements transport.Transport entirely in-process
// over buffered Go channels, for tests and the cmd/rabia local
// cluster. It has no teacher analogue (the teacher's real transports
// are full libp2p/QUIC stacks out of this spec's scope); it exists
// only to give the engine something to drive end-to-end without a
// real network.
package memory

import (
	"context"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/rabia/transport"
)

// Hub wires a fixed set of in-process nodes together.
type Hub struct {
	mu    sync.RWMutex
	nodes map[ids.NodeID]*Node
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{nodes: make(map[ids.NodeID]*Node)}
}

// Join registers self on the hub and returns its Transport handle.
// inboxSize bounds the per-node inbound queue.
func (h *Hub) Join(self ids.NodeID, inboxSize int) *Node {
	n := &Node{
		hub:    h,
		self:   self,
		inbox:  make(chan transport.Inbound, inboxSize),
	}
	h.mu.Lock()
	h.nodes[self] = n
	h.mu.Unlock()
	return n
}

// Node is one in-process participant.
type Node struct {
	hub   *Hub
	self  ids.NodeID
	inbox chan transport.Inbound

	mu        sync.RWMutex
	partition map[ids.NodeID]bool // nodes this Node cannot reach, for fault injection
}

var _ transport.Transport = (*Node)(nil)

func (n *Node) Send(ctx context.Context, target ids.NodeID, frame []byte) error {
	if n.isPartitioned(target) {
		return errPartitioned
	}
	n.hub.mu.RLock()
	peer, ok := n.hub.nodes[target]
	n.hub.mu.RUnlock()
	if !ok {
		return errUnknownPeer
	}
	select {
	case peer.inbox <- transport.Inbound{From: n.self, Frame: frame}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errQueueFull
	}
}

func (n *Node) Broadcast(ctx context.Context, frame []byte, exclude ...ids.NodeID) error {
	skip := make(map[ids.NodeID]bool, len(exclude)+1)
	skip[n.self] = true
	for _, e := range exclude {
		skip[e] = true
	}
	n.hub.mu.RLock()
	targets := make([]ids.NodeID, 0, len(n.hub.nodes))
	for id := range n.hub.nodes {
		if !skip[id] {
			targets = append(targets, id)
		}
	}
	n.hub.mu.RUnlock()

	var firstErr error
	for _, t := range targets {
		if err := n.Send(ctx, t, frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *Node) NextInbound(ctx context.Context) (transport.Inbound, error) {
	select {
	case msg := <-n.inbox:
		return msg, nil
	case <-ctx.Done():
		return transport.Inbound{}, ctx.Err()
	}
}

func (n *Node) ConnectedPeers() map[ids.NodeID]struct{} {
	n.hub.mu.RLock()
	defer n.hub.mu.RUnlock()
	out := make(map[ids.NodeID]struct{}, len(n.hub.nodes))
	for id := range n.hub.nodes {
		if id != n.self && !n.isPartitioned(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Partition makes target unreachable from n, simulating a crashed or
// network-partitioned peer for tests.
func (n *Node) Partition(target ids.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.partition == nil {
		n.partition = make(map[ids.NodeID]bool)
	}
	n.partition[target] = true
}

// Heal reverses Partition.
func (n *Node) Heal(target ids.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.partition, target)
}

func (n *Node) isPartitioned(target ids.NodeID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.partition[target]
}
