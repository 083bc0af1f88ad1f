// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pending implements the PendingBatch map (spec §3, §4.4): the
// BatchId-keyed record of a client batch from admission until its
// phase reaches a terminal state. It is sharded the same way as
// package phasestore so intake and the apply pipeline never contend
// on a single global lock.
package pending

import (
	"sync"
	"time"

	"github.com/luxfi/rabia/types"
)

const numShards = 16

// Entry is one PendingBatch record.
type Entry struct {
	Batch        types.CommandBatch
	Proposer     types.NodeId
	SubmittedAt  time.Time
	Phase        types.PhaseId // types.NoPhase until assigned
	Retries      int
}

type shard struct {
	mu      sync.Mutex
	entries map[types.BatchId]*Entry
}

// Map is the sharded PendingBatch store.
type Map struct {
	shards [numShards]*shard
}

// New returns an empty Map.
func New() *Map {
	m := &Map{}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[types.BatchId]*Entry)}
	}
	return m
}

func (m *Map) shardFor(id types.BatchId) *shard {
	var h uint64
	for _, b := range id[:8] {
		h = h<<8 | uint64(b)
	}
	return m.shards[h%numShards]
}

// Put inserts a new pending entry for batch, submitted by proposer.
// It is a no-op if the batch is already pending.
func (m *Map) Put(batch types.CommandBatch, proposer types.NodeId, now time.Time) {
	sh := m.shardFor(batch.BatchId)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, exists := sh.entries[batch.BatchId]; exists {
		return
	}
	sh.entries[batch.BatchId] = &Entry{
		Batch:       batch,
		Proposer:    proposer,
		SubmittedAt: now,
		Phase:       types.NoPhase,
	}
}

// AssignPhase records which phase a pending batch was proposed under.
func (m *Map) AssignPhase(id types.BatchId, phase types.PhaseId) {
	sh := m.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok := sh.entries[id]; ok {
		e.Phase = phase
	}
}

// Get returns the pending entry for id, if any.
func (m *Map) Get(id types.BatchId) (Entry, bool) {
	sh := m.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Remove deletes the pending entry for id. Called in the same atomic
// step as apply or explicit abort (invariant 4): the caller holds
// whatever lock makes its own state transition atomic with this call
// (for this in-memory map, deletion itself is already atomic under
// the shard lock; ordering relative to phase-store transitions is the
// caller's responsibility, enforced by apply/intake always calling
// Remove only after the phase-store decision is durably recorded).
func (m *Map) Remove(id types.BatchId) (Entry, bool) {
	sh := m.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[id]
	if ok {
		delete(sh.entries, id)
		return *e, true
	}
	return Entry{}, false
}

// IncrementRetries bumps an entry's retry counter and returns the new
// count, used by intake's resubmission budget.
func (m *Map) IncrementRetries(id types.BatchId) int {
	sh := m.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[id]
	if !ok {
		return 0
	}
	e.Retries++
	return e.Retries
}

// Len returns the number of pending batches.
func (m *Map) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
