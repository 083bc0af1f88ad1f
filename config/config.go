// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config carries the engine's recognized configuration options
// (spec §6): cluster membership, timing, limits, batching, and the
// randomization bias constants consumed by package vote.
package config

import (
	"fmt"
	"time"

	"github.com/luxfi/ids"
)

// Cluster identifies the fixed replica set this engine instance runs
// within. Membership is fixed at engine start (no dynamic
// reconfiguration, per spec's Non-goals).
type Cluster struct {
	Nodes []ids.NodeID
	Self  ids.NodeID
}

// Quorum returns the strict-majority size, ⌊N/2⌋+1, of the cluster.
func (c Cluster) Quorum() int {
	return len(c.Nodes)/2 + 1
}

// Validate checks that Self is a member of Nodes and Nodes has no
// duplicates.
func (c Cluster) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("config: cluster.nodes must not be empty")
	}
	seen := make(map[ids.NodeID]bool, len(c.Nodes))
	selfFound := false
	for _, n := range c.Nodes {
		if seen[n] {
			return fmt.Errorf("config: duplicate node %s in cluster.nodes", n)
		}
		seen[n] = true
		if n == c.Self {
			selfFound = true
		}
	}
	if !selfFound {
		return fmt.Errorf("config: cluster.self %s is not a member of cluster.nodes", c.Self)
	}
	return nil
}

// Timing holds the durations that govern heartbeats, stall detection,
// cleanup cadence, and graceful shutdown (spec §5, §6).
type Timing struct {
	Heartbeat      time.Duration `json:"heartbeat" yaml:"heartbeat"`
	PhaseStall     time.Duration `json:"phase_stall" yaml:"phase_stall"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
	ShutdownGrace  time.Duration `json:"shutdown_grace" yaml:"shutdown_grace"`
	QuorumProbe    time.Duration `json:"quorum_probe_timeout" yaml:"quorum_probe_timeout"`
}

// Limits bounds memory and message sizes (spec §6).
type Limits struct {
	MaxPendingBatches int           `json:"max_pending_batches" yaml:"max_pending_batches"`
	MaxPhaseHistory   uint64        `json:"max_phase_history" yaml:"max_phase_history"`
	MaxFrameBytes     int           `json:"max_frame_bytes" yaml:"max_frame_bytes"`
	MaxClockSkew      time.Duration `json:"max_clock_skew" yaml:"max_clock_skew"`
	BoundedLookahead  uint64        `json:"bounded_lookahead" yaml:"bounded_lookahead"`
	MaxRetries        int           `json:"max_retries" yaml:"max_retries"`

	// SnapshotGapThreshold is how far behind a replica's
	// highest_committed may fall before a sync request is answered
	// with a snapshot instead of a contiguous decision run (spec
	// §4.5).
	SnapshotGapThreshold uint64 `json:"snapshot_gap_threshold" yaml:"snapshot_gap_threshold"`
	// SyncChunkSize bounds how many decided entries a single
	// SyncResponse carries, so responses stay well under
	// MaxFrameBytes and lagging replicas make visible incremental
	// progress (spec §4.5: "idempotent partial responses").
	SyncChunkSize int `json:"sync_chunk_size" yaml:"sync_chunk_size"`
}

// Batching controls how client batches are accumulated before a phase
// is proposed (spec §4.4, §6).
type Batching struct {
	MaxSize  int           `json:"max_size" yaml:"max_size"`
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
	Adaptive bool          `json:"adaptive" yaml:"adaptive"`
}

// Randomization exposes the round-1/round-2 bias knobs. Spec §9 notes
// these are defaults, not hard requirements: any strictly-positive
// bias preserves safety, only liveness quality varies.
type Randomization struct {
	R1BiasV1     float64 `json:"r1_bias_v1" yaml:"r1_bias_v1"`
	R2TieBiasV1  float64 `json:"r2_tie_bias_v1" yaml:"r2_tie_bias_v1"`
}

// Parameters is the full set of recognized engine configuration.
type Parameters struct {
	Cluster        Cluster
	Timing         Timing
	Limits         Limits
	Batching       Batching
	Randomization  Randomization
}

// Validate checks the parameters for internal consistency.
func (p Parameters) Validate() error {
	if err := p.Cluster.Validate(); err != nil {
		return err
	}
	if p.Limits.MaxFrameBytes <= 0 {
		return fmt.Errorf("config: limits.max_frame_bytes must be positive")
	}
	if p.Randomization.R1BiasV1 <= 0 || p.Randomization.R2TieBiasV1 <= 0 {
		return fmt.Errorf("config: randomization biases must be strictly positive")
	}
	return nil
}

// Default returns the engine's documented defaults (spec §6) for the
// given cluster membership.
func Default(cluster Cluster) Parameters {
	return Parameters{
		Cluster: cluster,
		Timing: Timing{
			Heartbeat:       2 * time.Second,
			PhaseStall:      30 * time.Second,
			CleanupInterval: 10 * time.Second,
			ShutdownGrace:   10 * time.Second,
			QuorumProbe:     5 * time.Second,
		},
		Limits: Limits{
			MaxPendingBatches: 4096,
			MaxPhaseHistory:   4 * 30, // multiple of phase_stall, per spec §9
			MaxFrameBytes:     16 << 20,
			MaxClockSkew:      30 * time.Second,
			BoundedLookahead:  1024,
			MaxRetries:        5,

			SnapshotGapThreshold: 512,
			SyncChunkSize:        256,
		},
		Batching: Batching{
			MaxSize:  256,
			MaxDelay: 5 * time.Millisecond,
			Adaptive: true,
		},
		Randomization: Randomization{
			R1BiasV1:    0.6,
			R2TieBiasV1: 0.6,
		},
	}
}

// Local returns parameters tuned for a small single-machine cluster,
// following the teacher's Mainnet/Testnet/Local preset convention.
func Local(cluster Cluster) Parameters {
	p := Default(cluster)
	p.Timing.Heartbeat = 200 * time.Millisecond
	p.Timing.PhaseStall = 3 * time.Second
	p.Timing.CleanupInterval = 1 * time.Second
	p.Timing.ShutdownGrace = 1 * time.Second
	p.Timing.QuorumProbe = 500 * time.Millisecond
	return p
}
