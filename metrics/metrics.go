// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics registers the Prometheus counters, gauges and
// histograms the engine updates (Engine.Statistics is a separate
// snapshot read from the phase store and pending map), grounded in the teacher's poll-set metrics
// registration (engine/chain/poll/set.go registers a pending-polls
// gauge and a poll-duration averager the same way).
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter/gauge/histogram the engine updates on
// its hot path.
type Metrics struct {
	PhasesProposed   prometheus.Counter
	PhasesCommitted  prometheus.Counter
	PhasesAborted    prometheus.Counter
	BatchesRejected  prometheus.Counter
	ValidationDrops  *prometheus.CounterVec
	PendingBatches   prometheus.Gauge
	ActivePhases     prometheus.Gauge
	PhaseDuration    prometheus.Histogram
	SyncLagApplied   prometheus.Counter
}

// New registers and returns a Metrics instance against reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		PhasesProposed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rabia_phases_proposed_total",
			Help: "Number of phases this node has proposed or observed a propose for.",
		}),
		PhasesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rabia_phases_committed_total",
			Help: "Number of phases decided V1 and applied.",
		}),
		PhasesAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rabia_phases_aborted_total",
			Help: "Number of phases decided V0.",
		}),
		BatchesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rabia_batches_rejected_total",
			Help: "Number of batches that exhausted their retry budget.",
		}),
		ValidationDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rabia_validation_drops_total",
			Help: "Number of inbound messages dropped, by reason.",
		}, []string{"reason"}),
		PendingBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rabia_pending_batches",
			Help: "Number of batches awaiting a decision.",
		}),
		ActivePhases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rabia_active_phases",
			Help: "Number of non-terminal phases tracked in the phase store.",
		}),
		PhaseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rabia_phase_duration_seconds",
			Help:    "Wall-clock time from phase creation to decision.",
			Buckets: prometheus.DefBuckets,
		}),
		SyncLagApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rabia_sync_decisions_applied_total",
			Help: "Number of decisions applied via the sync subprotocol rather than live voting.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.PhasesProposed, m.PhasesCommitted, m.PhasesAborted, m.BatchesRejected,
		m.ValidationDrops, m.PendingBatches, m.ActivePhases, m.PhaseDuration, m.SyncLagApplied,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}
	return m, nil
}
