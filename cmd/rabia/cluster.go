// Copyright (C) 2024-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/rabia/config"
	"github.com/luxfi/rabia/engine"
	"github.com/luxfi/rabia/logging"
	"github.com/luxfi/rabia/statemachine"
	storagemem "github.com/luxfi/rabia/storage/memory"
	transportmem "github.com/luxfi/rabia/transport/memory"
	"github.com/prometheus/client_golang/prometheus"
)

// replica is one in-process node: its engine plus the application
// state machine driving it, so the caller can inspect committed
// state after a run.
type replica struct {
	id      ids.NodeID
	engine  *engine.Engine
	machine statemachine.Machine
}

// newLocalCluster spawns n in-process replicas sharing one memory
// transport hub, each with its own memory storage and a fresh machine
// from newMachine.
func newLocalCluster(n int, newMachine func() statemachine.Machine, logger logging.Logger) ([]*replica, error) {
	nodes := make([]ids.NodeID, n)
	for i := range nodes {
		nodes[i] = ids.GenerateTestNodeID()
	}

	hub := transportmem.NewHub()
	replicas := make([]*replica, n)
	for i, self := range nodes {
		params := config.Local(config.Cluster{Nodes: nodes, Self: self})
		t := hub.Join(self, params.Limits.MaxPendingBatches)
		store := storagemem.New()
		machine := newMachine()

		e, err := engine.New(params, t, store, machine, prometheus.NewRegistry(), logger)
		if err != nil {
			return nil, fmt.Errorf("rabia: building replica %s: %w", self, err)
		}
		replicas[i] = &replica{id: self, engine: e, machine: machine}
	}
	return replicas, nil
}
