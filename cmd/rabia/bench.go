// Copyright (C) 2024-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rabia/logging"
	"github.com/luxfi/rabia/statemachine"
	"github.com/luxfi/rabia/statemachine/counter"
	"github.com/luxfi/rabia/types"
	"github.com/spf13/cobra"
)

func benchCmd() *cobra.Command {
	var nodes int
	var batches int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure phases-per-second against an in-process replicated counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(nodes, batches)
		},
	}
	cmd.Flags().IntVar(&nodes, "nodes", 3, "number of replicas")
	cmd.Flags().IntVar(&batches, "batches", 1000, "number of single-command batches to submit")
	return cmd
}

func runBench(nodes, batches int) error {
	logger := logging.NewNop()

	replicas, err := newLocalCluster(nodes, func() statemachine.Machine { return counter.New() }, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, r := range replicas {
		go r.engine.Run(ctx) //nolint:errcheck
	}

	submitter := replicas[0]
	start := time.Now()
	for i := 0; i < batches; i++ {
		delta := make([]byte, 8)
		binary.BigEndian.PutUint64(delta, 1)
		batch := types.CommandBatch{
			BatchId:  ids.GenerateTestID(),
			Commands: []types.Command{{ID: ids.GenerateTestID(), Payload: delta, CreatedAt: time.Now()}},
		}
		submitCtx, submitCancel := context.WithTimeout(ctx, 5*time.Second)
		err := submitter.engine.Submit(submitCtx, batch)
		submitCancel()
		if err != nil {
			fmt.Printf("submit %d failed: %v\n", i, err)
		}
	}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		allCaught := true
		for _, r := range replicas {
			if int64(r.engine.Statistics().HighestCommitted) < int64(batches) {
				allCaught = false
				break
			}
		}
		if allCaught {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	elapsed := time.Since(start)

	for _, r := range replicas {
		stats := r.engine.Statistics()
		fmt.Printf("node %s: highest_committed=%d\n", r.id, stats.HighestCommitted)
	}
	fmt.Printf("submitted %d batches in %s (%.1f phases/sec)\n", batches, elapsed, float64(batches)/elapsed.Seconds())

	for _, r := range replicas {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.engine.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	return nil
}
