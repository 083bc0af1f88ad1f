// Copyright (C) 2024-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rabia/logging"
	"github.com/luxfi/rabia/statemachine"
	"github.com/luxfi/rabia/statemachine/kv"
	"github.com/luxfi/rabia/types"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var nodes int
	var commands int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an in-process replica cluster backed by a key-value store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCluster(nodes, commands)
		},
	}
	cmd.Flags().IntVar(&nodes, "nodes", 3, "number of replicas")
	cmd.Flags().IntVar(&commands, "commands", 10, "number of demo set commands to submit")
	return cmd
}

func runCluster(nodes, commands int) error {
	logger := logging.NewDevelopment()
	defer logger.Sync() //nolint:errcheck

	replicas, err := newLocalCluster(nodes, func() statemachine.Machine { return kv.New() }, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, r := range replicas {
		wg.Add(1)
		go func(r *replica) {
			defer wg.Done()
			if err := r.engine.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Errorw("replica exited", "node", r.id, "err", err)
			}
		}(r)
	}

	submitter := replicas[0]
	for i := 0; i < commands; i++ {
		op := kv.Op{Kind: "set", Key: fmt.Sprintf("key-%d", i), Value: []byte(fmt.Sprintf("value-%d", i))}
		payload, _ := json.Marshal(op)
		batch := types.CommandBatch{
			BatchId:  ids.GenerateTestID(),
			Commands: []types.Command{{ID: ids.GenerateTestID(), Payload: payload, CreatedAt: time.Now()}},
		}
		submitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := submitter.engine.Submit(submitCtx, batch)
		cancel()
		if err != nil {
			logger.Warnw("submit failed", "err", err)
		}
	}

	time.Sleep(500 * time.Millisecond)
	for _, r := range replicas {
		stats := r.engine.Statistics()
		fmt.Printf("node %s: highest_committed=%d current_phase=%d pending=%d\n", r.id, stats.HighestCommitted, stats.CurrentPhase, stats.PendingBatches)
	}

	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, r := range replicas {
		_ = r.engine.Shutdown(shutdownCtx)
	}
	wg.Wait()
	return nil
}
