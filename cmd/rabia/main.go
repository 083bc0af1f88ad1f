// Copyright (C) 2024-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command rabia runs a local cluster of replicas or a throughput
// benchmark against the consensus engine, entirely in-process, for
// development and demonstration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "rabia",
	Short: "Run and benchmark a local Rabia consensus cluster",
	Long: `rabia drives the consensus engine without any external network or
storage dependency: it wires an in-memory transport and in-memory
storage across a fixed number of in-process replicas.`,
}

func main() {
	rootCmd.AddCommand(runCmd(), benchCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
