// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"

	"github.com/luxfi/ids"
	"gopkg.in/yaml.v3"
)

// file is the on-disk shape of a config file; NodeID/self are strings
// so operators can write human-readable identifiers.
type file struct {
	Cluster struct {
		Nodes []string `yaml:"nodes"`
		Self  string   `yaml:"self"`
	} `yaml:"cluster"`
	Timing        Timing        `yaml:"timing"`
	Limits        Limits        `yaml:"limits"`
	Batching      Batching      `yaml:"batching"`
	Randomization Randomization `yaml:"randomization"`
}

// Load reads and validates a YAML config file at path.
func Load(path string) (Parameters, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Parameters{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	nodes := make([]ids.NodeID, 0, len(f.Cluster.Nodes))
	for _, s := range f.Cluster.Nodes {
		n, err := ids.NodeIDFromString(s)
		if err != nil {
			return Parameters{}, fmt.Errorf("config: cluster.nodes entry %q: %w", s, err)
		}
		nodes = append(nodes, n)
	}
	self, err := ids.NodeIDFromString(f.Cluster.Self)
	if err != nil {
		return Parameters{}, fmt.Errorf("config: cluster.self %q: %w", f.Cluster.Self, err)
	}

	p := Default(Cluster{Nodes: nodes, Self: self})
	if f.Timing != (Timing{}) {
		p.Timing = f.Timing
	}
	if f.Limits != (Limits{}) {
		p.Limits = f.Limits
	}
	if f.Batching != (Batching{}) {
		p.Batching = f.Batching
	}
	if f.Randomization != (Randomization{}) {
		p.Randomization = f.Randomization
	}

	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}
