// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func threeNodeCluster() ([]ids.NodeID, Cluster) {
	nodes := []ids.NodeID{ids.GenerateTestNodeID(), ids.GenerateTestNodeID(), ids.GenerateTestNodeID()}
	return nodes, Cluster{Nodes: nodes, Self: nodes[0]}
}

func TestClusterQuorumIsStrictMajority(t *testing.T) {
	require := require.New(t)

	require.Equal(2, Cluster{Nodes: make([]ids.NodeID, 3)}.Quorum())
	require.Equal(3, Cluster{Nodes: make([]ids.NodeID, 5)}.Quorum())
	require.Equal(1, Cluster{Nodes: make([]ids.NodeID, 1)}.Quorum())
	require.Equal(2, Cluster{Nodes: make([]ids.NodeID, 2)}.Quorum())
}

func TestClusterValidateRejectsSelfNotAMember(t *testing.T) {
	require := require.New(t)

	nodes, c := threeNodeCluster()
	c.Self = ids.GenerateTestNodeID() // not in nodes
	require.Error(c.Validate())
	_ = nodes
}

func TestClusterValidateRejectsDuplicateNodes(t *testing.T) {
	require := require.New(t)

	n := ids.GenerateTestNodeID()
	c := Cluster{Nodes: []ids.NodeID{n, n}, Self: n}
	require.Error(c.Validate())
}

func TestClusterValidateAcceptsWellFormedCluster(t *testing.T) {
	require := require.New(t)

	_, c := threeNodeCluster()
	require.NoError(c.Validate())
}

func TestParametersValidateRejectsNonPositiveBias(t *testing.T) {
	require := require.New(t)

	_, c := threeNodeCluster()
	p := Default(c)
	p.Randomization.R1BiasV1 = 0
	require.Error(p.Validate())

	p2 := Default(c)
	p2.Randomization.R2TieBiasV1 = -0.1
	require.Error(p2.Validate())
}

func TestParametersValidateRejectsNonPositiveMaxFrameBytes(t *testing.T) {
	require := require.New(t)

	_, c := threeNodeCluster()
	p := Default(c)
	p.Limits.MaxFrameBytes = 0
	require.Error(p.Validate())
}

func TestDefaultParametersValidate(t *testing.T) {
	require := require.New(t)

	_, c := threeNodeCluster()
	require.NoError(Default(c).Validate())
	require.NoError(Local(c).Validate())
}

func TestLocalPresetIsFasterThanDefault(t *testing.T) {
	require := require.New(t)

	_, c := threeNodeCluster()
	d := Default(c)
	l := Local(c)
	require.Less(l.Timing.Heartbeat, d.Timing.Heartbeat)
	require.Less(l.Timing.PhaseStall, d.Timing.PhaseStall)
}
