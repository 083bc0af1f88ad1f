// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vote

import (
	"testing"

	"github.com/luxfi/rabia/internal/bag"
	"github.com/luxfi/rabia/internal/sampler"
	"github.com/luxfi/rabia/types"
	"github.com/stretchr/testify/require"
)

// constSource always returns the same float, letting tests pin
// exactly which side of a bias threshold the coin flip lands on.
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

var biases = Biases{R1BiasV1: 0.6, R2TieBiasV1: 0.6}

func TestRound1ConflictAlwaysUncertain(t *testing.T) {
	require := require.New(t)
	v := Round1(types.V1, true, biases, constSource(0.0))
	require.Equal(types.VUncertain, v)
}

func TestRound1BiasedTowardProposedValue(t *testing.T) {
	require := require.New(t)

	// 0.5 < R1BiasV1 (0.6): the biased branch wins.
	require.Equal(types.V1, Round1(types.V1, false, biases, constSource(0.5)))
	require.Equal(types.V0, Round1(types.V0, false, biases, constSource(0.5)))

	// 0.9 >= R1BiasV1: falls through to uncertain.
	require.Equal(types.VUncertain, Round1(types.V1, false, biases, constSource(0.9)))
	require.Equal(types.VUncertain, Round1(types.V0, false, biases, constSource(0.9)))
}

func TestRound1OfUncertainProposalStaysUncertain(t *testing.T) {
	require := require.New(t)
	require.Equal(types.VUncertain, Round1(types.VUncertain, false, biases, constSource(0.0)))
}

func TestRound2ForcedBySafetyWhenRound1Decisive(t *testing.T) {
	require := require.New(t)
	empty := bag.New[types.StateValue]()

	require.Equal(types.V0, Round2(types.V0, empty, biases, constSource(0.99)))
	require.Equal(types.V1, Round2(types.V1, empty, biases, constSource(0.0)))
}

func TestRound2FollowsTallyMajorityWhenRound1Uncertain(t *testing.T) {
	require := require.New(t)

	tally := bag.New[types.StateValue]()
	tally.Add(types.V1)
	tally.Add(types.V1)
	tally.Add(types.V0)

	require.Equal(types.V1, Round2(types.VUncertain, tally, biases, constSource(0.99)))
}

func TestRound2TieBreaksByBias(t *testing.T) {
	require := require.New(t)

	tally := bag.New[types.StateValue]()
	tally.Add(types.V1)
	tally.Add(types.V0)

	require.Equal(types.V1, Round2(types.VUncertain, tally, biases, constSource(0.1)))
	require.Equal(types.V0, Round2(types.VUncertain, tally, biases, constSource(0.99)))
}

func TestRound2NeverReturnsUncertain(t *testing.T) {
	require := require.New(t)
	empty := bag.New[types.StateValue]()
	rng := sampler.NewSeeded(42)
	for i := 0; i < 1000; i++ {
		require.NotEqual(types.VUncertain, Round2(types.VUncertain, empty, biases, rng))
	}
}
