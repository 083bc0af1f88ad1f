// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vote computes the round-1 and round-2 votes a node emits
// for a phase (spec §4.3). Safety comes entirely from the round-2
// forcing rule; randomization only affects how quickly round 1
// resolves.
package vote

import (
	"github.com/luxfi/rabia/internal/bag"
	"github.com/luxfi/rabia/internal/sampler"
	"github.com/luxfi/rabia/types"
)

// Biases holds the round-1 and round-2-tie randomization constants
// (spec §6, defaults 0.6/0.6). Any strictly-positive value preserves
// safety; only liveness quality varies (spec §9).
type Biases struct {
	R1BiasV1    float64
	R2TieBiasV1 float64
}

// Round1 computes the vote node N emits in round 1 for phase p, given
// the proposed value and whether N has already observed a different
// proposal for p (spec §4.3).
//
//   - conflicting proposal -> V? (uncertain)
//   - proposed V1 -> V1 w.p. R1BiasV1, else V?
//   - proposed V0 -> V0 w.p. R1BiasV1, else V?
//   - proposed V? -> V?
func Round1(proposed types.StateValue, conflicting bool, biases Biases, rng sampler.Source) types.StateValue {
	if conflicting {
		return types.VUncertain
	}
	switch proposed {
	case types.V1:
		if rng.Float64() < biases.R1BiasV1 {
			return types.V1
		}
		return types.VUncertain
	case types.V0:
		if rng.Float64() < biases.R1BiasV1 {
			return types.V0
		}
		return types.VUncertain
	default:
		return types.VUncertain
	}
}

// Round2 computes the vote node N emits in round 2 for phase p, given
// the round-1 outcome O and the round-1 vote tally T (spec §4.3).
// Round 2 is guaranteed to converge on V0 or V1: this function never
// returns VUncertain.
//
//   - O = V0 -> V0 (safety-forced)
//   - O = V1 -> V1 (safety-forced)
//   - O = V? -> biased by T: majority of {V0,V1} in T wins; ties (or
//     neither present) favor V1 w.p. R2TieBiasV1, else V0.
func Round2(round1Outcome types.StateValue, tally bag.Bag[types.StateValue], biases Biases, rng sampler.Source) types.StateValue {
	switch round1Outcome {
	case types.V0:
		return types.V0
	case types.V1:
		return types.V1
	}

	v0Count := tally.Count(types.V0)
	v1Count := tally.Count(types.V1)
	switch {
	case v1Count > v0Count:
		return types.V1
	case v0Count > v1Count:
		return types.V0
	default:
		// Tie, or neither V0 nor V1 appears in T: liveness bias toward
		// V1 (spec §4.3).
		if rng.Float64() < biases.R2TieBiasV1 {
			return types.V1
		}
		return types.V0
	}
}
