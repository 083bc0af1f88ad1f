// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sampler provides the per-node randomness source package
// vote uses for its round-1/round-2 biased coin flips. It is grounded
// in the teacher's utils/sampler.Source, narrowed to the one method
// voting actually needs (Float64) plus a deterministic constructor so
// tests can inject a fixed seed (spec §9).
package sampler

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

// Source draws independent, uniformly distributed floats in [0, 1).
// Results need not be reproducible across nodes but must be
// independent within a node (spec §4.3).
type Source interface {
	Float64() float64
}

type source struct {
	rng *rand.Rand
}

// New returns a Source seeded from the process's entropy source
// (spec §9: "a per-node PRNG seeded from a hardware/OS entropy source
// at start").
func New() Source {
	var seed int64
	if err := binary.Read(crand.Reader, binary.LittleEndian, &seed); err != nil {
		seed = time.Now().UnixNano()
	}
	return &source{rng: rand.New(rand.NewSource(seed))}
}

// NewSeeded returns a deterministic Source, for tests that need
// reproducible runs.
func NewSeeded(seed int64) Source {
	return &source{rng: rand.New(rand.NewSource(seed))}
}

func (s *source) Float64() float64 {
	return s.rng.Float64()
}
