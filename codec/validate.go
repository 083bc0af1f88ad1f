// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rabia/types"
)

// ValidateEnvelope runs the sender-and-timestamp checks common to
// every message (spec §4.6 points 4-5): the sender must be a current
// cluster member and the timestamp must be within maxSkew of now.
// Frame size, parsing, and checksum are handled by DecodeAndVerify;
// phase-range bounds are handled by ValidatePhaseBounds below, since
// only phase-bearing messages carry a PhaseId.
func ValidateEnvelope(env *types.Envelope, now time.Time, maxSkew time.Duration, isMember func(ids.NodeID) bool) error {
	if !isMember(env.Sender) {
		return ErrUnknownSender
	}
	skew := now.Sub(env.Timestamp)
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		return ErrClockSkew
	}
	return nil
}

// ValidatePhaseBounds checks that a phase-bearing message's PhaseId is
// in (0, currentPhase+lookahead] (spec §4.6 point 6).
func ValidatePhaseBounds(phaseID, currentPhase types.PhaseId, lookahead uint64) error {
	if phaseID == types.NoPhase {
		return ErrPhaseOutOfRange
	}
	if uint64(phaseID) > uint64(currentPhase)+lookahead {
		return ErrPhaseOutOfRange
	}
	return nil
}
