// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import "errors"

// Validation failure reasons (spec §4.6). Each is a distinct sentinel
// so callers can increment a per-reason counter without string
// matching.
var (
	ErrFrameTooLarge     = errors.New("codec: frame exceeds max_frame_bytes")
	ErrMalformed         = errors.New("codec: message did not parse")
	ErrChecksumMismatch  = errors.New("codec: checksum does not match payload")
	ErrClockSkew         = errors.New("codec: timestamp outside max_clock_skew")
	ErrUnknownSender     = errors.New("codec: sender is not a cluster member")
	ErrPhaseOutOfRange   = errors.New("codec: phase id is zero or beyond bounded lookahead")
)
