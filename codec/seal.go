// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"errors"
	"fmt"

	"github.com/luxfi/rabia/types"
)

// Seal computes the checksum over msg's canonical encoding (with the
// checksum field itself held at zero) and writes it into msg's
// Envelope, then returns the final encoded frame ready to send.
func Seal(msg types.Enveloped) ([]byte, error) {
	env := msg.EnvelopeRef()
	env.Checksum = 0
	sum, err := Checksum(msg)
	if err != nil {
		return nil, err
	}
	env.Checksum = sum
	return EncodeFramed(msg)
}

// VerifyChecksum reports whether msg's Envelope.Checksum matches the
// checksum of its canonical encoding (spec §4.6 point 3).
func VerifyChecksum(msg types.Enveloped) bool {
	env := msg.EnvelopeRef()
	want := env.Checksum
	env.Checksum = 0
	got, err := Checksum(msg)
	env.Checksum = want
	if err != nil {
		return false
	}
	return got == want
}

// DecodeAndVerify decodes b into v (which must also satisfy
// types.Enveloped) and verifies its checksum, returning an error
// naming the specific failure so the caller can count it by reason.
func DecodeAndVerify(b []byte, v interface{}) error {
	if err := DecodeFramed(b, v); err != nil {
		if errors.Is(err, ErrFrameTooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	env, ok := v.(types.Enveloped)
	if !ok {
		return nil
	}
	if !VerifyChecksum(env) {
		return ErrChecksumMismatch
	}
	return nil
}
