// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/luxfi/rabia/types"
)

// peekMode tolerates unknown fields, unlike the package's strict
// decMode: it exists only to read a frame's MessageKind before the
// caller picks the concrete type to fully decode into.
var peekMode cbor.DecMode

func init() {
	var err error
	peekMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: building peek decoder: %v", err))
	}
}

type kindHeader struct {
	Kind types.MessageKind
}

// PeekKind reads a frame's MessageKind without validating the rest of
// its payload.
func PeekKind(b []byte) (types.MessageKind, error) {
	if len(b) > MaxFrameBytes {
		return 0, ErrFrameTooLarge
	}
	var h kindHeader
	if err := peekMode.Unmarshal(b, &h); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return h.Kind, nil
}
