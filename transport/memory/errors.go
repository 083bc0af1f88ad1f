// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import "errors"

var (
	errUnknownPeer  = errors.New("memory transport: unknown peer")
	errQueueFull    = errors.New("memory transport: inbound queue full")
	errPartitioned  = errors.New("memory transport: peer is partitioned")
)
