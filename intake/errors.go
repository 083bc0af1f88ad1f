// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package intake

import "errors"

// ErrQuorumUnavailable is returned by Submit when fewer than
// ⌊N/2⌋+1 peers (including self) are reachable at admission time
// (spec §4.1).
var ErrQuorumUnavailable = errors.New("intake: quorum unavailable")

// ErrBatchRejected is returned once a batch's retry budget is
// exhausted after repeated aborts (spec §4.4).
var ErrBatchRejected = errors.New("intake: batch rejected after exhausting retry budget")
