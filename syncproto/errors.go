// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package syncproto

import "errors"

// ErrRegressingSnapshot is returned when a SyncResponse's snapshot is
// as-of a phase this node has already passed. Accepting it would move
// highest_committed backwards, which invariant 5 forbids.
var ErrRegressingSnapshot = errors.New("syncproto: snapshot is behind local highest_committed")
