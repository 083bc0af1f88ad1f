// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversToTargetInbox(t *testing.T) {
	require := require.New(t)

	hub := NewHub()
	a := hub.Join(ids.GenerateTestNodeID(), 4)
	bID := ids.GenerateTestNodeID()
	b := hub.Join(bID, 4)

	require.NoError(a.Send(context.Background(), bID, []byte("hello")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := b.NextInbound(ctx)
	require.NoError(err)
	require.Equal([]byte("hello"), msg.Frame)
}

func TestSendToUnknownPeerFails(t *testing.T) {
	hub := NewHub()
	a := hub.Join(ids.GenerateTestNodeID(), 4)
	require.Error(t, a.Send(context.Background(), ids.GenerateTestNodeID(), []byte("x")))
}

func TestBroadcastExcludesSelfAndExplicitExclusions(t *testing.T) {
	require := require.New(t)

	hub := NewHub()
	aID, bID, cID := ids.GenerateTestNodeID(), ids.GenerateTestNodeID(), ids.GenerateTestNodeID()
	a := hub.Join(aID, 4)
	b := hub.Join(bID, 4)
	c := hub.Join(cID, 4)

	require.NoError(a.Broadcast(context.Background(), []byte("m"), cID))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.NextInbound(ctx)
	require.NoError(err)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	_, err = c.NextInbound(ctx2)
	require.ErrorIs(err, context.DeadlineExceeded, "excluded peer must not receive the broadcast")
}

func TestPartitionBlocksSendUntilHealed(t *testing.T) {
	require := require.New(t)

	hub := NewHub()
	aID := ids.GenerateTestNodeID()
	bID := ids.GenerateTestNodeID()
	a := hub.Join(aID, 4)
	hub.Join(bID, 4)

	a.Partition(bID)
	require.Error(a.Send(context.Background(), bID, []byte("x")))

	a.Heal(bID)
	require.NoError(a.Send(context.Background(), bID, []byte("x")))
}

func TestConnectedPeersExcludesSelfAndPartitionedPeers(t *testing.T) {
	require := require.New(t)

	hub := NewHub()
	aID, bID, cID := ids.GenerateTestNodeID(), ids.GenerateTestNodeID(), ids.GenerateTestNodeID()
	a := hub.Join(aID, 4)
	hub.Join(bID, 4)
	hub.Join(cID, 4)

	peers := a.ConnectedPeers()
	require.Len(peers, 2)
	_, self := peers[aID]
	require.False(self)

	a.Partition(bID)
	peers = a.ConnectedPeers()
	require.Len(peers, 1)
	_, ok := peers[cID]
	require.True(ok)
}
