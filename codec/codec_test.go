// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package codec

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/rabia/types"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	require := require.New(t)

	batch := types.CommandBatch{
		BatchId: ids.GenerateTestID(),
		Commands: []types.Command{
			{ID: ids.GenerateTestID(), Payload: []byte("hello"), CreatedAt: time.Now().Truncate(time.Second)},
		},
	}

	b, err := Marshal(batch)
	require.NoError(err)

	var out types.CommandBatch
	require.NoError(Unmarshal(b, &out))
	require.Equal(batch.BatchId, out.BatchId)
	require.Len(out.Commands, 1)
	require.Equal(batch.Commands[0].ID, out.Commands[0].ID)
	require.Equal(batch.Commands[0].Payload, out.Commands[0].Payload)
}

func TestMarshalIsCanonical(t *testing.T) {
	require := require.New(t)

	batch := types.CommandBatch{BatchId: ids.GenerateTestID()}
	a, err := Marshal(batch)
	require.NoError(err)
	b, err := Marshal(batch)
	require.NoError(err)
	require.Equal(a, b)
}

func TestChecksumDetectsMutation(t *testing.T) {
	require := require.New(t)

	batch := types.CommandBatch{BatchId: ids.GenerateTestID(), Commands: []types.Command{{ID: ids.GenerateTestID(), Payload: []byte("a")}}}
	sum, err := Checksum(batch)
	require.NoError(err)

	batch.Commands[0].Payload = []byte("b")
	sum2, err := Checksum(batch)
	require.NoError(err)
	require.NotEqual(sum, sum2)
}

func TestUnmarshalRejectsUnknownFields(t *testing.T) {
	require := require.New(t)

	type extended struct {
		types.CommandBatch
		Extra string
	}
	b, err := Marshal(extended{CommandBatch: types.CommandBatch{BatchId: ids.GenerateTestID()}, Extra: "surprise"})
	require.NoError(err)

	var out types.CommandBatch
	err = Unmarshal(b, &out)
	require.Error(err)
}

func TestEncodeFramedRejectsOversizedFrame(t *testing.T) {
	require := require.New(t)

	batch := types.CommandBatch{
		BatchId:  ids.GenerateTestID(),
		Commands: []types.Command{{ID: ids.GenerateTestID(), Payload: make([]byte, MaxFrameBytes+1)}},
	}
	_, err := EncodeFramed(batch)
	require.Error(err)
}

func TestDecodeFramedRejectsOversizedInput(t *testing.T) {
	require := require.New(t)

	oversized := make([]byte, MaxFrameBytes+1)
	var out types.CommandBatch
	err := DecodeFramed(oversized, &out)
	require.ErrorContains(err, "exceeds max")
}

func TestSealAndVerifyChecksum(t *testing.T) {
	require := require.New(t)

	msg := &types.Vote{
		Envelope: types.Envelope{Kind: types.KindVote, Sender: ids.GenerateTestNodeID(), Timestamp: time.Now()},
		PhaseId:  7,
		Round:    types.Round1,
		Value:    types.V1,
	}
	frame, err := Seal(msg)
	require.NoError(err)
	require.True(VerifyChecksum(msg))

	var decoded types.Vote
	require.NoError(DecodeAndVerify(frame, &decoded))
	require.Equal(msg.PhaseId, decoded.PhaseId)
	require.Equal(msg.Value, decoded.Value)
}

func TestDecodeAndVerifyRejectsTamperedFrame(t *testing.T) {
	require := require.New(t)

	msg := &types.Vote{
		Envelope: types.Envelope{Kind: types.KindVote, Sender: ids.GenerateTestNodeID(), Timestamp: time.Now()},
		PhaseId:  1,
		Round:    types.Round2,
		Value:    types.V0,
	}
	frame, err := Seal(msg)
	require.NoError(err)

	tampered := append([]byte(nil), frame...)
	tampered[len(tampered)-1] ^= 0xFF

	var decoded types.Vote
	err = DecodeAndVerify(tampered, &decoded)
	require.Error(err)
}

func TestPeekKindMatchesConstructedMessage(t *testing.T) {
	require := require.New(t)

	msg := &types.Heartbeat{Envelope: types.Envelope{Kind: types.KindHeartbeat, Sender: ids.GenerateTestNodeID(), Timestamp: time.Now()}}
	frame, err := Seal(msg)
	require.NoError(err)

	kind, err := PeekKind(frame)
	require.NoError(err)
	require.Equal(types.KindHeartbeat, kind)
}
