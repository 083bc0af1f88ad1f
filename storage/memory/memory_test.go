// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package memory

import (
	"testing"

	"github.com/luxfi/rabia/storage"
	"github.com/luxfi/rabia/types"
	"github.com/stretchr/testify/require"
)

func TestLoadStateBeforeAnySaveReportsNotFound(t *testing.T) {
	require := require.New(t)

	s := New()
	_, found, err := s.LoadState()
	require.NoError(err)
	require.False(found)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	require := require.New(t)

	s := New()
	st := storage.PersistedState{HighestCommitted: 7, Checksum: 42}
	require.NoError(s.SaveState(st))

	got, found, err := s.LoadState()
	require.NoError(err)
	require.True(found)
	require.Equal(st, got)
}

func TestSaveStateOverwritesPreviousState(t *testing.T) {
	require := require.New(t)

	s := New()
	require.NoError(s.SaveState(storage.PersistedState{HighestCommitted: 1}))
	require.NoError(s.SaveState(storage.PersistedState{HighestCommitted: 2}))

	got, _, err := s.LoadState()
	require.NoError(err)
	require.Equal(types.PhaseId(2), got.HighestCommitted)
}
