package raftstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	regionpkg "flintkv/internal/region"
)

func TestStateStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	states, err := OpenStateStore(dir)
	require.NoError(t, err)

	state := regionpkg.LocalState{
		Region: regionpkg.Region{
			ID:            7,
			Range:         regionpkg.KeyRange{Start: []byte("a"), End: []byte("z")},
			Epoch:         regionpkg.Epoch{Version: 3, ConfVersion: 2},
			Peers:         []regionpkg.Peer{{ID: 70, StoreID: 1}},
			IsInFlashback: true,
		},
		AppliedIndex: 42,
		AppliedTerm:  5,
	}
	require.NoError(t, states.Save(state))
	require.NoError(t, states.Close())

	// The flashback flag and apply bookkeeping must survive a reopen.
	states, err = OpenStateStore(dir)
	require.NoError(t, err)
	defer states.Close()

	loaded, found, err := states.Load(7)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, loaded.Region.IsInFlashback)
	require.Equal(t, state.Region.Epoch, loaded.Region.Epoch)
	require.Equal(t, uint64(42), loaded.AppliedIndex)
	require.Equal(t, []byte("a"), loaded.Region.Range.Start)

	_, found, err = states.Load(8)
	require.NoError(t, err)
	require.False(t, found)
}

func TestStateStoreForEachAndDelete(t *testing.T) {
	states, err := OpenStateStore(t.TempDir())
	require.NoError(t, err)
	defer states.Close()

	for id := regionpkg.ID(1); id <= 3; id++ {
		require.NoError(t, states.Save(regionpkg.LocalState{
			Region: regionpkg.Region{ID: id},
		}))
	}

	var seen []regionpkg.ID
	require.NoError(t, states.ForEach(func(state regionpkg.LocalState) error {
		seen = append(seen, state.Region.ID)
		return nil
	}))
	require.Len(t, seen, 3)

	require.NoError(t, states.Delete(2))
	_, found, err := states.Load(2)
	require.NoError(t, err)
	require.False(t, found)
}
