package raftstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"flintkv/internal/engine"
	"flintkv/internal/engine/index"
	regionpkg "flintkv/internal/region"
)

func TestSnapshotPayloadRoundTrip(t *testing.T) {
	a := newTestApplier()
	epoch := a.regionSnapshot().Epoch
	a.applyBatch([]Committed{
		mustEntry(t, 1, putCmd(epoch, 0, "a", "1")),
		mustEntry(t, 2, putCmd(epoch, 0, "b", "2")),
		mustEntry(t, 3, adminCmd(epoch, &AdminRequest{CmdType: AdminPrepareFlashback})),
	})

	payload, err := buildSnapshotPayload(a)
	require.NoError(t, err)
	require.True(t, payload.State.Region.IsInFlashback)
	require.Equal(t, uint64(3), payload.State.AppliedIndex)
	require.Len(t, payload.Pairs, 2)

	data, err := payload.Marshal()
	require.NoError(t, err)
	restored := new(SnapshotPayload)
	require.NoError(t, restored.Unmarshal(data))
	require.Equal(t, payload.State.Region.Epoch, restored.State.Region.Epoch)
	require.True(t, restored.State.Region.IsInFlashback)
	require.Len(t, restored.Pairs, 2)
}

func TestAdoptSnapshotCarriesFlashbackFlag(t *testing.T) {
	source := newTestApplier()
	epoch := source.regionSnapshot().Epoch
	source.applyBatch([]Committed{
		mustEntry(t, 1, putCmd(epoch, 0, "a", "1")),
		mustEntry(t, 2, adminCmd(epoch, &AdminRequest{CmdType: AdminPrepareFlashback})),
	})
	payload, err := buildSnapshotPayload(source)
	require.NoError(t, err)

	// A lagging replica adopting this snapshot must come out gating, with
	// the flag transition visible to its lease controller.
	follower := newApplier(2, testRegionState(), engine.NewMemory(index.SkipListIndex), nil)
	var transitions []bool
	follower.onFlashback = func(entering bool) { transitions = append(transitions, entering) }

	require.NoError(t, follower.adoptSnapshot(payload))
	region := follower.regionSnapshot()
	require.True(t, region.IsInFlashback)
	require.Equal(t, source.regionSnapshot().Epoch, region.Epoch)
	require.Equal(t, uint64(2), follower.localState().AppliedIndex)
	require.Equal(t, []bool{true}, transitions)

	value, err := follower.engine.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	// Plain writes replayed after catch-up hit the gate immediately.
	results := follower.applyBatch([]Committed{mustEntry(t, 3, putCmd(epoch, 0, "b", "2"))})
	require.NotNil(t, results[0].resp.Header.Error)
	require.NotNil(t, results[0].resp.Header.Error.FlashbackInProgress)
}

func TestAdoptSnapshotClearsStaleFlag(t *testing.T) {
	// Replica thinks it is in flashback; the snapshot says the flag
	// cleared while it was offline.
	follower := newTestApplier()
	epoch := follower.regionSnapshot().Epoch
	follower.applyBatch([]Committed{
		mustEntry(t, 1, adminCmd(epoch, &AdminRequest{CmdType: AdminPrepareFlashback})),
	})

	state := testRegionState()
	state.Region.Epoch = regionpkg.Epoch{Version: 5, ConfVersion: 1}
	state.AppliedIndex = 10
	payload := &SnapshotPayload{State: state}

	var transitions []bool
	follower.onFlashback = func(entering bool) { transitions = append(transitions, entering) }
	require.NoError(t, follower.adoptSnapshot(payload))
	require.False(t, follower.regionSnapshot().IsInFlashback)
	require.Equal(t, []bool{false}, transitions)
}
