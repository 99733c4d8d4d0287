package raftstore

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/raft/v3"

	"flintkv/internal/engine"
	regionpkg "flintkv/internal/region"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	raft.SetLogger(&raft.DefaultLogger{Logger: log.New(io.Discard, "", 0)})
	os.Exit(m.Run())
}

func openTestStore(t *testing.T, cfg StoreConfig) *Store {
	t.Helper()
	if cfg.StoreID == 0 {
		cfg.StoreID = 1
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 5 * time.Millisecond
	}
	store, err := OpenStore(cfg)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func waitLeader(t *testing.T, store *Store, regionID regionpkg.ID) *Peer {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		peer, err := store.Peer(regionID)
		if err == nil && peer.IsLeader() {
			return peer
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("region %d did not elect a leader", regionID)
	return nil
}

func regionError(t *testing.T, err error) *Error {
	t.Helper()
	regionErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected region error, got %T: %v", err, err)
	}
	return regionErr
}

func TestStorePutGet(t *testing.T) {
	store := openTestStore(t, StoreConfig{})
	waitLeader(t, store, 1)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []byte("k"), []byte("v"), 0))
	value, err := store.Get(ctx, []byte("k"), 0)
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	_, err = store.Get(ctx, []byte("missing"), 0)
	require.ErrorIs(t, err, engine.ErrKeyNotFound)

	require.NoError(t, store.Delete(ctx, []byte("k"), 0))
	_, err = store.Get(ctx, []byte("k"), 0)
	require.ErrorIs(t, err, engine.ErrKeyNotFound)
}

func TestStoreFlashbackLifecycle(t *testing.T) {
	store := openTestStore(t, StoreConfig{})
	peer := waitLeader(t, store, 1)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []byte("k"), []byte("v"), 0))

	state, err := store.RegionDetail(1)
	require.NoError(t, err)
	resp, err := store.PrepareFlashback(ctx, 1, state.Region.Epoch)
	require.NoError(t, err)
	require.Nil(t, resp.Header.Error)

	// Normal traffic is suspended in both directions of the flag.
	err = store.Put(ctx, []byte("k"), []byte("v2"), 0)
	require.NotNil(t, regionError(t, err).FlashbackInProgress)
	_, err = store.Get(ctx, []byte("k"), 0)
	require.NotNil(t, regionError(t, err).FlashbackInProgress)

	// The flashback executor's flagged requests pass.
	require.NoError(t, store.Put(ctx, []byte("k"), []byte("rolled-back"), FlagFlashback))

	// Lease reads are off: a flagged read must go through the log and
	// advance the applied index.
	before := peer.AppliedIndex()
	value, err := store.Get(ctx, []byte("k"), FlagFlashback)
	require.NoError(t, err)
	require.Equal(t, []byte("rolled-back"), value)
	require.Greater(t, peer.AppliedIndex(), before)
	require.False(t, peer.LeaseValid())

	// Leadership transfer is refused while the flag is up.
	detail, err := store.RegionDetail(1)
	require.NoError(t, err)
	require.True(t, detail.Region.IsInFlashback)
	resp, err = store.AdminCommand(ctx, 1, detail.Region.Epoch, &AdminRequest{
		CmdType: AdminTransferLeader, TransfereePeerID: 99,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Header.Error)
	require.NotNil(t, resp.Header.Error.FlashbackInProgress)

	resp, err = store.FinishFlashback(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, resp.Header.Error)

	require.NoError(t, store.Put(ctx, []byte("k"), []byte("v3"), 0))
	err = store.Put(ctx, []byte("k"), []byte("v4"), FlagFlashback)
	require.NotNil(t, regionError(t, err).FlashbackNotPrepared)

	// A retried finish after the flag cleared stays a success.
	resp, err = store.FinishFlashback(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, resp.Header.Error)
}

func TestStoreReadAfterLeaseLapse(t *testing.T) {
	store := openTestStore(t, StoreConfig{LeaseDuration: 20 * time.Millisecond})
	peer := waitLeader(t, store, 1)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, []byte("k"), []byte("v"), 0))
	time.Sleep(50 * time.Millisecond)
	require.False(t, peer.LeaseValid())

	// With the lease lapsed but no flashback in flight, the leader confirms
	// itself with a read index barrier and answers locally instead of
	// replicating the read.
	before := peer.AppliedIndex()
	value, err := store.Get(ctx, []byte("k"), 0)
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
	require.Equal(t, before, peer.AppliedIndex())
}

func TestStoreSplitRoutesAndFences(t *testing.T) {
	store := openTestStore(t, StoreConfig{})
	waitLeader(t, store, 1)
	ctx := context.Background()

	state, err := store.RegionDetail(1)
	require.NoError(t, err)
	preSplitEpoch := state.Region.Epoch

	newRegionID := regionpkg.ID(store.AllocID())
	newPeerID := store.AllocID()
	resp, err := store.AdminCommand(ctx, 1, preSplitEpoch, &AdminRequest{
		CmdType:     AdminSplit,
		SplitKey:    []byte("m"),
		NewRegionID: newRegionID,
		NewPeerIDs:  []uint64{newPeerID},
	})
	require.NoError(t, err)
	require.Nil(t, resp.Header.Error)
	require.Len(t, resp.Admin.Regions, 2)

	waitLeader(t, store, newRegionID)

	// Keys route to the owning half.
	require.NoError(t, store.Put(ctx, []byte("apple"), []byte("left"), 0))
	require.NoError(t, store.Put(ctx, []byte("zebra"), []byte("right"), 0))

	left, err := store.RegionDetail(newRegionID)
	require.NoError(t, err)
	require.Equal(t, []byte("m"), left.Region.Range.End)
	parent, err := store.RegionDetail(1)
	require.NoError(t, err)
	require.Equal(t, []byte("m"), parent.Region.Range.Start)

	// A prepare still carrying the pre-split epoch is fenced.
	resp, err = store.PrepareFlashback(ctx, 1, preSplitEpoch)
	require.NoError(t, err)
	require.NotNil(t, resp.Header.Error)
	require.NotNil(t, resp.Header.Error.EpochNotMatch)

	// Each half enters flashback independently.
	resp, err = store.PrepareFlashback(ctx, newRegionID, left.Region.Epoch)
	require.NoError(t, err)
	require.Nil(t, resp.Header.Error)

	err = store.Put(ctx, []byte("apple"), []byte("x"), 0)
	require.NotNil(t, regionError(t, err).FlashbackInProgress)
	require.NoError(t, store.Put(ctx, []byte("zebra"), []byte("still-open"), 0))
}

func TestStoreRestartPreservesFlashback(t *testing.T) {
	dir := t.TempDir()
	states, err := OpenStateStore(filepath.Join(dir, "state"))
	require.NoError(t, err)
	defer states.Close()

	cfg := StoreConfig{
		StoreID:      1,
		Dir:          dir,
		States:       states,
		TickInterval: 5 * time.Millisecond,
	}
	store, err := OpenStore(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	waitLeader(t, store, 1)
	require.NoError(t, store.Put(ctx, []byte("k"), []byte("v"), 0))
	state, err := store.RegionDetail(1)
	require.NoError(t, err)
	resp, err := store.PrepareFlashback(ctx, 1, state.Region.Epoch)
	require.NoError(t, err)
	require.Nil(t, resp.Header.Error)
	store.Close()

	// The restarted replica must come back gating, not reset to normal.
	store, err = OpenStore(cfg)
	require.NoError(t, err)
	defer store.Close()
	peer := waitLeader(t, store, 1)

	detail, err := store.RegionDetail(1)
	require.NoError(t, err)
	require.True(t, detail.Region.IsInFlashback)
	require.False(t, peer.LeaseValid())

	err = store.Put(ctx, []byte("k"), []byte("v2"), 0)
	require.NotNil(t, regionError(t, err).FlashbackInProgress)

	resp, err = store.FinishFlashback(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, resp.Header.Error)
	require.NoError(t, store.Put(ctx, []byte("k"), []byte("v2"), 0))
}
