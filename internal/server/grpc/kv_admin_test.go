package grpcserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"flintkv/internal/raftstore"
	api "flintkv/pkg/api"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"not leader", &raftstore.Error{NotLeader: &raftstore.NotLeader{RegionID: 1}}, codes.Unavailable},
		{"epoch not match", &raftstore.Error{EpochNotMatch: &raftstore.EpochNotMatch{}}, codes.Aborted},
		{"flashback in progress", &raftstore.Error{FlashbackInProgress: &raftstore.FlashbackInProgress{RegionID: 1}}, codes.FailedPrecondition},
		{"flashback not prepared", &raftstore.Error{FlashbackNotPrepared: &raftstore.FlashbackNotPrepared{RegionID: 1}}, codes.FailedPrecondition},
		{"stale command", &raftstore.Error{StaleCommand: &raftstore.StaleCommand{}}, codes.Aborted},
		{"plain message", &raftstore.Error{Message: "boom"}, codes.Internal},
		{"region not found", raftstore.ErrRegionNotFound, codes.NotFound},
		{"timeout", raftstore.ErrTimeout, codes.DeadlineExceeded},
		{"store stopped", raftstore.ErrStoreStopped, codes.Unavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, ok := status.FromError(toStatusError(tc.err))
			assert.True(t, ok)
			assert.Equal(t, tc.code, st.Code())
		})
	}
}

func startTestServer(t *testing.T) (string, *raftstore.Store) {
	t.Helper()
	store, err := raftstore.OpenStore(raftstore.StoreConfig{
		StoreID:      1,
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	deadline := time.Now().Add(5 * time.Second)
	for {
		peer, err := store.Peer(1)
		if err == nil && peer.IsLeader() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("store did not elect a leader")
		}
		time.Sleep(10 * time.Millisecond)
	}

	addr := freeAddr(t)
	srv := New(Config{Address: addr}, store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, srv.Start(ctx))
	return addr, store
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok, "not a status error: %v", err)
	require.Equal(t, code, st.Code(), "unexpected code for %v", err)
}

func TestKVAndFlashbackOverGRPC(t *testing.T) {
	addr, _ := startTestServer(t)
	conn := dialAPI(t, addr)
	kv := api.NewKVClient(conn)
	admin := api.NewAdminClient(conn)
	ctx := context.Background()

	_, err := kv.Put(ctx, &api.PutRequest{Key: []byte("k"), Value: []byte("v")})
	require.NoError(t, err)

	got, err := kv.Get(ctx, &api.GetRequest{Key: []byte("k")})
	require.NoError(t, err)
	require.True(t, got.Found)
	require.Equal(t, []byte("v"), got.Value)

	// Missing keys are a negative lookup, not an error.
	got, err = kv.Get(ctx, &api.GetRequest{Key: []byte("missing")})
	require.NoError(t, err)
	require.False(t, got.Found)

	detail, err := admin.RegionDetail(ctx, &api.RegionDetailRequest{RegionId: 1})
	require.NoError(t, err)
	require.False(t, detail.Region.IsInFlashback)

	requestCtx := &api.RequestContext{RegionId: 1, Epoch: detail.Region.Epoch}
	prep, err := admin.PrepareFlashback(ctx, &api.PrepareFlashbackRequest{Context: requestCtx})
	require.NoError(t, err)
	require.True(t, prep.Region.IsInFlashback)

	// Normal traffic bounces off the gate with FailedPrecondition.
	_, err = kv.Put(ctx, &api.PutRequest{Key: []byte("k"), Value: []byte("v2")})
	requireCode(t, err, codes.FailedPrecondition)
	_, err = kv.Get(ctx, &api.GetRequest{Key: []byte("k")})
	requireCode(t, err, codes.FailedPrecondition)

	// The flashback executor sets the flag bit and passes.
	flagged := &api.RequestContext{RegionId: 1, Flags: uint32(raftstore.FlagFlashback)}
	_, err = kv.Put(ctx, &api.PutRequest{Context: flagged, Key: []byte("k"), Value: []byte("rolled-back")})
	require.NoError(t, err)

	// Leadership transfers are refused mid-flashback.
	_, err = admin.TransferLeader(ctx, &api.TransferLeaderRequest{
		Context:          &api.RequestContext{RegionId: 1, Epoch: prep.Region.Epoch},
		TransfereePeerId: 99,
	})
	requireCode(t, err, codes.FailedPrecondition)

	// Status queries keep working.
	detail, err = admin.RegionDetail(ctx, &api.RegionDetailRequest{RegionId: 1})
	require.NoError(t, err)
	require.True(t, detail.Region.IsInFlashback)

	fin, err := admin.FinishFlashback(ctx, &api.FinishFlashbackRequest{
		Context: &api.RequestContext{RegionId: 1},
	})
	require.NoError(t, err)
	require.False(t, fin.Region.IsInFlashback)

	_, err = kv.Put(ctx, &api.PutRequest{Key: []byte("k"), Value: []byte("v3")})
	require.NoError(t, err)
	_, err = kv.Put(ctx, &api.PutRequest{Context: flagged, Key: []byte("k"), Value: []byte("v4")})
	requireCode(t, err, codes.FailedPrecondition)
}

func TestPrepareFlashbackStaleEpochOverGRPC(t *testing.T) {
	addr, _ := startTestServer(t)
	conn := dialAPI(t, addr)
	admin := api.NewAdminClient(conn)
	ctx := context.Background()

	stale := &api.RequestContext{
		RegionId: 1,
		Epoch:    &api.RegionEpoch{Version: 0, ConfVersion: 1},
	}
	_, err := admin.PrepareFlashback(ctx, &api.PrepareFlashbackRequest{Context: stale})
	requireCode(t, err, codes.Aborted)
}

func TestSplitOverGRPC(t *testing.T) {
	addr, store := startTestServer(t)
	conn := dialAPI(t, addr)
	admin := api.NewAdminClient(conn)
	ctx := context.Background()

	detail, err := admin.RegionDetail(ctx, &api.RegionDetailRequest{RegionId: 1})
	require.NoError(t, err)

	newRegionID := store.AllocID()
	newPeerID := store.AllocID()
	resp, err := admin.Split(ctx, &api.SplitRequest{
		Context:     &api.RequestContext{RegionId: 1, Epoch: detail.Region.Epoch},
		SplitKey:    []byte("m"),
		NewRegionId: newRegionID,
		NewPeerIds:  []uint64{newPeerID},
	})
	require.NoError(t, err)
	require.Len(t, resp.Regions, 2)
	require.Equal(t, newRegionID, resp.Regions[0].Id)
	require.Equal(t, []byte("m"), resp.Regions[0].EndKey)
	require.Equal(t, []byte("m"), resp.Regions[1].StartKey)

	detail, err = admin.RegionDetail(ctx, &api.RegionDetailRequest{RegionId: newRegionID})
	require.NoError(t, err)
	require.Equal(t, newRegionID, detail.Region.Id)
}
