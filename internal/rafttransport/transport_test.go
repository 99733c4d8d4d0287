package rafttransport

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/raft/v3/raftpb"
	"google.golang.org/grpc"
)

type recordingStepper struct {
	mu   sync.Mutex
	msgs []raftpb.Message
}

func (r *recordingStepper) Step(ctx context.Context, msg raftpb.Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *recordingStepper) received() []raftpb.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]raftpb.Message(nil), r.msgs...)
}

func TestHubRoutesMessages(t *testing.T) {
	hub := NewHub()
	peer := &recordingStepper{}
	hub.Register(2, peer)

	transport := hub.Transport()
	err := transport.Send(2, []raftpb.Message{
		{To: 2, From: 1, Type: raftpb.MsgHeartbeat},
		{To: 2, From: 1, Type: raftpb.MsgApp},
	})
	require.NoError(t, err)
	require.Len(t, peer.received(), 2)

	require.Error(t, transport.Send(9, []raftpb.Message{{To: 9}}))

	hub.Deregister(2)
	require.Error(t, transport.Send(2, []raftpb.Message{{To: 2}}))
}

func TestHubSendSnapshot(t *testing.T) {
	hub := NewHub()
	peer := &recordingStepper{}
	hub.Register(3, peer)

	snap := raftpb.Snapshot{
		Data:     []byte("payload"),
		Metadata: raftpb.SnapshotMetadata{Index: 7, Term: 2},
	}
	require.NoError(t, hub.Transport().SendSnapshot(3, snap))

	msgs := peer.received()
	require.Len(t, msgs, 1)
	require.Equal(t, raftpb.MsgSnap, msgs[0].Type)
	require.Equal(t, uint64(7), msgs[0].Snapshot.Metadata.Index)
}

func TestGRPCTransportRoundTrip(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	router := &recordingStepper{}
	srv := grpc.NewServer()
	RegisterGRPCTransportServer(srv, router)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	transport := NewGRPCTransport(1, nil)
	require.NoError(t, transport.AddMember(2, []string{lis.Addr().String()}))

	msg := raftpb.Message{To: 2, From: 1, Term: 3, Type: raftpb.MsgHeartbeat}
	require.NoError(t, transport.Send(2, []raftpb.Message{msg}))

	// Delivery is asynchronous on the receiving stream.
	deadline := time.Now().Add(5 * time.Second)
	for {
		msgs := router.received()
		if len(msgs) == 1 {
			require.Equal(t, raftpb.MsgHeartbeat, msgs[0].Type)
			require.Equal(t, uint64(3), msgs[0].Term)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("message never reached the router")
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.NoError(t, transport.RemoveMember(2))
	require.Error(t, transport.Send(2, []raftpb.Message{msg}))
}

func TestGRPCTransportUnknownMember(t *testing.T) {
	transport := NewGRPCTransport(1, nil)
	err := transport.Send(5, []raftpb.Message{{To: 5}})
	require.Error(t, err)
}
