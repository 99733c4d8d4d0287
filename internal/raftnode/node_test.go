package raftnode

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/raft/v3"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	raft.SetLogger(&raft.DefaultLogger{Logger: log.New(io.Discard, "", 0)})
	os.Exit(m.Run())
}

func startSingleNode(t *testing.T) (*Node, chan *Commit) {
	t.Helper()
	commitC := make(chan *Commit, 64)
	errorC := make(chan error, 16)

	node := New(&Config{
		ID:            1,
		Peers:         []raft.Peer{{ID: 1}},
		Storage:       raft.NewMemoryStorage(),
		ElectionTick:  10,
		HeartbeatTick: 1,
		TickInterval:  5 * time.Millisecond,
	})
	node.Start(commitC, errorC)
	t.Cleanup(node.Stop)

	deadline := time.Now().Add(5 * time.Second)
	for !node.IsLeader() {
		if time.Now().After(deadline) {
			t.Fatalf("single node did not become leader")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return node, commitC
}

func awaitData(t *testing.T, commitC chan *Commit, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case commit := <-commitC:
			for _, entry := range commit.Entries {
				if string(entry.Data) == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("proposal %q never committed", want)
		}
	}
}

func TestSingleNodeProposeAndCommit(t *testing.T) {
	node, commitC := startSingleNode(t)

	require.Equal(t, uint64(1), node.LeaderID())
	require.NoError(t, node.Propose(context.Background(), []byte("hello")))
	awaitData(t, commitC, "hello")
	require.Greater(t, node.AppliedIndex(), uint64(0))
}

func TestSingleNodeReadIndex(t *testing.T) {
	node, commitC := startSingleNode(t)

	require.NoError(t, node.Propose(context.Background(), []byte("payload")))
	awaitData(t, commitC, "payload")
	applied := node.AppliedIndex()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	idx, err := node.ReadIndex(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, idx, applied)
	require.NoError(t, node.WaitApplied(ctx, idx))
}
