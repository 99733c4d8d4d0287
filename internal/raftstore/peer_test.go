package raftstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/raft/v3"
)

func TestFulfillDropsForeignProposer(t *testing.T) {
	p := &Peer{
		peerID:  2,
		pending: make(map[uint64]chan *RaftCmdResponse),
	}
	ch := make(chan *RaftCmdResponse, 1)
	p.registerProposal(7, ch)

	// Another replica's entry can carry the same proposal id; it must not
	// complete our proposal.
	p.fulfill(9, 7, &RaftCmdResponse{})
	require.Empty(t, ch)

	want := &RaftCmdResponse{Responses: []Response{{CmdType: CmdGet}}}
	p.fulfill(2, 7, want)
	require.Equal(t, want, <-ch)

	// The slot is consumed; a late duplicate is dropped.
	p.fulfill(2, 7, &RaftCmdResponse{})
	require.Empty(t, ch)
}

func TestLeadershipLossFailsPendingAndLease(t *testing.T) {
	p := &Peer{
		peerID:  2,
		lease:   NewLease(time.Minute),
		pending: make(map[uint64]chan *RaftCmdResponse),
	}
	p.lease.Renew(time.Now())
	ch := make(chan *RaftCmdResponse, 1)
	p.registerProposal(3, ch)

	p.observeSoftState(raft.SoftState{Lead: 2, RaftState: raft.StateLeader})
	require.True(t, p.lease.Valid(time.Now()))
	require.Empty(t, ch)

	p.observeSoftState(raft.SoftState{Lead: 9, RaftState: raft.StateFollower})
	require.False(t, p.lease.Valid(time.Now()))

	resp := <-ch
	require.NotNil(t, resp.Header.Error)
	require.NotNil(t, resp.Header.Error.StaleCommand)
	p.pendingMu.Lock()
	require.Empty(t, p.pending)
	p.pendingMu.Unlock()

	// Staying a follower is not a demotion.
	p.registerProposal(4, make(chan *RaftCmdResponse, 1))
	p.observeSoftState(raft.SoftState{Lead: 9, RaftState: raft.StateFollower})
	p.pendingMu.Lock()
	require.Len(t, p.pending, 1)
	p.pendingMu.Unlock()
}
