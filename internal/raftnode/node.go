package raftnode

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"

	transport "flintkv/internal/rafttransport"
)

// Commit delivers the outcome of one Ready cycle to the apply pipeline.
// Entries holds committed entries in commit order; delivering them as one
// batch (instead of entry-by-entry) is what lets the applier enforce the
// in-batch epoch ordering rule.
type Commit struct {
	Entries  []raftpb.Entry
	Snapshot *raftpb.Snapshot
}

// Node wraps an etcd raft node for a single region's replication group.
type Node struct {
	id          uint64
	raftNode    raft.Node
	config      *raft.Config
	transport   transport.Transport
	storage     raft.Storage
	onSoftState func(raft.SoftState)

	mu      sync.RWMutex
	applied uint64
	tick    time.Duration

	commitC chan<- *Commit
	errorC  chan<- error

	ctx    context.Context
	cancel context.CancelFunc

	readReqMu  sync.Mutex
	readReqs   map[string]chan uint64
	readReqSeq uint64
}

// Config carries construction parameters for a Node.
type Config struct {
	ID            uint64
	Peers         []raft.Peer
	Storage       raft.Storage
	Transport     transport.Transport
	ElectionTick  int
	HeartbeatTick int
	TickInterval  time.Duration

	// OnSoftState observes leadership changes. It runs on the raft loop
	// goroutine and must not block.
	OnSoftState func(raft.SoftState)
}

// New constructs a raft node. A non-empty peer list bootstraps a fresh
// group; an empty one restarts from storage.
func New(config *Config) *Node {
	raftConfig := &raft.Config{
		ID:              config.ID,
		ElectionTick:    config.ElectionTick,
		HeartbeatTick:   config.HeartbeatTick,
		Storage:         config.Storage,
		MaxSizePerMsg:   4096,
		MaxInflightMsgs: 256,
		CheckQuorum:     true,
		PreVote:         true,
	}

	ctx, cancel := context.WithCancel(context.Background())

	nodeTransport := config.Transport
	if nodeTransport == nil {
		nodeTransport = transport.NewNoopTransport()
	}

	tick := config.TickInterval
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}

	node := &Node{
		id:          config.ID,
		config:      raftConfig,
		transport:   nodeTransport,
		storage:     config.Storage,
		onSoftState: config.OnSoftState,
		tick:        tick,
		ctx:         ctx,
		cancel:      cancel,
		readReqs:    make(map[string]chan uint64),
	}

	if len(config.Peers) > 0 {
		node.raftNode = raft.StartNode(raftConfig, config.Peers)
	} else {
		node.raftNode = raft.RestartNode(raftConfig)
	}
	return node
}

// Start launches the raft processing loop.
func (n *Node) Start(commitC chan<- *Commit, errorC chan<- error) {
	n.commitC = commitC
	n.errorC = errorC
	go n.run(n.tick)
}

// Stop terminates the raft node.
func (n *Node) Stop() {
	n.cancel()
	n.raftNode.Stop()
}

// Propose submits data to the raft log.
func (n *Node) Propose(ctx context.Context, data []byte) error {
	return n.raftNode.Propose(ctx, data)
}

// ProposeConfChange submits a raft-level membership change.
func (n *Node) ProposeConfChange(ctx context.Context, cc raftpb.ConfChange) error {
	return n.raftNode.ProposeConfChange(ctx, cc)
}

// TransferLeadership asks raft to move leadership to transferee.
func (n *Node) TransferLeadership(transferee uint64) {
	n.raftNode.TransferLeadership(n.ctx, n.id, transferee)
}

// Step feeds an incoming raft message from the transport.
func (n *Node) Step(ctx context.Context, msg raftpb.Message) error {
	return n.raftNode.Step(ctx, msg)
}

func (n *Node) run(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.raftNode.Tick()

		case rd := <-n.raftNode.Ready():
			if rd.SoftState != nil && n.onSoftState != nil {
				n.onSoftState(*rd.SoftState)
			}

			if !raft.IsEmptyHardState(rd.HardState) {
				if storage, ok := n.storage.(interface{ SetHardState(raftpb.HardState) error }); ok {
					if err := storage.SetHardState(rd.HardState); err != nil {
						n.sendError(err)
					}
				}
			}

			if len(rd.Entries) > 0 {
				if storage, ok := n.storage.(interface{ Append([]raftpb.Entry) error }); ok {
					if err := storage.Append(rd.Entries); err != nil {
						n.sendError(err)
					}
				}
			}

			n.sendMessages(rd.Messages)

			if !raft.IsEmptySnap(rd.Snapshot) {
				if storage, ok := n.storage.(interface{ ApplySnapshot(raftpb.Snapshot) error }); ok {
					if err := storage.ApplySnapshot(rd.Snapshot); err != nil {
						n.sendError(err)
					}
				}
				snap := rd.Snapshot
				n.deliver(&Commit{Snapshot: &snap})
				n.observeApplied(snap.Metadata.Index)
			}

			n.deliverCommitted(rd.CommittedEntries)

			if len(rd.ReadStates) > 0 {
				n.handleReadStates(rd.ReadStates)
			}

			n.raftNode.Advance()

		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) sendMessages(messages []raftpb.Message) {
	for _, msg := range messages {
		if msg.To == 0 {
			continue
		}
		if err := n.transport.Send(msg.To, []raftpb.Message{msg}); err != nil {
			n.sendError(err)
		}
	}
}

// deliverCommitted forwards one Ready's committed entries as a single batch.
// Conf-change entries are acknowledged to raft here; they still ride in the
// batch so the apply pipeline observes them in commit order.
func (n *Node) deliverCommitted(entries []raftpb.Entry) {
	if len(entries) == 0 {
		return
	}
	for _, entry := range entries {
		if entry.Type != raftpb.EntryConfChange {
			continue
		}
		var cc raftpb.ConfChange
		if err := cc.Unmarshal(entry.Data); err != nil {
			n.sendError(err)
			continue
		}
		cs := n.raftNode.ApplyConfChange(cc)
		if storage, ok := n.storage.(interface{ SetConfState(*raftpb.ConfState) error }); ok {
			if err := storage.SetConfState(cs); err != nil {
				n.sendError(err)
			}
		}
	}
	batch := make([]raftpb.Entry, len(entries))
	copy(batch, entries)
	n.deliver(&Commit{Entries: batch})
	n.observeApplied(entries[len(entries)-1].Index)
}

func (n *Node) deliver(commit *Commit) {
	select {
	case n.commitC <- commit:
	case <-n.ctx.Done():
	}
}

func (n *Node) observeApplied(index uint64) {
	n.mu.Lock()
	if index > n.applied {
		n.applied = index
	}
	n.mu.Unlock()
}

// IsLeader reports whether this node currently leads the group.
func (n *Node) IsLeader() bool {
	return n.raftNode.Status().Lead == n.id
}

// LeaderID returns the current leader's node id, or zero when unknown.
func (n *Node) LeaderID() uint64 {
	return n.raftNode.Status().Lead
}

// Status returns the raw raft status.
func (n *Node) Status() raft.Status {
	return n.raftNode.Status()
}

// Storage returns the raft storage the node was built with.
func (n *Node) Storage() raft.Storage {
	return n.storage
}

func (n *Node) sendError(err error) {
	if n.errorC != nil {
		select {
		case n.errorC <- err:
		default:
		}
	}
}

func (n *Node) handleReadStates(states []raft.ReadState) {
	for _, rs := range states {
		if ch := n.takeReadRequest(rs.RequestCtx); ch != nil {
			ch <- rs.Index
			close(ch)
		}
	}
}

func (n *Node) addReadRequest(reqCtx []byte, ch chan uint64) {
	n.readReqMu.Lock()
	n.readReqs[string(reqCtx)] = ch
	n.readReqMu.Unlock()
}

func (n *Node) takeReadRequest(reqCtx []byte) chan uint64 {
	n.readReqMu.Lock()
	defer n.readReqMu.Unlock()
	key := string(reqCtx)
	ch := n.readReqs[key]
	if ch != nil {
		delete(n.readReqs, key)
	}
	return ch
}

// ReadIndex issues a linearizable read barrier and returns the log index
// that must be applied before reading.
func (n *Node) ReadIndex(ctx context.Context) (uint64, error) {
	seq := atomic.AddUint64(&n.readReqSeq, 1)
	reqCtx := make([]byte, 8)
	binary.BigEndian.PutUint64(reqCtx, seq)
	ch := make(chan uint64, 1)
	n.addReadRequest(reqCtx, ch)

	if err := n.raftNode.ReadIndex(ctx, reqCtx); err != nil {
		if pending := n.takeReadRequest(reqCtx); pending != nil {
			close(pending)
		}
		return 0, err
	}

	select {
	case idx, ok := <-ch:
		if !ok {
			return 0, context.Canceled
		}
		return idx, nil
	case <-ctx.Done():
		if pending := n.takeReadRequest(reqCtx); pending != nil {
			close(pending)
		}
		return 0, ctx.Err()
	}
}

// AppliedIndex returns the highest index handed to the apply pipeline.
func (n *Node) AppliedIndex() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.applied
}

// WaitApplied blocks until the applied index reaches at least index.
func (n *Node) WaitApplied(ctx context.Context, index uint64) error {
	if index == 0 {
		return nil
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if n.AppliedIndex() >= index {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
