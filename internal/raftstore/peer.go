package raftstore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"

	"flintkv/internal/engine"
	"flintkv/internal/raftnode"
	"flintkv/internal/rafttransport"
	regionpkg "flintkv/internal/region"
)

const (
	defaultLeaseDuration     = 3 * time.Second
	defaultSnapshotThreshold = 1000
	defaultProposeTimeout    = 5 * time.Second
)

// snapshotter is the part of the raft storage the peer uses to cut and
// compact snapshots.
type snapshotter interface {
	CreateSnapshot(index uint64, data []byte, cs *raftpb.ConfState) (*raftpb.Snapshot, error)
	Compact(index uint64) error
}

// PeerConfig assembles everything one region replica needs.
type PeerConfig struct {
	StoreID uint64
	PeerID  uint64
	State   regionpkg.LocalState

	Engine engine.Engine
	States *StateStore

	RaftStorage raft.Storage
	RaftPeers   []raft.Peer
	Transport   rafttransport.Transport

	ElectionTick  int
	HeartbeatTick int
	TickInterval  time.Duration

	LeaseDuration     time.Duration
	SnapshotThreshold uint64

	// OnSplit receives the derived region after a split applies, so the
	// store can start a replica for it.
	OnSplit func(regionpkg.Region)
	// OnFlashback observes flag transitions, for metrics.
	OnFlashback func(regionID regionpkg.ID, entering bool)
}

// Peer is one replica of a region: the raft node, the apply pipeline and
// the proposal bookkeeping that connects them.
type Peer struct {
	storeID uint64
	peerID  uint64

	applier *applier
	node    *raftnode.Node
	lease   *Lease

	snapshotThreshold uint64
	snapMu            sync.Mutex
	lastSnapshotIndex uint64

	proposalSeq uint64
	pendingMu   sync.Mutex
	pending     map[uint64]chan *RaftCmdResponse

	wasLeader atomic.Bool

	commitC chan *raftnode.Commit
	errorC  chan error
	stopC   chan struct{}
	wg      sync.WaitGroup
	stopped atomic.Bool
}

// NewPeer constructs a replica. Start must be called before proposing.
func NewPeer(cfg PeerConfig) *Peer {
	leaseDuration := cfg.LeaseDuration
	if leaseDuration <= 0 {
		leaseDuration = defaultLeaseDuration
	}
	threshold := cfg.SnapshotThreshold
	if threshold == 0 {
		threshold = defaultSnapshotThreshold
	}

	p := &Peer{
		storeID:           cfg.StoreID,
		peerID:            cfg.PeerID,
		applier:           newApplier(cfg.StoreID, cfg.State, cfg.Engine, cfg.States),
		lease:             NewLease(leaseDuration),
		snapshotThreshold: threshold,
		lastSnapshotIndex: cfg.State.AppliedIndex,
		pending:           make(map[uint64]chan *RaftCmdResponse),
		commitC:           make(chan *raftnode.Commit, 16),
		errorC:            make(chan error, 16),
		stopC:             make(chan struct{}),
	}

	regionID := cfg.State.Region.ID
	p.applier.onSplit = cfg.OnSplit
	p.applier.onFlashback = func(entering bool) {
		if entering {
			p.lease.Suppress()
		} else {
			p.lease.Resume()
		}
		if cfg.OnFlashback != nil {
			cfg.OnFlashback(regionID, entering)
		}
	}
	if cfg.State.Region.IsInFlashback {
		// A restarted replica of a region still in flashback must not
		// serve lease reads before the flag clears.
		p.lease.Suppress()
	}

	p.node = raftnode.New(&raftnode.Config{
		ID:            cfg.PeerID,
		Peers:         cfg.RaftPeers,
		Storage:       cfg.RaftStorage,
		Transport:     cfg.Transport,
		ElectionTick:  cfg.ElectionTick,
		HeartbeatTick: cfg.HeartbeatTick,
		TickInterval:  cfg.TickInterval,
		OnSoftState:   p.observeSoftState,
	})
	return p
}

// Start launches the raft node and the apply loop.
func (p *Peer) Start() {
	p.node.Start(p.commitC, p.errorC)
	p.wg.Add(1)
	go p.runApply()
}

// Stop shuts the replica down. Pending proposals fail with ErrStoreStopped.
func (p *Peer) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	close(p.stopC)
	p.node.Stop()
	p.wg.Wait()
	p.failPending()
}

// Step feeds a raft message from another replica into the node.
func (p *Peer) Step(ctx context.Context, msg raftpb.Message) error {
	return p.node.Step(ctx, msg)
}

// Region returns a copy of the replica's current region metadata.
func (p *Peer) Region() regionpkg.Region {
	return p.applier.regionSnapshot()
}

// LocalState returns a copy of the replica's durable state. It answers
// status queries and is never routed through the admission gate.
func (p *Peer) LocalState() regionpkg.LocalState {
	return p.applier.localState()
}

// IsLeader reports whether this replica currently leads the region.
func (p *Peer) IsLeader() bool {
	return p.node.IsLeader()
}

// LeaderID returns the current leader's peer id, or zero when unknown.
func (p *Peer) LeaderID() uint64 {
	return p.node.LeaderID()
}

// AppliedIndex returns the highest log index the replica has applied.
func (p *Peer) AppliedIndex() uint64 {
	return p.applier.localState().AppliedIndex
}

// LeaseValid reports whether the replica holds a live read lease.
func (p *Peer) LeaseValid() bool {
	return p.lease.Valid(time.Now())
}

// Propose replicates cmd through raft and waits for its apply outcome. The
// returned response may carry a typed region error in its header; the error
// return covers the propose path itself (not leader, timeout, shutdown).
func (p *Peer) Propose(ctx context.Context, cmd *RaftCmdRequest) (*RaftCmdResponse, error) {
	if p.stopped.Load() {
		return nil, ErrStoreStopped
	}
	region := p.applier.regionSnapshot()
	if !p.node.IsLeader() {
		return errorResponse(errNotLeader(region.ID, p.node.LeaderID())), nil
	}

	// Fast rejections against the leader's current view. A stale admit
	// here is harmless, the apply-time checks are authoritative.
	if cmd.IsAdmin() {
		if cmd.Admin.CmdType == AdminTransferLeader && region.IsInFlashback {
			return errorResponse(errFlashbackInProgress(region.ID)), nil
		}
		if cmd.Admin.CmdType != AdminFinishFlashback && cmd.Header.Epoch.Stale(region.Epoch) {
			return errorResponse(errEpochNotMatch(region)), nil
		}
	} else {
		if err := checkFlashbackAdmission(region.ID, region.IsInFlashback, cmd.Header.Flags); err != nil {
			return errorResponse(err), nil
		}
	}

	resp, err := p.proposeAndWait(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if resp.Header.Error == nil && cmd.IsAdmin() {
		p.afterAdminApplied(cmd.Admin)
	}
	return resp, nil
}

func (p *Peer) proposeAndWait(ctx context.Context, cmd *RaftCmdRequest) (*RaftCmdResponse, error) {
	cmd.Header.ProposalID = atomic.AddUint64(&p.proposalSeq, 1)
	cmd.Header.PeerID = p.peerID
	data, err := cmd.Marshal()
	if err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultProposeTimeout)
		defer cancel()
	}

	ch := make(chan *RaftCmdResponse, 1)
	p.registerProposal(cmd.Header.ProposalID, ch)
	defer p.dropProposal(cmd.Header.ProposalID)

	if err := p.node.Propose(ctx, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProposalDropped, err)
	}

	select {
	case resp := <-ch:
		if resp == nil {
			return nil, ErrStoreStopped
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	case <-p.stopC:
		return nil, ErrStoreStopped
	}
}

// afterAdminApplied performs the raft-level side effects an admin command
// implies once its metadata change is committed.
func (p *Peer) afterAdminApplied(admin *AdminRequest) {
	switch admin.CmdType {
	case AdminTransferLeader:
		p.node.TransferLeadership(admin.TransfereePeerID)
	case AdminChangePeer:
		cc := raftpb.ConfChange{NodeID: admin.Peer.ID}
		if admin.ChangeType == AddPeer {
			cc.Type = raftpb.ConfChangeAddNode
		} else {
			cc.Type = raftpb.ConfChangeRemoveNode
		}
		ctx, cancel := context.WithTimeout(context.Background(), defaultProposeTimeout)
		defer cancel()
		if err := p.node.ProposeConfChange(ctx, cc); err != nil {
			fmt.Printf("region %d: propose conf change for peer %d: %v\n",
				p.applier.regionID(), admin.Peer.ID, err)
		}
	}
}

// Read serves a single-key read. A leader holding a live lease answers from
// local state after passing the admission gate; a leader whose lease has
// merely lapsed confirms leadership with a read index barrier and then
// answers locally. During flashback the lease is suppressed and the barrier
// is skipped, so every read is replicated as a command and gated at apply
// time like any write, making its progress visible as an applied-index
// advance.
func (p *Peer) Read(ctx context.Context, key []byte, flags HeaderFlags) (*RaftCmdResponse, error) {
	region := p.applier.regionSnapshot()
	if p.node.IsLeader() && p.lease.Valid(time.Now()) {
		if err := checkFlashbackAdmission(region.ID, region.IsInFlashback, flags); err != nil {
			return errorResponse(err), nil
		}
		return p.localGet(key)
	}

	if p.node.IsLeader() && !p.lease.Suppressed() {
		if resp, err := p.barrierRead(ctx, key, flags); err == nil {
			return resp, nil
		}
		// Fall through to the replicated path when the barrier fails;
		// the log proposal re-checks leadership itself.
	}

	cmd := &RaftCmdRequest{
		Header:   RequestHeader{RegionID: region.ID, Epoch: region.Epoch, Flags: flags},
		Requests: []Request{{CmdType: CmdGet, Key: key}},
	}
	return p.Propose(ctx, cmd)
}

// barrierRead confirms leadership through raft's read index protocol,
// waits for the local state machine to catch up to the confirmed index
// and then answers from local state.
func (p *Peer) barrierRead(ctx context.Context, key []byte, flags HeaderFlags) (*RaftCmdResponse, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultProposeTimeout)
		defer cancel()
	}
	index, err := p.node.ReadIndex(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.waitApplied(ctx, index); err != nil {
		return nil, err
	}

	// Re-check admission against state as of the confirmed index; a
	// flashback may have begun while the barrier was in flight.
	region := p.applier.regionSnapshot()
	if err := checkFlashbackAdmission(region.ID, region.IsInFlashback, flags); err != nil {
		return errorResponse(err), nil
	}
	return p.localGet(key)
}

// waitApplied blocks until the apply pipeline has caught up to index.
func (p *Peer) waitApplied(ctx context.Context, index uint64) error {
	if err := p.node.WaitApplied(ctx, index); err != nil {
		return err
	}
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for p.AppliedIndex() < index {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopC:
			return ErrStoreStopped
		case <-ticker.C:
		}
	}
	return nil
}

func (p *Peer) localGet(key []byte) (*RaftCmdResponse, error) {
	value, err := p.applier.engine.Get(key)
	if err != nil && err != engine.ErrKeyNotFound {
		return nil, err
	}
	return &RaftCmdResponse{Responses: []Response{
		{CmdType: CmdGet, Value: value, Found: err == nil},
	}}, nil
}

func (p *Peer) runApply() {
	defer p.wg.Done()
	for {
		select {
		case commit, ok := <-p.commitC:
			if !ok {
				return
			}
			p.handleCommit(commit)
		case err := <-p.errorC:
			fmt.Printf("region %d: raft error: %v\n", p.applier.regionID(), err)
		case <-p.stopC:
			return
		}
	}
}

func (p *Peer) handleCommit(commit *raftnode.Commit) {
	if commit.Snapshot != nil {
		p.restoreSnapshot(commit.Snapshot)
		return
	}
	if len(commit.Entries) == 0 {
		return
	}

	batch := make([]Committed, 0, len(commit.Entries))
	for _, entry := range commit.Entries {
		if entry.Type != raftpb.EntryNormal {
			// Conf changes carry no command payload, but the applied
			// index still has to advance past them.
			batch = append(batch, Committed{Index: entry.Index, Term: entry.Term})
			continue
		}
		batch = append(batch, Committed{Index: entry.Index, Term: entry.Term, Data: entry.Data})
	}
	results := p.applier.applyBatch(batch)
	for _, result := range results {
		p.fulfill(result.proposerID, result.proposalID, result.resp)
	}

	if p.node.IsLeader() {
		// Renew is a no-op while the lease is suppressed in flashback.
		p.lease.Renew(time.Now())
	}
	p.maybeSnapshot(commit.Entries[len(commit.Entries)-1].Index)
}

func (p *Peer) restoreSnapshot(snap *raftpb.Snapshot) {
	if len(snap.Data) == 0 {
		return
	}
	payload := new(SnapshotPayload)
	if err := payload.Unmarshal(snap.Data); err != nil {
		fmt.Printf("region %d: decode snapshot at index %d: %v\n",
			p.applier.regionID(), snap.Metadata.Index, err)
		return
	}
	if err := p.applier.adoptSnapshot(payload); err != nil {
		fmt.Printf("region %d: restore snapshot at index %d: %v\n",
			p.applier.regionID(), snap.Metadata.Index, err)
		return
	}
	p.snapMu.Lock()
	if snap.Metadata.Index > p.lastSnapshotIndex {
		p.lastSnapshotIndex = snap.Metadata.Index
	}
	p.snapMu.Unlock()
}

func (p *Peer) maybeSnapshot(appliedIndex uint64) {
	p.snapMu.Lock()
	defer p.snapMu.Unlock()
	if appliedIndex < p.lastSnapshotIndex+p.snapshotThreshold {
		return
	}
	snapStorage, ok := p.node.Storage().(snapshotter)
	if !ok {
		return
	}
	payload, err := buildSnapshotPayload(p.applier)
	if err != nil {
		fmt.Printf("region %d: build snapshot: %v\n", p.applier.regionID(), err)
		return
	}
	data, err := payload.Marshal()
	if err != nil {
		fmt.Printf("region %d: encode snapshot: %v\n", p.applier.regionID(), err)
		return
	}
	if _, err := snapStorage.CreateSnapshot(appliedIndex, data, nil); err != nil {
		fmt.Printf("region %d: cut snapshot at index %d: %v\n",
			p.applier.regionID(), appliedIndex, err)
		return
	}
	if err := snapStorage.Compact(appliedIndex); err != nil && err != raft.ErrCompacted {
		fmt.Printf("region %d: compact log to index %d: %v\n",
			p.applier.regionID(), appliedIndex, err)
	}
	p.lastSnapshotIndex = appliedIndex
}

func (p *Peer) registerProposal(id uint64, ch chan *RaftCmdResponse) {
	p.pendingMu.Lock()
	p.pending[id] = ch
	p.pendingMu.Unlock()
}

func (p *Peer) dropProposal(id uint64) {
	p.pendingMu.Lock()
	delete(p.pending, id)
	p.pendingMu.Unlock()
}

// fulfill routes an apply outcome back to the waiting proposer. Proposal
// ids are per-peer counters, so an entry proposed by another replica can
// carry an id that collides with one of ours; the proposer id filters
// those out.
func (p *Peer) fulfill(proposerID, id uint64, resp *RaftCmdResponse) {
	if id == 0 || proposerID != p.peerID {
		return
	}
	p.pendingMu.Lock()
	ch := p.pending[id]
	delete(p.pending, id)
	p.pendingMu.Unlock()
	if ch != nil {
		ch <- resp
	}
}

func (p *Peer) failPending() {
	p.pendingMu.Lock()
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()
}

// observeSoftState runs on the raft loop goroutine whenever the node's
// soft state changes. Losing leadership invalidates the read lease and
// fails proposals still in flight, since the new leader may commit its
// own entries in their place.
func (p *Peer) observeSoftState(ss raft.SoftState) {
	isLeader := ss.RaftState == raft.StateLeader
	if p.wasLeader.Swap(isLeader) && !isLeader {
		p.lease.Invalidate()
		p.failPendingStale()
	}
}

func (p *Peer) failPendingStale() {
	p.pendingMu.Lock()
	for id, ch := range p.pending {
		ch <- errorResponse(errStaleCommand())
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()
}
