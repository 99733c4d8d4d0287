package raftstore

import (
	"bytes"
	"fmt"
	"sync"

	"flintkv/internal/engine"
	regionpkg "flintkv/internal/region"
)

// Committed is one committed log entry handed to the apply pipeline.
type Committed struct {
	Index uint64
	Term  uint64
	Data  []byte
}

type applyResult struct {
	// proposerID identifies the peer that minted proposalID. Proposal ids
	// are per-peer counters, so the pair is what makes a result routable;
	// an id alone can collide across leadership changes.
	proposerID uint64
	proposalID uint64
	resp       *RaftCmdResponse
}

// applier is the single-writer state machine for one region replica. All
// mutations of the region metadata and the engine happen here, in commit
// order; other goroutines may only read via regionSnapshot/localState.
type applier struct {
	storeID uint64

	mu    sync.RWMutex
	state regionpkg.LocalState

	engine engine.Engine
	states *StateStore // nil means in-memory only

	// onFlashback fires on successful Prepare/Finish transitions so the
	// lease controller reacts without polling.
	onFlashback func(entering bool)
	// onSplit fires with the derived region after a successful split.
	onSplit func(regionpkg.Region)
}

func newApplier(storeID uint64, state regionpkg.LocalState, eng engine.Engine, states *StateStore) *applier {
	return &applier{
		storeID: storeID,
		state:   state,
		engine:  eng,
		states:  states,
	}
}

// regionSnapshot returns a copy of the current region metadata.
func (a *applier) regionSnapshot() regionpkg.Region {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Region.Clone()
}

// localState returns a copy of the full local state.
func (a *applier) localState() regionpkg.LocalState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Clone()
}

// applyBatch applies committed entries strictly in commit order. Entries
// pipelined at proposal time may arrive in one batch; every epoch check uses
// the state left behind by the previous entry, not the pre-batch state, so a
// split applied earlier in the batch fences a flashback command proposed
// against the pre-split epoch.
func (a *applier) applyBatch(entries []Committed) []applyResult {
	results := make([]applyResult, 0, len(entries))
	for _, entry := range entries {
		a.mu.Lock()
		applied := a.state.AppliedIndex
		a.mu.Unlock()
		if entry.Index <= applied {
			// Replayed on restart; already reflected in the engine.
			continue
		}
		result := a.applyEntry(entry)
		a.mu.Lock()
		if entry.Index > a.state.AppliedIndex {
			a.state.AppliedIndex = entry.Index
			a.state.AppliedTerm = entry.Term
		}
		a.mu.Unlock()
		a.persist()
		if result.resp != nil {
			results = append(results, result)
		}
	}
	return results
}

func (a *applier) applyEntry(entry Committed) applyResult {
	if len(entry.Data) == 0 {
		// Empty entry appended on leader election.
		return applyResult{}
	}
	cmd, err := UnmarshalRaftCmd(entry.Data)
	if err != nil {
		fmt.Printf("region %d: drop undecodable entry at index %d: %v\n", a.regionID(), entry.Index, err)
		return applyResult{}
	}
	result := applyResult{proposerID: cmd.Header.PeerID, proposalID: cmd.Header.ProposalID}
	if cmd.IsAdmin() {
		result.resp = a.applyAdmin(cmd)
	} else {
		result.resp = a.applyNormal(cmd)
	}
	return result
}

func (a *applier) regionID() regionpkg.ID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Region.ID
}

// applyNormal re-runs the admission gate against the authoritative
// just-applied state, then executes the operations. The propose-time check
// may have admitted a request that no longer passes; this one is definitive.
func (a *applier) applyNormal(cmd *RaftCmdRequest) *RaftCmdResponse {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := checkFlashbackAdmission(a.state.Region.ID, a.state.Region.IsInFlashback, cmd.Header.Flags); err != nil {
		return errorResponse(err)
	}

	var ops []engine.Op
	responses := make([]Response, 0, len(cmd.Requests))
	for _, req := range cmd.Requests {
		switch req.CmdType {
		case CmdPut:
			ops = append(ops, engine.Op{Key: req.Key, Value: req.Value})
			responses = append(responses, Response{CmdType: CmdPut})
		case CmdDelete:
			ops = append(ops, engine.Op{Key: req.Key, Delete: true})
			responses = append(responses, Response{CmdType: CmdDelete})
		case CmdGet:
			value, err := a.engine.Get(req.Key)
			if err != nil && err != engine.ErrKeyNotFound {
				return errorResponse(&Error{Message: err.Error()})
			}
			responses = append(responses, Response{CmdType: CmdGet, Value: value, Found: err == nil})
		default:
			return errorResponse(&Error{Message: fmt.Sprintf("unknown cmd type %d", req.CmdType)})
		}
	}
	if len(ops) > 0 {
		if err := a.engine.ApplyBatch(ops); err != nil {
			return errorResponse(&Error{Message: err.Error()})
		}
	}
	return &RaftCmdResponse{Responses: responses}
}

func (a *applier) applyAdmin(cmd *RaftCmdRequest) *RaftCmdResponse {
	admin := cmd.Admin
	switch admin.CmdType {
	case AdminPrepareFlashback:
		return a.applyPrepareFlashback(cmd.Header)
	case AdminFinishFlashback:
		return a.applyFinishFlashback()
	case AdminSplit:
		return a.applySplit(cmd.Header, admin)
	case AdminChangePeer:
		return a.applyChangePeer(cmd.Header, admin)
	case AdminTransferLeader:
		return a.applyTransferLeader(cmd.Header, admin)
	default:
		return errorResponse(&Error{Message: fmt.Sprintf("unknown admin cmd type %d", admin.CmdType)})
	}
}

// applyPrepareFlashback succeeds iff the command's epoch equals the region
// epoch at this point in the log. On success it raises the flag and bumps
// Version; the bump is the fencing token that invalidates any topology
// command still carrying the pre-flashback epoch.
func (a *applier) applyPrepareFlashback(header RequestHeader) *RaftCmdResponse {
	a.mu.Lock()
	if !header.Epoch.Equal(a.state.Region.Epoch) {
		current := a.state.Region.Clone()
		a.mu.Unlock()
		return errorResponse(errEpochNotMatch(current))
	}
	a.state.Region.IsInFlashback = true
	a.state.Region.Epoch.Version++
	result := a.state.Region.Clone()
	a.mu.Unlock()

	if a.onFlashback != nil {
		a.onFlashback(true)
	}
	return &RaftCmdResponse{Admin: &AdminResponse{
		CmdType: AdminPrepareFlashback,
		Regions: []regionpkg.Region{result},
	}}
}

// applyFinishFlashback clears the flag unconditionally and advances the
// epoch, re-enabling scheduler operators. Applying it while not in flashback
// is a no-op, so retries after a lost response are safe.
func (a *applier) applyFinishFlashback() *RaftCmdResponse {
	a.mu.Lock()
	cleared := a.state.Region.IsInFlashback
	if cleared {
		a.state.Region.IsInFlashback = false
		a.state.Region.Epoch.Version++
	}
	result := a.state.Region.Clone()
	a.mu.Unlock()

	if cleared && a.onFlashback != nil {
		a.onFlashback(false)
	}
	return &RaftCmdResponse{Admin: &AdminResponse{
		CmdType: AdminFinishFlashback,
		Regions: []regionpkg.Region{result},
	}}
}

// applySplit derives a new region covering [start, splitKey) under
// NewRegionID; the parent keeps [splitKey, end). Both sides end up on the
// same bumped Version, so any command proposed against the pre-split epoch
// (a pipelined PrepareFlashback included) fails its epoch check.
func (a *applier) applySplit(header RequestHeader, admin *AdminRequest) *RaftCmdResponse {
	a.mu.Lock()
	if !header.Epoch.Equal(a.state.Region.Epoch) {
		current := a.state.Region.Clone()
		a.mu.Unlock()
		return errorResponse(errEpochNotMatch(current))
	}
	parent := &a.state.Region
	if !parent.ContainsKey(admin.SplitKey) || bytes.Equal(admin.SplitKey, parent.Range.Start) {
		current := parent.Clone()
		a.mu.Unlock()
		return errorResponse(&Error{Message: fmt.Sprintf(
			"split key %q outside region %d range", admin.SplitKey, current.ID)})
	}

	newRegion := regionpkg.Region{
		ID: admin.NewRegionID,
		Range: regionpkg.KeyRange{
			Start: append([]byte(nil), parent.Range.Start...),
			End:   append([]byte(nil), admin.SplitKey...),
		},
		Epoch: regionpkg.Epoch{
			Version:     parent.Epoch.Version + 1,
			ConfVersion: parent.Epoch.ConfVersion,
		},
		State: regionpkg.StateActive,
	}
	for i, peer := range parent.Peers {
		id := peer.ID
		if i < len(admin.NewPeerIDs) {
			id = admin.NewPeerIDs[i]
		}
		newRegion.Peers = append(newRegion.Peers, regionpkg.Peer{
			ID:      id,
			StoreID: peer.StoreID,
			Role:    peer.Role,
		})
	}

	parent.Range.Start = append([]byte(nil), admin.SplitKey...)
	parent.Epoch.Version++
	parentClone := parent.Clone()
	a.mu.Unlock()

	if a.states != nil {
		if err := a.states.Save(regionpkg.LocalState{Region: newRegion}); err != nil {
			fmt.Printf("region %d: persist split sibling %d: %v\n", parentClone.ID, newRegion.ID, err)
		}
	}
	if a.onSplit != nil {
		a.onSplit(newRegion.Clone())
	}
	return &RaftCmdResponse{Admin: &AdminResponse{
		CmdType: AdminSplit,
		Regions: []regionpkg.Region{newRegion, parentClone},
	}}
}

func (a *applier) applyChangePeer(header RequestHeader, admin *AdminRequest) *RaftCmdResponse {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !header.Epoch.Equal(a.state.Region.Epoch) {
		return errorResponse(errEpochNotMatch(a.state.Region.Clone()))
	}
	region := &a.state.Region
	switch admin.ChangeType {
	case AddPeer:
		if _, ok := region.Peer(admin.Peer.StoreID); !ok {
			region.Peers = append(region.Peers, admin.Peer)
		}
	case RemovePeer:
		peers := region.Peers[:0]
		for _, p := range region.Peers {
			if p.ID != admin.Peer.ID {
				peers = append(peers, p)
			}
		}
		region.Peers = peers
	default:
		return errorResponse(&Error{Message: fmt.Sprintf("unknown peer change type %d", admin.ChangeType)})
	}
	region.Epoch.ConfVersion++
	return &RaftCmdResponse{Admin: &AdminResponse{
		CmdType: AdminChangePeer,
		Regions: []regionpkg.Region{region.Clone()},
	}}
}

// applyTransferLeader is the scheduler interlock: a transfer against a
// region in flashback fails with FlashbackInProgress, and one carrying the
// pre-flashback epoch already fails its own epoch check.
func (a *applier) applyTransferLeader(header RequestHeader, admin *AdminRequest) *RaftCmdResponse {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Region.IsInFlashback {
		return errorResponse(errFlashbackInProgress(a.state.Region.ID))
	}
	if !header.Epoch.Equal(a.state.Region.Epoch) {
		return errorResponse(errEpochNotMatch(a.state.Region.Clone()))
	}
	a.state.Region.Leader = admin.TransfereePeerID
	return &RaftCmdResponse{Admin: &AdminResponse{
		CmdType: AdminTransferLeader,
		Regions: []regionpkg.Region{a.state.Region.Clone()},
	}}
}

// adoptSnapshot replaces the replica's state with the snapshot payload. The
// flashback flag arrives inside the region metadata and becomes visible
// atomically with it, so a replica elected leader right after catch-up
// gates correctly from its first request.
func (a *applier) adoptSnapshot(payload *SnapshotPayload) error {
	a.mu.Lock()
	region := payload.State.Region.Clone()
	if err := a.engine.DeleteRange(region.Range.Start, region.Range.End); err != nil {
		a.mu.Unlock()
		return fmt.Errorf("clear range before snapshot restore: %w", err)
	}
	ops := make([]engine.Op, 0, len(payload.Pairs))
	for _, pair := range payload.Pairs {
		ops = append(ops, engine.Op{Key: pair.Key, Value: pair.Value})
	}
	if len(ops) > 0 {
		if err := a.engine.ApplyBatch(ops); err != nil {
			a.mu.Unlock()
			return fmt.Errorf("restore snapshot pairs: %w", err)
		}
	}
	wasInFlashback := a.state.Region.IsInFlashback
	a.state = payload.State.Clone()
	nowInFlashback := a.state.Region.IsInFlashback
	a.mu.Unlock()

	a.persist()
	if wasInFlashback != nowInFlashback && a.onFlashback != nil {
		a.onFlashback(nowInFlashback)
	}
	return nil
}

func (a *applier) persist() {
	if a.states == nil {
		return
	}
	if err := a.states.Save(a.localState()); err != nil {
		fmt.Printf("region %d: persist local state: %v\n", a.regionID(), err)
	}
}
