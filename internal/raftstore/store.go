package raftstore

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"

	"flintkv/internal/engine"
	"flintkv/internal/engine/index"
	"flintkv/internal/raftstorage"
	"flintkv/internal/rafttransport"
	regionpkg "flintkv/internal/region"
)

// StoreConfig assembles a store hosting one replica per region.
type StoreConfig struct {
	StoreID uint64
	Dir     string

	// Engine is shared by all replicas on the store; regions partition it
	// by key range. When nil an in-memory engine is used.
	Engine engine.Engine
	States *StateStore

	// Hub wires replicas into an in-process transport mesh. When nil the
	// store runs without inter-store traffic (single-store deployments
	// and tests).
	Hub *rafttransport.Hub

	// NewRaftStorage builds the log storage for one region. Defaults to
	// file-backed storage under Dir, or in-memory when Dir is empty.
	NewRaftStorage func(regionID regionpkg.ID) (raft.Storage, error)

	ElectionTick      int
	HeartbeatTick     int
	TickInterval      time.Duration
	LeaseDuration     time.Duration
	SnapshotThreshold uint64

	// OnFlashback observes flashback flag transitions across all regions.
	OnFlashback func(regionID regionpkg.ID, entering bool)
}

type routeItem struct {
	start    []byte
	regionID regionpkg.ID
}

func routeLess(a, b *routeItem) bool {
	return bytes.Compare(a.start, b.start) < 0
}

// Store hosts the region replicas living on one node and routes keys to
// them.
type Store struct {
	cfg    StoreConfig
	engine engine.Engine
	states *StateStore

	mu     sync.RWMutex
	peers  map[regionpkg.ID]*Peer
	router *btree.BTreeG[*routeItem]
	nextID uint64

	stopped bool
}

// OpenStore restores the replicas recorded in the state store, or
// bootstraps a single region spanning the whole key space on first start.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.StoreID == 0 {
		return nil, fmt.Errorf("store id must be non-zero")
	}
	eng := cfg.Engine
	if eng == nil {
		eng = engine.NewMemory(index.SkipListIndex)
	}
	if cfg.ElectionTick == 0 {
		cfg.ElectionTick = 10
	}
	if cfg.HeartbeatTick == 0 {
		cfg.HeartbeatTick = 1
	}
	if cfg.NewRaftStorage == nil {
		dir := cfg.Dir
		cfg.NewRaftStorage = func(regionID regionpkg.ID) (raft.Storage, error) {
			if dir == "" {
				return raft.NewMemoryStorage(), nil
			}
			return raftstorage.Open(filepath.Join(dir, "raft"), uint64(regionID))
		}
	}

	s := &Store{
		cfg:    cfg,
		engine: eng,
		states: cfg.States,
		peers:  make(map[regionpkg.ID]*Peer),
		router: btree.NewG(8, routeLess),
		nextID: 1,
	}

	var restored []regionpkg.LocalState
	if s.states != nil {
		err := s.states.ForEach(func(state regionpkg.LocalState) error {
			restored = append(restored, state)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("restore region states: %w", err)
		}
	}

	if len(restored) == 0 {
		state := s.bootstrapState()
		if err := s.startPeer(state, true); err != nil {
			return nil, err
		}
		return s, nil
	}
	for _, state := range restored {
		if err := s.startPeer(state, false); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) bootstrapState() regionpkg.LocalState {
	regionID := s.allocID()
	peerID := s.allocID()
	return regionpkg.LocalState{
		Region: regionpkg.Region{
			ID:    regionpkg.ID(regionID),
			Epoch: regionpkg.Epoch{Version: 1, ConfVersion: 1},
			Peers: []regionpkg.Peer{{ID: peerID, StoreID: s.cfg.StoreID}},
			State: regionpkg.StateActive,
		},
	}
}

func (s *Store) allocID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocIDLocked()
}

func (s *Store) allocIDLocked() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// AllocID mints a fresh id for a new region or peer. Ids already in use by
// restored regions are skipped.
func (s *Store) AllocID() uint64 {
	return s.allocID()
}

func (s *Store) observeID(id uint64) {
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

func (s *Store) startPeer(state regionpkg.LocalState, bootstrap bool) error {
	localPeer, ok := state.Region.Peer(s.cfg.StoreID)
	if !ok {
		return fmt.Errorf("region %d has no peer on store %d", state.Region.ID, s.cfg.StoreID)
	}
	raftStorage, err := s.cfg.NewRaftStorage(state.Region.ID)
	if err != nil {
		return fmt.Errorf("open raft storage for region %d: %w", state.Region.ID, err)
	}

	var raftPeers []raft.Peer
	if bootstrap {
		for _, p := range state.Region.Peers {
			raftPeers = append(raftPeers, raft.Peer{ID: p.ID})
		}
	}

	var transport rafttransport.Transport
	if s.cfg.Hub != nil {
		transport = s.cfg.Hub.Transport()
	}

	peer := NewPeer(PeerConfig{
		StoreID:           s.cfg.StoreID,
		PeerID:            localPeer.ID,
		State:             state,
		Engine:            s.engine,
		States:            s.states,
		RaftStorage:       raftStorage,
		RaftPeers:         raftPeers,
		Transport:         transport,
		ElectionTick:      s.cfg.ElectionTick,
		HeartbeatTick:     s.cfg.HeartbeatTick,
		TickInterval:      s.cfg.TickInterval,
		LeaseDuration:     s.cfg.LeaseDuration,
		SnapshotThreshold: s.cfg.SnapshotThreshold,
		OnSplit:           s.onSplit,
		OnFlashback:       s.cfg.OnFlashback,
	})

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStoreStopped
	}
	s.peers[state.Region.ID] = peer
	s.observeID(uint64(state.Region.ID))
	for _, p := range state.Region.Peers {
		s.observeID(p.ID)
	}
	s.rebuildRouterLocked()
	s.mu.Unlock()

	if s.cfg.Hub != nil {
		s.cfg.Hub.Register(localPeer.ID, peer)
	}
	peer.Start()
	return nil
}

// onSplit starts a replica for the region derived by a split and refreshes
// the routing table, since the parent's start key moved.
func (s *Store) onSplit(region regionpkg.Region) {
	if err := s.startPeer(regionpkg.LocalState{Region: region}, true); err != nil {
		fmt.Printf("store %d: start split region %d: %v\n", s.cfg.StoreID, region.ID, err)
		return
	}
	s.mu.Lock()
	s.rebuildRouterLocked()
	s.mu.Unlock()
}

func (s *Store) rebuildRouterLocked() {
	s.router.Clear(false)
	for id, peer := range s.peers {
		region := peer.Region()
		s.router.ReplaceOrInsert(&routeItem{start: region.Range.Start, regionID: id})
	}
}

// routePeer finds the replica whose region covers key.
func (s *Store) routePeer(key []byte) (*Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Peer
	s.router.DescendLessOrEqual(&routeItem{start: key}, func(item *routeItem) bool {
		peer := s.peers[item.regionID]
		if peer == nil {
			return true
		}
		region := peer.Region()
		if region.ContainsKey(key) {
			found = peer
			return false
		}
		return true
	})
	if found != nil {
		return found, nil
	}
	// Range starts can be stale right after a split. Fall back to a scan
	// before giving up.
	for _, peer := range s.peers {
		region := peer.Region()
		if region.ContainsKey(key) {
			return peer, nil
		}
	}
	return nil, ErrRegionNotFound
}

// Step routes an incoming raft message to the replica it addresses. It
// implements the transport router interface.
func (s *Store) Step(ctx context.Context, msg raftpb.Message) error {
	s.mu.RLock()
	var target *Peer
	for _, peer := range s.peers {
		if peer.peerID == msg.To {
			target = peer
			break
		}
	}
	s.mu.RUnlock()
	if target == nil {
		return fmt.Errorf("%w: no peer %d on store %d", ErrRegionNotFound, msg.To, s.cfg.StoreID)
	}
	return target.Step(ctx, msg)
}

// Peer returns the replica of regionID hosted on this store.
func (s *Store) Peer(regionID regionpkg.ID) (*Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	peer, ok := s.peers[regionID]
	if !ok {
		return nil, ErrRegionNotFound
	}
	return peer, nil
}

// Put replicates a single-key write. Flags carry the flashback bit when the
// caller is a flashback executor.
func (s *Store) Put(ctx context.Context, key, value []byte, flags HeaderFlags) error {
	peer, err := s.routePeer(key)
	if err != nil {
		return err
	}
	region := peer.Region()
	cmd := &RaftCmdRequest{
		Header:   RequestHeader{RegionID: region.ID, Epoch: region.Epoch, Flags: flags},
		Requests: []Request{{CmdType: CmdPut, Key: key, Value: value}},
	}
	resp, err := peer.Propose(ctx, cmd)
	if err != nil {
		return err
	}
	if resp.Header.Error != nil {
		return resp.Header.Error
	}
	return nil
}

// Delete replicates a single-key delete.
func (s *Store) Delete(ctx context.Context, key []byte, flags HeaderFlags) error {
	peer, err := s.routePeer(key)
	if err != nil {
		return err
	}
	region := peer.Region()
	cmd := &RaftCmdRequest{
		Header:   RequestHeader{RegionID: region.ID, Epoch: region.Epoch, Flags: flags},
		Requests: []Request{{CmdType: CmdDelete, Key: key}},
	}
	resp, err := peer.Propose(ctx, cmd)
	if err != nil {
		return err
	}
	if resp.Header.Error != nil {
		return resp.Header.Error
	}
	return nil
}

// Get reads a single key, through the lease fast path when available.
func (s *Store) Get(ctx context.Context, key []byte, flags HeaderFlags) ([]byte, error) {
	peer, err := s.routePeer(key)
	if err != nil {
		return nil, err
	}
	resp, err := peer.Read(ctx, key, flags)
	if err != nil {
		return nil, err
	}
	if resp.Header.Error != nil {
		return nil, resp.Header.Error
	}
	if len(resp.Responses) == 0 || !resp.Responses[0].Found {
		return nil, engine.ErrKeyNotFound
	}
	return resp.Responses[0].Value, nil
}

// AdminCommand replicates one admin command against regionID. The epoch in
// header is the caller's believed epoch; admin commands other than
// FinishFlashback fail with EpochNotMatch when it is stale at apply time.
func (s *Store) AdminCommand(ctx context.Context, regionID regionpkg.ID, epoch regionpkg.Epoch, admin *AdminRequest) (*RaftCmdResponse, error) {
	peer, err := s.Peer(regionID)
	if err != nil {
		return nil, err
	}
	cmd := &RaftCmdRequest{
		Header: RequestHeader{RegionID: regionID, Epoch: epoch},
		Admin:  admin,
	}
	resp, err := peer.Propose(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if resp.Header.Error == nil && admin.CmdType == AdminSplit {
		s.mu.Lock()
		s.rebuildRouterLocked()
		s.mu.Unlock()
	}
	return resp, nil
}

// PrepareFlashback moves regionID into flashback, suspending normal traffic.
func (s *Store) PrepareFlashback(ctx context.Context, regionID regionpkg.ID, epoch regionpkg.Epoch) (*RaftCmdResponse, error) {
	return s.AdminCommand(ctx, regionID, epoch, &AdminRequest{CmdType: AdminPrepareFlashback})
}

// FinishFlashback moves regionID back to normal operation. It carries no
// meaningful epoch and is idempotent.
func (s *Store) FinishFlashback(ctx context.Context, regionID regionpkg.ID) (*RaftCmdResponse, error) {
	peer, err := s.Peer(regionID)
	if err != nil {
		return nil, err
	}
	region := peer.Region()
	return s.AdminCommand(ctx, regionID, region.Epoch, &AdminRequest{CmdType: AdminFinishFlashback})
}

// RegionDetail answers a status query about one region. It is served from
// local state and never routed through the admission gate, so operators can
// inspect a region mid-flashback.
func (s *Store) RegionDetail(regionID regionpkg.ID) (regionpkg.LocalState, error) {
	peer, err := s.Peer(regionID)
	if err != nil {
		return regionpkg.LocalState{}, err
	}
	state := peer.LocalState()
	state.Region.Leader = peer.LeaderID()
	return state, nil
}

// Regions returns a copy of every region hosted on the store.
func (s *Store) Regions() []regionpkg.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regions := make([]regionpkg.Region, 0, len(s.peers))
	for _, peer := range s.peers {
		regions = append(regions, peer.Region())
	}
	return regions
}

// Diagnostics is a point-in-time sample of the store, for metrics export.
type Diagnostics struct {
	Regions            int
	RegionsInFlashback int
	Leaders            int
	MaxAppliedIndex    uint64
}

// Diagnostics samples the store's current state.
func (s *Store) Diagnostics() Diagnostics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var diag Diagnostics
	diag.Regions = len(s.peers)
	for _, peer := range s.peers {
		if peer.Region().IsInFlashback {
			diag.RegionsInFlashback++
		}
		if peer.IsLeader() {
			diag.Leaders++
		}
		if applied := peer.AppliedIndex(); applied > diag.MaxAppliedIndex {
			diag.MaxAppliedIndex = applied
		}
	}
	return diag
}

// Engine exposes the store's shared engine, for snapshot tooling.
func (s *Store) Engine() engine.Engine {
	return s.engine
}

// Close stops every replica. The engine and state store are closed only if
// the store opened them itself, so callers that passed them in keep control.
func (s *Store) Close() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	peers := make([]*Peer, 0, len(s.peers))
	for _, peer := range s.peers {
		peers = append(peers, peer)
	}
	s.mu.Unlock()

	for _, peer := range peers {
		if s.cfg.Hub != nil {
			s.cfg.Hub.Deregister(peer.peerID)
		}
		peer.Stop()
	}
}
