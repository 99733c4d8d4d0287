package pd

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"

	regionpkg "flintkv/internal/region"
)

// Service is the placement driver: it aggregates store heartbeats, keeps
// the freshest region metadata by epoch, and hands scheduling operators
// back to stores. Operators targeting a region in flashback are refused,
// which is the scheduler half of the flashback interlock.
type Service struct {
	mu      sync.RWMutex
	stores  map[uint64]StoreHeartbeat
	regions map[regionpkg.ID]regionpkg.Region
	pending map[uint64][]Operator
	nextID  uint64

	store regionMetadataStore
}

// NewService creates a pure in-memory placement driver.
func NewService() *Service {
	return &Service{
		stores:  make(map[uint64]StoreHeartbeat),
		regions: make(map[regionpkg.ID]regionpkg.Region),
		pending: make(map[uint64][]Operator),
		nextID:  1,
	}
}

// NewPersistentService persists region metadata under dir so the scheduler
// view survives restarts.
func NewPersistentService(dir string) (*Service, error) {
	store, err := newBoltRegionStore(dir)
	if err != nil {
		return nil, fmt.Errorf("open pd storage: %w", err)
	}
	svc := NewService()
	svc.store = store
	if err := svc.loadFromStore(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

func (s *Service) loadFromStore() error {
	if err := s.store.ForEach(func(region regionpkg.Region) error {
		s.regions[region.ID] = region
		return nil
	}); err != nil {
		return err
	}
	allocated, err := s.store.LoadAllocatedID()
	if err != nil {
		return err
	}
	if allocated >= s.nextID {
		s.nextID = allocated + 1
	}
	return nil
}

// HandleHeartbeat records the store's report, merges region metadata and
// returns the operators queued for that store. A region report carrying an
// epoch older than the recorded one is dropped; flashback transitions bump
// the version, so the freshest flag always wins this comparison.
func (s *Service) HandleHeartbeat(hb StoreHeartbeat) StoreHeartbeatResponse {
	s.mu.Lock()
	s.stores[hb.StoreID] = hb
	for _, rh := range hb.Regions {
		s.mergeRegionLocked(rh.Region)
	}
	ops := s.pending[hb.StoreID]
	delete(s.pending, hb.StoreID)
	s.mu.Unlock()

	return StoreHeartbeatResponse{Operators: ops}
}

func (s *Service) mergeRegionLocked(region regionpkg.Region) {
	known, ok := s.regions[region.ID]
	if ok && region.Epoch.Stale(known.Epoch) {
		return
	}
	cloned := region.Clone()
	s.regions[region.ID] = cloned
	if s.store != nil {
		if err := s.store.Put(cloned); err != nil {
			fmt.Printf("pd: persist region %d: %v\n", region.ID, err)
		}
	}
}

// ReportRegion merges one region's metadata outside a full heartbeat.
func (s *Service) ReportRegion(region regionpkg.Region) {
	s.mu.Lock()
	s.mergeRegionLocked(region)
	s.mu.Unlock()
}

// ScheduleOperator validates op against the freshest region view and queues
// it for target store pickup. A transfer-leader operator against a region
// in flashback is refused outright; an operator carrying a stale epoch is
// refused because the region moved on since the operator was built.
func (s *Service) ScheduleOperator(op Operator, storeID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	region, ok := s.regions[op.RegionID]
	if !ok {
		return ErrRegionNotFound
	}
	if op.Kind == OpTransferLeader && region.IsInFlashback {
		return ErrFlashbackInProgress
	}
	if op.Epoch.Stale(region.Epoch) {
		return ErrEpochStale
	}
	s.pending[storeID] = append(s.pending[storeID], op)
	return nil
}

// PendingOperators returns the operators queued for storeID without
// consuming them.
func (s *Service) PendingOperators(storeID uint64) []Operator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := make([]Operator, len(s.pending[storeID]))
	copy(ops, s.pending[storeID])
	return ops
}

// Region returns the freshest metadata recorded for id.
func (s *Service) Region(id regionpkg.ID) (regionpkg.Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	region, ok := s.regions[id]
	if !ok {
		return regionpkg.Region{}, false
	}
	return region.Clone(), true
}

// Regions returns a snapshot of all known regions.
func (s *Service) Regions() []regionpkg.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regions := maps.Values(s.regions)
	for i := range regions {
		regions[i] = regions[i].Clone()
	}
	return regions
}

// Store returns the last heartbeat for a given store.
func (s *Service) Store(id uint64) (StoreHeartbeat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hb, ok := s.stores[id]
	return hb, ok
}

// Stores returns a snapshot of all known store heartbeats.
func (s *Service) Stores() []StoreHeartbeat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Values(s.stores)
}

// AllocID mints a cluster-unique id for new regions and peers.
func (s *Service) AllocID() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	if s.store != nil {
		if err := s.store.SaveAllocatedID(id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// Close releases persistent resources if present.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
