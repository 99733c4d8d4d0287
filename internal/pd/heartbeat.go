package pd

import (
	"time"

	regionpkg "flintkv/internal/region"
)

// RegionHeartbeat carries metadata about a region replica hosted on a store.
type RegionHeartbeat struct {
	Region       regionpkg.Region
	StoreID      uint64
	PeerID       uint64
	IsLeader     bool
	AppliedIndex uint64
}

// StoreHeartbeat aggregates information reported by a store.
type StoreHeartbeat struct {
	StoreID   uint64
	Address   string
	Regions   []RegionHeartbeat
	Timestamp time.Time
}

// StoreHeartbeatResponse conveys pending scheduling operators back to the
// reporting store.
type StoreHeartbeatResponse struct {
	Operators []Operator
}

// Heartbeater abstracts services that consume store heartbeats.
type Heartbeater interface {
	HandleHeartbeat(StoreHeartbeat) StoreHeartbeatResponse
}
