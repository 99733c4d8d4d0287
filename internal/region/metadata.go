package region

// ID uniquely identifies a Region.
type ID uint64

// KeyRange describes the inclusive-exclusive key range handled by a Region.
type KeyRange struct {
	Start []byte
	End   []byte // empty slice denotes infinity
}

// Epoch tracks structural changes of a Region. It is the fencing token used
// to reject commands proposed against an outdated view of the Region.
type Epoch struct {
	// Version increases when the key range of a Region changes (split/merge)
	// and on flashback transitions.
	Version uint64
	// ConfVersion increases when the peer set changes (add/remove peers).
	ConfVersion uint64
}

// Equal reports whether both epoch components match.
func (e Epoch) Equal(other Epoch) bool {
	return e.Version == other.Version && e.ConfVersion == other.ConfVersion
}

// Stale reports whether e is behind other on either component.
func (e Epoch) Stale(other Epoch) bool {
	return e.Version < other.Version || e.ConfVersion < other.ConfVersion
}

// PeerRole distinguishes voting members from learners.
type PeerRole int

const (
	// Voter is a full voting member of the Region's Raft group.
	Voter PeerRole = iota
	// Learner only receives logs; not part of quorum until promoted.
	Learner
)

// Peer describes a Region replica hosted on a Store.
type Peer struct {
	ID      uint64
	StoreID uint64
	Role    PeerRole
}

// State captures the lifecycle of a Region.
type State int

const (
	// StateActive indicates the Region is serving traffic.
	StateActive State = iota
	// StateSplitting indicates the Region is splitting its key range.
	StateSplitting
	// StateMerging indicates the Region is merging with another Region.
	StateMerging
	// StateTombstone indicates the Region has been removed.
	StateTombstone
)

// Region aggregates metadata describing a single shard of the keyspace.
// IsInFlashback is replicated like the rest of the metadata: it is flipped
// only by applied admin commands and therefore identical on every replica
// that has applied the same log prefix.
type Region struct {
	ID            ID
	Range         KeyRange
	Epoch         Epoch
	Peers         []Peer
	State         State
	Leader        uint64 // Peer ID currently considered leader (best-effort hint)
	IsInFlashback bool
}

// ContainsKey reports whether the region manages the provided key.
func (r *Region) ContainsKey(key []byte) bool {
	if r == nil {
		return false
	}
	if len(r.Range.Start) > 0 && string(key) < string(r.Range.Start) {
		return false
	}
	if len(r.Range.End) > 0 && string(key) >= string(r.Range.End) {
		return false
	}
	return true
}

// Peer returns the peer hosted on the given store, if any.
func (r *Region) Peer(storeID uint64) (Peer, bool) {
	if r == nil {
		return Peer{}, false
	}
	for _, p := range r.Peers {
		if p.StoreID == storeID {
			return p, true
		}
	}
	return Peer{}, false
}

// Clone returns a copy of the Region metadata for safe mutation.
func (r *Region) Clone() Region {
	if r == nil {
		return Region{}
	}
	cp := *r
	cp.Range = KeyRange{
		Start: append([]byte(nil), r.Range.Start...),
		End:   append([]byte(nil), r.Range.End...),
	}
	if len(r.Peers) > 0 {
		cp.Peers = append([]Peer(nil), r.Peers...)
	}
	return cp
}

// LocalState is the durable form of a Region on one store: the replicated
// metadata plus apply bookkeeping. It is this structure, not Region alone,
// that snapshots ship to lagging replicas, so the flashback flag survives
// catch-up and leader changes.
type LocalState struct {
	Region       Region
	AppliedIndex uint64
	AppliedTerm  uint64
}

// Clone returns a deep copy of the local state.
func (s *LocalState) Clone() LocalState {
	if s == nil {
		return LocalState{}
	}
	return LocalState{
		Region:       s.Region.Clone(),
		AppliedIndex: s.AppliedIndex,
		AppliedTerm:  s.AppliedTerm,
	}
}
