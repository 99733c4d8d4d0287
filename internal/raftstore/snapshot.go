package raftstore

import (
	"encoding/json"
	"fmt"

	"flintkv/internal/engine"
	regionpkg "flintkv/internal/region"
)

// SnapshotPayload is the full-state transfer unit for one region: the
// durable local state (epoch, peers, flashback flag, applied index) plus
// the key/value pairs of the region's range. It implements the gogo
// Marshaler/Unmarshaler interfaces so it can ride inside a raftpb.Snapshot
// alongside generated messages.
type SnapshotPayload struct {
	State regionpkg.LocalState `json:"state"`
	Pairs []engine.Pair        `json:"pairs,omitempty"`
}

func (p *SnapshotPayload) Reset()         { *p = SnapshotPayload{} }
func (p *SnapshotPayload) String() string { return fmt.Sprintf("snapshot(region %d)", p.State.Region.ID) }
func (p *SnapshotPayload) ProtoMessage()  {}

// Marshal satisfies the gogo proto Marshaler interface.
func (p *SnapshotPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal satisfies the gogo proto Unmarshaler interface.
func (p *SnapshotPayload) Unmarshal(data []byte) error {
	return json.Unmarshal(data, p)
}

// buildSnapshotPayload captures the applier's current state and the engine
// contents of the region's range.
func buildSnapshotPayload(a *applier) (*SnapshotPayload, error) {
	state := a.localState()
	pairs, err := a.engine.Scan(state.Region.Range.Start, state.Region.Range.End)
	if err != nil {
		return nil, fmt.Errorf("scan region %d range: %w", state.Region.ID, err)
	}
	return &SnapshotPayload{State: state, Pairs: pairs}, nil
}
