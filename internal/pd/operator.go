package pd

import (
	regionpkg "flintkv/internal/region"
)

// OperatorKind enumerates scheduling operator types.
type OperatorKind int8

const (
	// OpTransferLeader moves region leadership to another store.
	OpTransferLeader OperatorKind = iota
	// OpAddPeer adds a replica on a store.
	OpAddPeer
	// OpRemovePeer removes a replica from a store.
	OpRemovePeer
)

func (k OperatorKind) String() string {
	switch k {
	case OpTransferLeader:
		return "transfer-leader"
	case OpAddPeer:
		return "add-peer"
	case OpRemovePeer:
		return "remove-peer"
	default:
		return "unknown"
	}
}

// Operator is one scheduling decision targeting a region. Epoch is the
// scheduler's view of the region epoch when the operator was created; an
// operator built before a flashback prepared carries the pre-flashback
// epoch and fails its epoch check downstream.
type Operator struct {
	RegionID regionpkg.ID
	Epoch    regionpkg.Epoch
	Kind     OperatorKind

	// TargetStoreID is the transferee for OpTransferLeader and the
	// affected store for peer operators.
	TargetStoreID uint64
}
