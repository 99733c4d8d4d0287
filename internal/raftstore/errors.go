package raftstore

import (
	"errors"
	"fmt"

	regionpkg "flintkv/internal/region"
)

// Error is the typed region error union carried in response headers. At most
// one variant is set. These are values, not process failures: every variant
// is resolved by the caller refreshing its view or flipping the flashback
// flag, never by crashing a region.
type Error struct {
	Message              string                `json:"message,omitempty"`
	NotLeader            *NotLeader            `json:"not_leader,omitempty"`
	EpochNotMatch        *EpochNotMatch        `json:"epoch_not_match,omitempty"`
	FlashbackInProgress  *FlashbackInProgress  `json:"flashback_in_progress,omitempty"`
	FlashbackNotPrepared *FlashbackNotPrepared `json:"flashback_not_prepared,omitempty"`
	StaleCommand         *StaleCommand         `json:"stale_command,omitempty"`
}

// NotLeader indicates the addressed peer cannot serve the request; the
// caller should retry against the hinted leader.
type NotLeader struct {
	RegionID regionpkg.ID `json:"region_id"`
	LeaderID uint64       `json:"leader_id,omitempty"`
}

// EpochNotMatch indicates a fencing conflict: the command's epoch no longer
// matches the region's epoch at apply time. CurrentRegions carries the
// freshest metadata so the caller can resubmit against the new layout.
type EpochNotMatch struct {
	CurrentRegions []regionpkg.Region `json:"current_regions,omitempty"`
}

// FlashbackInProgress rejects a request lacking the flashback flag while the
// region is in flashback.
type FlashbackInProgress struct {
	RegionID regionpkg.ID `json:"region_id"`
}

// FlashbackNotPrepared rejects a request carrying the flashback flag while
// the region is not in flashback.
type FlashbackNotPrepared struct {
	RegionID regionpkg.ID `json:"region_id"`
}

// StaleCommand indicates the command was superseded before applying, e.g.
// by a leader change. The caller must re-read region state; the command may
// or may not have taken effect.
type StaleCommand struct{}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.NotLeader != nil:
		return fmt.Sprintf("not leader of region %d, leader peer %d", e.NotLeader.RegionID, e.NotLeader.LeaderID)
	case e.EpochNotMatch != nil:
		return "epoch not match"
	case e.FlashbackInProgress != nil:
		return fmt.Sprintf("region %d is in flashback", e.FlashbackInProgress.RegionID)
	case e.FlashbackNotPrepared != nil:
		return fmt.Sprintf("region %d is not prepared for flashback", e.FlashbackNotPrepared.RegionID)
	case e.StaleCommand != nil:
		return "stale command"
	}
	if e.Message != "" {
		return e.Message
	}
	return "region error"
}

func errNotLeader(regionID regionpkg.ID, leaderID uint64) *Error {
	return &Error{NotLeader: &NotLeader{RegionID: regionID, LeaderID: leaderID}}
}

func errEpochNotMatch(current ...regionpkg.Region) *Error {
	cloned := make([]regionpkg.Region, 0, len(current))
	for i := range current {
		cloned = append(cloned, current[i].Clone())
	}
	return &Error{EpochNotMatch: &EpochNotMatch{CurrentRegions: cloned}}
}

func errFlashbackInProgress(regionID regionpkg.ID) *Error {
	return &Error{FlashbackInProgress: &FlashbackInProgress{RegionID: regionID}}
}

func errFlashbackNotPrepared(regionID regionpkg.ID) *Error {
	return &Error{FlashbackNotPrepared: &FlashbackNotPrepared{RegionID: regionID}}
}

func errStaleCommand() *Error {
	return &Error{StaleCommand: &StaleCommand{}}
}

// Sentinel errors for the propose path itself (transport-level failures, not
// region errors).
var (
	// ErrProposalDropped means the command never reached the raft log.
	ErrProposalDropped = errors.New("raftstore: proposal dropped")
	// ErrTimeout means the caller stopped waiting; the command outcome is
	// unknown and must be resolved by re-reading region state.
	ErrTimeout = errors.New("raftstore: command timed out, outcome unknown")
	// ErrRegionNotFound means no replica of the region lives on this store.
	ErrRegionNotFound = errors.New("raftstore: region not found")
	// ErrStoreStopped means the store is shutting down.
	ErrStoreStopped = errors.New("raftstore: store stopped")
)
