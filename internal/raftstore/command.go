package raftstore

import (
	"encoding/json"
	"fmt"

	regionpkg "flintkv/internal/region"
)

// HeaderFlags is a bitmask carried on every command header. The flashback
// bit shares the field with unrelated markers so adding it does not change
// the request shape.
type HeaderFlags uint64

const (
	// FlagOnePhaseCommit marks a transactional one-phase-commit write.
	// Unrelated to flashback; present to keep the bitmask honest.
	FlagOnePhaseCommit HeaderFlags = 1 << 0
	// FlagFlashback marks a request allowed to run while the target region
	// is in flashback.
	FlagFlashback HeaderFlags = 1 << 1
)

// Has reports whether all bits in mask are set.
func (f HeaderFlags) Has(mask HeaderFlags) bool {
	return f&mask == mask
}

// CmdType enumerates normal request kinds.
type CmdType int8

const (
	CmdPut CmdType = iota
	CmdDelete
	CmdGet
)

// AdminCmdType enumerates admin command kinds.
type AdminCmdType int8

const (
	AdminPrepareFlashback AdminCmdType = iota
	AdminFinishFlashback
	AdminSplit
	AdminChangePeer
	AdminTransferLeader
)

func (t AdminCmdType) String() string {
	switch t {
	case AdminPrepareFlashback:
		return "PrepareFlashback"
	case AdminFinishFlashback:
		return "FinishFlashback"
	case AdminSplit:
		return "Split"
	case AdminChangePeer:
		return "ChangePeer"
	case AdminTransferLeader:
		return "TransferLeader"
	default:
		return fmt.Sprintf("AdminCmdType(%d)", int8(t))
	}
}

// PeerChangeType distinguishes membership mutations.
type PeerChangeType int8

const (
	AddPeer PeerChangeType = iota
	RemovePeer
)

// RequestHeader travels with every proposed command.
type RequestHeader struct {
	RegionID regionpkg.ID `json:"region_id"`
	// Epoch is the proposer's believed region epoch. Checked at apply time
	// for admin commands; normal requests are gated by Flags instead.
	Epoch      regionpkg.Epoch `json:"epoch"`
	PeerID     uint64          `json:"peer_id,omitempty"`
	Flags      HeaderFlags     `json:"flags,omitempty"`
	ProposalID uint64          `json:"proposal_id,omitempty"`
}

// Request is a single normal operation.
type Request struct {
	CmdType CmdType `json:"cmd_type"`
	Key     []byte  `json:"key"`
	Value   []byte  `json:"value,omitempty"`
}

// AdminRequest carries one admin command variant; CmdType selects which
// fields are meaningful.
type AdminRequest struct {
	CmdType AdminCmdType `json:"cmd_type"`

	// Split
	SplitKey    []byte       `json:"split_key,omitempty"`
	NewRegionID regionpkg.ID `json:"new_region_id,omitempty"`
	NewPeerIDs  []uint64     `json:"new_peer_ids,omitempty"`

	// ChangePeer
	ChangeType PeerChangeType `json:"change_type,omitempty"`
	Peer       regionpkg.Peer `json:"peer,omitempty"`

	// TransferLeader
	TransfereePeerID uint64 `json:"transferee_peer_id,omitempty"`
}

// RaftCmdRequest is the unit proposed into the raft log: either a batch of
// normal requests or exactly one admin request.
type RaftCmdRequest struct {
	Header   RequestHeader `json:"header"`
	Requests []Request     `json:"requests,omitempty"`
	Admin    *AdminRequest `json:"admin,omitempty"`
}

// IsAdmin reports whether the command carries an admin request.
func (c *RaftCmdRequest) IsAdmin() bool {
	return c != nil && c.Admin != nil
}

// Marshal serialises the command for proposing into the raft log.
func (c *RaftCmdRequest) Marshal() ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil command")
	}
	return json.Marshal(c)
}

// UnmarshalRaftCmd decodes a committed log entry payload.
func UnmarshalRaftCmd(data []byte) (*RaftCmdRequest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty command payload")
	}
	var cmd RaftCmdRequest
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// ResponseHeader carries the typed error, if any, for a command.
type ResponseHeader struct {
	Error *Error `json:"error,omitempty"`
}

// Response answers one normal request.
type Response struct {
	CmdType CmdType `json:"cmd_type"`
	Value   []byte  `json:"value,omitempty"`
	Found   bool    `json:"found,omitempty"`
}

// AdminResponse answers an admin request.
type AdminResponse struct {
	CmdType AdminCmdType `json:"cmd_type"`
	// Regions holds the post-apply metadata affected by the command
	// (both halves for a split, the mutated region otherwise).
	Regions []regionpkg.Region `json:"regions,omitempty"`
}

// RaftCmdResponse is the command-response envelope: success has no error in
// the header, failure carries exactly one typed error.
type RaftCmdResponse struct {
	Header    ResponseHeader `json:"header"`
	Responses []Response     `json:"responses,omitempty"`
	Admin     *AdminResponse `json:"admin,omitempty"`
}

func errorResponse(err *Error) *RaftCmdResponse {
	return &RaftCmdResponse{Header: ResponseHeader{Error: err}}
}
