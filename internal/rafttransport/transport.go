package rafttransport

import "go.etcd.io/etcd/raft/v3/raftpb"

// Transport delivers raft messages between peers of a replication group.
type Transport interface {
	Send(to uint64, messages []raftpb.Message) error
	SendSnapshot(to uint64, snapshot raftpb.Snapshot) error
	AddMember(id uint64, peerURLs []string) error
	RemoveMember(id uint64) error
}

// NoopTransport discards all messages; used by single-replica groups where
// nothing ever leaves the process.
type NoopTransport struct{}

func (t *NoopTransport) Send(to uint64, messages []raftpb.Message) error {
	return nil
}

func (t *NoopTransport) SendSnapshot(to uint64, snapshot raftpb.Snapshot) error {
	return nil
}

func (t *NoopTransport) AddMember(id uint64, peerURLs []string) error {
	return nil
}

func (t *NoopTransport) RemoveMember(id uint64) error {
	return nil
}

// NewNoopTransport creates a transport for in-process, single-replica use.
func NewNoopTransport() Transport {
	return &NoopTransport{}
}
