package rafttransport

import (
	"context"
	"fmt"
	"sync"

	"go.etcd.io/etcd/raft/v3/raftpb"
)

// Stepper receives raft messages routed by a transport.
type Stepper interface {
	Step(ctx context.Context, msg raftpb.Message) error
}

// Hub routes raft messages between peers living in the same process.
// Peer ids are unique across regions, so one hub serves every replication
// group of a multi-store test cluster.
type Hub struct {
	mu    sync.RWMutex
	peers map[uint64]Stepper
}

// NewHub creates an empty in-memory message hub.
func NewHub() *Hub {
	return &Hub{peers: make(map[uint64]Stepper)}
}

// Register attaches a peer's raft node to the hub.
func (h *Hub) Register(id uint64, node Stepper) {
	h.mu.Lock()
	h.peers[id] = node
	h.mu.Unlock()
}

// Deregister detaches a peer.
func (h *Hub) Deregister(id uint64) {
	h.mu.Lock()
	delete(h.peers, id)
	h.mu.Unlock()
}

// Transport returns a Transport view of the hub for one sending peer.
func (h *Hub) Transport() Transport {
	return &hubTransport{hub: h}
}

type hubTransport struct {
	hub *Hub
}

func (t *hubTransport) Send(to uint64, messages []raftpb.Message) error {
	t.hub.mu.RLock()
	node := t.hub.peers[to]
	t.hub.mu.RUnlock()
	if node == nil {
		return fmt.Errorf("rafttransport: unknown peer %d", to)
	}
	for _, msg := range messages {
		if err := node.Step(context.Background(), msg); err != nil {
			return err
		}
	}
	return nil
}

func (t *hubTransport) SendSnapshot(to uint64, snapshot raftpb.Snapshot) error {
	return t.Send(to, []raftpb.Message{{To: to, Type: raftpb.MsgSnap, Snapshot: snapshot}})
}

func (t *hubTransport) AddMember(id uint64, peerURLs []string) error {
	return nil
}

func (t *hubTransport) RemoveMember(id uint64) error {
	return nil
}
