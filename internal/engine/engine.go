package engine

import (
	"errors"

	"flintkv/internal/engine/index"
)

// ErrKeyNotFound is returned when a key has no value in the engine.
var ErrKeyNotFound = errors.New("engine: key not found")

// Op is a single replicated mutation.
type Op struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Pair is a key/value captured by a range scan.
type Pair struct {
	Key   []byte
	Value []byte
}

// Engine is the local storage a region's apply pipeline writes into. The
// replication machinery treats it as an external collaborator: it only needs
// atomic batch application, point reads, and range dump/restore for
// snapshot transfer.
type Engine interface {
	ApplyBatch(ops []Op) error
	Get(key []byte) ([]byte, error)
	// Scan returns all pairs in [start, end); an empty end means +inf.
	Scan(start, end []byte) ([]Pair, error)
	// DeleteRange removes all keys in [start, end).
	DeleteRange(start, end []byte) error
	Close() error
}

// Memory is an in-memory engine over a pluggable ordered index.
type Memory struct {
	idx index.Indexer
}

// NewMemory constructs a memory engine with the given index type.
func NewMemory(t index.Type) *Memory {
	return &Memory{idx: index.New(t)}
}

func (m *Memory) ApplyBatch(ops []Op) error {
	for _, op := range ops {
		if op.Delete {
			m.idx.Delete(op.Key)
			continue
		}
		m.idx.Put(op.Key, op.Value)
	}
	return nil
}

func (m *Memory) Get(key []byte) ([]byte, error) {
	value := m.idx.Get(key)
	if value == nil {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

func (m *Memory) Scan(start, end []byte) ([]Pair, error) {
	it := m.idx.Iterator(false)
	defer it.Close()

	var pairs []Pair
	if len(start) > 0 {
		it.Seek(start)
	}
	for ; it.Valid(); it.Next() {
		key := it.Key()
		if len(end) > 0 && string(key) >= string(end) {
			break
		}
		pairs = append(pairs, Pair{
			Key:   append([]byte(nil), key...),
			Value: append([]byte(nil), it.Value()...),
		})
	}
	return pairs, nil
}

func (m *Memory) DeleteRange(start, end []byte) error {
	pairs, err := m.Scan(start, end)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		m.idx.Delete(p.Key)
	}
	return nil
}

func (m *Memory) Close() error {
	return m.idx.Close()
}
