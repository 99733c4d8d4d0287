// Package index provides ordered in-memory key indexes with a common
// interface, so the engine can swap implementations.
package index

// Indexer is an ordered map from key to value.
type Indexer interface {
	// Put stores value under key and returns the previous value, if any.
	Put(key, value []byte) []byte
	Get(key []byte) []byte
	// Delete removes key and reports whether it was present.
	Delete(key []byte) ([]byte, bool)
	Size() int
	Iterator(reverse bool) Iterator
	Close() error
}

// Iterator walks index entries in key order.
type Iterator interface {
	Rewind()
	// Seek positions on the first key >= key (or <= key when reversed).
	Seek(key []byte)
	Next()
	Valid() bool
	Key() []byte
	Value() []byte
	Close()
}

// Type selects an index implementation.
type Type int8

const (
	// SkipListIndex is the default.
	SkipListIndex Type = iota
	// ARTIndex trades iteration cost for cheaper point lookups.
	ARTIndex
)

// New builds an index of the given type.
func New(t Type) Indexer {
	switch t {
	case ARTIndex:
		return NewART()
	default:
		return NewSkipList()
	}
}
