package index

import (
	"bytes"
	"sort"
	"sync"

	art "github.com/plar/go-adaptive-radix-tree"
)

// ART wraps github.com/plar/go-adaptive-radix-tree to satisfy Indexer.
type ART struct {
	tree art.Tree
	lock sync.RWMutex
}

// NewART builds a new adaptive radix tree index.
func NewART() *ART {
	return &ART{
		tree: art.New(),
	}
}

func (a *ART) Put(key, value []byte) []byte {
	a.lock.Lock()
	defer a.lock.Unlock()
	prev, _ := a.tree.Insert(append([]byte(nil), key...), append([]byte(nil), value...))
	if prev == nil {
		return nil
	}
	return prev.([]byte)
}

func (a *ART) Get(key []byte) []byte {
	a.lock.RLock()
	defer a.lock.RUnlock()
	val, found := a.tree.Search(key)
	if !found || val == nil {
		return nil
	}
	return val.([]byte)
}

func (a *ART) Delete(key []byte) ([]byte, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	val, found := a.tree.Delete(key)
	if !found || val == nil {
		return nil, false
	}
	return val.([]byte), true
}

func (a *ART) Size() int {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.tree.Size()
}

// Iterator creates a forward or reverse iterator by snapshotting entries.
func (a *ART) Iterator(reverse bool) Iterator {
	a.lock.RLock()
	defer a.lock.RUnlock()
	items := make([]indexItem, 0, a.tree.Size())
	a.tree.ForEach(func(node art.Node) bool {
		if node.Kind() == art.Leaf {
			items = append(items, indexItem{
				key:   append([]byte(nil), node.Key()...),
				value: node.Value().([]byte),
			})
		}
		return true
	})
	return newSliceIterator(items, reverse)
}

func (a *ART) Close() error {
	return nil
}

type indexItem struct {
	key   []byte
	value []byte
}

// sliceIterator iterates a sorted snapshot of index entries.
type sliceIterator struct {
	items   []indexItem
	pos     int
	reverse bool
}

func newSliceIterator(items []indexItem, reverse bool) *sliceIterator {
	sort.Slice(items, func(i, j int) bool {
		return bytes.Compare(items[i].key, items[j].key) < 0
	})
	it := &sliceIterator{items: items, reverse: reverse}
	it.Rewind()
	return it
}

func (si *sliceIterator) Rewind() {
	if si.reverse {
		si.pos = len(si.items) - 1
	} else {
		si.pos = 0
	}
}

func (si *sliceIterator) Seek(key []byte) {
	if si.reverse {
		si.pos = sort.Search(len(si.items), func(i int) bool {
			return bytes.Compare(si.items[i].key, key) > 0
		}) - 1
	} else {
		si.pos = sort.Search(len(si.items), func(i int) bool {
			return bytes.Compare(si.items[i].key, key) >= 0
		})
	}
}

func (si *sliceIterator) Next() {
	if si.reverse {
		si.pos--
	} else {
		si.pos++
	}
}

func (si *sliceIterator) Valid() bool {
	return si.pos >= 0 && si.pos < len(si.items)
}

func (si *sliceIterator) Key() []byte {
	if !si.Valid() {
		return nil
	}
	return si.items[si.pos].key
}

func (si *sliceIterator) Value() []byte {
	if !si.Valid() {
		return nil
	}
	return si.items[si.pos].value
}

func (si *sliceIterator) Close() {}
