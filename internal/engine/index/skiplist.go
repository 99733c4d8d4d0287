package index

import (
	"bytes"
	"sync"

	"github.com/huandu/skiplist"
)

// SkipList index backed by github.com/huandu/skiplist.
type SkipList struct {
	list *skiplist.SkipList
	lock *sync.RWMutex
}

// NewSkipList constructs an empty skip list index.
func NewSkipList() *SkipList {
	return &SkipList{
		list: skiplist.New(skiplist.Bytes),
		lock: new(sync.RWMutex),
	}
}

func (sl *SkipList) Put(key, value []byte) []byte {
	sl.lock.Lock()
	defer sl.lock.Unlock()

	var old []byte
	if elem := sl.list.Get(key); elem != nil {
		old, _ = elem.Value.([]byte)
	}
	sl.list.Set(append([]byte(nil), key...), append([]byte(nil), value...))
	return old
}

func (sl *SkipList) Get(key []byte) []byte {
	sl.lock.RLock()
	defer sl.lock.RUnlock()

	elem := sl.list.Get(key)
	if elem == nil {
		return nil
	}
	value, _ := elem.Value.([]byte)
	return value
}

func (sl *SkipList) Delete(key []byte) ([]byte, bool) {
	sl.lock.Lock()
	defer sl.lock.Unlock()

	elem := sl.list.Remove(key)
	if elem == nil {
		return nil, false
	}
	value, _ := elem.Value.([]byte)
	return value, true
}

func (sl *SkipList) Size() int {
	sl.lock.RLock()
	defer sl.lock.RUnlock()
	return sl.list.Len()
}

func (sl *SkipList) Iterator(reverse bool) Iterator {
	sl.lock.RLock()
	defer sl.lock.RUnlock()
	return newSkipListIterator(sl.list, reverse)
}

func (sl *SkipList) Close() error {
	return nil
}

type skiplistIterator struct {
	currElem *skiplist.Element
	reverse  bool
	list     *skiplist.SkipList
}

func newSkipListIterator(list *skiplist.SkipList, reverse bool) *skiplistIterator {
	var currElem *skiplist.Element
	if reverse {
		currElem = list.Back()
	} else {
		currElem = list.Front()
	}
	return &skiplistIterator{
		currElem: currElem,
		reverse:  reverse,
		list:     list,
	}
}

func (sli *skiplistIterator) Rewind() {
	if sli.reverse {
		sli.currElem = sli.list.Back()
	} else {
		sli.currElem = sli.list.Front()
	}
}

// Seek positions on the first key >= key (or <= key when reversed).
func (sli *skiplistIterator) Seek(key []byte) {
	if sli.reverse {
		elem := sli.list.Back()
		for elem != nil {
			if bytes.Compare(elem.Key().([]byte), key) <= 0 {
				break
			}
			elem = elem.Prev()
		}
		sli.currElem = elem
	} else {
		elem := sli.list.Front()
		for elem != nil {
			if bytes.Compare(elem.Key().([]byte), key) >= 0 {
				break
			}
			elem = elem.Next()
		}
		sli.currElem = elem
	}
}

func (sli *skiplistIterator) Next() {
	if sli.currElem == nil {
		return
	}
	if sli.reverse {
		sli.currElem = sli.currElem.Prev()
	} else {
		sli.currElem = sli.currElem.Next()
	}
}

func (sli *skiplistIterator) Valid() bool {
	return sli.currElem != nil
}

func (sli *skiplistIterator) Key() []byte {
	if sli.currElem == nil {
		return nil
	}
	return sli.currElem.Key().([]byte)
}

func (sli *skiplistIterator) Value() []byte {
	if sli.currElem == nil {
		return nil
	}
	value, _ := sli.currElem.Value.([]byte)
	return value
}

func (sli *skiplistIterator) Close() {}
