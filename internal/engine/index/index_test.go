package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testIndexerPutGetDelete(t *testing.T, idx Indexer) {
	t.Helper()

	prev := idx.Put([]byte("a"), []byte("1"))
	assert.Nil(t, prev)
	prev = idx.Put([]byte("a"), []byte("2"))
	assert.Equal(t, []byte("1"), prev)

	assert.Equal(t, []byte("2"), idx.Get([]byte("a")))
	assert.Nil(t, idx.Get([]byte("missing")))
	assert.Equal(t, 1, idx.Size())

	old, ok := idx.Delete([]byte("a"))
	assert.True(t, ok)
	assert.Equal(t, []byte("2"), old)
	_, ok = idx.Delete([]byte("a"))
	assert.False(t, ok)
	assert.Equal(t, 0, idx.Size())
}

func testIndexerIterator(t *testing.T, idx Indexer) {
	t.Helper()

	keys := []string{"b", "d", "a", "c"}
	for _, k := range keys {
		idx.Put([]byte(k), []byte("v-"+k))
	}

	it := idx.Iterator(false)
	defer it.Close()

	var got []string
	for it.Rewind(); it.Valid(); it.Next() {
		got = append(got, string(it.Key()))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)

	it.Seek([]byte("bb"))
	assert.True(t, it.Valid())
	assert.Equal(t, []byte("c"), it.Key())
	assert.Equal(t, []byte("v-c"), it.Value())
}

func TestSkipListIndex(t *testing.T) {
	testIndexerPutGetDelete(t, NewSkipList())
	testIndexerIterator(t, NewSkipList())
}

func TestARTIndex(t *testing.T) {
	testIndexerPutGetDelete(t, NewART())
	testIndexerIterator(t, NewART())
}

func TestNewSelectsImplementation(t *testing.T) {
	assert.NotNil(t, New(SkipListIndex))
	assert.NotNil(t, New(ARTIndex))
	// Unknown types fall back to the default.
	assert.NotNil(t, New(Type(99)))
}
