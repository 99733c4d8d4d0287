package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/gofrs/flock"
)

const lockFileName = "flock"

// Pebble is a persistent engine backed by cockroachdb/pebble. The data
// directory is guarded with a file lock so two processes cannot open the
// same store.
type Pebble struct {
	db       *pebble.DB
	fileLock *flock.Flock
}

// OpenPebble opens (or creates) a pebble-backed engine under dir.
func OpenPebble(dir string) (*Pebble, error) {
	if dir == "" {
		return nil, fmt.Errorf("engine dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	fileLock := flock.New(filepath.Join(dir, lockFileName))
	held, err := fileLock.TryLock()
	if err != nil {
		return nil, err
	}
	if !held {
		return nil, fmt.Errorf("engine dir %s is in use by another process", dir)
	}

	db, err := pebble.Open(filepath.Join(dir, "kv"), &pebble.Options{})
	if err != nil {
		_ = fileLock.Unlock()
		return nil, err
	}
	return &Pebble{db: db, fileLock: fileLock}, nil
}

func (p *Pebble) ApplyBatch(ops []Op) error {
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, op := range ops {
		var err error
		if op.Delete {
			err = batch.Delete(op.Key, nil)
		} else {
			err = batch.Set(op.Key, op.Value, nil)
		}
		if err != nil {
			return err
		}
	}
	return p.db.Apply(batch, pebble.Sync)
}

func (p *Pebble) Get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	out := append([]byte(nil), value...)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Pebble) Scan(start, end []byte) ([]Pair, error) {
	opts := &pebble.IterOptions{}
	if len(start) > 0 {
		opts.LowerBound = start
	}
	if len(end) > 0 {
		opts.UpperBound = end
	}
	it, err := p.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var pairs []Pair
	for it.First(); it.Valid(); it.Next() {
		pairs = append(pairs, Pair{
			Key:   append([]byte(nil), it.Key()...),
			Value: append([]byte(nil), it.Value()...),
		})
	}
	return pairs, it.Error()
}

func (p *Pebble) DeleteRange(start, end []byte) error {
	if len(end) > 0 {
		return p.db.DeleteRange(start, end, pebble.Sync)
	}
	// No natural upper bound: delete via scan.
	pairs, err := p.Scan(start, nil)
	if err != nil {
		return err
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, pair := range pairs {
		if err := batch.Delete(pair.Key, nil); err != nil {
			return err
		}
	}
	return p.db.Apply(batch, pebble.Sync)
}

func (p *Pebble) Close() error {
	err := p.db.Close()
	if p.fileLock != nil {
		if unlockErr := p.fileLock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}
