package raftstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	regionpkg "flintkv/internal/region"
)

const (
	stateFileName  = "region.meta"
	stateBucketKey = "region_state"
)

// StateStore persists RegionLocalState per region so a restarted replica
// resumes with the correct epoch and flashback flag before applying any new
// log entries.
type StateStore struct {
	db *bolt.DB
}

// OpenStateStore opens (or creates) the state store under dir.
func OpenStateStore(dir string) (*StateStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state store dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, stateFileName), 0o600, &bolt.Options{Timeout: 0})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(stateBucketKey))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &StateStore{db: db}, nil
}

func stateKey(id regionpkg.ID) []byte {
	return []byte(fmt.Sprintf("region/%d", id))
}

// Save writes the local state for its region.
func (s *StateStore) Save(state regionpkg.LocalState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucketKey))
		if bucket == nil {
			return fmt.Errorf("bucket %s missing", stateBucketKey)
		}
		return bucket.Put(stateKey(state.Region.ID), data)
	})
}

// Load reads the local state for a region; ok is false when absent.
func (s *StateStore) Load(id regionpkg.ID) (regionpkg.LocalState, bool, error) {
	var state regionpkg.LocalState
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucketKey))
		if bucket == nil {
			return nil
		}
		data := bucket.Get(stateKey(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &state)
	})
	return state, found, err
}

// ForEach visits every persisted local state.
func (s *StateStore) ForEach(fn func(regionpkg.LocalState) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucketKey))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var state regionpkg.LocalState
			if err := json.Unmarshal(v, &state); err != nil {
				return err
			}
			return fn(state)
		})
	})
}

// Delete removes the state for a region (tombstoned after merge).
func (s *StateStore) Delete(id regionpkg.ID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(stateBucketKey))
		if bucket == nil {
			return nil
		}
		return bucket.Delete(stateKey(id))
	})
}

func (s *StateStore) Close() error {
	return s.db.Close()
}
