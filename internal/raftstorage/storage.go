// Package raftstorage provides file-backed raft.Storage, one instance per
// region replica. Each replica owns two files under the store's raft
// directory: <region>.meta carries the hard state, conf state and the
// latest snapshot, <region>.log carries the entry window. Splitting the
// two keeps hard-state updates, which happen on every ready cycle, from
// rewriting the whole log.
package raftstorage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gogo/protobuf/proto"
	"go.etcd.io/etcd/raft/v3"
	"go.etcd.io/etcd/raft/v3/raftpb"
)

// Storage implements raft.Storage for one region replica.
type Storage struct {
	mu       sync.RWMutex
	metaPath string
	logPath  string

	hardState raftpb.HardState
	confState raftpb.ConfState
	snapshot  raftpb.Snapshot
	log       entryLog
}

// entryLog is the in-memory entry window. offset is the raft index of
// entries[0] and stays meaningful while the window is empty, so a freshly
// compacted log remembers where it resumes.
type entryLog struct {
	offset  uint64
	entries []raftpb.Entry
}

func (l *entryLog) empty() bool { return len(l.entries) == 0 }

// bounds returns the raft indexes of the first and last held entries.
// Not meaningful while the log is empty.
func (l *entryLog) bounds() (first, last uint64) {
	return l.offset, l.offset + uint64(len(l.entries)) - 1
}

// slice returns cloned entries in [lo, hi). Callers check bounds first.
func (l *entryLog) slice(lo, hi uint64) []raftpb.Entry {
	start := lo - l.offset
	end := hi - l.offset
	if end > uint64(len(l.entries)) {
		end = uint64(len(l.entries))
	}
	return cloneEntries(l.entries[start:end])
}

func (l *entryLog) term(i uint64) (uint64, error) {
	if l.empty() || i < l.offset {
		return 0, raft.ErrCompacted
	}
	pos := i - l.offset
	if pos >= uint64(len(l.entries)) {
		return 0, raft.ErrUnavailable
	}
	return l.entries[pos].Term, nil
}

// merge integrates freshly appended entries, truncating a conflicting
// suffix the way a new leader's log overwrites a follower's.
func (l *entryLog) merge(ents []raftpb.Entry) error {
	if l.empty() {
		l.offset = ents[0].Index
		l.entries = cloneEntries(ents)
		return nil
	}
	pos := ents[0].Index - l.offset
	switch {
	case pos == uint64(len(l.entries)):
		l.entries = append(l.entries, cloneEntries(ents)...)
	case pos < uint64(len(l.entries)):
		l.entries = append(append([]raftpb.Entry{}, l.entries[:pos]...), cloneEntries(ents)...)
	default:
		first, last := l.bounds()
		return fmt.Errorf("raftstorage: appending %d leaves a gap after [%d, %d]", ents[0].Index, first, last)
	}
	return nil
}

// dropThrough discards entries up to and including index i. Dropping
// behind the window is a no-op.
func (l *entryLog) dropThrough(i uint64) {
	next := i + 1
	if next <= l.offset {
		return
	}
	cut := next - l.offset
	if cut >= uint64(len(l.entries)) {
		l.entries = nil
	} else {
		l.entries = cloneEntries(l.entries[cut:])
	}
	l.offset = next
}

// Open loads or creates the storage for one region under dir.
func Open(dir string, regionID uint64) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("raftstorage: dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	st := &Storage{
		metaPath: filepath.Join(dir, fmt.Sprintf("%d.meta", regionID)),
		logPath:  filepath.Join(dir, fmt.Sprintf("%d.log", regionID)),
		log:      entryLog{offset: 1},
	}
	if err := st.loadMeta(); err != nil {
		return nil, fmt.Errorf("raftstorage: load %s: %w", st.metaPath, err)
	}
	if err := st.loadLog(); err != nil {
		return nil, fmt.Errorf("raftstorage: load %s: %w", st.logPath, err)
	}
	// The two files are written independently; a crash between them can
	// leave a log tail the snapshot already covers.
	if snapIndex := st.snapshot.Metadata.Index; snapIndex >= st.log.offset && !st.log.empty() {
		st.log.dropThrough(snapIndex)
	}
	return st, nil
}

// Close releases resources held by the storage. Currently no-op.
func (s *Storage) Close() error {
	return nil
}

func (s *Storage) InitialState() (raftpb.HardState, raftpb.ConfState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hardState, s.confState, nil
}

func (s *Storage) SetHardState(hs raftpb.HardState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hardState = hs
	return s.persistMeta()
}

func (s *Storage) Entries(lo, hi, maxSize uint64) ([]raftpb.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if lo < s.firstIndexLocked() {
		return nil, raft.ErrCompacted
	}
	if hi > s.lastIndexLocked()+1 {
		return nil, raft.ErrUnavailable
	}
	if s.log.empty() {
		return nil, nil
	}
	ents := s.log.slice(lo, hi)
	if maxSize > 0 {
		return capEntries(ents, maxSize), nil
	}
	return ents, nil
}

func (s *Storage) Term(i uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.termLocked(i)
}

func (s *Storage) LastIndex() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastIndexLocked(), nil
}

func (s *Storage) FirstIndex() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstIndexLocked(), nil
}

func (s *Storage) Snapshot() (raftpb.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSnapshot(s.snapshot), nil
}

// ApplySnapshot installs a snapshot received from the leader, discarding
// whatever part of the log it covers.
func (s *Storage) ApplySnapshot(snap raftpb.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Metadata.Index < s.snapshot.Metadata.Index {
		return raft.ErrSnapOutOfDate
	}
	s.snapshot = cloneSnapshot(snap)
	s.confState = snap.Metadata.ConfState
	s.log.dropThrough(snap.Metadata.Index)
	if err := s.persistMeta(); err != nil {
		return err
	}
	return s.persistLog()
}

// CreateSnapshot records a snapshot cut at index with the state machine
// payload in data. It does not compact the log; callers follow up with
// Compact once the snapshot is safe.
func (s *Storage) CreateSnapshot(index uint64, data []byte, cs *raftpb.ConfState) (*raftpb.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < s.snapshot.Metadata.Index {
		return nil, raft.ErrSnapOutOfDate
	}
	if index > s.lastIndexLocked() {
		return nil, raft.ErrUnavailable
	}
	term, err := s.termLocked(index)
	if err != nil {
		return nil, err
	}
	conf := proto.Clone(&s.confState).(*raftpb.ConfState)
	if cs != nil {
		conf = proto.Clone(cs).(*raftpb.ConfState)
	}
	snap := raftpb.Snapshot{
		Data: append([]byte(nil), data...),
		Metadata: raftpb.SnapshotMetadata{
			Index:     index,
			Term:      term,
			ConfState: *conf,
		},
	}
	s.snapshot = cloneSnapshot(snap)
	s.confState = *conf
	if err := s.persistMeta(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Storage) Compact(index uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < s.firstIndexLocked()-1 {
		return raft.ErrCompacted
	}
	if index > s.lastIndexLocked() {
		return raft.ErrUnavailable
	}
	s.log.dropThrough(index)
	return s.persistLog()
}

func (s *Storage) SetConfState(cs *raftpb.ConfState) error {
	if cs == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confState = *proto.Clone(cs).(*raftpb.ConfState)
	return s.persistMeta()
}

func (s *Storage) ConfState() raftpb.ConfState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *proto.Clone(&s.confState).(*raftpb.ConfState)
}

func (s *Storage) Append(ents []raftpb.Entry) error {
	if len(ents) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first := s.firstIndexLocked()
	if ents[len(ents)-1].Index < first {
		// Entirely behind the compaction point.
		return nil
	}
	if ents[0].Index < first {
		ents = ents[first-ents[0].Index:]
	}
	if err := s.log.merge(ents); err != nil {
		return err
	}
	return s.persistLog()
}

func (s *Storage) termLocked(i uint64) (uint64, error) {
	if snapIndex := s.snapshot.Metadata.Index; i == snapIndex {
		return s.snapshot.Metadata.Term, nil
	} else if i < snapIndex {
		return 0, raft.ErrCompacted
	}
	return s.log.term(i)
}

func (s *Storage) firstIndexLocked() uint64 {
	if s.snapshot.Metadata.Index != 0 {
		return s.snapshot.Metadata.Index + 1
	}
	if !s.log.empty() {
		first, _ := s.log.bounds()
		return first
	}
	return 1
}

func (s *Storage) lastIndexLocked() uint64 {
	if !s.log.empty() {
		_, last := s.log.bounds()
		return last
	}
	return s.snapshot.Metadata.Index
}

func (s *Storage) persistMeta() error {
	return atomicWrite(s.metaPath, func(w *bufio.Writer) error {
		if err := writeRecord(w, &s.hardState); err != nil {
			return err
		}
		if err := writeRecord(w, &s.confState); err != nil {
			return err
		}
		return writeRecord(w, &s.snapshot)
	})
}

func (s *Storage) persistLog() error {
	return atomicWrite(s.logPath, func(w *bufio.Writer) error {
		if err := writeUvarint(w, s.log.offset); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(len(s.log.entries))); err != nil {
			return err
		}
		for i := range s.log.entries {
			if err := writeRecord(w, &s.log.entries[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) loadMeta() error {
	f, err := os.Open(s.metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := readRecord(r, &s.hardState); err != nil {
		return err
	}
	if err := readRecord(r, &s.confState); err != nil {
		return err
	}
	return readRecord(r, &s.snapshot)
}

func (s *Storage) loadLog() error {
	f, err := os.Open(s.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	offset, err := binary.ReadUvarint(r)
	if err != nil {
		return err
	}
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return err
	}
	entries := make([]raftpb.Entry, count)
	for i := range entries {
		if err := readRecord(r, &entries[i]); err != nil {
			return err
		}
	}
	s.log = entryLog{offset: offset, entries: entries}
	return nil
}

// atomicWrite replaces path through a fsynced temp file rename, so a crash
// mid-write leaves the previous contents intact.
func atomicWrite(path string, fill func(*bufio.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeUvarint(w *bufio.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func writeRecord(w *bufio.Writer, msg proto.Message) error {
	data, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readRecord(r *bufio.Reader, msg proto.Message) error {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return err
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	return proto.Unmarshal(data, msg)
}

func cloneSnapshot(snap raftpb.Snapshot) raftpb.Snapshot {
	return *proto.Clone(&snap).(*raftpb.Snapshot)
}

func cloneEntries(entries []raftpb.Entry) []raftpb.Entry {
	if len(entries) == 0 {
		return nil
	}
	cp := make([]raftpb.Entry, len(entries))
	for i := range entries {
		cp[i] = entries[i]
		if entries[i].Data != nil {
			cp[i].Data = append([]byte(nil), entries[i].Data...)
		}
	}
	return cp
}

// capEntries trims the slice to maxSize bytes of encoded entries, always
// keeping at least the first one so raft can make progress.
func capEntries(entries []raftpb.Entry, maxSize uint64) []raftpb.Entry {
	var size uint64
	for i := range entries {
		size += uint64(entries[i].Size())
		if size > maxSize {
			if i == 0 {
				return entries[:1]
			}
			return entries[:i]
		}
	}
	return entries
}
