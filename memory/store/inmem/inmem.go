// Package inmem provides the transient record store: a process-lifetime
// keyed mapping with no durability.
package inmem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/becomeliminal/engram-go/memory"
)

// Store is a mutex-guarded in-memory record store. The zero limit on
// lifetime is the process itself; Clear on process end is implicit.
type Store struct {
	mu      sync.RWMutex
	records map[memory.RecordID]*memory.Record
	nextID  memory.RecordID
	dims    int
}

// New creates an empty transient store.
func New() *Store {
	return &Store{records: make(map[memory.RecordID]*memory.Record)}
}

// Put stores a copy of rec, assigning ID and CreatedAt if unset.
func (s *Store) Put(ctx context.Context, rec *memory.Record) (memory.RecordID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims == 0 {
		s.dims = len(rec.Embedding)
	} else if len(rec.Embedding) != s.dims {
		return memory.NoRecord, &memory.StorageError{Op: "put", Err: memory.DimensionMismatch(len(rec.Embedding), s.dims)}
	}

	cp := rec.Clone()
	if cp.ID == memory.NoRecord {
		s.nextID++
		cp.ID = s.nextID
	} else if cp.ID > s.nextID {
		s.nextID = cp.ID
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}

	s.records[cp.ID] = cp
	rec.ID = cp.ID
	rec.CreatedAt = cp.CreatedAt
	return cp.ID, nil
}

// GetAll returns deep copies of every record in ID order.
func (s *Store) GetAll(ctx context.Context) ([]*memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*memory.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Touch stamps LastAccessed. Unknown IDs are ignored.
func (s *Store) Touch(ctx context.Context, id memory.RecordID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.LastAccessed = at
	}
	return nil
}

// Delete removes a record, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, id memory.RecordID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

// Clear removes every record. The ID counter keeps rising so IDs stay
// unique for the store's lifetime.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[memory.RecordID]*memory.Record)
	s.dims = 0
	return nil
}

// Close is a no-op; nothing is held outside process memory.
func (s *Store) Close() error { return nil }
