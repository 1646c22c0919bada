// Package chromem provides the indexed record store: a process-lifetime
// store that additionally maintains a chromem-go collection, so the Manager
// receives candidates pre-ranked by cosine similarity instead of an
// unordered scan.
//
// The map is authoritative for record state (GetAll, Delete, Clear); the
// chromem collection is purely a similarity index over the same records.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/engram-go/memory"
)

const collectionName = "records"

// Store is an in-memory record store backed by a chromem-go similarity
// index for candidate ranking.
type Store struct {
	mu      sync.RWMutex
	db      *chromem.DB
	col     *chromem.Collection
	records map[memory.RecordID]*memory.Record
	nextID  memory.RecordID
	dims    int
}

// New creates an empty indexed store.
func New() (*Store, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, &memory.StorageError{Op: "open", Err: fmt.Errorf("create collection: %w", err)}
	}
	return &Store{
		db:      db,
		col:     col,
		records: make(map[memory.RecordID]*memory.Record),
	}, nil
}

// Put stores a copy of rec and indexes its embedding, assigning ID and
// CreatedAt if unset.
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

	doc := chromem.Document{
		ID:        docID(cp.ID),
		Content:   cp.Content,
		Embedding: cp.Embedding,
		Metadata: map[string]string{
			"created_at": cp.CreatedAt.Format(time.RFC3339Nano),
		},
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return memory.NoRecord, &memory.StorageError{Op: "put", Err: fmt.Errorf("add document: %w", err)}
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

// Candidates returns records ranked by cosine similarity to query, highest
// first. limit <= 0 (or larger than the store) means every record, so the
// ranking never hides a record from threshold filtering.
func (s *Store) Candidates(ctx context.Context, query []float32, limit int) ([]*memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.col.Count()
	if n == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	results, err := s.col.QueryEmbedding(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, &memory.StorageError{Op: "query", Err: err}
	}

	out := make([]*memory.Record, 0, len(results))
	for _, res := range results {
		id, err := parseDocID(res.ID)
		if err != nil {
			return nil, &memory.StorageError{Op: "query", Err: err}
		}
		rec, ok := s.records[id]
		if !ok {
			// Index and map diverged; skip rather than invent state.
			log.Printf("[CHROMEM] Index entry %s has no record, skipping", res.ID)
			continue
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

// Touch stamps LastAccessed on the authoritative record. The index carries
// no access state, so it is untouched.
func (s *Store) Touch(ctx context.Context, id memory.RecordID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.LastAccessed = at
	}
	return nil
}

// Delete removes a record from both the map and the index.
func (s *Store) Delete(ctx context.Context, id memory.RecordID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	if err := s.col.Delete(ctx, nil, nil, docID(id)); err != nil {
		return false, &memory.StorageError{Op: "delete", Err: err}
	}
	delete(s.records, id)
	return true, nil
}

// Clear drops every record and rebuilds an empty index. The ID counter
// keeps rising so IDs stay unique for the store's lifetime.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collectionName); err != nil {
		return &memory.StorageError{Op: "clear", Err: err}
	}
	col, err := s.db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return &memory.StorageError{Op: "clear", Err: err}
	}
	s.col = col
	s.records = make(map[memory.RecordID]*memory.Record)
	s.dims = 0
	return nil
}

// Close is a no-op; chromem-go holds everything in process memory.
func (s *Store) Close() error { return nil }

func docID(id memory.RecordID) string {
	return strconv.FormatInt(int64(id), 10)
}

func parseDocID(s string) (memory.RecordID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return memory.NoRecord, fmt.Errorf("malformed document id %q: %w", s, err)
	}
	return memory.RecordID(n), nil
}
