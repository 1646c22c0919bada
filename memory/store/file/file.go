// Package file provides the persistent record store: an append-only JSONL
// log, one self-describing op entry per line, fully replayable on restart.
//
// Durability model: a Put is a single appended line followed by fsync, and
// the trailing newline is the commit marker. A crash mid-write can leave at
// most an unterminated trailing line; Open discards such a tail — even one
// that happens to be complete JSON — truncates it, and leaves every
// committed entry intact. A malformed terminated line is a corrupt log and
// fails the load.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/becomeliminal/engram-go/memory"
)

// Log op kinds. Deletions and access stamps append entries too, so full
// state (including evictions) reconstructs by replay from the start.
const (
	opPut    = "put"
	opTouch  = "touch"
	opDelete = "del"
)

type logEntry struct {
	Op     string          `json:"op"`
	Record *memory.Record  `json:"record,omitempty"`
	ID     memory.RecordID `json:"id,omitempty"`
	At     time.Time       `json:"at,omitzero"`
}

// Store is the file-backed persistent record store. Physical writes
// serialize under a mutex so concurrent puts never interleave partial
// entries in the log.
type Store struct {
	mu      sync.Mutex
	path    string
	f       *os.File
	records map[memory.RecordID]*memory.Record
	nextID  memory.RecordID
	dims    int
}

// Open opens or creates the log at path and replays it into memory.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &memory.StorageError{Op: "open", Err: err}
	}

	s := &Store{
		path:    path,
		f:       f,
		records: make(map[memory.RecordID]*memory.Record),
	}
	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}

	log.Printf("[STORE] Loaded %d records from %s", len(s.records), path)
	return s, nil
}

// load replays the log from the start, truncating a trailing line left
// unterminated by a crash mid-write.
func (s *Store) load() error {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return &memory.StorageError{Op: "load", Err: err}
	}

	r := bufio.NewReader(s.f)
	var committed int64
	for {
		line, readErr := r.ReadBytes('\n')
		if len(line) > 0 {
			if line[len(line)-1] != '\n' {
				// Torn trailing write: the newline is the commit
				// marker, so the tail is uncommitted even when it
				// parses as complete JSON. Discard it; committed
				// entries are untouched.
				log.Printf("[STORE] Truncating unterminated trailing entry in %s", s.path)
				break
			}
			var entry logEntry
			if err := json.Unmarshal(line, &entry); err != nil {
				return &memory.StorageError{Op: "load", Err: fmt.Errorf("corrupt entry at byte %d: %w", committed, err)}
			}
			if err := s.apply(&entry); err != nil {
				return err
			}
			committed += int64(len(line))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &memory.StorageError{Op: "load", Err: readErr}
		}
	}

	if err := s.f.Truncate(committed); err != nil {
		return &memory.StorageError{Op: "load", Err: err}
	}
	if _, err := s.f.Seek(0, io.SeekEnd); err != nil {
		return &memory.StorageError{Op: "load", Err: err}
	}
	return nil
}

func (s *Store) apply(entry *logEntry) error {
	switch entry.Op {
	case opPut:
		rec := entry.Record
		if rec == nil {
			return &memory.StorageError{Op: "load", Err: fmt.Errorf("put entry without record")}
		}
		if s.dims == 0 {
			s.dims = len(rec.Embedding)
		} else if len(rec.Embedding) != s.dims {
			return &memory.StorageError{Op: "load", Err: memory.DimensionMismatch(len(rec.Embedding), s.dims)}
		}
		s.records[rec.ID] = rec
		if rec.ID > s.nextID {
			s.nextID = rec.ID
		}
	case opTouch:
		if rec, ok := s.records[entry.ID]; ok {
			rec.LastAccessed = entry.At
		}
	case opDelete:
		delete(s.records, entry.ID)
	default:
		return &memory.StorageError{Op: "load", Err: fmt.Errorf("unknown op %q", entry.Op)}
	}
	return nil
}

// append serializes one entry, writes it as a single line and syncs.
// Caller must hold s.mu.
func (s *Store) append(op string, entry *logEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return &memory.StorageError{Op: op, Err: err}
	}
	b = append(b, '\n')
	if _, err := s.f.Write(b); err != nil {
		return &memory.StorageError{Op: op, Err: err}
	}
	if err := s.f.Sync(); err != nil {
		return &memory.StorageError{Op: op, Err: err}
	}
	return nil
}

// Put appends the record to the log, assigning ID and CreatedAt if unset.
// The in-memory index advances only after the full entry is durable.
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

	if err := s.append("put", &logEntry{Op: opPut, Record: cp}); err != nil {
		return memory.NoRecord, err
	}

	s.records[cp.ID] = cp
	rec.ID = cp.ID
	rec.CreatedAt = cp.CreatedAt
	return cp.ID, nil
}

// GetAll returns deep copies of every live record in ID order.
func (s *Store) GetAll(ctx context.Context) ([]*memory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*memory.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Touch appends an access stamp. Unknown IDs are ignored without a write.
func (s *Store) Touch(ctx context.Context, id memory.RecordID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	if err := s.append("touch", &logEntry{Op: opTouch, ID: id, At: at}); err != nil {
		return err
	}
	rec.LastAccessed = at
	return nil
}

// Delete appends a tombstone, reporting whether the record existed.
func (s *Store) Delete(ctx context.Context, id memory.RecordID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	if err := s.append("delete", &logEntry{Op: opDelete, ID: id}); err != nil {
		return false, err
	}
	delete(s.records, id)
	return true, nil
}

// Clear truncates the log and drops every record. The ID counter keeps
// rising so IDs stay unique for the store's lifetime.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.f.Truncate(0); err != nil {
		return &memory.StorageError{Op: "clear", Err: err}
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return &memory.StorageError{Op: "clear", Err: err}
	}
	s.records = make(map[memory.RecordID]*memory.Record)
	s.dims = 0
	return nil
}

// Close closes the underlying log file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
