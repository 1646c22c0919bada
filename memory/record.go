package memory

import "time"

// RecordID identifies a stored record. IDs are assigned monotonically by the
// Store at creation time and are stable for the store's lifetime, so ID order
// is also temporal order.
type RecordID int64

// NoRecord is the sentinel returned by Remember when memory is disabled.
// Real IDs start at 1.
const NoRecord RecordID = 0

// Record is one stored unit of past interaction content plus its embedding
// and timestamps. All fields except LastAccessed are immutable once written.
type Record struct {
	ID        RecordID  `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Content   string    `json:"content"`

	// Embedding is the vector produced at write time. Its length is
	// constant across all records in a given store.
	Embedding []float32 `json:"embedding"`

	// LastAccessed is stamped on retrieval hits and only consulted when
	// fade_mode is "accessed". Zero means never retrieved.
	LastAccessed time.Time `json:"last_accessed"`
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// observe or mutate backend-owned state.
func (r *Record) Clone() *Record {
	cp := *r
	cp.Embedding = append([]float32(nil), r.Embedding...)
	return &cp
}
