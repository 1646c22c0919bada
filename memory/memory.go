package memory

import (
	"context"
	"time"
)

// Store is the record storage backend interface.
// Implementations: file.Store (persistent), inmem.Store (transient),
// chromem.Store (transient with similarity index).
type Store interface {
	// Put writes a record, assigning ID and CreatedAt if unset.
	// Fails with *StorageError on backend failure or when the embedding
	// length does not match the store's established dimensionality.
	Put(ctx context.Context, rec *Record) (RecordID, error)

	// GetAll returns a snapshot of every record, as deep copies, in ID
	// order. Mutating the result never affects the store.
	GetAll(ctx context.Context) ([]*Record, error)

	// Touch stamps LastAccessed on a record. Unknown IDs are ignored.
	Touch(ctx context.Context, id RecordID, at time.Time) error

	// Delete removes a record permanently. Reports whether it existed.
	Delete(ctx context.Context, id RecordID) (bool, error)

	// Clear removes every record.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CandidateStore is an optional Store capability: backends with a similarity
// index can hand the Manager a pre-ranked candidate set instead of a full
// scan. limit <= 0 means every record; implementations must never drop a
// record that could still pass the similarity threshold.
type CandidateStore interface {
	Candidates(ctx context.Context, query []float32, limit int) ([]*Record, error)
}

// Embedder converts text to vector embeddings. It is an injected capability:
// the engine assumes a stable model per deployment and never inspects the
// vectors beyond their length.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size, or 0 if unknown.
	Dimensions() int
}

// Clock supplies the current time. Injectable for deterministic tests.
type Clock func() time.Time

// Result is one recall hit: the record plus its decayed relevance score
// in [0,100].
type Result struct {
	Record *Record
	Score  float64
}
