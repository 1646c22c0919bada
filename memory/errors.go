package memory

import (
	"errors"
	"fmt"
)

// ErrEmbedTimeout is returned when the embedding capability exceeds the
// configured timeout. The operation is aborted; no partial record is written.
var ErrEmbedTimeout = errors.New("memory: embedding timed out")

// ConfigError reports an invalid configuration value at construction time,
// or a query/record dimension mismatch inside the scorer (which can only
// happen if a store invariant was violated). It is fatal to the operation;
// values are never clamped.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("memory: config %s: %s", e.Field, e.Reason)
}

// EmbeddingError wraps a failure of the embedding capability.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("memory: embed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// StorageError wraps a storage backend failure: unreachable backend, corrupt
// read, or embedding dimension mismatch.
type StorageError struct {
	Op  string // "put", "load", "delete", ...
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("memory: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DimensionMismatch builds the StorageError cause for an embedding whose
// length disagrees with the store's established dimensionality.
func DimensionMismatch(got, want int) error {
	return fmt.Errorf("embedding dimension %d does not match store dimension %d", got, want)
}
