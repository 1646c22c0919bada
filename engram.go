// Package engram wires the memory engine together: it selects a storage
// backend from configuration and returns a ready memory.Manager.
//
// Callers with custom backends can skip this package and construct
// memory.NewManager directly.
package engram

import (
	"fmt"

	"github.com/becomeliminal/engram-go/memory"
	chromemstore "github.com/becomeliminal/engram-go/memory/store/chromem"
	filestore "github.com/becomeliminal/engram-go/memory/store/file"
	"github.com/becomeliminal/engram-go/memory/store/inmem"
)

// Open builds the store named by cfg.StorageType and returns a Manager over
// it. The Manager owns the store; closing the Manager closes the store.
func Open(cfg *memory.Config, embedder memory.Embedder, opts ...memory.Option) (*memory.Manager, error) {
	if cfg == nil {
		cfg = memory.DefaultConfig()
	}

	var (
		store memory.Store
		err   error
	)
	switch cfg.StorageType {
	case memory.StoragePersistent:
		if cfg.Path == "" {
			return nil, &memory.ConfigError{Field: "path", Reason: "required for persistent storage"}
		}
		store, err = filestore.Open(cfg.Path)
	case memory.StorageTransient:
		store = inmem.New()
	case memory.StorageIndexed:
		store, err = chromemstore.New()
	default:
		return nil, &memory.ConfigError{Field: "storage_type", Reason: fmt.Sprintf("unknown value %q", cfg.StorageType)}
	}
	if err != nil {
		return nil, err
	}

	mgr, err := memory.NewManager(store, embedder, cfg, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return mgr, nil
}
