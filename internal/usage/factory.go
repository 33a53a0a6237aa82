package usage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Backend names a usage persistence backend.
type Backend string

const (
	// BackendSQLite stores counters in <data_dir>/usage.db (default).
	BackendSQLite Backend = "sqlite"

	// BackendBadger stores counters in the <data_dir>/usage.badger directory.
	BackendBadger Backend = "badger"

	// BackendMemory keeps counters for the lifetime of the process only.
	BackendMemory Backend = "memory"
)

// ValidBackends lists the accepted backend names.
var ValidBackends = []Backend{BackendSQLite, BackendBadger, BackendMemory}

// NewPersister opens the persister for backend under dataDir.
// BackendMemory returns a nil Persister.
func NewPersister(backend Backend, dataDir string) (Persister, error) {
	switch backend {
	case BackendSQLite, "":
		var path string
		if dataDir != "" {
			path = filepath.Join(dataDir, "usage.db")
		}
		return NewSQLiteStore(path)

	case BackendBadger:
		var dir string
		if dataDir != "" {
			dir = filepath.Join(dataDir, "usage.badger")
		}
		return NewBadgerStore(dir)

	case BackendMemory:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown usage backend: %s (valid options: sqlite, badger, memory)", backend)
	}
}

// Open builds a ledger over the named backend and loads its counters.
func Open(ctx context.Context, backend Backend, dataDir string, logger *slog.Logger) (*MemoryLedger, error) {
	p, err := NewPersister(backend, dataDir)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithLogger(logger)}
	if p != nil {
		opts = append(opts, WithPersister(p))
	}
	return NewLedger(ctx, opts...), nil
}
