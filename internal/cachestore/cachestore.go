// Package cachestore persists (ConfigCache, ResultsCache) pairs — the
// inputs spec.md §4.4's Cache Aggregator consumes — so a distributed build
// can write its per-node caches somewhere the aggregator can later read
// them back from. Grounded on the teacher's internal/storage/factory
// registry pattern: RegisterBackend/New select among an in-memory backend
// (internal/storage/memory) and SQL-backed backends opened through
// go-sql-driver/mysql or the teacher's dolthub/driver.
package cachestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/buildcore/engine/internal/cacheagg"
)

// Backend persists and loads cache pairs, each addressed by an opaque id
// (typically a node or build-parent identifier).
type Backend interface {
	SavePair(ctx context.Context, id string, configs cacheagg.ConfigCache, results cacheagg.ResultsCache) error
	LoadPair(ctx context.Context, id string) (cacheagg.ConfigCache, cacheagg.ResultsCache, error)
	// ListPairIDs returns every id with a saved pair, for callers assembling
	// a full aggregation run over "every node's cache".
	ListPairIDs(ctx context.Context) ([]string, error)
	Close() error
}

// BackendFactory opens a Backend given a backend-specific DSN/path.
type BackendFactory func(ctx context.Context, dsn string) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]BackendFactory{}
)

// RegisterBackend registers a backend factory under name (e.g. "memory",
// "mysql", "dolt"). Typically called from an init() in the backend's own
// file, mirroring the teacher's factory.RegisterBackend.
func RegisterBackend(name string, f BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// New opens a Backend of the given registered kind.
func New(ctx context.Context, backend, dsn string) (Backend, error) {
	registryMu.RLock()
	f, ok := registry[backend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cachestore: unknown backend %q", backend)
	}
	return f(ctx, dsn)
}
