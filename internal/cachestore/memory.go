package cachestore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/buildcore/engine/internal/cacheagg"
)

func init() {
	RegisterBackend("memory", func(_ context.Context, _ string) (Backend, error) {
		return newMemoryBackend(), nil
	})
}

type pairEntry struct {
	configs cacheagg.ConfigCache
	results cacheagg.ResultsCache
}

// memoryBackend is an in-process Backend, grounded on the teacher's
// internal/storage/memory package (a mutex-guarded map standing in for a
// real store, useful for tests and single-process runs).
type memoryBackend struct {
	mu    sync.RWMutex
	pairs map[string]pairEntry
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{pairs: map[string]pairEntry{}}
}

func (m *memoryBackend) SavePair(_ context.Context, id string, configs cacheagg.ConfigCache, results cacheagg.ResultsCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs[id] = pairEntry{configs: cloneConfigs(configs), results: cloneResults(results)}
	return nil
}

func (m *memoryBackend) LoadPair(_ context.Context, id string) (cacheagg.ConfigCache, cacheagg.ResultsCache, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pairs[id]
	if !ok {
		return nil, nil, fmt.Errorf("cachestore: no pair saved for id %q", id)
	}
	return cloneConfigs(p.configs), cloneResults(p.results), nil
}

func (m *memoryBackend) ListPairIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.pairs))
	for id := range m.pairs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryBackend) Close() error { return nil }

func cloneConfigs(c cacheagg.ConfigCache) cacheagg.ConfigCache {
	out := make(cacheagg.ConfigCache, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func cloneResults(r cacheagg.ResultsCache) cacheagg.ResultsCache {
	out := make(cacheagg.ResultsCache, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
