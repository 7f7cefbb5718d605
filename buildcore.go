// Package buildcore provides a minimal public API over the engine's
// internal components, for callers embedding the build execution core
// (Lookup, Batching Engine, Build Request Entry state machine, Cache
// Aggregator) rather than driving it through cmd/buildcored.
//
// Most callers wiring up a new node or scheduler should use these
// re-exports rather than importing the internal packages directly.
package buildcore

import (
	"github.com/buildcore/engine/internal/batching"
	"github.com/buildcore/engine/internal/cacheagg"
	"github.com/buildcore/engine/internal/entry"
	"github.com/buildcore/engine/internal/items"
	"github.com/buildcore/engine/internal/lookup"
)

// Data model types (spec.md §3).
type (
	Item          = items.Item
	ItemTable     = items.ItemTable
	Property      = items.Property
	PropertyTable = items.PropertyTable
	Arena         = items.Arena
	Handle        = items.Handle
)

// NewArena constructs a fresh item identity arena.
func NewArena() *Arena { return items.NewArena() }

// NewItemTable constructs an empty ItemTable.
func NewItemTable() *ItemTable { return items.NewItemTable() }

// NewPropertyTable constructs an empty PropertyTable.
func NewPropertyTable() *PropertyTable { return items.NewPropertyTable() }

// Lookup is the scoped item/property view of spec.md §4.1.
type Lookup = lookup.Lookup

// NewLookup constructs a Lookup over the given arena and primary tables.
func NewLookup(arena *Arena, primaryItems *ItemTable, primaryProps *PropertyTable) *Lookup {
	return lookup.New(arena, primaryItems, primaryProps)
}

// Bucket and Partition implement the Batching Engine (spec.md §4.2).
type Bucket = batching.Bucket

// Partition runs the batching algorithm: expressions are parsed for item
// references, items are keyed and folded into buckets, and bucket order
// follows first-contributing-item order.
func Partition(lk *Lookup, expressions []string) ([]*Bucket, error) {
	return batching.Partition(lk, expressions)
}

// Entry request/result data model and state machine (spec.md §3, §4.3).
type (
	BuildRequest              = entry.BuildRequest
	BuildRequestConfiguration = entry.BuildRequestConfiguration
	BuildResult               = entry.BuildResult
	TargetResult              = entry.TargetResult
	ResultCode                = entry.ResultCode
	BuildRequestEntry         = entry.BuildRequestEntry
	EntryState                = entry.State
)

// Result code constants.
const (
	ResultSuccess = entry.ResultSuccess
	ResultFailure = entry.ResultFailure
	ResultSkipped = entry.ResultSkipped
)

// Entry state constants.
const (
	StateReady    = entry.Ready
	StateActive   = entry.Active
	StateWaiting  = entry.Waiting
	StateComplete = entry.Complete
)

// NewEntry constructs a BuildRequestEntry in the Ready state.
func NewEntry(req BuildRequest, cfg BuildRequestConfiguration) *BuildRequestEntry {
	return entry.New(req, cfg)
}

// Cache Aggregator types (spec.md §4.4).
type (
	ConfigCache  = cacheagg.ConfigCache
	ResultsCache = cacheagg.ResultsCache
	Aggregation  = cacheagg.Aggregation
	Aggregator   = cacheagg.Aggregator
)

// NewAggregator constructs an Aggregator. A nil nextID assigns output
// configuration IDs consecutively starting at 1.
func NewAggregator(nextID func() int) *Aggregator {
	return cacheagg.New(nextID)
}
