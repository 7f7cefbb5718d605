// Package cacheagg implements §4.4: merging an ordered sequence of
// (ConfigCache, ResultsCache) pairs into one aggregate with renumbered
// configuration IDs. Grounded on the teacher's internal/storage/factory
// (registry-style accumulation before a single finalizing call) and
// internal/merge (first-writer-wins merge semantics), with identifier
// renumbering modeled on internal/compact's rewrite pass.
package cacheagg

import (
	"sort"

	"github.com/buildcore/engine/internal/builderrors"
	"github.com/buildcore/engine/internal/entry"
)

// ConfigCache maps a configuration ID to its BuildRequestConfiguration.
type ConfigCache map[int]entry.BuildRequestConfiguration

// ResultsCache maps a configuration ID to its BuildResult.
type ResultsCache map[int]entry.BuildResult

// Pair is one (ConfigCache, ResultsCache) input to the aggregator.
type Pair struct {
	Configs ConfigCache
	Results ResultsCache
}

// Aggregation is the aggregator's output (spec §4.4 aggregate()).
type Aggregation struct {
	Configs             ConfigCache
	Results             ResultsCache
	LastConfigurationID int
}

// Aggregator accumulates Pairs via Add and merges them exactly once via
// Aggregate (spec §4.4). It is single-threaded by construction: the
// accumulate-then-finalize shape is enforced, not merely documented.
type Aggregator struct {
	pairs      []Pair
	aggregated bool
	nextID     func() int
}

// New constructs an Aggregator. nextID, if non-nil, supplies caller-chosen
// output configuration IDs in sequence; by default IDs are assigned
// consecutively starting at 1 (spec §4.4 rule 5).
func New(nextID func() int) *Aggregator {
	if nextID == nil {
		id := 0
		nextID = func() int {
			id++
			return id
		}
	}
	return &Aggregator{nextID: nextID}
}

// Add accumulates one input pair. Fails with AfterAggregation once
// Aggregate has been called.
func (a *Aggregator) Add(configs ConfigCache, results ResultsCache) error {
	if a.aggregated {
		return builderrors.New(builderrors.KindAfterAggregation, "add() called after aggregate()")
	}
	a.pairs = append(a.pairs, Pair{Configs: configs, Results: results})
	return nil
}

// Aggregate merges every accumulated pair and may be called exactly once
// (spec §4.4 aggregate()).
func (a *Aggregator) Aggregate() (Aggregation, error) {
	if a.aggregated {
		return Aggregation{}, builderrors.New(builderrors.KindAggregatedTwice, "aggregate() called twice")
	}
	a.aggregated = true

	for _, p := range a.pairs {
		if len(p.Configs) != len(p.Results) {
			return Aggregation{}, builderrors.New(builderrors.KindNotMinimalOrIncomplete, "config cache has %d entries but results cache has %d", len(p.Configs), len(p.Results))
		}
		for cfgID := range p.Results {
			if _, ok := p.Configs[cfgID]; !ok {
				return Aggregation{}, builderrors.New(builderrors.KindInconsistentCaches, "result references configuration %d absent from its paired config cache", cfgID)
			}
		}
	}

	out := Aggregation{Configs: ConfigCache{}, Results: ResultsCache{}}

	// retained tracks, per distinct content, the output ID first assigned
	// to it (first-one-wins, spec §4.4 rule 3).
	type retainedEntry struct {
		outputID int
	}
	retained := map[string]*retainedEntry{}
	// seenInputID tracks, per input configuration ID across all pairs, the
	// content-key that ID first resolved to, so colliding-but-distinct IDs
	// can be detected (rule 4).
	seenInputID := map[int]string{}

	for _, p := range a.pairs {
		// Map iteration order is unspecified; visit input configuration
		// IDs in ascending order so "the first occurrence" is well-defined
		// within a pair, matching the ascending-assignment convention the
		// rest of the spec's ID scheme assumes.
		ids := make([]int, 0, len(p.Configs))
		for id := range p.Configs {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		for _, inputID := range ids {
			cfg := p.Configs[inputID]
			key := contentKey(cfg)
			if prevKey, ok := seenInputID[inputID]; ok && prevKey != key {
				return Aggregation{}, builderrors.New(builderrors.KindCollidingDistinctConfigurations, "configuration id %d refers to different content across inputs", inputID)
			}
			seenInputID[inputID] = key

			if _, exists := retained[key]; !exists {
				outID := a.nextID()
				assigned := cfg
				assigned.ConfigurationID = outID
				retained[key] = &retainedEntry{outputID: outID}
				out.Configs[outID] = assigned
				if out.LastConfigurationID < outID {
					out.LastConfigurationID = outID
				}
			}

			if result, ok := p.Results[inputID]; ok {
				mergeResultInto(&out, retained[key].outputID, result)
			}
		}
	}

	return out, nil
}

// contentKey produces the equality key used for first-one-wins folding:
// path, global properties, tools version, and explicit target list (spec
// §3 BuildRequestConfiguration equality).
func contentKey(c entry.BuildRequestConfiguration) string {
	key := c.ProjectPath + "\x00" + c.ToolsVersion
	for _, t := range c.ExplicitTargets {
		key += "\x00t:" + t
	}
	propNames := make([]string, 0, len(c.GlobalProperties))
	for k := range c.GlobalProperties {
		propNames = append(propNames, k)
	}
	sort.Strings(propNames)
	for _, k := range propNames {
		key += "\x00p:" + k + "=" + c.GlobalProperties[k]
	}
	return key
}

// mergeResultInto folds result into out.Results[outputID], first-writer-wins
// per target name (spec §4.4 rule 3), resetting sentinel identity fields on
// every output result (rule 6).
func mergeResultInto(out *Aggregation, outputID int, result entry.BuildResult) {
	result.ResetSentinels()
	result.ConfigurationID = outputID

	existing, ok := out.Results[outputID]
	if !ok {
		existing = result
		existing.Targets = nil
		existing.TargetOrder = nil
	}
	for _, name := range result.TargetNames() {
		if _, already := existing.Targets[name]; !already {
			existing.SetTarget(name, result.Targets[name])
		}
	}
	out.Results[outputID] = existing
}
