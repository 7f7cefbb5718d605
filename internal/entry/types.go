// Package entry implements §4.3: the Build Request Entry state machine and
// the supporting request/result data model of §3. Grounded on the teacher's
// guarded hierarchical-ID and status conventions in internal/deps and
// internal/types (explicit enum states, validated transitions, plain
// structs over interfaces for data that crosses process boundaries).
package entry

import (
	"sort"
	"strings"
)

// Sentinel IDs used across the request/result data model (spec §3).
const (
	// Invalid marks an absent or not-yet-assigned ID.
	Invalid = 0
	// Unassigned marks an ID deliberately left to be resolved later; always
	// negative so it is trivially distinguishable from a real assignment.
	Unassigned = -1
	// InvalidNode marks the absence of a results-node assignment.
	InvalidNode = -1
)

// BuildRequest is one request for a configuration to build a set of
// targets, optionally nested under a parent global request (spec §3).
type BuildRequest struct {
	SubmissionID          int
	NodeRequestID         int
	ConfigurationID       int
	Targets               []string
	ParentGlobalRequestID int // Invalid if this is a root request
	EventContext          int
}

// BuildRequestConfiguration identifies a project/properties/targets
// combination. Two configurations are equal iff all four content fields are
// equal; ConfigurationID is an assignment, not part of identity (spec §3).
type BuildRequestConfiguration struct {
	ConfigurationID  int
	ProjectPath      string
	GlobalProperties map[string]string
	ToolsVersion     string
	ExplicitTargets  []string
}

// SameContent reports whether c and other share identical content fields,
// ignoring ConfigurationID (spec §3 BuildRequestConfiguration equality and
// §4.4 cache-aggregator first-one-wins folding).
func (c BuildRequestConfiguration) SameContent(other BuildRequestConfiguration) bool {
	if c.ProjectPath != other.ProjectPath || c.ToolsVersion != other.ToolsVersion {
		return false
	}
	if len(c.GlobalProperties) != len(other.GlobalProperties) {
		return false
	}
	for k, v := range c.GlobalProperties {
		if ov, ok := other.GlobalProperties[k]; !ok || ov != v {
			return false
		}
	}
	if len(c.ExplicitTargets) != len(other.ExplicitTargets) {
		return false
	}
	for i, t := range c.ExplicitTargets {
		if other.ExplicitTargets[i] != t {
			return false
		}
	}
	return true
}

// ResultCode classifies a TargetResult's outcome (spec §3).
type ResultCode int

const (
	ResultSuccess ResultCode = iota
	ResultFailure
	// ResultSkipped marks a target whose outputs derive from an empty item
	// list; kept distinct from ResultSuccess (spec §9 open question: the
	// source's tests require preserving this distinction for downstream
	// targets, so it is never collapsed into success-with-empty-outputs).
	ResultSkipped
)

func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "Success"
	case ResultFailure:
		return "Failure"
	case ResultSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// MetadataEntry is one ordered (name, value) pair of item metadata; Value
// may be empty (spec §3 Item metadata, §8 round-trip property).
type MetadataEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ResultItem is one output item produced by a target: an ItemType, an
// EvaluatedInclude, and an ordered metadata-name -> metadata-value mapping
// (spec §3's Item definition). Kept independent of internal/items.Item
// deliberately: that type's Handle is process-local arena identity (not
// meaningful once a BuildResult outlives the Arena that produced it, e.g.
// after a cachestore round-trip), so ResultItem is a plain projection
// carrying only the content spec §3/§8 require to compare equal.
type ResultItem struct {
	ItemType         string          `json:"item_type"`
	EvaluatedInclude string          `json:"evaluated_include"`
	Metadata         []MetadataEntry `json:"metadata,omitempty"`
}

// IdentityKey produces the (spec, metadata-multiset) identity spec §8's
// round-trip property compares items by, independent of metadata insertion
// order. Mirrors internal/items.Item.IdentityKey's construction.
func (it ResultItem) IdentityKey() string {
	entries := append([]MetadataEntry(nil), it.Metadata...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	var b strings.Builder
	b.WriteString(it.ItemType)
	b.WriteByte('\x00')
	b.WriteString(it.EvaluatedInclude)
	for _, e := range entries {
		b.WriteByte('\x00')
		b.WriteString(strings.ToLower(e.Name))
		b.WriteByte('=')
		b.WriteString(e.Value)
	}
	return b.String()
}

// TargetResult is one target's outcome within a BuildResult (spec §3).
type TargetResult struct {
	Items          []ResultItem // ordered output items, with their metadata
	Code           ResultCode
	Exception      error
	WorkUnitResult any
}

// BuildResult carries the outcome of one BuildRequest (spec §3).
type BuildResult struct {
	ConfigurationID       int
	GlobalRequestID       int
	NodeRequestID         int
	SubmissionID          int
	ParentGlobalRequestID int
	ResultsNodeID         int
	Targets               map[string]TargetResult
	TargetOrder           []string // target names in first-write order
	OverallCode           ResultCode
	Exception             error
	CircularDependency    bool
	InitialTargets        []string
	DefaultTargets        []string
}

// TargetNames returns the result's target names in first-write order,
// rather than Go's randomized map iteration order. The cache aggregator's
// first-one-wins merge (spec §4.4 rule 3) is only observable through this
// ordering (spec §9 open question).
func (r BuildResult) TargetNames() []string {
	return append([]string(nil), r.TargetOrder...)
}

// SetTarget records tr under name, appending name to TargetOrder the first
// time it is written.
func (r *BuildResult) SetTarget(name string, tr TargetResult) {
	if r.Targets == nil {
		r.Targets = map[string]TargetResult{}
	}
	if _, exists := r.Targets[name]; !exists {
		r.TargetOrder = append(r.TargetOrder, name)
	}
	r.Targets[name] = tr
}

// ResetSentinels resets the identity fields cache aggregation must clear on
// every output result (spec §4.4 rule 6).
func (r *BuildResult) ResetSentinels() {
	r.ParentGlobalRequestID = Invalid
	r.GlobalRequestID = Invalid
	r.NodeRequestID = Invalid
	r.SubmissionID = Invalid
	r.ResultsNodeID = InvalidNode
}
