package buildcore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcore/engine"
)

func TestEntryLifecycleThroughPublicAPI(t *testing.T) {
	e := buildcore.NewEntry(
		buildcore.BuildRequest{SubmissionID: 1, NodeRequestID: 1, ConfigurationID: 1, Targets: []string{"Build"}},
		buildcore.BuildRequestConfiguration{ConfigurationID: 1, ProjectPath: "a.proj"},
	)
	assert.Equal(t, buildcore.StateReady, e.State())

	_, err := e.Continue()
	require.NoError(t, err)
	assert.Equal(t, buildcore.StateActive, e.State())
}

func TestPartitionThroughPublicAPI(t *testing.T) {
	arena := buildcore.NewArena()
	primaryItems := buildcore.NewItemTable()
	primaryProps := buildcore.NewPropertyTable()

	a := arena.NewItem("File", "a.foo", "test.proj", nil, nil)
	primaryItems.Append("File", a)

	lk := buildcore.NewLookup(arena, primaryItems, primaryProps)

	buckets, err := buildcore.Partition(lk, []string{"@(File)"})
	require.NoError(t, err)
	assert.Len(t, buckets, 1)
}

func TestAggregatorThroughPublicAPI(t *testing.T) {
	agg := buildcore.NewAggregator(nil)
	require.NoError(t, agg.Add(
		buildcore.ConfigCache{1: {ConfigurationID: 1, ProjectPath: "a.proj"}},
		buildcore.ResultsCache{1: {ConfigurationID: 1, OverallCode: buildcore.ResultSuccess}},
	))

	out, err := agg.Aggregate()
	require.NoError(t, err)
	assert.Len(t, out.Configs, 1)
}
