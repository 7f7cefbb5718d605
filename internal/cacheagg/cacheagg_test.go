package cacheagg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcore/engine/internal/builderrors"
	"github.com/buildcore/engine/internal/entry"
)

func cfg(path string, targets ...string) entry.BuildRequestConfiguration {
	return entry.BuildRequestConfiguration{ProjectPath: path, ExplicitTargets: targets}
}

func result(submissionID int, targetNames ...string) entry.BuildResult {
	r := entry.BuildResult{SubmissionID: submissionID, OverallCode: entry.ResultSuccess}
	for _, n := range targetNames {
		r.SetTarget(n, entry.TargetResult{Code: entry.ResultSuccess})
	}
	return r
}

func TestAggregateRenumbersConsecutively(t *testing.T) {
	a := New(nil)
	require.NoError(t, a.Add(
		ConfigCache{5: cfg("a.proj"), 9: cfg("b.proj")},
		ResultsCache{5: result(1), 9: result(1)},
	))

	out, err := a.Aggregate()
	require.NoError(t, err)
	assert.Equal(t, 2, out.LastConfigurationID)
	assert.Len(t, out.Configs, 2)
	_, hasOne := out.Configs[1]
	_, hasTwo := out.Configs[2]
	assert.True(t, hasOne)
	assert.True(t, hasTwo)
}

func TestAggregateFirstOneWinsAcrossPairs(t *testing.T) {
	a := New(nil)
	require.NoError(t, a.Add(
		ConfigCache{1: cfg("shared.proj", "Build")},
		ResultsCache{1: result(1, "Build")},
	))
	require.NoError(t, a.Add(
		ConfigCache{1: cfg("shared.proj", "Build")},
		ResultsCache{1: result(2, "Clean")},
	))

	out, err := a.Aggregate()
	require.NoError(t, err)
	require.Len(t, out.Configs, 1)
	require.Len(t, out.Results, 1)

	merged := out.Results[1]
	assert.Len(t, merged.Targets, 2)
	assert.Equal(t, []string{"Build", "Clean"}, merged.TargetNames(), "first-one-wins is only observable via TargetNames order")
}

func TestAggregateResetsSentinelsOnOutput(t *testing.T) {
	a := New(nil)
	require.NoError(t, a.Add(
		ConfigCache{1: cfg("a.proj")},
		ResultsCache{1: entry.BuildResult{
			SubmissionID:          7,
			GlobalRequestID:       8,
			NodeRequestID:         9,
			ParentGlobalRequestID: 10,
			ResultsNodeID:         11,
			OverallCode:           entry.ResultSuccess,
		}},
	))
	out, err := a.Aggregate()
	require.NoError(t, err)
	r := out.Results[1]
	assert.Equal(t, entry.Invalid, r.SubmissionID)
	assert.Equal(t, entry.Invalid, r.GlobalRequestID)
	assert.Equal(t, entry.Invalid, r.NodeRequestID)
	assert.Equal(t, entry.Invalid, r.ParentGlobalRequestID)
	assert.Equal(t, entry.InvalidNode, r.ResultsNodeID)
}

func TestAggregateNotMinimalOrIncomplete(t *testing.T) {
	a := New(nil)
	require.NoError(t, a.Add(ConfigCache{1: cfg("a.proj")}, ResultsCache{}))

	_, err := a.Aggregate()
	require.Error(t, err)
	var berr *builderrors.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, builderrors.KindNotMinimalOrIncomplete, berr.Kind)
}

func TestAggregateInconsistentCaches(t *testing.T) {
	a := New(nil)
	require.NoError(t, a.Add(ConfigCache{1: cfg("a.proj")}, ResultsCache{2: result(1)}))

	_, err := a.Aggregate()
	require.Error(t, err)
	var berr *builderrors.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, builderrors.KindInconsistentCaches, berr.Kind)
}

func TestAggregateCollidingDistinctConfigurations(t *testing.T) {
	a := New(nil)
	require.NoError(t, a.Add(ConfigCache{1: cfg("a.proj")}, ResultsCache{1: result(1)}))
	require.NoError(t, a.Add(ConfigCache{1: cfg("different.proj")}, ResultsCache{1: result(2)}))

	_, err := a.Aggregate()
	require.Error(t, err)
	var berr *builderrors.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, builderrors.KindCollidingDistinctConfigurations, berr.Kind)
}

func TestAddAfterAggregateFails(t *testing.T) {
	a := New(nil)
	_, err := a.Aggregate()
	require.NoError(t, err)

	err = a.Add(ConfigCache{}, ResultsCache{})
	require.Error(t, err)
	var berr *builderrors.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, builderrors.KindAfterAggregation, berr.Kind)
}

func TestAggregateTwiceFails(t *testing.T) {
	a := New(nil)
	_, err := a.Aggregate()
	require.NoError(t, err)

	_, err = a.Aggregate()
	require.Error(t, err)
	var berr *builderrors.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, builderrors.KindAggregatedTwice, berr.Kind)
}
