package cachestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildcore/engine/internal/cacheagg"
	"github.com/buildcore/engine/internal/entry"
)

func TestNewUnknownBackendErrors(t *testing.T) {
	_, err := New(context.Background(), "nonexistent", "")
	require.Error(t, err)
}

func TestMemoryBackendSaveLoadRoundTrip(t *testing.T) {
	b, err := New(context.Background(), "memory", "")
	require.NoError(t, err)
	defer b.Close()

	configs := cacheagg.ConfigCache{1: {ConfigurationID: 1, ProjectPath: "a.proj"}}
	result := entry.BuildResult{ConfigurationID: 1, OverallCode: entry.ResultSuccess}
	result.SetTarget("Build", entry.TargetResult{
		Code:  entry.ResultSuccess,
		Items: []entry.ResultItem{{ItemType: "Output", EvaluatedInclude: "a.out"}},
	})
	results := cacheagg.ResultsCache{1: result}

	require.NoError(t, b.SavePair(context.Background(), "node-1", configs, results))

	gotConfigs, gotResults, err := b.LoadPair(context.Background(), "node-1")
	require.NoError(t, err)
	assert.Equal(t, configs, gotConfigs)
	assert.Equal(t, []string{"Build"}, gotResults[1].TargetNames())
}

func TestMemoryBackendLoadMissingErrors(t *testing.T) {
	b, err := New(context.Background(), "memory", "")
	require.NoError(t, err)
	defer b.Close()

	_, _, err = b.LoadPair(context.Background(), "nope")
	require.Error(t, err)
}

func TestMemoryBackendListPairIDsSorted(t *testing.T) {
	b, err := New(context.Background(), "memory", "")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.SavePair(context.Background(), "b-node", cacheagg.ConfigCache{}, cacheagg.ResultsCache{}))
	require.NoError(t, b.SavePair(context.Background(), "a-node", cacheagg.ConfigCache{}, cacheagg.ResultsCache{}))

	ids, err := b.ListPairIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a-node", "b-node"}, ids)
}

func TestWireResultRoundTripsExceptionMessage(t *testing.T) {
	r := entry.BuildResult{OverallCode: entry.ResultFailure, Exception: assertErr("boom")}
	w := toWireResult(r)
	assert.Equal(t, "boom", w.ExceptionMessage)

	back := fromWireResult(w)
	require.Error(t, back.Exception)
	assert.Equal(t, "boom", back.Exception.Error())
}

func TestWireResultRoundTripsItemMetadata(t *testing.T) {
	r := entry.BuildResult{OverallCode: entry.ResultSuccess}
	r.SetTarget("Build", entry.TargetResult{
		Code: entry.ResultSuccess,
		Items: []entry.ResultItem{
			{
				ItemType:         "Compile",
				EvaluatedInclude: "src/a.cs",
				Metadata: []entry.MetadataEntry{
					{Name: "Link", Value: "a.cs"},
					{Name: "CopyToOutputDirectory", Value: ""},
				},
			},
			{
				ItemType:         "Compile",
				EvaluatedInclude: "src/b.cs",
			},
		},
	})

	w := toWireResult(r)
	back := fromWireResult(w)

	wantItems := r.Targets["Build"].Items
	gotItems := back.Targets["Build"].Items
	require.Len(t, gotItems, len(wantItems))
	for i := range wantItems {
		assert.Equal(t, wantItems[i].IdentityKey(), gotItems[i].IdentityKey())
	}
	assert.Equal(t, "", gotItems[0].Metadata[1].Value, "empty-valued metadata must survive the round trip, not be dropped")
}

func TestRootLockTryAcquireIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first := NewRootLock(dir)
	second := NewRootLock(filepath.Clean(dir))

	locked, err := first.TryAcquire()
	require.NoError(t, err)
	require.True(t, locked)
	defer first.Release()

	lockedAgain, err := second.TryAcquire()
	require.NoError(t, err)
	assert.False(t, lockedAgain, "second lock on the same root should not succeed while the first holds it")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
