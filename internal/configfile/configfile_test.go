package configfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsNilNoError(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "buildcore.yaml"))
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	want := Default()
	want.Worker.MaxCPUCount = 4
	want.Cache.Root = "/tmp/buildcore-cache"
	want.Nodes.Endpoints = []string{"node-a:9000", "node-b:9000"}

	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Worker.MaxCPUCount, got.Worker.MaxCPUCount)
	assert.Equal(t, want.Cache.Root, got.Cache.Root)
	assert.Equal(t, want.Nodes.Endpoints, got.Nodes.Endpoints)
}

func TestLoadMalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("worker: [this is not a mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
