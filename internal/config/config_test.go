package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, s.MaxCPUCount, 1)
	assert.Equal(t, "memory", s.StorageBackend)
	assert.Equal(t, NodeReuseThreshold(s.MaxCPUCount), s.NodeReuseThreshold)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker:\n  max_cpu_count: 6\ncache:\n  root: /var/buildcore\n"), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, s.MaxCPUCount)
	assert.Equal(t, "/var/buildcore", s.CacheRoot)
	assert.Equal(t, 3, s.NodeReuseThreshold)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker:\n  max_cpu_count: 6\n"), 0o644))

	t.Setenv("BUILDCORE_WORKER_MAX_CPU_COUNT", "2")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.MaxCPUCount)
}

func TestNodeReuseThresholdFloorsAtOne(t *testing.T) {
	assert.Equal(t, 1, NodeReuseThreshold(1))
	assert.Equal(t, 1, NodeReuseThreshold(0))
	assert.Equal(t, 4, NodeReuseThreshold(8))
}

func TestWatchFileSignalsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker:\n  max_cpu_count: 1\n"), 0o644))

	reload, stop, err := WatchFile(path)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(path, []byte("worker:\n  max_cpu_count: 2\n"), 0o644))

	select {
	case <-reload:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload signal")
	}
}
