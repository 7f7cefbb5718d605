// Package config layers runtime settings the way the teacher's cmd/bd
// config/doctor helpers do: a scoped viper.New() instance reads
// buildcore.yaml, then defers to environment variables via AutomaticEnv,
// on top of compiled-in defaults (spec.md §5, §6).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/buildcore/engine/internal/configfile"
)

// EnvPrefix is the prefix AutomaticEnv binds keys under, e.g.
// BUILDCORE_WORKER_MAX_CPU_COUNT.
const EnvPrefix = "BUILDCORE"

// Settings is the fully merged, ready-to-use runtime configuration.
type Settings struct {
	MaxCPUCount        int
	NodeReuseThreshold int
	CacheRoot          string
	PropagateDotnetRoot bool
	NodeEndpoints      []string
	StorageBackend     string
	StorageDSN         string
}

// Load merges defaults < buildcore.yaml at path (if present) < environment
// variables into a Settings value. An empty path skips the file layer.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := configfile.Default()
	v.SetDefault("worker.max_cpu_count", runtime.NumCPU())
	v.SetDefault("cache.root", "")
	v.SetDefault("dotnet.propagate_root", false)
	v.SetDefault("nodes.endpoints", []string{})
	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.dsn", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
		}
	}

	s := &Settings{
		MaxCPUCount:         v.GetInt("worker.max_cpu_count"),
		CacheRoot:           v.GetString("cache.root"),
		PropagateDotnetRoot: v.GetBool("dotnet.propagate_root"),
		NodeEndpoints:       v.GetStringSlice("nodes.endpoints"),
		StorageBackend:      v.GetString("storage.backend"),
		StorageDSN:          v.GetString("storage.dsn"),
	}
	if s.MaxCPUCount < 1 {
		s.MaxCPUCount = 1
	}
	s.NodeReuseThreshold = NodeReuseThreshold(s.MaxCPUCount)
	return s, nil
}

// NodeReuseThreshold implements spec.md §5's worker pool sizing rule:
// max(1, cores/2).
func NodeReuseThreshold(cores int) int {
	t := cores / 2
	if t < 1 {
		return 1
	}
	return t
}

// WatchFile watches path for write events and sends a reload signal on the
// returned channel, debounced the same way the teacher's watchIssues loop
// debounces rapid file-system events. The stop func releases the watcher;
// callers should defer it.
func WatchFile(path string) (<-chan struct{}, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("config: creating watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("config: watching %s: %w", path, err)
	}

	reload := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		const debounceDelay = 200 * time.Millisecond
		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounceDelay, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// reload is intentionally never closed: a debounce timer may still be
	// pending when stop is called, and sending on a closed channel panics.
	// Callers select on reload alongside their own shutdown signal instead
	// of relying on channel closure.
	stop := func() {
		close(done)
		watcher.Close()
	}
	return reload, stop, nil
}
