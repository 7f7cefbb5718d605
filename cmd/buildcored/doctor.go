package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildcore/engine/internal/cachestore"
)

var doctorCacheRoot string

// check mirrors the teacher's cmd/bd/doctor.DoctorCheck shape: a named
// pass/warn/fail result with an optional fix hint.
type check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", or "error"
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "sanity-check a cache directory layout",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorCacheRoot == "" {
			return fmt.Errorf("doctor: --cache-root is required")
		}

		checks := []check{
			checkCacheRootExists(doctorCacheRoot),
			checkCacheRootLockable(cmd.Context(), doctorCacheRoot),
		}

		failed := false
		for _, c := range checks {
			if jsonOutput {
				fmt.Printf("{\"name\":%q,\"status\":%q,\"message\":%q}\n", c.Name, c.Status, c.Message)
			} else {
				fmt.Printf("[%s] %s: %s\n", c.Status, c.Name, c.Message)
			}
			if c.Status == "error" {
				failed = true
			}
		}
		if failed {
			return fmt.Errorf("doctor: one or more checks failed")
		}
		return nil
	},
}

func checkCacheRootExists(root string) check {
	info, err := os.Stat(root)
	if err != nil {
		return check{Name: "cache-root-exists", Status: "error", Message: err.Error(), Fix: fmt.Sprintf("mkdir -p %s", root)}
	}
	if !info.IsDir() {
		return check{Name: "cache-root-exists", Status: "error", Message: fmt.Sprintf("%s is not a directory", root)}
	}
	return check{Name: "cache-root-exists", Status: "ok", Message: root}
}

func checkCacheRootLockable(ctx context.Context, root string) check {
	lock := cachestore.NewRootLock(root)
	acquireCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := lock.Acquire(acquireCtx); err != nil {
		return check{Name: "cache-root-lockable", Status: "error", Message: err.Error(), Fix: "check for a stuck aggregator holding .buildcore-cache.lock"}
	}
	defer lock.Release()
	return check{Name: "cache-root-lockable", Status: "ok", Message: "lock acquired and released cleanly"}
}

func init() {
	doctorCmd.Flags().StringVar(&doctorCacheRoot, "cache-root", "", "cache directory root to check")
}
