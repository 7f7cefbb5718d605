package cachestore

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const rootLockFileName = ".buildcore-cache.lock"

// RootLock guards a cache root directory against concurrent aggregator
// runs, grounded on the teacher's cmd/bd JSONLLock (gofrs/flock wrapped
// with a poll-until-timeout Acquire).
type RootLock struct {
	flock *flock.Flock
}

// NewRootLock constructs a RootLock for the cache root at dir.
func NewRootLock(dir string) *RootLock {
	return &RootLock{flock: flock.New(filepath.Join(dir, rootLockFileName))}
}

// TryAcquire attempts a non-blocking exclusive lock.
func (l *RootLock) TryAcquire() (bool, error) {
	locked, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("cachestore: acquiring root lock: %w", err)
	}
	return locked, nil
}

// Acquire polls for the exclusive lock until it is obtained or ctx is done.
func (l *RootLock) Acquire(ctx context.Context) error {
	const pollInterval = 50 * time.Millisecond
	for {
		locked, err := l.TryAcquire()
		if err != nil {
			return err
		}
		if locked {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("cachestore: timed out waiting for root lock: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Release releases the lock. Safe to call multiple times.
func (l *RootLock) Release() error {
	if l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
