// Package nodepool implements spec.md §5's node over-provisioning control:
// a count-system-active-nodes primitive the core consumes but never governs
// directly, plus the worker-pool sizing rule (max CPU count configured
// externally, node-reuse threshold max(1, cores/2)). Host introspection is
// done with github.com/shirou/gopsutil/v4, grounded on the teacher's
// dolt-server retry loop (internal/storage/dolt/store.go's
// newServerRetryBackoff) for the wait-for-a-slot backoff.
package nodepool

import (
	"context"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessNameMatcher reports whether a process name counts as an active
// build node worker.
type ProcessNameMatcher func(name string) bool

// Pool tracks how many build-node worker processes are currently active on
// this host and enforces a retained-child ceiling after a build completes
// (spec.md §5 node-reuse threshold).
type Pool struct {
	matches ProcessNameMatcher
	// retained counts children a parent build is holding open for reuse,
	// keyed by parent submission ID.
	retained map[int]int
	// reuseThreshold is max(1, cores/2) (spec.md §5).
	reuseThreshold int
}

// New constructs a Pool. reuseThreshold should come from config.NodeReuseThreshold.
func New(reuseThreshold int, matches ProcessNameMatcher) *Pool {
	if reuseThreshold < 1 {
		reuseThreshold = 1
	}
	if matches == nil {
		matches = func(name string) bool { return strings.Contains(name, "buildcored") }
	}
	return &Pool{matches: matches, retained: map[int]int{}, reuseThreshold: reuseThreshold}
}

// ActiveNodeCount is the count-system-active-nodes primitive: the number of
// currently running OS processes the pool considers build node workers.
func (p *Pool) ActiveNodeCount(ctx context.Context) (int, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if p.matches(name) {
			count++
		}
	}
	return count, nil
}

// RetainChild records that parentSubmissionID is keeping one more child
// worker open for reuse, up to the node-reuse threshold. Reports whether the
// child was retained (false means the ceiling was already reached and the
// caller should release the child instead).
func (p *Pool) RetainChild(parentSubmissionID int) bool {
	if p.retained[parentSubmissionID] >= p.reuseThreshold {
		return false
	}
	p.retained[parentSubmissionID]++
	return true
}

// ReleaseChildren clears parentSubmissionID's retained-child count once the
// parent build itself completes and no longer needs its children on standby.
func (p *Pool) ReleaseChildren(parentSubmissionID int) {
	delete(p.retained, parentSubmissionID)
}

// WaitForSlot blocks, retrying with exponential backoff, until
// ActiveNodeCount drops below maxNodes or ctx is done.
func (p *Pool) WaitForSlot(ctx context.Context, maxNodes int) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // bounded only by ctx

	return backoff.Retry(func() error {
		n, err := p.ActiveNodeCount(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if n < maxNodes {
			return nil
		}
		return errSlotBusy
	}, backoff.WithContext(bo, ctx))
}

var errSlotBusy = slotBusyError{}

type slotBusyError struct{}

func (slotBusyError) Error() string { return "nodepool: no free node slot" }
