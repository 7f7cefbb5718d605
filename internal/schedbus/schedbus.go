// Package schedbus implements spec.md §9's message-passing model for
// Yield/Reacquire suspension points, plus an entry-lifecycle event bus with
// an optional distributed transport. Grounded directly on the teacher's
// internal/eventbus.Bus: the same SetJetStream/JetStreamEnabled/
// publishToJetStream split, fire-and-forget and never gating local
// dispatch.
package schedbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// EventType classifies an entry lifecycle transition worth publishing to
// remote observers (spec.md §7's ERROR HANDLING DESIGN and §4.3 states).
type EventType int

const (
	EventReady EventType = iota
	EventActive
	EventWaiting
	EventComplete
	EventCancelled
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "Ready"
	case EventActive:
		return "Active"
	case EventWaiting:
		return "Waiting"
	case EventComplete:
		return "Complete"
	case EventCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// LifecycleEvent is one entry state transition.
type LifecycleEvent struct {
	SubmissionID  int       `json:"submission_id"`
	NodeRequestID int       `json:"node_request_id"`
	Type          EventType `json:"type"`
	At            time.Time `json:"at"`
}

// Bus fans entry lifecycle events out to local subscribers and, when a
// JetStream context is attached, publishes them for remote observers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan LifecycleEvent
	js          nats.JetStreamContext
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{}
}

// SetJetStream attaches a JetStream context. Publishing after this call is
// fire-and-forget and never blocks or gates local dispatch.
func (b *Bus) SetJetStream(js nats.JetStreamContext) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.js = js
}

// JetStreamEnabled reports whether a JetStream context is attached.
func (b *Bus) JetStreamEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.js != nil
}

// Subscribe returns a channel that receives every future Publish call. The
// channel is buffered; a slow subscriber drops events rather than blocking
// Publish.
func (b *Bus) Subscribe() <-chan LifecycleEvent {
	ch := make(chan LifecycleEvent, 32)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish fans ev out to local subscribers and, if configured, publishes it
// to JetStream.
func (b *Bus) Publish(ev LifecycleEvent) {
	b.mu.RLock()
	subs := make([]chan LifecycleEvent, len(b.subscribers))
	copy(subs, b.subscribers)
	js := b.js
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}

	if js != nil {
		b.publishToJetStream(js, ev)
	}
}

// publishToJetStream publishes ev to the buildcore.entry.<EventType> subject
// (e.g. buildcore.entry.Ready).
// Errors are logged but never propagated — JetStream is supplementary to
// local dispatch, not a prerequisite.
func (b *Bus) publishToJetStream(js nats.JetStreamContext, ev LifecycleEvent) {
	subject := fmt.Sprintf("buildcore.entry.%s", ev.Type)
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("schedbus: failed to marshal lifecycle event: %v", err)
		return
	}
	if _, err := js.Publish(subject, data); err != nil {
		log.Printf("schedbus: JetStream publish to %s failed: %v", subject, err)
	}
}

// WorkerSlot implements the Yield/Reacquire cooperative suspension protocol
// of spec.md §9 as message passing over a bounded channel: Yield sends a
// release message, Reacquire blocks on a resume reply. No thread-affinity
// is required beyond "the entry is owned by one worker at a time".
type WorkerSlot struct {
	release chan struct{}
	resume  chan struct{}
}

// NewWorkerSlot constructs a WorkerSlot for one entry's worker.
func NewWorkerSlot() *WorkerSlot {
	return &WorkerSlot{
		release: make(chan struct{}, 1),
		resume:  make(chan struct{}, 1),
	}
}

// Yield asks the scheduler to free this worker slot so another entry may
// run. Advisory: the scheduler is not obligated to honor it immediately.
func (w *WorkerSlot) Yield() {
	select {
	case w.release <- struct{}{}:
	default:
	}
}

// Released is consumed by the scheduler loop to learn a worker has asked to
// yield its slot.
func (w *WorkerSlot) Released() <-chan struct{} {
	return w.release
}

// Reacquire blocks until the scheduler re-admits the task via Admit, or ctx
// is done.
func (w *WorkerSlot) Reacquire(ctx context.Context) error {
	select {
	case <-w.resume:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Admit re-admits a yielded worker, unblocking its Reacquire call. An Admit
// issued before the worker reaches Reacquire is held (at most one) and
// consumed by the next Reacquire.
func (w *WorkerSlot) Admit() {
	select {
	case w.resume <- struct{}{}:
	default:
	}
}
