package publish

import (
	"sync"

	"github.com/roach88/hackrun/internal/engine"
)

// EventKind names an observer notification.
type EventKind string

const (
	// EventUpdate carries a full snapshot after a store mutation.
	EventUpdate EventKind = "update"
	// EventSetTest carries new script and/or compare text.
	EventSetTest EventKind = "setTest"
	// EventTestStep carries a full snapshot after a step.
	EventTestStep EventKind = "testStep"
	// EventTestFinished carries the comparison result of a completed run.
	EventTestFinished EventKind = "testFinished"
	// EventSetTitle carries the new title.
	EventSetTitle EventKind = "setTitle"
)

// TestDelta is the payload of EventSetTest. Nil fields are unchanged.
type TestDelta struct {
	Script  *string
	Compare *string
}

// Event is one observer notification. Seq orders events from one publisher.
type Event struct {
	Kind EventKind
	Seq  int64

	// Snapshot is set for EventUpdate and EventTestStep.
	Snapshot *Snapshot

	// Test is set for EventSetTest.
	Test *TestDelta

	// Comparison is set for EventTestFinished when compare text was
	// present; nil means no comparison was made.
	Comparison *engine.Comparison

	// Title is set for EventSetTitle.
	Title string
}

// Observer receives notifications. Notify is called from the store's
// command goroutine strictly after the mutation it reports; implementations
// must not call back into the store synchronously.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Notify implements Observer.
func (f ObserverFunc) Notify(e Event) { f(e) }

// Recorder is an Observer that keeps every event. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Observer.
func (r *Recorder) Notify(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the recorded event kinds in order.
func (r *Recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Count returns the number of recorded events of kind.
func (r *Recorder) Count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent event of kind.
func (r *Recorder) Last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
