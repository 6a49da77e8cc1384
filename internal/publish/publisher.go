package publish

import (
	"log/slog"

	"github.com/roach88/hackrun/internal/engine"
)

// Sequencer stamps events. Implemented by engine.Clock and
// testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
}

// Publisher delivers events to observers in order.
//
// Step snapshots are throttled by the animate flag: while animate is false
// only the final snapshot of a run is delivered. The snapshot function
// passed to Step is only called when a snapshot is actually delivered, so a
// throttled step costs no copying.
//
// Publisher is not safe for concurrent use; the store drives it from its
// command goroutine.
type Publisher struct {
	observers []Observer
	seq       Sequencer
	animate   bool
	logger    *slog.Logger
}

// NewPublisher creates a publisher stamping events from seq. A nil seq uses
// a fresh engine.Clock. Animation starts enabled.
func NewPublisher(seq Sequencer, logger *slog.Logger) *Publisher {
	if seq == nil {
		seq = engine.NewClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{seq: seq, animate: true, logger: logger}
}

// Subscribe adds an observer.
func (p *Publisher) Subscribe(o Observer) {
	p.observers = append(p.observers, o)
}

// SetAnimate enables or disables per-step snapshots.
func (p *Publisher) SetAnimate(on bool) { p.animate = on }

// Animate reports whether per-step snapshots are delivered.
func (p *Publisher) Animate() bool { return p.animate }

func (p *Publisher) emit(e Event) {
	e.Seq = p.seq.Next()
	if e.Snapshot != nil {
		e.Snapshot.Seq = e.Seq
	}
	p.logger.Debug("publish", "kind", e.Kind, "seq", e.Seq)
	for _, o := range p.observers {
		o.Notify(e)
	}
}

// Update publishes a full snapshot.
func (p *Publisher) Update(s Snapshot) {
	p.emit(Event{Kind: EventUpdate, Snapshot: &s})
}

// Step publishes a step snapshot when animating or when done is set, and
// reports whether it did. The animate flag is read once.
func (p *Publisher) Step(snapshot func() Snapshot, done bool) bool {
	if !p.animate && !done {
		return false
	}
	s := snapshot()
	p.emit(Event{Kind: EventTestStep, Snapshot: &s})
	return true
}

// Finished publishes the end of a run.
func (p *Publisher) Finished(cmp *engine.Comparison) {
	if cmp != nil {
		c := *cmp
		cmp = &c
	}
	p.emit(Event{Kind: EventTestFinished, Comparison: cmp})
}

// SetTest publishes new script and/or compare text.
func (p *Publisher) SetTest(script, compare *string) {
	p.emit(Event{Kind: EventSetTest, Test: &TestDelta{Script: script, Compare: compare}})
}

// SetTitle publishes a new title.
func (p *Publisher) SetTitle(title string) {
	p.emit(Event{Kind: EventSetTitle, Title: title})
}
