package harness

import (
	"github.com/roach88/hackrun/internal/engine"
	"github.com/roach88/hackrun/internal/ir"
	"github.com/roach88/hackrun/internal/journal"
	"github.com/roach88/hackrun/internal/publish"
)

// TraceEvent is one published store event, reduced to the fields that are
// stable across runs.
type TraceEvent struct {
	Kind  publish.EventKind `json:"kind"`
	Seq   int64             `json:"seq"`
	State ir.RunState       `json:"state,omitempty"`
	Steps int               `json:"steps,omitempty"`
	Time  string            `json:"time,omitempty"`
	Title string            `json:"title,omitempty"`

	// HasScript and HasCompare are set for setTest events.
	HasScript  bool `json:"has_script,omitempty"`
	HasCompare bool `json:"has_compare,omitempty"`

	// Passed is set for testFinished events with a comparison.
	Passed *bool `json:"passed,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`

	Trace  []TraceEvent `json:"trace"`
	Status []string     `json:"status"`

	// Outcome is the final run state, or "paused" / "budget" when the run
	// stopped early.
	Outcome    string             `json:"outcome"`
	Comparison *engine.Comparison `json:"comparison,omitempty"`
	ErrorCode  engine.ErrorCode   `json:"error_code,omitempty"`

	Final   publish.Snapshot `json:"-"`
	Journal []journal.Run    `json:"-"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Status: []string{},
	}
}

// AddError records a failed assertion.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStatus records a status message. It is the store's status sink.
func (r *Result) AddStatus(msg string) {
	r.Status = append(r.Status, msg)
}

// traceOf reduces published events to trace events.
func traceOf(events []publish.Event) []TraceEvent {
	trace := make([]TraceEvent, 0, len(events))
	for _, e := range events {
		te := TraceEvent{Kind: e.Kind, Seq: e.Seq}
		switch e.Kind {
		case publish.EventUpdate, publish.EventTestStep:
			if e.Snapshot != nil {
				te.State = e.Snapshot.Test.State
				te.Steps = e.Snapshot.Test.Steps
				te.Time = e.Snapshot.Test.Time
			}
		case publish.EventSetTitle:
			te.Title = e.Title
		case publish.EventSetTest:
			if e.Test != nil {
				te.HasScript = e.Test.Script != nil
				te.HasCompare = e.Test.Compare != nil
			}
		case publish.EventTestFinished:
			if e.Comparison != nil {
				passed := e.Comparison.Passed
				te.Passed = &passed
			}
		}
		trace = append(trace, te)
	}
	return trace
}
