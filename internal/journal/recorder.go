package journal

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/hackrun/internal/ir"
	"github.com/roach88/hackrun/internal/publish"
)

// Recorder writes store events to a Journal. Register it with
// cpustore.WithObserver and its Status method with cpustore.WithStatus.
//
// Write failures are logged and kept; the first one is returned by Err.
type Recorder struct {
	j      *Journal
	ctx    context.Context
	logger *slog.Logger

	mu     sync.Mutex
	runID  string
	closed bool
	seq    int64
	err    error
}

// NewRecorder creates a recorder writing to j. ctx bounds every write.
func NewRecorder(ctx context.Context, j *Journal, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{j: j, ctx: ctx, logger: logger}
}

// Notify implements publish.Observer.
func (r *Recorder) Notify(e publish.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq = e.Seq
	switch e.Kind {
	case publish.EventUpdate, publish.EventTestStep:
		if e.Snapshot != nil {
			r.track(*e.Snapshot)
		}
	case publish.EventTestFinished:
		if e.Comparison != nil && r.runID != "" {
			r.record(r.j.WriteComparison(r.ctx, r.runID, e.Comparison.Passed, e.Comparison.Line))
		}
	}
}

// Status journals a status message against the current run.
func (r *Recorder) Status(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(r.j.WriteStatus(r.ctx, Status{RunID: r.runID, Seq: r.seq, Message: msg}))
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) track(s publish.Snapshot) {
	id := s.Test.RunID
	if id == "" {
		return
	}
	if id != r.runID {
		r.runID = id
		r.closed = false
		r.record(r.j.WriteRunStarted(r.ctx, Run{
			ID:         id,
			Name:       s.Test.Name,
			Image:      s.Path,
			StartedSeq: s.Seq,
		}))
	}
	if r.closed || (s.Test.State != ir.RunCompleted && s.Test.State != ir.RunFaulted) {
		return
	}

	digest, err := s.Digest()
	if err != nil {
		r.record(err)
		return
	}
	js, err := s.CanonicalJSON()
	if err != nil {
		r.record(err)
		return
	}
	r.closed = true
	r.record(r.j.WriteRunFinished(r.ctx, Run{
		ID:          id,
		FinishedSeq: s.Seq,
		Outcome:     string(s.Test.State),
		Steps:       s.Test.Steps,
		Digest:      digest,
		Snapshot:    string(js),
	}))
}

func (r *Recorder) record(err error) {
	if err == nil {
		return
	}
	r.logger.Warn("journal write failed", "run_id", r.runID, "error", err)
	if r.err == nil {
		r.err = err
	}
}
