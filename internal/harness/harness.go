package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/hackrun/internal/cpustore"
	"github.com/roach88/hackrun/internal/engine"
	"github.com/roach88/hackrun/internal/fsys"
	"github.com/roach88/hackrun/internal/journal"
	"github.com/roach88/hackrun/internal/publish"
	"github.com/roach88/hackrun/internal/testutil"
)

// Outcomes beyond the run states.
const (
	OutcomePaused = "paused"
	OutcomeBudget = "budget"
)

// Harness runs one scenario against a fresh store.
type Harness struct {
	store   *cpustore.Store
	journal *journal.Journal
	events  *publish.Recorder
	result  *Result
	logger  *slog.Logger
}

// Run executes a scenario and returns its result.
//
// Each scenario gets its own store, deterministic clock and id generator,
// and an in-memory journal. Errors in the scenario content (missing files,
// parse failures, comparison mismatches) are reported through assertions;
// the returned error is reserved for harness failures.
func Run(ctx context.Context, sc *Scenario) (*Result, error) {
	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory journal: %w", err)
	}
	defer j.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := journal.NewRecorder(ctx, j, logger)
	h := &Harness{
		journal: j,
		events:  &publish.Recorder{},
		result:  NewResult(),
		logger:  logger,
	}
	h.store = cpustore.New(fsys.NewOS(sc.Dir),
		cpustore.WithLogger(logger),
		cpustore.WithClock(testutil.NewDeterministicClock()),
		cpustore.WithIDGenerator(testutil.NewSequentialIDs("run")),
		cpustore.WithObserver(h.events),
		cpustore.WithObserver(rec),
		cpustore.WithStatus(h.result.AddStatus),
		cpustore.WithStatus(rec.Status),
		cpustore.WithAnimate(sc.Animate),
	)
	stop := h.store.Start(ctx)
	defer stop()

	if err := h.prepare(ctx, sc); err != nil {
		return nil, err
	}
	if err := h.execute(ctx, sc); err != nil {
		return nil, err
	}

	snap, err := h.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	result := h.result
	result.Final = snap
	if result.Outcome == "" {
		result.Outcome = string(snap.Test.State)
	}
	result.Trace = traceOf(h.events.Events())

	if err := rec.Err(); err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	runs, err := j.ReadRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	result.Journal = runs

	for _, msg := range EvaluateAssertions(result, sc.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// prepare loads the image and compiles the scenario's script.
func (h *Harness) prepare(ctx context.Context, sc *Scenario) error {
	if sc.Image != "" {
		res, err := h.store.SetImagePath(ctx, sc.Image)
		if err != nil {
			return fmt.Errorf("set image: %w", err)
		}
		h.note(res.Err)
	}
	if sc.Test != "" {
		res, err := h.store.LoadNamedTest(ctx, sc.Test)
		if err != nil {
			return fmt.Errorf("load test: %w", err)
		}
		h.note(res.Err)
	}
	if sc.Script != "" {
		res, err := h.store.CompileTest(ctx, sc.Script, sc.Compare)
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		h.note(res.Err)
	}
	h.logger.Info("scenario prepared", "scenario", sc.Name)
	return nil
}

func (h *Harness) execute(ctx context.Context, sc *Scenario) error {
	if sc.Steps > 0 {
		for i := 0; i < sc.Steps; i++ {
			step, err := h.store.Step(ctx)
			if err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			h.observe(step.Outcome)
			if step.Done {
				break
			}
		}
		return nil
	}

	run, err := h.store.RunToCompletion(ctx, sc.MaxSteps)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	h.observe(run.Outcome)
	switch {
	case run.Err != nil:
		h.result.Outcome = OutcomeBudget
	case run.Paused:
		h.result.Outcome = OutcomePaused
	}
	return nil
}

func (h *Harness) observe(out engine.StepOutcome) {
	h.note(out.Err)
	if out.Comparison != nil {
		cmp := *out.Comparison
		h.result.Comparison = &cmp
	}
}

func (h *Harness) note(err *engine.Error) {
	if err != nil {
		h.result.ErrorCode = err.Code
	}
}
