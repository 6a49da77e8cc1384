package cpustore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/roach88/hackrun/internal/config"
	"github.com/roach88/hackrun/internal/engine"
	"github.com/roach88/hackrun/internal/fsys"
	"github.com/roach88/hackrun/internal/ir"
	"github.com/roach88/hackrun/internal/publish"
)

// Status messages.
const (
	StatusResetRAM       = "Reset RAM"
	StatusFailedLoadTest = "Failed to load test"
)

// Result reports a command that can fail on test content.
type Result struct {
	Err *engine.Error
}

// OK reports whether the command succeeded.
func (r Result) OK() bool { return r.Err == nil }

// StepResult reports one step.
type StepResult struct {
	// Outcome is the zero value when there was nothing to step.
	Outcome engine.StepOutcome
	Done    bool
}

// RunResult reports a RunToCompletion call.
type RunResult struct {
	Steps   int
	Done    bool
	Paused  bool
	Outcome engine.StepOutcome

	// Err is a *engine.BudgetExceededError when the step budget ran out.
	Err error
}

// Start runs the store on a new goroutine. The returned function stops the
// store and waits for Run to return.
func (s *Store) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	return func() {
		s.Stop()
		<-done
		cancel()
	}
}

// SetImagePath loads the ROM image at p, titles the store after it and
// compiles the first sibling .tst file, or the default script when there is
// none.
func (s *Store) SetImagePath(ctx context.Context, p string) (Result, error) {
	var res Result
	err := s.do(ctx, "setImagePath", func(ctx context.Context) {
		res = s.setImagePath(ctx, p)
	})
	return res, err
}

func (s *Store) setImagePath(ctx context.Context, p string) Result {
	data, err := s.fs.ReadFile(ctx, p)
	if err != nil {
		return s.report(engine.NewFileNotFound(p, ir.Span{}, err))
	}
	words, err := s.decode(p, data)
	if err == nil {
		err = s.rom.Load(words)
	}
	if err != nil {
		return s.report(engine.NewRuntimeFault(ir.Span{}, fmt.Errorf("load %s: %w", p, err)))
	}
	s.path = p
	s.logger.Info("image loaded", "path", p, "words", len(words))
	s.setTitle(path.Base(fsys.Join("", p)))

	s.tests = s.scanTests(ctx)
	var res Result
	if len(s.tests) > 0 {
		res = s.loadNamedTest(ctx, s.tests[0])
	} else {
		s.tstName = DefaultTestName
		res = s.compile(DefaultTest, "")
	}
	s.update()
	return res
}

func (s *Store) scanTests(ctx context.Context) []string {
	dir := fsys.Dir(s.path)
	entries, err := s.fs.Scandir(ctx, dir)
	if err != nil {
		s.logger.Warn("scan for tests failed", "dir", dir, "error", err)
		return nil
	}
	var tests []string
	for _, e := range entries {
		if !e.IsDir && strings.HasSuffix(e.Name, ".tst") {
			tests = append(tests, e.Name)
		}
	}
	sort.Strings(tests)
	return tests
}

// report publishes an error as status and snapshot.
func (s *Store) report(e *engine.Error) Result {
	s.logger.Warn("command failed", "code", e.Code, "error", e.Message)
	s.setStatus(e.Message)
	s.update()
	return Result{Err: e}
}

// CompileTest compiles text under the current test name with compare as the
// expected output.
func (s *Store) CompileTest(ctx context.Context, text, compare string) (Result, error) {
	var res Result
	err := s.do(ctx, "compileTest", func(context.Context) {
		res = s.compile(text, compare)
	})
	return res, err
}

func (s *Store) compile(text, compare string) Result {
	s.pub.SetTest(&text, &compare)
	err := s.run.Compile(s.tstName, text, compare, fsys.Dir(s.path))
	if err != nil {
		var e *engine.Error
		if !errors.As(err, &e) {
			e = engine.NewParseError(err)
		}
		return s.report(e)
	}
	s.update()
	return Result{}
}

// LoadNamedTest reads name from the image directory and compiles it.
func (s *Store) LoadNamedTest(ctx context.Context, name string) (Result, error) {
	var res Result
	err := s.do(ctx, "loadTest", func(ctx context.Context) {
		res = s.loadNamedTest(ctx, name)
	})
	return res, err
}

func (s *Store) loadNamedTest(ctx context.Context, name string) Result {
	p := fsys.Join(fsys.Dir(s.path), name)
	data, err := s.fs.ReadFile(ctx, p)
	if err != nil {
		e := engine.NewFileNotFound(p, ir.Span{}, err)
		s.logger.Warn("load test failed", "path", p, "error", err)
		s.setStatus(StatusFailedLoadTest)
		return Result{Err: e}
	}
	s.tstName = name
	return s.compile(fsys.DecodeText(data), "")
}

// Step executes one statement of the live test.
//
// With animate off only the final step publishes a snapshot. A completed
// step also publishes testFinished and, when compare text was present, the
// comparison status. A panic inside the step is reported as status and the
// run is treated as finished.
func (s *Store) Step(ctx context.Context) (StepResult, error) {
	var res StepResult
	err := s.do(ctx, "step", func(ctx context.Context) {
		res = s.step(ctx)
	})
	return res, err
}

func (s *Store) step(ctx context.Context) (res StepResult) {
	defer func() {
		if rec := recover(); rec != nil {
			e := &engine.Error{Code: engine.ErrCodeRuntimeFault, Message: fmt.Sprint(rec)}
			s.logger.Error("step panicked", "panic", rec)
			out := s.run.Abort(e)
			s.setStatus(e.Message)
			s.pub.Step(s.snapshot, true)
			s.pub.Finished(nil)
			res = StepResult{Outcome: out, Done: true}
		}
	}()

	out, err := s.run.Step(ctx)
	if err != nil {
		s.logger.Debug("step ignored", "state", s.run.State())
		return StepResult{Done: true}
	}

	done := out.Done()
	if out.Kind == engine.OutcomeFailed {
		s.setStatus(out.Err.Message)
	}
	s.pub.Step(s.snapshot, done)

	switch out.Kind {
	case engine.OutcomeFailed:
		s.pub.Finished(nil)
	case engine.OutcomeCompleted:
		s.pub.Finished(out.Comparison)
		if out.Comparison != nil {
			s.setStatus(out.Comparison.Message())
		}
	}
	return StepResult{Outcome: out, Done: done}
}

// RunToCompletion steps until the run is done, a "!" statement pauses it,
// ctx is cancelled or maxSteps steps have run (DefaultMaxSteps when
// maxSteps <= 0). Each step is a separate command, so other commands may
// interleave.
func (s *Store) RunToCompletion(ctx context.Context, maxSteps int) (RunResult, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return RunResult{}, err
	}
	budget := engine.NewStepBudget(maxSteps)

	var res RunResult
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := budget.Spend(snap.Test.RunID); err != nil {
			res.Err = err
			return res, nil
		}

		step, err := s.Step(ctx)
		if err != nil {
			return res, err
		}
		if step.Outcome.Kind == 0 {
			res.Done = true
			return res, nil
		}
		res.Steps++
		res.Outcome = step.Outcome
		if step.Done {
			res.Done = true
			return res, nil
		}
		if step.Outcome.Paused {
			res.Paused = true
			return res, nil
		}

		if s.delay > 0 && s.animating.Load() {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}
}

// ResetMemory zeroes RAM.
func (s *Store) ResetMemory(ctx context.Context) error {
	return s.do(ctx, "resetRAM", func(context.Context) {
		s.run.ResetMemory()
		s.update()
		s.setStatus(StatusResetRAM)
	})
}

// Reset rewinds the live test and restores the simulation baseline.
func (s *Store) Reset(ctx context.Context) error {
	return s.do(ctx, "reset", func(context.Context) {
		s.run.Reset()
		s.update()
	})
}

// Clear discards the live test, empties the ROM and clears the title.
func (s *Store) Clear(ctx context.Context) error {
	return s.do(ctx, "clear", func(context.Context) {
		s.run.Clear()
		s.tstName = ""
		s.setTitle("")
		s.update()
	})
}

// UpdateConfig merges p into the configuration. An invalid p is rejected
// whole and the configuration is unchanged.
func (s *Store) UpdateConfig(ctx context.Context, p config.Partial) (config.StoreConfig, error) {
	var (
		cfg    config.StoreConfig
		cfgErr error
	)
	err := s.do(ctx, "updateConfig", func(context.Context) {
		if cfgErr = p.Validate(); cfgErr != nil {
			cfg = s.config
			return
		}
		s.config = s.config.Merge(p)
		cfg = s.config
		s.update()
	})
	if err != nil {
		return config.StoreConfig{}, err
	}
	return cfg, cfgErr
}

// SetAnimate enables or disables per-step snapshots.
func (s *Store) SetAnimate(ctx context.Context, on bool) error {
	return s.do(ctx, "setAnimate", func(context.Context) {
		s.pub.SetAnimate(on)
		s.animating.Store(on)
	})
}

// ReplaceROM loads words into the ROM and recompiles the live test against
// it, or the default script when no test is loaded.
func (s *Store) ReplaceROM(ctx context.Context, words []int16) (Result, error) {
	var res Result
	err := s.do(ctx, "replaceROM", func(context.Context) {
		if err := s.rom.Load(words); err != nil {
			res = s.report(engine.NewRuntimeFault(ir.Span{}, err))
			return
		}
		text := s.run.Script()
		if s.run.State() == ir.RunIdle || text == "" {
			s.tstName = DefaultTestName
			res = s.compile(DefaultTest, "")
			return
		}
		res = s.compile(text, s.run.CompareText())
	})
	return res, err
}

// SetTitle sets the display title.
func (s *Store) SetTitle(ctx context.Context, title string) error {
	return s.do(ctx, "setTitle", func(context.Context) {
		s.setTitle(title)
	})
}

func (s *Store) setTitle(title string) {
	s.title = title
	s.pub.SetTitle(title)
}

// Snapshot returns the current state without publishing it. The returned
// snapshot is not stamped (Seq is 0).
func (s *Store) Snapshot(ctx context.Context) (publish.Snapshot, error) {
	var snap publish.Snapshot
	err := s.do(ctx, "snapshot", func(context.Context) {
		snap = s.snapshot()
	})
	return snap, err
}
