package cpustore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hackrun/internal/config"
	"github.com/roach88/hackrun/internal/engine"
	"github.com/roach88/hackrun/internal/ir"
	"github.com/roach88/hackrun/internal/publish"
	"github.com/roach88/hackrun/internal/testutil"
)

var tenTicks = strings.Repeat("ticktock;\n", 10)

func TestStore_NewIsIdle(t *testing.T) {
	f := newStore(t, nil)
	snap := f.snapshot(t)

	assert.Equal(t, ir.RunIdle, snap.Test.State)
	assert.Equal(t, 0, snap.Sim.ROM.Used())
	assert.Equal(t, config.Defaults(), snap.Config)
	assert.Empty(t, f.events.Events())
}

// TestStore_SetImagePath_FirstTest tests that loading an image compiles the
// alphabetically first sibling test.
func TestStore_SetImagePath_FirstTest(t *testing.T) {
	files := testutil.AddProject("proj")
	files["proj/Zed.tst"] = "ticktock;"
	f := newStore(t, files)

	res, err := f.store.SetImagePath(context.Background(), "proj/Add.hack")
	require.NoError(t, err)
	require.True(t, res.OK(), "%v", res.Err)

	snap := f.snapshot(t)
	assert.Equal(t, []string{"Add.tst", "Zed.tst"}, snap.Tests)
	assert.Equal(t, "Add.tst", snap.Test.Name)
	assert.Equal(t, testutil.AddTest, snap.Test.Script)
	assert.Equal(t, "Add.hack", snap.Title)
	assert.Equal(t, "proj/Add.hack", snap.Path)
	assert.Equal(t, ir.RunReady, snap.Test.State)
	assert.Equal(t, "run-1", snap.Test.RunID)
	assert.Equal(t, 6, snap.Sim.ROM.Used())

	title, ok := f.events.Last(publish.EventSetTitle)
	require.True(t, ok)
	assert.Equal(t, "Add.hack", title.Title)
	assert.Positive(t, f.events.Count(publish.EventUpdate))
}

func TestStore_SetImagePath_DefaultTest(t *testing.T) {
	f := newStore(t, map[string]string{"proj/Add.hack": testutil.AddHack})

	res, err := f.store.SetImagePath(context.Background(), "proj/Add.hack")
	require.NoError(t, err)
	require.True(t, res.OK())

	snap := f.snapshot(t)
	assert.Equal(t, DefaultTestName, snap.Test.Name)
	assert.Equal(t, DefaultTest, snap.Test.Script)
	assert.Empty(t, snap.Tests)
	assert.Equal(t, ir.RunReady, snap.Test.State)
}

// TestStore_SetImagePath_Missing tests that a missing image reports
// FILE_NOT_FOUND and leaves the machine untouched.
func TestStore_SetImagePath_Missing(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()

	_, err := f.store.CompileTest(ctx, "set A 7;\nset D 9;\nset RAM[3] 5;", "")
	require.NoError(t, err)
	_, err = f.store.RunToCompletion(ctx, 0)
	require.NoError(t, err)
	before := f.snapshot(t)
	require.Equal(t, ir.Registers{A: 7, D: 9}, before.Sim.Registers)

	res, err := f.store.SetImagePath(ctx, "proj/Nope.hack")
	require.NoError(t, err)
	require.False(t, res.OK())
	assert.True(t, engine.IsFileNotFound(res.Err))
	assert.Equal(t, "Cannot find proj/Nope.hack", f.status.last())

	snap := f.snapshot(t)
	assert.Equal(t, ir.Registers{A: 7, D: 9}, snap.Sim.Registers)
	assert.Equal(t, before.Sim.RAM.Digest(), snap.Sim.RAM.Digest())
	assert.Equal(t, 0, snap.Sim.ROM.Used())
	assert.Equal(t, ir.RunCompleted, snap.Test.State)
	assert.Empty(t, snap.Path)
}

// TestStore_SetImagePath_MissingKeepsPath tests that a failed load keeps the
// previous image directory for test lookups.
func TestStore_SetImagePath_MissingKeepsPath(t *testing.T) {
	f := newStore(t, testutil.AddProject("proj"))
	ctx := context.Background()

	res, err := f.store.SetImagePath(ctx, "proj/Add.hack")
	require.NoError(t, err)
	require.True(t, res.OK())

	res, err = f.store.SetImagePath(ctx, "other/Nope.hack")
	require.NoError(t, err)
	require.False(t, res.OK())
	assert.Equal(t, "proj/Add.hack", f.snapshot(t).Path)

	res, err = f.store.LoadNamedTest(ctx, "Add.tst")
	require.NoError(t, err)
	assert.True(t, res.OK(), "%v", res.Err)
	assert.Equal(t, ir.RunReady, f.snapshot(t).Test.State)
}

func TestStore_SetImagePath_BadImage(t *testing.T) {
	f := newStore(t, map[string]string{"bad.hack": "0101\n"})

	res, err := f.store.SetImagePath(context.Background(), "bad.hack")
	require.NoError(t, err)
	assert.True(t, engine.IsRuntimeFault(res.Err))
	assert.Contains(t, f.status.last(), "load bad.hack")
}

// TestStore_Animate tests how many testStep events a ten-step script
// publishes with animation on and off.
func TestStore_Animate(t *testing.T) {
	tests := []struct {
		name    string
		animate bool
		want    int
	}{
		{"animated", true, 10},
		{"batched", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStore(t, nil, WithAnimate(tt.animate))
			ctx := context.Background()

			res, err := f.store.CompileTest(ctx, tenTicks, "")
			require.NoError(t, err)
			require.True(t, res.OK())

			run, err := f.store.RunToCompletion(ctx, 0)
			require.NoError(t, err)
			assert.True(t, run.Done)
			assert.Equal(t, 10, run.Steps)
			assert.Equal(t, engine.OutcomeCompleted, run.Outcome.Kind)

			assert.Equal(t, tt.want, f.events.Count(publish.EventTestStep))
			assert.Equal(t, 1, f.events.Count(publish.EventTestFinished))

			last, ok := f.events.Last(publish.EventTestStep)
			require.True(t, ok)
			assert.Equal(t, ir.RunCompleted, last.Snapshot.Test.State)
			assert.Equal(t, "10", last.Snapshot.Test.Time)
		})
	}
}

func TestStore_SetAnimate(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.SetAnimate(ctx, false))

	_, err := f.store.CompileTest(ctx, tenTicks, "")
	require.NoError(t, err)
	_, err = f.store.RunToCompletion(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, f.events.Count(publish.EventTestStep))
}

func TestStore_ComparisonPasses(t *testing.T) {
	f := newStore(t, testutil.AddProject("proj"))
	ctx := context.Background()

	_, err := f.store.SetImagePath(ctx, "proj/Add.hack")
	require.NoError(t, err)

	run, err := f.store.RunToCompletion(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 8, run.Steps)
	require.NotNil(t, run.Outcome.Comparison)
	assert.True(t, run.Outcome.Comparison.Passed)
	assert.Equal(t, engine.StatusCompareSuccess, f.status.last())

	fin, ok := f.events.Last(publish.EventTestFinished)
	require.True(t, ok)
	require.NotNil(t, fin.Comparison)
	assert.True(t, fin.Comparison.Passed)

	kinds := f.events.Kinds()
	assert.Equal(t, publish.EventTestFinished, kinds[len(kinds)-1])
	assert.Equal(t, publish.EventTestStep, kinds[len(kinds)-2])

	// compare-to published the compare file.
	set, ok := f.events.Last(publish.EventSetTest)
	require.True(t, ok)
	require.NotNil(t, set.Test.Compare)
	assert.Equal(t, testutil.AddCmp, *set.Test.Compare)

	snap := f.snapshot(t)
	assert.Equal(t, "Add.out", snap.Test.OutputFile)
	assert.Equal(t, "|  RAM[0]  |\n|       8  |\n", snap.Test.Output)
	ram0, _ := snap.Sim.RAM.Get(0)
	assert.Equal(t, int16(8), ram0)
}

func TestStore_ComparisonFails(t *testing.T) {
	files := testutil.AddProject("proj")
	files["proj/Add.cmp"] = "|  RAM[0]  |\n|       9  |\n"
	f := newStore(t, files)
	ctx := context.Background()

	_, err := f.store.SetImagePath(ctx, "proj/Add.hack")
	require.NoError(t, err)
	run, err := f.store.RunToCompletion(ctx, 100)
	require.NoError(t, err)

	cmp := run.Outcome.Comparison
	require.NotNil(t, cmp)
	assert.False(t, cmp.Passed)
	assert.Equal(t, 2, cmp.Line)
	assert.True(t, engine.IsComparisonMismatch(cmp.Err()))
	assert.Equal(t, engine.StatusCompareFailure, f.status.last())
}

// TestStore_NoCompareText tests that a run without compare text finishes
// with no comparison and no comparison status.
func TestStore_NoCompareText(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()

	_, err := f.store.CompileTest(ctx, "ticktock;", "")
	require.NoError(t, err)
	run, err := f.store.RunToCompletion(ctx, 0)
	require.NoError(t, err)

	assert.Nil(t, run.Outcome.Comparison)
	fin, ok := f.events.Last(publish.EventTestFinished)
	require.True(t, ok)
	assert.Nil(t, fin.Comparison)
	assert.Empty(t, f.status.all())
}

func TestStore_CompileWithCompareText(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()

	_, err := f.store.CompileTest(ctx, "output-list time%S1.4.1;\noutput;", "|time|\n|0   |")
	require.NoError(t, err)
	run, err := f.store.RunToCompletion(ctx, 0)
	require.NoError(t, err)

	require.NotNil(t, run.Outcome.Comparison)
	assert.True(t, run.Outcome.Comparison.Passed, "output: %q", f.snapshot(t).Test.Output)
}

func TestStore_ParseFailure(t *testing.T) {
	f := newStore(t, nil)

	res, err := f.store.CompileTest(context.Background(), "bogus;", "")
	require.NoError(t, err)
	require.False(t, res.OK())
	assert.True(t, engine.IsParseError(res.Err))
	assert.True(t, strings.HasPrefix(f.status.last(), "Failed to parse test - "), f.status.last())

	snap := f.snapshot(t)
	assert.Equal(t, ir.RunInvalid, snap.Test.State)
	assert.False(t, snap.Test.Valid)

	step, err := f.store.Step(context.Background())
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Zero(t, step.Outcome.Kind)
}

func TestStore_RuntimeFault(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()

	_, err := f.store.CompileTest(ctx, "load Missing.hack;\nticktock;", "")
	require.NoError(t, err)

	step, err := f.store.Step(ctx)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Equal(t, engine.OutcomeFailed, step.Outcome.Kind)
	assert.True(t, engine.IsFileNotFound(step.Outcome.Err))
	assert.Equal(t, "Cannot find Missing.hack", f.status.last())

	fin, ok := f.events.Last(publish.EventTestFinished)
	require.True(t, ok)
	assert.Nil(t, fin.Comparison)
	assert.Equal(t, ir.RunFaulted, f.snapshot(t).Test.State)
}

// TestStore_RecompileDiscardsRun tests that compiling while a run is in
// progress starts a fresh run.
func TestStore_RecompileDiscardsRun(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()

	_, err := f.store.CompileTest(ctx, tenTicks, "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.store.Step(ctx)
		require.NoError(t, err)
	}
	before := f.snapshot(t)
	assert.Equal(t, ir.RunRunning, before.Test.State)
	assert.Equal(t, 3, before.Test.Steps)

	_, err = f.store.CompileTest(ctx, tenTicks, "")
	require.NoError(t, err)

	after := f.snapshot(t)
	assert.Equal(t, ir.RunReady, after.Test.State)
	assert.Equal(t, 0, after.Test.Steps)
	assert.Equal(t, "0", after.Test.Time)
	assert.NotEqual(t, before.Test.RunID, after.Test.RunID)
}

func TestStore_ResetPreservesROM(t *testing.T) {
	f := newStore(t, testutil.AddProject(""))
	ctx := context.Background()

	_, err := f.store.SetImagePath(ctx, "Add.hack")
	require.NoError(t, err)
	_, err = f.store.RunToCompletion(ctx, 100)
	require.NoError(t, err)

	require.NoError(t, f.store.Reset(ctx))
	snap := f.snapshot(t)
	assert.Equal(t, ir.RunReady, snap.Test.State)
	assert.Equal(t, 0, snap.Test.Steps)
	assert.Equal(t, 6, snap.Sim.ROM.Used())
	assert.Equal(t, 0, snap.Sim.RAM.Used())
	assert.Equal(t, ir.Registers{}, snap.Sim.Registers)
}

func TestStore_ResetMemory(t *testing.T) {
	f := newStore(t, testutil.AddProject(""))
	ctx := context.Background()

	_, err := f.store.SetImagePath(ctx, "Add.hack")
	require.NoError(t, err)
	_, err = f.store.RunToCompletion(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, 1, f.snapshot(t).Sim.RAM.Used())

	require.NoError(t, f.store.ResetMemory(ctx))
	assert.Equal(t, StatusResetRAM, f.status.last())
	assert.Equal(t, 0, f.snapshot(t).Sim.RAM.Used())
}

func TestStore_Clear(t *testing.T) {
	f := newStore(t, testutil.AddProject(""))
	ctx := context.Background()

	_, err := f.store.SetImagePath(ctx, "Add.hack")
	require.NoError(t, err)
	require.NoError(t, f.store.Clear(ctx))

	snap := f.snapshot(t)
	assert.Equal(t, ir.RunIdle, snap.Test.State)
	assert.Equal(t, 0, snap.Sim.ROM.Used())
	assert.Empty(t, snap.Title)

	title, ok := f.events.Last(publish.EventSetTitle)
	require.True(t, ok)
	assert.Empty(t, title.Title)
}

func TestStore_LoadNamedTest(t *testing.T) {
	files := testutil.AddProject("proj")
	files["proj/Other.tst"] = "ticktock;\nticktock;"
	f := newStore(t, files)
	ctx := context.Background()

	_, err := f.store.SetImagePath(ctx, "proj/Add.hack")
	require.NoError(t, err)

	res, err := f.store.LoadNamedTest(ctx, "Other.tst")
	require.NoError(t, err)
	require.True(t, res.OK())
	snap := f.snapshot(t)
	assert.Equal(t, "Other.tst", snap.Test.Name)
	assert.Equal(t, "ticktock;\nticktock;", snap.Test.Script)

	res, err = f.store.LoadNamedTest(ctx, "Gone.tst")
	require.NoError(t, err)
	assert.True(t, engine.IsFileNotFound(res.Err))
	assert.Equal(t, StatusFailedLoadTest, f.status.last())
	assert.Equal(t, "Other.tst", f.snapshot(t).Test.Name)
}

func TestStore_Echo(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()

	_, err := f.store.CompileTest(ctx, "echo \"hello\";\nclear-echo;", "")
	require.NoError(t, err)
	_, err = f.store.RunToCompletion(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", ""}, f.status.all())
}

func TestStore_Pause(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()

	_, err := f.store.CompileTest(ctx, "ticktock!\nticktock;", "")
	require.NoError(t, err)

	run, err := f.store.RunToCompletion(ctx, 0)
	require.NoError(t, err)
	assert.True(t, run.Paused)
	assert.False(t, run.Done)
	assert.Equal(t, 1, run.Steps)

	run, err = f.store.RunToCompletion(ctx, 0)
	require.NoError(t, err)
	assert.True(t, run.Done)
	assert.Equal(t, 1, run.Steps)
}

func TestStore_RunToCompletion_Budget(t *testing.T) {
	f := newStore(t, map[string]string{"Add.hack": testutil.AddHack}, WithAnimate(false))
	ctx := context.Background()

	_, err := f.store.SetImagePath(ctx, "Add.hack")
	require.NoError(t, err)

	run, err := f.store.RunToCompletion(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, run.Steps)
	assert.False(t, run.Done)
	require.Error(t, run.Err)
	assert.True(t, engine.IsBudgetExceeded(run.Err))
	assert.Equal(t, ir.RunRunning, f.snapshot(t).Test.State)
	assert.Zero(t, f.events.Count(publish.EventTestStep))
}

func TestStore_RunToCompletion_NothingToRun(t *testing.T) {
	f := newStore(t, nil)
	run, err := f.store.RunToCompletion(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, run.Done)
	assert.Zero(t, run.Steps)
}

func TestStore_RunToCompletion_Cancelled(t *testing.T) {
	f := newStore(t, nil, WithStepDelay(time.Hour))
	_, err := f.store.CompileTest(context.Background(), tenTicks, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	run, err := f.store.RunToCompletion(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, run.Steps)
}

func TestStore_UpdateConfig(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()

	cfg, err := f.store.UpdateConfig(ctx, config.Partial{ScreenScale: config.Int(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ScreenScale)
	assert.Equal(t, 3, f.snapshot(t).Config.ScreenScale)

	up, ok := f.events.Last(publish.EventUpdate)
	require.True(t, ok)
	assert.Equal(t, 3, up.Snapshot.Config.ScreenScale)

	cfg, err = f.store.UpdateConfig(ctx, config.Partial{ScreenScale: config.Int(9)})
	require.Error(t, err)
	assert.True(t, config.IsValidationError(err))
	assert.Equal(t, 3, cfg.ScreenScale)
	assert.Equal(t, 3, f.snapshot(t).Config.ScreenScale)
}

func TestStore_ReplaceROM(t *testing.T) {
	f := newStore(t, nil)
	ctx := context.Background()

	res, err := f.store.ReplaceROM(ctx, []int16{5, -0x13F0})
	require.NoError(t, err)
	require.True(t, res.OK())

	snap := f.snapshot(t)
	assert.Equal(t, 2, snap.Sim.ROM.Used())
	assert.Equal(t, DefaultTestName, snap.Test.Name)
	assert.Equal(t, ir.RunReady, snap.Test.State)

	_, err = f.store.Step(ctx)
	require.NoError(t, err)
	_, err = f.store.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, int16(5), f.snapshot(t).Sim.Registers.D)

	res, err = f.store.ReplaceROM(ctx, make([]int16, 0x8001))
	require.NoError(t, err)
	assert.True(t, engine.IsRuntimeFault(res.Err))
}

func TestStore_SetTitle(t *testing.T) {
	f := newStore(t, nil)
	require.NoError(t, f.store.SetTitle(context.Background(), "Pong"))
	assert.Equal(t, "Pong", f.snapshot(t).Title)
	assert.Equal(t, 1, f.events.Count(publish.EventSetTitle))
}

// TestStore_EventSeq tests that published events carry increasing seq.
func TestStore_EventSeq(t *testing.T) {
	f := newStore(t, testutil.AddProject(""))
	ctx := context.Background()
	_, err := f.store.SetImagePath(ctx, "Add.hack")
	require.NoError(t, err)
	_, err = f.store.RunToCompletion(ctx, 100)
	require.NoError(t, err)

	events := f.events.Events()
	require.NotEmpty(t, events)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Seq)
		if e.Snapshot != nil {
			assert.Equal(t, e.Seq, e.Snapshot.Seq)
		}
	}
}

func TestStore_Stopped(t *testing.T) {
	f := newStore(t, nil)
	f.store.Stop()

	_, err := f.store.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStore_CancelledContext(t *testing.T) {
	f := newStore(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.store.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_RunReturnsOnCancel(t *testing.T) {
	s := New(nil, WithLogger(newStoreLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	_, err := s.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

// TestStore_ConcurrentCommands tests that commands from many goroutines are
// serialized.
func TestStore_ConcurrentCommands(t *testing.T) {
	f := newStore(t, nil, WithAnimate(false))
	ctx := context.Background()
	_, err := f.store.CompileTest(ctx, strings.Repeat("ticktock;\n", 200), "")
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 25; j++ {
				if _, err := f.store.Step(ctx); err != nil {
					return
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	snap := f.snapshot(t)
	assert.Equal(t, 100, snap.Test.Steps)
	assert.Equal(t, "100", snap.Test.Time)
}

// TestStore_StepPanicFaultsRun tests that a panic inside a step ends the run
// as Faulted and still publishes the final events.
func TestStore_StepPanicFaultsRun(t *testing.T) {
	exploding := func(name string, data []byte) ([]int16, error) {
		panic("decoder exploded")
	}
	f := newStore(t, map[string]string{"x.bin": "\x00\x01"},
		WithDecoder(exploding), WithAnimate(false))
	ctx := context.Background()

	_, err := f.store.CompileTest(ctx, "load x.bin;\nset A 1;\nset D 2;", "")
	require.NoError(t, err)
	f.events.Reset()

	step, err := f.store.Step(ctx)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Equal(t, engine.OutcomeFailed, step.Outcome.Kind)
	require.NotNil(t, step.Outcome.Err)
	assert.Equal(t, engine.ErrCodeRuntimeFault, step.Outcome.Err.Code)
	assert.Equal(t, "decoder exploded", f.status.last())

	snap := f.snapshot(t)
	assert.Equal(t, ir.RunFaulted, snap.Test.State)
	assert.Equal(t, 0, snap.Test.Steps)
	assert.Equal(t, "decoder exploded", snap.Test.Error)
	assert.Equal(t, 1, f.events.Count(publish.EventTestStep))
	assert.Equal(t, 1, f.events.Count(publish.EventTestFinished))

	step, err = f.store.Step(ctx)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Zero(t, step.Outcome.Kind)
	assert.Equal(t, ir.Registers{}, f.snapshot(t).Sim.Registers)
}
