package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/roach88/hackrun/internal/cpu"
	"github.com/roach88/hackrun/internal/ir"
	"github.com/roach88/hackrun/internal/tst"
)

// OutcomeKind classifies the result of one step.
type OutcomeKind int

const (
	// OutcomeContinued means a statement executed and more remain.
	OutcomeContinued OutcomeKind = iota + 1
	// OutcomeCompleted means the script is exhausted.
	OutcomeCompleted
	// OutcomeFailed means the statement failed and the run is faulted.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContinued:
		return "continued"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// StepOutcome is the result of TestRun.Step.
type StepOutcome struct {
	Kind OutcomeKind

	// Span is the statement that executed. Zero when none did.
	Span ir.Span

	// Paused is set when the statement ended with "!".
	Paused bool

	// Err describes a failed step.
	Err *Error

	// Comparison is set on completion when compare text was supplied.
	Comparison *Comparison
}

// Done reports whether the run can take no further steps.
func (o StepOutcome) Done() bool {
	return o.Kind == OutcomeCompleted || o.Kind == OutcomeFailed
}

// RunOption configures a TestRun.
type RunOption func(*TestRun)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) RunOption {
	return func(r *TestRun) {
		r.logger = l
	}
}

// WithIDGenerator sets the run id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) RunOption {
	return func(r *TestRun) {
		r.ids = g
	}
}

// TestRun executes a compiled script against a simulation.
//
// State machine:
//
//	Idle --compile ok--> Ready --step--> Running --step--> Completed
//	  |                    ^                |   \
//	  +--compile err--> Invalid      reset--+    +--fault--> Faulted
//
// Compile may be called from any state and replaces the run wholesale.
// Reset returns every non-Idle, non-Invalid state to Ready. Clear returns to
// Idle and empties the ROM.
//
// TestRun is not safe for concurrent use; the store owns it from a single
// goroutine.
type TestRun struct {
	io     IO
	ids    IDGenerator
	logger *slog.Logger

	rom  *cpu.Memory
	sim  *Simulation
	exec *StepExecutor

	id      string
	name    string
	text    string
	compare string
	script  *tst.Script
	cur     *cursor
	next    *tst.Statement
	state   ir.RunState
	valid   bool
	steps   int
	lastErr *Error
	st      StepState
}

// NewTestRun creates an Idle run whose simulation executes from rom. rom is
// shared: the caller may load new images into it.
func NewTestRun(rom *cpu.Memory, io IO, opts ...RunOption) *TestRun {
	if rom == nil {
		rom = cpu.NewROM()
	}
	r := &TestRun{
		io:     io,
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
		rom:    rom,
		state:  ir.RunIdle,
		valid:  true,
		cur:    newCursor(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sim = NewSimulation(rom)
	r.exec = NewStepExecutor(io, "")
	r.st.Sim = r.sim
	return r
}

// Compile parses text and, on success, replaces the run: a fresh simulation
// bound to the current ROM, an empty log and the cursor on the first
// statement. compare is the expected output ("" for none); dir is the
// directory relative file names resolve against.
//
// On parse failure the run becomes Invalid, keeps its log, and the returned
// error is a PARSE_ERROR *Error.
func (r *TestRun) Compile(name, text, compare, dir string) error {
	r.text = text
	script, err := tst.Parse(text)
	if err != nil {
		perr := NewParseError(err)
		r.state = ir.RunInvalid
		r.valid = false
		r.lastErr = perr
		r.next = nil
		r.logger.Debug("compile failed", "name", name, "error", err)
		return perr
	}

	r.id = r.ids.Generate()
	r.name = name
	r.compare = compare
	r.script = script
	r.valid = true
	r.exec = NewStepExecutor(r.io, dir)
	r.sim = NewSimulation(r.rom)
	r.restart()

	r.logger.Debug("test compiled",
		"run_id", r.id,
		"name", name,
		"statements", len(script.Statements),
	)
	return nil
}

// restart rewinds the cursor and clears per-run output.
func (r *TestRun) restart() {
	r.st = StepState{Sim: r.sim, Compare: r.compare}
	r.steps = 0
	r.lastErr = nil
	r.cur = newCursor(r.script)
	r.state = ir.RunReady
	r.next, _ = r.cur.peek(r.sim)
}

// Step executes the next statement. It returns ErrNotSteppable unless the
// run is Ready or Running.
func (r *TestRun) Step(ctx context.Context) (StepOutcome, error) {
	if !r.state.Steppable() {
		return StepOutcome{}, ErrNotSteppable
	}

	st, err := r.cur.peek(r.sim)
	if err != nil {
		return r.fail(NewRuntimeFault(ir.Span{}, err)), nil
	}
	if st == nil {
		return r.complete(ir.Span{}, false), nil
	}

	r.state = ir.RunRunning
	if err := r.exec.Execute(ctx, &r.st, st); err != nil {
		var e *Error
		if !errors.As(err, &e) {
			e = NewRuntimeFault(st.Span, err)
		}
		return r.fail(e), nil
	}
	r.steps++

	r.cur.advance()
	next, err := r.cur.peek(r.sim)
	if err != nil {
		return r.fail(NewRuntimeFault(st.Span, err)), nil
	}
	r.next = next
	if next == nil {
		return r.complete(st.Span, st.Pause), nil
	}

	r.logger.Debug("step",
		"run_id", r.id,
		"step", r.steps,
		"line", st.Span.Line,
	)
	return StepOutcome{Kind: OutcomeContinued, Span: st.Span, Paused: st.Pause}, nil
}

func (r *TestRun) fail(err *Error) StepOutcome {
	r.state = ir.RunFaulted
	r.lastErr = err
	r.next = nil
	r.logger.Warn("step failed",
		"run_id", r.id,
		"step", r.steps,
		"code", err.Code,
		"error", err.Message,
	)
	return StepOutcome{Kind: OutcomeFailed, Span: err.Span, Err: err}
}

func (r *TestRun) complete(span ir.Span, paused bool) StepOutcome {
	r.state = ir.RunCompleted
	r.next = nil
	out := StepOutcome{Kind: OutcomeCompleted, Span: span, Paused: paused}
	if strings.TrimSpace(r.st.Compare) != "" {
		cmp := Compare(r.st.Compare, r.Output())
		out.Comparison = &cmp
	}
	r.logger.Info("test completed",
		"run_id", r.id,
		"name", r.name,
		"steps", r.steps,
	)
	return out
}

// Reset restores the simulation to its post-compile baseline and rewinds
// the script under a new run id. The ROM is preserved. An Invalid run rewinds the last script
// that compiled and stays marked invalid; with no such script, and for Idle
// runs, only the simulation is reset.
func (r *TestRun) Reset() {
	r.sim.Reset()
	if r.state == ir.RunIdle || r.script == nil {
		return
	}
	r.id = r.ids.Generate()
	r.restart()
}

// Abort ends the run as Faulted with err, as a failing step would. It is
// used when a step could not finish normally.
func (r *TestRun) Abort(err *Error) StepOutcome {
	return r.fail(err)
}

// Clear discards the script and empties the ROM, returning to Idle.
func (r *TestRun) Clear() {
	r.rom.Clear()
	r.sim = NewSimulation(r.rom)
	r.id, r.name, r.text, r.compare = "", "", "", ""
	r.script = nil
	r.cur = newCursor(nil)
	r.next = nil
	r.state = ir.RunIdle
	r.valid = true
	r.steps = 0
	r.lastErr = nil
	r.st = StepState{Sim: r.sim}
}

// ResetMemory zeroes RAM. Registers, ROM and the script are untouched.
func (r *TestRun) ResetMemory() {
	r.sim.CPU.RAM.Clear()
}

// ID returns the run id; empty before the first successful compile.
func (r *TestRun) ID() string { return r.id }

// Name returns the name the script was compiled under.
func (r *TestRun) Name() string { return r.name }

// State returns the lifecycle state.
func (r *TestRun) State() ir.RunState { return r.state }

// Valid reports whether the last compile succeeded.
func (r *TestRun) Valid() bool { return r.valid }

// Steps returns the number of statements executed since compile or reset.
func (r *TestRun) Steps() int { return r.steps }

// Script returns the text of the last compiled script.
func (r *TestRun) Script() string { return r.text }

// CompareText returns the current expected output.
func (r *TestRun) CompareText() string { return r.st.Compare }

// LastError returns the error that made the run Invalid or Faulted.
func (r *TestRun) LastError() *Error { return r.lastErr }

// ROM returns the shared ROM.
func (r *TestRun) ROM() *cpu.Memory { return r.rom }

// Log returns a copy of the output log.
func (r *TestRun) Log() []string {
	return append([]string(nil), r.st.Log...)
}

// Output renders the output log as text, one line per entry.
func (r *TestRun) Output() string {
	if len(r.st.Log) == 0 {
		return ""
	}
	return strings.Join(r.st.Log, "\n") + "\n"
}

// Highlight returns the span of the statement the next step will execute.
func (r *TestRun) Highlight() (ir.Span, bool) {
	if r.next == nil {
		return ir.Span{}, false
	}
	return r.next.Span, true
}

// RunView is a point-in-time copy of a run and its simulation.
type RunView struct {
	ID         string
	Name       string
	State      ir.RunState
	Valid      bool
	Steps      int
	Registers  ir.Registers
	RAM        ir.MemoryView
	ROM        ir.MemoryView
	Screen     ir.MemoryView
	Keyboard   int16
	Time       string
	Highlight  *ir.Span
	Script     string
	Compare    string
	Log        []string
	OutputFile string
	Error      string
}

// View copies the current state. Nothing in the result aliases the run.
func (r *TestRun) View() RunView {
	v := RunView{
		ID:         r.id,
		Name:       r.name,
		State:      r.state,
		Valid:      r.valid,
		Steps:      r.steps,
		Registers:  r.sim.CPU.Registers(),
		RAM:        r.sim.CPU.RAM.ViewAll(),
		ROM:        r.rom.ViewAll(),
		Screen:     r.sim.CPU.Screen(),
		Keyboard:   r.sim.CPU.Keyboard(),
		Time:       r.sim.TimeString(),
		Script:     r.text,
		Compare:    r.st.Compare,
		Log:        r.Log(),
		OutputFile: r.st.OutputFile,
	}
	if span, ok := r.Highlight(); ok {
		v.Highlight = &span
	}
	if r.lastErr != nil {
		v.Error = r.lastErr.Message
	}
	return v
}
