package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/roach88/hackrun/internal/fsys"
	"github.com/roach88/hackrun/internal/tst"
)

// IO is the capability set a step may use. The store implements it over
// its file system, image decoders and status sink.
type IO interface {
	// ReadFile returns the contents of a file named by a load or
	// compare-to command, already resolved against the script directory.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// DecodeImage converts a ROM image file into words.
	DecodeImage(name string, data []byte) ([]int16, error)

	// Echo reports an echo message. clear-echo sends "".
	Echo(text string)

	// CompareTo reports compare text loaded by compare-to.
	CompareTo(text string)
}

// StepState is the per-run state a step may touch besides the simulation.
type StepState struct {
	Sim        *Simulation
	Outputs    []tst.OutputSpec
	Log        []string
	OutputFile string
	Compare    string
}

// StepExecutor executes one simple statement at a time.
type StepExecutor struct {
	io  IO
	dir string
}

// NewStepExecutor creates an executor resolving relative file names
// against dir.
func NewStepExecutor(io IO, dir string) *StepExecutor {
	return &StepExecutor{io: io, dir: dir}
}

// Dir returns the directory file names resolve against.
func (x *StepExecutor) Dir() string { return x.dir }

// Resolve joins a script file name with the executor directory. Absolute
// names are returned unchanged.
func (x *StepExecutor) Resolve(name string) string {
	if path.IsAbs(name) || filepath.IsAbs(name) {
		return name
	}
	return fsys.Join(x.dir, name)
}

// Execute runs every command of st in order. The first failing command
// stops the statement and is returned as an *Error.
func (x *StepExecutor) Execute(ctx context.Context, state *StepState, st *tst.Statement) error {
	if st.Kind != tst.StatementSimple {
		return NewRuntimeFault(st.Span, fmt.Errorf("statement at line %d is a block", st.Span.Line))
	}
	for i := range st.Commands {
		if err := x.command(ctx, state, &st.Commands[i]); err != nil {
			var e *Error
			if !errors.As(err, &e) {
				e = NewRuntimeFault(st.Commands[i].Span, err)
			}
			return e
		}
	}
	return nil
}

func (x *StepExecutor) command(ctx context.Context, state *StepState, cmd *tst.Command) error {
	sim := state.Sim
	switch cmd.Kind {
	case tst.CmdLoad:
		return x.load(ctx, sim, cmd)

	case tst.CmdOutputFile:
		state.OutputFile = cmd.File

	case tst.CmdCompareTo:
		p := x.Resolve(cmd.File)
		data, err := x.io.ReadFile(ctx, p)
		if err != nil {
			return NewFileNotFound(p, cmd.Span, err)
		}
		state.Compare = fsys.DecodeText(data)
		x.io.CompareTo(state.Compare)

	case tst.CmdOutputList:
		state.Outputs = append([]tst.OutputSpec(nil), cmd.Outputs...)
		state.Log = append(state.Log, outputHeader(state.Outputs))

	case tst.CmdOutput:
		if len(state.Outputs) == 0 {
			return fmt.Errorf("output before output-list")
		}
		row, err := outputRow(state.Outputs, sim)
		if err != nil {
			return err
		}
		state.Log = append(state.Log, row)

	case tst.CmdEcho:
		x.io.Echo(cmd.Text)

	case tst.CmdClearEcho:
		x.io.Echo("")

	case tst.CmdSet:
		return sim.Set(cmd.Target, cmd.Value)

	case tst.CmdTick:
		return sim.Tick()

	case tst.CmdTock:
		sim.Tock()

	case tst.CmdTickTock:
		if err := sim.Tick(); err != nil {
			return err
		}
		sim.Tock()

	default:
		return fmt.Errorf("unknown command %q", cmd.Kind)
	}
	return nil
}

// load replaces the ROM image. The file is read and decoded before the ROM
// is touched, so a failed load leaves the simulation unchanged.
func (x *StepExecutor) load(ctx context.Context, sim *Simulation, cmd *tst.Command) error {
	if cmd.File == "" {
		return nil
	}
	p := x.Resolve(cmd.File)
	data, err := x.io.ReadFile(ctx, p)
	if err != nil {
		return NewFileNotFound(p, cmd.Span, err)
	}
	words, err := x.io.DecodeImage(p, data)
	if err != nil {
		return NewRuntimeFault(cmd.Span, fmt.Errorf("load %s: %w", p, err))
	}
	if err := sim.CPU.ROM.Load(words); err != nil {
		return NewRuntimeFault(cmd.Span, fmt.Errorf("load %s: %w", p, err))
	}
	return nil
}
