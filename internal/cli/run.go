package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/roach88/hackrun/internal/config"
	"github.com/roach88/hackrun/internal/cpustore"
	"github.com/roach88/hackrun/internal/engine"
	"github.com/roach88/hackrun/internal/ir"
	"github.com/roach88/hackrun/internal/publish"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Test     string
	MaxSteps int
	Animate  bool
	Database string

	// IDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// RunSummary is the result of the run command.
type RunSummary struct {
	RunID   string   `json:"run_id"`
	Image   string   `json:"image"`
	Test    string   `json:"test"`
	State   string   `json:"state"`
	Steps   int      `json:"steps"`
	Time    string   `json:"time"`
	A       int16    `json:"a"`
	D       int16    `json:"d"`
	PC      int16    `json:"pc"`
	Output  string   `json:"output,omitempty"`
	Status  []string `json:"status"`
	Passed  *bool    `json:"passed,omitempty"`
	Line    int      `json:"mismatch_line,omitempty"`
	Paused  bool     `json:"paused,omitempty"`
	Budget  bool     `json:"budget_exhausted,omitempty"`
	Digest  string   `json:"digest"`
	Journal string   `json:"journal,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Run an image's test script to completion",
		Long: `Load a Hack image (.hack, .asm or binary), compile its test script and
step it until it completes, faults, pauses or exhausts the step budget.

The first .tst file next to the image is used unless --test names another.
Images without a test run the built-in "repeat { ticktock; }" script.

Exit codes:
  0 - Run completed (or paused) and the output matched
  1 - Runtime fault, comparison mismatch or step budget exhausted
  2 - Command error (image not found, script parse error, etc.)

Examples:
  hackrun run ./projects/05/Add.hack
  hackrun run ./Max.asm --test MaxL.tst --max-steps 5000
  hackrun run ./Add.hack --db ./runs.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImage(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Test, "test", "", "test script next to the image (default: first .tst)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "step budget")
	cmd.Flags().BoolVar(&opts.Animate, "animate", false, "publish every step (default: on when stdout is a terminal)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal runs to this SQLite database")

	return cmd
}

func runImage(opts *RunOptions, image string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	animate := opts.Animate
	if !cmd.Flags().Changed("animate") {
		animate = isTerminal(cmd.OutOrStdout())
	}
	delay := config.StepDelay(cfg.TestSpeed)
	if !animate {
		delay = 0
	}

	// Setup signal handling for graceful shutdown.
	// Use command's context if available (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sc := sessionConfig{
		Config:  cfg,
		Animate: animate,
		Delay:   delay,
		IDs:     opts.IDGenerator,
		// Journal seqs order runs across invocations.
		Clock: engine.NewClockAt(time.Now().UnixMicro()),
	}
	if animate {
		sc.Progress = func(s publish.Snapshot) {
			printProgress(formatter, s)
		}
	}
	if opts.Database != "" {
		rec, closeJournal, err := openRecorder(ctx, opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer closeJournal()
		defer func() {
			if err := rec.Err(); err != nil {
				slog.Warn("journal incomplete", "error", err)
			}
		}()
		sc.Recorder = rec
	}

	sess := startSession(ctx, sc)
	defer sess.Close()

	slog.Info("loading image", "path", image, "test", opts.Test)
	if err := sess.Load(ctx, image, opts.Test); err != nil {
		_ = formatter.Error(engineErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load "+image, err)
	}

	rr, err := sess.store.RunToCompletion(ctx, opts.MaxSteps)
	if err != nil {
		return WrapExitError(ExitFailure, "run interrupted", err)
	}
	snap, err := sess.store.Snapshot(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "run interrupted", err)
	}

	summary, err := summarize(snap, sess, rr)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to digest snapshot", err)
	}
	summary.Image = image
	summary.Journal = opts.Database
	slog.Info("run finished", "run_id", summary.RunID, "state", summary.State, "steps", summary.Steps)

	code, message := runVerdict(summary)
	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: summary, RunID: summary.RunID}
		if code != "" {
			resp.Status = "error"
			resp.Error = &CLIError{Code: code, Message: message}
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	} else {
		printSummary(cmd, summary)
	}

	if code != "" {
		return NewExitError(ExitFailure, message)
	}
	return nil
}

// summarize builds the run summary from the final snapshot.
func summarize(snap publish.Snapshot, sess *session, rr cpustore.RunResult) (RunSummary, error) {
	digest, err := snap.Digest()
	if err != nil {
		return RunSummary{}, err
	}
	regs := snap.Sim.Registers
	s := RunSummary{
		RunID:  snap.Test.RunID,
		Test:   snap.Test.Name,
		State:  string(snap.Test.State),
		Steps:  snap.Test.Steps,
		Time:   snap.Test.Time,
		A:      regs.A,
		D:      regs.D,
		PC:     regs.PC,
		Output: snap.Test.Output,
		Status: sess.Status(),
		Paused: rr.Paused,
		Budget: engine.IsBudgetExceeded(rr.Err),
		Digest: digest,
	}
	if cmp := sess.Comparison(); cmp != nil {
		passed := cmp.Passed
		s.Passed = &passed
		s.Line = cmp.Line
	}
	return s, nil
}

// runVerdict returns the error code and message of a failed run, or empty
// strings when the run succeeded.
func runVerdict(s RunSummary) (string, string) {
	switch {
	case s.State == string(ir.RunFaulted):
		msg := "runtime fault"
		if n := len(s.Status); n > 0 && s.Status[n-1] != "" {
			msg = s.Status[n-1]
		}
		return ErrCodeFault, msg
	case s.Passed != nil && !*s.Passed:
		return ErrCodeMismatch, fmt.Sprintf("comparison failure at line %d", s.Line)
	case s.Budget:
		return ErrCodeBudget, fmt.Sprintf("step budget exhausted after %d steps", s.Steps)
	}
	return "", ""
}

func printSummary(cmd *cobra.Command, s RunSummary) {
	w := cmd.OutOrStdout()
	for _, msg := range s.Status {
		if msg != "" {
			fmt.Fprintf(w, "status: %s\n", msg)
		}
	}
	if s.Output != "" {
		fmt.Fprintln(w, "Output:")
		fmt.Fprint(w, s.Output)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test:   %s\n", s.Test)
	fmt.Fprintf(w, "State:  %s\n", s.State)
	fmt.Fprintf(w, "Steps:  %d (time %s)\n", s.Steps, s.Time)
	fmt.Fprintf(w, "A=%d D=%d PC=%d\n", s.A, s.D, s.PC)
	switch {
	case s.Paused:
		fmt.Fprintln(w, "Paused at breakpoint.")
	case s.Budget:
		fmt.Fprintln(w, "Step budget exhausted.")
	}
	if s.Passed != nil {
		if *s.Passed {
			fmt.Fprintln(w, "✓ Comparison passed")
		} else {
			fmt.Fprintf(w, "✗ Comparison failed at line %d\n", s.Line)
		}
	}
	if s.Journal != "" {
		fmt.Fprintf(w, "Journaled run %s to %s\n", s.RunID, s.Journal)
	}
}

// printProgress writes one line per animated step to the diagnostic writer.
func printProgress(f *OutputFormatter, s publish.Snapshot) {
	next := "end"
	if s.Test.Highlight != nil {
		next = fmt.Sprintf("next line %d", s.Test.Highlight.Line)
	}
	fmt.Fprintf(f.GetErrWriter(), "step %d  %s  time %s  A=%d D=%d PC=%d\n",
		s.Test.Steps, next, s.Test.Time,
		s.Sim.Registers.A, s.Sim.Registers.D, s.Sim.Registers.PC)
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
