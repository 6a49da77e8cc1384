package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/hackrun/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	RunID    string // optional - show one run with its status messages
}

// HistoryRun is one journaled run in history output.
type HistoryRun struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Image    string   `json:"image"`
	Outcome  string   `json:"outcome"`
	Steps    int      `json:"steps"`
	Finished bool     `json:"finished"`
	Passed   *bool    `json:"passed,omitempty"`
	Line     int      `json:"mismatch_line,omitempty"`
	Digest   string   `json:"digest,omitempty"`
	Status   []string `json:"status,omitempty"`
}

// HistoryResult holds the history output.
type HistoryResult struct {
	Runs  []HistoryRun `json:"runs"`
	Total int          `json:"total"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs",
		Long: `List the runs recorded by "hackrun run --db", most recent first.

With --run, shows a single run together with its status messages.

Examples:
  hackrun history --db ./runs.db
  hackrun history --db ./runs.db --limit 5
  hackrun history --db ./runs.db --run 0190c3e5-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show one run with its status messages")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := openExistingJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	var runs []journal.Run
	if opts.RunID != "" {
		r, err := j.ReadRun(ctx, opts.RunID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []journal.Run{r}
	} else {
		runs, err = j.ReadRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
	}

	result := HistoryResult{Runs: make([]HistoryRun, 0, len(runs)), Total: len(runs)}
	for _, r := range runs {
		hr := HistoryRun{
			ID:       r.ID,
			Name:     r.Name,
			Image:    r.Image,
			Outcome:  r.Outcome,
			Steps:    r.Steps,
			Finished: r.Finished(),
			Passed:   r.Passed,
			Line:     r.MismatchLine,
			Digest:   r.Digest,
		}
		if opts.RunID != "" {
			status, err := j.ReadStatus(ctx, r.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read status messages", err)
			}
			hr.Status = make([]string, len(status))
			for i, s := range status {
				hr.Status[i] = s.Message
			}
		}
		result.Runs = append(result.Runs, hr)
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}
	outputHistoryText(cmd, result)
	return nil
}

// openExistingJournal opens a journal that must already exist.
func openExistingJournal(path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return j, nil
}

func outputHistoryText(cmd *cobra.Command, result HistoryResult) {
	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No runs journaled.")
		return
	}

	for _, r := range result.Runs {
		outcome := r.Outcome
		if !r.Finished {
			outcome = "unfinished"
		}
		verdict := ""
		if r.Passed != nil {
			if *r.Passed {
				verdict = "  ✓ passed"
			} else {
				verdict = fmt.Sprintf("  ✗ failed at line %d", r.Line)
			}
		}
		fmt.Fprintf(w, "%s  %-12s %-10s %6d steps  %s%s\n", r.ID, r.Name, outcome, r.Steps, r.Image, verdict)
		for _, s := range r.Status {
			if s != "" {
				fmt.Fprintf(w, "    status: %s\n", s)
			}
		}
	}
	fmt.Fprintf(w, "\n%d run(s)\n", result.Total)
}
