package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/roach88/hackrun/internal/config"
	"github.com/roach88/hackrun/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Name          string `json:"name"`
	Image         string `json:"image"`
	Outcome       string `json:"outcome"`
	Steps         int    `json:"steps"`
	Expected      string `json:"expected_digest"`
	Actual        string `json:"actual_digest,omitempty"`
	Deterministic bool   `json:"deterministic"`
	Diff          string `json:"diff,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// replayIDs hands every compiled run the journaled run id, so that replayed
// snapshots hash like the originals.
type replayIDs string

func (id replayIDs) Generate() string { return string(id) }

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run journaled runs and verify their digests",
		Long: `Re-execute every finished run in the journal and compare the digest of
the final snapshot with the journaled one.

Each run is replayed with its journaled id, image, test script and
configuration, so any difference means the image, script, compare file or
engine behaviour changed since the run was recorded.

Exit codes:
  0 - All runs reproduced their digests
  1 - One or more runs drifted
  2 - Command error (database not found, etc.)

Examples:
  hackrun replay --db ./runs.db
  hackrun replay --db ./runs.db --run 0190c3e5-...
  hackrun replay --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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
		all, err := j.ReadRuns(ctx, 0)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		// Oldest first.
		for i := len(all) - 1; i >= 0; i-- {
			if all[i].Finished() {
				runs = append(runs, all[i])
			}
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}
	for _, r := range runs {
		rr := replayRun(ctx, r)
		if !rr.Deterministic {
			result.AllDeterministic = false
		}
		result.Runs = append(result.Runs, rr)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayRun re-executes one journaled run and compares digests.
func replayRun(ctx context.Context, r journal.Run) ReplayRunResult {
	out := ReplayRunResult{
		RunID:    r.ID,
		Name:     r.Name,
		Image:    r.Image,
		Outcome:  r.Outcome,
		Steps:    r.Steps,
		Expected: r.Digest,
	}
	if !r.Finished() {
		out.Error = "run was never finished"
		return out
	}

	cfg, err := journaledConfig(r.Snapshot)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	sess := startSession(ctx, sessionConfig{Config: cfg, IDs: replayIDs(r.ID)})
	defer sess.Close()

	if err := sess.Load(ctx, r.Image, r.Name); err != nil {
		out.Error = err.Error()
		return out
	}
	for {
		res, err := sess.store.RunToCompletion(ctx, r.Steps+1)
		if err != nil {
			out.Error = err.Error()
			return out
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
			return out
		}
		if !res.Paused {
			break
		}
	}

	snap, err := sess.store.Snapshot(ctx)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if out.Actual, err = snap.Digest(); err != nil {
		out.Error = err.Error()
		return out
	}
	out.Deterministic = out.Actual == out.Expected
	if !out.Deterministic {
		if js, err := snap.CanonicalJSON(); err == nil {
			out.Diff = snapshotDiff(r.Snapshot, string(js))
		}
	}
	return out
}

// journaledConfig recovers the store configuration from a journaled
// snapshot.
func journaledConfig(snapshot string) (config.StoreConfig, error) {
	var doc struct {
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal([]byte(snapshot), &doc); err != nil {
		return config.StoreConfig{}, fmt.Errorf("decode journaled snapshot: %w", err)
	}
	if len(doc.Config) == 0 {
		return config.Defaults(), nil
	}
	p, err := config.ParseYAML(doc.Config)
	if err != nil {
		return config.StoreConfig{}, fmt.Errorf("journaled config: %w", err)
	}
	return config.Defaults().Merge(p), nil
}

// snapshotDiff renders the difference between two canonical snapshots.
func snapshotDiff(want, got string) string {
	var a, b map[string]any
	if json.Unmarshal([]byte(want), &a) != nil || json.Unmarshal([]byte(got), &b) != nil {
		return ""
	}
	return cmp.Diff(a, b)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDrift,
			Message: "replay verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No finished runs found in journal.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, r := range result.Runs {
		mark := "✓"
		if !r.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s (%s, %s, %d steps)\n", mark, r.RunID, r.Name, r.Outcome, r.Steps)
		if verbose {
			fmt.Fprintf(w, "  Image:    %s\n", r.Image)
			fmt.Fprintf(w, "  Expected: %s\n", r.Expected)
			fmt.Fprintf(w, "  Actual:   %s\n", r.Actual)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", r.Error)
		} else if !r.Deterministic {
			fmt.Fprintln(w, "  Warning: replayed snapshot differs from the journal!")
			if verbose && r.Diff != "" {
				fmt.Fprintln(w, r.Diff)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs reproduced")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}
