package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// Run is one journaled test run.
type Run struct {
	ID          string
	Name        string
	Image       string
	StartedSeq  int64
	FinishedSeq int64 // 0 while the run is open
	Outcome     string
	Steps       int
	Digest      string
	Snapshot    string // canonical JSON of the final snapshot

	// Passed is nil when no comparison was made.
	Passed       *bool
	MismatchLine int
}

// Finished reports whether the run was closed.
func (r Run) Finished() bool { return r.FinishedSeq != 0 }

// Status is one journaled status message.
type Status struct {
	RunID   string
	Seq     int64
	Message string
}

// WriteRunStarted opens a run. Writing the same id twice is a no-op.
func (j *Journal) WriteRunStarted(ctx context.Context, r Run) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, name, image, started_seq)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, r.Name, r.Image, r.StartedSeq)
	if err != nil {
		return fmt.Errorf("write run started: %w", err)
	}
	return nil
}

// WriteRunFinished closes a run. A run is closed at most once; later calls
// are ignored.
func (j *Journal) WriteRunFinished(ctx context.Context, r Run) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_seq = ?, outcome = ?, steps = ?, digest = ?, snapshot = ?
		WHERE id = ? AND finished_seq IS NULL
	`, r.FinishedSeq, r.Outcome, r.Steps, r.Digest, r.Snapshot, r.ID)
	if err != nil {
		return fmt.Errorf("write run finished: %w", err)
	}
	return nil
}

// WriteComparison records the comparison result of a run.
func (j *Journal) WriteComparison(ctx context.Context, id string, passed bool, line int) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs SET passed = ?, mismatch_line = ? WHERE id = ?
	`, passed, line, id)
	if err != nil {
		return fmt.Errorf("write comparison: %w", err)
	}
	return nil
}

// WriteStatus appends a status message.
func (j *Journal) WriteStatus(ctx context.Context, s Status) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO status_messages (run_id, seq, message)
		VALUES (?, ?, ?)
	`, s.RunID, s.Seq, s.Message)
	if err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

func nullBool(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}
