package journal

import (
	"context"
	"database/sql"
	"fmt"
)

const runColumns = `id, name, image, started_seq, finished_seq, outcome, steps, digest, snapshot, passed, mismatch_line`

// ReadRuns returns the most recent runs first, at most limit of them
// (all when limit <= 0). Returns an empty slice, not nil, for an empty
// journal.
func (j *Journal) ReadRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_seq DESC, id COLLATE BINARY ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns one run. Returns sql.ErrNoRows if not found.
func (j *Journal) ReadRun(ctx context.Context, id string) (Run, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ReadStatus returns the status messages of a run in seq order.
func (j *Journal) ReadStatus(ctx context.Context, runID string) ([]Status, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, seq, message
		FROM status_messages
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query status: %w", err)
	}
	defer rows.Close()

	msgs := []Status{}
	for rows.Next() {
		var s Status
		if err := rows.Scan(&s.RunID, &s.Seq, &s.Message); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		msgs = append(msgs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status: %w", err)
	}
	return msgs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r        Run
		finished sql.NullInt64
		passed   sql.NullBool
	)
	err := row.Scan(&r.ID, &r.Name, &r.Image, &r.StartedSeq, &finished,
		&r.Outcome, &r.Steps, &r.Digest, &r.Snapshot, &passed, &r.MismatchLine)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.FinishedSeq = finished.Int64
	r.Passed = nullBool(passed)
	return r, nil
}
