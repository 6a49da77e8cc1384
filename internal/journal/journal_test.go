package journal

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// openTestJournal opens a journal in a temp dir.
func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer j.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 3; i++ {
		j, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		j.Close()
	}

	j, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer j.Close()

	for _, table := range []string{"runs", "status_messages"} {
		var name string
		err := j.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	j := openTestJournal(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"user_version", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		got, err := j.pragma(tt.name)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClose_Nil(t *testing.T) {
	var j Journal
	if err := j.Close(); err != nil {
		t.Errorf("Close() on empty journal: %v", err)
	}
}

func TestWriteRead_RunLifecycle(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if err := j.WriteRunStarted(ctx, Run{ID: "r1", Name: "Add.tst", Image: "Add.hack", StartedSeq: 3}); err != nil {
		t.Fatal(err)
	}
	// Duplicate start is ignored.
	if err := j.WriteRunStarted(ctx, Run{ID: "r1", Name: "other", StartedSeq: 9}); err != nil {
		t.Fatal(err)
	}

	open, err := j.ReadRun(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if open.Finished() || open.Name != "Add.tst" || open.StartedSeq != 3 || open.Passed != nil {
		t.Errorf("open run = %+v", open)
	}

	fin := Run{ID: "r1", FinishedSeq: 12, Outcome: "completed", Steps: 8, Digest: "d1", Snapshot: "{}"}
	if err := j.WriteRunFinished(ctx, fin); err != nil {
		t.Fatal(err)
	}
	// A second finish does not overwrite the first.
	if err := j.WriteRunFinished(ctx, Run{ID: "r1", FinishedSeq: 20, Outcome: "faulted"}); err != nil {
		t.Fatal(err)
	}
	if err := j.WriteComparison(ctx, "r1", false, 2); err != nil {
		t.Fatal(err)
	}

	got, err := j.ReadRun(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.FinishedSeq != 12 || got.Outcome != "completed" || got.Steps != 8 || got.Digest != "d1" {
		t.Errorf("finished run = %+v", got)
	}
	if got.Passed == nil || *got.Passed || got.MismatchLine != 2 {
		t.Errorf("comparison = %v line %d", got.Passed, got.MismatchLine)
	}
}

func TestReadRun_NotFound(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.ReadRun(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadRun() error = %v, want sql.ErrNoRows", err)
	}
}

func TestReadRuns_OrderAndLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	runs, err := j.ReadRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("empty journal: got %v, want empty slice", runs)
	}

	for i, id := range []string{"a", "b", "c"} {
		if err := j.WriteRunStarted(ctx, Run{ID: id, Name: id, StartedSeq: int64(i + 1)}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err = j.ReadRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("ReadRuns(2) = %+v", runs)
	}
}

func TestStatus_Order(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	msgs := []Status{
		{RunID: "r1", Seq: 5, Message: "second"},
		{RunID: "r1", Seq: 2, Message: "first"},
		{RunID: "r2", Seq: 1, Message: "other"},
	}
	for _, m := range msgs {
		if err := j.WriteStatus(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	got, err := j.ReadStatus(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Message != "first" || got[1].Message != "second" {
		t.Errorf("ReadStatus() = %+v", got)
	}
}
