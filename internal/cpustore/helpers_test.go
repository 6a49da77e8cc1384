package cpustore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/roach88/hackrun/internal/fsys"
	"github.com/roach88/hackrun/internal/publish"
	"github.com/roach88/hackrun/internal/testutil"
)

// statusLog collects status messages.
type statusLog struct {
	mu   sync.Mutex
	msgs []string
}

func (l *statusLog) add(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
}

func (l *statusLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.msgs...)
}

func (l *statusLog) last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.msgs) == 0 {
		return ""
	}
	return l.msgs[len(l.msgs)-1]
}

type fixture struct {
	store  *Store
	fs     *fsys.Mem
	events *publish.Recorder
	status *statusLog
}

// newStore starts a store over files and stops it when the test ends.
func newStore(t *testing.T, files map[string]string, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		fs:     fsys.NewMem(files),
		events: &publish.Recorder{},
		status: &statusLog{},
	}
	base := []Option{
		WithLogger(newStoreLogger()),
		WithObserver(f.events),
		WithStatus(f.status.add),
		WithIDGenerator(testutil.NewSequentialIDs("run")),
		WithClock(testutil.NewDeterministicClock()),
	}
	f.store = New(f.fs, append(base, opts...)...)
	stop := f.store.Start(context.Background())
	t.Cleanup(stop)
	return f
}

func (f *fixture) snapshot(t *testing.T) publish.Snapshot {
	t.Helper()
	snap, err := f.store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func newStoreLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
