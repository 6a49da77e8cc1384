package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/hackrun/internal/config"
	"github.com/roach88/hackrun/internal/cpustore"
	"github.com/roach88/hackrun/internal/engine"
	"github.com/roach88/hackrun/internal/fsys"
	"github.com/roach88/hackrun/internal/journal"
	"github.com/roach88/hackrun/internal/publish"
)

// sessionConfig configures one store session.
type sessionConfig struct {
	Config   config.StoreConfig
	Animate  bool
	Delay    time.Duration
	IDs      engine.IDGenerator
	Clock    publish.Sequencer
	Recorder *journal.Recorder

	// Progress, when set, receives every testStep snapshot.
	Progress func(publish.Snapshot)
}

// session drives a Store for a single image on behalf of a command.
type session struct {
	store *cpustore.Store
	stop  func()

	mu         sync.Mutex
	status     []string
	comparison *engine.Comparison
}

func startSession(ctx context.Context, sc sessionConfig) *session {
	s := &session{status: []string{}}

	opts := []cpustore.Option{
		cpustore.WithLogger(slog.Default()),
		cpustore.WithConfig(sc.Config),
		cpustore.WithAnimate(sc.Animate),
		cpustore.WithStepDelay(sc.Delay),
		cpustore.WithStatus(s.addStatus),
		cpustore.WithObserver(publish.ObserverFunc(func(e publish.Event) {
			switch e.Kind {
			case publish.EventTestFinished:
				s.mu.Lock()
				s.comparison = e.Comparison
				s.mu.Unlock()
			case publish.EventTestStep:
				if sc.Progress != nil && e.Snapshot != nil {
					sc.Progress(*e.Snapshot)
				}
			}
		})),
	}
	if sc.Clock != nil {
		opts = append(opts, cpustore.WithClock(sc.Clock))
	}
	if sc.IDs != nil {
		opts = append(opts, cpustore.WithIDGenerator(sc.IDs))
	}
	if sc.Recorder != nil {
		opts = append(opts,
			cpustore.WithObserver(sc.Recorder),
			cpustore.WithStatus(sc.Recorder.Status),
		)
	}

	s.store = cpustore.New(fsys.NewOS(""), opts...)
	s.stop = s.store.Start(ctx)
	return s
}

func (s *session) addStatus(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = append(s.status, msg)
}

// Status returns the status messages reported so far.
func (s *session) Status() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.status...)
}

// Comparison returns the comparison of the last finished run, if any.
func (s *session) Comparison() *engine.Comparison {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comparison
}

// Close stops the store.
func (s *session) Close() { s.stop() }

// Load loads image and, when test is non-empty, the named sibling test.
// A returned *engine.Error describes a problem with the image or script.
func (s *session) Load(ctx context.Context, image, test string) error {
	abs, err := filepath.Abs(image)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", image, err)
	}
	res, err := s.store.SetImagePath(ctx, filepath.ToSlash(abs))
	if err != nil {
		return err
	}
	if !res.OK() {
		return res.Err
	}
	if test == "" {
		return nil
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Test.Name == test {
		return nil
	}
	res, err = s.store.LoadNamedTest(ctx, test)
	if err != nil {
		return err
	}
	if !res.OK() {
		return res.Err
	}
	return nil
}

// engineErrorCode maps an engine error to a CLI error code.
func engineErrorCode(err error) string {
	var e *engine.Error
	if !errors.As(err, &e) {
		return ErrCodeGeneric
	}
	switch e.Code {
	case engine.ErrCodeParse:
		return ErrCodeParse
	case engine.ErrCodeFileNotFound:
		return ErrCodeNotFound
	case engine.ErrCodeRuntimeFault:
		return ErrCodeFault
	case engine.ErrCodeComparisonMismatch:
		return ErrCodeMismatch
	default:
		return ErrCodeGeneric
	}
}

// openRecorder opens the journal at path and returns a recorder for it.
// The returned close function closes the journal.
func openRecorder(ctx context.Context, path string) (*journal.Recorder, func(), error) {
	j, err := journal.Open(path)
	if err != nil {
		return nil, nil, err
	}
	rec := journal.NewRecorder(ctx, j, slog.Default())
	return rec, func() {
		if err := j.Close(); err != nil {
			slog.Error("error closing journal", "error", err)
		}
	}, nil
}
