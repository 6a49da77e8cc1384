// Package cpustore is the façade over the CPU test engine.
//
// A Store owns the single live TestRun, its simulation and ROM. Every
// command is serialized through the Run loop: callers on any goroutine
// enqueue a command and block until it has executed. Errors from running a
// test (missing files, parse failures, runtime faults) are reported through
// the status sink and the returned Result, never as Go errors; the error
// return of a command is reserved for context cancellation and a stopped
// store.
package cpustore

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/hackrun/internal/config"
	"github.com/roach88/hackrun/internal/cpu"
	"github.com/roach88/hackrun/internal/engine"
	"github.com/roach88/hackrun/internal/fsys"
	"github.com/roach88/hackrun/internal/loader"
	"github.com/roach88/hackrun/internal/publish"
)

// DefaultTestName is the name of the script compiled when an image has no
// sibling test.
const DefaultTestName = "Default"

// DefaultTest runs the loaded program forever.
const DefaultTest = "repeat {\n  ticktock;\n}"

// ErrStopped is returned by commands issued after the store stopped.
var ErrStopped = errors.New("cpu store stopped")

// Decoder converts an image file into ROM words.
type Decoder func(name string, data []byte) ([]int16, error)

// Store is the single owner of a TestRun and its simulation.
type Store struct {
	fs        fsys.FileSystem
	decode    Decoder
	logger    *slog.Logger
	status    []func(string)
	pub       *publish.Publisher
	observers []publish.Observer
	ids       engine.IDGenerator
	seq       publish.Sequencer
	delay     time.Duration
	animate   bool
	animating atomic.Bool

	rom *cpu.Memory
	run *engine.TestRun

	queue *commandQueue

	path    string
	tests   []string
	tstName string
	title   string
	config  config.StoreConfig
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithStatus adds a status sink. Sinks are called in registration order.
func WithStatus(fn func(string)) Option {
	return func(s *Store) { s.status = append(s.status, fn) }
}

// WithObserver subscribes an observer to store events.
func WithObserver(o publish.Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

// WithIDGenerator sets the test-run id generator.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock sets the sequencer stamping published events.
func WithClock(seq publish.Sequencer) Option {
	return func(s *Store) { s.seq = seq }
}

// WithConfig sets the initial configuration. It is not validated.
func WithConfig(c config.StoreConfig) Option {
	return func(s *Store) { s.config = c }
}

// WithDecoder replaces the image decoder. Default: loader.Decode.
func WithDecoder(d Decoder) Option {
	return func(s *Store) { s.decode = d }
}

// WithAnimate sets the initial animate flag. Default: true.
func WithAnimate(on bool) Option {
	return func(s *Store) { s.animate = on }
}

// WithStepDelay pauses between steps of RunToCompletion while animating.
func WithStepDelay(d time.Duration) Option {
	return func(s *Store) { s.delay = d }
}

// New creates a Store reading files from fs. The store is Idle with an
// empty ROM until an image or test is loaded. Call Run to start processing
// commands.
func New(fs fsys.FileSystem, opts ...Option) *Store {
	s := &Store{
		fs:      fs,
		decode:  loader.Decode,
		logger:  slog.Default(),
		ids:     engine.UUIDv7Generator{},
		animate: true,
		rom:     cpu.NewROM(),
		queue:   newCommandQueue(),
		config:  config.Defaults(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.pub = publish.NewPublisher(s.seq, s.logger)
	s.pub.SetAnimate(s.animate)
	s.animating.Store(s.animate)
	for _, o := range s.observers {
		s.pub.Subscribe(o)
	}
	s.run = engine.NewTestRun(s.rom, storeIO{s},
		engine.WithLogger(s.logger),
		engine.WithIDGenerator(s.ids),
	)
	return s
}

// Run processes commands until ctx is cancelled or Stop is called.
// It must be called from exactly one goroutine.
func (s *Store) Run(ctx context.Context) error {
	s.logger.Info("cpu store starting")
	defer s.drain()

	for {
		if cmd, ok := s.queue.TryDequeue(); ok {
			s.execute(ctx, cmd)
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("cpu store stopping: context cancelled")
			s.queue.Close()
			return ctx.Err()

		case <-s.queue.Wait():
			// The signal channel closes with the queue.
			if s.queue.Closed() && s.queue.Len() == 0 {
				s.logger.Info("cpu store stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the command queue. Commands already queued still run; later
// commands fail with ErrStopped.
func (s *Store) Stop() {
	s.queue.Close()
}

// drain releases callers whose commands will never run.
func (s *Store) drain() {
	for _, cmd := range s.queue.Drain() {
		cmd.stopped = true
		close(cmd.done)
	}
}

func (s *Store) execute(ctx context.Context, cmd *command) {
	defer close(cmd.done)
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("command panicked", "command", cmd.name, "panic", rec)
		}
	}()
	s.logger.Debug("command", "name", cmd.name)
	cmd.fn(ctx)
}

// do runs fn on the Run loop and waits for it. Cancelling ctx abandons the
// wait; a command that was already queued still runs.
func (s *Store) do(ctx context.Context, name string, fn func(ctx context.Context)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cmd := newCommand(name, func(context.Context) {
		fn(context.WithoutCancel(ctx))
	})
	if !s.queue.Enqueue(cmd) {
		return ErrStopped
	}
	select {
	case <-cmd.done:
		if cmd.stopped {
			return ErrStopped
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) setStatus(msg string) {
	s.logger.Debug("status", "message", msg)
	for _, fn := range s.status {
		fn(msg)
	}
}

func (s *Store) snapshot() publish.Snapshot {
	return publish.Build(s.run.View(), publish.StoreFields{
		Path:   s.path,
		Tests:  s.tests,
		Title:  s.title,
		Config: s.config,
	})
}

func (s *Store) update() {
	s.pub.Update(s.snapshot())
}

// storeIO gives steps access to the store's file system and sinks.
type storeIO struct {
	s *Store
}

func (io storeIO) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return io.s.fs.ReadFile(ctx, path)
}

func (io storeIO) DecodeImage(name string, data []byte) ([]int16, error) {
	return io.s.decode(name, data)
}

func (io storeIO) Echo(text string) {
	io.s.setStatus(text)
}

func (io storeIO) CompareTo(text string) {
	io.s.pub.SetTest(nil, &text)
}
