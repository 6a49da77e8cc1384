package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/hackrun/internal/fsys"
	"github.com/roach88/hackrun/internal/loader"
)

// addHack computes RAM[0] = 5 + 3.
const addHack = `0000000000000101
1110110000010000
0000000000000011
1110000010010000
0000000000000000
1110001100001000
`

const addTest = `load Add.hack,
output-file Add.out,
compare-to Add.cmp,
output-list RAM[0]%D2.6.2;
repeat 6 {
  ticktock;
}
output;
`

const addCmp = "|  RAM[0]  |\n|       8  |\n"

// memIO is an IO over an in-memory file system that records notifications.
type memIO struct {
	fs       *fsys.Mem
	echoes   []string
	compares []string
}

func newMemIO(files map[string]string) *memIO {
	return &memIO{fs: fsys.NewMem(files)}
}

func (m *memIO) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return m.fs.ReadFile(ctx, path)
}

func (m *memIO) DecodeImage(name string, data []byte) ([]int16, error) {
	return loader.Decode(name, data)
}

func (m *memIO) Echo(text string) { m.echoes = append(m.echoes, text) }

func (m *memIO) CompareTo(text string) { m.compares = append(m.compares, text) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRun creates a run over files with deterministic ids.
func newTestRun(t *testing.T, files map[string]string) (*TestRun, *memIO) {
	t.Helper()
	mio := newMemIO(files)
	ids := make([]string, 64)
	for i := range ids {
		ids[i] = "run-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
	}
	r := NewTestRun(nil, mio,
		WithLogger(discardLogger()),
		WithIDGenerator(NewFixedGenerator(ids...)),
	)
	return r, mio
}

// runAll steps until the run is done and returns the number of Step calls.
func runAll(t *testing.T, r *TestRun, limit int) (int, StepOutcome) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= limit; i++ {
		out, err := r.Step(ctx)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if out.Done() {
			return i, out
		}
	}
	t.Fatalf("run not done after %d steps", limit)
	return 0, StepOutcome{}
}
