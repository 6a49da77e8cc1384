package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/hackrun/internal/ir"
	"github.com/roach88/hackrun/internal/publish"
)

// Golden renders the stable parts of a result as canonical JSON: the event
// trace, status messages and final machine state. Memory digests and run
// ids are left out so that golden files survive unrelated changes.
func Golden(name string, r *Result) ([]byte, error) {
	trace := make([]any, len(r.Trace))
	for i, ev := range r.Trace {
		trace[i] = traceEventMap(ev)
	}
	regs := r.Final.Sim.Registers
	return ir.MarshalCanonical(map[string]any{
		"scenario_name": name,
		"trace":         trace,
		"status":        r.Status,
		"final": map[string]any{
			"a":      regs.A,
			"d":      regs.D,
			"pc":     regs.PC,
			"state":  string(r.Final.Test.State),
			"steps":  r.Final.Test.Steps,
			"time":   r.Final.Test.Time,
			"output": r.Final.Test.Output,
		},
	})
}

func traceEventMap(ev TraceEvent) map[string]any {
	m := map[string]any{
		"kind": string(ev.Kind),
		"seq":  ev.Seq,
	}
	switch ev.Kind {
	case publish.EventUpdate, publish.EventTestStep:
		m["state"] = string(ev.State)
		m["steps"] = ev.Steps
		m["time"] = ev.Time
	case publish.EventSetTitle:
		m["title"] = ev.Title
	case publish.EventSetTest:
		m["has_script"] = ev.HasScript
		m["has_compare"] = ev.HasCompare
	case publish.EventTestFinished:
		if ev.Passed != nil {
			m["passed"] = *ev.Passed
		}
	}
	return m
}

// RunWithGolden runs a scenario and compares its golden rendering with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), sc)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, sc.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Golden(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
