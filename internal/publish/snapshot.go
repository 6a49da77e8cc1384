// Package publish turns engine state into immutable snapshots and delivers
// them to observers.
package publish

import (
	"strings"

	"github.com/roach88/hackrun/internal/config"
	"github.com/roach88/hackrun/internal/engine"
	"github.com/roach88/hackrun/internal/ir"
)

// SimView is the machine part of a snapshot.
type SimView struct {
	Registers ir.Registers
	RAM       ir.MemoryView
	ROM       ir.MemoryView
	Screen    ir.MemoryView
	Keyboard  int16
}

// TestView is the test-run part of a snapshot.
type TestView struct {
	RunID      string
	Name       string
	State      ir.RunState
	Valid      bool
	Steps      int
	Time       string
	Script     string
	Compare    string
	Output     string
	OutputFile string
	Highlight  *ir.Span
	Error      string
}

// Snapshot is an immutable point-in-time view of the store. Every field is a
// copy; holding a Snapshot never blocks or observes later mutations.
type Snapshot struct {
	Seq    int64
	Sim    SimView
	Test   TestView
	Path   string
	Tests  []string
	Title  string
	Config config.StoreConfig
}

// StoreFields are the store-level parts of a snapshot.
type StoreFields struct {
	Path   string
	Tests  []string
	Title  string
	Config config.StoreConfig
}

// Build assembles a snapshot from a run view and store fields.
// The Tests slice is copied.
func Build(v engine.RunView, f StoreFields) Snapshot {
	var out string
	if len(v.Log) > 0 {
		out = strings.Join(v.Log, "\n") + "\n"
	}
	var highlight *ir.Span
	if v.Highlight != nil {
		h := *v.Highlight
		highlight = &h
	}
	return Snapshot{
		Sim: SimView{
			Registers: v.Registers,
			RAM:       v.RAM,
			ROM:       v.ROM,
			Screen:    v.Screen,
			Keyboard:  v.Keyboard,
		},
		Test: TestView{
			RunID:      v.ID,
			Name:       v.Name,
			State:      v.State,
			Valid:      v.Valid,
			Steps:      v.Steps,
			Time:       v.Time,
			Script:     v.Script,
			Compare:    v.Compare,
			Output:     out,
			OutputFile: v.OutputFile,
			Highlight:  highlight,
			Error:      v.Error,
		},
		Path:   f.Path,
		Tests:  append([]string(nil), f.Tests...),
		Title:  f.Title,
		Config: f.Config,
	}
}

// Map renders the snapshot for canonical JSON. Memory regions are reduced
// to their digests and used lengths. Seq is excluded so that equal states
// have equal digests.
func (s Snapshot) Map() map[string]any {
	test := map[string]any{
		"runId":      s.Test.RunID,
		"name":       s.Test.Name,
		"state":      s.Test.State,
		"valid":      s.Test.Valid,
		"steps":      s.Test.Steps,
		"time":       s.Test.Time,
		"script":     s.Test.Script,
		"compare":    s.Test.Compare,
		"output":     s.Test.Output,
		"outputFile": s.Test.OutputFile,
		"error":      s.Test.Error,
	}
	if s.Test.Highlight != nil {
		test["highlight"] = map[string]any{
			"start": s.Test.Highlight.Start,
			"end":   s.Test.Highlight.End,
			"line":  s.Test.Highlight.Line,
		}
	}
	tests := s.Tests
	if tests == nil {
		tests = []string{}
	}
	return map[string]any{
		"sim": map[string]any{
			"a":        s.Sim.Registers.A,
			"d":        s.Sim.Registers.D,
			"pc":       s.Sim.Registers.PC,
			"ram":      s.Sim.RAM.Digest(),
			"ramUsed":  s.Sim.RAM.Used(),
			"rom":      s.Sim.ROM.Digest(),
			"romUsed":  s.Sim.ROM.Used(),
			"screen":   s.Sim.Screen.Digest(),
			"keyboard": s.Sim.Keyboard,
		},
		"test":   test,
		"path":   s.Path,
		"tests":  tests,
		"title":  s.Title,
		"config": s.Config.Map(),
	}
}

// Digest returns the content hash of the snapshot, excluding Seq.
func (s Snapshot) Digest() (string, error) {
	return ir.Digest(ir.DomainSnapshot, s.Map())
}

// CanonicalJSON renders the snapshot as canonical JSON, excluding Seq.
func (s Snapshot) CanonicalJSON() ([]byte, error) {
	return ir.MarshalCanonical(s.Map())
}
