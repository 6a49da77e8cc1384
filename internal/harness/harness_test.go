package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hackrun/internal/engine"
	"github.com/roach88/hackrun/internal/ir"
	"github.com/roach88/hackrun/internal/publish"
)

func loadAndRun(t *testing.T, path string) *Result {
	t.Helper()
	sc, err := LoadScenario(path)
	require.NoError(t, err)
	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	return result
}

// TestRun_Suites tests that every bundled suite passes.
func TestRun_Suites(t *testing.T) {
	for _, name := range []string{"add", "mismatch", "fault", "pause"} {
		t.Run(name, func(t *testing.T) {
			result := loadAndRun(t, "testdata/suites/"+name+".yaml")
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_AddResult(t *testing.T) {
	result := loadAndRun(t, "testdata/suites/add.yaml")

	assert.Equal(t, string(ir.RunCompleted), result.Outcome)
	require.NotNil(t, result.Comparison)
	assert.True(t, result.Comparison.Passed)
	assert.Equal(t, []string{engine.StatusCompareSuccess}, result.Status)
	assert.Equal(t, 8, result.Final.Test.Steps)
	assert.Equal(t, "Add.hack", result.Final.Title)

	require.Len(t, result.Journal, 1)
	assert.Equal(t, "run-1", result.Journal[0].ID)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, publish.EventTestFinished, last.Kind)
	require.NotNil(t, last.Passed)
	assert.True(t, *last.Passed)
}

// TestRun_Deterministic tests that running a scenario twice yields the same
// trace.
func TestRun_Deterministic(t *testing.T) {
	first := loadAndRun(t, "testdata/suites/add.yaml")
	second := loadAndRun(t, "testdata/suites/add.yaml")
	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Status, second.Status)
}

func TestRun_FailingAssertion(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: wrong
description: "expects the wrong register value"
script: "ticktock;"
assertions:
  - type: register
    register: PC
    value: 3
  - type: outcome
    outcome: completed
`))
	require.NoError(t, err)
	sc.Dir = t.TempDir()

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]")
	assert.Contains(t, result.Errors[0], "PC = 3")
}

func TestRun_StepsMode(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: steps
description: "steps a fixed number of times"
script: |
  ticktock;
  ticktock;
  ticktock;
steps: 2
assertions:
  - type: outcome
    outcome: running
`))
	require.NoError(t, err)
	sc.Dir = t.TempDir()

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "2", result.Final.Test.Time)
}

func TestRun_Budget(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: forever
description: "an unbounded loop stops at the budget"
script: |
  repeat {
    ticktock;
  }
max_steps: 25
assertions:
  - type: outcome
    outcome: budget
  - type: journal
    count: 1
`))
	require.NoError(t, err)
	sc.Dir = t.TempDir()

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 25, result.Final.Test.Steps)
	assert.False(t, result.Journal[0].Finished())
}

func TestRun_ParseError(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: bad
description: "a script that does not parse"
script: "tick tock;"
assertions:
  - type: error_code
    code: PARSE_ERROR
  - type: outcome
    outcome: invalid
  - type: status_contains
    text: "Failed to parse test - "
`))
	require.NoError(t, err)
	sc.Dir = t.TempDir()

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
