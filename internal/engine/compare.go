package engine

import (
	"fmt"
	"strings"
)

// Comparison is the result of checking an output log against a compare file.
type Comparison struct {
	Passed bool

	// Line is the 1-based line of the first difference. Zero when Passed.
	Line     int
	Expected string
	Actual   string
}

// Status messages reported after a comparison.
const (
	StatusCompareSuccess = "Simulation successful: The output file is identical to the compare file"
	StatusCompareFailure = "Simulation error: The output file differs from the compare file"
)

// Message returns the status line for the comparison.
func (c Comparison) Message() string {
	if c.Passed {
		return StatusCompareSuccess
	}
	return StatusCompareFailure
}

// Err returns a COMPARISON_MISMATCH error for a failed comparison, nil
// otherwise.
func (c Comparison) Err() error {
	if c.Passed {
		return nil
	}
	return &Error{
		Code:    ErrCodeComparisonMismatch,
		Message: fmt.Sprintf("line %d: expected %q, got %q", c.Line, c.Expected, c.Actual),
	}
}

// Compare checks actual output against expected compare text. Both sides
// are trimmed and compared line by line. Lines are split into "|"-separated
// cells whose surrounding whitespace is ignored; an expected cell made only
// of '*' matches anything.
func Compare(expected, actual string) Comparison {
	want := splitLines(strings.TrimSpace(expected))
	got := splitLines(strings.TrimSpace(actual))

	n := len(want)
	if len(got) > n {
		n = len(got)
	}
	for i := 0; i < n; i++ {
		var w, g string
		if i < len(want) {
			w = want[i]
		}
		if i < len(got) {
			g = got[i]
		}
		if i >= len(want) || i >= len(got) || !lineMatches(w, g) {
			return Comparison{Line: i + 1, Expected: w, Actual: g}
		}
	}
	return Comparison{Passed: true}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func lineMatches(want, got string) bool {
	wc := strings.Split(strings.TrimSpace(want), "|")
	gc := strings.Split(strings.TrimSpace(got), "|")
	if len(wc) != len(gc) {
		return false
	}
	for i := range wc {
		w := strings.TrimSpace(wc[i])
		g := strings.TrimSpace(gc[i])
		if w == g || isWildcard(w) {
			continue
		}
		return false
	}
	return true
}

func isWildcard(cell string) bool {
	return cell != "" && strings.Trim(cell, "*") == ""
}
