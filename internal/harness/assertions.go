package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/hackrun/internal/publish"
)

// AssertionError is a failed assertion with enough context to debug it.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
	Status   []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Status) > 0 {
		fmt.Fprintf(&buf, "\nStatus:\n")
		for _, s := range e.Status {
			fmt.Fprintf(&buf, "  %s\n", s)
		}
	}
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, ev.Kind)
			if ev.State != "" {
				fmt.Fprintf(&buf, " %s steps=%d time=%s", ev.State, ev.Steps, ev.Time)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, empty when all hold.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	errs := []string{}
	for i, a := range assertions {
		if err := evaluate(r, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertOutcome:
		return assertOutcome(r, a)
	case AssertComparison:
		return assertComparison(r, a)
	case AssertNoComparison:
		if r.Comparison != nil {
			return r.fail(a, "no comparison", fmt.Sprintf("comparison passed=%v", r.Comparison.Passed))
		}
	case AssertRegister:
		return assertRegister(r, a)
	case AssertRAM:
		got, ok := r.Final.Sim.RAM.Get(*a.Address)
		if !ok {
			return r.fail(a, fmt.Sprintf("RAM[%d]", *a.Address), "address out of range")
		}
		if int(got) != *a.Value {
			return r.fail(a, fmt.Sprintf("RAM[%d] = %d", *a.Address, *a.Value), fmt.Sprintf("%d", got))
		}
	case AssertStatusContains:
		for _, s := range r.Status {
			if strings.Contains(s, a.Text) {
				return nil
			}
		}
		return r.fail(a, fmt.Sprintf("status containing %q", a.Text), fmt.Sprintf("%d messages, none matching", len(r.Status)))
	case AssertOutput:
		if r.Final.Test.Output != a.Text {
			return r.fail(a, fmt.Sprintf("%q", a.Text), fmt.Sprintf("%q", r.Final.Test.Output))
		}
	case AssertEventCount:
		n := 0
		for _, ev := range r.Trace {
			if ev.Kind == publish.EventKind(a.Event) {
				n++
			}
		}
		if n != *a.Count {
			return r.fail(a, fmt.Sprintf("%d %s events", *a.Count, a.Event), fmt.Sprintf("%d", n))
		}
	case AssertErrorCode:
		if string(r.ErrorCode) != a.Code {
			return r.fail(a, a.Code, fmt.Sprintf("%q", r.ErrorCode))
		}
	case AssertJournal:
		return assertJournal(r, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func assertOutcome(r *Result, a Assertion) error {
	if r.Outcome != a.Outcome {
		return r.fail(a, a.Outcome, r.Outcome)
	}
	return nil
}

func assertComparison(r *Result, a Assertion) error {
	if r.Comparison == nil {
		return r.fail(a, fmt.Sprintf("comparison passed=%v", *a.Passed), "no comparison was made")
	}
	if r.Comparison.Passed != *a.Passed {
		actual := fmt.Sprintf("passed=%v", r.Comparison.Passed)
		if !r.Comparison.Passed {
			actual += fmt.Sprintf(" at line %d: expected %q, got %q",
				r.Comparison.Line, r.Comparison.Expected, r.Comparison.Actual)
		}
		return r.fail(a, fmt.Sprintf("passed=%v", *a.Passed), actual)
	}
	if a.Line != 0 && r.Comparison.Line != a.Line {
		return r.fail(a, fmt.Sprintf("mismatch at line %d", a.Line), fmt.Sprintf("line %d", r.Comparison.Line))
	}
	return nil
}

func assertRegister(r *Result, a Assertion) error {
	regs := r.Final.Sim.Registers
	var got int16
	switch a.Register {
	case "A":
		got = regs.A
	case "D":
		got = regs.D
	case "PC":
		got = regs.PC
	}
	if int(got) != *a.Value {
		return r.fail(a, fmt.Sprintf("%s = %d", a.Register, *a.Value), fmt.Sprintf("%d", got))
	}
	return nil
}

func assertJournal(r *Result, a Assertion) error {
	if a.Count != nil && len(r.Journal) != *a.Count {
		return r.fail(a, fmt.Sprintf("%d journaled runs", *a.Count), fmt.Sprintf("%d", len(r.Journal)))
	}
	if a.Outcome == "" {
		return nil
	}
	if len(r.Journal) == 0 {
		return r.fail(a, fmt.Sprintf("last run %s", a.Outcome), "journal is empty")
	}
	// Runs are newest first.
	if got := r.Journal[0].Outcome; got != a.Outcome {
		return r.fail(a, fmt.Sprintf("last run %s", a.Outcome), fmt.Sprintf("%q", got))
	}
	return nil
}

func (r *Result) fail(a Assertion, expected, actual string) error {
	return &AssertionError{
		Type:     a.Type,
		Expected: expected,
		Actual:   actual,
		Trace:    r.Trace,
		Status:   r.Status,
	}
}
