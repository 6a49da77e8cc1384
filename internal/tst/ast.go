// Package tst parses CPU test scripts.
//
// A script is a sequence of statements. A simple statement is one or more
// commands separated by commas and terminated by ";" (or "!" to pause a
// continuous run). Statements may be grouped in "repeat [n] { ... }" and
// "while cond { ... }" blocks. Parsing is all-or-nothing: on error no Script
// is returned.
package tst

import "github.com/roach88/hackrun/internal/ir"

// StatementKind distinguishes simple statements from blocks.
type StatementKind int

const (
	// StatementSimple is a comma-separated command list.
	StatementSimple StatementKind = iota + 1
	// StatementRepeat repeats its body Count times, forever when Count < 0.
	StatementRepeat
	// StatementWhile repeats its body while Cond holds.
	StatementWhile
)

// Unbounded is the Count of a repeat block without an explicit count.
const Unbounded = -1

// Script is an immutable parsed test script.
type Script struct {
	Statements []Statement
}

// Statement is one step of a script or a loop block.
type Statement struct {
	Kind StatementKind
	Span ir.Span

	// Simple statements.
	Commands []Command
	Pause    bool

	// Blocks.
	Count int
	Cond  *Condition
	Body  []Statement
}

// CommandKind names a test command.
type CommandKind string

const (
	CmdLoad       CommandKind = "load"
	CmdOutputFile CommandKind = "output-file"
	CmdCompareTo  CommandKind = "compare-to"
	CmdOutputList CommandKind = "output-list"
	CmdOutput     CommandKind = "output"
	CmdEcho       CommandKind = "echo"
	CmdClearEcho  CommandKind = "clear-echo"
	CmdSet        CommandKind = "set"
	CmdTick       CommandKind = "tick"
	CmdTock       CommandKind = "tock"
	CmdTickTock   CommandKind = "ticktock"
)

// Command is a single test command.
type Command struct {
	Kind CommandKind
	Span ir.Span

	// File is the operand of load, output-file and compare-to.
	// Empty for a bare load.
	File string

	// Text is the echo message.
	Text string

	// Target and Value are the operands of set.
	Target string
	Value  int16

	// Outputs is the output-list column specification.
	Outputs []OutputSpec
}

// OutputSpec formats one column of the output list: the variable Name is
// rendered in Format ('D', 'X', 'B' or 'S') Width characters wide, padded by
// Left and Right spaces.
type OutputSpec struct {
	Name   string
	Format byte
	Left   int
	Width  int
	Right  int
}

// DefaultOutputSpec is applied to output-list names without a format.
var DefaultOutputSpec = OutputSpec{Format: 'D', Left: 1, Width: 6, Right: 1}

// Condition is a while-loop comparison.
type Condition struct {
	Left  Operand
	Op    string
	Right Operand
}

// Operand is either a variable reference or a literal.
type Operand struct {
	Name    string
	Value   int16
	Literal bool
}

// Steps counts the simple statements of a script with every block expanded
// once per iteration. It returns -1 when the count depends on run-time state
// (while loops or unbounded repeats).
func (s *Script) Steps() int {
	return countSteps(s.Statements)
}

func countSteps(stmts []Statement) int {
	n := 0
	for _, st := range stmts {
		switch st.Kind {
		case StatementSimple:
			n++
		case StatementRepeat:
			body := countSteps(st.Body)
			if body < 0 {
				return -1
			}
			if body == 0 {
				continue
			}
			if st.Count < 0 {
				return -1
			}
			n += body * st.Count
		case StatementWhile:
			if len(st.Body) > 0 {
				return -1
			}
		}
	}
	return n
}
