package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/hackrun/internal/tst"
)

// maxIdleResolves bounds how many loop decisions may be taken without
// reaching a simple statement, e.g. "repeat { repeat 0 { tick; } }".
const maxIdleResolves = 1 << 16

var errNoProgress = errors.New("loop body never reaches a statement")

type frame struct {
	body  []tst.Statement
	idx   int
	iter  int
	block *tst.Statement
}

// cursor walks a script, expanding repeat and while blocks as it goes.
// Loop conditions are evaluated against the simulation only when the cursor
// has to decide whether to enter or repeat a block.
type cursor struct {
	frames []frame
}

func newCursor(script *tst.Script) *cursor {
	c := &cursor{}
	if script != nil {
		c.frames = []frame{{body: script.Statements}}
	}
	return c
}

// peek positions the cursor on the next simple statement and returns it.
// It returns nil when the script is exhausted.
func (c *cursor) peek(sim *Simulation) (*tst.Statement, error) {
	for n := 0; n < maxIdleResolves; n++ {
		if len(c.frames) == 0 {
			return nil, nil
		}
		f := &c.frames[len(c.frames)-1]

		if f.idx >= len(f.body) {
			if f.block == nil {
				return nil, nil
			}
			f.iter++
			again, err := loopAgain(f.block, f.iter, sim)
			if err != nil {
				return nil, err
			}
			if again {
				f.idx = 0
				continue
			}
			c.frames = c.frames[:len(c.frames)-1]
			c.frames[len(c.frames)-1].idx++
			continue
		}

		st := &f.body[f.idx]
		if st.Kind == tst.StatementSimple {
			return st, nil
		}
		enter := len(st.Body) > 0
		if enter {
			var err error
			if enter, err = loopAgain(st, 0, sim); err != nil {
				return nil, err
			}
		}
		if !enter {
			f.idx++
			continue
		}
		c.frames = append(c.frames, frame{body: st.Body, block: st})
	}
	return nil, errNoProgress
}

// advance moves past the statement returned by the last peek.
func (c *cursor) advance() {
	if len(c.frames) > 0 {
		c.frames[len(c.frames)-1].idx++
	}
}

// loopAgain reports whether block should run iteration iter (0-based).
func loopAgain(block *tst.Statement, iter int, sim *Simulation) (bool, error) {
	switch block.Kind {
	case tst.StatementRepeat:
		return block.Count == tst.Unbounded || iter < block.Count, nil
	case tst.StatementWhile:
		return evalCondition(block.Cond, sim)
	}
	return false, fmt.Errorf("statement kind %d is not a block", block.Kind)
}

func evalCondition(cond *tst.Condition, sim *Simulation) (bool, error) {
	left, err := operandValue(cond.Left, sim)
	if err != nil {
		return false, err
	}
	right, err := operandValue(cond.Right, sim)
	if err != nil {
		return false, err
	}
	switch cond.Op {
	case "=":
		return left == right, nil
	case "<>":
		return left != right, nil
	case "<":
		return left < right, nil
	case "<=":
		return left <= right, nil
	case ">":
		return left > right, nil
	case ">=":
		return left >= right, nil
	}
	return false, fmt.Errorf("unknown comparison %q", cond.Op)
}

func operandValue(op tst.Operand, sim *Simulation) (int16, error) {
	if op.Literal {
		return op.Value, nil
	}
	return sim.Value(op.Name)
}
