package tst

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/hackrun/internal/ir"
)

// ParseError reports a syntax error. Line and Col are 1-based; Offset is the
// byte offset into the source.
type ParseError struct {
	Line    int
	Col     int
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Col, e.Message)
}

// Span returns the one-byte source span of the error position.
func (e *ParseError) Span() ir.Span {
	return ir.Span{Start: e.Offset, End: e.Offset + 1, Line: e.Line}
}

type parser struct {
	toks []token
	pos  int
}

// Parse parses a complete test script.
func Parse(src string) (*Script, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmts, err := p.statements(false)
	if err != nil {
		return nil, err
	}
	return &Script{Statements: stmts}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) take() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorAt(t token, format string, args ...any) *ParseError {
	return &ParseError{Line: t.line, Col: t.col, Offset: t.start, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.take()
	if t.kind != kind {
		return t, p.errorAt(t, "expected %s, found %s", kind, describe(t))
	}
	return t, nil
}

func describe(t token) string {
	if t.text != "" {
		return fmt.Sprintf("%q", t.text)
	}
	return t.kind.String()
}

func spanOf(start, end token) ir.Span {
	return ir.Span{Start: start.start, End: end.end, Line: start.line}
}

// statements parses until EOF, or until '}' when inBlock is set.
func (p *parser) statements(inBlock bool) ([]Statement, error) {
	var out []Statement
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			if inBlock {
				return nil, p.errorAt(t, "expected '}' before end of script")
			}
			return out, nil
		case t.kind == tokRBrace:
			if !inBlock {
				return nil, p.errorAt(t, "unexpected '}'")
			}
			return out, nil
		case t.kind == tokIdent && t.text == "repeat":
			st, err := p.repeat()
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		case t.kind == tokIdent && t.text == "while":
			st, err := p.while()
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		default:
			st, err := p.simple()
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
	}
}

func (p *parser) block(start token) ([]Statement, ir.Span, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, ir.Span{}, err
	}
	body, err := p.statements(true)
	if err != nil {
		return nil, ir.Span{}, err
	}
	end, err := p.expect(tokRBrace)
	if err != nil {
		return nil, ir.Span{}, err
	}
	return body, spanOf(start, end), nil
}

func (p *parser) repeat() (Statement, error) {
	start := p.take()
	count := Unbounded
	if p.peek().kind == tokInt {
		t := p.take()
		n, err := strconv.Atoi(t.text)
		if err != nil || n < 0 {
			return Statement{}, p.errorAt(t, "invalid repeat count %q", t.text)
		}
		count = n
	}
	body, span, err := p.block(start)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Kind: StatementRepeat, Span: span, Count: count, Body: body}, nil
}

func (p *parser) while() (Statement, error) {
	start := p.take()
	left, err := p.operand()
	if err != nil {
		return Statement{}, err
	}
	op, err := p.expect(tokOp)
	if err != nil {
		return Statement{}, err
	}
	right, err := p.operand()
	if err != nil {
		return Statement{}, err
	}
	body, span, err := p.block(start)
	if err != nil {
		return Statement{}, err
	}
	return Statement{
		Kind: StatementWhile,
		Span: span,
		Cond: &Condition{Left: left, Op: op.text, Right: right},
		Body: body,
	}, nil
}

func (p *parser) operand() (Operand, error) {
	t := p.peek()
	switch t.kind {
	case tokInt, tokFormat:
		v, err := p.value()
		if err != nil {
			return Operand{}, err
		}
		return Operand{Value: v, Literal: true}, nil
	case tokIdent:
		name, err := p.variable(true)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Name: name}, nil
	}
	return Operand{}, p.errorAt(t, "expected variable or number, found %s", describe(t))
}

func (p *parser) simple() (Statement, error) {
	start := p.peek()
	var cmds []Command
	for {
		cmd, err := p.command()
		if err != nil {
			return Statement{}, err
		}
		cmds = append(cmds, cmd)

		t := p.take()
		switch t.kind {
		case tokComma:
			continue
		case tokSemi, tokBang:
			return Statement{
				Kind:     StatementSimple,
				Span:     spanOf(start, t),
				Commands: cmds,
				Pause:    t.kind == tokBang,
			}, nil
		default:
			return Statement{}, p.errorAt(t, "expected ',' or ';', found %s", describe(t))
		}
	}
}

func (p *parser) atCommandEnd() bool {
	switch p.peek().kind {
	case tokComma, tokSemi, tokBang, tokEOF:
		return true
	}
	return false
}

func (p *parser) command() (Command, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return Command{}, err
	}
	cmd := Command{Kind: CommandKind(t.text)}
	switch cmd.Kind {
	case CmdOutput, CmdClearEcho, CmdTick, CmdTock, CmdTickTock:
	case CmdLoad:
		if !p.atCommandEnd() {
			if cmd.File, err = p.filename(); err != nil {
				return Command{}, err
			}
		}
	case CmdOutputFile, CmdCompareTo:
		if cmd.File, err = p.filename(); err != nil {
			return Command{}, err
		}
	case CmdEcho:
		s, err := p.expect(tokString)
		if err != nil {
			return Command{}, err
		}
		cmd.Text = s.text
	case CmdSet:
		if cmd.Target, err = p.variable(false); err != nil {
			return Command{}, err
		}
		if cmd.Value, err = p.value(); err != nil {
			return Command{}, err
		}
	case CmdOutputList:
		for !p.atCommandEnd() {
			spec, err := p.outputSpec()
			if err != nil {
				return Command{}, err
			}
			cmd.Outputs = append(cmd.Outputs, spec)
		}
		if len(cmd.Outputs) == 0 {
			return Command{}, p.errorAt(p.peek(), "output-list needs at least one variable")
		}
	default:
		return Command{}, p.errorAt(t, "unknown command %q", t.text)
	}
	cmd.Span = spanOf(t, p.toks[p.pos-1])
	return cmd, nil
}

func (p *parser) filename() (string, error) {
	t := p.take()
	if t.kind != tokIdent && t.kind != tokString {
		return "", p.errorAt(t, "expected file name, found %s", describe(t))
	}
	return t.text, nil
}

// variable parses A, D, PC, RAM[n], ROM[n] and, when readOnly is set, time.
func (p *parser) variable(readOnly bool) (string, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return "", err
	}
	switch t.text {
	case "A", "D", "PC":
		return t.text, nil
	case "time":
		if readOnly {
			return t.text, nil
		}
		return "", p.errorAt(t, "cannot set %q", t.text)
	case "RAM", "ROM":
		if _, err := p.expect(tokLBracket); err != nil {
			return "", err
		}
		idx, err := p.expect(tokInt)
		if err != nil {
			return "", err
		}
		n, err := strconv.Atoi(idx.text)
		if err != nil || n < 0 {
			return "", p.errorAt(idx, "invalid address %q", idx.text)
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s[%d]", t.text, n), nil
	}
	return "", p.errorAt(t, "unknown variable %q", t.text)
}

// value parses a decimal literal or a %D, %X or %B prefixed literal.
func (p *parser) value() (int16, error) {
	t := p.take()
	var (
		text = t.text
		base = 10
	)
	switch t.kind {
	case tokInt:
	case tokFormat:
		switch strings.ToUpper(text[:1]) {
		case "D":
		case "X":
			base = 16
		case "B":
			base = 2
		default:
			return 0, p.errorAt(t, "invalid value format %q", "%"+text)
		}
		text = text[1:]
	default:
		return 0, p.errorAt(t, "expected value, found %s", describe(t))
	}
	n, err := strconv.ParseInt(text, base, 32)
	if err != nil {
		return 0, p.errorAt(t, "invalid value %q", t.text)
	}
	if base == 10 {
		if n < -32768 || n > 32767 {
			return 0, p.errorAt(t, "value %d out of range", n)
		}
		return int16(n), nil
	}
	if n < 0 || n > 0xFFFF {
		return 0, p.errorAt(t, "value %q out of range", t.text)
	}
	return int16(uint16(n)), nil
}

func (p *parser) outputSpec() (OutputSpec, error) {
	name, err := p.variable(true)
	if err != nil {
		return OutputSpec{}, err
	}
	spec := DefaultOutputSpec
	spec.Name = name
	if p.peek().kind != tokFormat {
		return spec, nil
	}
	t := p.take()
	format := strings.ToUpper(t.text[:1])[0]
	if strings.IndexByte("DXBS", format) < 0 {
		return OutputSpec{}, p.errorAt(t, "invalid output format %q", "%"+t.text)
	}
	parts := strings.Split(t.text[1:], ".")
	if len(parts) != 3 {
		return OutputSpec{}, p.errorAt(t, "output format %q must be <fmt><left>.<width>.<right>", "%"+t.text)
	}
	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return OutputSpec{}, p.errorAt(t, "invalid output format %q", "%"+t.text)
		}
		nums[i] = n
	}
	if nums[1] == 0 {
		return OutputSpec{}, p.errorAt(t, "output width must be positive in %q", "%"+t.text)
	}
	spec.Format = format
	spec.Left, spec.Width, spec.Right = nums[0], nums[1], nums[2]
	return spec, nil
}
