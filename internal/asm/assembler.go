// Package asm assembles and disassembles Hack assembly.
package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// firstVariable is the address of the first user variable.
const firstVariable = 16

// Error reports an assembly failure at a source line.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

type sourceLine struct {
	num  int
	text string
}

// Assemble translates Hack assembly into machine words.
func Assemble(src string) ([]int16, error) {
	lines := clean(src)

	symbols := make(map[string]int, len(predefined)+16)
	for k, v := range predefined {
		symbols[k] = v
	}
	for i := 0; i < 16; i++ {
		symbols["R"+strconv.Itoa(i)] = i
	}

	// First pass: labels.
	var program []sourceLine
	for _, l := range lines {
		if strings.HasPrefix(l.text, "(") {
			if !strings.HasSuffix(l.text, ")") || len(l.text) < 3 {
				return nil, &Error{Line: l.num, Message: fmt.Sprintf("malformed label %q", l.text)}
			}
			label := l.text[1 : len(l.text)-1]
			if !validSymbol(label) {
				return nil, &Error{Line: l.num, Message: fmt.Sprintf("invalid label %q", label)}
			}
			if _, exists := symbols[label]; exists {
				return nil, &Error{Line: l.num, Message: fmt.Sprintf("duplicate symbol %q", label)}
			}
			symbols[label] = len(program)
			continue
		}
		program = append(program, l)
	}

	// Second pass: encode.
	next := firstVariable
	words := make([]int16, 0, len(program))
	for _, l := range program {
		if strings.HasPrefix(l.text, "@") {
			w, err := encodeA(l, symbols, &next)
			if err != nil {
				return nil, err
			}
			words = append(words, w)
			continue
		}
		w, err := encodeC(l)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, nil
}

func clean(src string) []sourceLine {
	var out []sourceLine
	for i, raw := range strings.Split(src, "\n") {
		if idx := strings.Index(raw, "//"); idx >= 0 {
			raw = raw[:idx]
		}
		text := strings.Join(strings.Fields(raw), "")
		if text == "" {
			continue
		}
		out = append(out, sourceLine{num: i + 1, text: text})
	}
	return out
}

func encodeA(l sourceLine, symbols map[string]int, next *int) (int16, error) {
	operand := l.text[1:]
	if operand == "" {
		return 0, &Error{Line: l.num, Message: "missing A-instruction operand"}
	}
	if operand[0] >= '0' && operand[0] <= '9' {
		n, err := strconv.Atoi(operand)
		if err != nil || n > 0x7FFF {
			return 0, &Error{Line: l.num, Message: fmt.Sprintf("invalid constant %q", operand)}
		}
		return int16(n), nil
	}
	if !validSymbol(operand) {
		return 0, &Error{Line: l.num, Message: fmt.Sprintf("invalid symbol %q", operand)}
	}
	addr, ok := symbols[operand]
	if !ok {
		addr = *next
		symbols[operand] = addr
		*next++
	}
	return int16(addr), nil
}

func encodeC(l sourceLine) (int16, error) {
	text := l.text
	dest, jump := "", ""
	if eq := strings.IndexByte(text, '='); eq >= 0 {
		dest = text[:eq]
		text = text[eq+1:]
	}
	if semi := strings.IndexByte(text, ';'); semi >= 0 {
		jump = text[semi+1:]
		text = text[:semi]
	}

	if alias, ok := compAliases[text]; ok {
		text = alias
	}
	comp, ok := compTable[text]
	if !ok {
		return 0, &Error{Line: l.num, Message: fmt.Sprintf("unknown computation %q", text)}
	}
	destBits, err := encodeDest(dest)
	if err != nil {
		return 0, &Error{Line: l.num, Message: err.Error()}
	}
	jumpBits, ok := jumpTable[jump]
	if !ok {
		return 0, &Error{Line: l.num, Message: fmt.Sprintf("unknown jump %q", jump)}
	}

	return int16(0xE000 | comp<<6 | destBits<<3 | jumpBits), nil
}

func encodeDest(dest string) (uint16, error) {
	var bits uint16
	for _, r := range dest {
		var bit uint16
		switch r {
		case 'A':
			bit = 0b100
		case 'D':
			bit = 0b010
		case 'M':
			bit = 0b001
		default:
			return 0, fmt.Errorf("unknown destination %q", dest)
		}
		if bits&bit != 0 {
			return 0, fmt.Errorf("repeated register in destination %q", dest)
		}
		bits |= bit
	}
	return bits, nil
}

func validSymbol(s string) bool {
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '.', r == '$', r == ':':
		default:
			return false
		}
	}
	return true
}
