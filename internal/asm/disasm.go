package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// Disassemble renders one machine word as Hack assembly.
// Words that are not valid C-instructions render as their decimal value.
func Disassemble(w int16) string {
	inst := uint16(w)
	if inst&0x8000 == 0 {
		return "@" + strconv.Itoa(int(inst))
	}
	if inst&0xE000 != 0xE000 {
		return strconv.Itoa(int(w))
	}

	comp, ok := compNames[(inst>>6)&0x7F]
	if !ok {
		return strconv.Itoa(int(w))
	}

	var b strings.Builder
	if dest := destName((inst >> 3) & 0x7); dest != "" {
		b.WriteString(dest)
		b.WriteByte('=')
	}
	b.WriteString(comp)
	if jump := jumpNames[inst&0x7]; jump != "" {
		b.WriteByte(';')
		b.WriteString(jump)
	}
	return b.String()
}

func destName(bits uint16) string {
	var s string
	if bits&0b100 != 0 {
		s = "A"
	}
	switch bits & 0b011 {
	case 0b011:
		s += "MD"
	case 0b001:
		s += "M"
	case 0b010:
		s += "D"
	}
	return s
}

// Binary renders words as .hack text: one 16-digit binary line per word.
func Binary(words []int16) string {
	var b strings.Builder
	for _, w := range words {
		fmt.Fprintf(&b, "%016b\n", uint16(w))
	}
	return b.String()
}
