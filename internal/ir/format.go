package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Format selects how a memory word is displayed.
type Format string

const (
	// FormatAssembly renders words as Hack assembly (ROM views).
	FormatAssembly Format = "asm"
	// FormatDecimal renders words as signed decimal.
	FormatDecimal Format = "dec"
	// FormatBinary renders words as 16 binary digits.
	FormatBinary Format = "bin"
	// FormatHex renders words as 4 hex digits.
	FormatHex Format = "hex"
)

// Formats lists every valid display format in declaration order.
var Formats = []Format{FormatAssembly, FormatDecimal, FormatBinary, FormatHex}

// Valid reports whether f is one of the enumerated formats.
func (f Format) Valid() bool {
	for _, v := range Formats {
		if v == f {
			return true
		}
	}
	return false
}

// ParseFormat accepts the short names and a few long aliases
// ("assembly", "decimal", "binary").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asm", "assembly":
		return FormatAssembly, nil
	case "dec", "decimal":
		return FormatDecimal, nil
	case "bin", "binary":
		return FormatBinary, nil
	case "hex", "hexadecimal":
		return FormatHex, nil
	}
	return "", fmt.Errorf("invalid format %q: must be one of %v", s, Formats)
}

// FormatWord renders w in the numeric formats. FormatAssembly is not handled
// here because it needs the disassembler; callers fall back to decimal.
func FormatWord(w int16, f Format) string {
	switch f {
	case FormatBinary:
		return fmt.Sprintf("%016b", uint16(w))
	case FormatHex:
		return fmt.Sprintf("0x%04X", uint16(w))
	default:
		return strconv.Itoa(int(w))
	}
}
