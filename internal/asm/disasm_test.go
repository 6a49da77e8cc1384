package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassemble_RoundTrip(t *testing.T) {
	listing := []string{
		"@0", "@32767", "D=A", "AM=M+1", "MD=D-1", "AMD=!M", "AD=D|A",
		"0;JMP", "D;JGE", "M=-1;JNE", "A=D&M;JLE", "D=M-D",
	}
	for _, line := range listing {
		words, err := Assemble(line)
		require.NoError(t, err, line)
		require.Len(t, words, 1)
		assert.Equal(t, line, Disassemble(words[0]), line)
	}
}

func TestDisassemble_InvalidWords(t *testing.T) {
	// top bits 100 is not a C-instruction
	assert.Equal(t, "-32768", Disassemble(-32768))
}

func TestBinary(t *testing.T) {
	assert.Equal(t, "0000000000000101\n1110110000010000\n", Binary([]int16{5, -0x13F0}))
}
