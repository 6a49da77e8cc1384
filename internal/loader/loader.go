// Package loader decodes ROM images. The decoder is chosen from the file
// extension: ".hack" files hold one 16-character binary word per line, ".asm"
// files are assembled, and anything else is treated as a raw big-endian blob.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/roach88/hackrun/internal/asm"
	"github.com/roach88/hackrun/internal/fsys"
)

// Kind identifies an image decoder.
type Kind string

const (
	KindHack Kind = "hack"
	KindAsm  Kind = "asm"
	KindBlob Kind = "blob"
)

// ErrOddLength is returned for blobs that do not hold a whole number of words.
var ErrOddLength = errors.New("blob length is not a multiple of two bytes")

// KindOf returns the decoder kind for a file name.
func KindOf(name string) Kind {
	switch strings.ToLower(path.Ext(name)) {
	case ".hack":
		return KindHack
	case ".asm":
		return KindAsm
	default:
		return KindBlob
	}
}

// Decode converts the raw contents of the named file into ROM words.
func Decode(name string, data []byte) ([]int16, error) {
	var (
		words []int16
		err   error
	)
	switch KindOf(name) {
	case KindHack:
		words, err = LoadHack(data)
	case KindAsm:
		words, err = LoadAsm(data)
	default:
		words, err = LoadBlob(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return words, nil
}

// LoadHack parses Hack machine-code text. Blank lines are skipped.
func LoadHack(data []byte) ([]int16, error) {
	lines := strings.Split(fsys.DecodeText(data), "\n")
	words := make([]int16, 0, len(lines))
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if len(line) != 16 {
			return nil, fmt.Errorf("line %d: expected 16 binary digits, got %q", i+1, line)
		}
		var w uint16
		for _, c := range line {
			switch c {
			case '0':
				w <<= 1
			case '1':
				w = w<<1 | 1
			default:
				return nil, fmt.Errorf("line %d: invalid binary digit %q", i+1, c)
			}
		}
		words = append(words, int16(w))
	}
	return words, nil
}

// LoadAsm assembles Hack assembly source.
func LoadAsm(data []byte) ([]int16, error) {
	return asm.Assemble(fsys.DecodeText(data))
}

// LoadBlob reads data as consecutive big-endian 16-bit words.
func LoadBlob(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, ErrOddLength
	}
	words := make([]int16, len(data)/2)
	for i := range words {
		words[i] = int16(binary.BigEndian.Uint16(data[2*i:]))
	}
	return words, nil
}
