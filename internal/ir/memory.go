package ir

import (
	"encoding/binary"
	"fmt"
)

// Registers holds the Hack CPU registers at a point in time.
type Registers struct {
	A  int16 `json:"a"`
	D  int16 `json:"d"`
	PC int16 `json:"pc"`
}

// MemoryView is a read-only copy of a memory region.
//
// The zero value is an empty view. Views are safe to share between
// goroutines because nothing can write through them.
type MemoryView struct {
	words []int16
}

// NewMemoryView copies words into a new view.
func NewMemoryView(words []int16) MemoryView {
	cp := make([]int16, len(words))
	copy(cp, words)
	return MemoryView{words: cp}
}

// Len returns the number of words in the view.
func (m MemoryView) Len() int {
	return len(m.words)
}

// Get returns the word at addr. ok is false when addr is out of range.
func (m MemoryView) Get(addr int) (int16, bool) {
	if addr < 0 || addr >= len(m.words) {
		return 0, false
	}
	return m.words[addr], true
}

// Range returns a copy of words in [start, end), clamped to the view.
func (m MemoryView) Range(start, end int) []int16 {
	if start < 0 {
		start = 0
	}
	if end > len(m.words) {
		end = len(m.words)
	}
	if start >= end {
		return []int16{}
	}
	out := make([]int16, end-start)
	copy(out, m.words[start:end])
	return out
}

// Used returns the index one past the last non-zero word.
// Zero when the region is empty or all zeros.
func (m MemoryView) Used() int {
	for i := len(m.words) - 1; i >= 0; i-- {
		if m.words[i] != 0 {
			return i + 1
		}
	}
	return 0
}

// Digest returns a content hash of the view's words.
func (m MemoryView) Digest() string {
	buf := make([]byte, 2*len(m.words))
	for i, w := range m.words {
		binary.BigEndian.PutUint16(buf[2*i:], uint16(w))
	}
	return HashWithDomain(DomainMemory, buf)
}

// String summarises the view for logs.
func (m MemoryView) String() string {
	return fmt.Sprintf("MemoryView(len=%d, used=%d)", len(m.words), m.Used())
}
