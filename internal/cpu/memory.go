package cpu

import (
	"fmt"

	"github.com/roach88/hackrun/internal/ir"
)

// Memory map constants.
const (
	ScreenBase   = 0x4000
	ScreenSize   = 0x2000
	KeyboardAddr = 0x6000

	// RAMSize covers the whole data address space including Screen and Keyboard.
	RAMSize = KeyboardAddr + 1
	ROMSize = 0x8000
)

// AddressError reports an access outside a memory region.
type AddressError struct {
	Region  string
	Address int
	Size    int
}

func (e AddressError) Error() string {
	return fmt.Sprintf("%s address %d out of range [0, %d)", e.Region, e.Address, e.Size)
}

// Memory is a flat, bounds-checked word array.
type Memory struct {
	name  string
	words []int16
}

// NewMemory allocates a zeroed region of size words.
func NewMemory(name string, size int) *Memory {
	return &Memory{name: name, words: make([]int16, size)}
}

// NewROM allocates an empty 32K instruction memory.
func NewROM() *Memory {
	return NewMemory("ROM", ROMSize)
}

func (m *Memory) rangeCheck(addr int) error {
	if addr < 0 || addr >= len(m.words) {
		return AddressError{Region: m.name, Address: addr, Size: len(m.words)}
	}
	return nil
}

// Get reads the word at addr.
func (m *Memory) Get(addr int) (int16, error) {
	if err := m.rangeCheck(addr); err != nil {
		return 0, err
	}
	return m.words[addr], nil
}

// Set writes v at addr.
func (m *Memory) Set(addr int, v int16) error {
	if err := m.rangeCheck(addr); err != nil {
		return err
	}
	m.words[addr] = v
	return nil
}

// Load replaces the region contents with words, zero-filling the remainder.
// An image larger than the region is rejected without modifying memory.
func (m *Memory) Load(words []int16) error {
	if len(words) > len(m.words) {
		return fmt.Errorf("%s image of %d words exceeds capacity %d", m.name, len(words), len(m.words))
	}
	n := copy(m.words, words)
	for i := n; i < len(m.words); i++ {
		m.words[i] = 0
	}
	return nil
}

// Clear zeroes the region.
func (m *Memory) Clear() {
	for i := range m.words {
		m.words[i] = 0
	}
}

// View returns a read-only copy of [start, end).
func (m *Memory) View(start, end int) ir.MemoryView {
	if start < 0 {
		start = 0
	}
	if end > len(m.words) {
		end = len(m.words)
	}
	if start >= end {
		return ir.MemoryView{}
	}
	return ir.NewMemoryView(m.words[start:end])
}

// ViewAll returns a read-only copy of the whole region.
func (m *Memory) ViewAll() ir.MemoryView {
	return ir.NewMemoryView(m.words)
}
