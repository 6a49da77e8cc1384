package cpu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/hackrun/internal/ir"
)

// FaultError reports an instruction that could not execute.
type FaultError struct {
	PC          int
	Instruction int16
	Err         error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("fault at PC=%d (instruction %016b): %v", e.PC, uint16(e.Instruction), e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// CPU is the Hack CPU with its data and instruction memories.
//
// ROM is shared with the caller: loading a new image into the ROM passed to
// New is visible to the CPU, which is how load steps replace the program of a
// running test without rebuilding the machine.
type CPU struct {
	A  int16
	D  int16
	PC int16

	RAM *Memory
	ROM *Memory

	// ticks counts executed instructions.
	ticks int64
}

// New creates a CPU with zeroed registers and RAM bound to rom.
// A nil rom gets a fresh empty ROM.
func New(rom *Memory) *CPU {
	if rom == nil {
		rom = NewROM()
	}
	return &CPU{
		RAM: NewMemory("RAM", RAMSize),
		ROM: rom,
	}
}

// Reset clears the registers and tick counter. RAM and ROM are untouched.
func (c *CPU) Reset() {
	c.A, c.D, c.PC = 0, 0, 0
	c.ticks = 0
}

// Ticks returns the number of instructions executed since the last Reset.
func (c *CPU) Ticks() int64 { return c.ticks }

// Registers returns a copy of the register file.
func (c *CPU) Registers() ir.Registers {
	return ir.Registers{A: c.A, D: c.D, PC: c.PC}
}

// Screen returns a read-only copy of the screen region.
func (c *CPU) Screen() ir.MemoryView {
	return c.RAM.View(ScreenBase, ScreenBase+ScreenSize)
}

// Keyboard returns the memory-mapped keyboard word.
func (c *CPU) Keyboard() int16 {
	v, _ := c.RAM.Get(KeyboardAddr)
	return v
}

// Tick executes the instruction at ROM[PC].
//
// On error the CPU state is unchanged: operands are read and validated before
// any register or memory write happens.
func (c *CPU) Tick() error {
	pc := int(uint16(c.PC))
	inst, err := c.ROM.Get(pc)
	if err != nil {
		return &FaultError{PC: pc, Err: err}
	}
	if err := c.execute(uint16(inst)); err != nil {
		return &FaultError{PC: pc, Instruction: inst, Err: err}
	}
	c.ticks++
	return nil
}

func (c *CPU) execute(inst uint16) error {
	// A-instruction
	if inst&0x8000 == 0 {
		c.A = int16(inst)
		c.PC++
		return nil
	}

	useM := inst&0x1000 != 0
	comp := (inst >> 6) & 0x3F
	dest := (inst >> 3) & 0x7
	jump := inst & 0x7

	addr := int(uint16(c.A))
	writeM := dest&0b001 != 0

	y := c.A
	if useM {
		m, err := c.RAM.Get(addr)
		if err != nil {
			return err
		}
		y = m
	}
	if writeM && !useM {
		if _, err := c.RAM.Get(addr); err != nil {
			return err
		}
	}

	out := Compute(comp, c.D, y)
	oldA := c.A

	if writeM {
		// address checked above
		_ = c.RAM.Set(addr, out)
	}
	if dest&0b100 != 0 {
		c.A = out
	}
	if dest&0b010 != 0 {
		c.D = out
	}

	if jumps(jump, out) {
		c.PC = oldA
	} else {
		c.PC++
	}
	return nil
}

// Get reads a named location: "A", "D", "PC", "RAM[n]", "ROM[n]".
func (c *CPU) Get(name string) (int16, error) {
	switch name {
	case "A":
		return c.A, nil
	case "D":
		return c.D, nil
	case "PC":
		return c.PC, nil
	}
	mem, idx, err := c.indexed(name)
	if err != nil {
		return 0, err
	}
	return mem.Get(idx)
}

// Set writes a named location. See Get for accepted names.
func (c *CPU) Set(name string, v int16) error {
	switch name {
	case "A":
		c.A = v
		return nil
	case "D":
		c.D = v
		return nil
	case "PC":
		c.PC = v
		return nil
	}
	mem, idx, err := c.indexed(name)
	if err != nil {
		return err
	}
	return mem.Set(idx, v)
}

func (c *CPU) indexed(name string) (*Memory, int, error) {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return nil, 0, fmt.Errorf("unknown variable %q", name)
	}
	var mem *Memory
	switch name[:open] {
	case "RAM":
		mem = c.RAM
	case "ROM":
		mem = c.ROM
	default:
		return nil, 0, fmt.Errorf("unknown variable %q", name)
	}
	idx, err := strconv.Atoi(name[open+1 : len(name)-1])
	if err != nil {
		return nil, 0, fmt.Errorf("invalid index in %q: %w", name, err)
	}
	return mem, idx, nil
}
