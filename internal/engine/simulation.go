package engine

import (
	"strconv"

	"github.com/roach88/hackrun/internal/cpu"
)

// Simulation is the CPU a test runs against, plus the test clock.
//
// The clock counts completed cycles. A tick executes one instruction and
// leaves the clock half way through the cycle; the following tock completes
// it. The "time" output variable renders as "N" or "N+" accordingly.
type Simulation struct {
	CPU *cpu.CPU

	time int
	half bool
}

// NewSimulation creates a zeroed machine bound to rom.
func NewSimulation(rom *cpu.Memory) *Simulation {
	return &Simulation{CPU: cpu.New(rom)}
}

// Reset zeroes registers, RAM and the clock. ROM is untouched.
func (s *Simulation) Reset() {
	s.CPU.Reset()
	s.CPU.RAM.Clear()
	s.time = 0
	s.half = false
}

// Tick executes one instruction.
func (s *Simulation) Tick() error {
	if err := s.CPU.Tick(); err != nil {
		return err
	}
	s.half = true
	return nil
}

// Tock completes the current clock cycle.
func (s *Simulation) Tock() {
	s.half = false
	s.time++
}

// Time returns the number of completed cycles.
func (s *Simulation) Time() int { return s.time }

// TimeString renders the clock as "N" or "N+".
func (s *Simulation) TimeString() string {
	t := strconv.Itoa(s.time)
	if s.half {
		t += "+"
	}
	return t
}

// Value reads a script variable: A, D, PC, RAM[n], ROM[n] or time.
func (s *Simulation) Value(name string) (int16, error) {
	if name == "time" {
		return int16(s.time), nil
	}
	return s.CPU.Get(name)
}

// Set writes a script variable.
func (s *Simulation) Set(name string, v int16) error {
	return s.CPU.Set(name, v)
}
