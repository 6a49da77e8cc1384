// Package cpu implements the Hack CPU and its memory map.
//
// Memory map (word addresses):
//
//	RAM      0x0000-0x3FFF  general purpose
//	Screen   0x4000-0x5FFF  memory-mapped display, 8K words
//	Keyboard 0x6000         memory-mapped keyboard, 1 word
//	ROM      0x0000-0x7FFF  separate instruction memory, 32K words
//
// The CPU is not safe for concurrent use. hackrun's engine owns exactly one
// CPU at a time and hands out ir.MemoryView copies to observers.
package cpu
