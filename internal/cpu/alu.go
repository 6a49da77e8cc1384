package cpu

// ALU control bits as they appear in the comp field of a C-instruction
// (instruction bits 11..6).
const (
	aluZX = 1 << 5
	aluNX = 1 << 4
	aluZY = 1 << 3
	aluNY = 1 << 2
	aluF  = 1 << 1
	aluNO = 1 << 0
)

// Compute runs the Hack ALU on x (D) and y (A or M) with the six control
// bits in comp.
func Compute(comp uint16, x, y int16) int16 {
	if comp&aluZX != 0 {
		x = 0
	}
	if comp&aluNX != 0 {
		x = ^x
	}
	if comp&aluZY != 0 {
		y = 0
	}
	if comp&aluNY != 0 {
		y = ^y
	}

	var out int16
	if comp&aluF != 0 {
		out = x + y
	} else {
		out = x & y
	}
	if comp&aluNO != 0 {
		out = ^out
	}
	return out
}

// jumps reports whether the jump field (instruction bits 2..0) fires for out.
func jumps(jump uint16, out int16) bool {
	switch {
	case out < 0:
		return jump&0b100 != 0
	case out == 0:
		return jump&0b010 != 0
	default:
		return jump&0b001 != 0
	}
}
