package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/hackrun/internal/tst"
)

// outputHeader renders the column names of an output list, each centered in
// its column.
func outputHeader(specs []tst.OutputSpec) string {
	cells := make([]string, len(specs))
	for i, spec := range specs {
		total := spec.Left + spec.Width + spec.Right
		name := spec.Name
		if len(name) > total {
			name = name[:total]
		}
		pad := total - len(name)
		cells[i] = strings.Repeat(" ", pad/2) + name + strings.Repeat(" ", pad-pad/2)
	}
	return "|" + strings.Join(cells, "|") + "|"
}

// outputRow renders the current values of an output list.
func outputRow(specs []tst.OutputSpec, sim *Simulation) (string, error) {
	cells := make([]string, len(specs))
	for i, spec := range specs {
		v, err := formatValue(spec, sim)
		if err != nil {
			return "", err
		}
		cells[i] = strings.Repeat(" ", spec.Left) + v + strings.Repeat(" ", spec.Right)
	}
	return "|" + strings.Join(cells, "|") + "|", nil
}

func formatValue(spec tst.OutputSpec, sim *Simulation) (string, error) {
	if spec.Name == "time" {
		return pad(sim.TimeString(), spec.Width, spec.Format == 'S', ' '), nil
	}
	v, err := sim.Value(spec.Name)
	if err != nil {
		return "", err
	}
	switch spec.Format {
	case 'X':
		return fit(fmt.Sprintf("%04X", uint16(v)), spec.Width, '0'), nil
	case 'B':
		return fit(fmt.Sprintf("%016b", uint16(v)), spec.Width, '0'), nil
	case 'S':
		return pad(fmt.Sprint(v), spec.Width, true, ' '), nil
	default:
		return pad(fmt.Sprint(v), spec.Width, false, ' '), nil
	}
}

// pad widens s to width, left-aligned when left is set.
func pad(s string, width int, left bool, fill byte) string {
	if len(s) >= width {
		return s
	}
	p := strings.Repeat(string(fill), width-len(s))
	if left {
		return s + p
	}
	return p + s
}

// fit keeps the low-order width digits of a fixed-width number, or pads it.
func fit(s string, width int, fill byte) string {
	if len(s) > width {
		return s[len(s)-width:]
	}
	return pad(s, width, false, fill)
}
