package motion

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/plan"
)

// EncodeOptions configures the textual encoding.
type EncodeOptions struct {
	// Decimals is the coordinate precision; zero means 4.
	Decimals int
}

// EncodeGCode renders a command stream as G-code. The encoder is pure:
// absolute positioning (G90) opens the file, M2 closes it, and feed
// rates latch so they are only written when they change.
func EncodeGCode(cmds []Command, opts EncodeOptions) (string, error) {
	dec := opts.Decimals
	if dec <= 0 {
		dec = 4
	}
	num := func(v float64) string { return fmtNum(v, dec) }

	var b strings.Builder
	b.WriteString("G90\n")

	var (
		laser   bool
		rapidF  float64
		workF   float64
		plungeF float64
		lastG0F = math.NaN()
		lastG1F = math.NaN()
	)

	writeF := func(desired float64, last *float64) string {
		if desired == 0 || desired == *last {
			return ""
		}
		*last = desired
		return " F" + num(desired)
	}

	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case EquipTool:
			laser = c.Kind == plan.Laser
			fmt.Fprintf(&b, "; tool %s (%s)\n", c.Name, c.Kind)

		case UnitMode:
			if c.Imperial {
				b.WriteString("G20\n")
			} else {
				b.WriteString("G21\n")
			}

		case SetRapidSpeed:
			rapidF = c.Speed

		case SetWorkSpeed:
			workF = c.Speed

		case SetPlungeSpeed:
			plungeF = c.Speed

		case SetPower:
			if !laser {
				return "", errors.New(errors.KindInternal,
					"power command without an equipped laser")
			}
			if c.Ratio > 0 {
				pwm := int(math.Round(c.Ratio * 255))
				fmt.Fprintf(&b, "M3 P%s S%d\n", num(c.Ratio*100), pwm)
			} else {
				b.WriteString("M5\n")
			}

		case SetSpindleSpeed:
			if c.RPM > 0 {
				fmt.Fprintf(&b, "M3 S%s\n", num(c.RPM))
			} else {
				b.WriteString("M5\n")
			}

		case InsertSequence:
			text := strings.TrimRight(c.Text, "\n")
			if text != "" {
				b.WriteString(text)
				b.WriteByte('\n')
			}

		case MoveTo:
			fmt.Fprintf(&b, "G0 X%s Y%s%s\n", num(c.X), num(c.Y), writeF(rapidF, &lastG0F))

		case Retract:
			fmt.Fprintf(&b, "G0 Z%s%s\n", num(c.Z), writeF(rapidF, &lastG0F))

		case Plunge:
			fmt.Fprintf(&b, "G1 Z%s%s\n", num(c.Z), writeF(plungeF, &lastG1F))

		case Cut:
			switch c.Kind {
			case Linear:
				fmt.Fprintf(&b, "G1 X%s Y%s%s\n", num(c.X), num(c.Y), writeF(workF, &lastG1F))
			case CW:
				fmt.Fprintf(&b, "G2 X%s Y%s I%s J%s%s\n",
					num(c.X), num(c.Y), num(c.CenterI), num(c.CenterJ), writeF(workF, &lastG1F))
			case CCW:
				fmt.Fprintf(&b, "G3 X%s Y%s I%s J%s%s\n",
					num(c.X), num(c.Y), num(c.CenterI), num(c.CenterJ), writeF(workF, &lastG1F))
			}

		default:
			return "", errors.New(errors.KindInternal, "unknown command %T", cmd)
		}
	}

	b.WriteString("M2\n")
	return b.String(), nil
}

// fmtNum renders a coordinate with fixed decimals, trailing zeros
// trimmed.
func fmtNum(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}
