// Package units provides dimensioned physical quantities for machine and
// job configuration.
//
// Every quantity is a Value carrying a magnitude and a Unit. The core
// geometry and planning packages operate exclusively on canonical
// magnitudes (millimeters, millimeters per second, watts, revolutions per
// minute); Canonical is the single point where conversions happen.
//
// # Usage
//
//	v := units.Millimeters(10)
//	w, err := units.Value{Magnitude: 300, Unit: units.MillimeterPerMinute}.Canonical()
//	// w = 5 mm/s
package units

import (
	"strconv"

	"github.com/pcbforge/pcbforge/pkg/errors"
)

// Dimension classifies a unit by the physical quantity it measures.
type Dimension string

// Dimensions supported by machine and job configuration.
const (
	Length       Dimension = "length"
	Speed        Dimension = "speed"
	Power        Dimension = "power"
	AngularSpeed Dimension = "angular speed"
)

// Unit is a measurement unit symbol.
type Unit string

// Units supported in configuration files. The first unit of each dimension
// is canonical; all core packages assume canonical magnitudes.
const (
	Millimeter Unit = "mm"
	Centimeter Unit = "cm"
	Meter      Unit = "m"
	Inch       Unit = "in"
	Mil        Unit = "mil"

	MillimeterPerSecond Unit = "mm/s"
	MillimeterPerMinute Unit = "mm/min"
	CentimeterPerSecond Unit = "cm/s"
	InchPerSecond       Unit = "in/s"
	InchPerMinute       Unit = "in/min"

	Watt      Unit = "W"
	Milliwatt Unit = "mW"
	Kilowatt  Unit = "kW"

	RevolutionPerMinute Unit = "rpm"
	RevolutionPerSecond Unit = "rps"
)

// unitTable maps each unit to its dimension and the multiplier that
// converts a magnitude into the dimension's canonical unit.
var unitTable = map[Unit]struct {
	dim    Dimension
	factor float64
}{
	Millimeter: {Length, 1},
	Centimeter: {Length, 10},
	Meter:      {Length, 1000},
	Inch:       {Length, 25.4},
	Mil:        {Length, 0.0254},

	MillimeterPerSecond: {Speed, 1},
	MillimeterPerMinute: {Speed, 1.0 / 60.0},
	CentimeterPerSecond: {Speed, 10},
	InchPerSecond:       {Speed, 25.4},
	InchPerMinute:       {Speed, 25.4 / 60.0},

	Watt:      {Power, 1},
	Milliwatt: {Power, 0.001},
	Kilowatt:  {Power, 1000},

	RevolutionPerMinute: {AngularSpeed, 1},
	RevolutionPerSecond: {AngularSpeed, 60},
}

// canonicalUnit maps each dimension to its canonical unit.
var canonicalUnit = map[Dimension]Unit{
	Length:       Millimeter,
	Speed:        MillimeterPerSecond,
	Power:        Watt,
	AngularSpeed: RevolutionPerMinute,
}

// ParseUnit resolves a unit symbol from a configuration suffix.
func ParseUnit(s string) (Unit, error) {
	u := Unit(s)
	if _, ok := unitTable[u]; !ok {
		return "", errors.New(errors.KindConfig, "unknown unit %q", s)
	}
	return u, nil
}

// Value is a magnitude with a unit.
type Value struct {
	Magnitude float64 `json:"magnitude"`
	Unit      Unit    `json:"unit"`
}

// Dimension returns the physical dimension of the value's unit, or empty
// string for an unknown unit.
func (v Value) Dimension() Dimension {
	if e, ok := unitTable[v.Unit]; ok {
		return e.dim
	}
	return ""
}

// IsZero reports whether the magnitude is exactly zero.
func (v Value) IsZero() bool {
	return v.Magnitude == 0
}

// Canonical converts the value to its dimension's canonical unit.
func (v Value) Canonical() (Value, error) {
	e, ok := unitTable[v.Unit]
	if !ok {
		return Value{}, errors.New(errors.KindConfig, "unknown unit %q", v.Unit)
	}
	return Value{Magnitude: v.Magnitude * e.factor, Unit: canonicalUnit[e.dim]}, nil
}

// Convert converts the value to the target unit. Converting across
// dimensions is an error.
func (v Value) Convert(to Unit) (Value, error) {
	from, ok := unitTable[v.Unit]
	if !ok {
		return Value{}, errors.New(errors.KindConfig, "unknown unit %q", v.Unit)
	}
	target, ok := unitTable[to]
	if !ok {
		return Value{}, errors.New(errors.KindConfig, "unknown unit %q", to)
	}
	if from.dim != target.dim {
		return Value{}, errors.New(errors.KindConfig,
			"cannot convert %s (%s) to %s (%s)", v.Unit, from.dim, to, target.dim)
	}
	return Value{Magnitude: v.Magnitude * from.factor / target.factor, Unit: to}, nil
}

// String formats the value as "<magnitude> <unit>".
func (v Value) String() string {
	return strconv.FormatFloat(v.Magnitude, 'g', -1, 64) + " " + string(v.Unit)
}

// Millimeters constructs a length value in millimeters.
func Millimeters(x float64) Value { return Value{Magnitude: x, Unit: Millimeter} }

// Inches constructs a length value in inches.
func Inches(x float64) Value { return Value{Magnitude: x, Unit: Inch} }

// Mils constructs a length value in thousandths of an inch.
func Mils(x float64) Value { return Value{Magnitude: x, Unit: Mil} }

// MMPerSecond constructs a speed value in millimeters per second.
func MMPerSecond(x float64) Value { return Value{Magnitude: x, Unit: MillimeterPerSecond} }

// MMPerMinute constructs a speed value in millimeters per minute.
func MMPerMinute(x float64) Value { return Value{Magnitude: x, Unit: MillimeterPerMinute} }

// Watts constructs a power value in watts.
func Watts(x float64) Value { return Value{Magnitude: x, Unit: Watt} }

// RPM constructs an angular speed value in revolutions per minute.
func RPM(x float64) Value { return Value{Magnitude: x, Unit: RevolutionPerMinute} }
