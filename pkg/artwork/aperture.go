package artwork

import (
	"math"

	"github.com/pcbforge/pcbforge/pkg/geom"
)

// Aperture is a flashable shape template. Dimensions are canonical
// millimeters; a zero Hole means solid.
type Aperture interface {
	isAperture()
}

// Circle aperture.
type Circle struct {
	Diameter float64
	Hole     float64
}

func (Circle) isAperture() {}

// Rectangle aperture.
type Rectangle struct {
	W    float64
	H    float64
	Hole float64
}

func (Rectangle) isAperture() {}

// Obround is a rectangle with full semicircle caps on its short sides.
type Obround struct {
	W    float64
	H    float64
	Hole float64
}

func (Obround) isAperture() {}

// Polygon is a regular n-gon inscribed in Diameter, rotated by Rotation
// degrees counter-clockwise from the positive x axis.
type Polygon struct {
	Diameter float64
	Vertices int
	Rotation float64
	Hole     float64
}

func (Polygon) isAperture() {}

// Macro is an aperture macro instantiated with fixed arguments. The
// definition is resolved when the aperture is defined, so flashes carry
// everything needed for evaluation.
type Macro struct {
	Name string
	Args []float64
	Def  MacroDef
}

func (Macro) isAperture() {}

// Transform is the aperture transform state (load mirror, rotate, scale)
// captured when a flash is recorded. It maps aperture-local coordinates:
// scale first, then rotation, then mirroring.
type Transform struct {
	MirrorX  bool
	MirrorY  bool
	Rotation float64 // degrees counter-clockwise
	Scale    float64
}

// IdentityTransform returns the no-op transform.
func IdentityTransform() Transform {
	return Transform{Scale: 1}
}

// IsIdentity reports whether the transform changes nothing.
func (t Transform) IsIdentity() bool {
	return !t.MirrorX && !t.MirrorY && t.Rotation == 0 && (t.Scale == 1 || t.Scale == 0)
}

// Flips reports whether the transform reverses orientation, which swaps
// arc direction.
func (t Transform) Flips() bool {
	return t.MirrorX != t.MirrorY
}

// Apply maps an aperture-local point.
func (t Transform) Apply(p geom.Point) geom.Point {
	if t.Scale != 0 && t.Scale != 1 {
		p = p.Scale(t.Scale)
	}
	if t.Rotation != 0 {
		sin, cos := math.Sincos(t.Rotation * math.Pi / 180)
		p = geom.Point{X: p.X*cos - p.Y*sin, Y: p.X*sin + p.Y*cos}
	}
	if t.MirrorX {
		p.X = -p.X
	}
	if t.MirrorY {
		p.Y = -p.Y
	}
	return p
}

// ApplyContour maps an aperture-local contour, swapping arc orientation
// when the transform mirrors.
func (t Transform) ApplyContour(c geom.Contour) geom.Contour {
	out := geom.Contour{
		Start:    t.Apply(c.Start),
		Segments: make([]geom.Segment, len(c.Segments)),
	}
	flip := t.Flips()
	for i, s := range c.Segments {
		switch seg := s.(type) {
		case geom.Line:
			out.Segments[i] = geom.Line{To: t.Apply(seg.To)}
		case geom.ClockwiseArc:
			to, center := t.Apply(seg.To), t.Apply(seg.Center)
			if flip {
				out.Segments[i] = geom.CounterClockwiseArc{To: to, Center: center}
			} else {
				out.Segments[i] = geom.ClockwiseArc{To: to, Center: center}
			}
		case geom.CounterClockwiseArc:
			to, center := t.Apply(seg.To), t.Apply(seg.Center)
			if flip {
				out.Segments[i] = geom.ClockwiseArc{To: to, Center: center}
			} else {
				out.Segments[i] = geom.CounterClockwiseArc{To: to, Center: center}
			}
		}
	}
	return out
}

// ScaleLength maps an aperture-local length, for stroke widths.
func (t Transform) ScaleLength(w float64) float64 {
	if t.Scale == 0 {
		return w
	}
	return w * t.Scale
}
