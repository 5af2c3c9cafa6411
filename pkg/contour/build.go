// Package contour turns interpreted artwork primitives into closed
// polygons and classifies them into a containment forest.
//
// Build flattens every primitive (flash, stroke, region, drill hit,
// route path) into rings at a configured chord step; Classify nests the
// rings by containment so the planner can tell board boundaries from
// holes and solid material from voids.
package contour

import (
	"fmt"
	"math"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
)

// Polygon is one flattened primitive outline. Source records which
// primitive kind produced it; polygons from the drill layer are exempt
// from tool-radius compensation.
type Polygon struct {
	Ring     geom.Ring
	Polarity artwork.Polarity
	Source   artwork.PrimitiveKind
	Label    string
}

// FromDrill reports whether the polygon came from the drill layer.
func (p Polygon) FromDrill() bool {
	return p.Source == artwork.KindDrillHit || p.Source == artwork.KindRoutePath
}

// Options configures polygon construction.
type Options struct {
	// ChordStep is the maximum arc-linearization chord length in
	// millimeters. Non-positive falls back to geom.DefaultChordStep.
	ChordStep float64
}

func (o Options) step() float64 {
	if o.ChordStep <= 0 {
		return geom.DefaultChordStep
	}
	return o.ChordStep
}

// Build flattens primitives into closed polygons in input order. Later
// clear polygons override earlier dark material, so order is preserved.
func Build(prims []artwork.Primitive, opts Options) ([]Polygon, error) {
	step := opts.step()

	var polys []Polygon
	for i, prim := range prims {
		label := fmt.Sprintf("%s #%d", prim.Kind(), i+1)

		var (
			built []Polygon
			err   error
		)
		switch p := prim.(type) {
		case artwork.Flash:
			built, err = buildFlash(p, label, step)
		case artwork.Stroke:
			built, err = buildRibbon(p.Path, p.Width, p.Polarity, artwork.KindStroke, label, step)
		case artwork.Region:
			built, err = buildRegion(p, label, step)
		case artwork.DrillHit:
			built = []Polygon{{
				Ring:     circleRing(p.At, p.Diameter/2, step),
				Polarity: artwork.Dark,
				Source:   artwork.KindDrillHit,
				Label:    label,
			}}
		case artwork.RoutePath:
			built, err = buildRibbon(p.Path, p.Diameter, artwork.Dark, artwork.KindRoutePath, label, step)
		default:
			err = errors.NewGeometry(label, "unknown primitive kind %q", prim.Kind())
		}
		if err != nil {
			return nil, err
		}

		for _, poly := range built {
			if poly.Ring.IsDegenerate() {
				return nil, errors.NewGeometry(poly.Label, "polygon has zero area")
			}
			polys = append(polys, poly)
		}
	}
	return polys, nil
}

// buildFlash stamps an aperture image at the flash point. Simple
// apertures yield one polygon plus an optional clear hole circle; macro
// apertures yield one polygon per evaluated body primitive.
func buildFlash(f artwork.Flash, label string, step float64) ([]Polygon, error) {
	t := f.Transform

	// Chords are generated in aperture-local coordinates, so the local
	// step shrinks when the transform magnifies them.
	localStep := step
	if t.Scale > 0 {
		localStep = step / t.Scale
	}

	place := func(local geom.Ring, polarity artwork.Polarity) Polygon {
		ring := make(geom.Ring, len(local))
		for i, p := range local {
			ring[i] = f.At.Add(t.Apply(p))
		}
		return Polygon{Ring: ring, Polarity: polarity, Source: artwork.KindFlash, Label: label}
	}

	var (
		shape geom.Ring
		hole  float64
	)
	switch ap := f.Aperture.(type) {
	case artwork.Circle:
		shape = circleRing(geom.Point{}, ap.Diameter/2, localStep)
		hole = ap.Hole
	case artwork.Rectangle:
		shape = boxRing(geom.Point{}, ap.W, ap.H)
		hole = ap.Hole
	case artwork.Obround:
		shape = obroundRing(ap.W, ap.H, localStep)
		hole = ap.Hole
	case artwork.Polygon:
		shape = ngonRing(geom.Point{}, ap.Diameter/2, ap.Vertices, ap.Rotation)
		hole = ap.Hole
	case artwork.Macro:
		return buildMacroFlash(f, ap, label, localStep, place)
	default:
		return nil, errors.NewGeometry(label, "unknown aperture type %T", f.Aperture)
	}

	polys := []Polygon{place(shape, f.Polarity)}
	if hole > 0 {
		polys = append(polys, place(circleRing(geom.Point{}, hole/2, localStep), flip(f.Polarity)))
	}
	return polys, nil
}

// buildMacroFlash evaluates a macro body against the flash arguments.
// Each shape primitive becomes its own polygon; exposure off inverts
// the flash polarity.
func buildMacroFlash(f artwork.Flash, m artwork.Macro, label string, step float64, place func(geom.Ring, artwork.Polarity) Polygon) ([]Polygon, error) {
	vars := artwork.ArgsToVars(m.Args)

	eval := func(e artwork.Expr) (float64, error) {
		if e == nil {
			return 0, nil
		}
		v, err := e.Eval(vars)
		if err != nil {
			return 0, errors.NewGeometry(label, "macro %s: %v", m.Name, err)
		}
		return v, nil
	}
	evalAll := func(es ...artwork.Expr) ([]float64, error) {
		out := make([]float64, len(es))
		for i, e := range es {
			v, err := eval(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}

	var polys []Polygon
	emit := func(local geom.Ring, exposure, angle float64) {
		if angle != 0 {
			local = rotateRing(local, angle)
		}
		polarity := f.Polarity
		if exposure == 0 {
			polarity = flip(polarity)
		}
		polys = append(polys, place(local, polarity))
	}

	for _, body := range m.Def.Body {
		switch prim := body.(type) {
		case artwork.MacroComment:
			// Ignored at flash time.

		case artwork.MacroVariable:
			v, err := eval(prim.Value)
			if err != nil {
				return nil, err
			}
			vars[prim.Index] = v

		case artwork.MacroCircle:
			v, err := evalAll(prim.Exposure, prim.Diameter, prim.X, prim.Y, prim.Angle)
			if err != nil {
				return nil, err
			}
			emit(circleRing(geom.Point{X: v[2], Y: v[3]}, v[1]/2, step), v[0], v[4])

		case artwork.MacroVectorLine:
			v, err := evalAll(prim.Exposure, prim.Width, prim.StartX, prim.StartY, prim.EndX, prim.EndY, prim.Angle)
			if err != nil {
				return nil, err
			}
			ring, err := vectorLineRing(geom.Point{X: v[2], Y: v[3]}, geom.Point{X: v[4], Y: v[5]}, v[1])
			if err != nil {
				return nil, errors.NewGeometry(label, "macro %s: %v", m.Name, err)
			}
			emit(ring, v[0], v[6])

		case artwork.MacroCenterLine:
			v, err := evalAll(prim.Exposure, prim.Width, prim.Height, prim.X, prim.Y, prim.Angle)
			if err != nil {
				return nil, err
			}
			emit(boxRing(geom.Point{X: v[3], Y: v[4]}, v[1], v[2]), v[0], v[5])

		case artwork.MacroOutline:
			exposure, err := eval(prim.Exposure)
			if err != nil {
				return nil, err
			}
			pts := make([]geom.Point, 0, len(prim.Points))
			for _, mp := range prim.Points {
				v, err := evalAll(mp.X, mp.Y)
				if err != nil {
					return nil, err
				}
				pts = append(pts, geom.Point{X: v[0], Y: v[1]})
			}
			angle, err := eval(prim.Angle)
			if err != nil {
				return nil, err
			}
			emit(geom.CloseRing(pts), exposure, angle)

		case artwork.MacroPolygon:
			v, err := evalAll(prim.Exposure, prim.Vertices, prim.X, prim.Y, prim.Diameter, prim.Angle)
			if err != nil {
				return nil, err
			}
			n := int(v[1])
			if n < 3 {
				return nil, errors.NewGeometry(label, "macro %s: polygon needs at least 3 vertices, got %d", m.Name, n)
			}
			emit(ngonRing(geom.Point{X: v[2], Y: v[3]}, v[4]/2, n, 0), v[0], v[5])

		case artwork.MacroThermal:
			return nil, &errors.Error{
				Kind:    errors.KindUnsupported,
				Message: fmt.Sprintf("macro %s flashes a thermal primitive, which is not supported", m.Name),
				Contour: label,
			}

		default:
			return nil, errors.NewGeometry(label, "macro %s: unknown primitive %T", m.Name, body)
		}
	}
	return polys, nil
}

// buildRibbon inflates a pen path to its swept outline. An open path
// buffers to a capped ribbon; a closed path becomes an outer ring plus
// an inner ring whose containment parity restores the unswept middle.
func buildRibbon(path geom.Contour, width float64, polarity artwork.Polarity, source artwork.PrimitiveKind, label string, step float64) ([]Polygon, error) {
	if width <= 0 {
		return nil, errors.NewGeometry(label, "pen width %.4f must be positive", width)
	}

	pts := path.Flatten(step)
	if !path.Closed() {
		ring, err := geom.BufferPath(pts, width/2, step)
		if err != nil {
			return nil, wrapGeometry(err, label)
		}
		return []Polygon{{Ring: ring, Polarity: polarity, Source: source, Label: label}}, nil
	}

	base := geom.CloseRing(pts)
	outer, err := geom.OffsetRing(base, width/2, geom.CornerRound, step)
	if err != nil {
		return nil, wrapGeometry(err, label)
	}
	polys := []Polygon{{Ring: outer, Polarity: polarity, Source: source, Label: label}}

	// A loop tighter than the pen radius has no unswept middle.
	if inner, err := geom.OffsetRing(base, -width/2, geom.CornerRound, step); err == nil {
		polys = append(polys, Polygon{Ring: inner, Polarity: polarity, Source: source, Label: label})
	}
	return polys, nil
}

// buildRegion flattens a region outline, forces exact closure, and
// rejects self-intersecting rings rather than guessing a fill rule.
func buildRegion(r artwork.Region, label string, step float64) ([]Polygon, error) {
	pts := r.Ring.Flatten(step)
	if len(pts) < 4 {
		return nil, errors.NewGeometry(label, "region outline has too few points")
	}
	if !pts[0].Equals(pts[len(pts)-1]) {
		return nil, errors.NewGeometry(label, "region outline does not return to its start")
	}
	pts[len(pts)-1] = pts[0]

	ring := geom.Ring(pts)
	if ring.SelfIntersects() {
		return nil, errors.NewGeometry(label, "region outline intersects itself")
	}
	return []Polygon{{Ring: ring, Polarity: r.Polarity, Source: artwork.KindRegion, Label: label}}, nil
}

func flip(p artwork.Polarity) artwork.Polarity {
	if p == artwork.Dark {
		return artwork.Clear
	}
	return artwork.Dark
}

// wrapGeometry stamps the contour label onto a structured error, or
// wraps a plain one.
func wrapGeometry(err error, label string) error {
	if e, ok := err.(*errors.Error); ok {
		e.Contour = label
		return e
	}
	return errors.NewGeometry(label, "%v", err)
}

// circleRing returns a counter-clockwise chorded circle.
func circleRing(center geom.Point, radius, step float64) geom.Ring {
	n := int(math.Ceil(2 * math.Pi * radius / step))
	if n < 8 {
		n = 8
	}
	ring := make(geom.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, geom.Point{
			X: center.X + radius*math.Cos(a),
			Y: center.Y + radius*math.Sin(a),
		})
	}
	return append(ring, ring[0])
}

// boxRing returns a counter-clockwise axis-aligned rectangle.
func boxRing(center geom.Point, w, h float64) geom.Ring {
	hw, hh := w/2, h/2
	return geom.Ring{
		{X: center.X - hw, Y: center.Y - hh},
		{X: center.X + hw, Y: center.Y - hh},
		{X: center.X + hw, Y: center.Y + hh},
		{X: center.X - hw, Y: center.Y + hh},
		{X: center.X - hw, Y: center.Y - hh},
	}
}

// ngonRing returns a regular n-gon inscribed in the given radius,
// rotated counter-clockwise by rotation degrees.
func ngonRing(center geom.Point, radius float64, n int, rotation float64) geom.Ring {
	ring := make(geom.Ring, 0, n+1)
	base := rotation * math.Pi / 180
	for i := 0; i < n; i++ {
		a := base + 2*math.Pi*float64(i)/float64(n)
		ring = append(ring, geom.Point{
			X: center.X + radius*math.Cos(a),
			Y: center.Y + radius*math.Sin(a),
		})
	}
	return append(ring, ring[0])
}

// obroundRing returns a stadium shape: a rectangle with full semicircle
// caps on its short sides. Equal sides degenerate to a circle.
func obroundRing(w, h, step float64) geom.Ring {
	if math.Abs(w-h) < geom.Epsilon {
		return circleRing(geom.Point{}, w/2, step)
	}

	var axis geom.Point
	r := math.Min(w, h) / 2
	if w > h {
		axis = geom.Point{X: w/2 - r}
	} else {
		axis = geom.Point{Y: h/2 - r}
	}
	c1, c2 := axis.Scale(-1), axis

	// Cap half-angle sweep directions: perpendicular to the long axis.
	perp := axis.Normalize().Perp().Scale(r)

	path := geom.Contour{
		Start: c1.Sub(perp),
		Segments: []geom.Segment{
			geom.Line{To: c2.Sub(perp)},
			geom.CounterClockwiseArc{To: c2.Add(perp), Center: c2},
			geom.Line{To: c1.Add(perp)},
			geom.CounterClockwiseArc{To: c1.Sub(perp), Center: c1},
		},
	}
	return geom.CloseRing(path.Flatten(step))
}

// vectorLineRing returns the rectangle swept by a flat pen of the given
// width along the segment from a to b.
func vectorLineRing(a, b geom.Point, width float64) (geom.Ring, error) {
	d := b.Sub(a).Normalize()
	if d.Length() < geom.Epsilon {
		return nil, fmt.Errorf("vector line has coincident endpoints")
	}
	half := d.Perp().Scale(width / 2)
	return geom.Ring{
		a.Sub(half),
		b.Sub(half),
		b.Add(half),
		a.Add(half),
		a.Sub(half),
	}, nil
}

// rotateRing rotates a ring counter-clockwise about the origin by the
// given angle in degrees.
func rotateRing(r geom.Ring, degrees float64) geom.Ring {
	sin, cos := math.Sincos(degrees * math.Pi / 180)
	out := make(geom.Ring, len(r))
	for i, p := range r {
		out[i] = geom.Point{X: p.X*cos - p.Y*sin, Y: p.X*sin + p.Y*cos}
	}
	return out
}
