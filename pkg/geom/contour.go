package geom

import "math"

// Segment is one element of a contour path: a line or a circular arc
// ending at a new point.
type Segment interface {
	// End returns the point the segment moves to.
	End() Point

	isSegment()
}

// Line is a straight segment.
type Line struct {
	To Point
}

// End returns the line endpoint.
func (l Line) End() Point { return l.To }

func (Line) isSegment() {}

// ClockwiseArc is a circular arc swept clockwise about Center.
type ClockwiseArc struct {
	To     Point
	Center Point
}

// End returns the arc endpoint.
func (a ClockwiseArc) End() Point { return a.To }

func (ClockwiseArc) isSegment() {}

// CounterClockwiseArc is a circular arc swept counter-clockwise about Center.
type CounterClockwiseArc struct {
	To     Point
	Center Point
}

// End returns the arc endpoint.
func (a CounterClockwiseArc) End() Point { return a.To }

func (CounterClockwiseArc) isSegment() {}

// Contour is a connected chain of segments starting at Start.
type Contour struct {
	Start    Point
	Segments []Segment
}

// LastPoint returns the endpoint of the final segment, or Start for an
// empty contour.
func (c Contour) LastPoint() Point {
	if len(c.Segments) == 0 {
		return c.Start
	}
	return c.Segments[len(c.Segments)-1].End()
}

// Closed reports whether the contour returns to its starting point.
func (c Contour) Closed() bool {
	return len(c.Segments) > 0 && c.LastPoint().Equals(c.Start)
}

// Flatten linearizes the contour into a point chain. Arcs become chords
// no longer than step (the chord count is the arc length divided by
// step, rounded up). An arc that starts and ends at the same point is a
// full circle. Flattening a closed contour repeats the first point at
// the end.
func (c Contour) Flatten(step float64) []Point {
	if step <= 0 {
		step = DefaultChordStep
	}
	pts := make([]Point, 0, len(c.Segments)+1)
	pts = append(pts, c.Start)
	cur := c.Start
	for _, s := range c.Segments {
		switch seg := s.(type) {
		case Line:
			pts = append(pts, seg.To)
		case ClockwiseArc:
			pts = appendArcChords(pts, cur, seg.To, seg.Center, true, step)
		case CounterClockwiseArc:
			pts = appendArcChords(pts, cur, seg.To, seg.Center, false, step)
		}
		cur = s.End()
	}
	return pts
}

// Translate returns the contour shifted by d.
func (c Contour) Translate(d Point) Contour {
	out := Contour{
		Start:    c.Start.Add(d),
		Segments: make([]Segment, len(c.Segments)),
	}
	for i, s := range c.Segments {
		switch seg := s.(type) {
		case Line:
			out.Segments[i] = Line{To: seg.To.Add(d)}
		case ClockwiseArc:
			out.Segments[i] = ClockwiseArc{To: seg.To.Add(d), Center: seg.Center.Add(d)}
		case CounterClockwiseArc:
			out.Segments[i] = CounterClockwiseArc{To: seg.To.Add(d), Center: seg.Center.Add(d)}
		}
	}
	return out
}

// Length returns the total path length.
func (c Contour) Length() float64 {
	total := 0.0
	cur := c.Start
	for _, s := range c.Segments {
		switch seg := s.(type) {
		case Line:
			total += cur.DistanceTo(seg.To)
		case ClockwiseArc:
			total += arcLength(cur, seg.To, seg.Center, true)
		case CounterClockwiseArc:
			total += arcLength(cur, seg.To, seg.Center, false)
		}
		cur = s.End()
	}
	return total
}

// BoundingBox returns the bounding box of the contour, including arc
// bulges beyond the segment endpoints.
func (c Contour) BoundingBox() Rect {
	r := Rect{Min: c.Start, Max: c.Start}
	cur := c.Start
	for _, s := range c.Segments {
		switch seg := s.(type) {
		case Line:
			r = r.ExtendPoint(seg.To)
		case ClockwiseArc:
			r = r.Union(arcBounds(cur, seg.To, seg.Center, true))
		case CounterClockwiseArc:
			r = r.Union(arcBounds(cur, seg.To, seg.Center, false))
		}
		cur = s.End()
	}
	return r
}

// arcSweep returns the start angle and signed sweep of an arc. A zero
// angular distance means a full revolution in the arc's direction.
func arcSweep(start, end, center Point, clockwise bool) (a0, sweep float64) {
	a0 = math.Atan2(start.Y-center.Y, start.X-center.X)
	a1 := math.Atan2(end.Y-center.Y, end.X-center.X)
	sweep = a1 - a0
	if clockwise {
		if sweep > -Epsilon {
			sweep -= 2 * math.Pi
		}
	} else {
		if sweep < Epsilon {
			sweep += 2 * math.Pi
		}
	}
	return a0, sweep
}

// appendArcChords appends the interior chord points and the exact
// endpoint of an arc to pts. Radius drift between the start and end is
// interpolated so slightly inconsistent arcs stay continuous.
func appendArcChords(pts []Point, start, end, center Point, clockwise bool, step float64) []Point {
	r0 := start.Sub(center).Length()
	r1 := end.Sub(center).Length()
	a0, sweep := arcSweep(start, end, center, clockwise)

	n := int(math.Ceil(math.Abs(sweep) * math.Max(r0, r1) / step))
	if n < 1 {
		n = 1
	}
	for i := 1; i < n; i++ {
		t := float64(i) / float64(n)
		a := a0 + sweep*t
		r := r0 + (r1-r0)*t
		pts = append(pts, Point{X: center.X + r*math.Cos(a), Y: center.Y + r*math.Sin(a)})
	}
	return append(pts, end)
}

// arcLength returns the path length of an arc.
func arcLength(start, end, center Point, clockwise bool) float64 {
	r0 := start.Sub(center).Length()
	r1 := end.Sub(center).Length()
	_, sweep := arcSweep(start, end, center, clockwise)
	return math.Abs(sweep) * (r0 + r1) / 2
}

// arcBounds returns the bounding box of an arc, extending the endpoint
// box by any axis extreme the sweep passes through.
func arcBounds(start, end, center Point, clockwise bool) Rect {
	r := math.Max(start.Sub(center).Length(), end.Sub(center).Length())
	a0, sweep := arcSweep(start, end, center, clockwise)

	box := RectFrom(start, end)
	for q := 0; q < 4; q++ {
		theta := float64(q) * math.Pi / 2
		if !angleInSweep(a0, sweep, theta) {
			continue
		}
		box = box.ExtendPoint(Point{
			X: center.X + r*math.Cos(theta),
			Y: center.Y + r*math.Sin(theta),
		})
	}
	return box
}

// angleInSweep reports whether the absolute angle theta lies within the
// arc starting at a0 and sweeping by sweep.
func angleInSweep(a0, sweep, theta float64) bool {
	delta := math.Mod(theta-a0, 2*math.Pi)
	if sweep > 0 {
		if delta < 0 {
			delta += 2 * math.Pi
		}
		return delta <= sweep
	}
	if delta > 0 {
		delta -= 2 * math.Pi
	}
	return delta >= sweep
}
