package geom

// MirrorPointX reflects p across the vertical line x = about.
func MirrorPointX(p Point, about float64) Point {
	return Point{X: 2*about - p.X, Y: p.Y}
}

// MirrorX reflects each point across the vertical line x = about.
// Applying the same mirror twice restores the input.
func MirrorX(pts []Point, about float64) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = MirrorPointX(p, about)
	}
	return out
}

// MirrorX reflects the contour across the vertical line x = about.
// Mirroring reverses arc orientation.
func (c Contour) MirrorX(about float64) Contour {
	out := Contour{
		Start:    MirrorPointX(c.Start, about),
		Segments: make([]Segment, len(c.Segments)),
	}
	for i, s := range c.Segments {
		switch seg := s.(type) {
		case Line:
			out.Segments[i] = Line{To: MirrorPointX(seg.To, about)}
		case ClockwiseArc:
			out.Segments[i] = CounterClockwiseArc{
				To:     MirrorPointX(seg.To, about),
				Center: MirrorPointX(seg.Center, about),
			}
		case CounterClockwiseArc:
			out.Segments[i] = ClockwiseArc{
				To:     MirrorPointX(seg.To, about),
				Center: MirrorPointX(seg.Center, about),
			}
		}
	}
	return out
}
