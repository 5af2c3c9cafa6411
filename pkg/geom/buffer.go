package geom

import (
	"math"

	"github.com/pcbforge/pcbforge/pkg/errors"
)

// BufferPath inflates an open polyline into a closed ribbon ring of
// the given half-width: both sides are displaced perpendicular to the
// path and the ends are closed with semicircle caps. Outer corners are
// filleted with chords no longer than chordStep; inner corners are
// trimmed to the displaced-edge intersection. This is the stroke to
// ribbon projection: a Minkowski sum of the path with a circle of
// radius halfWidth.
//
// A closed input path must be buffered as two OffsetRing calls (outer
// and inner boundary) instead; BufferPath rejects it.
func BufferPath(pts []Point, halfWidth float64, chordStep float64) (Ring, error) {
	if halfWidth <= Epsilon {
		return nil, errors.New(errors.KindGeometry, "path buffer requires a positive half-width")
	}
	if chordStep <= 0 {
		chordStep = DefaultChordStep
	}

	pts = dedupe(pts)
	if len(pts) < 2 {
		return nil, errors.New(errors.KindGeometry, "path buffer requires at least two distinct points")
	}
	if pts[0].Equals(pts[len(pts)-1]) && len(pts) > 2 {
		return nil, errors.New(errors.KindGeometry, "closed paths must be buffered as ring offsets")
	}

	n := len(pts)
	dirs := make([]Point, n-1)
	for i := 0; i < n-1; i++ {
		dirs[i] = pts[i+1].Sub(pts[i]).Normalize()
	}

	var out Ring

	// One side walking forward, a cap, the other side walking backward,
	// and a cap back to the start. Both sides displace to the right of
	// travel, which keeps the ring counter-clockwise.
	out = bufferSide(out, pts, dirs, halfWidth, chordStep, false)
	out = appendCap(out, pts[n-1], dirs[n-2], halfWidth, chordStep)
	out = bufferSide(out, pts, dirs, halfWidth, chordStep, true)
	out = appendCap(out, pts[0], dirs[0].Scale(-1), halfWidth, chordStep)

	out = append(out, out[0])
	if out.IsDegenerate() {
		return nil, errors.New(errors.KindGeometry, "path buffer produced a degenerate ring")
	}
	return out, nil
}

// bufferSide appends one displaced side of the ribbon. When reverse is
// set the path is walked backward, which displaces the opposite side.
func bufferSide(out Ring, pts []Point, dirs []Point, halfWidth, chordStep float64, reverse bool) Ring {
	n := len(pts)

	at := func(i int) (Point, Point) {
		if !reverse {
			return pts[i], dirs[min(i, n-2)]
		}
		// Walking backward: point n-1-i, direction negated.
		return pts[n-1-i], dirs[max(n-2-i, 0)].Scale(-1)
	}

	right := func(d Point) Point { return Point{X: d.Y, Y: -d.X} }

	skip := false
	for i := 0; i < n-1; i++ {
		p, d := at(i)
		normal := right(d)
		if !skip {
			out = append(out, p.Add(normal.Scale(halfWidth)))
		}
		skip = false

		q, nd := at(i + 1)
		if i+1 == n-1 {
			out = append(out, q.Add(normal.Scale(halfWidth)))
			continue
		}

		// Join at the interior vertex.
		prevEnd := q.Add(normal.Scale(halfWidth))
		nextStart := q.Add(right(nd).Scale(halfWidth))
		turn := d.Cross(nd)
		switch {
		case math.Abs(turn) < Epsilon:
			out = append(out, prevEnd)
		case turn > 0:
			// This side is outside the turn: round fillet. The next
			// iteration appends nextStart itself.
			out = append(out, prevEnd)
			out = appendFillet(out, q, prevEnd, nextStart, turn, chordStep)
		default:
			// Inside the turn: trim to the displaced-edge intersection.
			if hit, ok := lineIntersection(prevEnd, d, nextStart, nd); ok {
				out = append(out, hit)
				skip = true
			} else {
				out = append(out, prevEnd)
			}
		}
	}
	return out
}

// appendCap appends a semicircle cap around tip: a counter-clockwise
// sweep from the right offset of the incoming direction to its left.
func appendCap(out Ring, tip Point, dir Point, halfWidth, chordStep float64) Ring {
	a0 := math.Atan2(-dir.X, dir.Y)

	n := int(math.Ceil(math.Pi * halfWidth / chordStep))
	if n < 2 {
		n = 2
	}
	for i := 1; i < n; i++ {
		a := a0 + math.Pi*float64(i)/float64(n)
		out = append(out, Point{
			X: tip.X + halfWidth*math.Cos(a),
			Y: tip.Y + halfWidth*math.Sin(a),
		})
	}
	return out
}
