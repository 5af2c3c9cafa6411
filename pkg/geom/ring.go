package geom

import "math"

// Winding is the orientation of a closed loop.
type Winding int

const (
	// CW is clockwise winding (negative signed area).
	CW Winding = iota
	// CCW is counter-clockwise winding (positive signed area).
	CCW
)

// String returns the winding name.
func (w Winding) String() string {
	if w == CCW {
		return "ccw"
	}
	return "cw"
}

// Ring is a closed point loop whose last point repeats the first.
type Ring []Point

// CloseRing normalizes a point chain into a Ring, appending the first
// point when the chain does not already end on it.
func CloseRing(pts []Point) Ring {
	if len(pts) == 0 {
		return nil
	}
	r := make(Ring, len(pts), len(pts)+1)
	copy(r, pts)
	if !r[0].Equals(r[len(r)-1]) {
		r = append(r, r[0])
	}
	return r
}

// Closed reports whether the ring has at least four points and its last
// point repeats the first.
func (r Ring) Closed() bool {
	return len(r) >= 4 && r[0].Equals(r[len(r)-1])
}

// Vertices returns the distinct loop vertices without the closing repeat.
func (r Ring) Vertices() []Point {
	if len(r) == 0 {
		return nil
	}
	return r[:len(r)-1]
}

// SignedArea returns the shoelace area: positive for counter-clockwise
// winding.
func (r Ring) SignedArea() float64 {
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		sum += r[i].Cross(r[i+1])
	}
	return sum / 2
}

// Winding returns the loop orientation.
func (r Ring) Winding() Winding {
	if r.SignedArea() >= 0 {
		return CCW
	}
	return CW
}

// Reversed returns a copy with the opposite winding.
func (r Ring) Reversed() Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

// BoundingBox returns the bounding box of the ring.
func (r Ring) BoundingBox() Rect {
	return BoundsOf(r)
}

// IsDegenerate reports whether the enclosed area vanishes.
func (r Ring) IsDegenerate() bool {
	return math.Abs(r.SignedArea()) < Epsilon
}

// Centroid returns the area-weighted centroid, or the vertex mean for a
// degenerate ring.
func (r Ring) Centroid() Point {
	n := len(r) - 1
	if n < 1 {
		return Point{}
	}
	a := r.SignedArea()
	if math.Abs(a) < Epsilon {
		var sum Point
		for _, p := range r[:n] {
			sum = sum.Add(p)
		}
		return sum.Scale(1 / float64(n))
	}
	var cx, cy float64
	for i := 0; i < n; i++ {
		cross := r[i].Cross(r[i+1])
		cx += (r[i].X + r[i+1].X) * cross
		cy += (r[i].Y + r[i+1].Y) * cross
	}
	return Point{X: cx / (6 * a), Y: cy / (6 * a)}
}

// ContainsPoint reports whether p lies inside the ring by even-odd ray
// casting. Points on the boundary are not reliably classified.
func (r Ring) ContainsPoint(p Point) bool {
	inside := false
	for i := 0; i < len(r)-1; i++ {
		a, b := r[i], r[i+1]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// RepresentativePoint returns a point in the ring interior: the centroid
// when it lies inside, otherwise the first contained short-diagonal
// midpoint.
func (r Ring) RepresentativePoint() Point {
	c := r.Centroid()
	if r.ContainsPoint(c) {
		return c
	}
	n := len(r) - 1
	for span := 2; span <= 3; span++ {
		for i := 0; i < n; i++ {
			m := r[i].Add(r[(i+span)%n]).Scale(0.5)
			if r.ContainsPoint(m) {
				return m
			}
		}
	}
	return c
}

// ScanlineCrossings returns the unsorted x coordinates where the
// horizontal line at y crosses ring edges. Pairing sorted crossings
// gives the even-odd covered intervals.
func (r Ring) ScanlineCrossings(y float64) []float64 {
	var xs []float64
	for i := 0; i < len(r)-1; i++ {
		a, b := r[i], r[i+1]
		if (a.Y > y) != (b.Y > y) {
			xs = append(xs, a.X+(y-a.Y)/(b.Y-a.Y)*(b.X-a.X))
		}
	}
	return xs
}

// SelfIntersects reports whether any two non-adjacent edges properly
// cross. Edges that merely touch at shared vertices do not count.
func (r Ring) SelfIntersects() bool {
	n := len(r) - 1
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if properIntersect(r[i], r[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

// orient returns the orientation of c relative to the directed line ab:
// positive when c lies left of ab.
func orient(a, b, c Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// properIntersect reports whether segments ab and cd cross at a single
// interior point of both.
func properIntersect(a, b, c, d Point) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}
