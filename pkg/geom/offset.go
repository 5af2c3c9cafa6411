package geom

import (
	"math"

	"github.com/pcbforge/pcbforge/pkg/errors"
)

// CornerStyle selects how OffsetRing joins displaced edges at corners
// that open up under the offset.
type CornerStyle int

const (
	// CornerRound fills opened corners with a circular fillet.
	CornerRound CornerStyle = iota
	// CornerMiter extends the displaced edges to their intersection.
	CornerMiter
)

// OffsetRing displaces the ring boundary by radius: positive values grow
// the ring away from its interior, negative values shrink it, regardless
// of winding. Corners that open under the offset are joined per style;
// corners that close are trimmed to the displaced-edge intersection.
// Fillet arcs are approximated by chords no longer than chordStep.
//
// Returns a geometry error when the offset collapses the ring: the
// result degenerates, flips winding, or becomes self-intersecting.
func OffsetRing(ring Ring, radius float64, style CornerStyle, chordStep float64) (Ring, error) {
	if !ring.Closed() {
		return nil, errors.New(errors.KindGeometry, "offset requires a closed ring")
	}
	if chordStep <= 0 {
		chordStep = DefaultChordStep
	}
	if math.Abs(radius) < Epsilon {
		out := make(Ring, len(ring))
		copy(out, ring)
		return out, nil
	}

	verts := dedupe(ring.Vertices())
	n := len(verts)
	if n < 3 {
		return nil, errors.New(errors.KindGeometry, "offset requires at least three distinct vertices")
	}

	w := 1.0
	if ring.Winding() == CW {
		w = -1
	}

	// Edge directions and outward unit normals. For a counter-clockwise
	// ring the interior lies left of each edge, so outward is the
	// right-hand perpendicular.
	dirs := make([]Point, n)
	norms := make([]Point, n)
	for i := 0; i < n; i++ {
		dirs[i] = verts[(i+1)%n].Sub(verts[i]).Normalize()
		norms[i] = Point{X: dirs[i].Y * w, Y: -dirs[i].X * w}
	}

	grow := 1.0
	if radius < 0 {
		grow = -1
	}

	var out Ring
	for i := 0; i < n; i++ {
		prev := (i + n - 1) % n
		v := verts[i]
		prevEnd := v.Add(norms[prev].Scale(radius))
		curStart := v.Add(norms[i].Scale(radius))

		turn := dirs[prev].Cross(dirs[i])
		if math.Abs(turn) < Epsilon {
			// Collinear continuation or a spike reversal: keep the
			// displaced edge start.
			out = append(out, curStart)
			continue
		}

		if turn*w*grow > 0 {
			// The corner opens under this offset.
			switch style {
			case CornerMiter:
				p, ok := lineIntersection(prevEnd, dirs[prev], curStart, dirs[i])
				if ok {
					out = append(out, p)
				} else {
					out = append(out, prevEnd, curStart)
				}
			default:
				out = append(out, prevEnd)
				out = appendFillet(out, v, prevEnd, curStart, turn, chordStep)
				out = append(out, curStart)
			}
			continue
		}

		// The corner closes: trim to the displaced-edge intersection.
		p, ok := lineIntersection(prevEnd, dirs[prev], curStart, dirs[i])
		if ok {
			out = append(out, p)
		} else {
			out = append(out, prevEnd, curStart)
		}
	}
	out = Ring(dedupe(out))
	out = append(out, out[0])
	// Trimmed corners on a chorded source leave tiny loops where
	// neighboring displaced edges cross; excise them before judging
	// the ring.
	out = trimLocalLoops(out)

	if len(out) < 4 || out.IsDegenerate() {
		return nil, errors.New(errors.KindGeometry, "offset by %.4f collapsed the ring", radius)
	}
	if out.Winding() != ring.Winding() {
		return nil, errors.New(errors.KindGeometry, "offset by %.4f flipped the ring winding", radius)
	}
	// Every point of a valid offset lies |radius| from the source
	// boundary. A shrink past the medial axis inverts the ring through
	// itself, which preserves winding; the shortfall in distance is
	// what gives it away. The slack absorbs chord flattening.
	minDist := math.Abs(radius) - chordStep - Epsilon
	for _, p := range out.Vertices() {
		if distanceToRing(p, verts) < minDist {
			return nil, errors.New(errors.KindGeometry, "offset by %.4f collapsed the ring", radius)
		}
	}
	if out.SelfIntersects() {
		return nil, errors.New(errors.KindGeometry, "offset by %.4f produced a self-intersecting ring", radius)
	}
	return out, nil
}

// trimLocalLoops removes the smaller loop at each proper edge crossing,
// splicing the ring back together at the crossing point. Crossings are
// re-scanned after every excision until none remain.
func trimLocalLoops(r Ring) Ring {
	for pass := 0; pass < len(r); pass++ {
		i, j, p, found := firstCrossing(r)
		if !found {
			return r
		}
		n := len(r) - 1
		inner := make([]Point, 0, j-i+1)
		inner = append(inner, p)
		inner = append(inner, r[i+1:j+1]...)
		outer := make([]Point, 0, n-(j-i)+1)
		outer = append(outer, p)
		outer = append(outer, r[j+1:n]...)
		outer = append(outer, r[:i+1]...)

		innerRing := CloseRing(inner)
		outerRing := CloseRing(outer)
		if math.Abs(innerRing.SignedArea()) > math.Abs(outerRing.SignedArea()) {
			r = innerRing
		} else {
			r = outerRing
		}
	}
	return r
}

// firstCrossing finds the first pair of non-adjacent edges (i, j) that
// properly cross, along with the crossing point.
func firstCrossing(r Ring) (int, int, Point, bool) {
	n := len(r) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if !properIntersect(r[i], r[i+1], r[j], r[j+1]) {
				continue
			}
			p, ok := lineIntersection(r[i], r[i+1].Sub(r[i]), r[j], r[j+1].Sub(r[j]))
			if !ok {
				continue
			}
			return i, j, p, true
		}
	}
	return 0, 0, Point{}, false
}

// distanceToRing returns the minimum distance from p to the closed
// polyline through verts.
func distanceToRing(p Point, verts []Point) float64 {
	min := math.Inf(1)
	for i := range verts {
		if d := distanceToSegment(p, verts[i], verts[(i+1)%len(verts)]); d < min {
			min = d
		}
	}
	return min
}

// distanceToSegment returns the distance from p to segment ab.
func distanceToSegment(p, a, b Point) float64 {
	ab := b.Sub(a)
	l2 := ab.Dot(ab)
	if l2 < Epsilon*Epsilon {
		return p.DistanceTo(a)
	}
	t := p.Sub(a).Dot(ab) / l2
	t = math.Max(0, math.Min(1, t))
	return p.DistanceTo(a.Add(ab.Scale(t)))
}

// dedupe drops consecutive duplicate vertices, including a duplicate
// wraparound pair.
func dedupe(verts []Point) []Point {
	out := make([]Point, 0, len(verts))
	for _, v := range verts {
		if len(out) == 0 || !v.Equals(out[len(out)-1]) {
			out = append(out, v)
		}
	}
	if len(out) > 1 && out[0].Equals(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out
}

// lineIntersection intersects the infinite lines p + t*pd and q + u*qd.
func lineIntersection(p, pd, q, qd Point) (Point, bool) {
	den := pd.Cross(qd)
	if math.Abs(den) < Epsilon {
		return Point{}, false
	}
	t := q.Sub(p).Cross(qd) / den
	return p.Add(pd.Scale(t)), true
}

// appendFillet appends the interior chord points of a circular fillet
// around corner v from point a to point b, sweeping in the turn
// direction. The fillet endpoints themselves are appended by the caller.
func appendFillet(out Ring, v, a, b Point, turn, chordStep float64) Ring {
	ra := a.Sub(v)
	rb := b.Sub(v)
	radius := ra.Length()

	a0 := math.Atan2(ra.Y, ra.X)
	a1 := math.Atan2(rb.Y, rb.X)
	sweep := a1 - a0
	if turn > 0 {
		if sweep < -Epsilon {
			sweep += 2 * math.Pi
		}
	} else {
		if sweep > Epsilon {
			sweep -= 2 * math.Pi
		}
	}

	n := int(math.Ceil(math.Abs(sweep) * radius / chordStep))
	for i := 1; i < n; i++ {
		angle := a0 + sweep*float64(i)/float64(n)
		out = append(out, Point{
			X: v.X + radius*math.Cos(angle),
			Y: v.Y + radius*math.Sin(angle),
		})
	}
	return out
}
