package contour

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
)

// Class states what a contour bounds.
type Class int

const (
	// OuterBoundary is a top-level contour: the outline of a part.
	OuterBoundary Class = iota
	// InnerHole is a contour nested inside another.
	InnerHole
)

// String returns the class name.
func (c Class) String() string {
	if c == InnerHole {
		return "inner-hole"
	}
	return "outer-boundary"
}

// Node is one classified polygon in the containment forest.
type Node struct {
	Polygon

	// Parent indexes the smallest enclosing node, -1 for roots.
	Parent int
	// Children indexes directly nested nodes.
	Children []int
	// Depth is the nesting level, 0 for roots.
	Depth int
	// Class is OuterBoundary at depth 0, InnerHole below.
	Class Class
	// Solid reports whether the contour bounds material rather than a
	// void: even nesting depth, unless the polygon clears it.
	Solid bool
}

// Forest is the containment hierarchy of a polygon set.
type Forest struct {
	Nodes []Node
	Roots []int
}

// Selection picks which classified contours an operation acts on.
type Selection int

const (
	// SelectOuter keeps top-level outer boundaries only.
	SelectOuter Selection = iota
	// SelectInner keeps nested hole contours only.
	SelectInner
	// SelectAll keeps every contour.
	SelectAll
)

// String returns the selection name.
func (s Selection) String() string {
	switch s {
	case SelectOuter:
		return "outer"
	case SelectInner:
		return "inner"
	}
	return "all"
}

// treeEntry pairs a polygon index with its bounding rect for the
// candidate-parent index.
type treeEntry struct {
	rect rtreego.Rect
	idx  int
}

// Bounds implements rtreego.Spatial.
func (e treeEntry) Bounds() rtreego.Rect { return e.rect }

// Classify nests polygons by containment. Each polygon's parent is the
// smallest enclosing polygon whose ring contains its representative
// point; an R-tree over bounding boxes prefilters the candidates. Depth
// parity decides solidity, with clear polarity knocking a would-be
// solid contour back out.
func Classify(polys []Polygon) (*Forest, error) {
	n := len(polys)
	f := &Forest{Nodes: make([]Node, n)}

	areas := make([]float64, n)
	reps := make([]geom.Point, n)
	tree := rtreego.NewTree(2, 4, 8)
	for i, p := range polys {
		if !p.Ring.Closed() {
			return nil, errors.NewGeometry(p.Label, "classification requires closed rings")
		}
		areas[i] = math.Abs(p.Ring.SignedArea())
		reps[i] = p.Ring.RepresentativePoint()
		tree.Insert(treeEntry{rect: boundingRect(p.Ring.BoundingBox()), idx: i})
	}

	// Parent assignment. Containment of the representative point plus
	// a strictly larger area rules out self-matches and mutual pairs.
	for i := range polys {
		parent := -1
		parentArea := math.Inf(1)

		probe, _ := rtreego.NewRect(rtreego.Point{reps[i].X, reps[i].Y}, []float64{pointExtent, pointExtent})
		for _, hit := range tree.SearchIntersect(probe) {
			j := hit.(treeEntry).idx
			if j == i || !polys[j].Ring.ContainsPoint(reps[i]) {
				continue
			}
			// Equal areas cannot nest: two coincident contours could
			// each claim the other.
			if math.Abs(areas[j]-areas[i]) < geom.Epsilon {
				return nil, errors.NewGeometry(polys[i].Label,
					"ambiguous containment with equal-area contour %s", polys[j].Label)
			}
			// A smaller polygon cannot enclose this one; concentric
			// geometry routinely puts a ring's representative point
			// inside its own hole contour.
			if areas[j] < areas[i] {
				continue
			}
			if math.Abs(areas[j]-parentArea) < geom.Epsilon {
				return nil, errors.NewGeometry(polys[i].Label,
					"ambiguous containment: equal-area contours enclose %s", polys[i].Label)
			}
			if areas[j] < parentArea {
				parent, parentArea = j, areas[j]
			}
		}

		f.Nodes[i] = Node{Polygon: polys[i], Parent: parent}
		if parent >= 0 {
			f.Nodes[parent].Children = append(f.Nodes[parent].Children, i)
		} else {
			f.Roots = append(f.Roots, i)
		}
	}

	// Children of later polygons may precede their parent in the arena,
	// so depths settle by walking down from the roots.
	var descend func(idx, depth int)
	descend = func(idx, depth int) {
		node := &f.Nodes[idx]
		node.Depth = depth
		if depth == 0 {
			node.Class = OuterBoundary
		} else {
			node.Class = InnerHole
		}
		node.Solid = depth%2 == 0 && node.Polarity != artwork.Clear
		for _, c := range node.Children {
			descend(c, depth+1)
		}
	}
	for _, r := range f.Roots {
		descend(r, 0)
	}
	return f, nil
}

// pointExtent is the side length of the degenerate probe rect used for
// point queries; rtreego rejects zero-extent rects.
const pointExtent = 1e-12

// boundingRect converts a geometry bounding box to an R-tree rect,
// padding degenerate extents so the index accepts them.
func boundingRect(b geom.Rect) rtreego.Rect {
	w := math.Max(b.Width(), pointExtent)
	h := math.Max(b.Height(), pointExtent)
	r, err := rtreego.NewRect(rtreego.Point{b.Min.X, b.Min.Y}, []float64{w, h})
	if err != nil {
		// Reachable only through NaN coordinates, which the builder
		// never produces.
		panic(err)
	}
	return r
}

// Select returns the nodes a selection keeps, in arena order.
func (f *Forest) Select(sel Selection) []*Node {
	var out []*Node
	for i := range f.Nodes {
		node := &f.Nodes[i]
		switch sel {
		case SelectOuter:
			if node.Class == OuterBoundary {
				out = append(out, node)
			}
		case SelectInner:
			if node.Class == InnerHole {
				out = append(out, node)
			}
		default:
			out = append(out, node)
		}
	}
	return out
}

// Invert returns a copy of the forest with every Solid flag swapped.
// Geometry and structure are shared unchanged.
func (f *Forest) Invert() *Forest {
	out := &Forest{
		Nodes: make([]Node, len(f.Nodes)),
		Roots: f.Roots,
	}
	for i, node := range f.Nodes {
		node.Solid = !node.Solid
		out.Nodes[i] = node
	}
	return out
}

// SolidNodes returns the nodes bounding material, in arena order.
func (f *Forest) SolidNodes() []*Node {
	var out []*Node
	for i := range f.Nodes {
		if f.Nodes[i].Solid {
			out = append(out, &f.Nodes[i])
		}
	}
	return out
}
