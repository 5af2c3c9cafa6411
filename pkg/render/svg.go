// Package render draws classified artwork for the inspect command and
// the preview server: a hand-built polygon SVG view and a Graphviz
// rendering of the containment forest.
package render

import (
	"bytes"
	"fmt"
	"math"

	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/geom"
)

// Colors for the board view. Solid copper on substrate, hole outlines
// in the substrate color so nested voids read as cutouts.
const (
	substrateColor = "#1b3a1f"
	copperColor    = "#c87f33"
	outlineColor   = "#0e1a10"
)

// SVGOptions configures the polygon view.
type SVGOptions struct {
	// Width is the rendered pixel width. Zero uses 800.
	Width float64
	// Outlines draws contour outlines on top of the fills.
	Outlines bool
}

// ForestSVG renders a classified forest as an SVG board view. Fills
// paint in nesting order so holes overpaint the solids that contain
// them; the viewBox is the artwork bounding box with a small margin.
// Board Y grows upward, so the content group flips the SVG axis.
func ForestSVG(f *contour.Forest, opts SVGOptions) []byte {
	if opts.Width <= 0 {
		opts.Width = 800
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range f.Nodes {
		for _, p := range n.Ring {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if minX > maxX {
		minX, minY, maxX, maxY = 0, 0, 1, 1
	}
	margin := 0.05 * math.Max(maxX-minX, maxY-minY)
	if margin == 0 {
		margin = 1
	}
	minX -= margin
	minY -= margin
	maxX += margin
	maxY += margin

	w, h := maxX-minX, maxY-minY
	height := opts.Width * h / w

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="%.3f %.3f %.3f %.3f" width="%.0f" height="%.0f">`+"\n",
		minX, minY, w, h, opts.Width, height)
	fmt.Fprintf(&buf, `<rect x="%.3f" y="%.3f" width="%.3f" height="%.3f" fill="%s"/>`+"\n",
		minX, minY, w, h, substrateColor)
	fmt.Fprintf(&buf, `<g transform="translate(0,%.3f) scale(1,-1)">`+"\n", minY+maxY)

	// Shallow contours first so deeper ones overpaint them.
	order := make([]int, 0, len(f.Nodes))
	for _, root := range f.Roots {
		order = appendSubtree(order, f, root)
	}
	for _, i := range order {
		n := f.Nodes[i]
		fill := substrateColor
		if n.Solid {
			fill = copperColor
		}
		fmt.Fprintf(&buf, `<path d="%s" fill="%s"`, pathData(n.Ring), fill)
		if opts.Outlines {
			fmt.Fprintf(&buf, ` stroke="%s" stroke-width="%.3f"`, outlineColor, w/400)
		}
		fmt.Fprintf(&buf, `><title>%s (%s)</title></path>`+"\n", n.Label, n.Class)
	}

	buf.WriteString("</g>\n</svg>\n")
	return buf.Bytes()
}

// appendSubtree collects node indexes in depth-first order, parents
// before children.
func appendSubtree(order []int, f *contour.Forest, idx int) []int {
	order = append(order, idx)
	for _, child := range f.Nodes[idx].Children {
		order = appendSubtree(order, f, child)
	}
	return order
}

// pathData encodes a closed ring as an SVG path.
func pathData(ring geom.Ring) string {
	var b bytes.Buffer
	for i, p := range ring {
		cmd := 'L'
		if i == 0 {
			cmd = 'M'
		}
		fmt.Fprintf(&b, "%c%.3f %.3f ", cmd, p.X, p.Y)
	}
	b.WriteByte('Z')
	return b.String()
}
