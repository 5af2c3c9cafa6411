package plan

import (
	"sort"

	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
	"github.com/pcbforge/pcbforge/pkg/units"
)

// EngraveMask plans a mask-engraving operation. Selected contours are
// traced at the drawn boundary with no radius compensation; contours
// bounding solid material additionally get a raster fill so the area is
// removed, not just outlined. Invert swaps the solid designation before
// filtering, leaving geometry untouched.
func EngraveMask(forest *contour.Forest, tool Tool, cfg EngraveConfig, opts Options) ([]Pass, error) {
	opts = opts.withDefaults()

	if err := checkToolKind(tool, cfg.LaserPower, cfg.SpindleSpeed, opts.Stage); err != nil {
		return nil, err
	}
	pitch, err := tool.DiameterMM()
	if err != nil {
		return nil, err
	}

	repeats := cfg.Passes
	if repeats <= 0 {
		repeats = 1
	}

	if cfg.Invert {
		forest = forest.Invert()
	}

	var paths []Toolpath
	for _, node := range forest.Select(cfg.Select) {
		paths = append(paths, ringToolpath(node.Ring))
		if !node.Solid {
			continue
		}
		if pitch <= 0 {
			return nil, errors.NewPlanning(opts.Stage,
				"tool %q has no usable diameter for area fill", tool.Name)
		}
		paths = append(paths, rasterFill(node, forest, pitch)...)
	}

	passes := make([]Pass, repeats)
	for i := range passes {
		passes[i] = Pass{Depth: units.Millimeters(0), Paths: paths}
	}
	return passes, nil
}

// rasterFill sweeps horizontal scanlines at the tool-diameter pitch
// across a solid contour, clipping even-odd against the contour ring
// and its immediate children. Rows alternate direction so the tool
// never retraces an empty row.
func rasterFill(node *contour.Node, forest *contour.Forest, pitch float64) []Toolpath {
	box := node.Ring.BoundingBox()

	var paths []Toolpath
	leftToRight := true
	for y := box.Min.Y + pitch/2; y < box.Max.Y; y += pitch {
		xs := node.Ring.ScanlineCrossings(y)
		for _, child := range node.Children {
			xs = append(xs, forest.Nodes[child].Ring.ScanlineCrossings(y)...)
		}
		sort.Float64s(xs)

		row := make([]Toolpath, 0, len(xs)/2)
		for i := 0; i+1 < len(xs); i += 2 {
			x0, x1 := xs[i], xs[i+1]
			if x1-x0 < geom.Epsilon {
				continue
			}
			if !leftToRight {
				x0, x1 = x1, x0
			}
			row = append(row, Toolpath{
				Start:    geom.Point{X: x0, Y: y},
				Segments: []geom.Segment{geom.Line{To: geom.Point{X: x1, Y: y}}},
			})
		}
		if !leftToRight {
			for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
				row[i], row[j] = row[j], row[i]
			}
		}
		if len(row) > 0 {
			paths = append(paths, row...)
			leftToRight = !leftToRight
		}
	}
	return paths
}
