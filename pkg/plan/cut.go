package plan

import (
	"math"

	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
	"github.com/pcbforge/pcbforge/pkg/units"
)

// CutBoard plans a cutting operation: selected contours are offset by
// the tool radius so the physical cut edge lands on the drawn boundary,
// then the full path set is retraced once per depth pass.
//
// Outer boundaries offset outward (the tool travels outside the part),
// inner holes offset into the hole interior. Drill-layer contours trace
// at the drawn diameter with no compensation.
func CutBoard(forest *contour.Forest, tool Tool, cfg CutConfig, opts Options) ([]Pass, error) {
	opts = opts.withDefaults()

	if err := checkToolKind(tool, cfg.LaserPower, cfg.SpindleSpeed, opts.Stage); err != nil {
		return nil, err
	}
	d, err := tool.DiameterMM()
	if err != nil {
		return nil, err
	}
	if d <= 0 {
		return nil, errors.NewPlanning(opts.Stage,
			"tool %q has no usable cutting diameter", tool.Name)
	}

	depths, err := sliceDepths(cfg, opts)
	if err != nil {
		return nil, err
	}

	nodes := forest.Select(cfg.Select)
	paths := make([]Toolpath, 0, len(nodes))
	for _, node := range nodes {
		ring := node.Ring
		if !node.FromDrill() {
			delta := d / 2
			if node.Class == contour.InnerHole {
				delta = -d / 2
			}
			offset, err := geom.OffsetRing(ring, delta, geom.CornerRound, opts.ChordStep)
			if err != nil {
				e := errors.NewPlanning(opts.Stage,
					"tool radius compensation collapsed contour %s: %v", node.Label, err)
				e.Contour = node.Label
				return nil, e
			}
			ring = offset
		}
		paths = append(paths, ringToolpath(ring))
	}

	passes := make([]Pass, len(depths))
	for i, depth := range depths {
		passes[i] = Pass{Depth: depth, Paths: paths}
	}
	return passes, nil
}

// sliceDepths splits the cut depth into per-pass depths: each pass
// descends by the pass depth, the final pass lands exactly on the cut
// depth. A non-integral ratio rounds the pass count up with a notice.
func sliceDepths(cfg CutConfig, opts Options) ([]units.Value, error) {
	cut, err := cfg.CutDepth.Canonical()
	if err != nil {
		return nil, err
	}
	per, err := cfg.PassDepth.Canonical()
	if err != nil {
		return nil, err
	}

	if cut.Magnitude == 0 {
		return nil, errors.NewPlanning(opts.Stage,
			"cut depth of zero plans zero passes")
	}
	if cut.Magnitude > 0 {
		return nil, errors.NewPlanning(opts.Stage,
			"cut depth %s must be negative (below the surface datum)", cfg.CutDepth)
	}
	if per.Magnitude <= 0 {
		return nil, errors.NewPlanning(opts.Stage,
			"pass depth %s must be positive", cfg.PassDepth)
	}

	total := -cut.Magnitude
	n := int(math.Ceil(total / per.Magnitude))
	if remainder := math.Mod(total, per.Magnitude); remainder > geom.Epsilon && per.Magnitude-remainder > geom.Epsilon {
		opts.Logger.Info("pass count rounded up",
			"stage", opts.Stage, "cut_depth", cfg.CutDepth.String(),
			"pass_depth", cfg.PassDepth.String(), "passes", n)
	}

	depths := make([]units.Value, n)
	for k := 1; k <= n; k++ {
		depth := -per.Magnitude * float64(k)
		if k == n {
			depth = cut.Magnitude
		}
		depths[k-1] = units.Millimeters(depth)
	}
	return depths, nil
}
