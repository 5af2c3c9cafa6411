// Package plan computes tool centerline paths from classified contours:
// contour selection, tool-radius compensation, depth slicing into
// passes, engrave raster fills, and backside mirroring.
//
// Planned passes are pure geometry in canonical millimeters; pkg/motion
// turns them into machine instructions.
package plan

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
	"github.com/pcbforge/pcbforge/pkg/units"
)

// ToolKind separates lasers from rotating spindles.
type ToolKind string

// Tool kinds referenced by process configs.
const (
	Laser   ToolKind = "laser"
	Spindle ToolKind = "spindle"
)

// Tool is the resolved physical tool for one stage. Lasers carry
// MaxPower and a point Diameter; spindles carry MaxSpeed and the
// selected end-mill Diameter.
type Tool struct {
	Name         string
	Kind         ToolKind
	Diameter     units.Value
	MaxPower     units.Value
	MaxSpeed     units.Value
	InitSequence string
}

// DiameterMM returns the tool diameter in canonical millimeters.
func (t Tool) DiameterMM() (float64, error) {
	d, err := t.Diameter.Canonical()
	if err != nil {
		return 0, err
	}
	return d.Magnitude, nil
}

// CutConfig parameterizes a board-cutting operation.
type CutConfig struct {
	Select       contour.Selection
	WorkSpeed    units.Value
	PlungeSpeed  units.Value
	TravelHeight units.Value
	CutDepth     units.Value // negative, below the surface datum
	PassDepth    units.Value // positive per-pass increment
	LaserPower   units.Value
	SpindleSpeed units.Value
}

// EngraveConfig parameterizes a mask-engraving operation.
type EngraveConfig struct {
	Select       contour.Selection
	Invert       bool
	Passes       int
	WorkSpeed    units.Value
	LaserPower   units.Value
	SpindleSpeed units.Value
}

// Toolpath is one continuous tool motion at a single depth.
type Toolpath struct {
	Start    geom.Point
	Segments []geom.Segment
	Closed   bool
}

// LastPoint returns the endpoint of the final segment.
func (t Toolpath) LastPoint() geom.Point {
	if len(t.Segments) == 0 {
		return t.Start
	}
	return t.Segments[len(t.Segments)-1].End()
}

// Pass is one depth layer: every path is traced before the next pass
// descends.
type Pass struct {
	Depth units.Value
	Paths []Toolpath
}

// Options carries per-stage planning context.
type Options struct {
	// Stage names the output stage for error and log context.
	Stage string
	// ChordStep is the arc-linearization step for offset fillets.
	ChordStep float64
	// Logger receives informational notices. Nil stays silent.
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	opts := o
	if opts.ChordStep <= 0 {
		opts.ChordStep = geom.DefaultChordStep
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return opts
}

// ringToolpath traces a closed ring as line segments.
func ringToolpath(r geom.Ring) Toolpath {
	tp := Toolpath{Start: r[0], Closed: true}
	for _, p := range r[1:] {
		tp.Segments = append(tp.Segments, geom.Line{To: p})
	}
	return tp
}

// checkToolKind rejects a process config whose power parameters do not
// match the tool kind before any geometry is planned.
func checkToolKind(tool Tool, laserPower, spindleSpeed units.Value, stage string) error {
	if tool.Kind == Laser && !spindleSpeed.IsZero() {
		return errors.NewPlanning(stage,
			"config sets spindle_speed but tool %q is a laser", tool.Name)
	}
	if tool.Kind == Spindle && !laserPower.IsZero() {
		return errors.NewPlanning(stage,
			"config sets laser_power but tool %q is a spindle", tool.Name)
	}
	return nil
}

// MirrorPasses reflects every planned path across the vertical line
// x = about, for backside stages. Applying the same mirror twice
// restores the input exactly.
func MirrorPasses(passes []Pass, about float64) []Pass {
	out := make([]Pass, len(passes))
	for i, pass := range passes {
		mirrored := Pass{Depth: pass.Depth, Paths: make([]Toolpath, len(pass.Paths))}
		for j, tp := range pass.Paths {
			c := geom.Contour{Start: tp.Start, Segments: tp.Segments}.MirrorX(about)
			mirrored.Paths[j] = Toolpath{Start: c.Start, Segments: c.Segments, Closed: tp.Closed}
		}
		out[i] = mirrored
	}
	return out
}
