// Package motion turns planned passes into an ordered machine
// instruction stream and encodes that stream as G-code.
//
// Emit is the single unit boundary: every canonical value is converted
// to the machine's unit system exactly once. EncodeGCode is a pure
// textual encoding with no I/O, so command streams stay inspectable and
// golden-testable.
package motion

import (
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
	"github.com/pcbforge/pcbforge/pkg/plan"
	"github.com/pcbforge/pcbforge/pkg/units"
)

// Command is one machine instruction. Coordinates and speeds carried by
// commands are already in the machine's unit system.
type Command interface {
	isCommand()
}

// EquipTool announces the active tool for the following motion.
type EquipTool struct {
	Name string
	Kind plan.ToolKind
}

func (EquipTool) isCommand() {}

// UnitMode selects the machine unit system for the stream.
type UnitMode struct {
	Imperial bool
}

func (UnitMode) isCommand() {}

// SetRapidSpeed latches the travel feed rate, in machine units per
// minute.
type SetRapidSpeed struct {
	Speed float64
}

func (SetRapidSpeed) isCommand() {}

// SetWorkSpeed latches the cutting feed rate, in machine units per
// minute.
type SetWorkSpeed struct {
	Speed float64
}

func (SetWorkSpeed) isCommand() {}

// SetPlungeSpeed latches the vertical feed rate, in machine units per
// minute.
type SetPlungeSpeed struct {
	Speed float64
}

func (SetPlungeSpeed) isCommand() {}

// SetPower drives a laser at the given fraction of its maximum power.
// Zero turns the beam off.
type SetPower struct {
	Ratio float64
}

func (SetPower) isCommand() {}

// SetSpindleSpeed spins a spindle at the given rate in revolutions per
// minute. Zero stops it.
type SetSpindleSpeed struct {
	RPM float64
}

func (SetSpindleSpeed) isCommand() {}

// InsertSequence splices verbatim initialization G-code into the
// stream.
type InsertSequence struct {
	Text string
}

func (InsertSequence) isCommand() {}

// MoveTo travels to a point at the rapid rate, without cutting.
type MoveTo struct {
	X, Y float64
}

func (MoveTo) isCommand() {}

// Plunge descends vertically to Z at the plunge rate.
type Plunge struct {
	Z float64
}

func (Plunge) isCommand() {}

// Retract lifts vertically to Z at the rapid rate.
type Retract struct {
	Z float64
}

func (Retract) isCommand() {}

// CutKind selects the cut interpolation.
type CutKind int

const (
	// Linear is a straight cut.
	Linear CutKind = iota
	// CW is a clockwise arc cut.
	CW
	// CCW is a counter-clockwise arc cut.
	CCW
)

// Cut moves to (X, Y) at the work rate while cutting. Arc cuts carry
// the center as an offset from the current position.
type Cut struct {
	Kind             CutKind
	X, Y             float64
	CenterI, CenterJ float64
}

func (Cut) isCommand() {}

// Machine is the physical envelope the emitter enforces.
type Machine struct {
	// Imperial selects inch-based machine units; the default is
	// millimeters.
	Imperial bool
	// JogSpeed is the travel speed between contours.
	JogSpeed units.Value
	// Width and Height bound the workspace; all commanded motion must
	// stay inside [0, Width] x [0, Height].
	Width  units.Value
	Height units.Value
}

// Params carries the per-stage process values the emitter needs,
// extracted from the cutting or engraving config by the pipeline.
type Params struct {
	Stage        string
	WorkSpeed    units.Value
	PlungeSpeed  units.Value
	TravelHeight units.Value
	LaserPower   units.Value
	SpindleSpeed units.Value
}

// Emit brackets planned passes with tool control and converts every
// value to the machine's unit system. Tool init sequences are not part
// of a stage stream; the pipeline splices them in once per output file.
//
// Laser stages emit no Z motion; the beam gates off for travel between
// paths. Spindle stages plunge to each pass depth and retract to the
// travel height between contours. A zero resolved power or spindle
// speed emits no activation commands at all, so a passive tool just
// traces. Any commanded point outside the workspace is a bounds error;
// nothing is clamped.
func Emit(passes []plan.Pass, tool plan.Tool, p Params, m Machine) ([]Command, error) {
	env, err := newEnvelope(m, p.Stage)
	if err != nil {
		return nil, err
	}
	for _, pass := range passes {
		for _, tp := range pass.Paths {
			if err := env.checkPath(tp); err != nil {
				return nil, err
			}
		}
	}

	conv, err := newConverter(m)
	if err != nil {
		return nil, err
	}

	work, err := conv.feed(p.WorkSpeed)
	if err != nil {
		return nil, err
	}
	jog, err := conv.feed(m.JogSpeed)
	if err != nil {
		return nil, err
	}

	cmds := []Command{
		EquipTool{Name: tool.Name, Kind: tool.Kind},
		UnitMode{Imperial: m.Imperial},
		SetRapidSpeed{Speed: jog},
		SetWorkSpeed{Speed: work},
	}

	if tool.Kind == plan.Laser {
		return emitLaser(cmds, passes, tool, p, conv)
	}
	return emitSpindle(cmds, passes, p, conv)
}

// emitLaser traces each pass with the beam gated around every path.
// Depth comes from repetition, never from Z motion.
func emitLaser(cmds []Command, passes []plan.Pass, tool plan.Tool, p Params, conv converter) ([]Command, error) {
	ratio, err := laserRatio(tool, p)
	if err != nil {
		return nil, err
	}

	for _, pass := range passes {
		for _, tp := range pass.Paths {
			cmds = append(cmds, MoveTo{X: conv.len(tp.Start.X), Y: conv.len(tp.Start.Y)})
			if ratio > 0 {
				cmds = append(cmds, SetPower{Ratio: ratio})
			}
			cmds = appendCuts(cmds, tp, conv)
			if ratio > 0 {
				cmds = append(cmds, SetPower{})
			}
		}
	}
	return cmds, nil
}

// emitSpindle spins up once, then plunges and retracts around every
// path at each pass depth.
func emitSpindle(cmds []Command, passes []plan.Pass, p Params, conv converter) ([]Command, error) {
	rpm, err := spindleRPM(p)
	if err != nil {
		return nil, err
	}
	plunge, err := conv.feed(p.PlungeSpeed)
	if err != nil {
		return nil, err
	}
	travelMM, err := canonicalOrZero(p.TravelHeight)
	if err != nil {
		return nil, err
	}
	travel := conv.len(travelMM)

	cmds = append(cmds, SetPlungeSpeed{Speed: plunge})
	if rpm > 0 {
		cmds = append(cmds, SetSpindleSpeed{RPM: rpm})
	}
	cmds = append(cmds, Retract{Z: travel})

	for _, pass := range passes {
		depthMM, err := pass.Depth.Canonical()
		if err != nil {
			return nil, err
		}
		depth := conv.len(depthMM.Magnitude)

		for _, tp := range pass.Paths {
			cmds = append(cmds,
				MoveTo{X: conv.len(tp.Start.X), Y: conv.len(tp.Start.Y)},
				Plunge{Z: depth},
			)
			cmds = appendCuts(cmds, tp, conv)
			cmds = append(cmds, Retract{Z: travel})
		}
	}

	if rpm > 0 {
		cmds = append(cmds, SetSpindleSpeed{})
	}
	return cmds, nil
}

// appendCuts encodes the toolpath segments, tracking the current point
// for arc center offsets.
func appendCuts(cmds []Command, tp plan.Toolpath, conv converter) []Command {
	cur := tp.Start
	for _, s := range tp.Segments {
		switch seg := s.(type) {
		case geom.Line:
			cmds = append(cmds, Cut{Kind: Linear, X: conv.len(seg.To.X), Y: conv.len(seg.To.Y)})
		case geom.ClockwiseArc:
			cmds = append(cmds, Cut{
				Kind: CW,
				X:    conv.len(seg.To.X), Y: conv.len(seg.To.Y),
				CenterI: conv.len(seg.Center.X - cur.X),
				CenterJ: conv.len(seg.Center.Y - cur.Y),
			})
		case geom.CounterClockwiseArc:
			cmds = append(cmds, Cut{
				Kind: CCW,
				X:    conv.len(seg.To.X), Y: conv.len(seg.To.Y),
				CenterI: conv.len(seg.Center.X - cur.X),
				CenterJ: conv.len(seg.Center.Y - cur.Y),
			})
		}
		cur = s.End()
	}
	return cmds
}

// laserRatio resolves the configured power as a fraction of the tool
// maximum.
func laserRatio(tool plan.Tool, p Params) (float64, error) {
	power, err := canonicalOrZero(p.LaserPower)
	if err != nil {
		return 0, err
	}
	if power == 0 {
		return 0, nil
	}
	max, err := tool.MaxPower.Canonical()
	if err != nil {
		return 0, err
	}
	if max.Magnitude <= 0 {
		return 0, errors.NewPlanning(p.Stage,
			"config requests %s but tool %q declares no maximum power", p.LaserPower, tool.Name)
	}
	ratio := power / max.Magnitude
	if ratio > 1 {
		return 0, errors.NewPlanning(p.Stage,
			"config requests %s, above the tool maximum %s", p.LaserPower, tool.MaxPower)
	}
	return ratio, nil
}

func spindleRPM(p Params) (float64, error) {
	return canonicalOrZero(p.SpindleSpeed)
}

// canonicalOrZero resolves a value to its canonical magnitude, treating
// the unset zero value as zero. Configs omit these fields for passive
// tools.
func canonicalOrZero(v units.Value) (float64, error) {
	if v.IsZero() && v.Unit == "" {
		return 0, nil
	}
	c, err := v.Canonical()
	if err != nil {
		return 0, err
	}
	return c.Magnitude, nil
}

// converter maps canonical values into machine units: lengths in mm or
// inch, feeds in machine units per minute.
type converter struct {
	lengthDiv float64
}

func newConverter(m Machine) (converter, error) {
	if m.Imperial {
		return converter{lengthDiv: 25.4}, nil
	}
	return converter{lengthDiv: 1}, nil
}

func (c converter) len(mm float64) float64 {
	return mm / c.lengthDiv
}

// feed converts a canonical speed to machine units per minute.
func (c converter) feed(v units.Value) (float64, error) {
	s, err := canonicalOrZero(v)
	if err != nil {
		return 0, err
	}
	return s * 60 / c.lengthDiv, nil
}

// envelope rejects motion outside the workspace, in canonical
// millimeters.
type envelope struct {
	stage string
	w, h  float64
}

func newEnvelope(m Machine, stage string) (envelope, error) {
	w, err := m.Width.Canonical()
	if err != nil {
		return envelope{}, err
	}
	h, err := m.Height.Canonical()
	if err != nil {
		return envelope{}, err
	}
	return envelope{stage: stage, w: w.Magnitude, h: h.Magnitude}, nil
}

func (e envelope) checkPoint(p geom.Point) error {
	if p.X < -geom.Epsilon || p.X > e.w+geom.Epsilon ||
		p.Y < -geom.Epsilon || p.Y > e.h+geom.Epsilon {
		return errors.NewBounds(e.stage, p.X, p.Y,
			"planned motion leaves the %gx%g mm workspace", e.w, e.h)
	}
	return nil
}

func (e envelope) checkPath(tp plan.Toolpath) error {
	if err := e.checkPoint(tp.Start); err != nil {
		return err
	}
	for _, s := range tp.Segments {
		if err := e.checkPoint(s.End()); err != nil {
			return err
		}
	}
	return nil
}
