package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/motion"
	"github.com/pcbforge/pcbforge/pkg/plan"
	"github.com/pcbforge/pcbforge/pkg/units"
)

// Operation names a stage kind in a job file.
type Operation string

// Stage operations.
const (
	OpCutBoard    Operation = "cut_board"
	OpEngraveMask Operation = "engrave_mask"
)

// Job is a fully resolved build plan. Every reference has been checked,
// every quantity dimension-validated, and every init sequence read; the
// pipeline consumes it without touching configuration files again.
type Job struct {
	ProjectName   string
	BoardVersion  string
	AlignBackside bool

	// Dir is the job file's directory; artwork paths are resolved
	// against it.
	Dir string

	Outputs []Output
}

// Output is one G-code file to produce from an ordered stage list.
type Output struct {
	File   string
	Stages []Stage
}

// Stage is one resolved operation contributing to an output file.
// Exactly one of Cut and Engrave is set, matching Operation.
type Stage struct {
	Name        string
	Operation   Operation
	ArtworkPath string
	DrillSource bool
	Backside    bool

	MachineName string
	ConfigName  string

	Tool    plan.Tool
	Machine motion.Machine
	Cut     *plan.CutConfig
	Engrave *plan.EngraveConfig
	Params  motion.Params
}

// machineEntry pairs a machine spec with the directory of the file that
// declared it, for resolving init_sequence_file paths.
type machineEntry struct {
	spec machineSpec
	dir  string
}

// Resolve merges job-file machines over the global inventory, applies
// defaults, validates every reference and quantity, and returns the
// immutable Job. A nil global is valid when the job file declares its
// own machines.
func Resolve(g *Global, f *Forge) (*Job, error) {
	machines := map[string]machineEntry{}
	var defaultCutter, defaultEngraver string
	if g != nil {
		for name, spec := range g.spec.Machines {
			machines[name] = machineEntry{spec: spec, dir: g.Dir}
		}
		defaultCutter = g.spec.DefaultCutter
		defaultEngraver = g.spec.DefaultEngraver
	}
	for name, spec := range f.spec.Machines {
		machines[name] = machineEntry{spec: spec, dir: f.Dir}
	}

	if f.spec.ProjectName == "" {
		return nil, errors.New(errors.KindConfig, "%s: project_name is required", f.Path)
	}
	if len(f.spec.Outputs) == 0 {
		return nil, errors.New(errors.KindConfig, "%s: no outputs declared", f.Path)
	}

	job := &Job{
		ProjectName:   f.spec.ProjectName,
		BoardVersion:  f.spec.BoardVersion,
		AlignBackside: true,
		Dir:           f.Dir,
	}
	if f.spec.AlignBackside != nil {
		job.AlignBackside = *f.spec.AlignBackside
	}

	seen := map[string]bool{}
	for _, out := range f.spec.Outputs {
		if out.File == "" {
			return nil, errors.New(errors.KindConfig, "%s: output without a file", f.Path)
		}
		if seen[out.File] {
			return nil, errors.New(errors.KindConfig, "%s: output %s declared twice", f.Path, out.File)
		}
		seen[out.File] = true
		if len(out.Stages) == 0 {
			return nil, errors.New(errors.KindConfig, "%s: output %s has no stages", f.Path, out.File)
		}

		resolved := Output{File: out.File}
		for i, st := range out.Stages {
			stage, err := resolveStage(f, machines, defaultCutter, defaultEngraver, out.File, i, st)
			if err != nil {
				return nil, err
			}
			resolved.Stages = append(resolved.Stages, stage)
		}
		job.Outputs = append(job.Outputs, resolved)
	}
	return job, nil
}

func resolveStage(f *Forge, machines map[string]machineEntry, defaultCutter, defaultEngraver string, file string, index int, st stageSpec) (Stage, error) {
	where := fmt.Sprintf("%s#%d", file, index+1)
	fail := func(format string, args ...any) (Stage, error) {
		return Stage{}, errors.New(errors.KindConfig, "stage %s: %s", where, fmt.Sprintf(format, args...))
	}

	op := Operation(st.Operation)
	switch op {
	case OpCutBoard, OpEngraveMask:
	case "":
		return fail("operation is required")
	default:
		return fail("unknown operation %q", st.Operation)
	}

	sel, err := parseSelection(st.SelectLines)
	if err != nil {
		return fail("%v", err)
	}

	stage := Stage{
		Name:      where,
		Operation: op,
		Backside:  st.Backside,
	}

	switch {
	case st.GerberFile != "" && st.DrillFile != "":
		return fail("gerber_file and drill_file are mutually exclusive")
	case st.GerberFile != "":
		stage.ArtworkPath = resolvePath(f.Dir, st.GerberFile)
	case st.DrillFile != "":
		if op == OpEngraveMask {
			return fail("engrave_mask requires gerber_file")
		}
		stage.ArtworkPath = resolvePath(f.Dir, st.DrillFile)
		stage.DrillSource = true
	default:
		return fail("gerber_file or drill_file is required")
	}
	if st.Invert && op != OpEngraveMask {
		return fail("invert applies only to engrave_mask")
	}

	ref := st.MachineConfig
	if ref == "" {
		if op == OpCutBoard {
			ref = defaultCutter
		} else {
			ref = defaultEngraver
		}
		if ref == "" {
			return fail("no machine_config and no default for %s", op)
		}
	}
	machineName, configName, ok := strings.Cut(ref, "/")
	if !ok {
		return fail("machine_config %q must be \"machine/config\"", ref)
	}
	entry, ok := machines[machineName]
	if !ok {
		return fail("unknown machine %q", machineName)
	}
	stage.MachineName = machineName
	stage.ConfigName = configName

	stage.Machine, err = resolveMachine(entry.spec, machineName)
	if err != nil {
		return Stage{}, err
	}

	switch op {
	case OpCutBoard:
		spec, ok := entry.spec.CuttingConfigs[configName]
		if !ok {
			return fail("machine %q has no cutting config %q", machineName, configName)
		}
		cw := fmt.Sprintf("machines.%s.cutting_configs.%s", machineName, configName)
		stage.Tool, err = resolveTool(entry, machineName, spec.Tool, cw)
		if err != nil {
			return Stage{}, err
		}
		cut, err := resolveCutting(spec, sel, cw)
		if err != nil {
			return Stage{}, err
		}
		stage.Cut = &cut
		stage.Params = motion.Params{
			Stage:        where,
			WorkSpeed:    cut.WorkSpeed,
			PlungeSpeed:  cut.PlungeSpeed,
			TravelHeight: cut.TravelHeight,
			LaserPower:   cut.LaserPower,
			SpindleSpeed: cut.SpindleSpeed,
		}
	case OpEngraveMask:
		spec, ok := entry.spec.EngravingConfigs[configName]
		if !ok {
			return fail("machine %q has no engraving config %q", machineName, configName)
		}
		ew := fmt.Sprintf("machines.%s.engraving_configs.%s", machineName, configName)
		stage.Tool, err = resolveTool(entry, machineName, spec.Tool, ew)
		if err != nil {
			return Stage{}, err
		}
		eng, err := resolveEngraving(spec, sel, st.Invert, ew)
		if err != nil {
			return Stage{}, err
		}
		stage.Engrave = &eng
		stage.Params = motion.Params{
			Stage:        where,
			WorkSpeed:    eng.WorkSpeed,
			LaserPower:   eng.LaserPower,
			SpindleSpeed: eng.SpindleSpeed,
		}
	}
	return stage, nil
}

func resolveMachine(spec machineSpec, name string) (motion.Machine, error) {
	where := "machines." + name
	jog, err := spec.JogSpeed.require(units.Speed, "jog_speed", where, false)
	if err != nil {
		return motion.Machine{}, err
	}
	width, err := spec.WorkspaceArea.Width.require(units.Length, "workspace_area.width", where, false)
	if err != nil {
		return motion.Machine{}, err
	}
	height, err := spec.WorkspaceArea.Height.require(units.Length, "workspace_area.height", where, false)
	if err != nil {
		return motion.Machine{}, err
	}
	m := motion.Machine{JogSpeed: jog, Width: width, Height: height}
	switch spec.Units {
	case "", "metric":
	case "imperial":
		m.Imperial = true
	default:
		return motion.Machine{}, errors.New(errors.KindConfig,
			"%s: units must be \"metric\" or \"imperial\", got %q", where, spec.Units)
	}
	return m, nil
}

// resolveTool dereferences a "tool" or "tool/bit" reference within a
// machine, reading any init sequence file relative to the file that
// declared the machine.
func resolveTool(entry machineEntry, machineName, ref, where string) (plan.Tool, error) {
	if ref == "" {
		return plan.Tool{}, errors.New(errors.KindConfig, "%s: tool is required", where)
	}
	toolName, bitName, hasBit := strings.Cut(ref, "/")
	spec, ok := entry.spec.Tools[toolName]
	if !ok {
		return plan.Tool{}, errors.New(errors.KindConfig,
			"%s: machine %q has no tool %q", where, machineName, toolName)
	}

	switch spec.Type {
	case "laser":
		if hasBit {
			return plan.Tool{}, errors.New(errors.KindConfig,
				"%s: laser %q takes no bit", where, toolName)
		}
		tw := fmt.Sprintf("machines.%s.tools.%s", machineName, toolName)
		diameter, err := spec.PointDiameter.require(units.Length, "point_diameter", tw, false)
		if err != nil {
			return plan.Tool{}, err
		}
		maxPower, err := spec.MaxPower.require(units.Power, "max_power", tw, false)
		if err != nil {
			return plan.Tool{}, err
		}
		tool := plan.Tool{Name: toolName, Kind: plan.Laser, Diameter: diameter, MaxPower: maxPower}
		if spec.InitSequenceFile != "" {
			data, err := os.ReadFile(resolvePath(entry.dir, spec.InitSequenceFile))
			if err != nil {
				return plan.Tool{}, errors.Wrap(errors.KindConfig, err,
					"%s: reading init sequence for %q", tw, toolName)
			}
			tool.InitSequence = string(data)
		}
		return tool, nil

	case "spindle":
		if !hasBit {
			return plan.Tool{}, errors.New(errors.KindConfig,
				"%s: spindle %q needs a bit (%q)", where, toolName, toolName+"/<bit>")
		}
		tw := fmt.Sprintf("machines.%s.tools.%s", machineName, toolName)
		bit, ok := spec.Bits[bitName]
		if !ok {
			return plan.Tool{}, errors.New(errors.KindConfig,
				"%s: spindle %q has no bit %q", where, toolName, bitName)
		}
		if bit.Type != "end_mill" && bit.Type != "drill" {
			return plan.Tool{}, errors.New(errors.KindConfig,
				"%s.bits.%s: unknown bit type %q", tw, bitName, bit.Type)
		}
		bw := fmt.Sprintf("%s.bits.%s", tw, bitName)
		diameter, err := bit.Diameter.require(units.Length, "diameter", bw, false)
		if err != nil {
			return plan.Tool{}, err
		}
		maxSpeed, err := spec.MaxSpeed.require(units.AngularSpeed, "max_speed", tw, false)
		if err != nil {
			return plan.Tool{}, err
		}
		return plan.Tool{
			Name:     toolName + "/" + bitName,
			Kind:     plan.Spindle,
			Diameter: diameter,
			MaxSpeed: maxSpeed,
		}, nil

	case "":
		return plan.Tool{}, errors.New(errors.KindConfig,
			"machines.%s.tools.%s: type is required", machineName, toolName)
	default:
		return plan.Tool{}, errors.New(errors.KindConfig,
			"machines.%s.tools.%s: unknown tool type %q", machineName, toolName, spec.Type)
	}
}

func resolveCutting(spec cuttingSpec, sel contour.Selection, where string) (plan.CutConfig, error) {
	cfg := plan.CutConfig{Select: sel}
	var err error
	if cfg.WorkSpeed, err = spec.WorkSpeed.require(units.Speed, "work_speed", where, false); err != nil {
		return plan.CutConfig{}, err
	}
	if cfg.PlungeSpeed, err = spec.PlungeSpeed.require(units.Speed, "plunge_speed", where, true); err != nil {
		return plan.CutConfig{}, err
	}
	if cfg.TravelHeight, err = spec.TravelHeight.require(units.Length, "travel_height", where, true); err != nil {
		return plan.CutConfig{}, err
	}
	if cfg.CutDepth, err = spec.CutDepth.require(units.Length, "cut_depth", where, false); err != nil {
		return plan.CutConfig{}, err
	}
	if cfg.PassDepth, err = spec.PassDepth.require(units.Length, "pass_depth", where, false); err != nil {
		return plan.CutConfig{}, err
	}
	if cfg.LaserPower, err = spec.LaserPower.require(units.Power, "laser_power", where, true); err != nil {
		return plan.CutConfig{}, err
	}
	if cfg.SpindleSpeed, err = spec.SpindleSpeed.require(units.AngularSpeed, "spindle_speed", where, true); err != nil {
		return plan.CutConfig{}, err
	}
	return cfg, nil
}

func resolveEngraving(spec engravingSpec, sel contour.Selection, invert bool, where string) (plan.EngraveConfig, error) {
	cfg := plan.EngraveConfig{Select: sel, Invert: invert, Passes: spec.Passes}
	if spec.Passes < 0 {
		return plan.EngraveConfig{}, errors.New(errors.KindConfig,
			"%s: passes must not be negative", where)
	}
	var err error
	if cfg.WorkSpeed, err = spec.WorkSpeed.require(units.Speed, "work_speed", where, false); err != nil {
		return plan.EngraveConfig{}, err
	}
	if cfg.LaserPower, err = spec.LaserPower.require(units.Power, "laser_power", where, true); err != nil {
		return plan.EngraveConfig{}, err
	}
	if cfg.SpindleSpeed, err = spec.SpindleSpeed.require(units.AngularSpeed, "spindle_speed", where, true); err != nil {
		return plan.EngraveConfig{}, err
	}
	return cfg, nil
}

func parseSelection(s string) (contour.Selection, error) {
	switch s {
	case "", "all":
		return contour.SelectAll, nil
	case "outer":
		return contour.SelectOuter, nil
	case "inner":
		return contour.SelectInner, nil
	default:
		return contour.SelectAll, fmt.Errorf("select_lines must be all, inner or outer, got %q", s)
	}
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
