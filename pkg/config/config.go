// Package config loads and resolves PCB Forge configuration: the global
// machine inventory at ~/.config/pcbforge/config.toml and the per-project
// job file forge.toml.
//
// Configuration is the only layer that handles unit suffixes
// ("3000 mm/min") and reference strings ("machine/config", "tool/bit").
// Resolve validates everything up front and produces an immutable Job
// holding canonical units.Values; the core packages never see raw files.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/pcbforge/pcbforge/pkg/errors"
)

// DefaultGlobalPath returns the platform path of the global machine
// inventory.
func DefaultGlobalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.KindConfig, err, "cannot locate home directory")
	}
	return filepath.Join(home, ".config", "pcbforge", "config.toml"), nil
}

// Global is the parsed machine inventory. Machines defined here are
// available to every job; a job file may add or override machines.
type Global struct {
	Path string
	Dir  string

	spec globalSpec
}

type globalSpec struct {
	DefaultEngraver string                 `toml:"default_engraver"`
	DefaultCutter   string                 `toml:"default_cutter"`
	Machines        map[string]machineSpec `toml:"machines"`
}

// OverrideDefaults replaces the default cutting and engraving
// references with ref (a "machine/config" path). Stages that name
// their own machine_config are unaffected.
func (g *Global) OverrideDefaults(ref string) {
	g.spec.DefaultCutter = ref
	g.spec.DefaultEngraver = ref
}

// MachineNames lists the machines in the inventory.
func (g *Global) MachineNames() []string {
	names := make([]string, 0, len(g.spec.Machines))
	for name := range g.spec.Machines {
		names = append(names, name)
	}
	return names
}

// LoadGlobal parses the global configuration file.
func LoadGlobal(path string) (*Global, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, err, "reading %s", path)
	}
	g := &Global{Path: path, Dir: filepath.Dir(path)}
	if err := toml.Unmarshal(data, &g.spec); err != nil {
		return nil, errors.Wrap(errors.KindConfig, err, "parsing %s", path)
	}
	return g, nil
}

// Forge is the parsed per-project job file.
type Forge struct {
	Path string
	Dir  string

	spec forgeSpec
}

type forgeSpec struct {
	ProjectName   string                 `toml:"project_name"`
	BoardVersion  string                 `toml:"board_version"`
	AlignBackside *bool                  `toml:"align_backside"`
	Machines      map[string]machineSpec `toml:"machines"`
	Outputs       []outputSpec           `toml:"outputs"`
}

type outputSpec struct {
	File   string      `toml:"file"`
	Stages []stageSpec `toml:"stages"`
}

type stageSpec struct {
	Operation     string `toml:"operation"`
	GerberFile    string `toml:"gerber_file"`
	DrillFile     string `toml:"drill_file"`
	MachineConfig string `toml:"machine_config"`
	Backside      bool   `toml:"backside"`
	SelectLines   string `toml:"select_lines"`
	Invert        bool   `toml:"invert"`
}

// LoadForge parses a job file.
func LoadForge(path string) (*Forge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindConfig, err, "reading %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	f := &Forge{Path: path, Dir: filepath.Dir(abs)}
	if err := toml.Unmarshal(data, &f.spec); err != nil {
		return nil, errors.Wrap(errors.KindConfig, err, "parsing %s", path)
	}
	return f, nil
}

// machineSpec is one [machines.<name>] table.
type machineSpec struct {
	JogSpeed      Quantity      `toml:"jog_speed"`
	Units         string        `toml:"units"`
	WorkspaceArea workspaceSpec `toml:"workspace_area"`

	Tools            map[string]toolSpec      `toml:"tools"`
	EngravingConfigs map[string]engravingSpec `toml:"engraving_configs"`
	CuttingConfigs   map[string]cuttingSpec   `toml:"cutting_configs"`
}

type workspaceSpec struct {
	Width  Quantity `toml:"width"`
	Height Quantity `toml:"height"`
}

// toolSpec is a laser or a spindle; the type field discriminates.
// Spindles carry interchangeable bits.
type toolSpec struct {
	Type string `toml:"type"`

	// laser
	PointDiameter    Quantity `toml:"point_diameter"`
	MaxPower         Quantity `toml:"max_power"`
	InitSequenceFile string   `toml:"init_sequence_file"`

	// spindle
	MaxSpeed Quantity           `toml:"max_speed"`
	Bits     map[string]bitSpec `toml:"bits"`
}

type bitSpec struct {
	Type     string   `toml:"type"` // end_mill or drill
	Diameter Quantity `toml:"diameter"`
}

type engravingSpec struct {
	Tool         string   `toml:"tool"`
	WorkSpeed    Quantity `toml:"work_speed"`
	LaserPower   Quantity `toml:"laser_power"`
	SpindleSpeed Quantity `toml:"spindle_speed"`
	Passes       int      `toml:"passes"`
}

type cuttingSpec struct {
	Tool         string   `toml:"tool"`
	WorkSpeed    Quantity `toml:"work_speed"`
	PlungeSpeed  Quantity `toml:"plunge_speed"`
	TravelHeight Quantity `toml:"travel_height"`
	CutDepth     Quantity `toml:"cut_depth"`
	PassDepth    Quantity `toml:"pass_depth"`
	LaserPower   Quantity `toml:"laser_power"`
	SpindleSpeed Quantity `toml:"spindle_speed"`
}
