package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/plan"
	"github.com/pcbforge/pcbforge/pkg/units"
)

const globalTOML = `
default_engraver = "lunar/copper-mask"
default_cutter = "lunar/fr4"

[machines.lunar]
jog_speed = "3000 mm/min"

[machines.lunar.workspace_area]
width = "300 mm"
height = "200 mm"

[machines.lunar.tools.diode]
type = "laser"
point_diameter = "0.2 mm"
max_power = "5 W"
init_sequence_file = "diode-init.gcode"

[machines.lunar.tools.spindle]
type = "spindle"
max_speed = "12000 rpm"

[machines.lunar.tools.spindle.bits.mill-05]
type = "end_mill"
diameter = "0.5 mm"

[machines.lunar.tools.spindle.bits.drill-08]
type = "drill"
diameter = "0.8 mm"

[machines.lunar.engraving_configs.copper-mask]
tool = "diode"
work_speed = "600 mm/min"
laser_power = "2.5 W"
passes = 2

[machines.lunar.cutting_configs.fr4]
tool = "spindle/mill-05"
work_speed = "300 mm/min"
plunge_speed = "60 mm/min"
travel_height = "2 mm"
cut_depth = "-2 mm"
pass_depth = "0.25 mm"
spindle_speed = "10000 rpm"
`

const forgeTOML = `
project_name = "simple-led"
board_version = "1.0.2"

[[outputs]]
file = "forge/engrave.gcode"

[[outputs.stages]]
operation = "engrave_mask"
gerber_file = "board-F_Cu.gbr"
invert = true

[[outputs]]
file = "forge/cut.gcode"

[[outputs.stages]]
operation = "cut_board"
drill_file = "board.drl"
machine_config = "lunar/fr4"

[[outputs.stages]]
operation = "cut_board"
gerber_file = "board-Edge_Cuts.gbr"
select_lines = "outer"
backside = true
`

// writeTree lays out a global config and a job file in one temp dir.
func writeTree(t *testing.T, global, forge string) (*Global, *Forge) {
	t.Helper()
	dir := t.TempDir()

	var g *Global
	if global != "" {
		path := filepath.Join(dir, "config.toml")
		require.NoError(t, os.WriteFile(path, []byte(global), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "diode-init.gcode"), []byte("G92 X0 Y0\n"), 0o644))
		var err error
		g, err = LoadGlobal(path)
		require.NoError(t, err)
	}

	path := filepath.Join(dir, "forge.toml")
	require.NoError(t, os.WriteFile(path, []byte(forge), 0o644))
	f, err := LoadForge(path)
	require.NoError(t, err)
	return g, f
}

func TestResolveFullJob(t *testing.T) {
	g, f := writeTree(t, globalTOML, forgeTOML)

	job, err := Resolve(g, f)
	require.NoError(t, err)

	assert.Equal(t, "simple-led", job.ProjectName)
	assert.Equal(t, "1.0.2", job.BoardVersion)
	assert.True(t, job.AlignBackside)
	require.Len(t, job.Outputs, 2)

	engrave := job.Outputs[0]
	assert.Equal(t, "forge/engrave.gcode", engrave.File)
	require.Len(t, engrave.Stages, 1)
	st := engrave.Stages[0]
	assert.Equal(t, OpEngraveMask, st.Operation)
	assert.Equal(t, "lunar", st.MachineName)
	assert.Equal(t, "copper-mask", st.ConfigName)
	assert.Equal(t, filepath.Join(f.Dir, "board-F_Cu.gbr"), st.ArtworkPath)
	assert.False(t, st.DrillSource)
	require.NotNil(t, st.Engrave)
	assert.Nil(t, st.Cut)
	assert.True(t, st.Engrave.Invert)
	assert.Equal(t, 2, st.Engrave.Passes)
	assert.Equal(t, contour.SelectAll, st.Engrave.Select)
	assert.Equal(t, units.MMPerMinute(600), st.Engrave.WorkSpeed)
	assert.Equal(t, units.Watts(2.5), st.Engrave.LaserPower)

	assert.Equal(t, plan.Laser, st.Tool.Kind)
	assert.Equal(t, "diode", st.Tool.Name)
	assert.Equal(t, units.Millimeters(0.2), st.Tool.Diameter)
	assert.Equal(t, units.Watts(5), st.Tool.MaxPower)
	assert.Equal(t, "G92 X0 Y0\n", st.Tool.InitSequence)

	assert.Equal(t, units.MMPerMinute(3000), st.Machine.JogSpeed)
	assert.Equal(t, units.Millimeters(300), st.Machine.Width)
	assert.Equal(t, units.Millimeters(200), st.Machine.Height)
	assert.False(t, st.Machine.Imperial)

	cut := job.Outputs[1]
	require.Len(t, cut.Stages, 2)

	drill := cut.Stages[0]
	assert.Equal(t, OpCutBoard, drill.Operation)
	assert.True(t, drill.DrillSource)
	assert.Equal(t, filepath.Join(f.Dir, "board.drl"), drill.ArtworkPath)
	require.NotNil(t, drill.Cut)
	assert.Equal(t, "spindle/mill-05", drill.Tool.Name)
	assert.Equal(t, plan.Spindle, drill.Tool.Kind)
	assert.Equal(t, units.Millimeters(0.5), drill.Tool.Diameter)
	assert.Equal(t, units.RPM(12000), drill.Tool.MaxSpeed)
	assert.Equal(t, units.Millimeters(-2), drill.Cut.CutDepth)
	assert.Equal(t, units.Millimeters(0.25), drill.Cut.PassDepth)
	assert.Equal(t, units.RPM(10000), drill.Cut.SpindleSpeed)
	assert.Equal(t, contour.SelectAll, drill.Cut.Select)

	outline := cut.Stages[1]
	assert.True(t, outline.Backside)
	assert.Equal(t, contour.SelectOuter, outline.Cut.Select)
	assert.Equal(t, "forge/cut.gcode#2", outline.Name)
	assert.Equal(t, outline.Cut.WorkSpeed, outline.Params.WorkSpeed)
	assert.Equal(t, outline.Cut.TravelHeight, outline.Params.TravelHeight)
	assert.Equal(t, "forge/cut.gcode#2", outline.Params.Stage)
}

func TestResolveJobMachineOverridesGlobal(t *testing.T) {
	forge := `
project_name = "p"

[machines.lunar]
jog_speed = "40 mm/s"

[machines.lunar.workspace_area]
width = "100 mm"
height = "100 mm"

[machines.lunar.tools.diode]
type = "laser"
point_diameter = "0.1 mm"
max_power = "10 W"

[machines.lunar.engraving_configs.copper-mask]
tool = "diode"
work_speed = "500 mm/min"
laser_power = "4 W"

[[outputs]]
file = "out.gcode"

[[outputs.stages]]
operation = "engrave_mask"
gerber_file = "a.gbr"
`
	g, f := writeTree(t, globalTOML, forge)
	job, err := Resolve(g, f)
	require.NoError(t, err)

	st := job.Outputs[0].Stages[0]
	assert.Equal(t, units.MMPerSecond(40), st.Machine.JogSpeed)
	assert.Equal(t, units.Millimeters(100), st.Machine.Width)
	assert.Equal(t, units.Watts(10), st.Tool.MaxPower)
	assert.Empty(t, st.Tool.InitSequence)
}

func TestResolveWithoutGlobal(t *testing.T) {
	forge := `
project_name = "p"

[machines.m]
jog_speed = "20 mm/s"

[machines.m.workspace_area]
width = "50 mm"
height = "50 mm"

[machines.m.tools.l]
type = "laser"
point_diameter = "0.2 mm"
max_power = "5 W"

[machines.m.cutting_configs.c]
tool = "l"
work_speed = "120 mm/min"
cut_depth = "-1.6 mm"
pass_depth = "0.4 mm"
laser_power = "5 W"

[[outputs]]
file = "cut.gcode"

[[outputs.stages]]
operation = "cut_board"
gerber_file = "edge.gbr"
machine_config = "m/c"
`
	_, f := writeTree(t, "", forge)
	job, err := Resolve(nil, f)
	require.NoError(t, err)

	st := job.Outputs[0].Stages[0]
	assert.Equal(t, plan.Laser, st.Tool.Kind)
	assert.Equal(t, units.Watts(5), st.Cut.LaserPower)
	assert.True(t, st.Cut.PlungeSpeed.IsZero())
}

func TestResolveAlignBacksideDefault(t *testing.T) {
	forge := `
project_name = "p"
align_backside = false

[[outputs]]
file = "out.gcode"

[[outputs.stages]]
operation = "engrave_mask"
gerber_file = "a.gbr"
`
	g, f := writeTree(t, globalTOML, forge)
	job, err := Resolve(g, f)
	require.NoError(t, err)
	assert.False(t, job.AlignBackside)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		forge string
		want  string
	}{
		{
			name: "unknown machine",
			forge: `
project_name = "p"
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "cut_board"
gerber_file = "a.gbr"
machine_config = "mars/fr4"
`,
			want: `unknown machine "mars"`,
		},
		{
			name: "unknown config",
			forge: `
project_name = "p"
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "cut_board"
gerber_file = "a.gbr"
machine_config = "lunar/nope"
`,
			want: `no cutting config "nope"`,
		},
		{
			name: "bad operation",
			forge: `
project_name = "p"
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "sand_board"
gerber_file = "a.gbr"
`,
			want: `unknown operation "sand_board"`,
		},
		{
			name: "both sources",
			forge: `
project_name = "p"
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "cut_board"
gerber_file = "a.gbr"
drill_file = "a.drl"
machine_config = "lunar/fr4"
`,
			want: "mutually exclusive",
		},
		{
			name: "engrave from drill",
			forge: `
project_name = "p"
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "engrave_mask"
drill_file = "a.drl"
`,
			want: "requires gerber_file",
		},
		{
			name: "invert on cut",
			forge: `
project_name = "p"
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "cut_board"
gerber_file = "a.gbr"
invert = true
`,
			want: "invert applies only to engrave_mask",
		},
		{
			name: "bad selection",
			forge: `
project_name = "p"
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "cut_board"
gerber_file = "a.gbr"
select_lines = "some"
`,
			want: "select_lines",
		},
		{
			name: "missing project name",
			forge: `
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "cut_board"
gerber_file = "a.gbr"
`,
			want: "project_name is required",
		},
		{
			name: "no outputs",
			forge: `
project_name = "p"
`,
			want: "no outputs",
		},
		{
			name: "duplicate output",
			forge: `
project_name = "p"
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "cut_board"
gerber_file = "a.gbr"
[[outputs]]
file = "o.gcode"
[[outputs.stages]]
operation = "cut_board"
gerber_file = "a.gbr"
`,
			want: "declared twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, f := writeTree(t, globalTOML, tt.forge)
			_, err := Resolve(g, f)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindConfig), "kind = %s", errors.KindOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveToolReferenceErrors(t *testing.T) {
	base := `
project_name = "p"

[machines.m]
jog_speed = "20 mm/s"

[machines.m.workspace_area]
width = "50 mm"
height = "50 mm"

[machines.m.tools.l]
type = "laser"
point_diameter = "0.2 mm"
max_power = "5 W"

[machines.m.tools.s]
type = "spindle"
max_speed = "10000 rpm"

[machines.m.tools.s.bits.b]
type = "end_mill"
diameter = "1 mm"

[[outputs]]
file = "o.gcode"

[[outputs.stages]]
operation = "cut_board"
gerber_file = "a.gbr"
machine_config = "m/c"
`
	tests := []struct {
		name string
		cfg  string
		want string
	}{
		{
			name: "laser with bit",
			cfg:  "tool = \"l/b\"",
			want: "takes no bit",
		},
		{
			name: "spindle without bit",
			cfg:  "tool = \"s\"",
			want: "needs a bit",
		},
		{
			name: "unknown bit",
			cfg:  "tool = \"s/missing\"",
			want: `no bit "missing"`,
		},
		{
			name: "unknown tool",
			cfg:  "tool = \"router/b\"",
			want: `no tool "router"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forge := base + "\n[machines.m.cutting_configs.c]\n" + tt.cfg + `
work_speed = "120 mm/min"
cut_depth = "-1 mm"
pass_depth = "0.5 mm"
`
			_, f := writeTree(t, "", forge)
			_, err := Resolve(nil, f)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveDimensionMismatch(t *testing.T) {
	forge := `
project_name = "p"

[machines.m]
jog_speed = "20 mm"

[machines.m.workspace_area]
width = "50 mm"
height = "50 mm"

[machines.m.tools.l]
type = "laser"
point_diameter = "0.2 mm"
max_power = "5 W"

[machines.m.engraving_configs.e]
tool = "l"
work_speed = "500 mm/min"
laser_power = "4 W"

[[outputs]]
file = "o.gcode"

[[outputs.stages]]
operation = "engrave_mask"
gerber_file = "a.gbr"
machine_config = "m/e"
`
	_, f := writeTree(t, "", forge)
	_, err := Resolve(nil, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jog_speed must be a speed")
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want units.Value
	}{
		{"3000 mm/min", units.MMPerMinute(3000)},
		{"0.5mm", units.Millimeters(0.5)},
		{"-2 mm", units.Millimeters(-2)},
		{"2.5 W", units.Watts(2.5)},
		{"12000 rpm", units.RPM(12000)},
		{"1.5 in", units.Inches(1.5)},
		{"1e-3 m", units.Value{Magnitude: 0.001, Unit: units.Meter}},
	}
	for _, tt := range tests {
		got, err := ParseQuantity(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "mm", "10 parsec", "fast mm/s", "10 10 mm"} {
		_, err := ParseQuantity(bad)
		require.Error(t, err, bad)
		assert.True(t, errors.IsKind(err, errors.KindConfig), bad)
	}
}

func TestImperialMachineUnits(t *testing.T) {
	forge := `
project_name = "p"

[machines.m]
jog_speed = "1 in/s"
units = "imperial"

[machines.m.workspace_area]
width = "12 in"
height = "8 in"

[machines.m.tools.l]
type = "laser"
point_diameter = "8 mil"
max_power = "5 W"

[machines.m.engraving_configs.e]
tool = "l"
work_speed = "20 in/min"
laser_power = "4 W"

[[outputs]]
file = "o.gcode"

[[outputs.stages]]
operation = "engrave_mask"
gerber_file = "a.gbr"
machine_config = "m/e"
`
	_, f := writeTree(t, "", forge)
	job, err := Resolve(nil, f)
	require.NoError(t, err)

	st := job.Outputs[0].Stages[0]
	assert.True(t, st.Machine.Imperial)
	assert.Equal(t, units.Inches(12), st.Machine.Width)
	assert.Equal(t, units.Mils(8), st.Tool.Diameter)
}
