package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/cache"
	"github.com/pcbforge/pcbforge/pkg/config"
	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/geom"
	"github.com/pcbforge/pcbforge/pkg/motion"
	"github.com/pcbforge/pcbforge/pkg/plan"
	"github.com/pcbforge/pcbforge/pkg/units"
)

// squareOutline is a closed 10mm square outline stroke from (10,10)
// to (20,20), 0.2mm wide.
const squareOutline = "%FSLAX35Y35*%\n%MOMM*%\n" +
	"%ADD10C,0.2*%\n" +
	"D10*\n" +
	"X1000000Y1000000D02*\n" +
	"G01X2000000Y1000000D01*\n" +
	"X2000000Y2000000D01*\n" +
	"X1000000Y2000000D01*\n" +
	"X1000000Y1000000D01*\n" +
	"M02*\n"

func quietRunner(c cache.Cache) *Runner {
	return NewRunner(c, nil, log.New(io.Discard))
}

func laserStage(name, artworkPath string) config.Stage {
	cut := &plan.CutConfig{
		Select:     contour.SelectOuter,
		WorkSpeed:  units.MMPerMinute(300),
		CutDepth:   units.Millimeters(-1),
		PassDepth:  units.Millimeters(0.5),
		LaserPower: units.Watts(2.5),
	}
	return config.Stage{
		Name:        name,
		Operation:   config.OpCutBoard,
		ArtworkPath: artworkPath,
		Tool: plan.Tool{
			Name:     "diode",
			Kind:     plan.Laser,
			Diameter: units.Millimeters(0.2),
			MaxPower: units.Watts(5),
		},
		Machine: motion.Machine{
			JogSpeed: units.MMPerSecond(40),
			Width:    units.Millimeters(100),
			Height:   units.Millimeters(100),
		},
		Cut: cut,
		Params: motion.Params{
			Stage:      name,
			WorkSpeed:  cut.WorkSpeed,
			LaserPower: cut.LaserPower,
		},
	}
}

func testJob(t *testing.T) *config.Job {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "edge.gbr")
	require.NoError(t, os.WriteFile(path, []byte(squareOutline), 0o644))

	return &config.Job{
		ProjectName:   "test-board",
		AlignBackside: true,
		Dir:           dir,
		Outputs: []config.Output{
			{File: "out.gcode", Stages: []config.Stage{laserStage("out.gcode#1", path)}},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	job := testJob(t)
	r := quietRunner(nil)

	result, err := r.Run(context.Background(), job, Options{})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	require.NoError(t, result.Files[0].Err)
	assert.Empty(t, result.Failed())

	data, err := os.ReadFile(filepath.Join(job.Dir, "out.gcode"))
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "; pcbforge dev run "+result.RunID+"\n"), "run stamp missing: %q", text[:40])
	assert.Contains(t, text, "G90\n")
	assert.Contains(t, text, "; tool diode (laser)")
	// 2.5 of 5 watts.
	assert.Contains(t, text, "M3 P50 S128")
	assert.True(t, strings.HasSuffix(text, "M2\n"))
	// Two depth passes trace the beam on and off twice.
	assert.Equal(t, 2, strings.Count(text, "M3 P50 S128"))
}

func TestRunSharedToolInitOnce(t *testing.T) {
	job := testJob(t)
	path := job.Outputs[0].Stages[0].ArtworkPath

	first := laserStage("out.gcode#1", path)
	second := laserStage("out.gcode#2", path)
	first.Tool.InitSequence = "G92 X0 Y0\n"
	second.Tool.InitSequence = "G92 X0 Y0\n"
	job.Outputs[0].Stages = []config.Stage{first, second}

	r := quietRunner(nil)
	result, err := r.Run(context.Background(), job, Options{})
	require.NoError(t, err)
	require.NoError(t, result.Files[0].Err)

	data, err := os.ReadFile(filepath.Join(job.Dir, "out.gcode"))
	require.NoError(t, err)
	text := string(data)

	// The shared tool initializes once, ahead of its first stage.
	assert.Equal(t, 2, strings.Count(text, "; tool diode (laser)"))
	assert.Equal(t, 1, strings.Count(text, "G92 X0 Y0"))
	assert.Less(t, strings.Index(text, "G92 X0 Y0"), strings.Index(text, "; tool diode"))
}

func TestRunCacheHit(t *testing.T) {
	job := testJob(t)
	c, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	r := quietRunner(c)

	first, err := r.Run(context.Background(), job, Options{})
	require.NoError(t, err)
	require.NoError(t, first.Files[0].Err)
	assert.False(t, first.Files[0].CacheHit)

	second, err := r.Run(context.Background(), job, Options{})
	require.NoError(t, err)
	require.NoError(t, second.Files[0].Err)
	assert.True(t, second.Files[0].CacheHit)

	// Run stamps differ; the stream beneath them is identical.
	data, err := os.ReadFile(filepath.Join(job.Dir, "out.gcode"))
	require.NoError(t, err)
	_, stream, ok := strings.Cut(string(data), "\n")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(stream, "G90\n"))
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunNoCacheBypassesStore(t *testing.T) {
	job := testJob(t)
	c, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	r := quietRunner(c)

	_, err = r.Run(context.Background(), job, Options{NoCache: true})
	require.NoError(t, err)

	second, err := r.Run(context.Background(), job, Options{NoCache: true})
	require.NoError(t, err)
	assert.False(t, second.Files[0].CacheHit)
}

func TestRunFailureIsolation(t *testing.T) {
	job := testJob(t)
	job.Outputs = append(job.Outputs, config.Output{
		File:   "broken.gcode",
		Stages: []config.Stage{laserStage("broken.gcode#1", filepath.Join(job.Dir, "missing.gbr"))},
	})

	r := quietRunner(nil)
	result, err := r.Run(context.Background(), job, Options{})
	require.NoError(t, err)
	require.Len(t, result.Files, 2)

	byFile := map[string]FileResult{}
	for _, f := range result.Files {
		byFile[f.File] = f
	}
	require.NoError(t, byFile["out.gcode"].Err)
	require.Error(t, byFile["broken.gcode"].Err)

	// The failed output never appears on disk.
	_, statErr := os.Stat(filepath.Join(job.Dir, "broken.gcode"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(job.Dir, "out.gcode"))
	assert.NoError(t, statErr)

	require.Len(t, result.Failed(), 1)
	assert.Equal(t, "broken.gcode", result.Failed()[0].File)
}

func TestRunTargetDir(t *testing.T) {
	job := testJob(t)
	target := t.TempDir()

	r := quietRunner(nil)
	result, err := r.Run(context.Background(), job, Options{TargetDir: target})
	require.NoError(t, err)
	require.NoError(t, result.Files[0].Err)

	_, statErr := os.Stat(filepath.Join(target, "out.gcode"))
	assert.NoError(t, statErr)
}

func TestMirrorAxis(t *testing.T) {
	ring := geom.Ring{{X: 10, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 5}, {X: 10, Y: 5}, {X: 10, Y: 0}}
	forest, err := contour.Classify([]contour.Polygon{
		{Ring: ring, Polarity: artwork.Dark, Source: artwork.KindRegion, Label: "board"},
	})
	require.NoError(t, err)

	aligned := &config.Job{AlignBackside: true}
	assert.InDelta(t, 20, mirrorAxis(aligned, forest), 1e-9)

	raw := &config.Job{AlignBackside: false}
	assert.Equal(t, 0.0, mirrorAxis(raw, forest))
}
