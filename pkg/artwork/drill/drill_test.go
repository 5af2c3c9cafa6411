package drill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
)

func parseString(t *testing.T, src string) (*artwork.Artwork, map[int]float64, error) {
	t.Helper()
	return ParseWithTools("test.drl", []byte(src), artwork.Options{})
}

const header = "M48\nMETRIC\nT1C0.8\nT2C1.2\n%\n"

func TestDrillHits(t *testing.T) {
	art, tools, err := parseString(t, header+
		"G90\nG05\nT1\nX1.0Y2.0\nX3.5Y4.25\nT2\nX0Y0\nM30\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 3)

	first := art.Primitives[0].(artwork.DrillHit)
	assert.InDelta(t, 0.8, first.Diameter, 1e-12)
	assert.Equal(t, geom.Point{X: 1, Y: 2}, first.At)

	third := art.Primitives[2].(artwork.DrillHit)
	assert.InDelta(t, 1.2, third.Diameter, 1e-12)

	assert.InDelta(t, 0.8, tools[1], 1e-12)
	assert.InDelta(t, 1.2, tools[2], 1e-12)
}

func TestImperialIsInch(t *testing.T) {
	art, tools, err := parseString(t,
		"M48\nINCH\nT1C0.032\n%\nT1\nX1.0Y0.5\nM30\n")
	require.NoError(t, err)
	assert.InDelta(t, 0.8128, tools[1], 1e-9)

	hit := art.Primitives[0].(artwork.DrillHit)
	assert.InDelta(t, 25.4, hit.At.X, 1e-9)
	assert.InDelta(t, 12.7, hit.At.Y, 1e-9)
}

func TestMissingOrdinateReusesCurrent(t *testing.T) {
	art, _, err := parseString(t, header+"T1\nX1.0Y2.0\nX3.0\nY5.0\nM30\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 3)
	assert.Equal(t, geom.Point{X: 3, Y: 2}, art.Primitives[1].(artwork.DrillHit).At)
	assert.Equal(t, geom.Point{X: 3, Y: 5}, art.Primitives[2].(artwork.DrillHit).At)
}

func TestIncrementalMode(t *testing.T) {
	art, _, err := parseString(t, header+"G91\nT1\nX1.0Y1.0\nX0.5Y0.25\nM30\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 2)
	assert.Equal(t, geom.Point{X: 1.5, Y: 1.25}, art.Primitives[1].(artwork.DrillHit).At)
}

func TestRoutePath(t *testing.T) {
	art, _, err := parseString(t, header+
		"T1\nG00X0Y0\nM15\nG01X5.0Y0\nG01X5.0Y2.0\nM16\nG05\nM30\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 1)

	route := art.Primitives[0].(artwork.RoutePath)
	assert.InDelta(t, 0.8, route.Diameter, 1e-12)
	assert.Equal(t, geom.Point{X: 0, Y: 0}, route.Path.Start)
	require.Len(t, route.Path.Segments, 2)
	assert.Equal(t, geom.Point{X: 5, Y: 2}, route.Path.LastPoint())
}

func TestRouteArcCenter(t *testing.T) {
	// Semicircle: chord 2 wide, radius 1; the center must sit on the
	// chord midpoint, on the side matching the sweep direction.
	art, _, err := parseString(t, header+
		"T1\nG00X0Y0\nM15\nG03X2.0Y0A1.0\nM16\nM30\n")
	require.NoError(t, err)

	route := art.Primitives[0].(artwork.RoutePath)
	arc, ok := route.Path.Segments[0].(geom.CounterClockwiseArc)
	require.True(t, ok)
	assert.InDelta(t, 1.0, arc.Center.X, 1e-9)
	assert.InDelta(t, 0.0, arc.Center.Y, 1e-9)
}

func TestRouteArcSidesDiffer(t *testing.T) {
	cw, err := arcCenter(geom.Point{}, geom.Point{X: 2}, 2, true)
	require.NoError(t, err)
	ccw, err := arcCenter(geom.Point{}, geom.Point{X: 2}, 2, false)
	require.NoError(t, err)
	assert.InDelta(t, cw.Y, -ccw.Y, 1e-9)
	assert.Less(t, cw.Y, 0.0)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"hit before tool", header + "X1.0Y1.0\nM30\n", "no tool selected"},
		{"undefined tool", header + "T9\nM30\n", "never declared"},
		{"no unit declaration", "M48\nT1C0.8\n%\nM30\n", "METRIC or INCH"},
		{"unterminated header", "M48\nMETRIC\nT1C0.8\n", "never terminated"},
		{"missing end", header + "T1\nX1.0Y1.0\n", "M30"},
		{"unterminated route", header + "T1\nG00X0Y0\nM15\nG01X1.0Y0\nM30\n", "never closed"},
		{"tool down in drill mode", header + "T1\nM15\nM30\n", "drill mode"},
		{"arc without radius", header + "T1\nG00X0Y0\nM15\nG02X1.0Y0\nM30\n", "no A radius"},
		{"radius shorter than chord", header + "T1\nG00X0Y0\nM15\nG02X9.0Y0A1.0\nM30\n", "shorter than half"},
		{"unknown command", header + "Q7\nM30\n", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseString(t, tt.src)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindParse), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestToolZeroDeselects(t *testing.T) {
	_, _, err := parseString(t, header+"T1\nX1.0Y1.0\nT0\nX2.0Y2.0\nM30\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tool selected")
}

func TestToolDeclarationStripsFeedModifiers(t *testing.T) {
	_, tools, err := parseString(t, "M48\nMETRIC\nT1C0.8F200S5000\n%\nT1\nX0Y0\nM30\n")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, tools[1], 1e-12)
}

func TestSupports(t *testing.T) {
	p := Parser{}
	assert.True(t, p.Supports("board.drl"))
	assert.True(t, p.Supports("board-PTH.XNC"))
	assert.False(t, p.Supports("board.gbr"))
}
