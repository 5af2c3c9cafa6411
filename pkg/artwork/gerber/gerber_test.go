package gerber

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
)

func parseString(t *testing.T, src string) (*artwork.Artwork, error) {
	t.Helper()
	return Parser{}.Parse("test.gbr", []byte(src), artwork.Options{})
}

const header = "%FSLAX35Y35*%\n%MOMM*%\n"

func TestParseSquareOutlineStroke(t *testing.T) {
	art, err := parseString(t, header+
		"%ADD10C,0.2*%\n"+
		"D10*\n"+
		"X0Y0D02*\n"+
		"G01X1000000Y0D01*\n"+
		"X1000000Y1000000D01*\n"+
		"X0Y1000000D01*\n"+
		"X0Y0D01*\n"+
		"M02*\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 1)

	stroke, ok := art.Primitives[0].(artwork.Stroke)
	require.True(t, ok, "expected a stroke, got %T", art.Primitives[0])
	assert.InDelta(t, 0.2, stroke.Width, 1e-12)
	assert.True(t, stroke.Path.Closed())
	require.Len(t, stroke.Path.Segments, 4)
	assert.Equal(t, geom.Point{X: 10, Y: 0}, stroke.Path.Segments[0].End())
	assert.Equal(t, geom.Point{X: 10, Y: 10}, stroke.Path.Segments[1].End())
}

func TestCoordinateDecoding(t *testing.T) {
	tests := []struct {
		name     string
		coord    string
		imperial bool
		want     float64
	}{
		{"zero", "0", false, 0},
		{"full integer and fraction", "1234500", false, 12.345},
		{"leading zeros omitted", "500", false, 0.005},
		{"negative", "-250000", false, -2.5},
		{"explicit plus", "+100000", false, 1},
		{"imperial is mil", "100000", true, 0.0254},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &interp{decDigits: 5, imperial: tt.imperial}
			got, err := in.decodeCoordinate(tt.coord)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestFlashPrimitives(t *testing.T) {
	art, err := parseString(t, header+
		"%ADD10C,1.5*%\n"+
		"%ADD11R,2X1*%\n"+
		"D10*\nX100000Y200000D03*\n"+
		"D11*\nX300000Y0D03*\n"+
		"M02*\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 2)

	first := art.Primitives[0].(artwork.Flash)
	assert.Equal(t, artwork.Circle{Diameter: 1.5}, first.Aperture)
	assert.Equal(t, geom.Point{X: 1, Y: 2}, first.At)

	second := art.Primitives[1].(artwork.Flash)
	assert.Equal(t, artwork.Rectangle{W: 2, H: 1}, second.Aperture)
}

func TestRegion(t *testing.T) {
	art, err := parseString(t, header+
		"G36*\n"+
		"X0Y0D02*\n"+
		"G01X500000Y0D01*\n"+
		"X500000Y500000D01*\n"+
		"X0Y500000D01*\n"+
		"X0Y0D01*\n"+
		"G37*\n"+
		"M02*\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 1)

	region, ok := art.Primitives[0].(artwork.Region)
	require.True(t, ok)
	assert.True(t, region.Ring.Closed())
	assert.Equal(t, artwork.Dark, region.Polarity)
}

func TestUnterminatedRegion(t *testing.T) {
	art, err := parseString(t, header+
		"G36*\nX0Y0D02*\nG01X500000Y0D01*\nM02*\n")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
	assert.Contains(t, err.Error(), "never closed")
	assert.Nil(t, art, "no primitives may escape a failed parse")
}

func TestRegionMustOpenWithMove(t *testing.T) {
	_, err := parseString(t, header+
		"G36*\nG01X500000Y0D01*\nG37*\nM02*\n")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindParse))
}

func TestClearPolarity(t *testing.T) {
	art, err := parseString(t, header+
		"%ADD10C,1*%\nD10*\n"+
		"X0Y0D03*\n"+
		"%LPC*%\n"+
		"X0Y0D03*\n"+
		"M02*\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 2)
	assert.Equal(t, artwork.Dark, art.Primitives[0].(artwork.Flash).Polarity)
	assert.Equal(t, artwork.Clear, art.Primitives[1].(artwork.Flash).Polarity)
}

func TestArcPlot(t *testing.T) {
	art, err := parseString(t, header+
		"%ADD10C,0.1*%\nD10*\n"+
		"X0Y0D02*\n"+
		"G03X0Y200000I0J100000D01*\n"+
		"M02*\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 1)

	stroke := art.Primitives[0].(artwork.Stroke)
	require.Len(t, stroke.Path.Segments, 1)
	arc, ok := stroke.Path.Segments[0].(geom.CounterClockwiseArc)
	require.True(t, ok)
	assert.Equal(t, geom.Point{X: 0, Y: 1}, arc.Center)
	assert.Equal(t, geom.Point{X: 0, Y: 2}, arc.To)
}

func TestArcRequiresCenterOffsets(t *testing.T) {
	_, err := parseString(t, header+
		"%ADD10C,0.1*%\nD10*\nX0Y0D02*\nG02X100000Y0D01*\nM02*\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "I and J")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undefined aperture", header + "D99*\nM02*\n", "never defined"},
		{"plot without aperture", header + "X0Y0D02*\nG01X100Y0D01*\nM02*\n", "no aperture"},
		{"reserved aperture code", header + "%ADD05C,1*%\nM02*\n", "reserved"},
		{"rectangle stroke", header + "%ADD10R,1X1*%\nD10*\nX0Y0D02*\nX100Y0D01*\nM02*\n", "circle apertures"},
		{"missing eof", header + "%ADD10C,1*%\n", "M02"},
		{"single quadrant mode", header + "G74*\nM02*\n", "not supported"},
		{"step repeat", header + "%SRX2Y2I1J1*%\nM02*\n", "not supported"},
		{"unknown word", header + "Q99*\nM02*\n", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseString(t, tt.src)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindParse), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestErrorCarriesLocation(t *testing.T) {
	_, err := parseString(t, header+"%ADD10C,1*%\nD10*\nD99*\nM02*\n")
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "test.gbr", e.Source)
	assert.Equal(t, 5, e.Line)
}

func TestMacroDefinitionAndFlash(t *testing.T) {
	art, err := parseString(t, header+
		"%AMDONUT*1,1,$1,0,0*1,0,$2,0,0*%\n"+
		"%ADD10DONUT,2X1*%\n"+
		"D10*\nX0Y0D03*\n"+
		"M02*\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 1)

	flash := art.Primitives[0].(artwork.Flash)
	macro, ok := flash.Aperture.(artwork.Macro)
	require.True(t, ok)
	assert.Equal(t, "DONUT", macro.Name)
	assert.Equal(t, []float64{2, 1}, macro.Args)
	require.Len(t, macro.Def.Body, 2)
}

func TestMacroExpressions(t *testing.T) {
	tests := []struct {
		expr string
		vars map[int]float64
		want float64
	}{
		{"1.5", nil, 1.5},
		{"$1", map[int]float64{1: 4}, 4},
		{"$1+$2", map[int]float64{1: 1, 2: 2}, 3},
		{"$1x$2", map[int]float64{1: 3, 2: 4}, 12},
		{"$1-1/2", map[int]float64{1: 5}, 4.5},
		{"($1-1)/2", map[int]float64{1: 5}, 2},
		{"-$1+10", map[int]float64{1: 4}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := parseExpr(tt.expr)
			require.NoError(t, err)
			got, err := e.Eval(tt.vars)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestMacroExpressionUndefinedVariable(t *testing.T) {
	e, err := parseExpr("$3+1")
	require.NoError(t, err)
	_, err = e.Eval(map[int]float64{1: 2})
	require.Error(t, err)
}

func TestApertureTransformCapturedAtFlash(t *testing.T) {
	art, err := parseString(t, header+
		"%ADD10R,2X1*%\nD10*\n"+
		"%LR90*%\n%LS2*%\n"+
		"X0Y0D03*\n"+
		"M02*\n")
	require.NoError(t, err)
	flash := art.Primitives[0].(artwork.Flash)
	assert.InDelta(t, 90, flash.Transform.Rotation, 1e-12)
	assert.InDelta(t, 2, flash.Transform.Scale, 1e-12)
}

func TestStrokeFlushOnStateChange(t *testing.T) {
	// Two plots separated by a polarity change become two strokes.
	art, err := parseString(t, header+
		"%ADD10C,0.2*%\nD10*\n"+
		"X0Y0D02*\nX100000Y0D01*\n"+
		"%LPC*%\n"+
		"X100000Y0D02*\nX200000Y0D01*\n"+
		"M02*\n")
	require.NoError(t, err)
	require.Len(t, art.Primitives, 2)
}

func TestSupports(t *testing.T) {
	p := Parser{}
	assert.True(t, p.Supports("board-F_Cu.gbr"))
	assert.True(t, p.Supports("board.GTL"))
	assert.False(t, p.Supports("board.drl"))
}

func TestFullCircleArcFlattens(t *testing.T) {
	// An arc plot whose start equals its end is a full circle.
	art, err := parseString(t, header+
		"%ADD10C,0.1*%\nD10*\n"+
		"X100000Y0D02*\n"+
		"G03X100000Y0I-100000J0D01*\n"+
		"M02*\n")
	require.NoError(t, err)
	stroke := art.Primitives[0].(artwork.Stroke)
	pts := stroke.Path.Flatten(0.05)
	require.Greater(t, len(pts), 10)
	for _, p := range pts {
		assert.InDelta(t, 1.0, math.Hypot(p.X, p.Y), 1e-9)
	}
}
