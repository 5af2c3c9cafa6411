package contour

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
)

func buildOne(t *testing.T, prim artwork.Primitive) []Polygon {
	t.Helper()
	polys, err := Build([]artwork.Primitive{prim}, Options{})
	require.NoError(t, err)
	return polys
}

func TestBuildCircleFlash(t *testing.T) {
	polys := buildOne(t, artwork.Flash{
		Aperture:  artwork.Circle{Diameter: 2},
		At:        geom.Point{X: 5, Y: 3},
		Transform: artwork.IdentityTransform(),
	})
	require.Len(t, polys, 1)

	ring := polys[0].Ring
	assert.True(t, ring.Closed())
	assert.InDelta(t, math.Pi, math.Abs(ring.SignedArea()), 0.01)
	assert.InDelta(t, 5, ring.Centroid().X, 1e-9)
	assert.InDelta(t, 3, ring.Centroid().Y, 1e-9)
	assert.Equal(t, artwork.KindFlash, polys[0].Source)
	assert.False(t, polys[0].FromDrill())
}

func TestBuildRectangleFlashWithHole(t *testing.T) {
	polys := buildOne(t, artwork.Flash{
		Aperture:  artwork.Rectangle{W: 4, H: 2, Hole: 1},
		Transform: artwork.IdentityTransform(),
	})
	require.Len(t, polys, 2)

	assert.InDelta(t, 8, math.Abs(polys[0].Ring.SignedArea()), 1e-9)
	assert.Equal(t, artwork.Dark, polys[0].Polarity)

	// The hole trails its parent as a clear circle.
	assert.Equal(t, artwork.Clear, polys[1].Polarity)
	assert.InDelta(t, math.Pi*0.25, math.Abs(polys[1].Ring.SignedArea()), 0.01)
}

func TestBuildFlashAppliesTransform(t *testing.T) {
	polys := buildOne(t, artwork.Flash{
		Aperture:  artwork.Rectangle{W: 4, H: 2},
		Transform: artwork.Transform{Rotation: 90, Scale: 1},
	})
	require.Len(t, polys, 1)

	box := polys[0].Ring.BoundingBox()
	assert.InDelta(t, 2, box.Width(), 1e-9)
	assert.InDelta(t, 4, box.Height(), 1e-9)
}

func TestBuildScaledCircleFlash(t *testing.T) {
	polys := buildOne(t, artwork.Flash{
		Aperture:  artwork.Circle{Diameter: 1},
		Transform: artwork.Transform{Scale: 2},
	})
	require.Len(t, polys, 1)
	assert.InDelta(t, math.Pi, math.Abs(polys[0].Ring.SignedArea()), 0.01)
}

func TestBuildObroundFlash(t *testing.T) {
	polys := buildOne(t, artwork.Flash{
		Aperture:  artwork.Obround{W: 4, H: 2},
		Transform: artwork.IdentityTransform(),
	})
	require.Len(t, polys, 1)

	box := polys[0].Ring.BoundingBox()
	assert.InDelta(t, 4, box.Width(), 1e-6)
	assert.InDelta(t, 2, box.Height(), 1e-6)

	// Rectangle middle plus two semicircle caps.
	want := 2*2 + math.Pi
	assert.InDelta(t, want, math.Abs(polys[0].Ring.SignedArea()), 0.02)
}

func TestBuildPolygonFlash(t *testing.T) {
	polys := buildOne(t, artwork.Flash{
		Aperture:  artwork.Polygon{Diameter: 2, Vertices: 6},
		Transform: artwork.IdentityTransform(),
	})
	require.Len(t, polys, 1)
	assert.Len(t, polys[0].Ring.Vertices(), 6)

	// Regular hexagon inscribed in r=1.
	want := 3 * math.Sqrt(3) / 2
	assert.InDelta(t, want, math.Abs(polys[0].Ring.SignedArea()), 1e-9)
}

func TestBuildMacroFlash(t *testing.T) {
	def := artwork.MacroDef{
		Name: "DONUT",
		Body: []artwork.MacroPrimitive{
			artwork.MacroCircle{Exposure: artwork.Num(1), Diameter: artwork.Var(1), X: artwork.Num(0), Y: artwork.Num(0)},
			artwork.MacroCircle{Exposure: artwork.Num(0), Diameter: artwork.Var(2), X: artwork.Num(0), Y: artwork.Num(0)},
		},
	}
	polys := buildOne(t, artwork.Flash{
		Aperture:  artwork.Macro{Name: "DONUT", Args: []float64{2, 1}, Def: def},
		At:        geom.Point{X: 1, Y: 1},
		Transform: artwork.IdentityTransform(),
	})
	require.Len(t, polys, 2)
	assert.Equal(t, artwork.Dark, polys[0].Polarity)
	assert.Equal(t, artwork.Clear, polys[1].Polarity)
	assert.InDelta(t, math.Pi, math.Abs(polys[0].Ring.SignedArea()), 0.01)
	assert.InDelta(t, math.Pi/4, math.Abs(polys[1].Ring.SignedArea()), 0.01)
}

func TestBuildMacroVariableAssignment(t *testing.T) {
	def := artwork.MacroDef{
		Name: "GROWN",
		Body: []artwork.MacroPrimitive{
			artwork.MacroVariable{Index: 2, Value: artwork.BinOp{Op: 'x', L: artwork.Var(1), R: artwork.Num(2)}},
			artwork.MacroCircle{Exposure: artwork.Num(1), Diameter: artwork.Var(2), X: artwork.Num(0), Y: artwork.Num(0)},
		},
	}
	polys := buildOne(t, artwork.Flash{
		Aperture:  artwork.Macro{Name: "GROWN", Args: []float64{1}, Def: def},
		Transform: artwork.IdentityTransform(),
	})
	require.Len(t, polys, 1)
	assert.InDelta(t, math.Pi, math.Abs(polys[0].Ring.SignedArea()), 0.01)
}

func TestBuildMacroThermalUnsupported(t *testing.T) {
	def := artwork.MacroDef{
		Name: "THERM",
		Body: []artwork.MacroPrimitive{
			artwork.MacroThermal{
				X: artwork.Num(0), Y: artwork.Num(0),
				OuterDiameter: artwork.Num(2), InnerDiameter: artwork.Num(1),
				GapThickness: artwork.Num(0.2),
			},
		},
	}
	_, err := Build([]artwork.Primitive{artwork.Flash{
		Aperture:  artwork.Macro{Name: "THERM", Def: def},
		Transform: artwork.IdentityTransform(),
	}}, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnsupported))
}

func TestBuildOpenStroke(t *testing.T) {
	polys := buildOne(t, artwork.Stroke{
		Width: 1,
		Path: geom.Contour{
			Start:    geom.Point{X: 0, Y: 0},
			Segments: []geom.Segment{geom.Line{To: geom.Point{X: 10, Y: 0}}},
		},
	})
	require.Len(t, polys, 1)

	// Ribbon plus two semicircle caps.
	want := 10*1 + math.Pi*0.25
	assert.InDelta(t, want, math.Abs(polys[0].Ring.SignedArea()), 0.05)

	box := polys[0].Ring.BoundingBox()
	assert.InDelta(t, 11, box.Width(), 1e-6)
	assert.InDelta(t, 1, box.Height(), 1e-6)
}

func TestBuildClosedStrokeBecomesAnnulus(t *testing.T) {
	square := geom.Contour{
		Start: geom.Point{X: 0, Y: 0},
		Segments: []geom.Segment{
			geom.Line{To: geom.Point{X: 10, Y: 0}},
			geom.Line{To: geom.Point{X: 10, Y: 10}},
			geom.Line{To: geom.Point{X: 0, Y: 10}},
			geom.Line{To: geom.Point{X: 0, Y: 0}},
		},
	}
	polys := buildOne(t, artwork.Stroke{Width: 1, Path: square})
	require.Len(t, polys, 2)

	outer := math.Abs(polys[0].Ring.SignedArea())
	inner := math.Abs(polys[1].Ring.SignedArea())
	assert.Greater(t, outer, inner)
	assert.InDelta(t, 81, inner, 1e-6)

	// The inner ring sits inside the outer, restoring the middle by
	// containment parity.
	assert.True(t, polys[0].Ring.ContainsPoint(polys[1].Ring.RepresentativePoint()))
}

func TestBuildTightClosedStrokeFillsSolid(t *testing.T) {
	// Loop smaller than the pen: no unswept middle survives.
	small := geom.Contour{
		Start: geom.Point{X: 0, Y: 0},
		Segments: []geom.Segment{
			geom.Line{To: geom.Point{X: 0.3, Y: 0}},
			geom.Line{To: geom.Point{X: 0.3, Y: 0.3}},
			geom.Line{To: geom.Point{X: 0, Y: 0.3}},
			geom.Line{To: geom.Point{X: 0, Y: 0}},
		},
	}
	polys := buildOne(t, artwork.Stroke{Width: 1, Path: small})
	assert.Len(t, polys, 1)
}

func TestBuildRegion(t *testing.T) {
	region := artwork.Region{
		Ring: geom.Contour{
			Start: geom.Point{X: 0, Y: 0},
			Segments: []geom.Segment{
				geom.Line{To: geom.Point{X: 5, Y: 0}},
				geom.Line{To: geom.Point{X: 5, Y: 5}},
				geom.Line{To: geom.Point{X: 0, Y: 5}},
				geom.Line{To: geom.Point{X: 0, Y: 0}},
			},
		},
	}
	polys := buildOne(t, region)
	require.Len(t, polys, 1)
	assert.InDelta(t, 25, math.Abs(polys[0].Ring.SignedArea()), 1e-9)
	assert.Equal(t, artwork.KindRegion, polys[0].Source)
}

func TestBuildSelfIntersectingRegionRejected(t *testing.T) {
	bowtie := artwork.Region{
		Ring: geom.Contour{
			Start: geom.Point{X: 0, Y: 0},
			Segments: []geom.Segment{
				geom.Line{To: geom.Point{X: 2, Y: 2}},
				geom.Line{To: geom.Point{X: 2, Y: 0}},
				geom.Line{To: geom.Point{X: 0, Y: 2}},
				geom.Line{To: geom.Point{X: 0, Y: 0}},
			},
		},
	}
	_, err := Build([]artwork.Primitive{bowtie}, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindGeometry))
	assert.Contains(t, err.Error(), "intersects itself")

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Contour, "region")
}

func TestBuildZeroAreaRejected(t *testing.T) {
	spike := artwork.Region{
		Ring: geom.Contour{
			Start: geom.Point{X: 0, Y: 0},
			Segments: []geom.Segment{
				geom.Line{To: geom.Point{X: 2, Y: 0}},
				geom.Line{To: geom.Point{X: 1, Y: 0}},
				geom.Line{To: geom.Point{X: 0, Y: 0}},
			},
		},
	}
	_, err := Build([]artwork.Primitive{spike}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero area")
}

func TestBuildDrillHit(t *testing.T) {
	polys := buildOne(t, artwork.DrillHit{Diameter: 0.8, At: geom.Point{X: 2, Y: 2}})
	require.Len(t, polys, 1)
	assert.True(t, polys[0].FromDrill())

	box := polys[0].Ring.BoundingBox()
	assert.InDelta(t, 0.8, box.Width(), 1e-6)
}

func TestBuildRoutePath(t *testing.T) {
	polys := buildOne(t, artwork.RoutePath{
		Diameter: 2,
		Path: geom.Contour{
			Start:    geom.Point{X: 0, Y: 0},
			Segments: []geom.Segment{geom.Line{To: geom.Point{X: 5, Y: 0}}},
		},
	})
	require.Len(t, polys, 1)
	assert.True(t, polys[0].FromDrill())
	assert.InDelta(t, 5*2+math.Pi, math.Abs(polys[0].Ring.SignedArea()), 0.05)
}

func TestBuildPreservesInputOrder(t *testing.T) {
	prims := []artwork.Primitive{
		artwork.Flash{Aperture: artwork.Circle{Diameter: 2}, Transform: artwork.IdentityTransform()},
		artwork.Flash{Aperture: artwork.Circle{Diameter: 1}, Polarity: artwork.Clear, Transform: artwork.IdentityTransform()},
	}
	polys, err := Build(prims, Options{})
	require.NoError(t, err)
	require.Len(t, polys, 2)
	assert.Equal(t, artwork.Dark, polys[0].Polarity)
	assert.Equal(t, artwork.Clear, polys[1].Polarity)
}
