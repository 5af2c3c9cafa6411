// Package artwork defines the board artwork model shared by the input
// interpreters: ordered drawing primitives, aperture templates, and the
// aperture macro language.
//
// Interpreters (pkg/artwork/gerber, pkg/artwork/drill) produce an
// Artwork; the geometry builder (pkg/contour) flattens its primitives
// into polygons. Primitive order is meaningful: later clear primitives
// override earlier dark material.
package artwork

import "github.com/pcbforge/pcbforge/pkg/geom"

// Polarity states whether a primitive adds or removes material.
type Polarity int

const (
	// Dark adds material.
	Dark Polarity = iota
	// Clear removes previously added material.
	Clear
)

// String returns the polarity name.
func (p Polarity) String() string {
	if p == Clear {
		return "clear"
	}
	return "dark"
}

// PrimitiveKind identifies a primitive variant.
type PrimitiveKind string

// Primitive kinds produced by the interpreters.
const (
	KindFlash     PrimitiveKind = "flash"
	KindStroke    PrimitiveKind = "stroke"
	KindRegion    PrimitiveKind = "region"
	KindDrillHit  PrimitiveKind = "drill-hit"
	KindRoutePath PrimitiveKind = "route-path"
)

// Primitive is one ordered drawing operation of an artwork layer.
// All coordinates and dimensions are canonical millimeters.
type Primitive interface {
	Kind() PrimitiveKind

	isPrimitive()
}

// Flash stamps an aperture image at a point, transformed by the aperture
// transform state captured when the flash was recorded.
type Flash struct {
	Aperture  Aperture
	At        geom.Point
	Polarity  Polarity
	Transform Transform
}

// Kind returns KindFlash.
func (Flash) Kind() PrimitiveKind { return KindFlash }

func (Flash) isPrimitive() {}

// Stroke draws a path with a round pen of the given width. Only holeless
// circle apertures may stroke; the interpreters enforce that.
type Stroke struct {
	Width    float64
	Path     geom.Contour
	Polarity Polarity
}

// Kind returns KindStroke.
func (Stroke) Kind() PrimitiveKind { return KindStroke }

func (Stroke) isPrimitive() {}

// Region is a closed outline filled as drawn.
type Region struct {
	Ring     geom.Contour
	Polarity Polarity
}

// Kind returns KindRegion.
func (Region) Kind() PrimitiveKind { return KindRegion }

func (Region) isPrimitive() {}

// DrillHit is a hole of the given diameter.
type DrillHit struct {
	Diameter float64
	At       geom.Point
}

// Kind returns KindDrillHit.
func (DrillHit) Kind() PrimitiveKind { return KindDrillHit }

func (DrillHit) isPrimitive() {}

// RoutePath is a slot routed with a drill of the given diameter.
type RoutePath struct {
	Diameter float64
	Path     geom.Contour
}

// Kind returns KindRoutePath.
func (RoutePath) Kind() PrimitiveKind { return KindRoutePath }

func (RoutePath) isPrimitive() {}

// Artwork is an interpreted input layer: ordered primitives plus the
// stored, never interpreted, file attributes.
type Artwork struct {
	Source     string
	Primitives []Primitive
	Attributes map[string][]string
}

// CountByKind tallies primitives per kind, for stage logging.
func (a *Artwork) CountByKind() map[PrimitiveKind]int {
	counts := make(map[PrimitiveKind]int)
	for _, p := range a.Primitives {
		counts[p.Kind()]++
	}
	return counts
}
