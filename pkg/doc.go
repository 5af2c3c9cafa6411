// Package pkg provides the core libraries for pcbforge PCB toolpath
// generation.
//
// # Overview
//
// pcbforge turns PCB manufacturing artwork into G-code for hobby CNC
// routers and laser engravers. The pkg directory is organized along
// the build pipeline:
//
//  1. [artwork] - Input interpretation (Gerber layers, Excellon drills)
//  2. [contour] - Polygon construction and containment classification
//  3. [plan] - Toolpath planning (cutting, engraving, depth passes)
//  4. [motion] - Machine command emission and G-code encoding
//  5. [config] - Machine configuration and job files
//  6. [pipeline] - Orchestration (interpret → classify → plan → emit)
//
// # Architecture
//
// The typical data flow through pcbforge:
//
//	Gerber / Excellon file
//	         ↓
//	    [artwork] package (interpret into primitives)
//	         ↓
//	    [contour] package (polygons + containment forest)
//	         ↓
//	    [plan] package (tool-compensated depth passes)
//	         ↓
//	    [motion] package (commands + G-code encoding)
//	         ↓
//	    .gcode output
//
// # Quick Start
//
// Interpret a board outline and plan a cutting job:
//
//	import (
//	    "github.com/pcbforge/pcbforge/pkg/artwork"
//	    "github.com/pcbforge/pcbforge/pkg/artwork/gerber"
//	    "github.com/pcbforge/pcbforge/pkg/contour"
//	    "github.com/pcbforge/pcbforge/pkg/motion"
//	    "github.com/pcbforge/pcbforge/pkg/plan"
//	    "github.com/pcbforge/pcbforge/pkg/units"
//	)
//
//	// 1. Interpret the artwork
//	art, _ := gerber.Parser{}.Parse("edge.gbr", data, artwork.Options{})
//
//	// 2. Build and classify contours
//	polys, _ := contour.Build(art.Primitives, contour.Options{})
//	forest, _ := contour.Classify(polys)
//
//	// 3. Plan depth passes
//	tool := plan.Tool{Name: "diode", Kind: plan.Laser,
//	    Diameter: units.Millimeters(0.2), MaxPower: units.Watts(5)}
//	passes, _ := plan.CutBoard(forest, tool, plan.CutConfig{
//	    Select:    contour.SelectOuter,
//	    WorkSpeed: units.MMPerMinute(300),
//	    CutDepth:  units.Millimeters(-1),
//	    PassDepth: units.Millimeters(0.5),
//	    LaserPower: units.Watts(2.5),
//	}, plan.Options{})
//
//	// 4. Emit G-code
//	cmds, _ := motion.Emit(passes, tool, params, machine)
//	gcode, _ := motion.EncodeGCode(cmds, motion.EncodeOptions{})
//
// # Main Packages
//
// [units] - Physical quantities (length, speed, power, spindle speed)
// with explicit units and canonical metric conversion.
//
// [geom] - Planar primitives: points, rings, bounding boxes, and the
// polygon predicates classification builds on.
//
// [artwork] - Input interpretation. [artwork/gerber] handles RS-274X
// layers, [artwork/drill] handles Excellon drill and route files.
//
// [contour] - Turns primitives into closed polygons and nests them
// into a containment forest of solids and holes.
//
// [plan] - Tool-compensated toolpath planning: board cutting with
// depth passes, mask engraving with fill sweeps, backside mirroring.
//
// [motion] - Machine-facing command stream and the G-code encoder,
// including laser and spindle tool handling and workspace bounds
// checks.
//
// [config] - TOML machine configuration and per-project job files,
// resolved into executable jobs.
//
// [pipeline] - Runs every output of a job concurrently with
// content-addressed caching. [cache] provides the file, Redis, and
// MongoDB backends.
//
// [render] - SVG board views and Graphviz containment graphs for
// inspection and the preview server.
//
// [errors] - Kinded errors with source positions for parse failures
// and machine context for planning failures.
//
// [io] - Atomic output writing and forest JSON export.
//
// [observability] - Pipeline, cache, and server hook interfaces for
// embedding pcbforge with custom telemetry.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...              # All tests
//	go test ./pkg/artwork/...      # Specific package
//	go test -run Example           # Examples only
//
// [units]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/units
// [geom]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/geom
// [artwork]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/artwork
// [artwork/gerber]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/artwork/gerber
// [artwork/drill]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/artwork/drill
// [contour]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/contour
// [plan]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/plan
// [motion]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/motion
// [config]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/config
// [pipeline]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/cache
// [render]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/render
// [errors]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/errors
// [io]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/io
// [observability]: https://pkg.go.dev/github.com/pcbforge/pcbforge/pkg/observability
package pkg
