// Package drill interprets Excellon-style drill and route files into
// artwork primitives.
//
// The header declares units and the tool diameter table; the body
// switches tools and emits drill hits, or routes slots between M15
// (tool down) and M16 (tool up). The imperial drill unit is the inch.
// Coordinates are plain decimal numbers, converted to canonical
// millimeters as they are read.
package drill

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
)

// Parser interprets drill files.
type Parser struct{}

// Format returns the format identifier.
func (Parser) Format() string { return "excellon" }

// Supports reports whether the filename looks like a drill file.
func (Parser) Supports(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".drl") ||
		strings.HasSuffix(lower, ".xnc") ||
		strings.HasSuffix(lower, ".drd") ||
		strings.HasSuffix(lower, ".txt")
}

// cutMode selects between drilling hits and routing slots.
type cutMode int

const (
	modeDrill cutMode = iota
	modeRoute
)

// interp is the interpreter state for one drill file.
type interp struct {
	source string
	logger *log.Logger

	imperial     bool
	unitDeclared bool
	incremental  bool
	mode         cutMode

	tools    map[int]float64 // tool code -> diameter, canonical mm
	diameter float64         // selected tool diameter, 0 = none
	selected bool
	pos      geom.Point

	// Route accumulation between M15 and M16.
	route     *geom.Contour
	routeLine int

	out []artwork.Primitive
}

// Parse interprets a drill file read from the named source.
func (Parser) Parse(source string, data []byte, opts artwork.Options) (*artwork.Artwork, error) {
	art, _, err := ParseWithTools(source, data, opts)
	return art, err
}

// ParseWithTools interprets a drill file and also returns the tool
// diameter table in canonical millimeters.
func ParseWithTools(source string, data []byte, opts artwork.Options) (*artwork.Artwork, map[int]float64, error) {
	opts = opts.WithDefaults()
	in := &interp{
		source: source,
		logger: opts.Logger,
		tools:  make(map[int]float64),
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	i := 0
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "M48" {
		var err error
		i, err = in.header(lines)
		if err != nil {
			return nil, nil, err
		}
	}

	sawEnd := false
	for ; i < len(lines); i++ {
		text := strings.TrimSpace(lines[i])
		if text == "" || strings.HasPrefix(text, ";") {
			continue
		}
		if text == "M30" || text == "M00" {
			sawEnd = true
			break
		}
		if err := in.body(i+1, text); err != nil {
			return nil, nil, err
		}
	}

	if in.route != nil {
		return nil, nil, errors.NewParse(source, in.routeLine, 0,
			"route opened by M15 is never closed by M16")
	}
	if !sawEnd {
		return nil, nil, errors.NewParse(source, 0, 0, "missing M30 end-of-file command")
	}

	return &artwork.Artwork{Source: source, Primitives: in.out}, in.tools, nil
}

// header consumes the M48 .. % (or M95) block and returns the index of
// the first body line.
func (in *interp) header(lines []string) (int, error) {
	for i := 1; i < len(lines); i++ {
		text := strings.TrimSpace(lines[i])
		switch {
		case text == "" || strings.HasPrefix(text, ";"):
		case text == "%" || text == "M95":
			if !in.unitDeclared {
				return 0, errors.NewParse(in.source, i+1, 0,
					"drill header ends without a METRIC or INCH declaration")
			}
			return i + 1, nil
		case strings.HasPrefix(text, "METRIC"):
			in.setUnit(i+1, false)
		case strings.HasPrefix(text, "INCH"):
			in.setUnit(i+1, true)
		case strings.HasPrefix(text, "FMAT"):
			// Format revision declarations carry nothing we use.
		case strings.HasPrefix(text, "T"):
			if err := in.declareTool(i+1, text); err != nil {
				return 0, err
			}
		default:
			return 0, errors.NewParse(in.source, i+1, 0,
				"unknown drill header command %q", text)
		}
	}
	return 0, errors.NewParse(in.source, 1, 0, "drill header is never terminated by %% or M95")
}

func (in *interp) setUnit(line int, imperial bool) {
	if in.unitDeclared {
		in.logger.Warn("drill unit mode declared more than once", "source", in.source, "line", line)
	}
	in.imperial = imperial
	in.unitDeclared = true
}

// declareTool parses T<n>C<diameter>, ignoring feed/speed modifiers.
func (in *interp) declareTool(line int, text string) error {
	c := strings.IndexByte(text, 'C')
	if c < 0 {
		return errors.NewParse(in.source, line, 0, "tool declaration %q has no diameter", text)
	}
	code, err := strconv.Atoi(text[1:c])
	if err != nil {
		return errors.NewParse(in.source, line, 0, "malformed tool code in %q", text)
	}
	dia := text[c+1:]
	if cut := strings.IndexAny(dia, "FSB"); cut >= 0 {
		dia = dia[:cut]
	}
	d, err := strconv.ParseFloat(dia, 64)
	if err != nil || d <= 0 {
		return errors.NewParse(in.source, line, 0, "malformed tool diameter in %q", text)
	}
	if _, dup := in.tools[code]; dup {
		in.logger.Warn("drill tool redefined", "source", in.source, "tool", code, "line", line)
	}
	in.tools[code] = in.toMM(d)
	return nil
}

// body dispatches one body line.
func (in *interp) body(line int, text string) error {
	switch {
	case text == "G90":
		in.incremental = false
	case text == "G91":
		in.incremental = true
	case text == "G05":
		in.mode = modeDrill
	case text == "G00" || strings.HasPrefix(text, "G00X"):
		in.mode = modeRoute
		if len(text) > 3 {
			p, err := in.coords(line, text[3:], in.pos)
			if err != nil {
				return err
			}
			in.pos = p
		}
	case text == "M15":
		if in.mode != modeRoute {
			return errors.NewParse(in.source, line, 0, "tool down (M15) while in drill mode")
		}
		if in.route != nil {
			return errors.NewParse(in.source, line, 0, "tool down (M15) while already routing")
		}
		if !in.selected {
			return errors.NewParse(in.source, line, 0, "route started with no tool selected")
		}
		in.route = &geom.Contour{Start: in.pos}
		in.routeLine = line
	case text == "M16":
		if in.route == nil {
			return errors.NewParse(in.source, line, 0, "tool up (M16) without a matching M15")
		}
		if len(in.route.Segments) > 0 {
			in.out = append(in.out, artwork.RoutePath{Diameter: in.diameter, Path: *in.route})
		}
		in.route = nil
	case strings.HasPrefix(text, "G01"), strings.HasPrefix(text, "G02"), strings.HasPrefix(text, "G03"):
		return in.routeMove(line, text)
	case strings.HasPrefix(text, "T"):
		return in.selectTool(line, text)
	case strings.HasPrefix(text, "X"), strings.HasPrefix(text, "Y"):
		return in.hit(line, text)
	default:
		return errors.NewParse(in.source, line, 0, "unknown drill command %q", text)
	}
	return nil
}

// selectTool switches the current tool; T0 deselects.
func (in *interp) selectTool(line int, text string) error {
	code, err := strconv.Atoi(text[1:])
	if err != nil {
		return errors.NewParse(in.source, line, 0, "malformed tool selection %q", text)
	}
	if code == 0 {
		in.diameter = 0
		in.selected = false
		return nil
	}
	d, ok := in.tools[code]
	if !ok {
		return errors.NewParse(in.source, line, 0, "tool T%d selected but never declared", code)
	}
	in.diameter = d
	in.selected = true
	return nil
}

// hit emits a drill hit at the commanded position.
func (in *interp) hit(line int, text string) error {
	p, err := in.coords(line, text, in.pos)
	if err != nil {
		return err
	}
	if in.mode == modeDrill {
		if !in.selected {
			return errors.NewParse(in.source, line, 0, "drill hit with no tool selected")
		}
		in.out = append(in.out, artwork.DrillHit{Diameter: in.diameter, At: p})
	}
	in.pos = p
	return nil
}

// routeMove extends the open route with a linear or arc segment.
// Arc centers are derived from the chord and the A radius modifier.
func (in *interp) routeMove(line int, text string) error {
	if in.mode != modeRoute {
		return errors.NewParse(in.source, line, 0, "route move %q while in drill mode", text)
	}

	kind := text[:3]
	rest := text[3:]

	var radius float64
	if a := strings.IndexByte(rest, 'A'); a >= 0 {
		r, err := strconv.ParseFloat(rest[a+1:], 64)
		if err != nil || r <= 0 {
			return errors.NewParse(in.source, line, 0, "malformed arc radius in %q", text)
		}
		radius = in.toMM(r)
		rest = rest[:a]
	}

	target, err := in.coords(line, rest, in.pos)
	if err != nil {
		return err
	}

	if in.route == nil {
		// Moves outside M15..M16 just position the tool in the air.
		in.pos = target
		return nil
	}

	switch kind {
	case "G01":
		in.route.Segments = append(in.route.Segments, geom.Line{To: target})
	case "G02", "G03":
		if radius == 0 {
			return errors.NewParse(in.source, line, 0, "arc route move %q has no A radius", text)
		}
		center, err := arcCenter(in.pos, target, radius, kind == "G02")
		if err != nil {
			return errors.NewParse(in.source, line, 0, "%v", err)
		}
		if kind == "G02" {
			in.route.Segments = append(in.route.Segments, geom.ClockwiseArc{To: target, Center: center})
		} else {
			in.route.Segments = append(in.route.Segments, geom.CounterClockwiseArc{To: target, Center: center})
		}
	}
	in.pos = target
	return nil
}

// arcCenter derives the arc center from the chord endpoints and radius:
// the center sits at the chord midpoint displaced perpendicular by
// sqrt(r^2 - (chord/2)^2), on the side that makes the minor arc sweep
// in the requested direction.
func arcCenter(from, to geom.Point, radius float64, clockwise bool) (geom.Point, error) {
	chord := to.Sub(from)
	half := chord.Length() / 2
	if half < geom.Epsilon {
		return geom.Point{}, errors.New(errors.KindParse, "arc route move has coincident endpoints")
	}
	if radius < half {
		return geom.Point{}, errors.New(errors.KindParse,
			"arc radius %.4f is shorter than half the chord %.4f", radius, half)
	}
	h := math.Sqrt(radius*radius - half*half)
	mid := from.Add(to).Scale(0.5)
	dir := chord.Normalize()

	// Clockwise minor arcs keep their center right of the chord.
	perp := geom.Point{X: dir.Y, Y: -dir.X}
	if !clockwise {
		perp = geom.Point{X: -dir.Y, Y: dir.X}
	}
	return mid.Add(perp.Scale(h)), nil
}

// coords parses X and Y fields from a coordinate string. A missing
// ordinate keeps the current value; incremental mode offsets instead.
func (in *interp) coords(line int, text string, current geom.Point) (geom.Point, error) {
	next := current
	s := text
	var xSet, ySet bool
	var x, y float64
	for s != "" {
		letter := s[0]
		if letter != 'X' && letter != 'Y' {
			return geom.Point{}, errors.NewParse(in.source, line, 0,
				"unexpected %q in coordinate %q", string(letter), text)
		}
		s = s[1:]
		end := 0
		for end < len(s) && (s[end] == '+' || s[end] == '-' || s[end] == '.' ||
			(s[end] >= '0' && s[end] <= '9')) {
			end++
		}
		v, err := strconv.ParseFloat(s[:end], 64)
		if err != nil {
			return geom.Point{}, errors.NewParse(in.source, line, 0,
				"malformed coordinate in %q", text)
		}
		if letter == 'X' {
			x, xSet = in.toMM(v), true
		} else {
			y, ySet = in.toMM(v), true
		}
		s = s[end:]
	}

	if in.incremental {
		if xSet {
			next.X += x
		}
		if ySet {
			next.Y += y
		}
	} else {
		if xSet {
			next.X = x
		}
		if ySet {
			next.Y = y
		}
	}
	return next, nil
}

// toMM converts a file-unit value to canonical millimeters. The drill
// imperial unit is the inch.
func (in *interp) toMM(v float64) float64 {
	if in.imperial {
		return v * 25.4
	}
	return v
}
