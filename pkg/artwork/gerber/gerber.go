// Package gerber interprets RS-274X (extended Gerber) layers into
// artwork primitives.
//
// The interpreter walks the command stream with an explicit state
// struct (format, unit mode, current point, equipped aperture, draw
// mode, polarity, aperture transform, region accumulation), so
// independent files can be parsed in parallel. Coordinates are decoded
// per the declared format specification and converted to canonical
// millimeters immediately; the imperial Gerber unit is the mil.
package gerber

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/errors"
	"github.com/pcbforge/pcbforge/pkg/geom"
)

// Parser interprets Gerber layer files.
type Parser struct{}

// Format returns the format identifier.
func (Parser) Format() string { return "gerber" }

// Supports reports whether the filename looks like a Gerber layer.
func (Parser) Supports(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range []string{
		".gbr", ".gtl", ".gbl", ".gts", ".gbs", ".gto", ".gbo",
		".gko", ".gm1", ".gml", ".ger",
	} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// drawMode is the current interpolation mode.
type drawMode int

const (
	modeLinear drawMode = iota
	modeClockwise
	modeCounterClockwise
)

// interp is the interpreter state for one file.
type interp struct {
	source string
	logger *log.Logger

	intDigits int
	decDigits int
	imperial  bool

	pos       geom.Point
	aperture  int // 0 = none equipped
	mode      drawMode
	polarity  artwork.Polarity
	transform artwork.Transform

	apertures map[int]artwork.Aperture
	macros    map[string]artwork.MacroDef
	attrs     map[string][]string

	// Region accumulation. regionLine remembers the G36 location for
	// the unterminated-region error.
	region       *geom.Contour
	regionLine   int
	regionCol    int
	regionHasPts bool

	// Pending stroke: consecutive plots with unchanged aperture and
	// polarity accumulate into one primitive.
	stroke *artwork.Stroke

	out    []artwork.Primitive
	sawEOF bool
}

// Parse interprets a Gerber layer read from the named source.
func (Parser) Parse(source string, data []byte, opts artwork.Options) (*artwork.Artwork, error) {
	opts = opts.WithDefaults()

	tokens, err := lex(source, data)
	if err != nil {
		return nil, err
	}

	in := &interp{
		source: source,
		logger: opts.Logger,
		// Format defaults match common CAD output when the file omits
		// an explicit %FS%.
		intDigits: 3,
		decDigits: 5,
		polarity:  artwork.Dark,
		transform: artwork.IdentityTransform(),
		apertures: make(map[int]artwork.Aperture),
		macros:    make(map[string]artwork.MacroDef),
		attrs:     make(map[string][]string),
	}

	for _, tok := range tokens {
		if in.sawEOF {
			break
		}
		if tok.ext {
			err = in.extended(tok)
		} else {
			err = in.word(tok.parts[0])
		}
		if err != nil {
			return nil, err
		}
	}

	if in.region != nil {
		return nil, errors.NewParse(source, in.regionLine, in.regionCol,
			"region opened by G36 is never closed by G37")
	}
	if !in.sawEOF {
		return nil, errors.NewParse(source, 0, 0, "missing M02 end-of-file command")
	}
	in.flushStroke()

	return &artwork.Artwork{
		Source:     source,
		Primitives: in.out,
		Attributes: in.attrs,
	}, nil
}

// word dispatches one '*'-terminated function word.
func (in *interp) word(p part) error {
	text := p.text
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "G04") {
		return nil
	}

	switch text {
	case "M02":
		if in.region != nil {
			return errors.NewParse(in.source, in.regionLine, in.regionCol,
				"region opened by G36 is never closed by G37")
		}
		in.flushStroke()
		in.sawEOF = true
		return nil
	case "G36":
		if in.region != nil {
			return errors.NewParse(in.source, p.line, p.col, "nested G36 region start")
		}
		in.flushStroke()
		in.region = &geom.Contour{}
		in.regionLine = p.line
		in.regionCol = p.col
		in.regionHasPts = false
		return nil
	case "G37":
		if in.region == nil {
			return errors.NewParse(in.source, p.line, p.col, "G37 without a matching G36")
		}
		if len(in.region.Segments) > 0 {
			in.out = append(in.out, artwork.Region{Ring: *in.region, Polarity: in.polarity})
		}
		in.region = nil
		return nil
	case "G74":
		return errors.NewParse(in.source, p.line, p.col,
			"single-quadrant arc mode (G74) is not supported")
	case "G75":
		return nil
	case "G01":
		in.mode = modeLinear
		return nil
	case "G02":
		in.mode = modeClockwise
		return nil
	case "G03":
		in.mode = modeCounterClockwise
		return nil
	}

	rest := text
	switch {
	case strings.HasPrefix(rest, "G01"):
		in.mode = modeLinear
		rest = rest[3:]
	case strings.HasPrefix(rest, "G02"):
		in.mode = modeClockwise
		rest = rest[3:]
	case strings.HasPrefix(rest, "G03"):
		in.mode = modeCounterClockwise
		rest = rest[3:]
	}

	// A bare aperture select: Dnn with nn >= 10.
	if strings.HasPrefix(rest, "D") && !strings.ContainsAny(rest, "XYIJ") {
		code, err := strconv.Atoi(rest[1:])
		if err != nil {
			return errors.NewParse(in.source, p.line, p.col, "malformed command %q", text)
		}
		if code < 10 {
			return errors.NewParse(in.source, p.line, p.col,
				"operation D%02d requires coordinates", code)
		}
		if _, ok := in.apertures[code]; !ok {
			return errors.NewParse(in.source, p.line, p.col,
				"aperture D%d selected but never defined", code)
		}
		in.flushStroke()
		in.aperture = code
		return nil
	}

	return in.operation(p, rest)
}

// operation handles a coordinate word with a D01/D02/D03 function code.
func (in *interp) operation(p part, rest string) error {
	coords, op, err := in.splitOperation(p, rest)
	if err != nil {
		return err
	}

	next := in.pos
	if x, ok := coords['X']; ok {
		next.X = x
	}
	if y, ok := coords['Y']; ok {
		next.Y = y
	}

	switch op {
	case 2: // move
		if in.region != nil {
			in.regionAnchor(next)
			return nil
		}
		in.flushStroke()
		in.pos = next
		return nil
	case 3: // flash
		if in.region != nil {
			return errors.NewParse(in.source, p.line, p.col, "flash (D03) inside a region")
		}
		in.flushStroke()
		in.pos = next
		ap, ok := in.apertures[in.aperture]
		if !ok {
			return errors.NewParse(in.source, p.line, p.col, "flash with no aperture equipped")
		}
		in.out = append(in.out, artwork.Flash{
			Aperture:  ap,
			At:        in.pos,
			Polarity:  in.polarity,
			Transform: in.transform,
		})
		return nil
	case 1: // plot
		return in.plot(p, coords, next)
	}
	return errors.NewParse(in.source, p.line, p.col, "malformed operation %q", p.text)
}

// plot extends the current region ring or stroke by one segment.
func (in *interp) plot(p part, coords map[byte]float64, next geom.Point) error {
	var seg geom.Segment
	switch in.mode {
	case modeLinear:
		seg = geom.Line{To: next}
	default:
		i, iok := coords['I']
		j, jok := coords['J']
		if !iok || !jok {
			return errors.NewParse(in.source, p.line, p.col,
				"arc plot requires I and J center offsets")
		}
		center := geom.Point{X: in.pos.X + i, Y: in.pos.Y + j}
		if in.mode == modeClockwise {
			seg = geom.ClockwiseArc{To: next, Center: center}
		} else {
			seg = geom.CounterClockwiseArc{To: next, Center: center}
		}
	}

	if in.region != nil {
		if !in.regionHasPts {
			// The ring needs an anchor; the Gerber spec requires a
			// region to open with a D02 move.
			return errors.NewParse(in.source, p.line, p.col,
				"region must begin with a move (D02) before plotting")
		}
		in.region.Segments = append(in.region.Segments, seg)
		in.pos = next
		return nil
	}

	ap, ok := in.apertures[in.aperture]
	if !ok {
		return errors.NewParse(in.source, p.line, p.col, "plot with no aperture equipped")
	}
	circle, ok := ap.(artwork.Circle)
	if !ok {
		return errors.NewParse(in.source, p.line, p.col,
			"only circle apertures may plot lines, D%d is not a circle", in.aperture)
	}
	if circle.Hole > 0 {
		return errors.NewParse(in.source, p.line, p.col,
			"circle apertures with a hole may not plot lines")
	}

	width := in.transform.ScaleLength(circle.Diameter)
	if in.stroke == nil || in.stroke.Width != width || in.stroke.Polarity != in.polarity {
		in.flushStroke()
		in.stroke = &artwork.Stroke{
			Width:    width,
			Path:     geom.Contour{Start: in.pos},
			Polarity: in.polarity,
		}
	}
	in.stroke.Path.Segments = append(in.stroke.Path.Segments, seg)
	in.pos = next
	return nil
}

// splitOperation decodes the coordinate letters and trailing D code of
// an operation word. Region moves (D02) anchor the region ring.
func (in *interp) splitOperation(p part, rest string) (map[byte]float64, int, error) {
	coords := make(map[byte]float64)
	i := 0
	for i < len(rest) {
		letter := rest[i]
		switch letter {
		case 'X', 'Y', 'I', 'J':
			i++
			start := i
			for i < len(rest) && (rest[i] == '+' || rest[i] == '-' || (rest[i] >= '0' && rest[i] <= '9')) {
				i++
			}
			if start == i {
				return nil, 0, errors.NewParse(in.source, p.line, p.col+i,
					"coordinate %c has no digits", letter)
			}
			v, err := in.decodeCoordinate(rest[start:i])
			if err != nil {
				return nil, 0, errors.NewParse(in.source, p.line, p.col+start, "%v", err)
			}
			coords[letter] = v
		case 'D':
			op, err := strconv.Atoi(rest[i+1:])
			if err != nil || op < 1 || op > 3 {
				return nil, 0, errors.NewParse(in.source, p.line, p.col+i,
					"malformed operation code %q", rest[i:])
			}
			return coords, op, nil
		default:
			return nil, 0, errors.NewParse(in.source, p.line, p.col+i,
				"unknown command %q", p.text)
		}
	}
	return nil, 0, errors.NewParse(in.source, p.line, p.col,
		"coordinate word %q has no operation code", p.text)
}

// regionAnchor starts the region ring at the moved-to point. A second
// move inside one region restarts the ring only when nothing has been
// plotted yet; otherwise it is ignored and the builder rejects the
// torn geometry.
func (in *interp) regionAnchor(next geom.Point) {
	in.pos = next
	if !in.regionHasPts || len(in.region.Segments) == 0 {
		in.region.Start = in.pos
		in.regionHasPts = true
	}
}

// decodeCoordinate converts a fixed-point coordinate string to
// canonical millimeters: the final decDigits characters are the
// fraction, the prefix the signed integer part.
func (in *interp) decodeCoordinate(s string) (float64, error) {
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return 0, errors.New(errors.KindParse, "empty coordinate")
	}

	var intPart, fracPart int64
	var err error
	if len(s) <= in.decDigits {
		// Leading-zero suppression: short values are all fraction.
		fracPart, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, errors.New(errors.KindParse, "malformed coordinate %q", s)
		}
	} else {
		split := len(s) - in.decDigits
		intPart, err = strconv.ParseInt(s[:split], 10, 64)
		if err != nil {
			return 0, errors.New(errors.KindParse, "malformed coordinate %q", s)
		}
		fracPart, err = strconv.ParseInt(s[split:], 10, 64)
		if err != nil {
			return 0, errors.New(errors.KindParse, "malformed coordinate %q", s)
		}
	}

	scale := 1.0
	for range in.decDigits {
		scale *= 10
	}
	v := float64(intPart) + float64(fracPart)/scale
	if neg {
		v = -v
	}
	return in.toMM(v), nil
}

// toMM converts a file-unit value to canonical millimeters. The Gerber
// imperial unit is the mil, not the inch.
func (in *interp) toMM(v float64) float64 {
	if in.imperial {
		return v * 0.0254
	}
	return v
}

// flushStroke emits any accumulating stroke primitive.
func (in *interp) flushStroke() {
	if in.stroke != nil && len(in.stroke.Path.Segments) > 0 {
		in.out = append(in.out, *in.stroke)
	}
	in.stroke = nil
}
