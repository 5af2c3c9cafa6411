package gerber

import (
	"strconv"
	"strings"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/errors"
)

// extended dispatches a %...% command.
func (in *interp) extended(tok token) error {
	head := tok.parts[0]
	text := head.text

	switch {
	case strings.HasPrefix(text, "FS"):
		return in.formatSpec(head)
	case text == "MOMM":
		in.imperial = false
		return nil
	case text == "MOIN":
		in.imperial = true
		return nil
	case strings.HasPrefix(text, "AD"):
		return in.defineAperture(head)
	case strings.HasPrefix(text, "AM"):
		return in.defineMacro(tok)
	case text == "LPD":
		in.flushStroke()
		in.polarity = artwork.Dark
		return nil
	case text == "LPC":
		in.flushStroke()
		in.polarity = artwork.Clear
		return nil
	case strings.HasPrefix(text, "LM"):
		return in.loadMirroring(head)
	case strings.HasPrefix(text, "LR"):
		deg, err := strconv.ParseFloat(text[2:], 64)
		if err != nil {
			return errors.NewParse(in.source, head.line, head.col, "malformed rotation %q", text)
		}
		in.flushStroke()
		in.transform.Rotation = deg
		return nil
	case strings.HasPrefix(text, "LS"):
		scale, err := strconv.ParseFloat(text[2:], 64)
		if err != nil {
			return errors.NewParse(in.source, head.line, head.col, "malformed scale %q", text)
		}
		in.flushStroke()
		in.transform.Scale = scale
		return nil
	case strings.HasPrefix(text, "TF"), strings.HasPrefix(text, "TA"), strings.HasPrefix(text, "TO"):
		// Attributes are stored for diagnostics, never interpreted.
		fields := strings.Split(text[2:], ",")
		in.attrs[fields[0]] = fields[1:]
		return nil
	case strings.HasPrefix(text, "TD"):
		if name := text[2:]; name != "" {
			delete(in.attrs, name)
		} else {
			clear(in.attrs)
		}
		return nil
	case strings.HasPrefix(text, "SR"):
		return errors.NewParse(in.source, head.line, head.col,
			"step and repeat (%%SR%%) is not supported")
	case strings.HasPrefix(text, "AB"):
		return errors.NewParse(in.source, head.line, head.col,
			"aperture blocks (%%AB%%) are not supported")
	}
	return errors.NewParse(in.source, head.line, head.col, "unknown extended command %q", text)
}

// formatSpec parses %FSLAX<i><d>Y<i><d>%. Only leading-zero
// suppression with absolute coordinates is supported.
func (in *interp) formatSpec(p part) error {
	s := p.text
	if !strings.HasPrefix(s, "FSLA") {
		return errors.NewParse(in.source, p.line, p.col,
			"unsupported format specification %q (only leading-zero absolute is supported)", s)
	}
	s = s[4:]
	if len(s) != 6 || s[0] != 'X' || s[3] != 'Y' || s[1:3] != s[4:6] {
		return errors.NewParse(in.source, p.line, p.col, "malformed format specification %q", p.text)
	}
	intDigits := int(s[1] - '0')
	decDigits := int(s[2] - '0')
	if intDigits < 1 || intDigits > 6 || decDigits < 3 || decDigits > 6 {
		return errors.NewParse(in.source, p.line, p.col,
			"format specification %q digits out of range", p.text)
	}
	in.intDigits = intDigits
	in.decDigits = decDigits
	return nil
}

// loadMirroring parses %LM(N|X|Y|XY)%.
func (in *interp) loadMirroring(p part) error {
	in.flushStroke()
	switch p.text[2:] {
	case "N":
		in.transform.MirrorX, in.transform.MirrorY = false, false
	case "X":
		in.transform.MirrorX, in.transform.MirrorY = true, false
	case "Y":
		in.transform.MirrorX, in.transform.MirrorY = false, true
	case "XY":
		in.transform.MirrorX, in.transform.MirrorY = true, true
	default:
		return errors.NewParse(in.source, p.line, p.col, "malformed mirroring mode %q", p.text)
	}
	return nil
}

// defineAperture parses %ADD<code><template>[,<modifiers>]%. Dimension
// modifiers are in file units and stored canonical.
func (in *interp) defineAperture(p part) error {
	s := p.text[2:]
	if !strings.HasPrefix(s, "D") {
		return errors.NewParse(in.source, p.line, p.col, "malformed aperture definition %q", p.text)
	}
	s = s[1:]

	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	code, err := strconv.Atoi(s[:digits])
	if err != nil {
		return errors.NewParse(in.source, p.line, p.col, "malformed aperture code in %q", p.text)
	}
	if code < 10 {
		return errors.NewParse(in.source, p.line, p.col,
			"aperture codes below D10 are reserved, got D%d", code)
	}
	s = s[digits:]

	name := s
	var mods []float64
	if comma := strings.IndexByte(s, ','); comma >= 0 {
		name = s[:comma]
		for _, f := range strings.Split(s[comma+1:], "X") {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return errors.NewParse(in.source, p.line, p.col,
					"malformed aperture modifier %q", f)
			}
			mods = append(mods, v)
		}
	}

	mod := func(i int) float64 {
		if i < len(mods) {
			return mods[i]
		}
		return 0
	}

	var ap artwork.Aperture
	switch name {
	case "C":
		if len(mods) < 1 {
			return errors.NewParse(in.source, p.line, p.col, "circle aperture needs a diameter")
		}
		ap = artwork.Circle{Diameter: in.toMM(mod(0)), Hole: in.toMM(mod(1))}
	case "R":
		if len(mods) < 2 {
			return errors.NewParse(in.source, p.line, p.col, "rectangle aperture needs width and height")
		}
		ap = artwork.Rectangle{W: in.toMM(mod(0)), H: in.toMM(mod(1)), Hole: in.toMM(mod(2))}
	case "O":
		if len(mods) < 2 {
			return errors.NewParse(in.source, p.line, p.col, "obround aperture needs width and height")
		}
		ap = artwork.Obround{W: in.toMM(mod(0)), H: in.toMM(mod(1)), Hole: in.toMM(mod(2))}
	case "P":
		if len(mods) < 2 {
			return errors.NewParse(in.source, p.line, p.col,
				"polygon aperture needs a diameter and vertex count")
		}
		verts := int(mod(1))
		if verts < 3 || verts > 12 {
			return errors.NewParse(in.source, p.line, p.col,
				"polygon aperture vertex count %d out of range", verts)
		}
		ap = artwork.Polygon{
			Diameter: in.toMM(mod(0)),
			Vertices: verts,
			Rotation: mod(2),
			Hole:     in.toMM(mod(3)),
		}
	default:
		def, ok := in.macros[name]
		if !ok {
			return errors.NewParse(in.source, p.line, p.col,
				"aperture D%d references undefined macro %q", code, name)
		}
		ap = artwork.Macro{Name: name, Args: mods, Def: def}
	}

	if _, dup := in.apertures[code]; dup {
		in.logger.Warn("aperture redefined", "source", in.source, "aperture", code, "line", p.line)
	}
	in.apertures[code] = ap
	return nil
}

// defineMacro parses %AM<name>*<body>*...%.
func (in *interp) defineMacro(tok token) error {
	head := tok.parts[0]
	name := head.text[2:]
	if name == "" {
		return errors.NewParse(in.source, head.line, head.col, "aperture macro has no name")
	}

	def := artwork.MacroDef{Name: name}
	for _, p := range tok.parts[1:] {
		prim, err := in.macroPrimitive(p)
		if err != nil {
			return err
		}
		def.Body = append(def.Body, prim)
	}

	in.macros[name] = def
	return nil
}

// macroPrimitive parses one '*'-terminated macro body word.
func (in *interp) macroPrimitive(p part) (artwork.MacroPrimitive, error) {
	text := p.text

	if strings.HasPrefix(text, "0 ") || text == "0" {
		return artwork.MacroComment{Text: strings.TrimPrefix(text, "0 ")}, nil
	}
	if strings.HasPrefix(text, "$") {
		eq := strings.IndexByte(text, '=')
		if eq < 0 {
			return nil, errors.NewParse(in.source, p.line, p.col,
				"malformed macro variable definition %q", text)
		}
		idx, err := strconv.Atoi(text[1:eq])
		if err != nil || idx < 1 {
			return nil, errors.NewParse(in.source, p.line, p.col,
				"malformed macro variable name %q", text[:eq])
		}
		expr, err := parseExpr(text[eq+1:])
		if err != nil {
			return nil, errors.NewParse(in.source, p.line, p.col, "%v", err)
		}
		return artwork.MacroVariable{Index: idx, Value: expr}, nil
	}

	fields := strings.Split(text, ",")
	exprs := make([]artwork.Expr, len(fields)-1)
	for i, f := range fields[1:] {
		e, err := parseExpr(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.NewParse(in.source, p.line, p.col, "%v", err)
		}
		exprs[i] = e
	}

	at := func(i int) artwork.Expr {
		if i < len(exprs) {
			return exprs[i]
		}
		return artwork.Num(0)
	}

	need := func(n int, what string) error {
		if len(exprs) < n {
			return errors.NewParse(in.source, p.line, p.col,
				"macro %s primitive needs %d parameters, got %d", what, n, len(exprs))
		}
		return nil
	}

	switch strings.TrimSpace(fields[0]) {
	case "1":
		if err := need(4, "circle"); err != nil {
			return nil, err
		}
		return artwork.MacroCircle{
			Exposure: at(0), Diameter: at(1), X: at(2), Y: at(3), Angle: at(4),
		}, nil
	case "20":
		if err := need(7, "vector line"); err != nil {
			return nil, err
		}
		return artwork.MacroVectorLine{
			Exposure: at(0), Width: at(1),
			StartX: at(2), StartY: at(3), EndX: at(4), EndY: at(5), Angle: at(6),
		}, nil
	case "21":
		if err := need(6, "center line"); err != nil {
			return nil, err
		}
		return artwork.MacroCenterLine{
			Exposure: at(0), Width: at(1), Height: at(2), X: at(3), Y: at(4), Angle: at(5),
		}, nil
	case "4":
		if err := need(3, "outline"); err != nil {
			return nil, err
		}
		// 4,exposure,n,x0,y0,...,xn,yn,angle: n is the vertex count
		// after the first point.
		rest := exprs[2:]
		if len(rest)%2 != 1 || len(rest) < 3 {
			return nil, errors.NewParse(in.source, p.line, p.col,
				"macro outline has a malformed coordinate list")
		}
		pts := make([]artwork.MacroPoint, 0, len(rest)/2)
		for i := 0; i+1 < len(rest); i += 2 {
			pts = append(pts, artwork.MacroPoint{X: rest[i], Y: rest[i+1]})
		}
		return artwork.MacroOutline{
			Exposure: exprs[0],
			Points:   pts,
			Angle:    rest[len(rest)-1],
		}, nil
	case "5":
		if err := need(5, "polygon"); err != nil {
			return nil, err
		}
		return artwork.MacroPolygon{
			Exposure: at(0), Vertices: at(1), X: at(2), Y: at(3), Diameter: at(4), Angle: at(5),
		}, nil
	case "7":
		if err := need(5, "thermal"); err != nil {
			return nil, err
		}
		return artwork.MacroThermal{
			X: at(0), Y: at(1),
			OuterDiameter: at(2), InnerDiameter: at(3), GapThickness: at(4), Angle: at(5),
		}, nil
	}
	return nil, errors.NewParse(in.source, p.line, p.col,
		"unknown macro primitive code %q", fields[0])
}
