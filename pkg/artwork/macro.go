package artwork

import "fmt"

// MacroDef is a named aperture macro body.
type MacroDef struct {
	Name string
	Body []MacroPrimitive
}

// MacroPrimitive is one body entry of an aperture macro: a comment, a
// variable definition, or a shape primitive.
type MacroPrimitive interface {
	isMacroPrimitive()
}

// MacroComment is primitive code 0, ignored at flash time.
type MacroComment struct {
	Text string
}

func (MacroComment) isMacroPrimitive() {}

// MacroVariable assigns $Index = Value for the rest of the body.
type MacroVariable struct {
	Index int
	Value Expr
}

func (MacroVariable) isMacroPrimitive() {}

// MacroCircle is primitive code 1.
type MacroCircle struct {
	Exposure Expr
	Diameter Expr
	X, Y     Expr
	Angle    Expr
}

func (MacroCircle) isMacroPrimitive() {}

// MacroVectorLine is primitive code 20: a rectangle along the segment
// from start to end with the given width.
type MacroVectorLine struct {
	Exposure       Expr
	Width          Expr
	StartX, StartY Expr
	EndX, EndY     Expr
	Angle          Expr
}

func (MacroVectorLine) isMacroPrimitive() {}

// MacroCenterLine is primitive code 21: a width-by-height box centered
// at (X, Y).
type MacroCenterLine struct {
	Exposure Expr
	Width    Expr
	Height   Expr
	X, Y     Expr
	Angle    Expr
}

func (MacroCenterLine) isMacroPrimitive() {}

// MacroOutline is primitive code 4: a closed vertex chain.
type MacroOutline struct {
	Exposure Expr
	Points   []MacroPoint
	Angle    Expr
}

func (MacroOutline) isMacroPrimitive() {}

// MacroPoint is one outline vertex.
type MacroPoint struct {
	X, Y Expr
}

// MacroPolygon is primitive code 5: a regular n-gon.
type MacroPolygon struct {
	Exposure Expr
	Vertices Expr
	X, Y     Expr
	Diameter Expr
	Angle    Expr
}

func (MacroPolygon) isMacroPrimitive() {}

// MacroThermal is primitive code 7. It parses for completeness; flashing
// a thermal is rejected as unsupported.
type MacroThermal struct {
	X, Y          Expr
	OuterDiameter Expr
	InnerDiameter Expr
	GapThickness  Expr
	Angle         Expr
}

func (MacroThermal) isMacroPrimitive() {}

// Expr is a macro arithmetic expression evaluated against the variable
// table ($1..$n flash arguments plus in-body definitions).
type Expr interface {
	// Eval computes the expression value.
	Eval(vars map[int]float64) (float64, error)

	isExpr()
}

// Num is a numeric constant.
type Num float64

// Eval returns the constant.
func (n Num) Eval(map[int]float64) (float64, error) { return float64(n), nil }

func (Num) isExpr() {}

// Var references macro variable $Index.
type Var int

// Eval looks the variable up; referencing an undefined variable is an
// error.
func (v Var) Eval(vars map[int]float64) (float64, error) {
	val, ok := vars[int(v)]
	if !ok {
		return 0, fmt.Errorf("macro variable $%d is not defined", int(v))
	}
	return val, nil
}

func (Var) isExpr() {}

// Neg negates a subexpression.
type Neg struct {
	E Expr
}

// Eval negates the subexpression value.
func (n Neg) Eval(vars map[int]float64) (float64, error) {
	v, err := n.E.Eval(vars)
	return -v, err
}

func (Neg) isExpr() {}

// BinOp combines two subexpressions with +, -, x (multiply), or /.
type BinOp struct {
	Op   byte
	L, R Expr
}

// Eval computes both sides and applies the operator. Division by zero is
// an error.
func (b BinOp) Eval(vars map[int]float64) (float64, error) {
	l, err := b.L.Eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := b.R.Eval(vars)
	if err != nil {
		return 0, err
	}
	switch b.Op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case 'x':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, fmt.Errorf("macro expression divides by zero")
		}
		return l / r, nil
	}
	return 0, fmt.Errorf("unknown macro operator %q", string(b.Op))
}

func (BinOp) isExpr() {}

// ArgsToVars builds the initial variable table from flash arguments:
// the first argument is $1.
func ArgsToVars(args []float64) map[int]float64 {
	vars := make(map[int]float64, len(args))
	for i, a := range args {
		vars[i+1] = a
	}
	return vars
}
