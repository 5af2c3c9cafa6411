package gerber

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pcbforge/pcbforge/pkg/artwork"
)

// parseExpr parses a macro arithmetic expression: +, -, x (multiply),
// / with the usual precedence, unary sign, parentheses, $n variables,
// and decimal constants.
func parseExpr(s string) (artwork.Expr, error) {
	p := &exprParser{src: strings.ReplaceAll(s, " ", "")}
	e, err := p.sum()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("unexpected %q in macro expression %q", p.src[p.pos:], s)
	}
	return e, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *exprParser) sum() (artwork.Expr, error) {
	left, err := p.product()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.product()
		if err != nil {
			return nil, err
		}
		left = artwork.BinOp{Op: op, L: left, R: right}
	}
}

func (p *exprParser) product() (artwork.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		// The Gerber spec multiplies with 'x'; tolerate 'X' too.
		if op == 'X' {
			op = 'x'
		}
		if op != 'x' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = artwork.BinOp{Op: op, L: left, R: right}
	}
}

func (p *exprParser) unary() (artwork.Expr, error) {
	switch p.peek() {
	case '+':
		p.pos++
		return p.unary()
	case '-':
		p.pos++
		e, err := p.unary()
		if err != nil {
			return nil, err
		}
		return artwork.Neg{E: e}, nil
	}
	return p.atom()
}

func (p *exprParser) atom() (artwork.Expr, error) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		e, err := p.sum()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, fmt.Errorf("missing closing parenthesis in macro expression %q", p.src)
		}
		p.pos++
		return e, nil
	case c == '$':
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		idx, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil || idx < 1 {
			return nil, fmt.Errorf("malformed macro variable in expression %q", p.src)
		}
		return artwork.Var(idx), nil
	case c >= '0' && c <= '9' || c == '.':
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed number in macro expression %q", p.src)
		}
		return artwork.Num(v), nil
	}
	return nil, fmt.Errorf("unexpected character in macro expression %q", p.src)
}
