package calculator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// maxDepth bounds nesting of parens and signs so deep input fails with a
// syntax error instead of exhausting the stack.
const maxDepth = 256

var (
	errSyntax    = errors.New("syntax error")
	errDivByZero = errors.New("division by zero")
	errRange     = errors.New("result out of range")
)

// Eval evaluates an arithmetic expression over float64.
//
// Grammar, lowest precedence first:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "%") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ "^" unary ]
//	primary = number | "(" expr ")"
//
// "^" is right associative and binds tighter than unary minus, so -2^2 is -4.
func Eval(expr string) (float64, error) {
	p := &parser{src: expr}
	p.next()
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.tok != tokEOF {
		return 0, fmt.Errorf("%w: unexpected %q at %d", errSyntax, p.text, p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errRange
	}
	return v, nil
}

type token int

const (
	tokEOF token = iota
	tokNum
	tokOp
	tokLParen
	tokRParen
	tokInvalid
)

type parser struct {
	src string
	off int

	tok  token
	text string
	num  float64
	pos  int

	depth int
}

func (p *parser) next() {
	for p.off < len(p.src) && (p.src[p.off] == ' ' || p.src[p.off] == '\t') {
		p.off++
	}
	p.pos = p.off
	if p.off >= len(p.src) {
		p.tok, p.text = tokEOF, ""
		return
	}

	c := p.src[p.off]
	switch {
	case c >= '0' && c <= '9' || c == '.':
		start := p.off
		for p.off < len(p.src) && (p.src[p.off] >= '0' && p.src[p.off] <= '9' || p.src[p.off] == '.') {
			p.off++
		}
		p.text = p.src[start:p.off]
		n, err := strconv.ParseFloat(p.text, 64)
		if err != nil {
			p.tok = tokInvalid
			return
		}
		p.tok, p.num = tokNum, n
		return
	case c == '(':
		p.tok = tokLParen
	case c == ')':
		p.tok = tokRParen
	case c == '+' || c == '-' || c == '*' || c == '/' || c == '%' || c == '^':
		p.tok = tokOp
	default:
		p.tok = tokInvalid
	}
	p.text = p.src[p.off : p.off+1]
	p.off++
}

func (p *parser) isOp(ops string) bool {
	if p.tok != tokOp {
		return false
	}
	for i := 0; i < len(ops); i++ {
		if p.text[0] == ops[i] {
			return true
		}
	}
	return false
}

func (p *parser) expr() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.isOp("+-") {
		op := p.text
		p.next()
		r, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			v += r
		} else {
			v -= r
		}
	}
	return v, nil
}

func (p *parser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.isOp("*/%") {
		op := p.text
		p.next()
		r, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			v *= r
		case "/":
			if r == 0 {
				return 0, errDivByZero
			}
			v /= r
		case "%":
			if r == 0 {
				return 0, errDivByZero
			}
			v = math.Mod(v, r)
		}
	}
	return v, nil
}

// unary is on every recursive path, so it carries the depth check.
func (p *parser) unary() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return 0, fmt.Errorf("%w: nesting deeper than %d", errSyntax, maxDepth)
	}

	if p.isOp("+-") {
		neg := p.text == "-"
		p.next()
		v, err := p.unary()
		if neg {
			v = -v
		}
		return v, err
	}
	return p.power()
}

func (p *parser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if !p.isOp("^") {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (p *parser) primary() (float64, error) {
	switch p.tok {
	case tokNum:
		v := p.num
		p.next()
		return v, nil
	case tokLParen:
		p.next()
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if p.tok != tokRParen {
			return 0, fmt.Errorf("%w: missing ')' at %d", errSyntax, p.pos)
		}
		p.next()
		return v, nil
	case tokEOF:
		return 0, fmt.Errorf("%w: unexpected end of expression", errSyntax)
	default:
		return 0, fmt.Errorf("%w: unexpected %q at %d", errSyntax, p.text, p.pos)
	}
}
