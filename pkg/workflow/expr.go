package workflow

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Dynamic measurement offsets are configured as small formulas over the
// annulus area, e.g. "annulusArea < 400 ? 8 : 10". The grammar is
// deliberately tiny (numbers, one bound variable, arithmetic, comparison,
// ternary) and evaluated over an AST, so workflow configuration can never
// invoke anything beyond arithmetic.
//
//	ternary    = comparison [ "?" ternary ":" ternary ]
//	comparison = additive [ ("<"|"<="|">"|">="|"=="|"!=") additive ]
//	additive   = multiplicative { ("+"|"-") multiplicative }
//	multiplicative = unary { ("*"|"/") unary }
//	unary      = "-" unary | number | identifier | "(" ternary ")"

// Formula is a parsed dynamic-offset expression.
type Formula struct {
	src  string
	root exprNode
}

// ParseFormula parses the expression source. Parsing happens at workflow
// validation time so malformed configuration fails before any step runs.
func ParseFormula(src string) (*Formula, error) {
	p := &exprParser{tokens: nil}
	if err := p.tokenize(src); err != nil {
		return nil, err
	}
	root, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, fmt.Errorf("unexpected %q at end of expression", p.tokens[p.pos].text)
	}
	return &Formula{src: src, root: root}, nil
}

// String returns the original expression source.
func (f *Formula) String() string { return f.src }

// Eval evaluates the formula against the bound variables. Unknown
// identifiers and non-finite results are errors; callers fail closed to an
// offset of 0 on any error.
func (f *Formula) Eval(vars map[string]float64) (float64, error) {
	v, err := f.root.eval(vars)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("expression %q produced a non-finite result", f.src)
	}
	return v, nil
}

type exprNode interface {
	eval(vars map[string]float64) (float64, error)
}

type numberNode float64

func (n numberNode) eval(map[string]float64) (float64, error) { return float64(n), nil }

type identNode string

func (n identNode) eval(vars map[string]float64) (float64, error) {
	v, ok := vars[string(n)]
	if !ok {
		return 0, fmt.Errorf("unknown variable %q", string(n))
	}
	return v, nil
}

type unaryNode struct {
	operand exprNode
}

func (n unaryNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.operand.eval(vars)
	return -v, err
}

type binaryNode struct {
	op          string
	left, right exprNode
}

func (n binaryNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case "<":
		return boolVal(l < r), nil
	case "<=":
		return boolVal(l <= r), nil
	case ">":
		return boolVal(l > r), nil
	case ">=":
		return boolVal(l >= r), nil
	case "==":
		return boolVal(l == r), nil
	case "!=":
		return boolVal(l != r), nil
	}
	return 0, fmt.Errorf("unknown operator %q", n.op)
}

type ternaryNode struct {
	cond, then, els exprNode
}

func (n ternaryNode) eval(vars map[string]float64) (float64, error) {
	c, err := n.cond.eval(vars)
	if err != nil {
		return 0, err
	}
	if c != 0 {
		return n.then.eval(vars)
	}
	return n.els.eval(vars)
}

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

type exprToken struct {
	text     string
	isNumber bool
	isIdent  bool
}

type exprParser struct {
	tokens []exprToken
	pos    int
}

func (p *exprParser) tokenize(src string) error {
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c) || c == '.':
			j := i
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.') {
				j++
			}
			if _, err := strconv.ParseFloat(src[i:j], 64); err != nil {
				return fmt.Errorf("invalid number %q", src[i:j])
			}
			p.tokens = append(p.tokens, exprToken{text: src[i:j], isNumber: true})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_') {
				j++
			}
			p.tokens = append(p.tokens, exprToken{text: src[i:j], isIdent: true})
			i = j
		case strings.ContainsRune("<>=!", c):
			if i+1 < len(src) && src[i+1] == '=' {
				p.tokens = append(p.tokens, exprToken{text: src[i : i+2]})
				i += 2
			} else if c == '=' || c == '!' {
				return fmt.Errorf("invalid operator %q", string(c))
			} else {
				p.tokens = append(p.tokens, exprToken{text: string(c)})
				i++
			}
		case strings.ContainsRune("+-*/?:()", c):
			p.tokens = append(p.tokens, exprToken{text: string(c)})
			i++
		default:
			return fmt.Errorf("unexpected character %q", string(c))
		}
	}
	if len(p.tokens) == 0 {
		return fmt.Errorf("empty expression")
	}
	return nil
}

func (p *exprParser) peek() (exprToken, bool) {
	if p.pos >= len(p.tokens) {
		return exprToken{}, false
	}
	return p.tokens[p.pos], true
}

func (p *exprParser) accept(text string) bool {
	if t, ok := p.peek(); ok && !t.isNumber && !t.isIdent && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) parseTernary() (exprNode, error) {
	cond, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	if !p.accept("?") {
		return cond, nil
	}
	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if !p.accept(":") {
		return nil, fmt.Errorf("expected ':' in ternary expression")
	}
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return ternaryNode{cond: cond, then: then, els: els}, nil
}

func (p *exprParser) parseComparison() (exprNode, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for _, op := range []string{"<=", ">=", "==", "!=", "<", ">"} {
		if p.accept(op) {
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return binaryNode{op: op, left: left, right: right}, nil
		}
	}
	return left, nil
}

func (p *exprParser) parseAdditive() (exprNode, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("+"):
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: "+", left: left, right: right}
		case p.accept("-"):
			right, err := p.parseMultiplicative()
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: "-", left: left, right: right}
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseMultiplicative() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.accept("*"):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: "*", left: left, right: right}
		case p.accept("/"):
			right, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: "/", left: left, right: right}
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (exprNode, error) {
	if p.accept("-") {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryNode{operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (exprNode, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	switch {
	case t.isNumber:
		p.pos++
		v, _ := strconv.ParseFloat(t.text, 64)
		return numberNode(v), nil
	case t.isIdent:
		p.pos++
		return identNode(t.text), nil
	case t.text == "(":
		p.pos++
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, fmt.Errorf("expected ')'")
		}
		return inner, nil
	}
	return nil, fmt.Errorf("unexpected token %q", t.text)
}
