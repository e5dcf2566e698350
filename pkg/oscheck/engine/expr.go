// pkg/oscheck/engine/expr.go

package engine

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ryan-mccabe/oled-tools/pkg/logging"
)

// EvalExpr safely evaluates an arithmetic expression from a rule file.
// $value substitutes the left-side value under comparison, $name
// substitutes from GlobalVars. Only numbers and arithmetic/bitwise
// operators are accepted.
func EvalExpr(expr string, value any) (float64, error) {
	logging.Internal.Debug().Str("expr", expr).Msg("evaluating expression")

	local := map[string]any{"value": value}
	varPattern := regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)`)
	expr = varPattern.ReplaceAllStringFunc(expr, func(match string) string {
		name := match[1:]
		if v, ok := GlobalVars[name]; ok && v != nil {
			return fmt.Sprint(v)
		}
		if v, ok := local[name]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return ""
	})
	logging.Internal.Debug().Str("expr", expr).Msg("expression after substitution")

	toks, err := tokenizeExpr(expr)
	if err != nil {
		return 0, fmt.Errorf("invalid expression syntax for %q: %v", expr, err)
	}

	p := &exprParser{toks: toks}
	result, err := p.parseBinary(0)
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, fmt.Errorf("unexpected token %q in expression", p.toks[p.pos])
	}
	return result, nil
}

// binaryLevels lists binary operators from loosest to tightest binding.
// ** is handled separately as it is right-associative and binds tighter
// than unary minus.
var binaryLevels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "//", "%"},
}

type exprParser struct {
	toks []string
	pos  int
}

func (p *exprParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *exprParser) parseBinary(level int) (float64, error) {
	if level >= len(binaryLevels) {
		return p.parseUnary()
	}

	left, err := p.parseBinary(level + 1)
	if err != nil {
		return 0, err
	}

	for {
		op := p.peek()
		if !containsString(binaryLevels[level], op) {
			return left, nil
		}
		p.pos++
		right, err := p.parseBinary(level + 1)
		if err != nil {
			return 0, err
		}
		left, err = applyBinary(op, left, right)
		if err != nil {
			return 0, err
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	switch p.peek() {
	case "-":
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	case "+":
		p.pos++
		return p.parseUnary()
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	if p.peek() == "**" {
		p.pos++
		// Right-associative; the exponent may carry a unary sign.
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseAtom() (float64, error) {
	tok := p.peek()
	switch {
	case tok == "":
		return 0, fmt.Errorf("unexpected end of expression")
	case tok == "(":
		p.pos++
		v, err := p.parseBinary(0)
		if err != nil {
			return 0, err
		}
		if p.peek() != ")" {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}

	n, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("unsupported token %q", tok)
	}
	p.pos++
	return n, nil
}

func applyBinary(op string, l, r float64) (float64, error) {
	switch op {
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
	case "//":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return math.Floor(l / r), nil
	case "%":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return math.Mod(l, r), nil
	}

	// The remaining operators are integer-only.
	li, lok := wholeInt(l)
	ri, rok := wholeInt(r)
	if !lok || !rok {
		return 0, fmt.Errorf("operator %q requires integer operands", op)
	}
	switch op {
	case "<<":
		return float64(li << uint(ri)), nil
	case ">>":
		return float64(li >> uint(ri)), nil
	case "&":
		return float64(li & ri), nil
	case "|":
		return float64(li | ri), nil
	case "^":
		return float64(li ^ ri), nil
	}
	return 0, fmt.Errorf("unsupported operator %q", op)
}

func wholeInt(f float64) (int64, bool) {
	if f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func tokenizeExpr(expr string) ([]string, error) {
	var toks []string

	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '*' && i+1 < len(expr) && expr[i+1] == '*':
			toks = append(toks, "**")
			i += 2
		case c == '/' && i+1 < len(expr) && expr[i+1] == '/':
			toks = append(toks, "//")
			i += 2
		case c == '<' && i+1 < len(expr) && expr[i+1] == '<':
			toks = append(toks, "<<")
			i += 2
		case c == '>' && i+1 < len(expr) && expr[i+1] == '>':
			toks = append(toks, ">>")
			i += 2
		case strings.ContainsRune("+-*/%&|^()", rune(c)):
			toks = append(toks, string(c))
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			toks = append(toks, expr[i:j])
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}

	return toks, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
