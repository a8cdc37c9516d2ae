package apps

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/signalnine/worldbench/internal/world"
)

type CalculatorApp struct{}

func NewCalculatorApp() *CalculatorApp { return &CalculatorApp{} }

func (a *CalculatorApp) Name() string { return "calculator" }

func (a *CalculatorApp) Operations() []world.Operation {
	return []world.Operation{
		{
			Name:        "calculate",
			Description: "Evaluate an arithmetic expression. Supports + - * / % ** (or ^), parentheses, pi, e and functions such as sqrt, abs, round, floor, ceil, log, log10, sin, cos, tan, min, max, pow.",
			Params:      []world.Param{{Name: "expression", Type: world.TypeString, Required: true}},
			Handler: func(ctx context.Context, args world.Args) (any, error) {
				expr := args.String("expression")
				v, err := Evaluate(expr)
				if err != nil {
					return nil, err
				}
				return map[string]any{"expression": expr, "result": v}, nil
			},
		},
		{
			Name:        "convert_units",
			Description: "Convert a value between units of length, weight, temperature, volume or time.",
			Params: []world.Param{
				{Name: "value", Type: world.TypeNumber, Required: true},
				{Name: "from_unit", Type: world.TypeString, Required: true},
				{Name: "to_unit", Type: world.TypeString, Required: true},
			},
			Handler: func(ctx context.Context, args world.Args) (any, error) {
				value := args.Float("value", 0)
				from, to := args.String("from_unit"), args.String("to_unit")
				v, err := ConvertUnits(value, from, to)
				if err != nil {
					return nil, err
				}
				return map[string]any{"value": value, "from_unit": from, "to_unit": to, "result": v}, nil
			},
		},
		{
			Name:        "percent",
			Description: "Percentage helpers: of (A% of B), change (A to B), is_what_pct (A of B), add (B plus A%), subtract (B minus A%).",
			Params: []world.Param{
				{Name: "operation", Type: world.TypeString, Required: true, Enum: []string{"of", "change", "is_what_pct", "add", "subtract"}},
				{Name: "a", Type: world.TypeNumber, Required: true},
				{Name: "b", Type: world.TypeNumber, Required: true},
			},
			Handler: func(ctx context.Context, args world.Args) (any, error) {
				op, x, y := args.String("operation"), args.Float("a", 0), args.Float("b", 0)
				var r float64
				switch op {
				case "of":
					r = x / 100 * y
				case "change":
					if x == 0 {
						return nil, fmt.Errorf("Cannot compute percentage change from 0")
					}
					r = (y - x) / math.Abs(x) * 100
				case "is_what_pct":
					if y == 0 {
						return nil, fmt.Errorf("Cannot compute percentage: divisor is 0")
					}
					r = x / y * 100
				case "add":
					r = y + x/100*y
				case "subtract":
					r = y - x/100*y
				}
				return map[string]any{"operation": op, "a": x, "b": y, "result": r}, nil
			},
		},
	}
}

type unitDef struct {
	group  string
	factor float64
}

var units = map[string]unitDef{
	"m": {"length", 1}, "km": {"length", 1000}, "cm": {"length", 0.01}, "mm": {"length", 0.001},
	"mile": {"length", 1609.344}, "ft": {"length", 0.3048}, "inch": {"length", 0.0254}, "yard": {"length", 0.9144},
	"kg": {"weight", 1}, "g": {"weight", 0.001}, "lb": {"weight", 0.453592}, "oz": {"weight", 0.0283495}, "ton": {"weight", 907.185},
	"celsius": {"temperature", 1}, "fahrenheit": {"temperature", 1}, "kelvin": {"temperature", 1},
	"liter": {"volume", 1}, "ml": {"volume", 0.001}, "gallon": {"volume", 3.78541}, "cup": {"volume", 0.236588},
	"second": {"time", 1}, "minute": {"time", 60}, "hour": {"time", 3600}, "day": {"time", 86400}, "week": {"time", 604800},
}

func ConvertUnits(value float64, from, to string) (float64, error) {
	fu, tu := strings.ToLower(from), strings.ToLower(to)
	f, ok := units[fu]
	if !ok {
		return 0, fmt.Errorf("Unknown unit: '%s'", from)
	}
	t, ok := units[tu]
	if !ok {
		return 0, fmt.Errorf("Unknown unit: '%s'", to)
	}
	if f.group != t.group {
		return 0, fmt.Errorf("Cannot convert between '%s' (%s) and '%s' (%s)", from, f.group, to, t.group)
	}
	var r float64
	if f.group == "temperature" {
		kelvin := value
		switch fu {
		case "celsius":
			kelvin = value + 273.15
		case "fahrenheit":
			kelvin = (value-32)*5/9 + 273.15
		}
		switch tu {
		case "celsius":
			r = kelvin - 273.15
		case "fahrenheit":
			r = (kelvin-273.15)*9/5 + 32
		default:
			r = kelvin
		}
	} else {
		r = value * f.factor / t.factor
	}
	return math.Round(r*1e10) / 1e10, nil
}

// Evaluate computes an arithmetic expression. Names are limited to a fixed
// set of constants and functions.
func Evaluate(expr string) (float64, error) {
	p := &exprParser{src: strings.ReplaceAll(expr, "**", "^")}
	p.next()
	v, err := p.parseExpr(0)
	if err != nil {
		return 0, err
	}
	if p.tok != "" {
		return 0, fmt.Errorf("Syntax error: unexpected %q", p.tok)
	}
	if math.IsNaN(v) {
		return 0, fmt.Errorf("Result is not a number")
	}
	return v, nil
}

var exprConsts = map[string]float64{"pi": math.Pi, "e": math.E, "tau": 2 * math.Pi}

var exprFuncs = map[string]func(args []float64) (float64, error){
	"sqrt":  unary(math.Sqrt),
	"abs":   unary(math.Abs),
	"floor": unary(math.Floor),
	"ceil":  unary(math.Ceil),
	"exp":   unary(math.Exp),
	"log":   unary(math.Log),
	"log2":  unary(math.Log2),
	"log10": unary(math.Log10),
	"sin":   unary(math.Sin),
	"cos":   unary(math.Cos),
	"tan":   unary(math.Tan),
	"round": func(a []float64) (float64, error) {
		switch len(a) {
		case 1:
			return math.RoundToEven(a[0]), nil
		case 2:
			p := math.Pow(10, a[1])
			return math.Round(a[0]*p) / p, nil
		}
		return 0, fmt.Errorf("round takes 1 or 2 arguments")
	},
	"pow": func(a []float64) (float64, error) {
		if len(a) != 2 {
			return 0, fmt.Errorf("pow takes 2 arguments")
		}
		return math.Pow(a[0], a[1]), nil
	},
	"min": variadic(math.Min),
	"max": variadic(math.Max),
}

func unary(f func(float64) float64) func([]float64) (float64, error) {
	return func(a []float64) (float64, error) {
		if len(a) != 1 {
			return 0, fmt.Errorf("function takes 1 argument")
		}
		return f(a[0]), nil
	}
}

func variadic(f func(a, b float64) float64) func([]float64) (float64, error) {
	return func(a []float64) (float64, error) {
		if len(a) == 0 {
			return 0, fmt.Errorf("function needs at least 1 argument")
		}
		r := a[0]
		for _, v := range a[1:] {
			r = f(r, v)
		}
		return r, nil
	}
}

type exprParser struct {
	src string
	pos int
	tok string
}

func (p *exprParser) next() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok = ""
		return
	}
	start := p.pos
	c := rune(p.src[p.pos])
	switch {
	case unicode.IsDigit(c) || c == '.':
		for p.pos < len(p.src) && (unicode.IsDigit(rune(p.src[p.pos])) || p.src[p.pos] == '.' || p.src[p.pos] == '_') {
			p.pos++
		}
	case unicode.IsLetter(c):
		for p.pos < len(p.src) && (unicode.IsLetter(rune(p.src[p.pos])) || unicode.IsDigit(rune(p.src[p.pos]))) {
			p.pos++
		}
	case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
		p.pos += 2
	default:
		p.pos++
	}
	p.tok = p.src[start:p.pos]
}

func binaryPrec(op string) int {
	switch op {
	case "+", "-":
		return 1
	case "*", "/", "//", "%":
		return 2
	case "^":
		return 4
	}
	return 0
}

func (p *exprParser) parseExpr(minPrec int) (float64, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op := p.tok
		prec := binaryPrec(op)
		if prec == 0 || prec <= minPrec {
			return lhs, nil
		}
		p.next()
		next := prec
		if op == "^" {
			next = prec - 1 // right associative
		}
		rhs, err := p.parseExpr(next)
		if err != nil {
			return 0, err
		}
		switch op {
		case "+":
			lhs += rhs
		case "-":
			lhs -= rhs
		case "*":
			lhs *= rhs
		case "/", "//", "%":
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			switch op {
			case "/":
				lhs /= rhs
			case "//":
				lhs = math.Floor(lhs / rhs)
			default:
				lhs = lhs - rhs*math.Floor(lhs/rhs)
			}
		case "^":
			lhs = math.Pow(lhs, rhs)
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	switch p.tok {
	case "-":
		p.next()
		v, err := p.parseExpr(3)
		return -v, err
	case "+":
		p.next()
		return p.parseExpr(3)
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	tok := p.tok
	switch {
	case tok == "":
		return 0, fmt.Errorf("Syntax error: unexpected end of expression")
	case tok == "(":
		p.next()
		v, err := p.parseExpr(0)
		if err != nil {
			return 0, err
		}
		if p.tok != ")" {
			return 0, fmt.Errorf("Syntax error: missing ')'")
		}
		p.next()
		return v, nil
	case unicode.IsDigit(rune(tok[0])) || tok[0] == '.':
		v, err := strconv.ParseFloat(strings.ReplaceAll(tok, "_", ""), 64)
		if err != nil {
			return 0, fmt.Errorf("Syntax error: bad number %q", tok)
		}
		p.next()
		return v, nil
	case unicode.IsLetter(rune(tok[0])):
		p.next()
		if c, ok := exprConsts[tok]; ok && p.tok != "(" {
			return c, nil
		}
		fn, ok := exprFuncs[tok]
		if !ok || p.tok != "(" {
			return 0, fmt.Errorf("Unknown name: '%s'", tok)
		}
		p.next()
		var args []float64
		for p.tok != ")" {
			v, err := p.parseExpr(0)
			if err != nil {
				return 0, err
			}
			args = append(args, v)
			if p.tok == "," {
				p.next()
				continue
			}
			if p.tok != ")" {
				return 0, fmt.Errorf("Syntax error: expected ',' or ')'")
			}
		}
		p.next()
		return fn(args)
	}
	return 0, fmt.Errorf("Syntax error: unexpected %q", tok)
}
