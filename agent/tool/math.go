package tool

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/odoo-assistant/agent/contract"
)

const (
	ToolMathEvaluate = "math_evaluate"
)

// Results are rounded to this many decimals, enough for any currency.
const amountPrecision = 6

type MathEvaluateOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

func evaluateMath(_ context.Context, args map[string]any) (any, error) {
	expression, err := stringArg(args, "expression")
	if err != nil {
		return nil, err
	}
	expression = strings.TrimSpace(expression)

	result, err := Calculate(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	return MathEvaluateOutput{Expression: expression, Result: result}, nil
}

// Calculate evaluates an amount expression such as "1,200.50 * 7%" or
// "(450 + 30) / 3". Supported: + - * / ^, parentheses, unary minus,
// thousands separators and a trailing % meaning "divided by 100".
func Calculate(expression string) (float64, error) {
	tokens, err := tokenize(expression)
	if err != nil {
		return 0, err
	}
	rpn, err := toPostfix(tokens)
	if err != nil {
		return 0, err
	}
	v, err := evalPostfix(rpn)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("result is not a finite number")
	}
	scale := math.Pow10(amountPrecision)
	return math.Round(v*scale) / scale, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	op    byte
	value float64
	pos   int
}

// neg is the internal operator for unary minus.
const neg = '~'

func tokenize(expr string) ([]token, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("expression is empty")
	}

	var out []token
	// A minus is unary when nothing that yields a value precedes it.
	operandExpected := true
	for i := 0; i < len(expr); {
		ch := expr[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++
		case (ch >= '0' && ch <= '9') || ch == '.':
			v, n, err := readAmount(expr[i:])
			if err != nil {
				return nil, fmt.Errorf("%v at position %d", err, i)
			}
			out = append(out, token{kind: tokNumber, value: v, pos: i})
			i += n
			operandExpected = false
		case ch == '%':
			if operandExpected {
				return nil, fmt.Errorf("misplaced %% at position %d", i)
			}
			out = append(out, token{kind: tokOp, op: '%', pos: i})
			i++
		case ch == '(':
			out = append(out, token{kind: tokLParen, pos: i})
			i++
			operandExpected = true
		case ch == ')':
			out = append(out, token{kind: tokRParen, pos: i})
			i++
			operandExpected = false
		case ch == '-' && operandExpected:
			out = append(out, token{kind: tokOp, op: neg, pos: i})
			i++
		case ch == '+' && operandExpected:
			i++
		case strings.IndexByte("+-*/^", ch) >= 0:
			out = append(out, token{kind: tokOp, op: ch, pos: i})
			i++
			operandExpected = true
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
		}
	}
	return out, nil
}

// readAmount reads a number with optional thousands separators.
func readAmount(s string) (float64, int, error) {
	n := 0
	for n < len(s) && (s[n] >= '0' && s[n] <= '9' || s[n] == '.' || s[n] == ',') {
		n++
	}
	raw := s[:n]
	if strings.HasSuffix(raw, ",") {
		return 0, 0, fmt.Errorf("invalid number %q", raw)
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", raw)
	}
	return v, n, nil
}

func precedence(op byte) int {
	switch op {
	case '+', '-':
		return 1
	case '*', '/':
		return 2
	case neg:
		return 3
	case '^':
		return 4
	case '%':
		return 5
	}
	return 0
}

func rightAssociative(op byte) bool {
	return op == '^' || op == neg
}

func toPostfix(tokens []token) ([]token, error) {
	var out, stack []token
	for _, t := range tokens {
		switch t.kind {
		case tokNumber:
			out = append(out, t)
		case tokOp:
			if t.op == '%' {
				out = append(out, t)
				continue
			}
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				if top.kind != tokOp {
					break
				}
				if precedence(top.op) > precedence(t.op) ||
					(precedence(top.op) == precedence(t.op) && !rightAssociative(t.op)) {
					out = append(out, top)
					stack = stack[:len(stack)-1]
					continue
				}
				break
			}
			stack = append(stack, t)
		case tokLParen:
			stack = append(stack, t)
		case tokRParen:
			matched := false
			for len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.kind == tokLParen {
					matched = true
					break
				}
				out = append(out, top)
			}
			if !matched {
				return nil, fmt.Errorf("unbalanced parentheses at position %d", t.pos)
			}
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].kind == tokLParen {
			return nil, fmt.Errorf("unbalanced parentheses at position %d", stack[i].pos)
		}
		out = append(out, stack[i])
	}
	return out, nil
}

func evalPostfix(rpn []token) (float64, error) {
	var stack []float64
	pop := func() (float64, bool) {
		if len(stack) == 0 {
			return 0, false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, true
	}

	for _, t := range rpn {
		if t.kind == tokNumber {
			stack = append(stack, t.value)
			continue
		}

		b, ok := pop()
		if !ok {
			return 0, fmt.Errorf("missing operand at position %d", t.pos)
		}
		switch t.op {
		case neg:
			stack = append(stack, -b)
			continue
		case '%':
			stack = append(stack, b/100)
			continue
		}

		a, ok := pop()
		if !ok {
			return 0, fmt.Errorf("missing operand at position %d", t.pos)
		}
		switch t.op {
		case '+':
			stack = append(stack, a+b)
		case '-':
			stack = append(stack, a-b)
		case '*':
			stack = append(stack, a*b)
		case '/':
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			stack = append(stack, a/b)
		case '^':
			stack = append(stack, math.Pow(a, b))
		}
	}
	if len(stack) != 1 {
		return 0, fmt.Errorf("malformed expression")
	}
	return stack[0], nil
}
