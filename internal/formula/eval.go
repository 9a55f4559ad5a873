package formula

import (
	"math"
	"sort"
	"strings"
)

// Evaluate parses the formula and computes its value against the provided
// variable bindings. The result is rounded to two decimal places, half away
// from zero. Every failure is returned as a *Error; evaluating one malformed
// formula never affects other requests because each call builds fresh state.
func Evaluate(formula string, bindings map[string]float64) (float64, error) {
	normalized := normalize(formula)
	if normalized == "" {
		return 0, newError(CodeEmptyFormula, "", "formula is empty")
	}
	tokens, lexErr := lex(normalized)
	if lexErr != nil {
		return 0, lexErr
	}
	root, parseErr := parse(tokens)
	if parseErr != nil {
		return 0, parseErr
	}
	value, err := root.eval(bindings)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, newError(CodeNonFiniteResult, "", "formula produced a non-finite result")
	}
	return Round2(value), nil
}

// Round2 rounds a monetary value to two decimal places, half away from zero.
// It is the single rounding point for every price the engine produces.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (n numberExpr) eval(map[string]float64) (float64, error) {
	return float64(n), nil
}

func (v *varExpr) eval(bindings map[string]float64) (float64, error) {
	if value, ok := bindings[v.name]; ok {
		return value, nil
	}
	return 0, newError(CodeUnknownVariable, v.name, "unknown variable %q, available: %s", v.name, availableNames(bindings))
}

func (u *unaryExpr) eval(bindings map[string]float64) (float64, error) {
	value, err := u.operand.eval(bindings)
	if err != nil {
		return 0, err
	}
	return -value, nil
}

func (b *binaryExpr) eval(bindings map[string]float64) (float64, error) {
	left, err := b.left.eval(bindings)
	if err != nil {
		return 0, err
	}
	right, err := b.right.eval(bindings)
	if err != nil {
		return 0, err
	}
	switch b.op {
	case '+':
		return left + right, nil
	case '-':
		return left - right, nil
	case '*':
		return left * right, nil
	case '/':
		if right == 0 {
			return 0, newError(CodeNonFiniteResult, "/", "division by zero")
		}
		return left / right, nil
	case '^':
		return math.Pow(left, right), nil
	default:
		return 0, newError(CodeSyntax, string(b.op), "unsupported operator %q", string(b.op))
	}
}

func (c *callExpr) eval(bindings map[string]float64) (float64, error) {
	// Arguments are plain values: if() selects by truthiness and does not
	// short-circuit, so both branches are evaluated.
	args := make([]float64, len(c.args))
	for i, arg := range c.args {
		value, err := arg.eval(bindings)
		if err != nil {
			return 0, err
		}
		args[i] = value
	}
	switch c.fn {
	case "floor":
		return math.Floor(args[0]), nil
	case "ceil":
		return math.Ceil(args[0]), nil
	case "round":
		return math.Round(args[0]), nil
	case "abs":
		return math.Abs(args[0]), nil
	case "sqrt":
		if args[0] < 0 {
			return 0, newError(CodeNonFiniteResult, "sqrt", "sqrt of negative number")
		}
		return math.Sqrt(args[0]), nil
	case "pow":
		return math.Pow(args[0], args[1]), nil
	case "min":
		result := args[0]
		for _, v := range args[1:] {
			if v < result {
				result = v
			}
		}
		return result, nil
	case "max":
		result := args[0]
		for _, v := range args[1:] {
			if v > result {
				result = v
			}
		}
		return result, nil
	case "if":
		if args[0] != 0 {
			return args[1], nil
		}
		return args[2], nil
	default:
		return 0, newError(CodeUnknownFunction, c.fn, "unknown function %q", c.fn)
	}
}

func availableNames(bindings map[string]float64) string {
	if len(bindings) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
