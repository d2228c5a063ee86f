// Package expr evaluates the restricted comparison/logical grammar described
// in spec.md §4.2: decimal literals, one of the six comparisons, and
// optional left-to-right && / || composition with no precedence and no
// parentheses. The free variable (result/value) is substituted textually
// before parsing.
package expr

import (
	"math"
	"strconv"
	"strings"

	pherrors "github.com/phkaiser13/ph-operator/internal/phcore/errors"
)

const epsilon = 1e-9

var comparisons = []string{"<=", ">=", "==", "!=", "<", ">"}

// Evaluate substitutes value for every occurrence of variable in expr and
// evaluates the resulting comparison/logical expression.
func Evaluate(exprStr, variable string, value float64) (bool, error) {
	substituted := strings.ReplaceAll(exprStr, variable, formatValue(value))
	return evaluateSubstituted(substituted)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// evaluateSubstituted parses and evaluates an expression with no free
// variables remaining. Logical composition is left-to-right with no
// precedence between && and || — when both appear, the rightmost operator
// wins (i.e. the expression is read as if fully left-associated and then
// only the final operator's result is taken against the accumulated left
// term), matching spec.md §4.2 exactly: no parentheses, no unary operators.
func evaluateSubstituted(s string) (bool, error) {
	s = strings.TrimSpace(s)

	if idx, op := findRightmostLogical(s); idx >= 0 {
		left := s[:idx]
		right := s[idx+len(op):]
		leftVal, err := evaluateSubstituted(left)
		if err != nil {
			return false, err
		}
		rightVal, err := evaluateComparison(right)
		if err != nil {
			return false, err
		}
		switch op {
		case "&&":
			return leftVal && rightVal, nil
		case "||":
			return leftVal || rightVal, nil
		}
	}

	return evaluateComparison(s)
}

// findRightmostLogical finds the last occurrence of && or || in s, scanning
// left to right so that the final match found is the rightmost one —
// giving the rightmost logical operator priority as specified.
func findRightmostLogical(s string) (int, string) {
	idx, op := -1, ""
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '&' && s[i+1] == '&' {
			idx, op = i, "&&"
		} else if s[i] == '|' && s[i+1] == '|' {
			idx, op = i, "||"
		}
	}
	return idx, op
}

func evaluateComparison(s string) (bool, error) {
	s = strings.TrimSpace(s)
	for _, op := range comparisons {
		if i := strings.Index(s, op); i >= 0 {
			leftStr := strings.TrimSpace(s[:i])
			rightStr := strings.TrimSpace(s[i+len(op):])
			left, err := parseOperand(leftStr)
			if err != nil {
				return false, err
			}
			right, err := parseOperand(rightStr)
			if err != nil {
				return false, err
			}
			return applyComparison(op, left, right)
		}
	}
	return false, pherrors.New(pherrors.KindUnsupportedExpr, "no comparison operator found in "+strconv.Quote(s))
}

func parseOperand(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, pherrors.Wrap(pherrors.KindBadOperand, "non-numeric operand "+strconv.Quote(s), err)
	}
	return v, nil
}

func applyComparison(op string, left, right float64) (bool, error) {
	if math.IsNaN(left) || math.IsNaN(right) || math.IsInf(left, 0) || math.IsInf(right, 0) {
		return false, pherrors.New(pherrors.KindInconclusiveAnalysis, "non-finite operand")
	}
	switch op {
	case "<":
		return left < right, nil
	case "<=":
		return left <= right, nil
	case ">":
		return left > right, nil
	case ">=":
		return left >= right, nil
	case "==":
		return math.Abs(left-right) < epsilon, nil
	case "!=":
		return math.Abs(left-right) >= epsilon, nil
	}
	return false, pherrors.New(pherrors.KindUnsupportedExpr, "unknown operator "+op)
}
