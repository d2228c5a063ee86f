package expr

import (
	"math"
	"testing"
)

// TestEvaluateLaws exercises the invariants from spec.md §8 item 7. The
// spec's law notation groups sub-expressions with parentheses for
// readability only — the grammar itself (§4.2) has no parentheses, so the
// equivalent un-parenthesized form is evaluated here.
func TestEvaluateLaws(t *testing.T) {
	cases := []struct {
		expr string
		want bool
	}{
		{"0.85 < 0.90", true},
		{"0.95 < 0.90", false},
		{"0.9 == 0.9", true},
		{"0.85 < 0.90 && 0.95 > 0.90", true},
		{"0.95 < 0.90 || 0.85 < 0.90", true},
	}

	for _, tc := range cases {
		got, err := evaluateSubstituted(tc.expr)
		if err != nil {
			t.Fatalf("evaluateSubstituted(%q): unexpected error: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Errorf("evaluateSubstituted(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestEvaluateSubstitution(t *testing.T) {
	ok, err := Evaluate("result > 0", "result", 1)
	if err != nil || !ok {
		t.Fatalf("Evaluate(result > 0, result=1) = %v, %v; want true, nil", ok, err)
	}

	ok, err = Evaluate("value > 0", "value", 0)
	if err != nil || ok {
		t.Fatalf("Evaluate(value > 0, value=0) = %v, %v; want false, nil", ok, err)
	}
}

func TestEvaluateUnsupported(t *testing.T) {
	if _, err := evaluateSubstituted("just a string"); err == nil {
		t.Fatal("expected UnsupportedExpression error")
	}
}

func TestEvaluateBadOperand(t *testing.T) {
	if _, err := evaluateSubstituted("abc > 1"); err == nil {
		t.Fatal("expected BadOperand error")
	}
}

func TestEvaluateNonFinite(t *testing.T) {
	if _, err := Evaluate("result > 0", "result", math.NaN()); err == nil {
		t.Fatal("expected InconclusiveAnalysis error for NaN operand")
	}
}
