package tool

import (
	"math"
	"testing"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want float64
	}{
		{expr: "2 + 3 * (4 - 1)", want: 11},
		{expr: "1,200.50 + 99.50", want: 1300},
		{expr: "200 * 7%", want: 14},
		{expr: "-5 + 2", want: -3},
		{expr: "2 ^ 3 ^ 2", want: 512},
		{expr: "-2 ^ 2", want: -4},
		{expr: "(450 + 30) / 3", want: 160},
		{expr: "10 - 4 - 3", want: 3},
		{expr: "0.1 + 0.2", want: 0.3},
		{expr: "+7", want: 7},
	}
	for _, tt := range tests {
		got, err := Calculate(tt.expr)
		if err != nil {
			t.Fatalf("Calculate(%q) error = %v", tt.expr, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("Calculate(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestCalculateRejects(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{
		"",
		"2 + abc",
		"(1 + 2",
		"1 + 2)",
		"4 / 0",
		"3 +",
		"% 5",
		"1,",
		"1..2",
	} {
		if _, err := Calculate(expr); err == nil {
			t.Fatalf("Calculate(%q) expected error", expr)
		}
	}
}
