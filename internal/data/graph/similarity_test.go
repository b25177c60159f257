package graph

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"mismatched", []float64{1, 0}, []float64{1, 0, 0}, -1},
		{"zero", []float64{0, 0}, []float64{1, 0}, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("cosine = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNativeToCosine(t *testing.T) {
	if got := nativeToCosine(1); got != 1 {
		t.Fatalf("got %v", got)
	}
	if got := nativeToCosine(0.5); got != 0 {
		t.Fatalf("got %v", got)
	}
}
