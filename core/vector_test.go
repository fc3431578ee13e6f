package core

import (
	"math"
	"testing"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{name: "unit vector remains unchanged", input: []float32{1, 0, 0}, expected: []float32{1, 0, 0}},
		{name: "scale non-unit vector", input: []float32{3, 4}, expected: []float32{0.6, 0.8}},
		{name: "negative values", input: []float32{-1, 1}, expected: []float32{-1 / float32(math.Sqrt2), 1 / float32(math.Sqrt2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.input)
			if len(got) != len(tt.expected) {
				t.Fatalf("length = %d, want %d", len(got), len(tt.expected))
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.expected[i])) > 1e-6 {
					t.Errorf("element %d = %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestNormalizeVector_ZeroAndEmpty(t *testing.T) {
	for i, v := range NormalizeVector([]float32{0, 0, 0}) {
		if v != 0 {
			t.Errorf("element %d = %v, want 0", i, v)
		}
	}
	if got := NormalizeVector([]float32{}); len(got) != 0 {
		t.Errorf("empty vector should stay empty, got %v", got)
	}
}

func TestNormalizeVector_DoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	_ = NormalizeVector(in)
	if in[0] != 3 || in[1] != 4 {
		t.Errorf("input was mutated: %v", in)
	}
}
