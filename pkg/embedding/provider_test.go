package embedding

import (
	"math"
	"testing"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{
			name: "axis vector unchanged",
			in:   []float32{1, 0, 0},
			want: []float32{1, 0, 0},
		},
		{
			name: "scaled down to unit length",
			in:   []float32{3, 4},
			want: []float32{0.6, 0.8},
		},
		{
			name: "zero vector passes through",
			in:   []float32{0, 0, 0},
			want: []float32{0, 0, 0},
		},
		{
			name: "negative components keep sign",
			in:   []float32{-3, 4},
			want: []float32{-0.6, 0.8},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("length = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(float64(got[i])-float64(tt.want[i])) > 1e-6 {
					t.Errorf("index %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeVector_UnitMagnitude(t *testing.T) {
	in := []float32{0.1, -2.5, 7.3, 0.004, 13}
	got := NormalizeVector(in)

	var magnitude float64
	for _, v := range got {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if math.Abs(magnitude-1) > 1e-6 {
		t.Errorf("magnitude = %v, want 1", magnitude)
	}
}
