package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinMaxNormalize(t *testing.T) {
	x := []float64{2, 4, 6}
	MinMaxNormalize(x, 0)
	assert.Equal(t, []float64{0, 0.5, 1}, x)
}

func TestMinMaxNormalize_degenerate(t *testing.T) {
	tests := []struct {
		name     string
		in       []float64
		fallback float64
		want     float64
	}{
		{"single", []float64{0.3}, 0.3, 0.3},
		{"uniform", []float64{5, 5, 5}, 0.7, 0.7},
		{"fallback above one", []float64{1, 1}, 3, 1},
		{"fallback negative", []float64{1, 1}, -2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := append([]float64(nil), tt.in...)
			MinMaxNormalize(x, tt.fallback)
			for _, v := range x {
				assert.Equal(t, tt.want, v)
			}
		})
	}
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 1.0, Clamp01(math.Inf(1)))
	assert.Equal(t, 0.25, Clamp01(0.25))
}
