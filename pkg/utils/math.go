package utils

import "math"

// MinMaxNormalize rescales x in place to [0,1].
// When every value is equal the slice is set to fallback clamped to [0,1].
func MinMaxNormalize(x []float64, fallback float64) {
	if len(x) == 0 {
		return
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	span := hi - lo
	if span <= 1e-12 {
		c := Clamp01(fallback)
		for i := range x {
			x[i] = c
		}
		return
	}
	for i, v := range x {
		x[i] = Clamp01((v - lo) / span)
	}
}

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
