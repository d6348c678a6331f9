package utils

import "math"

// Clamp01 normalizes a value into [0,1]; NaN collapses to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}

	return math.Max(0, math.Min(1, x))
}
