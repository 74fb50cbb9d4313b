package sim

import "math"

// pickupRandCoeffs are the three multipliers used to derive the
// reproducible pseudo-random stream for pickup placement and type
// selection. Exact values are load-bearing for determinism.
var pickupRandCoeffs = [3]int64{7919, 1543, 3571}

// pseudoRand reproduces frac(sin(x*12.9898) * 43758.5453), the classic
// GLSL-style hash used to derive deterministic pseudo-random values
// from a seed and tick. Any replacement must preserve this exact
// sequence; math/rand is deliberately not used here.
func pseudoRand(x float64) float64 {
	v := math.Sin(x*12.9898) * 43758.5453
	return v - math.Floor(v)
}

// pickupRandoms returns the three reproducible pseudo-random values
// drawn for pickup spawn decisions at the given seed and tick.
func pickupRandoms(seed int64, tick int64) [3]float64 {
	var out [3]float64
	for i, k := range pickupRandCoeffs {
		out[i] = pseudoRand(float64(seed + tick*k))
	}
	return out
}
