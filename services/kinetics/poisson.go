// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kinetics

import (
	"math"
	"math/rand/v2"
)

// poissonSmallMean is where sampling switches from multiplication of
// uniforms to transformed rejection.
const poissonSmallMean = 10

// poisson draws a Poisson(lambda) variate.
//
// Small means use Knuth's product-of-uniforms method. Larger means use
// Hormann's PTRS transformed rejection, whose cost does not grow with lambda.
func poisson(rng *rand.Rand, lambda float64) int64 {
	switch {
	case lambda <= 0 || math.IsNaN(lambda):
		return 0
	case lambda < poissonSmallMean:
		limit := math.Exp(-lambda)
		var k int64
		p := rng.Float64()
		for p > limit {
			k++
			p *= rng.Float64()
		}
		return k
	default:
		return poissonPTRS(rng, lambda)
	}
}

func poissonPTRS(rng *rand.Rand, lambda float64) int64 {
	slam := math.Sqrt(lambda)
	loglam := math.Log(lambda)
	b := 0.931 + 2.53*slam
	a := -0.059 + 0.02483*b
	invalpha := 1.1239 + 1.1328/(b-3.4)
	vr := 0.9277 - 3.6224/(b-2)

	for {
		u := rng.Float64() - 0.5
		v := rng.Float64()
		us := 0.5 - math.Abs(u)
		k := math.Floor((2*a/us+b)*u + lambda + 0.43)
		if us >= 0.07 && v <= vr {
			return int64(k)
		}
		if k < 0 || (us < 0.013 && v > us) {
			continue
		}
		lg, _ := math.Lgamma(k + 1)
		if math.Log(v)+math.Log(invalpha)-math.Log(a/(us*us)+b) <= -lambda+k*loglam-lg {
			return int64(k)
		}
	}
}
