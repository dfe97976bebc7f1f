// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package kinetics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoisson_MeanAndVariance(t *testing.T) {
	const n = 20000
	for _, lambda := range []float64{0.2, 3, 9.5, 10, 42, 1500} {
		rng := NewRand(17, uint64(lambda*10))
		var sum, sumSq float64
		for range n {
			k := poisson(rng, lambda)
			assert.GreaterOrEqual(t, k, int64(0))
			v := float64(k)
			sum += v
			sumSq += v * v
		}
		mean := sum / n
		variance := sumSq/n - mean*mean

		// Five standard errors of the mean.
		tol := 5 * math.Sqrt(lambda/n)
		assert.InDelta(t, lambda, mean, tol, "mean for lambda=%v", lambda)
		assert.InDelta(t, lambda, variance, 0.1*lambda+0.05, "variance for lambda=%v", lambda)
	}
}

func TestPoisson_Degenerate(t *testing.T) {
	rng := NewRand(1, 1)
	assert.Zero(t, poisson(rng, 0))
	assert.Zero(t, poisson(rng, -3))
	assert.Zero(t, poisson(rng, math.NaN()))
}
