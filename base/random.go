// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"math/rand"

	"github.com/chewxy/math32"
)

// RandomGenerator is the random generator for gorse.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// NormalVector makes a vec filled with normal random floats.
func (rng RandomGenerator) NormalVector(size int, mean, stdDev float32) []float32 {
	ret := make([]float32, size)
	for i := 0; i < len(ret); i++ {
		ret[i] = float32(rng.NormFloat64())*stdDev + mean
	}
	return ret
}

// NormalMatrix makes a matrix filled with normal random floats.
func (rng RandomGenerator) NormalMatrix(row, col int, mean, stdDev float32) [][]float32 {
	ret := make([][]float32, row)
	for i := range ret {
		ret[i] = rng.NormalVector(col, mean, stdDev)
	}
	return ret
}

// Int31nSkip draws from [0, n) until accept returns true, at most maxTries times.
// The second return value is false if every draw was rejected.
func (rng RandomGenerator) Int31nSkip(n int32, maxTries int, accept func(int32) bool) (int32, bool) {
	for i := 0; i < maxTries; i++ {
		v := rng.Int31n(n)
		if accept(v) {
			return v, true
		}
	}
	return -1, false
}

// Sigmoid is the logistic function. The input is clamped to [-35, 35]
// so that exp never overflows a float32.
func Sigmoid(x float32) float32 {
	if x > 35 {
		x = 35
	} else if x < -35 {
		x = -35
	}
	return 1 / (1 + math32.Exp(-x))
}
