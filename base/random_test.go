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
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

const randomEpsilon = 0.1

func mean(a []float32) float32 {
	sum := float32(0)
	for _, v := range a {
		sum += v
	}
	return sum / float32(len(a))
}

func stdDev(a []float32) float32 {
	m := mean(a)
	sum := float32(0)
	for _, v := range a {
		sum += (v - m) * (v - m)
	}
	return math32.Sqrt(sum / float32(len(a)))
}

func TestRandomGenerator_MakeNormalMatrix(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.NormalMatrix(1, 1000, 1, 2)[0]
	assert.False(t, math32.Abs(mean(vec)-1) > randomEpsilon)
	assert.False(t, math32.Abs(stdDev(vec)-2) > randomEpsilon)
}

func TestRandomGenerator_Deterministic(t *testing.T) {
	a := NewRandomGenerator(42).NormalMatrix(3, 4, 0, 1)
	b := NewRandomGenerator(42).NormalMatrix(3, 4, 0, 1)
	assert.Equal(t, a, b)
	c := NewRandomGenerator(43).NormalMatrix(3, 4, 0, 1)
	assert.NotEqual(t, a, c)
}

func TestRandomGenerator_Int31nSkip(t *testing.T) {
	rng := NewRandomGenerator(0)
	v, ok := rng.Int31nSkip(10, 1000, func(v int32) bool { return v >= 5 })
	assert.True(t, ok)
	assert.GreaterOrEqual(t, v, int32(5))
	v, ok = rng.Int31nSkip(10, 10, func(int32) bool { return false })
	assert.False(t, ok)
	assert.Equal(t, int32(-1), v)
}

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-6)
	assert.InDelta(t, 0.7310586, Sigmoid(1), 1e-6)
	assert.InDelta(t, 0.2689414, Sigmoid(-1), 1e-6)
	assert.False(t, math32.IsNaN(Sigmoid(1e30)))
	assert.False(t, math32.IsNaN(Sigmoid(-1e30)))
	assert.Greater(t, Sigmoid(-1e30), float32(0))
	assert.LessOrEqual(t, Sigmoid(1e30), float32(1))
}
