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

package cf

import (
	"strconv"
	"testing"

	"github.com/gorse-io/bpr/base"
	"github.com/gorse-io/bpr/dataset"
	"github.com/stretchr/testify/assert"
)

// newTestDataset registers numUsers users and numItems items named by their
// indices and adds unit feedback for each (user, item) pair.
func newTestDataset(t *testing.T, numUsers, numItems int, pairs ...[2]int) *dataset.Dataset {
	d := dataset.NewDataset()
	for i := 0; i < numUsers; i++ {
		d.AddUser(strconv.Itoa(i))
	}
	for i := 0; i < numItems; i++ {
		d.AddItem(strconv.Itoa(i))
	}
	for _, pair := range pairs {
		assert.NoError(t, d.AddFeedback(strconv.Itoa(pair[0]), strconv.Itoa(pair[1]), 1))
	}
	return d
}

func samplerConfig(sampling Sampling) Config {
	config := DefaultConfig()
	config.Sampling = sampling
	return config
}

func TestSampler_Sample(t *testing.T) {
	trainSet := newTestDataset(t, 3, 6, [2]int{0, 0}, [2]int{0, 1}, [2]int{1, 2}, [2]int{2, 3}, [2]int{2, 4})
	for _, sampling := range []Sampling{SamplingEntry, SamplingUser} {
		sampler := NewSampler(trainSet, samplerConfig(sampling), base.NewRandomGenerator(0))
		assert.Equal(t, 3, sampler.CountUsers())
		assert.Equal(t, 5, sampler.CountEntries())
		for i := 0; i < 1000; i++ {
			triple, err := sampler.Sample()
			assert.NoError(t, err)
			assert.True(t, sampler.IsPositive(triple.User, triple.Positive))
			assert.False(t, sampler.IsPositive(triple.User, triple.Negative))
			assert.GreaterOrEqual(t, triple.Negative, int32(0))
			assert.Less(t, triple.Negative, int32(6))
		}
	}
}

func TestSampler_RowFrequency(t *testing.T) {
	// user 0 owns 8 interactions, user 1 owns 1
	var pairs [][2]int
	for i := 0; i < 8; i++ {
		pairs = append(pairs, [2]int{0, i})
	}
	pairs = append(pairs, [2]int{1, 8})
	trainSet := newTestDataset(t, 2, 20, pairs...)
	const n = 9000
	frequency := func(sampling Sampling) float64 {
		sampler := NewSampler(trainSet, samplerConfig(sampling), base.NewRandomGenerator(1))
		count := 0
		for i := 0; i < n; i++ {
			triple, err := sampler.Sample()
			assert.NoError(t, err)
			if triple.User == 0 {
				count++
			}
		}
		return float64(count) / n
	}
	assert.InDelta(t, 8.0/9.0, frequency(SamplingEntry), 0.03)
	assert.InDelta(t, 0.5, frequency(SamplingUser), 0.03)
}

func TestSampler_Exhausted(t *testing.T) {
	// user 0 has interacted with every item
	trainSet := newTestDataset(t, 1, 2, [2]int{0, 0}, [2]int{0, 1})
	sampler := NewSampler(trainSet, samplerConfig(SamplingEntry), base.NewRandomGenerator(0))
	triple, err := sampler.Sample()
	assert.ErrorIs(t, err, ErrSamplerExhausted)
	assert.Equal(t, int32(0), triple.User)
	assert.True(t, sampler.IsPositive(triple.User, triple.Positive))
	assert.Equal(t, int32(-1), triple.Negative)

	// empty matrix
	sampler = NewSampler(newTestDataset(t, 2, 2), samplerConfig(SamplingUser), base.NewRandomGenerator(0))
	_, err = sampler.Sample()
	assert.ErrorIs(t, err, ErrSamplerExhausted)
}

func TestSampler_IgnoreZeroWeight(t *testing.T) {
	trainSet := newTestDataset(t, 1, 3, [2]int{0, 0})
	assert.NoError(t, trainSet.AddFeedback("0", "1", 0))
	sampler := NewSampler(trainSet, samplerConfig(SamplingEntry), base.NewRandomGenerator(0))
	assert.Equal(t, 1, sampler.CountEntries())
	assert.False(t, sampler.IsPositive(0, 1))
	assert.False(t, sampler.IsPositive(5, 0))
}

func TestSampler_ReadOnly(t *testing.T) {
	trainSet := newTestDataset(t, 2, 4, [2]int{0, 0}, [2]int{0, 1}, [2]int{1, 3})
	snapshot := func() [][3]float32 {
		var entries [][3]float32
		trainSet.Range(func(userIndex, itemIndex int32, value float32) bool {
			entries = append(entries, [3]float32{float32(userIndex), float32(itemIndex), value})
			return true
		})
		return entries
	}
	before := snapshot()
	sampler := NewSampler(trainSet, samplerConfig(SamplingEntry), base.NewRandomGenerator(0))
	for i := 0; i < 100; i++ {
		_, _ = sampler.Sample()
	}
	assert.Equal(t, before, snapshot())
	assert.Equal(t, 3, trainSet.CountFeedback())
}
