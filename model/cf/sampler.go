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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bpr/base"
	"github.com/gorse-io/bpr/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// ErrSamplerExhausted is returned when no negative item is found for a user
// within the retry limit, or there is nothing to sample from.
var ErrSamplerExhausted = errors.New("sampler exhausted")

// Triple is a training example: the user prefers Positive over Negative.
type Triple struct {
	User     int32
	Positive int32
	Negative int32
}

// Sampler draws training triples from an interaction matrix. Entries with
// non-positive weights are treated as unobserved.
type Sampler struct {
	rng        base.RandomGenerator
	sampling   Sampling
	maxRetries int
	numItems   int32
	users      []int32
	entries    []lo.Tuple2[int32, int32]
	feedback   [][]int32
	positives  []mapset.Set[int32]
}

// NewSampler indexes the positives of trainSet. The matrix is only read.
func NewSampler(trainSet dataset.CFSplit, config Config, rng base.RandomGenerator) *Sampler {
	s := &Sampler{
		rng:        rng,
		sampling:   config.Sampling,
		maxRetries: config.MaxNegativeRetries,
		numItems:   int32(trainSet.CountItems()),
		entries:    make([]lo.Tuple2[int32, int32], 0, trainSet.CountFeedback()),
		feedback:   make([][]int32, trainSet.CountUsers()),
		positives:  make([]mapset.Set[int32], trainSet.CountUsers()),
	}
	trainSet.Range(func(userIndex, itemIndex int32, value float32) bool {
		if value <= 0 {
			return true
		}
		if s.positives[userIndex] == nil {
			s.positives[userIndex] = mapset.NewThreadUnsafeSet[int32]()
			s.users = append(s.users, userIndex)
		}
		if s.positives[userIndex].Add(itemIndex) {
			s.feedback[userIndex] = append(s.feedback[userIndex], itemIndex)
			s.entries = append(s.entries, lo.T2(userIndex, itemIndex))
		}
		return true
	})
	return s
}

// Sample draws a triple. The positive and user are filled even when the
// negative could not be found.
func (s *Sampler) Sample() (Triple, error) {
	if len(s.entries) == 0 {
		return Triple{User: -1, Positive: -1, Negative: -1}, ErrSamplerExhausted
	}
	var userIndex, posIndex int32
	switch s.sampling {
	case SamplingUser:
		userIndex = s.users[s.rng.Intn(len(s.users))]
		posIndex = s.feedback[userIndex][s.rng.Intn(len(s.feedback[userIndex]))]
	default:
		entry := s.entries[s.rng.Intn(len(s.entries))]
		userIndex, posIndex = entry.A, entry.B
	}
	negIndex, ok := s.rng.Int31nSkip(s.numItems, s.maxRetries, func(candidate int32) bool {
		return !s.positives[userIndex].Contains(candidate)
	})
	if !ok {
		return Triple{User: userIndex, Positive: posIndex, Negative: -1}, ErrSamplerExhausted
	}
	return Triple{User: userIndex, Positive: posIndex, Negative: negIndex}, nil
}

// CountUsers returns the number of users with at least one positive.
func (s *Sampler) CountUsers() int {
	return len(s.users)
}

// CountEntries returns the number of distinct positive interactions.
func (s *Sampler) CountEntries() int {
	return len(s.entries)
}

// IsPositive returns true if the item is observed for the user.
func (s *Sampler) IsPositive(userIndex, itemIndex int32) bool {
	if userIndex < 0 || int(userIndex) >= len(s.positives) || s.positives[userIndex] == nil {
		return false
	}
	return s.positives[userIndex].Contains(itemIndex)
}
