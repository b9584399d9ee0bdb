// Copyright 2020 gorse Project Authors
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

// Package model defines the capability shared by trainable recommenders.
package model

import (
	"context"

	"github.com/gorse-io/bpr/dataset"
	"github.com/juju/errors"
)

// ErrNotFitted is returned when a model is used for inference before any
// factors exist.
var ErrNotFitted = errors.New("model not fitted")

// Score is the ranking quality of a model on a validation set.
type Score struct {
	NDCG      float32
	Precision float32
	Recall    float32
}

// Model is the capability of a trainable recommender. Implementations are
// single-writer: Fit must not run concurrently with Score or Rank on the
// same instance, while Score and Rank may run concurrently once Fit returns.
type Model interface {
	// Fit trains the model, or validates injected factors against trainSet
	// if the model is not trainable. valSet may be nil.
	Fit(ctx context.Context, trainSet, valSet dataset.CFSplit, config *FitConfig) (Score, error)
	// Score returns the compatibility of a user and an item.
	Score(userIndex, itemIndex int32) (float32, error)
	// Rank orders candidates (all items if nil) by descending score.
	Rank(userIndex int32, candidates []int32) ([]int32, error)
	// Invalid returns true if the model holds no factors.
	Invalid() bool
}

// FitConfig controls logging and evaluation during fitting. Jobs is the
// number of workers used by evaluation; training is sequential.
type FitConfig struct {
	Verbose int
	TopK    int
	Jobs    int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Verbose: 10,
		TopK:    10,
		Jobs:    1,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetTopK(topK int) *FitConfig {
	config.TopK = topK
	return config
}

func (config *FitConfig) SetJobs(nJobs int) *FitConfig {
	config.Jobs = nJobs
	return config
}
