// Copyright 2024 gorse Project Authors
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
	"context"

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/bpr/dataset"
	"github.com/gorse-io/bpr/model"
	"github.com/juju/errors"
)

// ModelSearch searches hyperparameters of BPR on a validation set. It is the
// objective of a goptuna study.
type ModelSearch struct {
	ctx        context.Context
	baseConfig Config
	trainSet   dataset.CFSplit
	testSet    dataset.CFSplit
	config     *model.FitConfig
	bestConfig Config
	bestScore  model.Score
	numTrials  int
}

func NewModelSearch(ctx context.Context, baseConfig Config, trainSet, testSet dataset.CFSplit, config *model.FitConfig) *ModelSearch {
	return &ModelSearch{
		ctx:        ctx,
		baseConfig: baseConfig,
		trainSet:   trainSet,
		testSet:    testSet,
		config:     config,
	}
}

// SuggestConfig overwrites the number of factors, the learning rate, the
// regularization and the initial standard deviation of baseConfig.
func SuggestConfig(trial goptuna.Trial, baseConfig Config) (Config, error) {
	config := baseConfig
	nFactors, err := trial.SuggestInt("n_factors", 4, 64)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	lr, err := trial.SuggestLogFloat("lr", 0.001, 0.1)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	reg, err := trial.SuggestLogFloat("reg", 0.001, 0.1)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	initStdDev, err := trial.SuggestLogFloat("init_std_dev", 0.001, 0.1)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	config.NFactors = nFactors
	config.Lr = float32(lr)
	config.Reg = float32(reg)
	config.InitStdDev = float32(initStdDev)
	config.InitialFactors = nil
	config.Trainable = true
	return config, nil
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	config, err := SuggestConfig(trial, ms.baseConfig)
	if err != nil {
		return 0, errors.Trace(err)
	}
	bpr, err := NewBPR(config)
	if err != nil {
		return 0, errors.Trace(err)
	}
	score, err := bpr.Fit(ms.ctx, ms.trainSet, ms.testSet, ms.config)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if ms.numTrials == 0 || score.NDCG > ms.bestScore.NDCG {
		ms.bestConfig = config
		ms.bestScore = score
	}
	ms.numTrials++
	return float64(score.NDCG), nil
}

// Result returns the best hyperparameters and their score.
func (ms *ModelSearch) Result() (Config, model.Score) {
	return ms.bestConfig, ms.bestScore
}
