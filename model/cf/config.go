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
	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
)

// Sampling decides how the row of a training triple is drawn.
type Sampling string

const (
	// SamplingEntry draws a uniformly random stored interaction, so users
	// are sampled in proportion to their interaction count.
	SamplingEntry Sampling = "entry"
	// SamplingUser draws uniformly among users with at least one interaction.
	SamplingUser Sampling = "user"
)

// DefaultScore decides the score of items a user is ranked against but the
// model has no factors for.
type DefaultScore string

const (
	DefaultScoreMean     DefaultScore = "mean"
	DefaultScoreMin      DefaultScore = "min"
	DefaultScoreConstant DefaultScore = "constant"
)

// Factors are pretrained factor matrices.
type Factors struct {
	UserFactor [][]float32
	ItemFactor [][]float32
}

// Config holds the hyperparameters of BPR. It is copied by NewBPR.
type Config struct {
	NFactors           int          `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs            int          `mapstructure:"n_epochs" validate:"gt=0"`
	Lr                 float32      `mapstructure:"lr" validate:"gt=0"`
	Reg                float32      `mapstructure:"reg" validate:"gte=0"`
	BatchSize          int          `mapstructure:"batch_size" validate:"gt=0"`
	InitMean           float32      `mapstructure:"init_mean"`
	InitStdDev         float32      `mapstructure:"init_std_dev" validate:"gte=0"`
	RandomState        int64        `mapstructure:"random_state"`
	Sampling           Sampling     `mapstructure:"sampling" validate:"oneof=entry user"`
	MaxNegativeRetries int          `mapstructure:"max_negative_retries" validate:"gt=0"`
	DefaultScore       DefaultScore `mapstructure:"default_score" validate:"oneof=mean min constant"`
	DefaultScoreValue  float32      `mapstructure:"default_score_value"`
	Trainable          bool         `mapstructure:"trainable"`
	InitialFactors     *Factors     `mapstructure:"-" validate:"-"`
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		NFactors:           10,
		NEpochs:            100,
		Lr:                 0.001,
		Reg:                0.01,
		BatchSize:          100,
		InitMean:           0,
		InitStdDev:         0.01,
		RandomState:        0,
		Sampling:           SamplingEntry,
		MaxNegativeRetries: 100,
		DefaultScore:       DefaultScoreMean,
		Trainable:          true,
	}
}

var validate = validator.New()

// Validate checks hyperparameters and the rows of initial factors.
func (config *Config) Validate() error {
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid bpr config")
	}
	if config.InitialFactors != nil {
		factors := config.InitialFactors
		if factors.UserFactor == nil || factors.ItemFactor == nil {
			return errors.NotValidf("initial factors without both user and item factors")
		}
		for i, row := range factors.UserFactor {
			if len(row) != config.NFactors {
				return errors.NotValidf("user factor %d of length %d with %d factors", i, len(row), config.NFactors)
			}
		}
		for i, row := range factors.ItemFactor {
			if len(row) != config.NFactors {
				return errors.NotValidf("item factor %d of length %d with %d factors", i, len(row), config.NFactors)
			}
		}
	}
	return nil
}
