// Copyright 2021 gorse Project Authors
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

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/bpr/model"
	"github.com/gorse-io/bpr/model/cf"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration of gorse-bpr.
type Config struct {
	BPR  cf.Config  `mapstructure:"bpr"`
	Fit  FitConfig  `mapstructure:"fit"`
	Data DataConfig `mapstructure:"data"`
}

// FitConfig is the configuration for logging and evaluation during fitting.
type FitConfig struct {
	Verbose int `mapstructure:"verbose" validate:"gte=0"`
	TopK    int `mapstructure:"top_k" validate:"gt=0"`
	Jobs    int `mapstructure:"jobs" validate:"gt=0"`
}

// DataConfig is the configuration for loading and splitting feedback.
type DataConfig struct {
	Sep       string  `mapstructure:"sep" validate:"required"`
	Header    bool    `mapstructure:"header"`
	TestRatio float64 `mapstructure:"test_ratio" validate:"gte=0,lt=1"`
	Seed      int64   `mapstructure:"seed"`
}

func GetDefaultConfig() *Config {
	return &Config{
		BPR: cf.DefaultConfig(),
		Fit: FitConfig{
			Verbose: 10,
			TopK:    10,
			Jobs:    1,
		},
		Data: DataConfig{
			Sep:       ",",
			TestRatio: 0.2,
		},
	}
}

// GetFitConfig returns the fit options of the model.
func (config *Config) GetFitConfig() *model.FitConfig {
	return model.NewFitConfig().
		SetVerbose(config.Fit.Verbose).
		SetTopK(config.Fit.TopK).
		SetJobs(config.Fit.Jobs)
}

var validate = validator.New()

func (config *Config) Validate() error {
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return errors.Trace(config.BPR.Validate())
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [bpr]
	v.SetDefault("bpr.n_factors", defaultConfig.BPR.NFactors)
	v.SetDefault("bpr.n_epochs", defaultConfig.BPR.NEpochs)
	v.SetDefault("bpr.lr", defaultConfig.BPR.Lr)
	v.SetDefault("bpr.reg", defaultConfig.BPR.Reg)
	v.SetDefault("bpr.batch_size", defaultConfig.BPR.BatchSize)
	v.SetDefault("bpr.init_mean", defaultConfig.BPR.InitMean)
	v.SetDefault("bpr.init_std_dev", defaultConfig.BPR.InitStdDev)
	v.SetDefault("bpr.random_state", defaultConfig.BPR.RandomState)
	v.SetDefault("bpr.sampling", string(defaultConfig.BPR.Sampling))
	v.SetDefault("bpr.max_negative_retries", defaultConfig.BPR.MaxNegativeRetries)
	v.SetDefault("bpr.default_score", string(defaultConfig.BPR.DefaultScore))
	v.SetDefault("bpr.default_score_value", defaultConfig.BPR.DefaultScoreValue)
	v.SetDefault("bpr.trainable", defaultConfig.BPR.Trainable)
	// [fit]
	v.SetDefault("fit.verbose", defaultConfig.Fit.Verbose)
	v.SetDefault("fit.top_k", defaultConfig.Fit.TopK)
	v.SetDefault("fit.jobs", defaultConfig.Fit.Jobs)
	// [data]
	v.SetDefault("data.sep", defaultConfig.Data.Sep)
	v.SetDefault("data.header", defaultConfig.Data.Header)
	v.SetDefault("data.test_ratio", defaultConfig.Data.TestRatio)
	v.SetDefault("data.seed", defaultConfig.Data.Seed)
}

// LoadConfig loads configuration from a TOML file. Environment variables such
// as GORSE_BPR_N_FACTORS override the file. An empty path loads defaults and
// environment variables only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("GORSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}
