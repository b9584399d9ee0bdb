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

package main

import (
	"fmt"
	"io"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/bpr/base/log"
	"github.com/gorse-io/bpr/config"
	"github.com/gorse-io/bpr/model"
	"github.com/gorse-io/bpr/model/cf"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tuneCommand = &cobra.Command{
	Use:   "tune",
	Short: "Search hyperparameters on feedback from a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataPath, _ := cmd.Flags().GetString("data")
		trials, _ := cmd.Flags().GetInt("trials")
		if trials <= 0 {
			return errors.NotValidf("trials = %d", trials)
		}
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			return errors.Trace(err)
		}
		if conf.Data.TestRatio == 0 {
			return errors.NotValidf("tuning with test ratio 0")
		}
		data, err := loadData(dataPath, conf.Data, cmd.ErrOrStderr())
		if err != nil {
			return errors.Trace(err)
		}
		trainSet, testSet, err := data.Split(conf.Data.TestRatio, conf.Data.Seed)
		if err != nil {
			return errors.Trace(err)
		}
		search := cf.NewModelSearch(cmd.Context(), conf.BPR, trainSet, testSet, conf.GetFitConfig())
		study, err := goptuna.CreateStudy("gorse-bpr",
			goptuna.StudyOptionDirection(goptuna.StudyDirectionMaximize),
			goptuna.StudyOptionSampler(tpe.NewSampler()))
		if err != nil {
			return errors.Trace(err)
		}
		if err = study.Optimize(search.Objective, trials); err != nil {
			return errors.Trace(err)
		}
		best, score := search.Result()
		log.Logger().Info("tune bpr complete",
			zap.Int("trials", trials),
			zap.Any("config", best),
			zap.Float32(fmt.Sprintf("NDCG@%v", conf.Fit.TopK), score.NDCG))
		return errors.Trace(printSearchResult(cmd.OutOrStdout(), best, score, conf.Fit.TopK))
	},
}

func init() {
	tuneCommand.Flags().StringP("config", "c", "", "configuration file path")
	tuneCommand.Flags().StringP("data", "d", "", "feedback file path")
	tuneCommand.Flags().IntP("trials", "t", 10, "number of trials")
	_ = tuneCommand.MarkFlagRequired("data")
}

func printSearchResult(w io.Writer, best cf.Config, score model.Score, topK int) error {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Value")
	rows := [][]string{
		{"n_factors", fmt.Sprint(best.NFactors)},
		{"lr", fmt.Sprintf("%.6f", best.Lr)},
		{"reg", fmt.Sprintf("%.6f", best.Reg)},
		{"init_std_dev", fmt.Sprintf("%.6f", best.InitStdDev)},
		{fmt.Sprintf("NDCG@%d", topK), fmt.Sprintf("%.6f", score.NDCG)},
		{fmt.Sprintf("Precision@%d", topK), fmt.Sprintf("%.6f", score.Precision)},
		{fmt.Sprintf("Recall@%d", topK), fmt.Sprintf("%.6f", score.Recall)},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
