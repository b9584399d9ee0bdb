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
	"os"

	"github.com/gorse-io/bpr/base/log"
	"github.com/gorse-io/bpr/base/progress"
	"github.com/gorse-io/bpr/config"
	"github.com/gorse-io/bpr/dataset"
	"github.com/gorse-io/bpr/model"
	"github.com/gorse-io/bpr/model/cf"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fitCommand = &cobra.Command{
	Use:   "fit",
	Short: "Fit a model on feedback from a CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataPath, _ := cmd.Flags().GetString("data")
		outputPath, _ := cmd.Flags().GetString("output")

		// load config
		log.Logger().Info("load config", zap.String("config", configPath))
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			return errors.Trace(err)
		}

		// load data
		data, err := loadData(dataPath, conf.Data, cmd.ErrOrStderr())
		if err != nil {
			return errors.Trace(err)
		}
		trainSet, testSet, err := data.Split(conf.Data.TestRatio, conf.Data.Seed)
		if err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("load data",
			zap.String("data", dataPath),
			zap.Int("n_users", data.CountUsers()),
			zap.Int("n_items", data.CountItems()),
			zap.Int("n_train", trainSet.CountFeedback()),
			zap.Int("n_test", testSet.CountFeedback()))

		// fit model
		bpr, err := cf.NewBPR(conf.BPR)
		if err != nil {
			return errors.Trace(err)
		}
		var valSet dataset.CFSplit
		if testSet.CountFeedback() > 0 {
			valSet = testSet
		}
		tracer := progress.NewTracer("gorse-bpr")
		ctx, span := tracer.Start(cmd.Context(), "fit", 1)
		score, err := bpr.Fit(ctx, trainSet, valSet, conf.GetFitConfig())
		if err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		span.Add(1)
		span.End()
		for _, p := range tracer.List() {
			log.Logger().Info("progress",
				zap.String("name", p.Name),
				zap.Int("count", p.Count),
				zap.Int("total", p.Total),
				zap.Duration("elapsed", p.FinishTime.Sub(p.StartTime)))
		}
		if err = printScore(cmd.OutOrStdout(), score, conf.Fit.TopK); err != nil {
			return errors.Trace(err)
		}

		// save model
		if outputPath != "" {
			if err = saveModel(outputPath, bpr, data.GetUserDict(), data.GetItemDict()); err != nil {
				return errors.Trace(err)
			}
			log.Logger().Info("save model", zap.String("output", outputPath))
		}
		return nil
	},
}

func init() {
	fitCommand.Flags().StringP("config", "c", "", "configuration file path")
	fitCommand.Flags().StringP("data", "d", "", "feedback file path")
	fitCommand.Flags().StringP("output", "o", "", "model file path")
	_ = fitCommand.MarkFlagRequired("data")
}

func loadData(path string, conf config.DataConfig, progressWriter io.Writer) (*dataset.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		return nil, errors.Trace(err)
	}
	bar := progressbar.NewOptions64(stat.Size(),
		progressbar.OptionSetDescription("Loading "+path),
		progressbar.OptionSetWriter(progressWriter),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish())
	pbReader := progressbar.NewReader(file, bar)
	data, err := dataset.LoadDataFromCSV(&pbReader, conf.Sep, conf.Header)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}
	_ = bar.Finish()
	return data, nil
}

func printScore(w io.Writer, score model.Score, topK int) error {
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	rows := [][]string{
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
