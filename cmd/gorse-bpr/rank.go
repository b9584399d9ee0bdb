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

	"github.com/gorse-io/bpr/base/log"
	"github.com/gorse-io/bpr/dataset"
	"github.com/gorse-io/bpr/model/cf"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rankCommand = &cobra.Command{
	Use:   "rank",
	Short: "Rank items for a user with a fitted model",
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath, _ := cmd.Flags().GetString("model")
		userId, _ := cmd.Flags().GetString("user")
		n, _ := cmd.Flags().GetInt("n")
		if n <= 0 {
			return errors.NotValidf("n = %d", n)
		}
		m, userDict, itemDict, err := loadModel(modelPath)
		if err != nil {
			return errors.Trace(err)
		}
		userIndex := int32(-1)
		if index, ok := userDict.Lookup(userId); ok {
			userIndex = int32(index)
		} else {
			log.Logger().Warn("unknown user, items are listed in natural order", zap.String("user_id", userId))
		}
		return errors.Trace(printRanking(cmd.OutOrStdout(), m, itemDict, userIndex, n))
	},
}

func init() {
	rankCommand.Flags().StringP("model", "m", "", "model file path")
	rankCommand.Flags().StringP("user", "u", "", "user id")
	rankCommand.Flags().IntP("n", "n", 10, "number of items")
	_ = rankCommand.MarkFlagRequired("model")
	_ = rankCommand.MarkFlagRequired("user")
}

func printRanking(w io.Writer, m cf.MatrixFactorization, itemDict *dataset.FreqDict, userIndex int32, n int) error {
	ranked, err := m.Rank(userIndex, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Item", "Score")
	for i, itemIndex := range ranked {
		itemId, _ := itemDict.String(int(itemIndex))
		score := "-"
		if s, err := m.Score(userIndex, itemIndex); err == nil {
			score = fmt.Sprintf("%.6f", s)
		}
		if err = table.Append([]string{fmt.Sprint(i + 1), itemId, score}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
