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

package cf

import (
	"context"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bpr/common/parallel"
	"github.com/gorse-io/bpr/dataset"
	"github.com/gorse-io/bpr/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Evaluate ranks, for each user in testSet, the items not observed in trainSet
// and averages NDCG, Precision and Recall of the top k items. Users are
// evaluated by nJobs workers, so m must support concurrent Rank calls.
func Evaluate(ctx context.Context, m model.Model, testSet, trainSet dataset.CFSplit, topK, nJobs int) (model.Score, error) {
	numUsers := max(testSet.CountUsers(), trainSet.CountUsers())
	numItems := max(testSet.CountItems(), trainSet.CountItems())
	testItems := userItemSets(testSet, numUsers)
	trainItems := userItemSets(trainSet, numUsers)
	ndcg := make([]float32, numUsers)
	precision := make([]float32, numUsers)
	recall := make([]float32, numUsers)
	err := parallel.Parallel(ctx, numUsers, nJobs, func(_, userIndex int) error {
		targetSet := testItems[userIndex]
		if targetSet == nil {
			return nil
		}
		excludeSet := trainItems[userIndex]
		candidates := lo.Filter(lo.RangeFrom[int32](0, numItems), func(itemIndex int32, _ int) bool {
			return excludeSet == nil || !excludeSet.Contains(itemIndex)
		})
		rankList, err := m.Rank(int32(userIndex), candidates)
		if err != nil {
			return errors.Trace(err)
		}
		if len(rankList) > topK {
			rankList = rankList[:topK]
		}
		ndcg[userIndex] = NDCG(targetSet, rankList)
		precision[userIndex] = Precision(targetSet, rankList)
		recall[userIndex] = Recall(targetSet, rankList)
		return nil
	})
	if err != nil {
		return model.Score{}, errors.Trace(err)
	}
	var score model.Score
	count := 0
	for userIndex := range testItems {
		if testItems[userIndex] == nil {
			continue
		}
		score.NDCG += ndcg[userIndex]
		score.Precision += precision[userIndex]
		score.Recall += recall[userIndex]
		count++
	}
	if count == 0 {
		return model.Score{}, nil
	}
	score.NDCG /= float32(count)
	score.Precision /= float32(count)
	score.Recall /= float32(count)
	return score, nil
}

func userItemSets(split dataset.CFSplit, numUsers int) []mapset.Set[int32] {
	sets := make([]mapset.Set[int32], numUsers)
	split.Range(func(userIndex, itemIndex int32, value float32) bool {
		if value <= 0 {
			return true
		}
		if sets[userIndex] == nil {
			sets[userIndex] = mapset.NewThreadUnsafeSet[int32]()
		}
		sets[userIndex].Add(itemIndex)
		return true
	})
	return sets
}

// NDCG means Normalized Discounted Cumulative Gain.
func NDCG(targetSet mapset.Set[int32], rankList []int32) float32 {
	// IDCG = \sum^{|REL|}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := float32(0)
	for i := 0; i < targetSet.Cardinality() && i < len(rankList); i++ {
		idcg += 1.0 / math32.Log2(float32(i)+2.0)
	}
	if idcg == 0 {
		return 0
	}
	// DCG = \sum^{N}_{i=1} \frac {2^{rel_i}-1} {\log_2(i+1)}
	dcg := float32(0)
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math32.Log2(float32(i)+2.0)
		}
	}
	return dcg / idcg
}

// Precision is the fraction of relevant items among the recommended items.
//
//	\frac{|relevant documents| \cap |retrieved documents|} {|{retrieved documents}|}
func Precision(targetSet mapset.Set[int32], rankList []int32) float32 {
	if len(rankList) == 0 {
		return 0
	}
	hit := float32(0)
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return hit / float32(len(rankList))
}

// Recall is the fraction of relevant items that have been recommended over the total
// amount of relevant items.
//
//	\frac{|relevant documents| \cap |retrieved documents|} {|{relevant documents}|}
func Recall(targetSet mapset.Set[int32], rankList []int32) float32 {
	if targetSet.Cardinality() == 0 {
		return 0
	}
	hit := 0
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return float32(hit) / float32(targetSet.Cardinality())
}

// HR means Hit Ratio.
func HR(targetSet mapset.Set[int32], rankList []int32) float32 {
	for _, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1
		}
	}
	return 0
}

// MAP means Mean Average Precision.
// mAP: http://sdsawtelle.github.io/blog/output/mean-average-precision-MAP-for-recommender-systems.html
func MAP(targetSet mapset.Set[int32], rankList []int32) float32 {
	if targetSet.Cardinality() == 0 {
		return 0
	}
	sumPrecision := float32(0)
	hit := 0
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			hit++
			sumPrecision += float32(hit) / float32(i+1)
		}
	}
	return sumPrecision / float32(targetSet.Cardinality())
}

// MRR means Mean Reciprocal Rank.
//
// The mean reciprocal rank is a statistic measure for evaluating any process
// that produces a list of possible responses to a sample of queries, ordered
// by probability of correctness. The reciprocal rank of a query response is
// the multiplicative inverse of the rank of the first correct answer: 1 for
// first place, 1/2 for second place, 1/3 for third place and so on.
func MRR(targetSet mapset.Set[int32], rankList []int32) float32 {
	for i, itemId := range rankList {
		if targetSet.Contains(itemId) {
			return 1 / float32(i+1)
		}
	}
	return 0
}
