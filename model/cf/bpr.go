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
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sort"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/bpr/base"
	"github.com/gorse-io/bpr/base/encoding"
	"github.com/gorse-io/bpr/base/log"
	"github.com/gorse-io/bpr/base/progress"
	"github.com/gorse-io/bpr/common/floats"
	"github.com/gorse-io/bpr/dataset"
	"github.com/gorse-io/bpr/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// State is the training state of a BPR model.
type State int

const (
	Uninitialized State = iota
	Training
	StoppedAtMaxIterations
	// Pretrained models hold injected or loaded factors and never train.
	Pretrained
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Training:
		return "training"
	case StoppedAtMaxIterations:
		return "stopped_at_max_iterations"
	case Pretrained:
		return "pretrained"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MatrixFactorization is a model made of user and item factors.
type MatrixFactorization interface {
	model.Model
	GetUserFactor(userIndex int32) []float32
	GetItemFactor(itemIndex int32) []float32
	Marshal(w io.Writer) error
	Unmarshal(r io.Reader) error
}

func GetModelName(m MatrixFactorization) string {
	switch m.(type) {
	case *BPR:
		return "bpr"
	default:
		return reflect.TypeOf(m).String()
	}
}

func MarshalModel(w io.Writer, m MatrixFactorization) error {
	if err := encoding.WriteString(w, GetModelName(m)); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func UnmarshalModel(r io.Reader) (MatrixFactorization, error) {
	name, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch name {
	case "bpr":
		var bpr BPR
		if err := bpr.Unmarshal(r); err != nil {
			return nil, errors.Trace(err)
		}
		return &bpr, nil
	}
	return nil, errors.NotSupportedf("model %v", name)
}

// BPR means Bayesian Personal Ranking, is a pairwise learning algorithm for matrix factorization
// model with implicit feedback. The pairwise ranking between item i and j for user u is estimated
// by:
//
//	p(i >_u j) = \sigma( p_u^T (q_i - q_j) )
//
// Hyper-parameters:
//
//	Reg        - The regularization parameter of the cost function that is
//	             optimized. Default is 0.01.
//	Lr         - The learning rate of SGD. Default is 0.001.
//	NFactors   - The number of latent factors. Default is 10.
//	NEpochs    - The number of iteration of the SGD procedure. Default is 100.
//	BatchSize  - The number of triples sampled per iteration. Default is 100.
//	InitMean   - The mean of initial random latent factors. Default is 0.
//	InitStdDev - The standard deviation of initial random latent factors. Default is 0.01.
type BPR struct {
	config Config
	state  State
	// Model parameters
	UserFactor      [][]float32
	ItemFactor      [][]float32
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// population is the training set bound by the last fit. Models built from
	// injected or loaded factors have none until fitted.
	population dataset.CFSplit
	meanScore  float32
}

// NewBPR creates a BPR model. Hyperparameters and the rows of initial factors
// are validated here; the shapes of initial factors are validated by Fit.
func NewBPR(config Config) (*BPR, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	bpr := &BPR{config: config, meanScore: config.DefaultScoreValue}
	if factors := config.InitialFactors; factors != nil {
		bpr.config.InitialFactors = &Factors{
			UserFactor: floats.MatCopy(factors.UserFactor),
			ItemFactor: floats.MatCopy(factors.ItemFactor),
		}
		if !config.Trainable {
			bpr.setPretrained(bpr.config.InitialFactors.UserFactor, bpr.config.InitialFactors.ItemFactor)
		}
	}
	return bpr, nil
}

func (bpr *BPR) setPretrained(userFactor, itemFactor [][]float32) {
	bpr.UserFactor = userFactor
	bpr.ItemFactor = itemFactor
	bpr.UserPredictable = bitset.New(uint(len(userFactor))).Complement()
	bpr.ItemPredictable = bitset.New(uint(len(itemFactor))).Complement()
	bpr.population = nil
	bpr.state = Pretrained
}

// GetConfig returns the hyperparameters without initial factors.
func (bpr *BPR) GetConfig() Config {
	config := bpr.config
	config.InitialFactors = nil
	return config
}

func (bpr *BPR) State() State {
	return bpr.state
}

func (bpr *BPR) Invalid() bool {
	return bpr == nil ||
		bpr.UserFactor == nil ||
		bpr.ItemFactor == nil
}

// GetUserFactor returns the factor of a user, or nil if it does not exist.
// The returned slice must not be modified.
func (bpr *BPR) GetUserFactor(userIndex int32) []float32 {
	if userIndex < 0 || int(userIndex) >= len(bpr.UserFactor) {
		return nil
	}
	return bpr.UserFactor[userIndex]
}

// GetItemFactor returns the factor of an item, or nil if it does not exist.
// The returned slice must not be modified.
func (bpr *BPR) GetItemFactor(itemIndex int32) []float32 {
	if itemIndex < 0 || int(itemIndex) >= len(bpr.ItemFactor) {
		return nil
	}
	return bpr.ItemFactor[itemIndex]
}

// IsUserPredictable returns true if the user has training feedback.
func (bpr *BPR) IsUserPredictable(userIndex int32) bool {
	return userIndex >= 0 && bpr.UserPredictable != nil && bpr.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns true if the item has training feedback.
func (bpr *BPR) IsItemPredictable(itemIndex int32) bool {
	return itemIndex >= 0 && bpr.ItemPredictable != nil && bpr.ItemPredictable.Test(uint(itemIndex))
}

// isUnknownUser returns true if the user has no factor or had no positive
// feedback in the training population.
func (bpr *BPR) isUnknownUser(userIndex int32) bool {
	if userIndex < 0 || int(userIndex) >= len(bpr.UserFactor) || !bpr.IsUserPredictable(userIndex) {
		return true
	}
	return bpr.population != nil && bpr.population.IsUnknownUser(userIndex)
}

func (bpr *BPR) isUnknownItem(itemIndex int32) bool {
	if itemIndex < 0 || int(itemIndex) >= len(bpr.ItemFactor) || !bpr.IsItemPredictable(itemIndex) {
		return true
	}
	return bpr.population != nil && bpr.population.IsUnknownItem(itemIndex)
}

// Score returns the dot product of the user factor and the item factor.
func (bpr *BPR) Score(userIndex, itemIndex int32) (float32, error) {
	if bpr.Invalid() {
		return 0, errors.Trace(model.ErrNotFitted)
	}
	if bpr.isUnknownUser(userIndex) {
		return 0, errors.NotFoundf("user %d", userIndex)
	}
	if bpr.isUnknownItem(itemIndex) {
		return 0, errors.NotFoundf("item %d", itemIndex)
	}
	return bpr.internalPredict(userIndex, itemIndex), nil
}

func (bpr *BPR) internalPredict(userIndex, itemIndex int32) float32 {
	return floats.Dot(bpr.UserFactor[userIndex], bpr.ItemFactor[itemIndex])
}

// Rank sorts candidates by descending score, or all items if candidates is
// nil. Ties are broken by ascending item index. Candidates without factors
// are scored by the DefaultScore policy. Negative candidates are dropped and
// duplicated candidates are returned once. For an unknown user the
// candidates, or all items, are returned in their natural order.
func (bpr *BPR) Rank(userIndex int32, candidates []int32) ([]int32, error) {
	if bpr.Invalid() {
		return nil, errors.Trace(model.ErrNotFitted)
	}
	if bpr.isUnknownUser(userIndex) {
		if candidates == nil {
			return lo.RangeFrom[int32](0, len(bpr.ItemFactor)), nil
		}
		return slices.Clone(candidates), nil
	}
	scores, defaultScore := bpr.scoreItems(userIndex)
	ranked := lo.RangeFrom[int32](0, len(scores))
	if candidates != nil {
		// Candidates beyond the trained items share the default score and
		// follow the trained items in index order, as if the score vector
		// was extended up to the largest candidate.
		extra := lo.Uniq(lo.Filter(candidates, func(itemIndex int32, _ int) bool {
			return int(itemIndex) >= len(scores)
		}))
		slices.Sort(extra)
		ranked = append(ranked, extra...)
	}
	scoreOf := func(itemIndex int32) float32 {
		if int(itemIndex) < len(scores) {
			return scores[itemIndex]
		}
		return defaultScore
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return scoreOf(ranked[i]) > scoreOf(ranked[j])
	})
	if candidates == nil {
		return ranked, nil
	}
	candidateSet := mapset.NewThreadUnsafeSet(candidates...)
	return lo.Filter(ranked, func(itemIndex int32, _ int) bool {
		return candidateSet.Contains(itemIndex)
	}), nil
}

// scoreItems scores every trained item for a user. Unknown items get the
// returned default score.
func (bpr *BPR) scoreItems(userIndex int32) ([]float32, float32) {
	scores := make([]float32, len(bpr.ItemFactor))
	known := make([]bool, len(bpr.ItemFactor))
	minScore := math32.Inf(1)
	for i := range bpr.ItemFactor {
		itemIndex := int32(i)
		if bpr.isUnknownItem(itemIndex) {
			continue
		}
		scores[i] = bpr.internalPredict(userIndex, itemIndex)
		known[i] = true
		minScore = math32.Min(minScore, scores[i])
	}
	var defaultScore float32
	switch bpr.config.DefaultScore {
	case DefaultScoreMin:
		defaultScore = lo.Ternary(math32.IsInf(minScore, 1), bpr.config.DefaultScoreValue, minScore-1)
	case DefaultScoreConstant:
		defaultScore = bpr.config.DefaultScoreValue
	default:
		defaultScore = bpr.meanScore
	}
	for i := range scores {
		if !known[i] {
			scores[i] = defaultScore
		}
	}
	return scores, defaultScore
}

// Fit the BPR model. Its task complexity is O(bpr.NEpochs * bpr.BatchSize).
func (bpr *BPR) Fit(ctx context.Context, trainSet, valSet dataset.CFSplit, config *model.FitConfig) (model.Score, error) {
	if config == nil {
		config = model.NewFitConfig()
	}
	log.Logger().Info("fit bpr",
		zap.Int("train_set_size", trainSet.CountFeedback()),
		zap.Int("n_users", trainSet.CountUsers()),
		zap.Int("n_items", trainSet.CountItems()),
		zap.Any("config", bpr.GetConfig()),
		zap.Any("fit_config", config))
	if !bpr.config.Trainable {
		if bpr.Invalid() {
			return model.Score{}, errors.NotValidf("untrainable model without factors")
		}
		if err := checkShape(bpr.UserFactor, bpr.ItemFactor, trainSet); err != nil {
			return model.Score{}, errors.Trace(err)
		}
		bpr.bind(trainSet)
		log.Logger().Info("bpr is trained already, skip fitting")
		return bpr.evaluate(ctx, valSet, trainSet, config)
	}

	// Initialize parameters
	fitStart := time.Now()
	rng := base.NewRandomGenerator(bpr.config.RandomState)
	var userFactor, itemFactor [][]float32
	if factors := bpr.config.InitialFactors; factors != nil {
		if err := checkShape(factors.UserFactor, factors.ItemFactor, trainSet); err != nil {
			return model.Score{}, errors.Trace(err)
		}
		userFactor = floats.MatCopy(factors.UserFactor)
		itemFactor = floats.MatCopy(factors.ItemFactor)
	} else {
		userFactor = rng.NormalMatrix(trainSet.CountUsers(), bpr.config.NFactors, bpr.config.InitMean, bpr.config.InitStdDev)
		itemFactor = rng.NormalMatrix(trainSet.CountItems(), bpr.config.NFactors, bpr.config.InitMean, bpr.config.InitStdDev)
	}
	sampler := NewSampler(trainSet, bpr.config, rng)
	if sampler.CountEntries() == 0 {
		log.Logger().Warn("no positive feedback to sample from, factors stay initialized")
	}
	bpr.UserFactor = userFactor
	bpr.ItemFactor = itemFactor
	bpr.bind(trainSet)
	bpr.state = Training

	// Create buffers
	temp := make([]float32, bpr.config.NFactors)
	userVec := make([]float32, bpr.config.NFactors)
	positiveItemVec := make([]float32, bpr.config.NFactors)
	negativeItemVec := make([]float32, bpr.config.NFactors)

	// Training
	var score model.Score
	_, span := progress.Start(ctx, "BPR.Fit", bpr.config.NEpochs)
	for epoch := 1; epoch <= bpr.config.NEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			bpr.clear()
			log.Logger().Warn("fit bpr cancelled", zap.Int("epoch", epoch), zap.Error(err))
			return model.Score{}, errors.Trace(err)
		}
		epochStart := time.Now()
		var cost float32
		skipped := 0
		for b := 0; b < bpr.config.BatchSize; b++ {
			triple, err := sampler.Sample()
			if err != nil {
				skipped++
				continue
			}
			userIndex, posIndex, negIndex := triple.User, triple.Positive, triple.Negative
			diff := bpr.internalPredict(userIndex, posIndex) - bpr.internalPredict(userIndex, negIndex)
			diff = math32.Max(-35, math32.Min(35, diff))
			cost += math32.Log1p(math32.Exp(-diff))
			grad := base.Sigmoid(-diff)
			// Pairwise update
			copy(userVec, bpr.UserFactor[userIndex])
			copy(positiveItemVec, bpr.ItemFactor[posIndex])
			copy(negativeItemVec, bpr.ItemFactor[negIndex])
			// Update positive item latent factor: +w_u
			floats.MulConstTo(userVec, grad, temp)
			floats.MulConstAdd(positiveItemVec, -bpr.config.Reg, temp)
			floats.MulConstAdd(temp, bpr.config.Lr, bpr.ItemFactor[posIndex])
			// Update negative item latent factor: -w_u
			floats.MulConstTo(userVec, -grad, temp)
			floats.MulConstAdd(negativeItemVec, -bpr.config.Reg, temp)
			floats.MulConstAdd(temp, bpr.config.Lr, bpr.ItemFactor[negIndex])
			// Update user latent factor: h_i-h_j
			floats.SubTo(positiveItemVec, negativeItemVec, temp)
			floats.MulConst(temp, grad)
			floats.MulConstAdd(userVec, -bpr.config.Reg, temp)
			floats.MulConstAdd(temp, bpr.config.Lr, bpr.UserFactor[userIndex])
		}
		epochTime := time.Since(epochStart)
		FitEpochsTotal.Inc()
		SampledTriplesTotal.Add(float64(bpr.config.BatchSize - skipped))
		SkippedTriplesTotal.Add(float64(skipped))
		FitCost.Set(float64(cost))
		if skipped > 0 {
			log.Logger().Debug("skip triples without negative item",
				zap.Int("epoch", epoch),
				zap.Int("skipped", skipped))
		}
		// Cross validation
		if (config.Verbose > 0 && epoch%config.Verbose == 0) || epoch == bpr.config.NEpochs {
			evalStart := time.Now()
			var err error
			if score, err = bpr.evaluate(ctx, valSet, trainSet, config); err != nil {
				span.Fail(err)
				bpr.clear()
				return model.Score{}, errors.Trace(err)
			}
			log.Logger().Info(fmt.Sprintf("fit bpr %v/%v", epoch, bpr.config.NEpochs),
				zap.String("fit_time", epochTime.String()),
				zap.String("eval_time", time.Since(evalStart).String()),
				zap.Float32("cost", cost),
				zap.Float32(fmt.Sprintf("NDCG@%v", config.TopK), score.NDCG),
				zap.Float32(fmt.Sprintf("Precision@%v", config.TopK), score.Precision),
				zap.Float32(fmt.Sprintf("Recall@%v", config.TopK), score.Recall))
		}
		span.Add(1)
	}
	span.End()
	bpr.state = StoppedAtMaxIterations
	FitSeconds.Set(time.Since(fitStart).Seconds())
	log.Logger().Info("fit bpr complete",
		zap.String("fit_time", time.Since(fitStart).String()),
		zap.Float32(fmt.Sprintf("NDCG@%v", config.TopK), score.NDCG),
		zap.Float32(fmt.Sprintf("Precision@%v", config.TopK), score.Precision),
		zap.Float32(fmt.Sprintf("Recall@%v", config.TopK), score.Recall))
	return score, nil
}

func (bpr *BPR) evaluate(ctx context.Context, valSet, trainSet dataset.CFSplit, config *model.FitConfig) (model.Score, error) {
	if valSet == nil {
		return model.Score{}, nil
	}
	score, err := Evaluate(ctx, bpr, valSet, trainSet, config.TopK, config.Jobs)
	if err != nil {
		return model.Score{}, errors.Trace(err)
	}
	NDCGGauge.Set(float64(score.NDCG))
	PrecisionGauge.Set(float64(score.Precision))
	RecallGauge.Set(float64(score.Recall))
	return score, nil
}

// bind records the population of trainSet.
func (bpr *BPR) bind(trainSet dataset.CFSplit) {
	bpr.population = trainSet
	bpr.UserPredictable = bitset.New(uint(trainSet.CountUsers()))
	bpr.ItemPredictable = bitset.New(uint(trainSet.CountItems()))
	var sum float32
	count := 0
	trainSet.Range(func(userIndex, itemIndex int32, value float32) bool {
		if value > 0 {
			bpr.UserPredictable.Set(uint(userIndex))
			bpr.ItemPredictable.Set(uint(itemIndex))
		}
		sum += value
		count++
		return true
	})
	if count > 0 {
		bpr.meanScore = sum / float32(count)
	} else {
		bpr.meanScore = 0
	}
}

func (bpr *BPR) clear() {
	bpr.UserFactor = nil
	bpr.ItemFactor = nil
	bpr.UserPredictable = nil
	bpr.ItemPredictable = nil
	bpr.population = nil
	bpr.state = Uninitialized
}

func checkShape(userFactor, itemFactor [][]float32, trainSet dataset.CFSplit) error {
	if len(userFactor) != trainSet.CountUsers() {
		return errors.NotValidf("%d user factors for %d users", len(userFactor), trainSet.CountUsers())
	}
	if len(itemFactor) != trainSet.CountItems() {
		return errors.NotValidf("%d item factors for %d items", len(itemFactor), trainSet.CountItems())
	}
	return nil
}

// Marshal model into byte stream.
func (bpr *BPR) Marshal(w io.Writer) error {
	if bpr.Invalid() {
		return errors.Trace(model.ErrNotFitted)
	}
	if err := encoding.WriteGob(w, bpr.GetConfig()); err != nil {
		return errors.Trace(err)
	}
	shape := []int64{int64(len(bpr.UserFactor)), int64(len(bpr.ItemFactor))}
	if err := binary.Write(w, binary.LittleEndian, shape); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, bpr.UserFactor); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, bpr.ItemFactor); err != nil {
		return errors.Trace(err)
	}
	if err := binary.Write(w, binary.LittleEndian, bpr.meanScore); err != nil {
		return errors.Trace(err)
	}
	for _, predictable := range []*bitset.BitSet{bpr.UserPredictable, bpr.ItemPredictable} {
		data, err := predictable.MarshalBinary()
		if err != nil {
			return errors.Trace(err)
		}
		if err = encoding.WriteBytes(w, data); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal model from byte stream. The loaded model is not trainable.
func (bpr *BPR) Unmarshal(r io.Reader) error {
	var config Config
	if err := encoding.ReadGob(r, &config); err != nil {
		return errors.Trace(err)
	}
	shape := make([]int64, 2)
	if err := binary.Read(r, binary.LittleEndian, shape); err != nil {
		return errors.Trace(err)
	}
	if shape[0] < 0 || shape[1] < 0 || config.NFactors <= 0 {
		return errors.NotValidf("factor shape (%d, %d, %d)", shape[0], shape[1], config.NFactors)
	}
	userFactor := base.NewMatrix32(int(shape[0]), config.NFactors)
	if err := encoding.ReadMatrix(r, userFactor); err != nil {
		return errors.Trace(err)
	}
	itemFactor := base.NewMatrix32(int(shape[1]), config.NFactors)
	if err := encoding.ReadMatrix(r, itemFactor); err != nil {
		return errors.Trace(err)
	}
	var meanScore float32
	if err := binary.Read(r, binary.LittleEndian, &meanScore); err != nil {
		return errors.Trace(err)
	}
	predictable := make([]*bitset.BitSet, 2)
	for i := range predictable {
		data, err := encoding.ReadBytes(r)
		if err != nil {
			return errors.Trace(err)
		}
		predictable[i] = new(bitset.BitSet)
		if err = predictable[i].UnmarshalBinary(data); err != nil {
			return errors.Trace(err)
		}
	}
	config.Trainable = false
	config.InitialFactors = &Factors{UserFactor: userFactor, ItemFactor: itemFactor}
	if err := config.Validate(); err != nil {
		return errors.Trace(err)
	}
	bpr.config = config
	bpr.setPretrained(userFactor, itemFactor)
	bpr.UserPredictable = predictable[0]
	bpr.ItemPredictable = predictable[1]
	bpr.meanScore = meanScore
	return nil
}
