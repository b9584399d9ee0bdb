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

package dataset

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/gorse-io/bpr/base"
	"github.com/juju/errors"
)

// CFSplit is a read-only sparse interaction matrix of implicit feedback.
// Indices are dense: users in [0, CountUsers()) and items in [0, CountItems()).
// An absent entry means unobserved.
type CFSplit interface {
	CountUsers() int
	CountItems() int
	CountFeedback() int
	// Range calls f for every stored (user, item, value) until f returns false.
	Range(f func(userIndex, itemIndex int32, value float32) bool)
	// IsUnknownUser and IsUnknownItem report indices without feedback.
	IsUnknownUser(userIndex int32) bool
	IsUnknownItem(itemIndex int32) bool
}

// Dataset stores implicit feedback as per-user rows. Duplicated (user, item)
// pairs are merged by summing their values.
type Dataset struct {
	userDict     *FreqDict
	itemDict     *FreqDict
	userFeedback [][]int32
	userValues   [][]float32
	itemFeedback [][]int32
	positions    map[int64]int
	count        int
}

func NewDataset() *Dataset {
	return newDataset(NewFreqDict(), NewFreqDict())
}

func newDataset(userDict, itemDict *FreqDict) *Dataset {
	return &Dataset{
		userDict:  userDict,
		itemDict:  itemDict,
		positions: make(map[int64]int),
	}
}

func (d *Dataset) GetUserDict() *FreqDict {
	return d.userDict
}

func (d *Dataset) GetItemDict() *FreqDict {
	return d.itemDict
}

func (d *Dataset) CountUsers() int {
	return d.userDict.Count()
}

func (d *Dataset) CountItems() int {
	return d.itemDict.Count()
}

func (d *Dataset) CountFeedback() int {
	return d.count
}

// GetUserFeedback returns the items observed for a user.
func (d *Dataset) GetUserFeedback(userIndex int32) []int32 {
	if userIndex < 0 || int(userIndex) >= len(d.userFeedback) {
		return nil
	}
	return d.userFeedback[userIndex]
}

// GetItemFeedback returns the users observed for an item.
func (d *Dataset) GetItemFeedback(itemIndex int32) []int32 {
	if itemIndex < 0 || int(itemIndex) >= len(d.itemFeedback) {
		return nil
	}
	return d.itemFeedback[itemIndex]
}

// IsUnknownUser returns true if the user has no feedback in this dataset,
// even if its ID is registered.
func (d *Dataset) IsUnknownUser(userIndex int32) bool {
	return len(d.GetUserFeedback(userIndex)) == 0
}

// IsUnknownItem returns true if the item has no feedback in this dataset.
func (d *Dataset) IsUnknownItem(itemIndex int32) bool {
	return len(d.GetItemFeedback(itemIndex)) == 0
}

func (d *Dataset) Range(f func(userIndex, itemIndex int32, value float32) bool) {
	for userIndex, items := range d.userFeedback {
		for i, itemIndex := range items {
			if !f(int32(userIndex), itemIndex, d.userValues[userIndex][i]) {
				return
			}
		}
	}
}

// AddUser registers a user without feedback.
func (d *Dataset) AddUser(userId string) int32 {
	return int32(d.userDict.NotCount(userId))
}

// AddItem registers an item without feedback.
func (d *Dataset) AddItem(itemId string) int32 {
	return int32(d.itemDict.NotCount(itemId))
}

// AddFeedback adds a weighted interaction. Values must be finite and non-negative.
func (d *Dataset) AddFeedback(userId, itemId string, value float32) error {
	if value < 0 || math32.IsNaN(value) || math32.IsInf(value, 0) {
		return errors.NotValidf("feedback value %v of (%s, %s)", value, userId, itemId)
	}
	userIndex := int32(d.userDict.Id(userId))
	itemIndex := int32(d.itemDict.Id(itemId))
	d.addFeedback(userIndex, itemIndex, value)
	return nil
}

func (d *Dataset) addFeedback(userIndex, itemIndex int32, value float32) {
	for len(d.userFeedback) <= int(userIndex) {
		d.userFeedback = append(d.userFeedback, nil)
		d.userValues = append(d.userValues, nil)
	}
	for len(d.itemFeedback) <= int(itemIndex) {
		d.itemFeedback = append(d.itemFeedback, nil)
	}
	key := int64(userIndex)<<32 | int64(itemIndex)
	if pos, exist := d.positions[key]; exist {
		d.userValues[userIndex][pos] += value
		return
	}
	d.positions[key] = len(d.userFeedback[userIndex])
	d.userFeedback[userIndex] = append(d.userFeedback[userIndex], itemIndex)
	d.userValues[userIndex] = append(d.userValues[userIndex], value)
	d.itemFeedback[itemIndex] = append(d.itemFeedback[itemIndex], userIndex)
	d.count++
}

// Split holds out a random fraction of interactions as the test set. Both
// halves share the user and item dictionaries, so indices agree.
func (d *Dataset) Split(testRatio float64, seed int64) (*Dataset, *Dataset, error) {
	if testRatio < 0 || testRatio >= 1 {
		return nil, nil, errors.NotValidf("test ratio %v", testRatio)
	}
	rng := base.NewRandomGenerator(seed)
	train := newDataset(d.userDict, d.itemDict)
	test := newDataset(d.userDict, d.itemDict)
	d.Range(func(userIndex, itemIndex int32, value float32) bool {
		if rng.Float64() < testRatio {
			test.addFeedback(userIndex, itemIndex, value)
		} else {
			train.addFeedback(userIndex, itemIndex, value)
		}
		return true
	})
	return train, test, nil
}

// LoadDataFromCSV loads feedback from a CSV stream. Each line should be:
//
//	<user id> <sep> <item id> [<sep> <value>] [<sep> <extras>]
//
// The value defaults to 1. Lines with less than two fields are ignored.
func LoadDataFromCSV(r io.Reader, sep string, hasHeader bool) (*Dataset, error) {
	dataset := NewDataset()
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		// Ignore header
		if hasHeader {
			hasHeader = false
			continue
		}
		fields := strings.Split(line, sep)
		// Ignore empty line
		if len(fields) < 2 {
			continue
		}
		value := float32(1)
		if len(fields) > 2 && strings.TrimSpace(fields[2]) != "" {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 32)
			if err != nil {
				return nil, errors.Annotatef(err, "line %d", lineNumber)
			}
			value = float32(parsed)
		}
		if err := dataset.AddFeedback(fields[0], fields[1], value); err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNumber)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return dataset, nil
}
