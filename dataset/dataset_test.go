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
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestDataset_AddFeedback(t *testing.T) {
	dataSet := NewDataset()
	assert.Equal(t, int32(0), dataSet.AddUser("u0"))
	assert.Equal(t, int32(0), dataSet.AddItem("i0"))
	assert.NoError(t, dataSet.AddFeedback("u0", "i0", 1))
	assert.NoError(t, dataSet.AddFeedback("u0", "i1", 2))
	assert.NoError(t, dataSet.AddFeedback("u1", "i1", 1))
	// duplicated feedback is merged
	assert.NoError(t, dataSet.AddFeedback("u0", "i0", 3))
	assert.Equal(t, 2, dataSet.CountUsers())
	assert.Equal(t, 2, dataSet.CountItems())
	assert.Equal(t, 3, dataSet.CountFeedback())
	assert.Equal(t, []int32{0, 1}, dataSet.GetUserFeedback(0))
	assert.Equal(t, []int32{1}, dataSet.GetUserFeedback(1))
	assert.Nil(t, dataSet.GetUserFeedback(5))
	assert.Equal(t, []int32{0, 1}, dataSet.GetItemFeedback(1))
	assert.Nil(t, dataSet.GetItemFeedback(-1))

	type triple struct {
		user, item int32
		value      float32
	}
	var triples []triple
	dataSet.Range(func(userIndex, itemIndex int32, value float32) bool {
		triples = append(triples, triple{userIndex, itemIndex, value})
		return true
	})
	assert.Equal(t, []triple{{0, 0, 4}, {0, 1, 2}, {1, 1, 1}}, triples)

	// stop early
	count := 0
	dataSet.Range(func(_, _ int32, _ float32) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)

	// invalid value
	err := dataSet.AddFeedback("u0", "i0", -1)
	assert.True(t, errors.IsNotValid(err))
}

func TestDataset_IsUnknown(t *testing.T) {
	dataSet := NewDataset()
	assert.NoError(t, dataSet.AddFeedback("u0", "i0", 1))
	dataSet.AddUser("u1")
	dataSet.AddItem("i1")
	assert.False(t, dataSet.IsUnknownUser(0))
	// registered without feedback
	assert.True(t, dataSet.IsUnknownUser(1))
	assert.True(t, dataSet.IsUnknownUser(2))
	assert.True(t, dataSet.IsUnknownUser(-1))
	assert.False(t, dataSet.IsUnknownItem(0))
	assert.True(t, dataSet.IsUnknownItem(1))
	assert.True(t, dataSet.IsUnknownItem(2))
	assert.True(t, dataSet.IsUnknownItem(-1))
	var _ CFSplit = dataSet
}

func TestDataset_Split(t *testing.T) {
	dataSet := NewDataset()
	for u := 0; u < 10; u++ {
		for i := 0; i < 10; i++ {
			assert.NoError(t, dataSet.AddFeedback(string(rune('a'+u)), string(rune('A'+i)), 1))
		}
	}
	train, test, err := dataSet.Split(0.2, 0)
	assert.NoError(t, err)
	assert.Equal(t, 100, train.CountFeedback()+test.CountFeedback())
	assert.Greater(t, test.CountFeedback(), 0)
	assert.Greater(t, train.CountFeedback(), test.CountFeedback())
	assert.Equal(t, dataSet.CountUsers(), train.CountUsers())
	assert.Equal(t, dataSet.CountUsers(), test.CountUsers())
	assert.Equal(t, dataSet.CountItems(), test.CountItems())
	// disjoint
	test.Range(func(userIndex, itemIndex int32, _ float32) bool {
		assert.NotContains(t, train.GetUserFeedback(userIndex), itemIndex)
		return true
	})
	// deterministic
	train2, _, err := dataSet.Split(0.2, 0)
	assert.NoError(t, err)
	assert.Equal(t, train.CountFeedback(), train2.CountFeedback())
	// invalid ratio
	_, _, err = dataSet.Split(1, 0)
	assert.True(t, errors.IsNotValid(err))
}

func TestLoadDataFromCSV(t *testing.T) {
	text := "user,item,value\n" +
		"1,10,1\n" +
		"1,20,2.5\n" +
		"2,10\n" +
		"\n" +
		"3,30,\n"
	dataSet, err := LoadDataFromCSV(strings.NewReader(text), ",", true)
	assert.NoError(t, err)
	assert.Equal(t, 3, dataSet.CountUsers())
	assert.Equal(t, 3, dataSet.CountItems())
	assert.Equal(t, 4, dataSet.CountFeedback())
	userIndex, ok := dataSet.GetUserDict().Lookup("1")
	assert.True(t, ok)
	itemIndex, ok := dataSet.GetItemDict().Lookup("20")
	assert.True(t, ok)
	dataSet.Range(func(u, i int32, value float32) bool {
		if u == int32(userIndex) && i == int32(itemIndex) {
			assert.Equal(t, float32(2.5), value)
		}
		return true
	})

	// bad value
	_, err = LoadDataFromCSV(strings.NewReader("1\t10\tx\n"), "\t", false)
	assert.Error(t, err)
	// negative value
	_, err = LoadDataFromCSV(strings.NewReader("1\t10\t-1\n"), "\t", false)
	assert.True(t, errors.IsNotValid(err))
}
