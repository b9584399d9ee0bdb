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
	"bufio"
	"os"

	"github.com/gorse-io/bpr/base/encoding"
	"github.com/gorse-io/bpr/dataset"
	"github.com/gorse-io/bpr/model/cf"
	"github.com/juju/errors"
)

// saveModel writes the user IDs, the item IDs and the model to a file.
func saveModel(path string, m cf.MatrixFactorization, userDict, itemDict *dataset.FreqDict) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if err = encoding.WriteGob(w, userDict.ToSlice()); err != nil {
		return errors.Trace(err)
	}
	if err = encoding.WriteGob(w, itemDict.ToSlice()); err != nil {
		return errors.Trace(err)
	}
	if err = cf.MarshalModel(w, m); err != nil {
		return errors.Trace(err)
	}
	if err = w.Flush(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(file.Close())
}

func loadModel(path string) (cf.MatrixFactorization, *dataset.FreqDict, *dataset.FreqDict, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	defer file.Close()
	r := bufio.NewReader(file)
	var userIds, itemIds []string
	if err = encoding.ReadGob(r, &userIds); err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	if err = encoding.ReadGob(r, &itemIds); err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	m, err := cf.UnmarshalModel(r)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	return m, dataset.NewFreqDictFromSlice(userIds), dataset.NewFreqDictFromSlice(itemIds), nil
}
