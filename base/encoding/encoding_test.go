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

package encoding

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteMatrix(t *testing.T) {
	a := [][]float32{{1, 2}, {3, 4}}
	buf := bytes.NewBuffer(nil)
	err := WriteMatrix(buf, a)
	assert.NoError(t, err)
	b := [][]float32{{0, 0}, {0, 0}}
	err = ReadMatrix(buf, b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	// truncated stream
	err = ReadMatrix(bytes.NewReader([]byte{1, 2}), b)
	assert.Error(t, err)
}

func TestWriteString(t *testing.T) {
	for _, a := range []string{"abc", ""} {
		buf := bytes.NewBuffer(nil)
		err := WriteString(buf, a)
		assert.NoError(t, err)
		var b string
		b, err = ReadString(buf)
		assert.NoError(t, err)
		assert.Equal(t, a, b)
	}
	// truncated payload
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteString(buf, "abcdef"))
	_, err := ReadString(bytes.NewReader(buf.Bytes()[:6]))
	assert.Error(t, err)
}

func TestWriteGob(t *testing.T) {
	type payload struct {
		Name   string
		Values []float32
	}
	a := payload{Name: "bpr", Values: []float32{1, 2, 3}}
	buf := bytes.NewBuffer(nil)
	err := WriteGob(buf, a)
	assert.NoError(t, err)
	var b payload
	err = ReadGob(buf, &b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}
