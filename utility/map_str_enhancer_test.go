// Licensed to Elasticsearch B.V. under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. Elasticsearch B.V. licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package utility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/elastic/beats/v7/libbeat/common"
)

func TestAdd(t *testing.T) {
	m := common.MapStr{"existing": 1}

	Add(m, "str", "value")
	Add(m, "int", 42)
	Add(m, "empty", "")
	Add(m, "nil", nil)
	Add(m, "", "no key")
	Add(nil, "k", "v")

	assert.Equal(t, common.MapStr{"existing": 1, "str": "value", "int": 42}, m)
}

func TestAddRemovesOnEmpty(t *testing.T) {
	m := common.MapStr{"k": "v"}
	Add(m, "k", "")
	assert.NotContains(t, m, "k")

	m = common.MapStr{"k": "v"}
	Add(m, "k", nil)
	assert.NotContains(t, m, "k")
}

func TestAddPointers(t *testing.T) {
	m := common.MapStr{}
	s := "v"
	i := 7
	var nilStr *string

	Add(m, "s", &s)
	Add(m, "i", &i)
	Add(m, "nil", nilStr)
	assert.Equal(t, common.MapStr{"s": "v", "i": 7}, m)
}

func TestMergeAdd(t *testing.T) {
	m := common.MapStr{}
	MergeAdd(m, "nested", common.MapStr{"a": 1})
	MergeAdd(m, "nested", common.MapStr{"b": 2})
	assert.Equal(t, common.MapStr{"nested": common.MapStr{"a": 1, "b": 2}}, m)

	// Existing non-map values are left alone.
	m = common.MapStr{"k": "scalar"}
	MergeAdd(m, "k", common.MapStr{"a": 1})
	assert.Equal(t, common.MapStr{"k": "scalar"}, m)
}

func TestMillisAsMicros(t *testing.T) {
	assert.Equal(t, common.MapStr{"us": 1500}, MillisAsMicros(1500*time.Microsecond))
	assert.Equal(t, common.MapStr{"us": 0}, MillisAsMicros(0))
}
