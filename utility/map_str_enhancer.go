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
	"time"

	"github.com/elastic/beats/v7/libbeat/common"
)

// Add adds a key/value pair to a map, dropping nil values and empty
// strings so attribute maps never carry empty entries.
func Add(m common.MapStr, key string, val interface{}) {
	if m == nil || key == "" {
		return
	}

	switch v := val.(type) {
	case nil:
		delete(m, key)
	case string:
		if v == "" {
			delete(m, key)
			return
		}
		m[key] = v
	case *string:
		if v != nil {
			Add(m, key, *v)
		}
	case *int:
		if v != nil {
			m[key] = *v
		}
	case *bool:
		if v != nil {
			m[key] = *v
		}
	case common.MapStr:
		if len(v) > 0 {
			m[key] = v
		}
	case map[string]interface{}:
		if len(v) > 0 {
			m[key] = v
		}
	default:
		m[key] = val
	}
}

// MergeAdd inserts values under key, creating the nested map if needed.
// If the value under key exists but is not a map, MergeAdd does nothing.
func MergeAdd(m common.MapStr, key string, val common.MapStr) {
	if m == nil || key == "" || len(val) == 0 {
		return
	}

	if _, ok := m[key]; !ok {
		m[key] = common.MapStr{}
	}

	if nested, ok := m[key].(common.MapStr); ok {
		for k, v := range val {
			Add(nested, k, v)
		}
	}
}

// MillisAsMicros converts a duration to the {"us": n} shape used in
// emitted metric documents.
func MillisAsMicros(d time.Duration) common.MapStr {
	m := common.MapStr{}
	m["us"] = int(d / time.Microsecond)
	return m
}
