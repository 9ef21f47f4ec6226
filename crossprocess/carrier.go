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

package crossprocess

import (
	"github.com/pkg/errors"
)

type carrierShape int

const (
	shapeMap carrierShape = iota
	shapePairs
)

// HeaderCarrier normalizes the two outbound header container shapes
// callers hand us, a key→value map or an ordered list of [key, value]
// pairs, into one ordered representation. The caller's container is
// never mutated: Apply returns a fresh container of the original
// shape.
type HeaderCarrier struct {
	shape carrierShape
	keys  []string
	vals  map[string]string
}

// NewHeaderCarrier copies the given container into a carrier. Accepted
// shapes are map[string]string and [][2]string; nil is treated as an
// empty map.
func NewHeaderCarrier(container interface{}) (*HeaderCarrier, error) {
	c := &HeaderCarrier{vals: map[string]string{}}
	switch v := container.(type) {
	case nil:
		c.shape = shapeMap
	case map[string]string:
		c.shape = shapeMap
		for k, val := range v {
			c.Set(k, val)
		}
	case [][2]string:
		c.shape = shapePairs
		for _, pair := range v {
			c.Set(pair[0], pair[1])
		}
	default:
		return nil, errors.Errorf("unsupported header container %T", container)
	}
	return c, nil
}

// Get returns the value stored under key.
func (c *HeaderCarrier) Get(key string) (string, bool) {
	v, ok := c.vals[key]
	return v, ok
}

// Set merges a header entry, replacing an existing value for the same
// key but never discarding other entries. Insertion order of distinct
// keys is preserved.
func (c *HeaderCarrier) Set(key, value string) {
	if key == "" {
		return
	}
	if _, exists := c.vals[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.vals[key] = value
}

// Len returns the number of distinct header keys.
func (c *HeaderCarrier) Len() int {
	return len(c.keys)
}

// Apply marshals the carrier back into a new container of the shape
// the caller originally supplied.
func (c *HeaderCarrier) Apply() interface{} {
	if c.shape == shapePairs {
		out := make([][2]string, 0, len(c.keys))
		for _, k := range c.keys {
			out = append(out, [2]string{k, c.vals[k]})
		}
		return out
	}
	out := make(map[string]string, len(c.keys))
	for _, k := range c.keys {
		out[k] = c.vals[k]
	}
	return out
}
