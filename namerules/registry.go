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

package namerules

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/atomic"

	"github.com/elastic/beats/v7/libbeat/logp"

	logs "github.com/apmkit/apmtrace/log"
)

const (
	cacheExpiration time.Duration = 5 * time.Minute
	cleanupInterval time.Duration = 60 * time.Second
)

// generation pairs an immutable rule set with its own result cache.
// Swapping generations implicitly drops cached results from the old
// rule set, so readers never see a stale normalization.
type generation struct {
	rules *Rules
	cache *gocache.Cache
}

// Registry is the process-wide holder of the active rule set. Reads
// are lock-free; Replace builds the new generation fully off to the
// side and swaps it in atomically.
type Registry struct {
	logger *logp.Logger
	gen    *atomic.Pointer[generation]
}

// NewRegistry returns a Registry with no rules loaded; Normalize
// passes every path through unchanged until Replace is called.
func NewRegistry(logger *logp.Logger) *Registry {
	if logger == nil {
		logger = logp.NewLogger(logs.NameRules)
	}
	empty := &generation{rules: &Rules{}, cache: gocache.New(cacheExpiration, cleanupInterval)}
	return &Registry{logger: logger, gen: atomic.NewPointer(empty)}
}

// Replace validates the given rules and atomically installs them as
// the active generation. Dropped rules are logged, never fatal.
func (r *Registry) Replace(in []RuleJSON) {
	rules, err := Load(in)
	if err != nil {
		r.logger.Warnf("segment term rules partially loaded: %v", err)
	}
	r.gen.Store(&generation{
		rules: rules,
		cache: gocache.New(cacheExpiration, cleanupInterval),
	})
	r.logger.Infof("segment term rules replaced, %d rules active", rules.Len())
}

// Normalize applies the active rule set to path. Results are cached
// per generation; a cache hit and a fresh computation are
// indistinguishable to the caller.
func (r *Registry) Normalize(path string) Result {
	gen := r.gen.Load()
	if val, found := gen.cache.Get(path); found {
		if res, ok := val.(Result); ok {
			return res
		}
	}
	res := gen.rules.Normalize(path)
	gen.cache.Set(path, res, cacheExpiration)
	return res
}

// Len reports the number of rules in the active generation.
func (r *Registry) Len() int {
	return r.gen.Load().rules.Len()
}
