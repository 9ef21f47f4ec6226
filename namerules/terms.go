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

// Package namerules normalizes slash-delimited metric names against a
// replaceable, ordered set of segment term rules.
package namerules

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// Placeholder replaces path segments not allow-listed by a rule.
	Placeholder = "*"

	separator = "/"
)

// RuleJSON is the wire shape of a segment term rule as delivered by
// the configuration service.
type RuleJSON struct {
	Prefix string   `json:"prefix"`
	Terms  []string `json:"terms"`
}

// UnmarshalJSON decodes a rule leniently: terms that are not a string
// array are nilled out rather than failing the surrounding document,
// leaving the rule to be dropped by Load while its siblings survive.
func (r *RuleJSON) UnmarshalJSON(data []byte) error {
	var raw struct {
		Prefix string              `json:"prefix"`
		Terms  jsoniter.RawMessage `json:"terms"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Prefix = raw.Prefix
	r.Terms = nil
	if len(raw.Terms) > 0 {
		var terms []string
		if err := json.Unmarshal(raw.Terms, &terms); err == nil {
			r.Terms = terms
		}
	}
	return nil
}

type rule struct {
	prefix string
	terms  map[string]struct{}
}

// Rules is an immutable, ordered rule set. Build one with Load and
// publish it through a Registry; Normalize never mutates it.
type Rules struct {
	rules []rule
}

// Result is the outcome of normalizing a single path.
type Result struct {
	Matched bool
	Value   string
}

// Load validates the given rules and builds a rule set. Malformed
// rules are dropped, not fatal: the returned error aggregates one
// entry per dropped rule so the caller can log them, and is non-nil
// even when some rules loaded fine.
func Load(in []RuleJSON) (*Rules, error) {
	var result *multierror.Error
	// A later rule with the same prefix replaces an earlier one and is
	// evaluated at its own (later) position. Walking the input in
	// reverse keeps exactly the last occurrence of each prefix.
	reversed := make([]rule, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i := len(in) - 1; i >= 0; i-- {
		r, err := buildRule(in[i])
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "rule %d (prefix %q) dropped", i, in[i].Prefix))
			continue
		}
		if _, dup := seen[r.prefix]; dup {
			continue
		}
		seen[r.prefix] = struct{}{}
		reversed = append(reversed, r)
	}

	rules := make([]rule, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		rules = append(rules, reversed[i])
	}
	return &Rules{rules: rules}, result.ErrorOrNil()
}

func buildRule(in RuleJSON) (rule, error) {
	if in.Terms == nil {
		return rule{}, errors.New("terms must be an array")
	}
	segments := strings.Split(strings.TrimSuffix(in.Prefix, separator), separator)
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return rule{}, errors.New("prefix must contain exactly two non-empty segments")
	}
	terms := make(map[string]struct{}, len(in.Terms))
	for _, t := range in.Terms {
		terms[t] = struct{}{}
	}
	return rule{prefix: segments[0] + separator + segments[1] + separator, terms: terms}, nil
}

// Len reports the number of loaded rules.
func (r *Rules) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// Normalize rewrites path against the first rule whose prefix matches.
// Non-allow-listed segments collapse into a single placeholder; paths
// matching no rule are returned unchanged. Pure for a given rule set.
func (r *Rules) Normalize(path string) Result {
	if r == nil {
		return Result{Value: path}
	}
	for _, rl := range r.rules {
		if !strings.HasPrefix(path, rl.prefix) {
			continue
		}
		return Result{Matched: true, Value: rl.apply(path)}
	}
	return Result{Value: path}
}

func (rl rule) apply(path string) string {
	segments := strings.Split(path[len(rl.prefix):], separator)
	if n := len(segments); n > 0 && segments[n-1] == "" {
		segments = segments[:n-1]
	}

	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if _, keep := rl.terms[s]; keep {
			out = append(out, s)
			continue
		}
		if n := len(out); n > 0 && out[n-1] == Placeholder {
			continue
		}
		out = append(out, Placeholder)
	}
	return rl.prefix + strings.Join(out, separator)
}
