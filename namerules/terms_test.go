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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	rules, err := Load([]RuleJSON{
		{Prefix: "a/b/", Terms: []string{"x", "y"}},
		{Prefix: "web/users", Terms: []string{"list"}},
	})
	require.NoError(t, err)

	for _, tc := range []struct {
		name    string
		path    string
		matched bool
		value   string
	}{
		{name: "AllowListedAndPlaceholders",
			path: "a/b/x/q/y/z", matched: true, value: "a/b/x/*/y/*"},
		{name: "AdjacentPlaceholdersCollapse",
			path: "a/b/q/r/s/x", matched: true, value: "a/b/*/x"},
		{name: "TrailingSeparatorDropped",
			path: "a/b/x/q/", matched: true, value: "a/b/x/*"},
		{name: "PrefixOnly",
			path: "a/b/", matched: true, value: "a/b/"},
		{name: "PrefixWithoutTrailingSlashInRule",
			path: "web/users/list/42", matched: true, value: "web/users/list/*"},
		{name: "NoMatchingPrefix",
			path: "c/d/x", matched: false, value: "c/d/x"},
		{name: "PartialComponentIsNotAPrefixMatch",
			path: "a/bcd/x", matched: false, value: "a/bcd/x"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res := rules.Normalize(tc.path)
			assert.Equal(t, tc.matched, res.Matched)
			assert.Equal(t, tc.value, res.Value)
		})
	}
}

func TestNormalizePure(t *testing.T) {
	rules, err := Load([]RuleJSON{{Prefix: "a/b/", Terms: []string{"x"}}})
	require.NoError(t, err)

	first := rules.Normalize("a/b/x/q/x")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, rules.Normalize("a/b/x/q/x"))
	}
	// Unrelated calls in between must not affect the result.
	rules.Normalize("a/b/other")
	assert.Equal(t, first, rules.Normalize("a/b/x/q/x"))
}

func TestLoadRejectsMalformed(t *testing.T) {
	for _, tc := range []struct {
		name string
		rule RuleJSON
	}{
		{name: "OneSegment", rule: RuleJSON{Prefix: "a", Terms: []string{}}},
		{name: "OneSegmentTrailingSlash", rule: RuleJSON{Prefix: "a/", Terms: []string{}}},
		{name: "ThreeSegments", rule: RuleJSON{Prefix: "a/b/c", Terms: []string{}}},
		{name: "EmptyFirstSegment", rule: RuleJSON{Prefix: "/b", Terms: []string{}}},
		{name: "EmptySecondSegment", rule: RuleJSON{Prefix: "a//", Terms: []string{}}},
		{name: "EmptyPrefix", rule: RuleJSON{Prefix: "", Terms: []string{}}},
		{name: "NilTerms", rule: RuleJSON{Prefix: "a/b"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rules, err := Load([]RuleJSON{tc.rule})
			assert.Error(t, err)
			assert.Equal(t, 0, rules.Len())

			res := rules.Normalize(tc.rule.Prefix + "/x")
			assert.False(t, res.Matched)
		})
	}
}

func TestLoadDropsOnlyMalformed(t *testing.T) {
	rules, err := Load([]RuleJSON{
		{Prefix: "bad", Terms: []string{}},
		{Prefix: "a/b", Terms: []string{"x"}},
	})
	assert.Error(t, err)
	assert.Equal(t, 1, rules.Len())
	assert.True(t, rules.Normalize("a/b/x").Matched)
}

func TestLoadLastPrefixWins(t *testing.T) {
	rules, err := Load([]RuleJSON{
		{Prefix: "a/b", Terms: []string{"old"}},
		{Prefix: "a/b", Terms: []string{"new"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, rules.Len())

	res := rules.Normalize("a/b/old/new")
	assert.Equal(t, "a/b/*/new", res.Value)
}

func TestRuleJSONLenientUnmarshal(t *testing.T) {
	var rules []RuleJSON
	require.NoError(t, json.Unmarshal([]byte(`[
		{"prefix": "a/b", "terms": "not-an-array"},
		{"prefix": "c/d", "terms": ["x"]},
		{"prefix": "e/f", "terms": null},
		{"prefix": "g/h"}
	]`), &rules))
	require.Len(t, rules, 4)

	// Mistyped, null, and absent terms all survive decoding as nil
	// and are dropped at load time, not before.
	assert.Nil(t, rules[0].Terms)
	assert.Equal(t, []string{"x"}, rules[1].Terms)
	assert.Nil(t, rules[2].Terms)
	assert.Nil(t, rules[3].Terms)

	loaded, err := Load(rules)
	assert.Error(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.True(t, loaded.Normalize("c/d/x").Matched)
}

func TestNormalizeNoRules(t *testing.T) {
	rules, err := Load(nil)
	require.NoError(t, err)
	res := rules.Normalize("a/b/c")
	assert.False(t, res.Matched)
	assert.Equal(t, "a/b/c", res.Value)
}
