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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apmkit/apmtrace/agentcfg"
	"github.com/apmkit/apmtrace/namerules"
	"github.com/apmkit/apmtrace/tracer"
)

// Exercises the whole pipeline: remote configuration applied, an
// outbound call with CAT headers, a trusted response renaming the
// segment, and finalized metrics passing through normalization.
func TestTraceLifecycle(t *testing.T) {
	registry := namerules.NewRegistry(nil)
	store := agentcfg.NewStore(nil, registry, 5*time.Minute)
	require.NoError(t, store.ApplyDoc("etag-1", []byte(`{
		"cross_process": {
			"encoding_key": "`+testEncodingKey+`",
			"cross_process_id": "190#1234",
			"trusted_account_ids": [190]
		},
		"transaction_segment_terms": [
			{"prefix": "WebTransaction/Go", "terms": ["index"]}
		]
	}`)))

	cp := store.CrossProcess()
	opts := Options{
		AppName:                        "test-app",
		CrossProcessID:                 cp.CrossProcessID,
		EncodingKey:                    cp.EncodingKey,
		CrossApplicationTracingEnabled: true,
		TrustedAccountIDs:              cp.TrustedAccountIDs,
	}

	txn := tracer.NewTransaction("WebTransaction/Go/index/private/42")
	carrier, err := NewHeaderCarrier(map[string]string{})
	require.NoError(t, err)

	seg := StartExternalSegment(txn, nil, "External/downstream.internal", carrier, opts)
	require.NotNil(t, seg)
	headers, ok := carrier.Apply().(map[string]string)
	require.True(t, ok)
	require.Contains(t, headers, TransactionHeader)
	require.Contains(t, headers, IDHeader)

	response := encodeAppData(t, []interface{}{"190#7", "WebTransaction/Go/checkout", 0.0, 0.1, -1, "guid123"}, cp.EncodingKey)
	HandleInboundResponse(seg, "downstream.internal", response, opts)
	seg.End()
	txn.End()

	metrics := txn.Collect(func(name string) string {
		return registry.Normalize(name).Value
	})
	require.Len(t, metrics, 2)
	assert.Equal(t, "WebTransaction/Go/index/*", metrics[0].Name)
	assert.Equal(t, "ExternalTransaction/downstream.internal/190#7/WebTransaction/Go/checkout", metrics[1].Name)
	assert.Equal(t, "guid123", metrics[1].Attributes["transaction_guid"])
	assert.False(t, metrics[1].Unterminated)
}
