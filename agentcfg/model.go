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

// Package agentcfg validates and applies the hot-reloadable
// configuration delivered by the remote configuration service: the
// cross-process encoding key and trust list, and the segment term
// rules.
package agentcfg

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/apmkit/apmtrace/namerules"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CrossProcess holds the cross-process tracing material. A zero
// EncodingKey or empty trust list disables inbound CAT parsing.
type CrossProcess struct {
	EncodingKey       string `json:"encoding_key"`
	CrossProcessID    string `json:"cross_process_id"`
	TrustedAccountIDs []int  `json:"trusted_account_ids"`
}

// Doc is one configuration document as fetched from the service.
type Doc struct {
	CrossProcess CrossProcess         `json:"cross_process"`
	SegmentTerms []namerules.RuleJSON `json:"transaction_segment_terms"`
}

// NewDoc unmarshals a fetched configuration payload. An empty payload
// yields an empty Doc, which disables the features it would configure.
func NewDoc(raw []byte) (*Doc, error) {
	var doc Doc
	if len(raw) == 0 {
		return &doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "unmarshaling configuration document")
	}
	return &doc, nil
}

// CATUsable reports whether enough material is present to parse
// inbound CAT response data.
func (d *Doc) CATUsable() bool {
	return d != nil && d.CrossProcess.EncodingKey != "" && len(d.CrossProcess.TrustedAccountIDs) > 0
}
