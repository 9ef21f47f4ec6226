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
	"encoding/base64"

	"github.com/pkg/errors"
)

// Obfuscate applies the symmetric header transform: the payload is
// XORed against the repeating encoding key and base64-encoded. This is
// obfuscation for the wire protocol, not encryption.
func Obfuscate(payload []byte, key string) (string, error) {
	if key == "" {
		return "", errors.New("encoding key is empty")
	}
	out := make([]byte, len(payload))
	for i := range payload {
		out[i] = payload[i] ^ key[i%len(key)]
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

// Deobfuscate reverses Obfuscate.
func Deobfuscate(value, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("encoding key is empty")
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, errors.Wrap(err, "malformed obfuscated header")
	}
	for i := range raw {
		raw[i] ^= key[i%len(key)]
	}
	return raw, nil
}
