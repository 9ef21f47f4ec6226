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
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"
)

// PathHash computes the position identifier this transaction
// contributes to the cross-process call chain: the referring hash is
// rotated left by one bit and XORed with the leading four bytes of
// md5("<appName>;<transactionName>"), rendered as eight lowercase hex
// digits. An absent or malformed referring hash contributes zero.
//
// The algorithm is fixed by the header protocol; changing it breaks
// agreement with upstream and downstream agents.
func PathHash(appName, transactionName, referringPathHash string) string {
	var referring uint32
	if referringPathHash != "" {
		if v, err := strconv.ParseUint(referringPathHash, 16, 32); err == nil {
			referring = uint32(v)
		}
	}
	sum := md5.Sum([]byte(appName + ";" + transactionName))
	h := bits.RotateLeft32(referring, 1) ^ binary.BigEndian.Uint32(sum[:4])
	return fmt.Sprintf("%08x", h)
}
