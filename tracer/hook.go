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

package tracer

// NameResolver supplies a segment's final name once the instrumented
// operation has produced it, e.g. after a request path resolves.
type NameResolver func(*Segment) string

// OperationStart describes an instrumented operation announced by an
// external hook: a human-readable name, an optional parent, whether
// the operation's internals must stay unobserved, and an optional
// name resolution callback applied when the operation completes.
type OperationStart struct {
	Name    string
	Parent  *Segment
	Opaque  bool
	Resolve NameResolver
}

// StartOperation is the entry point for instrumentation hooks. It
// creates a segment for the operation and returns it together with a
// bound completion continuation: invoking the continuation, from
// whatever context the operation finishes in, re-establishes the
// segment as ambient, applies the name resolver, and ends the
// segment. The continuation tolerates being invoked more than once
// and tolerates never being invoked; in the latter case the segment
// is reported as unterminated at transaction end.
//
// Instrumentation must never alter the observed operation's outcome:
// with no active transaction both returned handles are inert.
func (t *Transaction) StartOperation(op OperationStart) (*Segment, func()) {
	var seg *Segment
	if op.Opaque {
		seg = t.StartOpaqueSegment(op.Parent, op.Name)
	} else {
		seg = t.StartSegment(op.Parent, op.Name)
	}
	done := t.Bind(seg, func() {
		if op.Resolve != nil && !seg.Ended() {
			seg.SetName(op.Resolve(seg))
		}
		seg.End()
	})
	return seg, done
}
