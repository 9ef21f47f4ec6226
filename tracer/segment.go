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

import (
	"time"

	"github.com/elastic/beats/v7/libbeat/common"

	"github.com/apmkit/apmtrace/utility"
)

// Segment is one timed node in a Transaction's tree. Segments are
// created by Transaction.StartSegment and never reparented. A nil or
// non-recording Segment accepts every call as a no-op, so
// instrumentation can use handles unconditionally.
type Segment struct {
	txn    *Transaction
	parent *Segment

	name     string
	start    time.Time
	end      time.Time
	ended    bool
	children []*Segment

	// Opaque marks a segment whose descendants must not be observed,
	// e.g. the internals of an HTTP library call that is itself
	// already measured.
	opaque    bool
	recording bool

	attributes     common.MapStr
	spanAttributes common.MapStr

	// Remote trace identity captured from a trusted cross-process
	// response.
	catID          string
	catTransaction string

	unterminated bool
}

func newSegment(txn *Transaction, parent *Segment, name string, opaque, recording bool) *Segment {
	return &Segment{
		txn:            txn,
		parent:         parent,
		name:           name,
		start:          time.Now(),
		opaque:         opaque,
		recording:      recording,
		attributes:     common.MapStr{},
		spanAttributes: common.MapStr{},
	}
}

// inertSegment is handed out when no transaction is active or when the
// parent is opaque: the operation proceeds unobserved.
func inertSegment(name string) *Segment {
	return newSegment(nil, nil, name, true, false)
}

// IsRecording reports whether the segment contributes to its
// transaction's tree. Callers should check this before doing expensive
// attribute extraction.
func (s *Segment) IsRecording() bool {
	return s != nil && s.recording
}

// Name returns the segment's current name.
func (s *Segment) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// SetName replaces the segment name. Names freeze once the owning
// transaction has ended.
func (s *Segment) SetName(name string) {
	if !s.mutable() {
		return
	}
	s.name = name
}

// AppendName extends the segment name, e.g. with a resolved request
// path.
func (s *Segment) AppendName(suffix string) {
	if !s.mutable() || suffix == "" {
		return
	}
	s.name += suffix
}

// End records the end timestamp. Ending an already-ended segment is a
// no-op; children are unaffected and may end later.
func (s *Segment) End() {
	if s == nil || s.ended {
		return
	}
	s.ended = true
	s.end = time.Now()
}

// Ended reports whether End has been called.
func (s *Segment) Ended() bool {
	return s != nil && s.ended
}

// Start returns the segment start time.
func (s *Segment) Start() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.start
}

// Duration returns end minus start, or zero while the segment is
// still running.
func (s *Segment) Duration() time.Duration {
	if s == nil || !s.ended {
		return 0
	}
	return s.end.Sub(s.start)
}

// Children returns the observable child segments in creation order.
func (s *Segment) Children() []*Segment {
	if s == nil {
		return nil
	}
	return s.children
}

// Opaque reports whether descendants of this segment are deliberately
// unobserved.
func (s *Segment) Opaque() bool {
	return s != nil && s.opaque
}

// ParentOpaque reports whether the segment sits directly under an
// opaque parent. Outbound instrumentation uses this to skip header
// injection entirely.
func (s *Segment) ParentOpaque() bool {
	return s != nil && s.parent != nil && s.parent.opaque
}

// AddAttribute attaches metadata to the segment. Silent no-op on
// opaque or non-recording segments and after the transaction ends;
// late writes on an ended-but-uncollected segment are allowed.
func (s *Segment) AddAttribute(key string, value interface{}) {
	if !s.attributable() {
		return
	}
	utility.Add(s.attributes, key, value)
}

// AddSpanAttribute attaches span-only metadata, e.g. http.statusCode.
func (s *Segment) AddSpanAttribute(key string, value interface{}) {
	if !s.attributable() {
		return
	}
	utility.Add(s.spanAttributes, key, value)
}

// Attributes returns the segment's attribute map.
func (s *Segment) Attributes() common.MapStr {
	if s == nil {
		return nil
	}
	return s.attributes
}

// SpanAttributes returns the segment's span-only attribute map.
func (s *Segment) SpanAttributes() common.MapStr {
	if s == nil {
		return nil
	}
	return s.spanAttributes
}

// SetRemoteTrace captures the identity pair from a trusted
// cross-process response.
func (s *Segment) SetRemoteTrace(catID, catTransaction string) {
	if !s.mutable() {
		return
	}
	s.catID = catID
	s.catTransaction = catTransaction
}

// RemoteTrace returns the captured cross-process identity pair.
func (s *Segment) RemoteTrace() (catID, catTransaction string) {
	if s == nil {
		return "", ""
	}
	return s.catID, s.catTransaction
}

// Transaction returns the owning transaction, nil for inert segments.
func (s *Segment) Transaction() *Transaction {
	if s == nil {
		return nil
	}
	return s.txn
}

// Unterminated reports whether the owning transaction ended before
// this segment did. Only meaningful after finalization.
func (s *Segment) Unterminated() bool {
	return s != nil && s.unterminated
}

func (s *Segment) mutable() bool {
	return s.IsRecording() && !s.txn.Ended()
}

func (s *Segment) attributable() bool {
	return s.IsRecording() && !s.opaque && !s.txn.Ended()
}
