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

// Package tracer holds the in-process segment tree: transactions, the
// timed segments nested under them, and the ambient-context scope that
// tracks the segment in scope across asynchronous continuations.
//
// One goroutine at a time mutates a given transaction's tree
// (cooperative model); many transactions may be in flight across the
// process, each with its own scope, so there is no process-wide
// "current segment".
package tracer

import (
	"time"

	"github.com/elastic/beats/v7/libbeat/common"
	"github.com/elastic/beats/v7/libbeat/logp"
	"github.com/gofrs/uuid"

	logs "github.com/apmkit/apmtrace/log"
	"github.com/apmkit/apmtrace/utility"
)

// HeaderMode records which cross-process header protocol a transaction
// has used. The two protocols are mutually exclusive per transaction:
// the first outbound call latches the mode.
type HeaderMode int

const (
	HeaderModeNone HeaderMode = iota
	HeaderModeDistributed
	HeaderModeCrossApp
)

// Transaction is one logical unit of observed work and its segment
// tree. It is created when inbound work begins and finalized exactly
// once; after End the tree is immutable.
type Transaction struct {
	id     string
	name   string
	tripID string

	// referringPathHash identifies the upstream caller's position in
	// the cross-process call chain; pathHashes records, in order, the
	// hashes this transaction contributed on outbound calls.
	referringPathHash string
	pathHashes        []string

	root       *Segment
	scope      *Scope
	headerMode HeaderMode

	ended bool
	end   time.Time

	logger *logp.Logger
}

// NewTransaction starts a transaction with a root segment of the same
// name and makes that root the current ambient segment.
func NewTransaction(name string) *Transaction {
	txn := &Transaction{
		name:   name,
		logger: logp.NewLogger(logs.Tracer),
	}
	if id, err := uuid.NewV4(); err == nil {
		txn.id = id.String()
	}
	txn.tripID = txn.id
	txn.root = newSegment(txn, nil, name, false, true)
	txn.scope = newScope(txn.root)
	return txn
}

// ID returns the transaction's unique identifier.
func (t *Transaction) ID() string {
	if t == nil {
		return ""
	}
	return t.id
}

// Name returns the display name, mutable until End.
func (t *Transaction) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// SetName replaces the display name; frozen after End. The root
// segment tracks the transaction name.
func (t *Transaction) SetName(name string) {
	if t == nil || t.ended {
		return
	}
	t.name = name
	t.root.name = name
}

// TripID returns the root identifier of the cross-process call chain,
// defaulting to the transaction's own id.
func (t *Transaction) TripID() string {
	if t == nil {
		return ""
	}
	return t.tripID
}

// SetTripID adopts the chain identifier of an upstream caller.
func (t *Transaction) SetTripID(tripID string) {
	if t == nil || t.ended || tripID == "" {
		return
	}
	t.tripID = tripID
}

// ReferringPathHash returns the upstream caller's path hash, empty for
// chain roots.
func (t *Transaction) ReferringPathHash() string {
	if t == nil {
		return ""
	}
	return t.referringPathHash
}

// SetReferringPathHash records the upstream caller's path hash.
func (t *Transaction) SetReferringPathHash(h string) {
	if t == nil || t.ended {
		return
	}
	t.referringPathHash = h
}

// PushPathHash appends an outbound path hash to the transaction's
// contribution history.
func (t *Transaction) PushPathHash(h string) {
	if t == nil || t.ended || h == "" {
		return
	}
	t.pathHashes = append(t.pathHashes, h)
}

// PathHashes returns the ordered hashes this transaction contributed.
func (t *Transaction) PathHashes() []string {
	if t == nil {
		return nil
	}
	return t.pathHashes
}

// LatchHeaderMode fixes the cross-process protocol for this
// transaction. It reports false when a different mode is already
// latched, in which case the caller must not attach headers of the
// requested kind.
func (t *Transaction) LatchHeaderMode(mode HeaderMode) bool {
	if t == nil || t.ended || mode == HeaderModeNone {
		return false
	}
	if t.headerMode == HeaderModeNone {
		t.headerMode = mode
		return true
	}
	return t.headerMode == mode
}

// HeaderMode returns the latched cross-process protocol.
func (t *Transaction) HeaderMode() HeaderMode {
	if t == nil {
		return HeaderModeNone
	}
	return t.headerMode
}

// Root returns the root segment.
func (t *Transaction) Root() *Segment {
	if t == nil {
		return nil
	}
	return t.root
}

// Scope returns the transaction's ambient-context scope.
func (t *Transaction) Scope() *Scope {
	if t == nil {
		return nil
	}
	return t.scope
}

// Ended reports whether the transaction has been finalized.
func (t *Transaction) Ended() bool {
	return t != nil && t.ended
}

// StartSegment creates a segment under parent, or under the current
// ambient segment when parent is nil. With no active transaction the
// returned segment is inert and every operation on it is a no-op. A
// segment started under an opaque parent is created but will not
// record children or attributes.
func (t *Transaction) StartSegment(parent *Segment, name string) *Segment {
	return t.startSegment(parent, name, false)
}

// StartOpaqueSegment creates a segment whose descendants are
// deliberately unobserved, e.g. a library call that is itself already
// measured.
func (t *Transaction) StartOpaqueSegment(parent *Segment, name string) *Segment {
	return t.startSegment(parent, name, true)
}

func (t *Transaction) startSegment(parent *Segment, name string, opaque bool) *Segment {
	if t == nil || t.ended {
		return inertSegment(name)
	}
	if parent == nil {
		parent = t.scope.Current()
	}
	if parent == nil {
		parent = t.root
	}
	if parent.opaque || !parent.recording {
		return newSegment(t, parent, name, true, false)
	}
	seg := newSegment(t, parent, name, opaque, true)
	parent.children = append(parent.children, seg)
	return seg
}

// End finalizes the transaction exactly once. Segments still running
// are stamped with the transaction end time and flagged unterminated
// so partial traces remain visible; afterwards the tree is immutable.
func (t *Transaction) End() {
	if t == nil || t.ended {
		return
	}
	t.end = time.Now()

	// The root's extent is the transaction itself, so ending it here
	// is normal; any other still-running segment is an anomaly.
	if !t.root.ended {
		t.root.ended = true
		t.root.end = t.end
	}
	unterminated := 0
	t.walk(t.root, func(seg *Segment) {
		if seg.ended {
			return
		}
		seg.ended = true
		seg.end = t.end
		seg.unterminated = true
		unterminated++
	})
	if unterminated > 0 {
		t.logger.Warnf("transaction %s (%s) ended with %d unterminated segments", t.id, t.name, unterminated)
	}
	t.ended = true
}

// EndTime returns the finalization time, zero until End is called.
func (t *Transaction) EndTime() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.end
}

func (t *Transaction) walk(seg *Segment, fn func(*Segment)) {
	fn(seg)
	for _, child := range seg.children {
		t.walk(child, fn)
	}
}

// SegmentMetric is one finalized segment as exposed to the downstream
// metric sink.
type SegmentMetric struct {
	Name           string
	Start          time.Time
	Duration       time.Duration
	Attributes     common.MapStr
	SpanAttributes common.MapStr
	Unterminated   bool
}

// Fields renders the metric in document form.
func (m SegmentMetric) Fields() common.MapStr {
	out := common.MapStr{}
	utility.Add(out, "name", m.Name)
	utility.Add(out, "duration", utility.MillisAsMicros(m.Duration))
	if m.Unterminated {
		utility.Add(out, "unterminated", true)
	}
	utility.MergeAdd(out, "attributes", m.Attributes)
	utility.MergeAdd(out, "span_attributes", m.SpanAttributes)
	return out
}

// Collect flattens the finalized tree into metrics in creation order.
// When normalize is non-nil every segment name passes through it
// before emission. Collect returns nil until the transaction ends.
func (t *Transaction) Collect(normalize func(string) string) []SegmentMetric {
	if t == nil || !t.ended {
		return nil
	}
	var out []SegmentMetric
	t.walk(t.root, func(seg *Segment) {
		name := seg.name
		if normalize != nil {
			name = normalize(name)
		}
		out = append(out, SegmentMetric{
			Name:           name,
			Start:          seg.start,
			Duration:       seg.end.Sub(seg.start),
			Attributes:     seg.attributes,
			SpanAttributes: seg.spanAttributes,
			Unterminated:   seg.unterminated,
		})
	})
	return out
}
