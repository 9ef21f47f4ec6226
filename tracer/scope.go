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

// Scope tracks the segment in scope for one transaction across
// asynchronous continuations. Each transaction owns exactly one Scope;
// continuations bound through it re-establish their segment on every
// invocation and restore the prior ambient segment afterwards, so
// nesting is fully reentrant.
//
// The scope introduces no reordering: a bound continuation runs
// whenever its caller invokes it, with only the ambient segment
// swapped around the call.
type Scope struct {
	stack []*Segment
}

func newScope(root *Segment) *Scope {
	return &Scope{stack: []*Segment{root}}
}

// Current returns the segment in scope, nil when the scope is empty.
func (s *Scope) Current() *Segment {
	if s == nil || len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *Scope) push(seg *Segment) {
	s.stack = append(s.stack, seg)
}

func (s *Scope) pop() {
	if len(s.stack) == 0 {
		return
	}
	s.stack = s.stack[:len(s.stack)-1]
}

// WithSegment creates a segment under parent (or the current segment
// when parent is nil), runs fn with it both as argument and as the
// ambient segment, and restores the previous ambient segment when fn
// returns. Continuations scheduled during fn's synchronous extent and
// bound through Bind inherit the segment.
//
// A non-recording segment is scoped all the same: work created during
// fn then nests under it and stays unobserved, instead of escaping to
// the segment that was ambient before.
//
// The segment is handed to fn still running; fn or a bound
// continuation is responsible for ending it.
func (t *Transaction) WithSegment(name string, parent *Segment, fn func(*Segment) error) error {
	seg := t.StartSegment(parent, name)
	if t == nil || t.ended {
		return fn(seg)
	}
	t.scope.push(seg)
	defer t.scope.pop()
	return fn(seg)
}

// Bind returns a continuation that re-establishes seg as the ambient
// segment for each invocation. The wrapper may be invoked
// asynchronously, multiple times, or never; each invocation restores
// the prior ambient segment on return, even when called from a nested
// context with a different ambient segment. Non-recording segments
// are scoped too, so continuations belonging to an opaque region keep
// their work unobserved.
func (t *Transaction) Bind(seg *Segment, fn func()) func() {
	if t == nil || fn == nil {
		return fn
	}
	return func() {
		if seg == nil || t.ended {
			fn()
			return
		}
		t.scope.push(seg)
		defer t.scope.pop()
		fn()
	}
}

// BindErr is Bind for continuations that return an error.
func (t *Transaction) BindErr(seg *Segment, fn func() error) func() error {
	if t == nil || fn == nil {
		return fn
	}
	return func() error {
		if seg == nil || t.ended {
			return fn()
		}
		t.scope.push(seg)
		defer t.scope.pop()
		return fn()
	}
}
