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

package agentcfg

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/atomic"

	"github.com/elastic/beats/v7/libbeat/logp"

	logs "github.com/apmkit/apmtrace/log"
	"github.com/apmkit/apmtrace/namerules"
)

const (
	cleanupInterval time.Duration = 60 * time.Second
)

// Store holds the active remote configuration. Reads are lock-free;
// each refresh is validated fully and swapped in atomically, so a
// concurrent reader sees either the old or the new generation, never a
// mix. Parsed documents are cached by etag to skip re-validation when
// the service returns unchanged content.
type Store struct {
	logger *logp.Logger
	rules  *namerules.Registry

	active  *atomic.Pointer[CrossProcess]
	exp     time.Duration
	gocache *gocache.Cache
}

// NewStore creates a Store applying rule updates to the given
// registry. Until the first Apply, CAT parsing is disabled and
// normalization passes names through unchanged.
func NewStore(logger *logp.Logger, rules *namerules.Registry, exp time.Duration) *Store {
	if logger == nil {
		logger = logp.NewLogger(logs.AgentCfg)
	}
	logger.Infof("Configuration store created with doc cache expiration %v.", exp)
	return &Store{
		logger:  logger,
		rules:   rules,
		active:  atomic.NewPointer(&CrossProcess{}),
		exp:     exp,
		gocache: gocache.New(exp, cleanupInterval),
	}
}

// ApplyDoc parses the fetched payload, caching the parsed document
// under etag, and applies it. Malformed payloads leave the previous
// generation active.
func (s *Store) ApplyDoc(etag string, raw []byte) error {
	doc, err := s.fetchAndAdd(etag, raw)
	if err != nil {
		return err
	}
	s.Apply(doc)
	return nil
}

// Apply installs the document's cross-process material and replaces
// the active segment term rules.
func (s *Store) Apply(doc *Doc) {
	if doc == nil {
		return
	}
	cp := doc.CrossProcess
	s.active.Store(&cp)
	if !doc.CATUsable() {
		s.logger.Info("cross-process material incomplete, inbound CAT parsing disabled")
	}
	s.rules.Replace(doc.SegmentTerms)
}

// CrossProcess returns the active cross-process material.
func (s *Store) CrossProcess() CrossProcess {
	return *s.active.Load()
}

// Trusted reports whether the account id is in the active trust list.
func (s *Store) Trusted(accountID int) bool {
	for _, id := range s.active.Load().TrustedAccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}

func (s *Store) fetchAndAdd(etag string, raw []byte) (*Doc, error) {
	if etag != "" {
		if val, found := s.gocache.Get(etag); found && val != nil {
			return val.(*Doc), nil
		}
	}
	doc, err := NewDoc(raw)
	if err != nil {
		return nil, err
	}
	if etag != "" {
		s.gocache.Set(etag, doc, s.exp)
		s.logger.Debugf("Doc cache size %v. Added etag %v.", s.gocache.ItemCount(), etag)
	}
	return doc, nil
}
