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

// Package crossprocess implements the trace-header protocol used on
// outbound calls: modern distributed-tracing headers or the legacy
// cross-application-tracing (CAT) headers, mutually exclusive per
// transaction, plus decoding and trust verification of inbound CAT
// response headers.
package crossprocess

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/elastic/beats/v7/libbeat/logp"

	logs "github.com/apmkit/apmtrace/log"
	"github.com/apmkit/apmtrace/tracer"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Outbound request headers and the inbound response header.
const (
	TransactionHeader = "X-NewRelic-Transaction"
	IDHeader          = "X-NewRelic-ID"
	AppDataHeader     = "X-NewRelic-App-Data"
	SyntheticsHeader  = "X-NewRelic-Synthetics"
)

const accountDelimiter = "#"

// DistributedHeaderInserter is the transaction's own distributed-trace
// header routine; its payload format is owned elsewhere.
type DistributedHeaderInserter interface {
	InsertDistributedTraceHeaders(set func(key, value string))
}

// Options carries the per-call protocol inputs. EncodingKey,
// CrossProcessID and TrustedAccountIDs arrive from remote
// configuration; missing values disable the corresponding feature.
type Options struct {
	AppName        string
	CrossProcessID string
	EncodingKey    string

	DistributedTracingEnabled      bool
	CrossApplicationTracingEnabled bool

	// DistributedInserter is the transaction's own distributed-trace
	// header routine, supplied by the instrumentation adapter when
	// distributed tracing is enabled.
	DistributedInserter DistributedHeaderInserter

	// TrustedAccountIDs lists the account ids whose inbound response
	// data is accepted.
	TrustedAccountIDs []int

	// SyntheticsPayload, when non-empty, is forwarded verbatim on
	// outbound calls.
	SyntheticsPayload string
}

// StartExternalSegment begins a segment for an outbound call under
// parent and attaches trace headers to the carrier. It returns nil
// when the call must go fully unobserved: no active transaction, or an
// opaque parent, in which case no headers are attached and no tree
// entry is created.
func StartExternalSegment(txn *tracer.Transaction, parent *tracer.Segment, name string, carrier *HeaderCarrier, opts Options) *tracer.Segment {
	if txn == nil || txn.Ended() {
		return nil
	}
	if parent == nil {
		parent = txn.Scope().Current()
	}
	if parent.Opaque() || !parent.IsRecording() {
		return nil
	}
	seg := txn.StartSegment(parent, name)
	attachHeaders(txn, carrier, opts)
	return seg
}

// attachHeaders applies the protocol precedence: distributed tracing
// wins when both protocols are enabled, and whichever protocol runs
// first latches the transaction to that mode.
func attachHeaders(txn *tracer.Transaction, carrier *HeaderCarrier, opts Options) {
	logger := logp.NewLogger(logs.CrossProcess)
	if carrier == nil {
		return
	}
	if opts.DistributedTracingEnabled {
		// Without an inserter no headers can be produced; leave the
		// transaction unlatched so a later call that does carry one
		// can still use distributed tracing.
		if opts.DistributedInserter == nil {
			logger.Debugf("no distributed trace header inserter supplied for transaction %s", txn.ID())
			return
		}
		if !txn.LatchHeaderMode(tracer.HeaderModeDistributed) {
			logger.Debugf("transaction %s already latched to CAT, skipping distributed trace headers", txn.ID())
			return
		}
		opts.DistributedInserter.InsertDistributedTraceHeaders(carrier.Set)
		return
	}
	if !opts.CrossApplicationTracingEnabled {
		return
	}
	if err := attachCATHeaders(txn, carrier, opts); err != nil {
		logger.Debugf("skipping CAT headers for transaction %s: %v", txn.ID(), err)
	}
}

func attachCATHeaders(txn *tracer.Transaction, carrier *HeaderCarrier, opts Options) error {
	if opts.EncodingKey == "" {
		return errors.New("no encoding key configured")
	}
	if !txn.LatchHeaderMode(tracer.HeaderModeCrossApp) {
		return errors.New("transaction already latched to distributed tracing")
	}

	pathHash := PathHash(opts.AppName, txn.Name(), txn.ReferringPathHash())
	txn.PushPathHash(pathHash)

	tripID := txn.TripID()
	if tripID == "" {
		tripID = txn.ID()
	}
	payload, err := json.Marshal([]interface{}{txn.ID(), false, tripID, pathHash})
	if err != nil {
		return errors.Wrap(err, "marshaling transaction header")
	}
	obfuscated, err := Obfuscate(payload, opts.EncodingKey)
	if err != nil {
		return err
	}
	carrier.Set(TransactionHeader, obfuscated)

	if opts.CrossProcessID != "" {
		id, err := Obfuscate([]byte(opts.CrossProcessID), opts.EncodingKey)
		if err != nil {
			return err
		}
		carrier.Set(IDHeader, id)
	}
	if opts.SyntheticsPayload != "" {
		carrier.Set(SyntheticsHeader, opts.SyntheticsPayload)
	}
	return nil
}

// HandleInboundResponse decodes the CAT response header, verifies the
// caller against the trust list and, on success, captures the remote
// identity on the segment and renames it to the canonical
// ExternalTransaction form. Untrusted or malformed data never mutates
// the segment; absence of the header is not an error.
func HandleInboundResponse(seg *tracer.Segment, host, headerValue string, opts Options) {
	logger := logp.NewLogger(logs.CrossProcess)
	if seg == nil || !seg.IsRecording() || headerValue == "" {
		return
	}
	if opts.EncodingKey == "" {
		logger.Debug("no encoding key configured, ignoring inbound app data header")
		return
	}

	elements, err := decodeAppData(headerValue, opts.EncodingKey)
	if err != nil {
		logger.Debugf("discarding inbound app data: %v", err)
		return
	}
	catID, catTransaction, guid, err := parseAppData(elements)
	if err != nil {
		logger.Debugf("discarding inbound app data: %v", err)
		return
	}
	if !trusted(catID, opts.TrustedAccountIDs) {
		logger.Debugf("discarding inbound app data from untrusted account in %q", catID)
		return
	}

	seg.SetRemoteTrace(catID, catTransaction)
	seg.SetName("ExternalTransaction/" + host + "/" + catID + "/" + catTransaction)
	if guid != "" {
		seg.AddAttribute("transaction_guid", guid)
	}
}

func decodeAppData(headerValue, key string) ([]interface{}, error) {
	raw, err := Deobfuscate(headerValue, key)
	if err != nil {
		return nil, err
	}
	var elements []interface{}
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, errors.Wrap(err, "unparsable app data payload")
	}
	return elements, nil
}

func parseAppData(elements []interface{}) (catID, catTransaction, guid string, err error) {
	if len(elements) < 2 {
		return "", "", "", errors.New("app data payload too short")
	}
	catID, ok := elements[0].(string)
	if !ok || catID == "" {
		return "", "", "", errors.New("app data payload has no cross-process id")
	}
	catTransaction, ok = elements[1].(string)
	if !ok {
		return "", "", "", errors.New("app data payload has no transaction name")
	}
	if len(elements) >= 6 {
		guid, _ = elements[5].(string)
	}
	return catID, catTransaction, guid, nil
}

// trusted parses the account fragment before the "#" delimiter. Any
// parse ambiguity fails closed: the data is treated as untrusted.
func trusted(catID string, trustedAccounts []int) bool {
	idx := strings.Index(catID, accountDelimiter)
	if idx <= 0 {
		return false
	}
	account, err := strconv.Atoi(catID[:idx])
	if err != nil || account < 0 || strconv.Itoa(account) != catID[:idx] {
		return false
	}
	for _, id := range trustedAccounts {
		if id == account {
			return true
		}
	}
	return false
}
