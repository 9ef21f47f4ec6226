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

// Package config holds the tracer's static configuration, nested under
// the key `tracer`.
package config

import (
	"time"

	"github.com/pkg/errors"

	"github.com/elastic/beats/v7/libbeat/common"
	"github.com/elastic/beats/v7/libbeat/logp"

	logs "github.com/apmkit/apmtrace/log"
)

const (
	// DefaultConfigCacheExpiration bounds how long a parsed remote
	// configuration document is reused by etag.
	DefaultConfigCacheExpiration = 5 * time.Minute

	msgMissingAppName = "`tracer.app_name` must be set"
)

// CrossApplicationTracerConfig toggles the legacy CAT header protocol.
type CrossApplicationTracerConfig struct {
	Enabled bool `config:"enabled"`
}

// DistributedTracerConfig toggles the modern header protocol. When
// both protocols are enabled, distributed tracing takes precedence on
// every outbound call.
type DistributedTracerConfig struct {
	Enabled bool `config:"enabled"`
}

// AgentConfig holds remote configuration intake settings.
type AgentConfig struct {
	CacheExpiration time.Duration `config:"cache.expiration"`
}

// Config holds the static tracer configuration.
type Config struct {
	AppName                string                       `config:"app_name"`
	CrossApplicationTracer CrossApplicationTracerConfig `config:"cross_application_tracer"`
	DistributedTracer      DistributedTracerConfig      `config:"distributed_tracer"`
	AgentConfig            AgentConfig                  `config:"agent.config"`
}

// NewConfig unpacks and validates the given configuration.
func NewConfig(ucfg *common.Config) (*Config, error) {
	logger := logp.NewLogger(logs.Config)
	c := DefaultConfig()
	if err := ucfg.Unpack(c); err != nil {
		return nil, errors.Wrap(err, "error processing configuration")
	}
	if c.AppName == "" {
		return nil, errors.New(msgMissingAppName)
	}
	if c.AgentConfig.CacheExpiration <= 0 {
		return nil, errors.New("`tracer.agent.config.cache.expiration` must be positive")
	}
	if c.DistributedTracer.Enabled && c.CrossApplicationTracer.Enabled {
		logger.Warn("both header protocols enabled, distributed tracing takes precedence")
	}
	return c, nil
}

// DefaultConfig returns the configuration used when no user settings
// are supplied: CAT on, distributed tracing off.
func DefaultConfig() *Config {
	return &Config{
		CrossApplicationTracer: CrossApplicationTracerConfig{Enabled: true},
		DistributedTracer:      DistributedTracerConfig{Enabled: false},
		AgentConfig:            AgentConfig{CacheExpiration: DefaultConfigCacheExpiration},
	}
}
