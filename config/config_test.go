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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/beats/v7/libbeat/common"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.True(t, c.CrossApplicationTracer.Enabled)
	assert.False(t, c.DistributedTracer.Enabled)
	assert.Equal(t, DefaultConfigCacheExpiration, c.AgentConfig.CacheExpiration)
}

func TestNewConfig(t *testing.T) {
	t.Run("FullConfig", func(t *testing.T) {
		ucfg, err := common.NewConfigFrom(map[string]interface{}{
			"app_name":                         "billing",
			"cross_application_tracer.enabled": false,
			"distributed_tracer.enabled":       true,
			"agent.config.cache.expiration":    "30s",
		})
		require.NoError(t, err)

		c, err := NewConfig(ucfg)
		require.NoError(t, err)
		assert.Equal(t, "billing", c.AppName)
		assert.False(t, c.CrossApplicationTracer.Enabled)
		assert.True(t, c.DistributedTracer.Enabled)
		assert.Equal(t, 30*time.Second, c.AgentConfig.CacheExpiration)
	})

	t.Run("MinimalConfigGetsDefaults", func(t *testing.T) {
		ucfg, err := common.NewConfigFrom(map[string]interface{}{"app_name": "billing"})
		require.NoError(t, err)

		c, err := NewConfig(ucfg)
		require.NoError(t, err)
		assert.True(t, c.CrossApplicationTracer.Enabled)
		assert.Equal(t, DefaultConfigCacheExpiration, c.AgentConfig.CacheExpiration)
	})

	t.Run("MissingAppName", func(t *testing.T) {
		ucfg, err := common.NewConfigFrom(map[string]interface{}{})
		require.NoError(t, err)

		_, err = NewConfig(ucfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app_name")
	})

	t.Run("InvalidCacheExpiration", func(t *testing.T) {
		ucfg, err := common.NewConfigFrom(map[string]interface{}{
			"app_name":                      "billing",
			"agent.config.cache.expiration": "0s",
		})
		require.NoError(t, err)

		_, err = NewConfig(ucfg)
		assert.Error(t, err)
	})

	t.Run("BothProtocolsEnabled", func(t *testing.T) {
		ucfg, err := common.NewConfigFrom(map[string]interface{}{
			"app_name":                         "billing",
			"cross_application_tracer.enabled": true,
			"distributed_tracer.enabled":       true,
		})
		require.NoError(t, err)

		// Allowed; distributed tracing wins at outbound-call time.
		c, err := NewConfig(ucfg)
		require.NoError(t, err)
		assert.True(t, c.DistributedTracer.Enabled)
	})
}
