// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

func TestGetMetricTypes_Include(t *testing.T) {
	c := newCollector(1)
	ctx := context.Background()

	all, err := c.GetMetricTypes(ctx, plugin.ConfigMap{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ints, err := c.GetMetricTypes(ctx, plugin.ConfigMap{"include": "/random/int*"})
	require.NoError(t, err)
	require.Len(t, ints, 1)
	assert.Equal(t, "/random/integer", ints[0].Namespace.String())

	_, err = c.GetMetricTypes(ctx, plugin.ConfigMap{"include": "/random/["})
	errutil.AssertErrorCode(t, err, "INVALID_PATTERN")
}

func TestCollectMetrics_RespectsConfig(t *testing.T) {
	c := newCollector(42)
	mts := []plugin.Metric{
		{Namespace: plugin.NewNamespace("random", "integer"), Config: plugin.ConfigMap{"max": int64(3)}},
		{Namespace: plugin.NewNamespace("random", "float")},
		{Namespace: plugin.NewNamespace("random", "string"), Config: plugin.ConfigMap{"alphabet": "x"}},
	}

	for i := 0; i < 20; i++ {
		out, err := c.CollectMetrics(context.Background(), mts)
		require.NoError(t, err)
		require.Len(t, out, 3)

		assert.Less(t, out[0].Data.(int64), int64(3))
		assert.GreaterOrEqual(t, out[0].Data.(int64), int64(0))
		assert.Less(t, out[1].Data.(float64), 1.0)
		assert.Equal(t, "xxxxxxxx", out[2].Data)
		assert.Equal(t, "rand", out[2].Tags["source"])
		assert.False(t, out[0].Timestamp.IsZero())
	}
}

func TestCollectMetrics_UnknownMetric(t *testing.T) {
	c := newCollector(1)
	_, err := c.CollectMetrics(context.Background(), []plugin.Metric{{Namespace: plugin.NewNamespace("random", "bogus")}})
	errutil.AssertErrorCode(t, err, "UNKNOWN_METRIC")

	_, err = c.CollectMetrics(context.Background(), []plugin.Metric{{Namespace: plugin.NewNamespace("other")}})
	errutil.AssertErrorCode(t, err, "UNKNOWN_METRIC")
}

func TestCollectMetrics_InvalidMax(t *testing.T) {
	c := newCollector(1)
	_, err := c.CollectMetrics(context.Background(), []plugin.Metric{
		{Namespace: plugin.NewNamespace("random", "integer"), Config: plugin.ConfigMap{"max": int64(0)}},
	})
	errutil.AssertErrorCode(t, err, "INVALID_CONFIG")
}

func TestFlagsFeedPolicyDefaults(t *testing.T) {
	c := newCollector(1)
	fs := pflag.NewFlagSet("rand", pflag.ContinueOnError)
	c.registerFlags(fs)
	require.NoError(t, fs.Parse([]string{"--max", "7"}))

	policy, err := c.GetConfigPolicy(context.Background())
	require.NoError(t, err)
	defaults := policy.Defaults(plugin.NewNamespace("random", "integer"))
	assert.Equal(t, int64(7), defaults["max"])
	assert.Equal(t, "/random/*", defaults["include"])
}
