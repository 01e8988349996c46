// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

func TestNewMeta_Defaults(t *testing.T) {
	m := plugin.NewMeta(plugin.KindCollector, "rand", 1)

	assert.Equal(t, "rand", m.Name)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, plugin.KindCollector, m.Kind)
	assert.Equal(t, plugin.RPCGRPC, m.RPCType)
	assert.Equal(t, 1, m.RPCVersion)
	assert.Equal(t, 5, m.ConcurrencyCount)
	assert.Equal(t, plugin.RoutingLRU, m.RoutingStrategy)
	assert.False(t, m.Exclusive)
	assert.Zero(t, m.CacheTTL)
	assert.Equal(t, plugin.DefaultCipherSuites, m.CipherSuites)
	require.NoError(t, m.Validate())
}

func TestNewMeta_StreamCollectorUsesStreamRPC(t *testing.T) {
	m := plugin.NewMeta(plugin.KindStreamCollector, "stream", 2)
	assert.Equal(t, plugin.RPCGRPCStream, m.RPCType)
	assert.Equal(t, "gRPCStream", m.RPCType.String())
}

func TestNewMeta_Options(t *testing.T) {
	m := plugin.NewMeta(plugin.KindPublisher, "file", 3,
		plugin.ConcurrencyCount(2),
		plugin.Routing(plugin.RoutingSticky),
		plugin.Exclusive(true),
		plugin.CacheTTL(500*time.Millisecond),
		plugin.RPCVersion(2),
		plugin.RootCertPaths("/a:/b::"),
		plugin.CertPath("/srv.crt"),
		plugin.KeyPath("/srv.key"),
		plugin.CipherSuites("ECDHE-RSA-AES128-GCM-SHA256"),
	)

	assert.Equal(t, 2, m.ConcurrencyCount)
	assert.Equal(t, plugin.RoutingSticky, m.RoutingStrategy)
	assert.True(t, m.Exclusive)
	assert.Equal(t, 500*time.Millisecond, m.CacheTTL)
	assert.Equal(t, 2, m.RPCVersion)
	assert.Equal(t, []string{"/a", "/b"}, m.RootCertPaths)
	assert.Equal(t, "/srv.crt", m.CertPath)
	assert.Equal(t, "/srv.key", m.KeyPath)
	assert.Equal(t, []string{"ECDHE-RSA-AES128-GCM-SHA256"}, m.CipherSuites)
}

func TestMeta_Validate(t *testing.T) {
	tests := []struct {
		name string
		meta plugin.Meta
	}{
		{"empty name", plugin.NewMeta(plugin.KindCollector, "", 1)},
		{"zero version", plugin.NewMeta(plugin.KindCollector, "x", 0)},
		{"zero concurrency", plugin.NewMeta(plugin.KindCollector, "x", 1, plugin.ConcurrencyCount(0))},
		{"unknown kind", plugin.NewMeta(plugin.Kind(9), "x", 1)},
		{"unknown routing", plugin.NewMeta(plugin.KindCollector, "x", 1, plugin.Routing(7))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "INVALID_META")
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "collector", plugin.KindCollector.String())
	assert.Equal(t, "processor", plugin.KindProcessor.String())
	assert.Equal(t, "publisher", plugin.KindPublisher.String())
	assert.Equal(t, "streamCollector", plugin.KindStreamCollector.String())
	assert.Equal(t, "unknown", plugin.Kind(42).String())
	assert.False(t, plugin.Kind(-1).Valid())
}
