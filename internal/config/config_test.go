// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/snapplugin/internal/config"
	"github.com/holomush/snapplugin/pkg/errutil"
)

func load(t *testing.T, loader *config.Loader, argv ...string) (*config.Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.Register(fs)
	fs.String("dir", "/tmp", "author flag")
	fs.Int("rate", 10, "author flag")
	require.NoError(t, fs.Parse(argv))
	return loader.Load(context.Background(), fs, fs.Args())
}

func TestLoad_ModeSelection(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want config.Mode
	}{
		{"positional framework config", []string{`{"LogLevel":2}`}, config.ModeServed},
		{"config flag", []string{"--config", `{}`}, config.ModeServed},
		{"framework config wins over stand-alone", []string{"--stand-alone", `{}`}, config.ModeServed},
		{"stand-alone", []string{"--stand-alone"}, config.ModeStandalone},
		{"nothing", nil, config.ModeDiagnostic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(t, config.NewLoader(nil), tt.argv...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Mode)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, config.NewLoader(nil))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultStandAlonePort, cfg.StandAlonePort)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 0, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.PingTimeout)
	assert.False(t, cfg.TLS.Enabled)
	assert.Empty(t, cfg.TLS.RootCertPaths)
}

func TestLoad_FrameworkConfig(t *testing.T) {
	doc := `{"LogLevel":1,"PingTimeoutDuration":1500,"TLSEnabled":true,` +
		`"RootCertPaths":"/etc/ca:/etc/more-ca","KeyPath":"/k","CertPath":"/c","dir":"/data"}`
	cfg, err := load(t, config.NewLoader(nil), doc)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.LogLevel)
	assert.Equal(t, 1500*time.Millisecond, cfg.PingTimeout)
	assert.True(t, cfg.TLS.Enabled)
	assert.Equal(t, []string{"/etc/ca", "/etc/more-ca"}, cfg.TLS.RootCertPaths)
	assert.Equal(t, "/k", cfg.TLS.KeyPath)
	assert.Equal(t, "/c", cfg.TLS.CertPath)
	assert.Equal(t, "/data", cfg.Values.String("dir"))
	assert.Equal(t, 10, cfg.Values.Int("rate"))
}

func TestLoad_ChangedFlagsOverrideFramework(t *testing.T) {
	cfg, err := load(t, config.NewLoader(nil), "--log-level", "4", "--dir", "/flag", `{"LogLevel":1,"dir":"/doc"}`)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.LogLevel)
	assert.Equal(t, "/flag", cfg.Values.String("dir"))
}

func TestLoad_TLSFlags(t *testing.T) {
	cfg, err := load(t, config.NewLoader(nil),
		"--stand-alone", "--tls", "--root-cert-paths", "/a::/b", "--key-path", "/k", "--cert-path", "/c")
	require.NoError(t, err)

	assert.True(t, cfg.TLS.Enabled)
	assert.Equal(t, []string{"/a", "/b"}, cfg.TLS.RootCertPaths)
	assert.Equal(t, "/k", cfg.TLS.KeyPath)
}

func TestLoad_InvalidFrameworkJSONIsFatal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := load(t, config.NewLoader(logger), `{not json`)
	require.Error(t, err)

	errutil.AssertErrorCode(t, err, "INVALID_CONFIG")
	assert.Contains(t, buf.String(), "invalid config provided: expected JSON")
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dir: /from-file\nRootCertPaths:\n  - /x\n  - /y\n"), 0o600))

	cfg, err := load(t, config.NewLoader(nil), "--config-file", path)
	require.NoError(t, err)

	assert.Equal(t, config.ModeDiagnostic, cfg.Mode)
	assert.Equal(t, "/from-file", cfg.Values.String("dir"))
	assert.Equal(t, []string{"/x", "/y"}, cfg.TLS.RootCertPaths)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := load(t, config.NewLoader(nil), "--config-file", filepath.Join(t.TempDir(), "absent.yaml"))
	errutil.AssertErrorCode(t, err, "INVALID_CONFIG")
}

func TestLoad_MapFlag(t *testing.T) {
	loader := config.NewLoader(nil)
	loader.MapFlag("rate", "SampleRate")

	cfg, err := load(t, loader, "--rate", "25")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Values.Int("SampleRate"))
	assert.False(t, cfg.Values.Exists("rate"))
}

func TestLoad_RejectsBadLogFormat(t *testing.T) {
	_, err := load(t, config.NewLoader(nil), "--log-format", "xml")
	errutil.AssertErrorCode(t, err, "INVALID_CONFIG")
	errutil.AssertErrorContext(t, err, "log_format", "xml")
}

func TestConfig_ConfigMap(t *testing.T) {
	cfg, err := load(t, config.NewLoader(nil), `{"limit":4,"ratio":0.5,"name":"bob"}`)
	require.NoError(t, err)

	m := cfg.ConfigMap()
	assert.Equal(t, int64(4), m["limit"])
	assert.Equal(t, 0.5, m["ratio"])
	assert.Equal(t, "bob", m["name"])
	assert.Equal(t, int64(10), m["rate"])
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "served", config.ModeServed.String())
	assert.Equal(t, "standalone", config.ModeStandalone.String())
	assert.Equal(t, "diagnostic", config.ModeDiagnostic.String())
}
