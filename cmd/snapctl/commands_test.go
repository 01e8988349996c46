// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/snapplugin/internal/config"
	"github.com/holomush/snapplugin/internal/lifecycle"
	"github.com/holomush/snapplugin/pkg/plugin"
)

type cpuCollector struct{}

func (cpuCollector) GetConfigPolicy(context.Context) (plugin.ConfigPolicy, error) {
	p := plugin.NewConfigPolicy()
	p.AddIntegerRule([]string{"acme", "cpu"}, "scale", plugin.IntegerRule{Default: plugin.Ptr(int64(1))})
	p.AddStringRule([]string{"acme"}, "host", plugin.StringRule{Required: true})
	return p, nil
}

func (cpuCollector) GetMetricTypes(context.Context, plugin.ConfigMap) ([]plugin.Metric, error) {
	return []plugin.Metric{
		{Namespace: plugin.NewNamespace("acme", "cpu", "user")},
		{Namespace: plugin.NewNamespace("acme", "cpu", "system")},
		{Namespace: plugin.NewNamespace("acme", "mem", "free")},
	}, nil
}

func (cpuCollector) CollectMetrics(_ context.Context, mts []plugin.Metric) ([]plugin.Metric, error) {
	for i := range mts {
		scale, ok := mts[i].Config.GetInt("scale")
		if !ok {
			scale = 1
		}
		mts[i].Data = 10 * scale
	}
	return mts, nil
}

type tickStreamer struct{ cpuCollector }

func (tickStreamer) StreamMetrics(ctx context.Context, mts []plugin.Metric) ([]plugin.Metric, error) {
	select {
	case <-ctx.Done():
		return nil, nil
	case <-time.After(5 * time.Millisecond):
	}
	out := make([]plugin.Metric, len(mts))
	for i, m := range mts {
		m.Data = int64(1)
		out[i] = m
	}
	return out, nil
}

// servePlugin runs impl in-process and writes its preamble to a file usable
// with --attach.
func servePlugin(t *testing.T, kind plugin.Kind, impl plugin.Plugin) (string, *lifecycle.Lifecycle) {
	t.Helper()
	pr, pw := io.Pipe()
	lc, err := lifecycle.New(plugin.NewMeta(kind, "acme-"+kind.String(), 2), impl, &config.Config{
		Mode:        config.ModeServed,
		LogFormat:   "json",
		PingTimeout: 10 * time.Second,
	}, lifecycle.Options{
		Stdout:      pw,
		Logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Registry:    prometheus.NewRegistry(),
		StopTimeout: time.Second,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = lc.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = pr.Close()
	})

	line, err := bufio.NewReader(pr).ReadBytes('\n')
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "preamble.json")
	require.NoError(t, os.WriteFile(path, line, 0o600))
	return path, lc
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"preamble", "ping", "policy", "collect", "stream", "kill"} {
		assert.Contains(t, names, want)
	}
}

func TestPreamble_Attach(t *testing.T) {
	path, lc := servePlugin(t, plugin.KindCollector, cpuCollector{})

	out, err := execute(t, "preamble", "--attach", path)
	require.NoError(t, err)
	assert.Contains(t, out, "acme-collector")
	assert.Contains(t, out, lc.Addr())
}

func TestPing_Attach(t *testing.T) {
	path, _ := servePlugin(t, plugin.KindCollector, cpuCollector{})

	out, err := execute(t, "ping", "--attach", path, "-c", "2", "--interval", "1ms")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "pong from acme-collector"))
	assert.Contains(t, out, "seq=2")
}

func TestPolicy_Attach(t *testing.T) {
	path, _ := servePlugin(t, plugin.KindCollector, cpuCollector{})

	out, err := execute(t, "policy", "--attach", path)
	require.NoError(t, err)
	assert.Contains(t, out, "scale")
	assert.Contains(t, out, "host")
}

func TestCollect_FilterAndSettings(t *testing.T) {
	path, _ := servePlugin(t, plugin.KindCollector, cpuCollector{})

	out, err := execute(t, "collect", "--attach", path, "--filter", "/acme/cpu/*", "--set", "scale=3")
	require.NoError(t, err)
	assert.Contains(t, out, "/acme/cpu/user")
	assert.Contains(t, out, "/acme/cpu/system")
	assert.NotContains(t, out, "/acme/mem/free")
	assert.Contains(t, out, "30")
}

func TestCollect_RejectsBadSetting(t *testing.T) {
	_, err := execute(t, "collect", "--attach", "unused", "--set", "broken")
	require.Error(t, err)
}

func TestStream_Batches(t *testing.T) {
	path, _ := servePlugin(t, plugin.KindStreamCollector, tickStreamer{})

	out, err := execute(t, "stream", "--attach", path, "-n", "2", "--max-buffer", "1", "--filter", "/acme/mem/*")
	require.NoError(t, err)
	assert.Contains(t, out, "batch 1 (1 metrics)")
	assert.Contains(t, out, "batch 2 (1 metrics)")
	assert.NotContains(t, out, "batch 3")
}

func TestKill_Attach(t *testing.T) {
	path, lc := servePlugin(t, plugin.KindProcessor, passProcessor{})

	out, err := execute(t, "kill", "--attach", path)
	require.NoError(t, err)
	assert.Contains(t, out, "kill sent to acme-processor")

	select {
	case <-lc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("plugin did not stop after kill")
	}
}

func TestKill_RequiresAttach(t *testing.T) {
	_, err := execute(t, "kill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--attach")
}

func TestOpenSession_RequiresTarget(t *testing.T) {
	_, err := execute(t, "ping")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin path or --attach")
}

type passProcessor struct{}

func (passProcessor) GetConfigPolicy(context.Context) (plugin.ConfigPolicy, error) {
	return plugin.NewConfigPolicy(), nil
}

func (passProcessor) Process(_ context.Context, mts []plugin.Metric, _ plugin.ConfigMap) ([]plugin.Metric, error) {
	return mts, nil
}
