// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package pluginsdk_test

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/snapplugin/internal/preamble"
	"github.com/holomush/snapplugin/pkg/plugin"
	"github.com/holomush/snapplugin/pkg/pluginsdk"
)

type recordingCollector struct {
	mu  sync.Mutex
	cfg plugin.ConfigMap
}

func (c *recordingCollector) GetConfigPolicy(context.Context) (plugin.ConfigPolicy, error) {
	return plugin.NewConfigPolicy(), nil
}

func (c *recordingCollector) GetMetricTypes(_ context.Context, cfg plugin.ConfigMap) ([]plugin.Metric, error) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return []plugin.Metric{{Namespace: plugin.NewNamespace("acme", "gauge")}}, nil
}

func (c *recordingCollector) CollectMetrics(_ context.Context, mts []plugin.Metric) ([]plugin.Metric, error) {
	for i := range mts {
		mts[i].Data = 1.5
	}
	return mts, nil
}

func (c *recordingCollector) seen() plugin.ConfigMap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

type echoProcessor struct{}

func (echoProcessor) GetConfigPolicy(context.Context) (plugin.ConfigPolicy, error) {
	return plugin.NewConfigPolicy(), nil
}

func (echoProcessor) Process(_ context.Context, mts []plugin.Metric, _ plugin.ConfigMap) ([]plugin.Metric, error) {
	return mts, nil
}

func TestStart_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := pluginsdk.StartCollector(&recordingCollector{}, "rand", 3,
		pluginsdk.WithArgs([]string{"--version"}),
		pluginsdk.WithOutput(&stdout, &stderr))

	assert.Equal(t, 0, code)
	assert.Equal(t, "rand v3\n", stdout.String())
}

func TestStart_DiagnosticWithoutConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := &recordingCollector{}
	code := pluginsdk.StartCollector(c, "rand", 1,
		pluginsdk.WithArgs(nil),
		pluginsdk.WithOutput(&stdout, &stderr))

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "Runtime Details:")
	assert.Contains(t, stdout.String(), "/acme/gauge")
	assert.NotNil(t, c.seen())
}

func TestStart_AuthorFlagsReachConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	c := &recordingCollector{}
	code := pluginsdk.StartCollector(c, "rand", 1,
		pluginsdk.WithFlags(func(fs *pflag.FlagSet) {
			fs.Int("rate", 1, "sample rate")
			fs.String("unit", "b", "unit")
		}),
		pluginsdk.WithFlagKey("rate", "SampleRate"),
		pluginsdk.WithArgs([]string{"--rate", "5"}),
		pluginsdk.WithOutput(&stdout, &stderr))

	require.Equal(t, 0, code, stderr.String())
	cfg := c.seen()
	assert.Equal(t, int64(5), cfg["SampleRate"])
	assert.Equal(t, "b", cfg["unit"])
	assert.NotContains(t, cfg, "rate")
	assert.NotContains(t, cfg, "help")
}

func TestStart_InvalidFrameworkConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := pluginsdk.StartCollector(&recordingCollector{}, "rand", 1,
		pluginsdk.WithArgs([]string{"{not json"}),
		pluginsdk.WithOutput(&stdout, &stderr))

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "invalid config provided: expected JSON")
}

func TestStart_TLSWithoutKeyIsFatal(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := pluginsdk.StartCollector(&recordingCollector{}, "rand", 1,
		pluginsdk.WithArgs([]string{"--tls", "--cert-path", "/c", `{"LogLevel": 1}`}),
		pluginsdk.WithOutput(&stdout, &stderr))

	assert.Equal(t, 1, code)
	pre, err := preamble.Decode(stdout.Bytes())
	require.NoError(t, err)
	assert.Equal(t, preamble.StateFailure, pre.State)
	assert.Contains(t, stderr.String(), "key-path")
}

func TestStart_DiagnosticRejectsProcessor(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := pluginsdk.StartProcessor(echoProcessor{}, "echo", 1,
		pluginsdk.WithArgs(nil),
		pluginsdk.WithOutput(&stdout, &stderr))

	assert.Equal(t, 0, code)
	assert.Equal(t, "diagnostic is supported only by collector plugins\n", stdout.String())
}

func TestStart_ServedUntilContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pr.Close()
	var stderr bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan int, 1)
	go func() {
		done <- pluginsdk.StartProcessor(echoProcessor{}, "echo", 4,
			pluginsdk.WithArgs([]string{`{"LogLevel": 2, "PingTimeoutDuration": 10000}`}),
			pluginsdk.WithOutput(pw, &stderr),
			pluginsdk.WithContext(ctx))
	}()

	line, err := bufio.NewReader(pr).ReadBytes('\n')
	require.NoError(t, err)
	pre, err := preamble.Decode(line)
	require.NoError(t, err)
	assert.Equal(t, preamble.StateSuccess, pre.State)
	assert.Equal(t, 4, pre.Meta.Version)
	assert.Equal(t, int(plugin.KindProcessor), pre.Meta.Type)

	cancel()
	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(10 * time.Second):
		t.Fatal("plugin did not stop")
	}
}
