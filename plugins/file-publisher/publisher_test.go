// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

func sample() []plugin.Metric {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []plugin.Metric{
		{Namespace: plugin.NewNamespace("random", "integer"), Data: int64(7), Timestamp: ts, Version: 1, Tags: map[string]string{"dc": "east"}},
		{Namespace: plugin.NewNamespace("random", "string"), Data: "abc", Timestamp: ts, Version: 1},
	}
}

func TestPublish_JSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	p := newPublisher()

	require.NoError(t, p.Publish(context.Background(), sample(), plugin.ConfigMap{"file": path}))
	require.NoError(t, p.Publish(context.Background(), sample()[:1], plugin.ConfigMap{"file": path}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, sc.Err())
	require.Len(t, records, 3)
	assert.Equal(t, "/random/integer", records[0].Namespace)
	assert.Equal(t, "int64", records[0].Type)
	assert.Equal(t, float64(7), records[0].Value)
	assert.Equal(t, "east", records[0].Tags["dc"])
	assert.Equal(t, "abc", records[1].Value)
}

func TestPublish_YAMLDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	p := newPublisher()

	require.NoError(t, p.Publish(context.Background(), sample(), plugin.ConfigMap{"file": path, "format": "yaml"}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := yaml.NewDecoder(f)
	var first, second record
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "/random/integer", first.Namespace)
	assert.Equal(t, "/random/string", second.Namespace)
}

func TestPublish_Errors(t *testing.T) {
	p := newPublisher()

	err := p.Publish(context.Background(), sample(), plugin.ConfigMap{"format": "xml"})
	errutil.AssertErrorCode(t, err, "INVALID_CONFIG")

	err = p.Publish(context.Background(), sample(), plugin.ConfigMap{"file": filepath.Join(t.TempDir(), "missing", "out.log")})
	errutil.AssertErrorCode(t, err, "PUBLISH_FAILED")
}

func TestPublish_ConcurrentCallsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	p := newPublisher()
	p.file = path

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Publish(context.Background(), sample(), nil))
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var r record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		lines++
	}
	assert.Equal(t, 16, lines)
}

func TestPublish_DefaultFileUnderStateDir(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	p := newPublisher()

	require.NoError(t, p.Publish(context.Background(), sample(), nil))

	assert.FileExists(t, filepath.Join(state, "snapplugin", "file-publisher", "metrics.log"))
}
