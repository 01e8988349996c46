// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "dc:east", map[string]string{"dc": "east"}},
		{"several with spaces", " dc : east , rack:4,", map[string]string{"dc": "east", "rack": "4"}},
		{"empty value", "flag:", map[string]string{"flag": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTags(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseTags("dc")
	errutil.AssertErrorCode(t, err, "INVALID_TAGS")
	_, err = parseTags(":east")
	errutil.AssertErrorCode(t, err, "INVALID_TAGS")
}

func TestProcess_TagsMatchingMetrics(t *testing.T) {
	p := &processor{}
	mts := []plugin.Metric{
		{Namespace: plugin.NewNamespace("random", "integer"), Tags: map[string]string{"source": "rand"}},
		{Namespace: plugin.NewNamespace("disk", "free")},
	}

	out, err := p.Process(context.Background(), mts, plugin.ConfigMap{"tags": "dc:east", "match": "/random/*"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, map[string]string{"source": "rand", "dc": "east"}, out[0].Tags)
	assert.Empty(t, out[1].Tags)
}

func TestProcess_DefaultsFromFlags(t *testing.T) {
	p := &processor{defaultTags: "env:test"}
	out, err := p.Process(context.Background(), []plugin.Metric{{Namespace: plugin.NewNamespace("a", "b", "c")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "test", out[0].Tags["env"])
}

func TestProcess_InvalidPattern(t *testing.T) {
	p := &processor{}
	_, err := p.Process(context.Background(), nil, plugin.ConfigMap{"match": "/a/["})
	errutil.AssertErrorCode(t, err, "INVALID_PATTERN")
}
