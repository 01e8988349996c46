// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package proxy

import (
	"strconv"
	"strings"
	"time"

	"github.com/holomush/snapplugin/internal/rpc"
	"github.com/holomush/snapplugin/pkg/plugin"
)

// Config keys read from a stream request.
const (
	ConfigMaxMetricsBuffer   = "max-metrics-buffer"
	ConfigMaxCollectDuration = "max-collect-duration"
	ConfigHeartbeat          = "stream-heartbeat"
)

// DefaultMaxCollectDuration bounds the time between flushes when the request
// does not set one.
const DefaultMaxCollectDuration = 10 * time.Second

// FlushPolicy decides when accumulated stream metrics are sent.
type FlushPolicy struct {
	// MaxBuffer flushes once this many metrics are pending. Zero sends every
	// metric in its own batch.
	MaxBuffer int
	// MaxDuration flushes pending metrics this long after the previous flush.
	MaxDuration time.Duration
	// Heartbeat sends an empty batch when MaxDuration passes with nothing
	// pending.
	Heartbeat bool
}

// ResolveFlushPolicy reads the thresholds from the request fields, then the
// request config, then the first requested metric's config. Unset and
// non-positive values fall back to the defaults.
func ResolveFlushPolicy(in *rpc.StreamMetricsArg) FlushPolicy {
	sources := []plugin.ConfigMap{rpc.FromConfigMap(in.Config)}
	if len(in.Metrics) > 0 && in.Metrics[0].Config != nil {
		sources = append(sources, rpc.FromConfigMap(*in.Metrics[0].Config))
	}

	p := FlushPolicy{MaxDuration: DefaultMaxCollectDuration}

	buffer := in.MaxMetricsBuffer
	for _, cfg := range sources {
		if buffer > 0 {
			break
		}
		buffer = configInt(cfg, ConfigMaxMetricsBuffer)
	}
	if buffer > 0 {
		p.MaxBuffer = int(buffer)
	}

	duration := time.Duration(in.MaxCollectDuration)
	for _, cfg := range sources {
		if duration > 0 {
			break
		}
		duration = configDuration(cfg, ConfigMaxCollectDuration)
	}
	if duration > 0 {
		p.MaxDuration = duration
	}

	for _, cfg := range sources {
		if v, ok := cfg.GetBool(ConfigHeartbeat); ok {
			p.Heartbeat = v
			break
		}
	}
	return p
}

func configInt(cfg plugin.ConfigMap, key string) int64 {
	v, ok := cfg.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// configDuration accepts integer or float seconds, or a duration string.
// A bare number in a string is taken as seconds.
func configDuration(cfg plugin.ConfigMap, key string) time.Duration {
	v, ok := cfg.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return time.Duration(n) * time.Second
	case float64:
		return time.Duration(n * float64(time.Second))
	case string:
		s := strings.TrimSpace(n)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(f * float64(time.Second))
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0
		}
		return d
	default:
		return 0
	}
}
