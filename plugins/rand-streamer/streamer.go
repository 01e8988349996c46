// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/snapplugin/pkg/plugin"
)

const defaultInterval = time.Second

// streamer emits one random value per requested metric every interval.
type streamer struct {
	mu  sync.Mutex
	rng *rand.Rand

	interval time.Duration
}

func newStreamer(seed uint64) *streamer {
	return &streamer{
		rng:      rand.New(rand.NewPCG(seed, ^seed)), //nolint:gosec // not used for secrets
		interval: defaultInterval,
	}
}

func (s *streamer) registerFlags(fs *pflag.FlagSet) {
	fs.DurationVar(&s.interval, "interval", defaultInterval, "delay between emitted batches")
}

func (s *streamer) GetConfigPolicy(context.Context) (plugin.ConfigPolicy, error) {
	return plugin.NewConfigPolicy(), nil
}

func (s *streamer) GetMetricTypes(context.Context, plugin.ConfigMap) ([]plugin.Metric, error) {
	return []plugin.Metric{
		{Namespace: plugin.NewNamespace("random", "stream", "integer"), Unit: "count"},
		{Namespace: plugin.NewNamespace("random", "stream", "float")},
	}, nil
}

// StreamMetrics waits one interval, then returns a value for every requested
// metric. It returns nothing once ctx is done.
func (s *streamer) StreamMetrics(ctx context.Context, mts []plugin.Metric) ([]plugin.Metric, error) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, nil
	case <-timer.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	out := make([]plugin.Metric, 0, len(mts))
	for _, m := range mts {
		m.Timestamp = now
		switch m.Namespace.String() {
		case "/random/stream/integer":
			m.Data = s.rng.Int64N(1000)
		case "/random/stream/float":
			m.Data = s.rng.Float64()
		default:
			return nil, oops.Code("UNKNOWN_METRIC").With("namespace", m.Namespace.String()).
				Errorf("unknown metric %s", m.Namespace)
		}
		out = append(out, m)
	}
	return out, nil
}
