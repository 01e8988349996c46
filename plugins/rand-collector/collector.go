// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/snapplugin/pkg/plugin"
)

const (
	vendor = "random"

	defaultMax      = 1000
	defaultAlphabet = "abcdefghijklmnopqrstuvwxyz"
	defaultInclude  = "/random/*"
	stringLength    = 8
)

// collector produces random integers, floats and strings.
type collector struct {
	mu  sync.Mutex
	rng *rand.Rand

	max     int64
	include string
}

func newCollector(seed uint64) *collector {
	return &collector{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // not used for secrets
		max:     defaultMax,
		include: defaultInclude,
	}
}

func (c *collector) registerFlags(fs *pflag.FlagSet) {
	fs.Int64Var(&c.max, "max", defaultMax, "upper bound for random integers")
	fs.StringVar(&c.include, "include", defaultInclude, "glob selecting the advertised namespaces")
}

func (c *collector) GetConfigPolicy(context.Context) (plugin.ConfigPolicy, error) {
	p := plugin.NewConfigPolicy()
	p.AddIntegerRule([]string{vendor, "integer"}, "max", plugin.IntegerRule{
		Default: plugin.Ptr(c.max),
		Minimum: plugin.Ptr(int64(1)),
	})
	p.AddStringRule([]string{vendor, "string"}, "alphabet", plugin.StringRule{
		Default: plugin.Ptr(defaultAlphabet),
	})
	p.AddStringRule([]string{vendor}, "include", plugin.StringRule{
		Default: plugin.Ptr(c.include),
	})
	return p, nil
}

func (c *collector) GetMetricTypes(_ context.Context, cfg plugin.ConfigMap) ([]plugin.Metric, error) {
	include, ok := cfg.GetString("include")
	if !ok {
		include = c.include
	}
	all := []plugin.Metric{
		{Namespace: plugin.NewNamespace(vendor, "integer"), Unit: "count", Description: "random integer below max"},
		{Namespace: plugin.NewNamespace(vendor, "float"), Description: "random float in [0, 1)"},
		{Namespace: plugin.NewNamespace(vendor, "string"), Description: "random string over alphabet"},
	}
	out := make([]plugin.Metric, 0, len(all))
	for _, m := range all {
		match, err := m.Namespace.Matches(include)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *collector) CollectMetrics(ctx context.Context, mts []plugin.Metric) ([]plugin.Metric, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	out := make([]plugin.Metric, 0, len(mts))
	for _, m := range mts {
		ns := m.Namespace.Strings()
		if len(ns) != 2 || ns[0] != vendor {
			return nil, oops.Code("UNKNOWN_METRIC").With("namespace", m.Namespace.String()).
				Errorf("unknown metric %s", m.Namespace)
		}
		var err error
		switch ns[1] {
		case "integer":
			limit, ok := m.Config.GetInt("max")
			if !ok {
				limit = c.max
			}
			if limit < 1 {
				return nil, oops.Code("INVALID_CONFIG").With("max", limit).Errorf("max must be positive")
			}
			err = m.SetData(c.rng.Int64N(limit))
		case "float":
			err = m.SetData(c.rng.Float64())
		case "string":
			alphabet, ok := m.Config.GetString("alphabet")
			if !ok || alphabet == "" {
				alphabet = defaultAlphabet
			}
			err = m.SetData(c.randomString(alphabet))
		default:
			return nil, oops.Code("UNKNOWN_METRIC").With("namespace", m.Namespace.String()).
				Errorf("unknown metric %s", m.Namespace)
		}
		if err != nil {
			return nil, err
		}
		m.Timestamp = now
		if m.Tags == nil {
			m.Tags = map[string]string{}
		}
		m.Tags["source"] = pluginName
		out = append(out, m)
	}
	slog.DebugContext(ctx, "collected random metrics", "count", len(out))
	return out, nil
}

func (c *collector) randomString(alphabet string) string {
	runes := []rune(alphabet)
	b := make([]rune, stringLength)
	for i := range b {
		b[i] = runes[c.rng.IntN(len(runes))]
	}
	return string(b)
}
