// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/snapplugin/pkg/plugin"
)

// processor tags metrics. Config keys:
//
//	tags   comma-separated key:value pairs
//	match  namespace glob selecting the metrics to tag, "/**" by default
type processor struct {
	defaultTags string
}

func (p *processor) registerFlags(fs *pflag.FlagSet) {
	fs.StringVar(&p.defaultTags, "tags", "", "tags applied when the task config sets none (k:v,k:v)")
}

func (p *processor) GetConfigPolicy(context.Context) (plugin.ConfigPolicy, error) {
	policy := plugin.NewConfigPolicy()
	policy.AddStringRule(nil, "tags", plugin.StringRule{Default: plugin.Ptr(p.defaultTags)})
	policy.AddStringRule(nil, "match", plugin.StringRule{Default: plugin.Ptr("/**")})
	return policy, nil
}

func (p *processor) Process(ctx context.Context, mts []plugin.Metric, cfg plugin.ConfigMap) ([]plugin.Metric, error) {
	raw, ok := cfg.GetString("tags")
	if !ok {
		raw = p.defaultTags
	}
	tags, err := parseTags(raw)
	if err != nil {
		return nil, err
	}
	pattern, ok := cfg.GetString("match")
	if !ok {
		pattern = "/**"
	}
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, oops.Code("INVALID_PATTERN").With("pattern", pattern).Wrap(err)
	}

	tagged := 0
	for i := range mts {
		if !g.Match(mts[i].Namespace.String()) {
			continue
		}
		if mts[i].Tags == nil {
			mts[i].Tags = make(map[string]string, len(tags))
		}
		for k, v := range tags {
			mts[i].Tags[k] = v
		}
		tagged++
	}
	slog.DebugContext(ctx, "tagged metrics", "tagged", tagged, "total", len(mts))
	return mts, nil
}

// parseTags reads "k:v,k:v". Whitespace around keys and values is trimmed.
func parseTags(s string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, oops.Code("INVALID_TAGS").With("pair", pair).Errorf("expected key:value, got %q", pair)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
