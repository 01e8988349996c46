// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/snapplugin/pkg/client"
	"github.com/holomush/snapplugin/pkg/plugin"
)

// metricView is the printed form of a metric.
type metricView struct {
	Namespace string            `json:"namespace"`
	Type      string            `json:"type"`
	Value     any               `json:"value"`
	Unit      string            `json:"unit,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Version   int64             `json:"version"`
}

func viewMetrics(mts []plugin.Metric) []metricView {
	out := make([]metricView, 0, len(mts))
	for _, m := range mts {
		out = append(out, metricView{
			Namespace: m.Namespace.String(),
			Type:      m.DataType(),
			Value:     m.Data,
			Unit:      m.Unit,
			Tags:      m.Tags,
			Version:   m.Version,
		})
	}
	return out
}

func writeMetricsTable(w io.Writer, mts []plugin.Metric) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAMESPACE\tTYPE\tVALUE\tTAGS")
	for _, v := range viewMetrics(mts) {
		value := "-"
		if v.Value != nil {
			value = fmt.Sprintf("%v", v.Value)
		}
		typ := v.Type
		if typ == "" {
			typ = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Namespace, typ, value, formatTags(v.Tags))
	}
	return tw.Flush()
}

func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+tags[k])
	}
	return strings.Join(parts, ",")
}

func writePreambleTable(w io.Writer, pre client.Preamble) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"NAME", pre.Meta.Name},
		{"VERSION", fmt.Sprintf("%d", pre.Meta.Version)},
		{"KIND", plugin.Kind(pre.Meta.Type).String()},
		{"RPC", plugin.RPCType(pre.Meta.RPCType).String()},
		{"ADDRESS", pre.ListenAddress},
		{"TLS", fmt.Sprintf("%t", pre.Meta.TLSEnabled)},
		{"CONCURRENCY", fmt.Sprintf("%d", pre.Meta.ConcurrencyCount)},
		{"ROUTING", plugin.RoutingStrategy(pre.Meta.RoutingStrategy).String()},
		{"EXCLUSIVE", fmt.Sprintf("%t", pre.Meta.Exclusive)},
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func writePolicyTable(w io.Writer, policy plugin.ConfigPolicy) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAMESPACE\tKEY\tTYPE\tREQUIRED\tDEFAULT")
	for _, r := range policy.Rules() {
		def := "-"
		if r.HasDefault() {
			def = fmt.Sprintf("%v", r.Default)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.Namespace, r.Key, r.Type, r.Required, def)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.Wrapf(err, "encode output")
	}
	return nil
}

// parseSettings turns key=value pairs into a config map. Values are read as
// YAML scalars, so 5 is an integer, 0.5 a float and true a bool.
func parseSettings(pairs []string) (plugin.ConfigMap, error) {
	cfg := plugin.ConfigMap{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, oops.Code("INVALID_SETTING").With("setting", pair).Errorf("expected key=value, got %q", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		switch value.(type) {
		case int, float64, bool, string:
		default:
			value = raw
		}
		if err := cfg.Set(key, value); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// filterMetrics keeps the metrics matching any of the glob patterns. No
// patterns keeps everything.
func filterMetrics(mts []plugin.Metric, patterns []string) ([]plugin.Metric, error) {
	if len(patterns) == 0 {
		return mts, nil
	}
	out := make([]plugin.Metric, 0, len(mts))
	for _, m := range mts {
		for _, p := range patterns {
			ok, err := m.Namespace.Matches(p)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}
