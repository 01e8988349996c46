// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package rpc

import (
	"time"

	"github.com/samber/oops"

	"github.com/holomush/snapplugin/pkg/plugin"
)

// ToTime converts a wall-clock instant. The zero time maps to nil.
func ToTime(t time.Time) *Time {
	if t.IsZero() {
		return nil
	}
	return &Time{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

// FromTime converts a wire instant. Nil maps to the zero time.
func FromTime(t *Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return time.Unix(t.Sec, t.Nsec)
}

// ToConfigMap converts a typed config map.
func ToConfigMap(c plugin.ConfigMap) ConfigMap {
	var out ConfigMap
	for k, v := range c {
		switch val := v.(type) {
		case int64:
			if out.IntMap == nil {
				out.IntMap = map[string]int64{}
			}
			out.IntMap[k] = val
		case float64:
			if out.FloatMap == nil {
				out.FloatMap = map[string]float64{}
			}
			out.FloatMap[k] = val
		case string:
			if out.StringMap == nil {
				out.StringMap = map[string]string{}
			}
			out.StringMap[k] = val
		case bool:
			if out.BoolMap == nil {
				out.BoolMap = map[string]bool{}
			}
			out.BoolMap[k] = val
		}
	}
	return out
}

// FromConfigMap converts a wire config map.
func FromConfigMap(c ConfigMap) plugin.ConfigMap {
	out := make(plugin.ConfigMap, len(c.IntMap)+len(c.FloatMap)+len(c.StringMap)+len(c.BoolMap))
	for k, v := range c.IntMap {
		out[k] = v
	}
	for k, v := range c.FloatMap {
		out[k] = v
	}
	for k, v := range c.StringMap {
		out[k] = v
	}
	for k, v := range c.BoolMap {
		out[k] = v
	}
	return out
}

// ToMetric converts a metric to its wire form.
func ToMetric(m plugin.Metric) (Metric, error) {
	out := Metric{
		Namespace:          make([]NamespaceElement, len(m.Namespace)),
		Version:            m.Version,
		LastAdvertisedTime: ToTime(m.LastAdvertisedTime),
		Tags:               m.Tags,
		Timestamp:          ToTime(m.Timestamp),
		Unit:               m.Unit,
		Description:        m.Description,
	}
	for i, e := range m.Namespace {
		out.Namespace[i] = NamespaceElement{Value: e.Value, Name: e.Name, Description: e.Description}
	}
	if len(m.Config) > 0 {
		cfg := ToConfigMap(m.Config)
		out.Config = &cfg
	}

	switch d := m.Data.(type) {
	case nil:
	case int:
		out.Int64Data = plugin.Ptr(int64(d))
	case uint:
		out.Uint64Data = plugin.Ptr(uint64(d))
	case int32:
		out.Int32Data = &d
	case int64:
		out.Int64Data = &d
	case uint32:
		out.Uint32Data = &d
	case uint64:
		out.Uint64Data = &d
	case float32:
		out.Float32Data = &d
	case float64:
		out.Float64Data = &d
	case string:
		out.StringData = &d
	case bool:
		out.BoolData = &d
	case []byte:
		out.BytesData = d
	default:
		return Metric{}, oops.Code("UNSUPPORTED_DATA_TYPE").
			With("namespace", m.Namespace.String()).
			Errorf("unsupported data type %T", m.Data)
	}
	return out, nil
}

// FromMetric converts a wire metric.
func FromMetric(m Metric) plugin.Metric {
	out := plugin.Metric{
		Namespace:          make(plugin.Namespace, len(m.Namespace)),
		Version:            m.Version,
		Tags:               m.Tags,
		Timestamp:          FromTime(m.Timestamp),
		LastAdvertisedTime: FromTime(m.LastAdvertisedTime),
		Unit:               m.Unit,
		Description:        m.Description,
	}
	for i, e := range m.Namespace {
		out.Namespace[i] = plugin.NamespaceElement{Value: e.Value, Name: e.Name, Description: e.Description}
	}
	if m.Config != nil {
		out.Config = FromConfigMap(*m.Config)
	}

	switch {
	case m.Float32Data != nil:
		out.Data = *m.Float32Data
	case m.Float64Data != nil:
		out.Data = *m.Float64Data
	case m.Int32Data != nil:
		out.Data = *m.Int32Data
	case m.Int64Data != nil:
		out.Data = *m.Int64Data
	case m.Uint32Data != nil:
		out.Data = *m.Uint32Data
	case m.Uint64Data != nil:
		out.Data = *m.Uint64Data
	case m.BytesData != nil:
		out.Data = m.BytesData
	case m.BoolData != nil:
		out.Data = *m.BoolData
	case m.StringData != nil:
		out.Data = *m.StringData
	}
	return out
}

// ToMetrics converts a batch, stamping version on metrics that carry none.
func ToMetrics(mts []plugin.Metric, version int64) ([]Metric, error) {
	out := make([]Metric, 0, len(mts))
	for _, m := range mts {
		if m.Version == 0 {
			m.Version = version
		}
		wm, err := ToMetric(m)
		if err != nil {
			return nil, err
		}
		out = append(out, wm)
	}
	return out, nil
}

// FromMetrics converts a wire batch.
func FromMetrics(mts []Metric) []plugin.Metric {
	out := make([]plugin.Metric, len(mts))
	for i, m := range mts {
		out[i] = FromMetric(m)
	}
	return out
}

// ToConfigPolicyReply converts a config policy.
func ToConfigPolicyReply(p plugin.ConfigPolicy) *GetConfigPolicyReply {
	reply := &GetConfigPolicyReply{}
	for ns, rules := range p.String {
		if reply.StringPolicy == nil {
			reply.StringPolicy = map[string]StringPolicy{}
		}
		pol := StringPolicy{Rules: map[string]StringRule{}}
		for k, r := range rules {
			pol.Rules[k] = StringRule{Required: r.Required, Default: r.Default}
		}
		reply.StringPolicy[ns] = pol
	}
	for ns, rules := range p.Integer {
		if reply.IntegerPolicy == nil {
			reply.IntegerPolicy = map[string]IntegerPolicy{}
		}
		pol := IntegerPolicy{Rules: map[string]IntegerRule{}}
		for k, r := range rules {
			pol.Rules[k] = IntegerRule{Required: r.Required, Default: r.Default, Minimum: r.Minimum, Maximum: r.Maximum}
		}
		reply.IntegerPolicy[ns] = pol
	}
	for ns, rules := range p.Float {
		if reply.FloatPolicy == nil {
			reply.FloatPolicy = map[string]FloatPolicy{}
		}
		pol := FloatPolicy{Rules: map[string]FloatRule{}}
		for k, r := range rules {
			pol.Rules[k] = FloatRule{Required: r.Required, Default: r.Default, Minimum: r.Minimum, Maximum: r.Maximum}
		}
		reply.FloatPolicy[ns] = pol
	}
	for ns, rules := range p.Bool {
		if reply.BoolPolicy == nil {
			reply.BoolPolicy = map[string]BoolPolicy{}
		}
		pol := BoolPolicy{Rules: map[string]BoolRule{}}
		for k, r := range rules {
			pol.Rules[k] = BoolRule{Required: r.Required, Default: r.Default}
		}
		reply.BoolPolicy[ns] = pol
	}
	return reply
}

// FromConfigPolicyReply converts a wire config policy.
func FromConfigPolicyReply(r *GetConfigPolicyReply) plugin.ConfigPolicy {
	p := plugin.NewConfigPolicy()
	for ns, pol := range r.StringPolicy {
		for k, rule := range pol.Rules {
			p.AddStringRule(splitKey(ns), k, plugin.StringRule{Required: rule.Required, Default: rule.Default})
		}
	}
	for ns, pol := range r.IntegerPolicy {
		for k, rule := range pol.Rules {
			p.AddIntegerRule(splitKey(ns), k, plugin.IntegerRule{Required: rule.Required, Default: rule.Default, Minimum: rule.Minimum, Maximum: rule.Maximum})
		}
	}
	for ns, pol := range r.FloatPolicy {
		for k, rule := range pol.Rules {
			p.AddFloatRule(splitKey(ns), k, plugin.FloatRule{Required: rule.Required, Default: rule.Default, Minimum: rule.Minimum, Maximum: rule.Maximum})
		}
	}
	for ns, pol := range r.BoolPolicy {
		for k, rule := range pol.Rules {
			p.AddBoolRule(splitKey(ns), k, plugin.BoolRule{Required: rule.Required, Default: rule.Default})
		}
	}
	return p
}

func splitKey(ns string) []string {
	if ns == "" {
		return nil
	}
	var parts []string
	start := 0
	for i := 0; i < len(ns); i++ {
		if ns[i] == '.' {
			parts = append(parts, ns[start:i])
			start = i + 1
		}
	}
	return append(parts, ns[start:])
}
