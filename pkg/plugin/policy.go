// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"sort"
	"strings"
)

// Rule type names.
const (
	RuleTypeString  = "string"
	RuleTypeInteger = "integer"
	RuleTypeFloat   = "float"
	RuleTypeBool    = "bool"
)

// Ptr returns a pointer to v. Rules use pointers for optional bounds and defaults.
func Ptr[T any](v T) *T {
	return &v
}

// StringRule constrains a string config value.
type StringRule struct {
	Required bool
	Default  *string
}

// IntegerRule constrains an integer config value.
type IntegerRule struct {
	Required bool
	Default  *int64
	Minimum  *int64
	Maximum  *int64
}

// FloatRule constrains a float config value.
type FloatRule struct {
	Required bool
	Default  *float64
	Minimum  *float64
	Maximum  *float64
}

// BoolRule constrains a bool config value.
type BoolRule struct {
	Required bool
	Default  *bool
}

// ConfigPolicy groups rules by namespace prefix (dotted key) and config key.
type ConfigPolicy struct {
	String  map[string]map[string]StringRule
	Integer map[string]map[string]IntegerRule
	Float   map[string]map[string]FloatRule
	Bool    map[string]map[string]BoolRule
}

// NewConfigPolicy returns an empty policy.
func NewConfigPolicy() ConfigPolicy {
	return ConfigPolicy{
		String:  map[string]map[string]StringRule{},
		Integer: map[string]map[string]IntegerRule{},
		Float:   map[string]map[string]FloatRule{},
		Bool:    map[string]map[string]BoolRule{},
	}
}

// AddStringRule registers a string rule for key under the namespace prefix ns.
func (p *ConfigPolicy) AddStringRule(ns []string, key string, rule StringRule) {
	if p.String == nil {
		p.String = map[string]map[string]StringRule{}
	}
	addRule(p.String, ns, key, rule)
}

// AddIntegerRule registers an integer rule.
func (p *ConfigPolicy) AddIntegerRule(ns []string, key string, rule IntegerRule) {
	if p.Integer == nil {
		p.Integer = map[string]map[string]IntegerRule{}
	}
	addRule(p.Integer, ns, key, rule)
}

// AddFloatRule registers a float rule.
func (p *ConfigPolicy) AddFloatRule(ns []string, key string, rule FloatRule) {
	if p.Float == nil {
		p.Float = map[string]map[string]FloatRule{}
	}
	addRule(p.Float, ns, key, rule)
}

// AddBoolRule registers a bool rule.
func (p *ConfigPolicy) AddBoolRule(ns []string, key string, rule BoolRule) {
	if p.Bool == nil {
		p.Bool = map[string]map[string]BoolRule{}
	}
	addRule(p.Bool, ns, key, rule)
}

func addRule[R any](m map[string]map[string]R, ns []string, key string, rule R) {
	nsKey := strings.Join(ns, ".")
	if m[nsKey] == nil {
		m[nsKey] = map[string]R{}
	}
	m[nsKey][key] = rule
}

// PolicyRule is a flattened view of one rule, used for reporting.
type PolicyRule struct {
	Namespace string
	Key       string
	Type      string
	Required  bool
	Default   any
	Minimum   any
	Maximum   any
}

// HasDefault reports whether the rule carries a default value.
func (r PolicyRule) HasDefault() bool {
	return r.Default != nil
}

// Rules returns every rule sorted by namespace, then key.
func (p ConfigPolicy) Rules() []PolicyRule {
	var out []PolicyRule
	for ns, rules := range p.String {
		for k, r := range rules {
			out = append(out, PolicyRule{Namespace: ns, Key: k, Type: RuleTypeString, Required: r.Required, Default: deref(r.Default)})
		}
	}
	for ns, rules := range p.Integer {
		for k, r := range rules {
			out = append(out, PolicyRule{Namespace: ns, Key: k, Type: RuleTypeInteger, Required: r.Required,
				Default: deref(r.Default), Minimum: deref(r.Minimum), Maximum: deref(r.Maximum)})
		}
	}
	for ns, rules := range p.Float {
		for k, r := range rules {
			out = append(out, PolicyRule{Namespace: ns, Key: k, Type: RuleTypeFloat, Required: r.Required,
				Default: deref(r.Default), Minimum: deref(r.Minimum), Maximum: deref(r.Maximum)})
		}
	}
	for ns, rules := range p.Bool {
		for k, r := range rules {
			out = append(out, PolicyRule{Namespace: ns, Key: k, Type: RuleTypeBool, Required: r.Required, Default: deref(r.Default)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Defaults returns the default values of every rule whose namespace prefix
// applies to ns.
func (p ConfigPolicy) Defaults(ns Namespace) ConfigMap {
	out := ConfigMap{}
	for _, r := range p.Rules() {
		if r.HasDefault() && appliesTo(r.Namespace, ns) {
			_ = out.Set(r.Key, r.Default)
		}
	}
	return out
}

// MissingRequired returns the required rules applying to ns that have no
// default and no value in cfg.
func (p ConfigPolicy) MissingRequired(ns Namespace, cfg ConfigMap) []PolicyRule {
	var out []PolicyRule
	for _, r := range p.Rules() {
		if !r.Required || r.HasDefault() || !appliesTo(r.Namespace, ns) {
			continue
		}
		if _, ok := cfg[r.Key]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func appliesTo(prefix string, ns Namespace) bool {
	if prefix == "" {
		return true
	}
	want := strings.Split(prefix, ".")
	if len(want) > len(ns) {
		return false
	}
	for i, v := range want {
		if ns[i].Value != v && ns[i].Value != DynamicValue {
			return false
		}
	}
	return true
}

func deref[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
