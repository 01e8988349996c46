// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package diagnostic prints a self-check report for a collector started
// without framework config: runtime details, the config policy, the metric
// catalog and one round of collected values.
package diagnostic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/shirou/gopsutil/v4/host"
	"gopkg.in/yaml.v3"

	"github.com/holomush/snapplugin/pkg/errutil"
	"github.com/holomush/snapplugin/pkg/plugin"
)

// HostInfoFunc returns details about the machine running the plugin.
type HostInfoFunc func(ctx context.Context) (*host.InfoStat, error)

// Option configures a Report.
type Option func(*Report)

// WithLogger sets the logger used for missing-config errors.
func WithLogger(l *slog.Logger) Option {
	return func(r *Report) { r.logger = l }
}

// WithHostInfo overrides the host lookup.
func WithHostInfo(fn HostInfoFunc) Option {
	return func(r *Report) { r.hostInfo = fn }
}

// Report renders the diagnostic output for one collector.
type Report struct {
	meta      plugin.Meta
	collector plugin.Collector
	config    plugin.ConfigMap
	out       io.Writer
	logger    *slog.Logger
	hostInfo  HostInfoFunc
}

// New creates a report writing to out. cfg is the config supplied on the
// command line, possibly empty.
func New(meta plugin.Meta, c plugin.Collector, cfg plugin.ConfigMap, out io.Writer, opts ...Option) *Report {
	if cfg == nil {
		cfg = plugin.ConfigMap{}
	}
	r := &Report{
		meta:      meta,
		collector: c,
		config:    cfg,
		out:       out,
		logger:    slog.Default(),
		hostInfo:  host.InfoWithContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run prints every section in order. Missing required config is logged and
// ends the report early without an error; failures from the collector are
// returned.
func (r *Report) Run(ctx context.Context) error {
	start := time.Now()

	r.section("runtime details", func() error {
		r.runtime(ctx)
		return nil
	})

	policy, err := r.collector.GetConfigPolicy(ctx)
	if err != nil {
		return oops.Code("DIAGNOSTIC_FAILED").With("section", "config policy").Wrap(err)
	}
	var missing []plugin.PolicyRule
	r.section("config policy", func() error {
		missing = r.policy(policy)
		return nil
	})
	if len(missing) > 0 {
		for _, rule := range missing {
			r.logger.ErrorContext(ctx, fmt.Sprintf("%s required by plugin and not provided in config", rule.Key),
				"namespace", rule.Namespace)
		}
		r.logger.ErrorContext(ctx, `You can provide config in form of "--config '{"key": "value", "answer": 42}'"`)
		return nil
	}

	cfg := r.config.Merge(nil)
	for _, rule := range policy.Rules() {
		if _, ok := cfg[rule.Key]; !ok && rule.HasDefault() {
			cfg[rule.Key] = rule.Default
		}
	}

	if err := r.section("effective config", func() error { return r.effectiveConfig(cfg) }); err != nil {
		return err
	}

	var catalog []plugin.Metric
	if err := r.section("metric catalog", func() error {
		var err error
		catalog, err = r.catalog(ctx, cfg)
		return err
	}); err != nil {
		return err
	}

	for i := range catalog {
		mcfg := cfg.Merge(nil)
		for k, v := range policy.Defaults(catalog[i].Namespace) {
			if _, ok := mcfg[k]; !ok {
				mcfg[k] = v
			}
		}
		catalog[i].Config = mcfg
	}

	if err := r.section("collected metrics", func() error { return r.collected(ctx, catalog) }); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Printing diagnostic took %s\n\n", time.Since(start))
	return nil
}

func (r *Report) section(name string, fn func() error) error {
	start := time.Now()
	if err := fn(); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Printing %s took %s\n\n", name, time.Since(start))
	return nil
}

func (r *Report) runtime(ctx context.Context) {
	fmt.Fprintf(r.out, "Runtime Details:\n\tPlugin Name: %s, Plugin Version: %d\n", r.meta.Name, r.meta.Version)
	fmt.Fprintf(r.out, "\tRPC Type: %s, RPC Version: %d\n", r.meta.RPCType, r.meta.RPCVersion)

	platform := runtime.GOOS
	arch := runtime.GOARCH
	if info, err := r.hostInfo(ctx); err == nil && info != nil {
		if info.Platform != "" {
			platform = strings.TrimSpace(fmt.Sprintf("%s %s %s", info.OS, info.Platform, info.PlatformVersion))
		}
		if info.KernelArch != "" {
			arch = info.KernelArch
		}
	} else if err != nil {
		r.logger.DebugContext(ctx, "host info unavailable", "error", err)
	}
	fmt.Fprintf(r.out, "\tPlatform: %s\n\tArchitecture: %s\n\tGo Version: %s\n", platform, arch, runtime.Version())
}

func (r *Report) policy(policy plugin.ConfigPolicy) []plugin.PolicyRule {
	fmt.Fprintln(r.out, "Config Policy:")
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAMESPACE\tKEY\tTYPE\tREQUIRED\tDEFAULT\tMINIMUM\tMAXIMUM")

	var missing []plugin.PolicyRule
	for _, rule := range policy.Rules() {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			rule.Namespace, rule.Key, rule.Type, rule.Required,
			cell(rule.Default), cell(rule.Minimum), cell(rule.Maximum))
		if rule.Required && !rule.HasDefault() {
			if _, ok := r.config[rule.Key]; !ok {
				missing = append(missing, rule)
			}
		}
	}
	_ = w.Flush()
	return missing
}

func (r *Report) effectiveConfig(cfg plugin.ConfigMap) error {
	fmt.Fprintln(r.out, "Effective config:")
	if len(cfg) == 0 {
		fmt.Fprintln(r.out, "\t{}")
		return nil
	}
	data, err := yaml.Marshal(map[string]any(cfg))
	if err != nil {
		return oops.Code("DIAGNOSTIC_FAILED").With("section", "effective config").Wrap(err)
	}
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		fmt.Fprintf(r.out, "\t%s\n", line)
	}
	return nil
}

func (r *Report) catalog(ctx context.Context, cfg plugin.ConfigMap) ([]plugin.Metric, error) {
	fmt.Fprintln(r.out, "Metric catalog will be updated to include following namespaces:")
	var mts []plugin.Metric
	err := errutil.Capture("GetMetricTypes", func() error {
		var err error
		mts, err = r.collector.GetMetricTypes(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, oops.Code("DIAGNOSTIC_FAILED").With("section", "metric catalog").Wrap(err)
	}
	for _, m := range mts {
		fmt.Fprintf(r.out, "\t%s\n", m.Namespace)
	}
	return mts, nil
}

func (r *Report) collected(ctx context.Context, catalog []plugin.Metric) error {
	fmt.Fprintln(r.out, "Metrics that can be collected right now are:")
	var mts []plugin.Metric
	err := errutil.Capture("CollectMetrics", func() error {
		var err error
		mts, err = r.collector.CollectMetrics(ctx, catalog)
		return err
	})
	if err != nil {
		return oops.Code("DIAGNOSTIC_FAILED").With("section", "collected metrics").Wrap(err)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAMESPACE\tTYPE\tVALUE")
	for _, m := range mts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", m.Namespace, m.DataType(), cell(m.Data))
	}
	return w.Flush()
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return fmt.Sprintf("%x", t)
	default:
		return fmt.Sprint(t)
	}
}
