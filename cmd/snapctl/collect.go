// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/holomush/snapplugin/pkg/plugin"
)

type collectConfig struct {
	filters    []string
	settings   []string
	processors []string
	publisher  string
	jsonOutput bool
}

func newCollectCmd() *cobra.Command {
	target := &targetFlags{}
	cfg := &collectConfig{}

	cmd := &cobra.Command{
		Use:   "collect [plugin]",
		Short: "Collect metrics once, optionally through processors and a publisher",
		Long: `Fetch the collector's catalog, keep the namespaces matching --filter,
collect their values and print them. Each --process plugin is launched and
applied in order; --publish hands the result to a publisher plugin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, target, cfg, args)
		},
	}
	target.register(cmd.Flags())
	cmd.Flags().StringArrayVar(&cfg.filters, "filter", nil, "namespace glob to collect (repeatable)")
	cmd.Flags().StringArrayVar(&cfg.settings, "set", nil, "plugin config key=value (repeatable)")
	cmd.Flags().StringArrayVar(&cfg.processors, "process", nil, "processor plugin applied to the collected metrics (repeatable)")
	cmd.Flags().StringVar(&cfg.publisher, "publish", "", "publisher plugin that receives the final metrics")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "print metrics as JSON")
	return cmd
}

func runCollect(cmd *cobra.Command, target *targetFlags, cfg *collectConfig, args []string) error {
	ctx := cmd.Context()
	settings, err := parseSettings(cfg.settings)
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cmd, target, args)
	if err != nil {
		return err
	}
	defer func() { _ = s.close(ctx) }()

	mts, err := collectOnce(ctx, s, settings, cfg.filters)
	if err != nil {
		return err
	}

	for _, path := range cfg.processors {
		mts, err = throughProcessor(ctx, cmd, target, path, mts, settings)
		if err != nil {
			return err
		}
	}

	if cfg.publisher != "" {
		pub, err := launch(ctx, cmd, target, cfg.publisher)
		if err != nil {
			return err
		}
		defer func() { _ = pub.close(ctx) }()
		if err := pub.Publish(ctx, mts, settings); err != nil {
			return err
		}
	}

	if cfg.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), viewMetrics(mts))
	}
	return writeMetricsTable(cmd.OutOrStdout(), mts)
}

func collectOnce(ctx context.Context, s *session, settings plugin.ConfigMap, filters []string) ([]plugin.Metric, error) {
	catalog, err := s.GetMetricTypes(ctx, settings)
	if err != nil {
		return nil, err
	}
	catalog, err = filterMetrics(catalog, filters)
	if err != nil {
		return nil, err
	}
	for i := range catalog {
		catalog[i].Config = catalog[i].Config.Merge(settings)
	}
	return s.CollectMetrics(ctx, catalog)
}

func throughProcessor(ctx context.Context, cmd *cobra.Command, target *targetFlags, path string, mts []plugin.Metric, settings plugin.ConfigMap) ([]plugin.Metric, error) {
	proc, err := launch(ctx, cmd, target, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = proc.close(ctx) }()
	return proc.Process(ctx, mts, settings)
}
