// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/snapplugin/pkg/client"
)

type streamConfig struct {
	filters     []string
	settings    []string
	batches     int
	maxBuffer   int64
	maxDuration time.Duration
	jsonOutput  bool
}

func newStreamCmd() *cobra.Command {
	target := &targetFlags{}
	cfg := &streamConfig{}

	cmd := &cobra.Command{
		Use:   "stream [plugin]",
		Short: "Open a metric stream on a stream collector and print batches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd, target, cfg, args)
		},
	}
	target.register(cmd.Flags())
	cmd.Flags().StringArrayVar(&cfg.filters, "filter", nil, "namespace glob to stream (repeatable)")
	cmd.Flags().StringArrayVar(&cfg.settings, "set", nil, "plugin config key=value (repeatable)")
	cmd.Flags().IntVarP(&cfg.batches, "batches", "n", 5, "stop after this many batches (0 streams until interrupted)")
	cmd.Flags().Int64Var(&cfg.maxBuffer, "max-buffer", 0, "metrics per batch (0 keeps the plugin default)")
	cmd.Flags().DurationVar(&cfg.maxDuration, "max-duration", 0, "longest wait before a partial batch is sent")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "print batches as JSON")
	return cmd
}

func runStream(cmd *cobra.Command, target *targetFlags, cfg *streamConfig, args []string) error {
	settings, err := parseSettings(cfg.settings)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	// The session outlives the stream so Kill can still be delivered.
	s, err := openSession(cmd.Context(), cmd, target, args)
	if err != nil {
		return err
	}
	defer func() { _ = s.close(cmd.Context()) }()

	catalog, err := s.GetMetricTypes(ctx, settings)
	if err != nil {
		return err
	}
	catalog, err = filterMetrics(catalog, cfg.filters)
	if err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recv, err := s.StreamMetrics(streamCtx, catalog, client.StreamOptions{
		MaxMetricsBuffer:   cfg.maxBuffer,
		MaxCollectDuration: cfg.maxDuration,
		Config:             settings,
	})
	if err != nil {
		return err
	}

	for n := 1; cfg.batches == 0 || n <= cfg.batches; n++ {
		batch, err := recv()
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		if cfg.jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), viewMetrics(batch)); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "batch %d (%d metrics)\n", n, len(batch))
		if err := writeMetricsTable(cmd.OutOrStdout(), batch); err != nil {
			return err
		}
	}
	return nil
}
