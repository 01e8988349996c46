// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPingCmd() *cobra.Command {
	target := &targetFlags{}
	var (
		count    int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ping [plugin]",
		Short: "Send health checks to a plugin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, target, args)
			if err != nil {
				return err
			}
			defer func() { _ = s.close(ctx) }()

			for i := 0; i < count; i++ {
				if i > 0 {
					time.Sleep(interval)
				}
				start := time.Now()
				if err := s.Ping(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pong from %s: seq=%d time=%s\n", s.pre.Meta.Name, i+1, formatLatency(time.Since(start)))
			}
			return nil
		},
	}
	target.register(cmd.Flags())
	cmd.Flags().IntVarP(&count, "count", "c", 1, "number of pings")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "delay between pings")
	return cmd
}

func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
}
