// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func newKillCmd() *cobra.Command {
	target := &targetFlags{}

	cmd := &cobra.Command{
		Use:   "kill",
		Short: "Ask a running plugin to shut down",
		Long:  `Send Kill to a plugin attached through its preamble (--attach).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if target.attach == "" {
				return oops.Code("INVALID_ARGS").Errorf("kill requires --attach")
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, target, args)
			if err != nil {
				return err
			}
			defer func() { _ = s.close(ctx) }()

			if err := s.Kill(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "kill sent to %s at %s\n", s.pre.Meta.Name, s.pre.ListenAddress)
			return nil
		},
	}
	target.register(cmd.Flags())
	return cmd
}
