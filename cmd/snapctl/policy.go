// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

func newPolicyCmd() *cobra.Command {
	target := &targetFlags{}
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "policy [plugin]",
		Short: "Print a plugin's config policy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, target, args)
			if err != nil {
				return err
			}
			defer func() { _ = s.close(ctx) }()

			policy, err := s.GetConfigPolicy(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), policy.Rules())
			}
			return writePolicyTable(cmd.OutOrStdout(), policy)
		},
	}
	target.register(cmd.Flags())
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the rules as JSON")
	return cmd
}
