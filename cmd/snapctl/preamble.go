// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

func newPreambleCmd() *cobra.Command {
	target := &targetFlags{}
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "preamble [plugin]",
		Short: "Start a plugin and print its handshake preamble",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), cmd, target, args)
			if err != nil {
				return err
			}
			defer func() { _ = s.close(cmd.Context()) }()

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), s.pre)
			}
			return writePreambleTable(cmd.OutOrStdout(), s.pre)
		},
	}
	target.register(cmd.Flags())
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the preamble as JSON")
	return cmd
}
