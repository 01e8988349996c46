// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the snapctl CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapctl",
		Short: "Launch and exercise metric plugins",
		Long: `snapctl starts a metric plugin binary, or attaches to a running one
through its handshake preamble, and issues calls against it.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newPreambleCmd())
	cmd.AddCommand(newPingCmd())
	cmd.AddCommand(newPolicyCmd())
	cmd.AddCommand(newCollectCmd())
	cmd.AddCommand(newStreamCmd())
	cmd.AddCommand(newKillCmd())

	return cmd
}
