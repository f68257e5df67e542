// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the hyperperms CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hyperperms",
		Short: "HyperPerms - a permission authorization engine",
		Long: `HyperPerms resolves permission checks against weighted group
inheritance, wildcard nodes with negation, and context-sensitive grants.
Users and groups load from a YAML file or PostgreSQL.`,
		SilenceUsage: true,
	}

	// Flag defaults mirror DefaultConfig: posflag falls back to a flag's
	// default only for keys the config file does not provide.
	cmd.PersistentFlags().String("config", "", "config file path")
	cmd.PersistentFlags().String("storage.backend", "yaml", "storage backend (yaml or postgres)")
	cmd.PersistentFlags().String("storage.path", "hyperperms.yaml", "yaml store path")
	cmd.PersistentFlags().String("storage.database_url", "", "postgres connection URL")
	cmd.PersistentFlags().String("log.format", "json", "log format (json or text)")
	cmd.PersistentFlags().String("log.level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewGroupCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
