// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package main

import (
	"sort"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewGroupCmd creates the group subcommand.
func NewGroupCmd() *cobra.Command {
	var contextPairs []string

	cmd := &cobra.Command{
		Use:   "group <name>",
		Short: "Show a group's effective permissions",
		Long: `Group resolves a single group through its inheritance chain and
prints the flattened permission map it contributes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroup(cmd, args[0], contextPairs)
		},
	}

	cmd.Flags().StringArrayVar(&contextPairs, "context", nil, "active context as key=value (repeatable)")

	return cmd
}

func runGroup(cmd *cobra.Command, name string, contextPairs []string) error {
	cfg, err := loadConfigFromCmd(cmd.Flags())
	if err != nil {
		return err
	}

	active, err := parseContextPairs(contextPairs)
	if err != nil {
		return err
	}

	env, err := buildEnvironment(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer env.cleanup()

	group, ok := env.groups.Get(name)
	if !ok {
		return oops.Code("GROUP_NOT_FOUND").With("name", name).Errorf("group %q is not registered", name)
	}

	resolved, err := env.resolver.ResolveGroup(group, active)
	if err != nil {
		return err
	}

	perms := resolved.Permissions()
	keys := make([]string, 0, len(perms))
	for key := range perms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	cmd.Printf("group %s (weight %d):\n", group.Name, group.Weight)
	for _, key := range keys {
		if perms[key] {
			cmd.Println("  " + key)
		} else {
			cmd.Println("  " + key + " (denied)")
		}
	}
	return nil
}
