// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package main

import (
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/hyperperms/hyperperms/internal/contexts"
)

// NewCheckCmd creates the check subcommand.
func NewCheckCmd() *cobra.Command {
	var (
		contextPairs []string
		withTrace    bool
		expand       bool
	)

	cmd := &cobra.Command{
		Use:   "check <username> <permission>",
		Short: "Check a permission for a user",
		Long: `Check resolves the user's effective permissions under the given
contexts and answers with the tri-state result: true, false or undefined.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], args[1], contextPairs, withTrace, expand)
		},
	}

	cmd.Flags().StringArrayVar(&contextPairs, "context", nil, "active context as key=value (repeatable)")
	cmd.Flags().BoolVar(&withTrace, "trace", false, "explain which node decided the answer")
	cmd.Flags().BoolVar(&expand, "expand", false, "list the expanded effective permissions")

	return cmd
}

func runCheck(cmd *cobra.Command, username, permission string, contextPairs []string, withTrace, expand bool) error {
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

	user, err := env.users.GetUserByName(cmd.Context(), username)
	if err != nil {
		return err
	}

	if withTrace {
		trace, err := env.resolver.CheckWithTrace(user, permission, active)
		if err != nil {
			return err
		}
		cmd.Println(trace.String())
	} else {
		state, err := env.resolver.Check(user, permission, active)
		if err != nil {
			return err
		}
		cmd.Println(state.String())
	}

	if expand {
		resolved, err := env.resolver.Resolve(user, active)
		if err != nil {
			return err
		}
		cmd.Println("effective permissions:")
		for _, p := range resolved.ExpandedPermissions(env.perms) {
			cmd.Println("  " + p)
		}
	}
	return nil
}

// parseContextPairs turns repeated key=value flags into a ContextSet.
func parseContextPairs(pairs []string) (contexts.ContextSet, error) {
	if len(pairs) == 0 {
		return contexts.Empty(), nil
	}
	b := contexts.NewBuilder()
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return contexts.Empty(), oops.
				Code("INVALID_CONTEXT").
				With("pair", pair).
				Errorf("context must be key=value, got %q", pair)
		}
		b.Add(key, value)
	}
	return b.Build()
}
