// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package model

import (
	"strings"
	"time"

	"github.com/hyperperms/hyperperms/internal/contexts"
)

// Group is a named bundle of permission nodes with a weight and parent
// links. Weight totally orders groups for override priority: lower weight
// is applied first so higher-weight groups win conflicting keys. Names are
// case-insensitive; NormalizeGroupName is applied everywhere names meet.
type Group struct {
	Name    string
	Weight  int
	Parents []string
	Nodes   []Node
}

// NormalizeGroupName lowercases and trims a group name for case-insensitive
// identity.
func NormalizeGroupName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParentsIn returns the parent group names that apply under the active
// contexts: the static parent list (unconditional) plus any non-expired
// group-membership nodes whose contexts are satisfied and whose effective
// value is true.
func (g *Group) ParentsIn(active contexts.ContextSet, now time.Time) []string {
	out := make([]string, 0, len(g.Parents))
	for _, p := range g.Parents {
		out = append(out, NormalizeGroupName(p))
	}
	for _, n := range g.Nodes {
		if !n.IsGroupNode() || n.IsExpired(now) || !n.AppliesIn(active) {
			continue
		}
		if _, value := n.Entry(); value {
			out = append(out, NormalizeGroupName(n.GroupName()))
		}
	}
	return out
}

// AllParentNames returns every parent edge regardless of context or expiry.
// Cycle detection uses this so a context-gated edge cannot smuggle in a loop.
func (g *Group) AllParentNames() []string {
	out := make([]string, 0, len(g.Parents))
	for _, p := range g.Parents {
		out = append(out, NormalizeGroupName(p))
	}
	for _, n := range g.Nodes {
		if n.IsGroupNode() {
			out = append(out, NormalizeGroupName(n.GroupName()))
		}
	}
	return out
}
