// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package resolver

import (
	"sort"
	"strings"

	"github.com/hyperperms/hyperperms/internal/contexts"
	"github.com/hyperperms/hyperperms/internal/model"
	"github.com/hyperperms/hyperperms/internal/wildcard"
)

// ResolvedPermissions is an immutable snapshot of a holder's effective
// permission map under one context set. Keys are literal node patterns
// (exact permissions or wildcards), not pre-expanded concrete permissions.
type ResolvedPermissions struct {
	permissions map[string]bool
	sources     map[string]string // key -> owning group, "" for direct user nodes
	contexts    contexts.ContextSet
	aliases     AliasTable
}

func newResolvedPermissions(permissions map[string]bool, sources map[string]string, active contexts.ContextSet, aliases AliasTable) *ResolvedPermissions {
	return &ResolvedPermissions{
		permissions: permissions,
		sources:     sources,
		contexts:    active,
		aliases:     aliases,
	}
}

// Contexts returns the context set this snapshot was computed under.
func (rp *ResolvedPermissions) Contexts() contexts.ContextSet {
	return rp.contexts
}

// Permissions returns a copy of the effective pattern→value map.
func (rp *ResolvedPermissions) Permissions() map[string]bool {
	out := make(map[string]bool, len(rp.permissions))
	for k, v := range rp.permissions {
		out[k] = v
	}
	return out
}

// Source returns the group that contributed the entry for the given pattern
// key. The second return is false if the key is absent; an empty group name
// means the user's own nodes contributed it.
func (rp *ResolvedPermissions) Source(pattern string) (string, bool) {
	source, ok := rp.sources[strings.ToLower(pattern)]
	return source, ok
}

// Check answers a single permission query against the snapshot. The whole
// wildcard algorithm runs against the unstripped permission first, then
// against its namespace-stripped form, and only if both are Undefined is the
// alias table consulted, each alias candidate getting the same two passes.
func (rp *ResolvedPermissions) Check(permission string) wildcard.TriState {
	return rp.CheckWithTrace(permission).Result
}

// CheckWithTrace mirrors Check but records which entry matched, at which
// tier, and whether an ancestor group or the user's own node supplied it.
func (rp *ResolvedPermissions) CheckWithTrace(permission string) Trace {
	permission = strings.ToLower(strings.TrimSpace(permission))
	if permission == "" {
		return Trace{Result: wildcard.Undefined, MatchType: wildcard.MatchNone}
	}

	match := rp.matchWithStripping(permission)
	if !match.Result.IsDefined() && rp.aliases != nil {
		for _, candidate := range rp.aliasCandidates(permission) {
			if aliased := rp.matchWithStripping(candidate); aliased.Result.IsDefined() {
				match = aliased
				break
			}
		}
	}

	trace := Trace{
		Permission: permission,
		Result:     match.Result,
		MatchType:  match.Type,
		Pattern:    match.Pattern,
	}
	if match.Result.IsDefined() {
		group, known := rp.sources[strings.TrimPrefix(match.Pattern, model.NegationPrefix)]
		if known && group != "" {
			trace.Group = group
		} else {
			// A match with no recorded group owner is attributed to the
			// user's own nodes.
			trace.Direct = true
		}
	}
	return trace
}

// matchWithStripping runs the matcher on the permission and, if that yields
// Undefined, once more on the namespace-stripped form. The two passes are
// never interleaved.
func (rp *ResolvedPermissions) matchWithStripping(permission string) wildcard.MatchResult {
	match := wildcard.CheckWithTrace(permission, rp.permissions)
	if match.Result.IsDefined() {
		return match
	}
	if stripped, ok := wildcard.StripNamespace(permission); ok {
		return wildcard.CheckWithTrace(stripped, rp.permissions)
	}
	return match
}

// aliasCandidates collects the alias table's candidates for a permission:
// its simplified aliases plus the native permissions it may stand for.
func (rp *ResolvedPermissions) aliasCandidates(permission string) []string {
	var out []string
	seen := map[string]struct{}{permission: {}}
	for _, c := range rp.aliases.Aliases(permission) {
		c = strings.ToLower(c)
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	for _, c := range rp.aliases.ActualPermissions(permission) {
		c = strings.ToLower(c)
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// ExpandedPermissions flattens the snapshot into concrete permission strings
// for host surfaces that only support set membership. Granted wildcards are
// expanded through the registry's known-permission universe; granted
// concrete entries carry over as-is plus their simplified aliases. Denied
// entries are omitted.
func (rp *ResolvedPermissions) ExpandedPermissions(registry PermissionRegistry) []string {
	set := make(map[string]struct{})
	add := func(p string) {
		if p != "" {
			set[p] = struct{}{}
		}
	}

	for pattern, granted := range rp.permissions {
		if !granted {
			continue
		}
		if wildcard.IsWildcard(pattern) {
			if registry != nil {
				for _, p := range registry.MatchingPermissions(pattern) {
					add(strings.ToLower(p))
				}
			}
			continue
		}
		add(pattern)
	}

	if rp.aliases != nil {
		base := make([]string, 0, len(set))
		for p := range set {
			base = append(base, p)
		}
		for _, p := range base {
			for _, alias := range rp.aliases.Aliases(p) {
				add(strings.ToLower(alias))
			}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
