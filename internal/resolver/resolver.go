// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

// Package resolver computes effective permission state for users and groups.
// Each Resolve call is a pure computation over immutable inputs; nothing is
// cached or retained across calls, so a Resolver is safe for concurrent use
// as long as its GroupLoader is.
package resolver

import (
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/hyperperms/hyperperms/internal/contexts"
	"github.com/hyperperms/hyperperms/internal/inheritance"
	"github.com/hyperperms/hyperperms/internal/model"
	"github.com/hyperperms/hyperperms/internal/wildcard"
)

// AliasTable maps between the host's native permission namespace and the
// simplified plugin-facing namespace. Consulted only after a direct and
// wildcard match both come up Undefined.
type AliasTable interface {
	// Aliases returns simplified aliases of the given permission.
	Aliases(permission string) []string

	// ActualPermissions returns the native permissions a simplified alias
	// stands for.
	ActualPermissions(permission string) []string
}

// PermissionRegistry knows the universe of concrete permission strings.
// Used only when expanding wildcards for contains-only host surfaces.
type PermissionRegistry interface {
	// MatchingPermissions returns the known concrete permissions matched by
	// the wildcard pattern.
	MatchingPermissions(pattern string) []string
}

// Config holds Resolver dependencies. GroupLoader is required; everything
// else is optional.
type Config struct {
	// GroupLoader serves groups to inheritance traversal.
	GroupLoader inheritance.GroupLoader

	// Aliases enables the alias fallback in ResolvedPermissions.Check.
	Aliases AliasTable

	// Clock overrides time.Now for node-expiry decisions. Tests use this to
	// pin temporary-node behavior.
	Clock func() time.Time
}

// Resolver answers permission queries by flattening group inheritance and
// direct nodes into an effective permission map.
type Resolver struct {
	graph   *inheritance.Graph
	loader  inheritance.GroupLoader
	aliases AliasTable
	clock   func() time.Time
}

// New creates a Resolver from cfg. Returns an error if no GroupLoader is
// configured.
func New(cfg Config) (*Resolver, error) {
	if cfg.GroupLoader == nil {
		return nil, oops.
			Code("INVALID_CONFIG").
			Errorf("resolver requires a GroupLoader")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{
		graph:   inheritance.NewGraph(cfg.GroupLoader),
		loader:  cfg.GroupLoader,
		aliases: cfg.Aliases,
		clock:   clock,
	}, nil
}

// Resolve computes the user's effective permission map under the active
// contexts. Ancestor groups apply lowest weight first so higher-weight
// groups overwrite conflicting keys, and the user's direct nodes apply last
// and always win. Unloadable groups contribute nothing.
func (r *Resolver) Resolve(user *model.User, active contexts.ContextSet) (*ResolvedPermissions, error) {
	if user == nil {
		return nil, oops.
			Code("INVALID_ARGUMENT").
			Errorf("resolve: user must not be nil")
	}

	start := time.Now()
	now := r.clock()

	groups := r.graph.ResolveInheritance(user.StartingGroups(), active, now)

	permissions := make(map[string]bool)
	sources := make(map[string]string)
	for _, group := range groups {
		applyNodes(permissions, sources, group.Nodes, model.NormalizeGroupName(group.Name), active, now)
	}
	applyNodes(permissions, sources, user.Nodes, "", active, now)

	observeResolve(time.Since(start))
	slog.Debug("resolved user permissions",
		"user", user.ID.String(),
		"contexts", active.String(),
		"groups", len(groups),
		"entries", len(permissions))

	return newResolvedPermissions(permissions, sources, active, r.aliases), nil
}

// ResolveGroup computes a group's own effective permission map: its ancestry
// with no user overlay. The passed group resolves even when the loader does
// not know it, so freshly-built groups can be inspected before registration.
func (r *Resolver) ResolveGroup(group *model.Group, active contexts.ContextSet) (*ResolvedPermissions, error) {
	if group == nil {
		return nil, oops.
			Code("INVALID_ARGUMENT").
			Errorf("resolve group: group must not be nil")
	}

	now := r.clock()
	name := model.NormalizeGroupName(group.Name)

	overlay := func(wanted string) (*model.Group, bool) {
		if wanted == name {
			return group, true
		}
		return r.loader(wanted)
	}

	groups := inheritance.NewGraph(overlay).ResolveInheritance([]string{name}, active, now)

	permissions := make(map[string]bool)
	sources := make(map[string]string)
	for _, g := range groups {
		applyNodes(permissions, sources, g.Nodes, model.NormalizeGroupName(g.Name), active, now)
	}
	return newResolvedPermissions(permissions, sources, active, r.aliases), nil
}

// Check resolves the user and answers a single permission query.
func (r *Resolver) Check(user *model.User, permission string, active contexts.ContextSet) (wildcard.TriState, error) {
	resolved, err := r.Resolve(user, active)
	if err != nil {
		return wildcard.Undefined, err
	}
	result := resolved.Check(permission)
	observeCheck(result)
	return result, nil
}

// CheckWithTrace is Check plus the diagnostic trace of how the answer was
// reached.
func (r *Resolver) CheckWithTrace(user *model.User, permission string, active contexts.ContextSet) (Trace, error) {
	resolved, err := r.Resolve(user, active)
	if err != nil {
		return Trace{}, err
	}
	trace := resolved.CheckWithTrace(permission)
	observeCheck(trace.Result)
	return trace, nil
}

// HasPermission collapses Check to a boolean; Undefined counts as false.
func (r *Resolver) HasPermission(user *model.User, permission string, active contexts.ContextSet) (bool, error) {
	result, err := r.Check(user, permission, active)
	if err != nil {
		return false, err
	}
	return result.AsBool(), nil
}

// applyNodes writes each applicable node's entry into the permission map,
// last writer wins per key. Expired nodes, group-membership nodes, and nodes
// whose contexts are not satisfied are skipped.
func applyNodes(permissions map[string]bool, sources map[string]string, nodes []model.Node, source string, active contexts.ContextSet, now time.Time) {
	for _, n := range nodes {
		if n.IsExpired(now) || n.IsGroupNode() || !n.AppliesIn(active) {
			continue
		}
		key, value := n.Entry()
		permissions[key] = value
		sources[key] = source
	}
}
