// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package resolver_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperperms/hyperperms/internal/contexts"
	"github.com/hyperperms/hyperperms/internal/model"
	"github.com/hyperperms/hyperperms/internal/resolver"
	"github.com/hyperperms/hyperperms/internal/wildcard"
)

// fixtureLoader serves the given groups by normalized name.
func fixtureLoader(groups ...*model.Group) func(string) (*model.Group, bool) {
	byName := make(map[string]*model.Group, len(groups))
	for _, g := range groups {
		byName[model.NormalizeGroupName(g.Name)] = g
	}
	return func(name string) (*model.Group, bool) {
		g, ok := byName[name]
		return g, ok
	}
}

func newResolver(t *testing.T, cfg resolver.Config) *resolver.Resolver {
	t.Helper()
	r, err := resolver.New(cfg)
	require.NoError(t, err)
	return r
}

func TestNewRequiresGroupLoader(t *testing.T) {
	_, err := resolver.New(resolver.Config{})
	require.Error(t, err)
}

func TestResolveNilUser(t *testing.T) {
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader()})
	_, err := r.Resolve(nil, contexts.Empty())
	require.Error(t, err)
}

func TestHigherWeightGroupOverridesLower(t *testing.T) {
	a := &model.Group{Name: "a", Weight: 1, Nodes: []model.Node{
		model.MustNode("-x", true), // denies x
	}}
	b := &model.Group{Name: "b", Weight: 5, Nodes: []model.Node{
		model.MustNode("x", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(a, b)})

	user := &model.User{PrimaryGroup: "a", InheritedGroups: []string{"a", "b"}}
	resolved, err := r.Resolve(user, contexts.Empty())
	require.NoError(t, err)

	assert.Equal(t, wildcard.True, resolved.Check("x"))
	source, ok := resolved.Source("x")
	require.True(t, ok)
	assert.Equal(t, "b", source)
}

func TestUserNodesOverrideGroups(t *testing.T) {
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("y", false),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g)})

	user := &model.User{
		PrimaryGroup: "default",
		Nodes:        []model.Node{model.MustNode("y", true)},
	}
	resolved, err := r.Resolve(user, contexts.Empty())
	require.NoError(t, err)

	assert.Equal(t, wildcard.True, resolved.Check("y"))
	source, ok := resolved.Source("y")
	require.True(t, ok)
	assert.Empty(t, source, "user-held entries record no owning group")
}

func TestLaterNodesInSameListOverrideEarlier(t *testing.T) {
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("chat.color", true),
		model.MustNode("-chat.color", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g)})

	user := &model.User{PrimaryGroup: "default"}
	resolved, err := r.Resolve(user, contexts.Empty())
	require.NoError(t, err)

	assert.Equal(t, wildcard.False, resolved.Check("chat.color"))
}

func TestPrimaryGroupAddedDefensively(t *testing.T) {
	def := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("spawn.use", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(def)})

	// Primary group missing from the inherited list still resolves.
	user := &model.User{PrimaryGroup: "default", InheritedGroups: nil}
	resolved, err := r.Resolve(user, contexts.Empty())
	require.NoError(t, err)
	assert.Equal(t, wildcard.True, resolved.Check("spawn.use"))
}

func TestContextFiltering(t *testing.T) {
	nether := contexts.MustOf(contexts.Pair{Key: "world", Value: "nether"})
	overworld := contexts.MustOf(contexts.Pair{Key: "world", Value: "overworld"})

	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("nether.access", true, model.WithContexts(nether)),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g)})
	user := &model.User{PrimaryGroup: "default"}

	for _, tt := range []struct {
		name   string
		active contexts.ContextSet
		want   wildcard.TriState
	}{
		{name: "empty contexts", active: contexts.Empty(), want: wildcard.Undefined},
		{name: "other world", active: overworld, want: wildcard.Undefined},
		{name: "matching world", active: nether, want: wildcard.True},
	} {
		t.Run(tt.name, func(t *testing.T) {
			resolved, err := r.Resolve(user, tt.active)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resolved.Check("nether.access"))
		})
	}
}

func TestExpiredNodesSkipped(t *testing.T) {
	now := time.Now()
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("event.fly", true, model.WithExpiry(now.Add(-time.Minute))),
	}}
	r := newResolver(t, resolver.Config{
		GroupLoader: fixtureLoader(g),
		Clock:       func() time.Time { return now },
	})

	resolved, err := r.Resolve(&model.User{PrimaryGroup: "default"}, contexts.Empty())
	require.NoError(t, err)
	assert.Equal(t, wildcard.Undefined, resolved.Check("event.fly"))
}

func TestGroupMembershipNodesExcludedFromMap(t *testing.T) {
	parent := &model.Group{Name: "vip", Nodes: []model.Node{
		model.MustNode("vip.kit", true),
	}}
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("group.vip", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g, parent)})

	resolved, err := r.Resolve(&model.User{PrimaryGroup: "default"}, contexts.Empty())
	require.NoError(t, err)

	// The membership edge was followed, not materialized as a permission.
	assert.Equal(t, wildcard.True, resolved.Check("vip.kit"))
	assert.Equal(t, wildcard.Undefined, resolved.Check("group.vip"))
}

func TestResolveIdempotent(t *testing.T) {
	a := &model.Group{Name: "a", Weight: 1, Parents: []string{"b"}, Nodes: []model.Node{
		model.MustNode("one.two", true),
		model.MustNode("-three.four", true),
	}}
	b := &model.Group{Name: "b", Weight: 2, Nodes: []model.Node{
		model.MustNode("one.*", false),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(a, b)})
	user := &model.User{PrimaryGroup: "a", Nodes: []model.Node{
		model.MustNode("five.six", true),
	}}

	first, err := r.Resolve(user, contexts.Empty())
	require.NoError(t, err)
	second, err := r.Resolve(user, contexts.Empty())
	require.NoError(t, err)

	assert.Equal(t, first.Permissions(), second.Permissions())
	assert.True(t, first.Contexts().Equal(second.Contexts()))
}

func TestResolveGroup(t *testing.T) {
	parent := &model.Group{Name: "default", Weight: 0, Nodes: []model.Node{
		model.MustNode("spawn.use", true),
		model.MustNode("chat.color", false),
	}}
	mod := &model.Group{Name: "mod", Weight: 10, Parents: []string{"default"}, Nodes: []model.Node{
		model.MustNode("chat.color", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(parent, mod)})

	resolved, err := r.ResolveGroup(mod, contexts.Empty())
	require.NoError(t, err)

	assert.Equal(t, wildcard.True, resolved.Check("spawn.use"))
	assert.Equal(t, wildcard.True, resolved.Check("chat.color"), "higher-weight child overrides parent")

	_, err = r.ResolveGroup(nil, contexts.Empty())
	require.Error(t, err)
}

func TestResolveGroupUnregistered(t *testing.T) {
	parent := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("spawn.use", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(parent)})

	// A group the loader has never seen still resolves itself and its parents.
	draft := &model.Group{Name: "draft", Weight: 5, Parents: []string{"default"}, Nodes: []model.Node{
		model.MustNode("draft.perm", true),
	}}
	resolved, err := r.ResolveGroup(draft, contexts.Empty())
	require.NoError(t, err)
	assert.Equal(t, wildcard.True, resolved.Check("draft.perm"))
	assert.Equal(t, wildcard.True, resolved.Check("spawn.use"))
}

func TestCheckConvenienceWrappers(t *testing.T) {
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("spawn.use", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g)})
	user := &model.User{PrimaryGroup: "default"}

	result, err := r.Check(user, "spawn.use", contexts.Empty())
	require.NoError(t, err)
	assert.Equal(t, wildcard.True, result)

	ok, err := r.HasPermission(user, "spawn.use", contexts.Empty())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.HasPermission(user, "never.granted", contexts.Empty())
	require.NoError(t, err)
	assert.False(t, ok, "undefined collapses to false")

	trace, err := r.CheckWithTrace(user, "spawn.use", contexts.Empty())
	require.NoError(t, err)
	assert.Equal(t, wildcard.True, trace.Result)
	assert.Equal(t, "group:default", trace.SourceLabel())
}

func TestEmptyPermissionIsUndefined(t *testing.T) {
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader()})
	resolved, err := r.Resolve(&model.User{}, contexts.Empty())
	require.NoError(t, err)

	assert.Equal(t, wildcard.Undefined, resolved.Check(""))
	assert.Equal(t, wildcard.Undefined, resolved.Check("   "))
}

func TestMissingGroupsContributeNothing(t *testing.T) {
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader()})
	user := &model.User{PrimaryGroup: "ghost", InheritedGroups: []string{"phantom"}}

	resolved, err := r.Resolve(user, contexts.Empty())
	require.NoError(t, err)
	assert.Empty(t, resolved.Permissions())
}

func TestTraceAttribution(t *testing.T) {
	g := &model.Group{Name: "vip", Weight: 10, Nodes: []model.Node{
		model.MustNode("fly.use", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g)})
	user := &model.User{
		PrimaryGroup: "vip",
		Nodes:        []model.Node{model.MustNode("-pvp.enable", true)},
	}

	resolved, err := r.Resolve(user, contexts.Empty())
	require.NoError(t, err)

	fromGroup := resolved.CheckWithTrace("fly.use")
	assert.Equal(t, wildcard.True, fromGroup.Result)
	assert.Equal(t, wildcard.MatchExact, fromGroup.MatchType)
	assert.Equal(t, "fly.use", fromGroup.Pattern)
	assert.Equal(t, "vip", fromGroup.Group)
	assert.False(t, fromGroup.Direct)

	fromUser := resolved.CheckWithTrace("pvp.enable")
	assert.Equal(t, wildcard.False, fromUser.Result)
	assert.True(t, fromUser.Direct)
	assert.Equal(t, "user", fromUser.SourceLabel())

	unmatched := resolved.CheckWithTrace("other.thing")
	assert.Equal(t, wildcard.Undefined, unmatched.Result)
	assert.Equal(t, "none", unmatched.SourceLabel())
	assert.Contains(t, unmatched.String(), "undefined")
}

func TestNamespaceStrippedRetry(t *testing.T) {
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("example.teleport", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g)})

	resolved, err := r.Resolve(&model.User{PrimaryGroup: "default"}, contexts.Empty())
	require.NoError(t, err)

	// "com.example.teleport" fails unstripped, then matches once "com." is
	// stripped.
	assert.Equal(t, wildcard.True, resolved.Check("com.example.teleport"))
	// Unstripped entries always win over stripped retries.
	assert.Equal(t, wildcard.True, resolved.Check("example.teleport"))
}

func TestUnstrippedMatchBeatsStrippedRetry(t *testing.T) {
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("-com.example.*", true),
		model.MustNode("example.teleport", true),
	}}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g)})

	resolved, err := r.Resolve(&model.User{PrimaryGroup: "default"}, contexts.Empty())
	require.NoError(t, err)

	// The whole unstripped algorithm (including wildcards) runs before any
	// stripped-form retry.
	assert.Equal(t, wildcard.False, resolved.Check("com.example.teleport"))
}

// staticAliases is a fixture AliasTable over fixed maps.
type staticAliases struct {
	aliases map[string][]string
	actuals map[string][]string
}

func (a staticAliases) Aliases(p string) []string           { return a.aliases[strings.ToLower(p)] }
func (a staticAliases) ActualPermissions(p string) []string { return a.actuals[strings.ToLower(p)] }

func TestAliasFallback(t *testing.T) {
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("worldedit.wand", true),
	}}
	aliases := staticAliases{
		actuals: map[string][]string{"we.wand": {"worldedit.wand"}},
		aliases: map[string][]string{"worldedit.wand": {"we.wand"}},
	}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g), Aliases: aliases})

	resolved, err := r.Resolve(&model.User{PrimaryGroup: "default"}, contexts.Empty())
	require.NoError(t, err)

	// Direct match needs no aliases.
	assert.Equal(t, wildcard.True, resolved.Check("worldedit.wand"))
	// The simplified alias resolves through the actual permission.
	assert.Equal(t, wildcard.True, resolved.Check("we.wand"))
	// Unknown permissions stay undefined even with a table present.
	assert.Equal(t, wildcard.Undefined, resolved.Check("we.brush"))
}

func TestAliasConsultedOnlyWhenUndefined(t *testing.T) {
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("-we.wand", true),
		model.MustNode("worldedit.wand", true),
	}}
	aliases := staticAliases{
		actuals: map[string][]string{"we.wand": {"worldedit.wand"}},
	}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g), Aliases: aliases})

	resolved, err := r.Resolve(&model.User{PrimaryGroup: "default"}, contexts.Empty())
	require.NoError(t, err)

	// The direct denial wins; the alias that would grant is never consulted.
	assert.Equal(t, wildcard.False, resolved.Check("we.wand"))
}

// staticRegistry is a fixture PermissionRegistry over a fixed universe.
type staticRegistry struct {
	universe []string
}

func (r staticRegistry) MatchingPermissions(pattern string) []string {
	var out []string
	switch {
	case pattern == "*":
		out = append(out, r.universe...)
	case strings.HasSuffix(pattern, ".*"):
		prefix := strings.TrimSuffix(pattern, "*")
		for _, p := range r.universe {
			if strings.HasPrefix(p, prefix) {
				out = append(out, p)
			}
		}
	}
	return out
}

func TestExpandedPermissions(t *testing.T) {
	g := &model.Group{Name: "default", Nodes: []model.Node{
		model.MustNode("essentials.*", true),
		model.MustNode("spawn.use", true),
		model.MustNode("-chat.color", true), // denied, omitted
	}}
	aliases := staticAliases{
		aliases: map[string][]string{"spawn.use": {"sp.use"}},
	}
	r := newResolver(t, resolver.Config{GroupLoader: fixtureLoader(g), Aliases: aliases})

	resolved, err := r.Resolve(&model.User{PrimaryGroup: "default"}, contexts.Empty())
	require.NoError(t, err)

	registry := staticRegistry{universe: []string{
		"essentials.fly", "essentials.tp", "chat.color", "spawn.use",
	}}
	expanded := resolved.ExpandedPermissions(registry)
	assert.Equal(t, []string{
		"essentials.fly", "essentials.tp", "sp.use", "spawn.use",
	}, expanded)

	// Without a registry, wildcards silently expand to nothing.
	bare := resolved.ExpandedPermissions(nil)
	assert.Equal(t, []string{"sp.use", "spawn.use"}, bare)
}
