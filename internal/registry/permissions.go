// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

// Package registry holds the lookup collaborators around the resolver core:
// the known-permission universe, the alias table, and the in-memory group
// registry the GroupLoader reads from.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// Permissions is the universe of concrete permission strings the host knows
// about. Wildcard expansion consults it because some host check surfaces
// only support set membership, so "essentials.*" has to become the concrete
// permissions it covers before being handed over.
//
// Thread-safety: guarded by mu; safe for concurrent use.
type Permissions struct {
	mu    sync.RWMutex
	known map[string]struct{}
}

// NewPermissions creates an empty permission universe.
func NewPermissions() *Permissions {
	return &Permissions{known: make(map[string]struct{})}
}

// Register adds concrete permission strings to the universe. Blank entries
// are ignored; everything is lowercased.
func (p *Permissions) Register(permissions ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, perm := range permissions {
		perm = strings.ToLower(strings.TrimSpace(perm))
		if perm != "" {
			p.known[perm] = struct{}{}
		}
	}
}

// Known returns the sorted universe.
func (p *Permissions) Known() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.known))
	for perm := range p.known {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}

// MatchingPermissions returns the known concrete permissions matched by the
// wildcard pattern ("*" or a ".*"-suffixed prefix pattern). The pattern is
// compiled without a separator so "a.*" covers "a.b.c" as well as "a.b",
// matching permission-node prefix semantics rather than path-glob semantics.
// An uncompilable pattern matches nothing.
func (p *Permissions) MatchingPermissions(pattern string) []string {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for perm := range p.known {
		if g.Match(perm) {
			out = append(out, perm)
		}
	}
	sort.Strings(out)
	return out
}
