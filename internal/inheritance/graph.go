// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

// Package inheritance flattens the group-parent graph into an ordered
// ancestor list. Traversal is breadth-first and cycle-safe; missing groups
// contribute nothing rather than failing the walk.
package inheritance

import (
	"sort"
	"time"

	"github.com/hyperperms/hyperperms/internal/contexts"
	"github.com/hyperperms/hyperperms/internal/model"
)

// GroupLoader fetches a group by normalized name from an already-loaded
// registry. It must be side-effect-free and safe for concurrent calls; a
// false return means the group is unknown and is silently skipped.
type GroupLoader func(name string) (*model.Group, bool)

// Graph resolves group ancestry through an injected loader.
type Graph struct {
	loader GroupLoader
}

// NewGraph creates a Graph. Panics on a nil loader, since a graph without a
// loader can never resolve anything.
func NewGraph(loader GroupLoader) *Graph {
	if loader == nil {
		panic("inheritance.NewGraph: nil GroupLoader")
	}
	return &Graph{loader: loader}
}

// ResolveInheritance walks parent links breadth-first from the starting
// names and returns every reachable group, sorted ascending by weight so the
// lowest-priority group is applied first. Equal weights keep discovery
// (BFS) order; no name tie-break is applied. Parent edges are filtered
// through each group's context-aware accessor, with now deciding temporary
// membership expiry. Unknown names are skipped, never reported.
func (g *Graph) ResolveInheritance(start []string, active contexts.ContextSet, now time.Time) []*model.Group {
	visited := make(map[string]struct{}, len(start))
	queue := make([]string, 0, len(start))
	for _, name := range start {
		if name = model.NormalizeGroupName(name); name != "" {
			queue = append(queue, name)
		}
	}

	var resolved []*model.Group
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		if _, seen := visited[name]; seen {
			continue
		}
		visited[name] = struct{}{}

		group, ok := g.loader(name)
		if !ok || group == nil {
			continue
		}
		resolved = append(resolved, group)

		for _, parent := range group.ParentsIn(active, now) {
			if _, seen := visited[parent]; !seen {
				queue = append(queue, parent)
			}
		}
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].Weight < resolved[j].Weight
	})
	return resolved
}

// WouldCreateCycle reports whether adding proposedParent as a parent of
// group would make group reachable from itself. It walks every existing
// parent edge (context-gated and temporary edges included) starting at
// proposedParent. Intended for use by group-mutation code before accepting
// a new edge; resolution itself never needs it.
func (g *Graph) WouldCreateCycle(group, proposedParent string) bool {
	group = model.NormalizeGroupName(group)
	proposedParent = model.NormalizeGroupName(proposedParent)
	if group == "" || proposedParent == "" {
		return false
	}
	if group == proposedParent {
		return true
	}

	visited := map[string]struct{}{}
	queue := []string{proposedParent}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		if _, seen := visited[name]; seen {
			continue
		}
		visited[name] = struct{}{}

		if name == group {
			return true
		}
		current, ok := g.loader(name)
		if !ok || current == nil {
			continue
		}
		queue = append(queue, current.AllParentNames()...)
	}
	return false
}
