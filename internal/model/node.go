// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

// Package model defines the permission entities the resolver core reads:
// nodes, groups, and users. Persistence and mutation live in internal/store.
package model

import (
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/hyperperms/hyperperms/internal/contexts"
)

// GroupNodePrefix marks nodes that encode group membership rather than a
// permission grant. "group.admin" with value true is an inheritance edge
// to the "admin" group.
const GroupNodePrefix = "group."

// NegationPrefix marks a declared negation: "-x.y" denies x.y when the
// node's stored value is true.
const NegationPrefix = "-"

// Node is a single permission assertion. Nodes are immutable once built;
// the permission string is lowercased at construction so lookups never
// need to re-normalize.
type Node struct {
	permission string
	value      bool
	contexts   contexts.ContextSet
	expiry     time.Time // zero means permanent
}

// NodeOption configures optional Node fields.
type NodeOption func(*Node)

// WithContexts restricts the node to checks whose contexts satisfy cs.
func WithContexts(cs contexts.ContextSet) NodeOption {
	return func(n *Node) {
		n.contexts = cs
	}
}

// WithExpiry makes the node temporary; it stops applying at t.
func WithExpiry(t time.Time) NodeOption {
	return func(n *Node) {
		n.expiry = t
	}
}

// NewNode builds a Node for the given permission string and value.
// Returns an error for a blank permission or a bare negation prefix.
func NewNode(permission string, value bool, opts ...NodeOption) (Node, error) {
	permission = strings.ToLower(strings.TrimSpace(permission))
	if permission == "" || permission == NegationPrefix {
		return Node{}, oops.
			Code("INVALID_NODE").
			With("permission", permission).
			Errorf("node permission must be non-empty")
	}
	n := Node{permission: permission, value: value}
	for _, opt := range opts {
		opt(&n)
	}
	return n, nil
}

// MustNode is NewNode for statically-known inputs. Panics on invalid input.
func MustNode(permission string, value bool, opts ...NodeOption) Node {
	n, err := NewNode(permission, value, opts...)
	if err != nil {
		panic("model.MustNode: " + err.Error())
	}
	return n
}

// Permission returns the raw permission string, negation prefix included.
func (n Node) Permission() string {
	return n.permission
}

// Value returns the stored boolean value, before negation is accounted for.
func (n Node) Value() bool {
	return n.value
}

// Contexts returns the context restriction; empty means unrestricted.
func (n Node) Contexts() contexts.ContextSet {
	return n.contexts
}

// Expiry returns the expiry instant, or the zero time for permanent nodes.
func (n Node) Expiry() time.Time {
	return n.expiry
}

// IsNegated reports whether the permission carries the "-" negation prefix.
func (n Node) IsNegated() bool {
	return strings.HasPrefix(n.permission, NegationPrefix)
}

// Entry returns the map key and effective value this node contributes:
// the negation prefix is stripped and the stored value flipped.
func (n Node) Entry() (key string, value bool) {
	if n.IsNegated() {
		return n.permission[len(NegationPrefix):], !n.value
	}
	return n.permission, n.value
}

// IsGroupNode reports whether the node encodes group membership.
func (n Node) IsGroupNode() bool {
	key, _ := n.Entry()
	return strings.HasPrefix(key, GroupNodePrefix) && len(key) > len(GroupNodePrefix)
}

// GroupName returns the group a membership node points at, or "" for
// ordinary permission nodes.
func (n Node) GroupName() string {
	if !n.IsGroupNode() {
		return ""
	}
	key, _ := n.Entry()
	return key[len(GroupNodePrefix):]
}

// AppliesIn reports whether the node's context restriction is satisfied by
// the active check contexts.
func (n Node) AppliesIn(active contexts.ContextSet) bool {
	return n.contexts.IsSatisfiedBy(active)
}

// IsExpired reports whether a temporary node has lapsed as of now.
func (n Node) IsExpired(now time.Time) bool {
	return !n.expiry.IsZero() && !now.Before(n.expiry)
}
