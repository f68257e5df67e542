// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package resolver

import (
	"fmt"

	"github.com/hyperperms/hyperperms/internal/wildcard"
)

// Trace explains how a single permission check resolved: the outcome, the
// map entry that decided it, the tier it matched at, and whether an ancestor
// group or the user's own node supplied the entry. Immutable once built.
type Trace struct {
	Permission string
	Result     wildcard.TriState
	MatchType  wildcard.MatchType
	Pattern    string // matched map entry, "" when Undefined
	Group      string // owning group name, "" when direct or unmatched
	Direct     bool   // matched a node held directly by the user
}

// SourceLabel names the origin of the matched entry for display.
func (t Trace) SourceLabel() string {
	switch {
	case !t.Result.IsDefined():
		return "none"
	case t.Direct:
		return "user"
	default:
		return "group:" + t.Group
	}
}

// String renders the trace in one line for logs and CLI output.
func (t Trace) String() string {
	if !t.Result.IsDefined() {
		return fmt.Sprintf("%s -> undefined (no matching node)", t.Permission)
	}
	return fmt.Sprintf("%s -> %s (matched %q, %s, source %s)",
		t.Permission, t.Result, t.Pattern, t.MatchType, t.SourceLabel())
}
