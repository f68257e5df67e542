// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package model

import (
	"github.com/oklog/ulid/v2"
)

// User is a permission holder: direct nodes plus group memberships.
// The primary group is the user's "main" group for display and default
// inheritance; resolution always includes it even if the inherited list
// omits it.
type User struct {
	ID              ulid.ULID
	Username        string
	PrimaryGroup    string
	InheritedGroups []string
	Nodes           []Node
}

// StartingGroups returns the normalized, de-duplicated group names that seed
// inheritance resolution: the inherited groups in declaration order, with the
// primary group appended if absent.
func (u *User) StartingGroups() []string {
	seen := make(map[string]struct{}, len(u.InheritedGroups)+1)
	out := make([]string, 0, len(u.InheritedGroups)+1)
	for _, name := range u.InheritedGroups {
		name = NormalizeGroupName(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if primary := NormalizeGroupName(u.PrimaryGroup); primary != "" {
		if _, ok := seen[primary]; !ok {
			out = append(out, primary)
		}
	}
	return out
}
