// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package registry

import (
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Aliases is a bidirectional alias table between host-native permissions and
// simplified plugin-facing forms. One native permission may carry several
// aliases and one alias may stand for several native permissions.
//
// Thread-safety: guarded by mu; safe for concurrent use.
type Aliases struct {
	mu         sync.RWMutex
	simplified map[string][]string // native -> aliases
	native     map[string][]string // alias -> native permissions
}

// NewAliases creates an empty alias table.
func NewAliases() *Aliases {
	return &Aliases{
		simplified: make(map[string][]string),
		native:     make(map[string][]string),
	}
}

// Register records that alias is a simplified form of the native permission.
// Returns an error if either side is blank. Duplicate registrations are
// collapsed.
func (a *Aliases) Register(native, alias string) error {
	native = strings.ToLower(strings.TrimSpace(native))
	alias = strings.ToLower(strings.TrimSpace(alias))
	if native == "" || alias == "" {
		return oops.
			Code("INVALID_ALIAS").
			With("native", native).
			With("alias", alias).
			Errorf("alias registration requires both sides non-empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.simplified[native] = appendUnique(a.simplified[native], alias)
	a.native[alias] = appendUnique(a.native[alias], native)
	return nil
}

// Aliases returns the simplified aliases recorded for a native permission.
func (a *Aliases) Aliases(permission string) []string {
	permission = strings.ToLower(strings.TrimSpace(permission))
	a.mu.RLock()
	defer a.mu.RUnlock()
	return copySlice(a.simplified[permission])
}

// ActualPermissions returns the native permissions an alias stands for.
func (a *Aliases) ActualPermissions(permission string) []string {
	permission = strings.ToLower(strings.TrimSpace(permission))
	a.mu.RLock()
	defer a.mu.RUnlock()
	return copySlice(a.native[permission])
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

func copySlice(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}
