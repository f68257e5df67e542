// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

package wildcard

import "fmt"

// TriState is the outcome of a permission check.
type TriState int

// TriState constants define the three possible check outcomes.
const (
	Undefined TriState = iota // undefined
	True                      // true
	False                     // false
)

var triStateStrings = [...]string{
	"undefined",
	"true",
	"false",
}

func (t TriState) String() string {
	if t >= 0 && int(t) < len(triStateStrings) {
		return triStateStrings[t]
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// AsBool collapses the tri-state to a boolean; Undefined counts as false.
func (t TriState) AsBool() bool {
	return t == True
}

// IsDefined reports whether the check produced an explicit grant or denial.
func (t TriState) IsDefined() bool {
	return t != Undefined
}

// FromBool maps a boolean value to its tri-state equivalent.
func FromBool(v bool) TriState {
	if v {
		return True
	}
	return False
}

// MatchType identifies which resolution tier produced a match.
type MatchType int

// MatchType constants, one per tier of the resolution order.
const (
	MatchNone             MatchType = iota // none
	MatchGlobal                            // global
	MatchGlobalNegation                    // global_negation
	MatchExact                             // exact
	MatchExactNegation                     // exact_negation
	MatchWildcard                          // wildcard
	MatchWildcardNegation                  // wildcard_negation
)

var matchTypeStrings = [...]string{
	"none",
	"global",
	"global_negation",
	"exact",
	"exact_negation",
	"wildcard",
	"wildcard_negation",
}

func (m MatchType) String() string {
	if m >= 0 && int(m) < len(matchTypeStrings) {
		return matchTypeStrings[m]
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}
