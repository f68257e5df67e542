// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

// Package wildcard resolves a permission string against a map of
// pattern→value entries, following the host platform's native resolution
// order rather than a most-specific-wins scheme.
//
// The order is deliberate and must not be "improved": a bare "*" grant wins
// over any targeted negation, and broader wildcards are consulted before
// narrower ones, so wildcard sets computed here stay consistent with the
// host's own iteration-order semantics.
package wildcard

import "strings"

// Universal is the pattern matching every permission.
const Universal = "*"

// namespacePrefixes are common plugin namespace prefixes that may be
// stripped from a permission to support namespace aliasing. A stripped-form
// check runs only after the whole unstripped algorithm returns Undefined.
var namespacePrefixes = []string{"com.", "net.", "org.", "io.", "me."}

// MatchResult carries a check outcome plus trace metadata: the map entry
// that decided it and the resolution tier it matched at.
type MatchResult struct {
	Result  TriState
	Pattern string // the values key that matched, "" when Result is Undefined
	Type    MatchType
}

// Check resolves permission against values and returns the tri-state result.
//
// Resolution order:
//  1. "*" entry (a true value grants everything, overriding all negations)
//  2. "-*" entry with a true value denies
//  3. exact entry, then exact negation entry
//  4. prefix wildcards from shortest to longest ("a.*" before "a.b.*"),
//     grant before negation at each length
//  5. Undefined
//
// A grant entry present with a false value denies at its tier; a negation
// entry present with a false value asserts nothing.
func Check(permission string, values map[string]bool) TriState {
	return CheckWithTrace(permission, values).Result
}

// CheckWithTrace is Check plus trace metadata for diagnostics.
func CheckWithTrace(permission string, values map[string]bool) MatchResult {
	permission = strings.ToLower(strings.TrimSpace(permission))
	if permission == "" || len(values) == 0 {
		return MatchResult{Result: Undefined, Type: MatchNone}
	}

	if r, ok := checkTier(values, Universal, MatchGlobal, MatchGlobalNegation); ok {
		return r
	}
	if r, ok := checkTier(values, permission, MatchExact, MatchExactNegation); ok {
		return r
	}

	segments := strings.Split(permission, ".")
	for k := 1; k < len(segments); k++ {
		pattern := strings.Join(segments[:k], ".") + ".*"
		if r, ok := checkTier(values, pattern, MatchWildcard, MatchWildcardNegation); ok {
			return r
		}
	}

	return MatchResult{Result: Undefined, Type: MatchNone}
}

// checkTier consults the grant entry for key, then its negation entry.
func checkTier(values map[string]bool, key string, grantType, negationType MatchType) (MatchResult, bool) {
	if v, ok := values[key]; ok {
		return MatchResult{Result: FromBool(v), Pattern: key, Type: grantType}, true
	}
	negated := "-" + key
	if v, ok := values[negated]; ok && v {
		return MatchResult{Result: False, Pattern: negated, Type: negationType}, true
	}
	return MatchResult{}, false
}

// GeneratePatterns lists every pattern that could match permission, from most
// to least specific: ["a.b.c", "a.b.*", "a.*", "*"]. This is a listing and
// debugging helper; Check consults tiers in the opposite wildcard order.
func GeneratePatterns(permission string) []string {
	permission = strings.ToLower(strings.TrimSpace(permission))
	if permission == "" {
		return nil
	}
	segments := strings.Split(permission, ".")
	patterns := make([]string, 0, len(segments)+1)
	patterns = append(patterns, permission)
	for k := len(segments) - 1; k >= 1; k-- {
		patterns = append(patterns, strings.Join(segments[:k], ".")+".*")
	}
	patterns = append(patterns, Universal)
	return patterns
}

// IsWildcard reports whether the pattern is the universal pattern or ends in
// a ".*" prefix wildcard.
func IsWildcard(pattern string) bool {
	return pattern == Universal || strings.HasSuffix(pattern, ".*")
}

// StripNamespace removes a recognized namespace prefix ("com.", "net.",
// "org.", "io.", "me.") from the permission, returning the stripped form and
// whether a prefix was removed.
func StripNamespace(permission string) (string, bool) {
	for _, prefix := range namespacePrefixes {
		if strings.HasPrefix(permission, prefix) && len(permission) > len(prefix) {
			return permission[len(prefix):], true
		}
	}
	return permission, false
}
