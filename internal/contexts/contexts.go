// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HyperPerms Contributors

// Package contexts implements the immutable key/value context sets that gate
// which permission nodes apply to a check (e.g. world=nether, gamemode=creative).
package contexts

import (
	"sort"
	"strings"

	"github.com/samber/oops"
)

// Pair is a single context entry. Keys and values are lowercased on
// construction; a Pair obtained from a ContextSet is always normalized.
type Pair struct {
	Key   string
	Value string
}

// ContextSet is an immutable, ordered set of context pairs. The zero value is
// the empty set. Pairs are ordered by (key, value) and contain no duplicates.
type ContextSet struct {
	pairs []Pair
}

// Empty returns the empty context set, which is satisfied by anything.
func Empty() ContextSet {
	return ContextSet{}
}

// Of builds a ContextSet from the given pairs. Duplicate pairs collapse to
// one entry. Returns an error if any key or value is blank.
func Of(pairs ...Pair) (ContextSet, error) {
	b := NewBuilder()
	for _, p := range pairs {
		b.Add(p.Key, p.Value)
	}
	return b.Build()
}

// MustOf is Of for statically-known pairs. Panics on invalid input.
func MustOf(pairs ...Pair) ContextSet {
	cs, err := Of(pairs...)
	if err != nil {
		panic("contexts.MustOf: " + err.Error())
	}
	return cs
}

// Builder accumulates context pairs and produces an immutable ContextSet.
type Builder struct {
	pairs []Pair
	err   error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add records a key/value pair. Keys and values are trimmed and lowercased.
// Blank keys or values invalidate the builder; the error surfaces from Build.
func (b *Builder) Add(key, value string) *Builder {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.ToLower(strings.TrimSpace(value))
	if key == "" || value == "" {
		if b.err == nil {
			b.err = oops.
				Code("INVALID_CONTEXT").
				With("key", key).
				With("value", value).
				Errorf("context key and value must be non-empty")
		}
		return b
	}
	b.pairs = append(b.pairs, Pair{Key: key, Value: value})
	return b
}

// Build returns the accumulated set, de-duplicated and ordered by (key, value).
func (b *Builder) Build() (ContextSet, error) {
	if b.err != nil {
		return ContextSet{}, b.err
	}
	if len(b.pairs) == 0 {
		return ContextSet{}, nil
	}

	sorted := make([]Pair, len(b.pairs))
	copy(sorted, b.pairs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		return sorted[i].Value < sorted[j].Value
	})

	deduped := sorted[:1]
	for _, p := range sorted[1:] {
		if last := deduped[len(deduped)-1]; p != last {
			deduped = append(deduped, p)
		}
	}
	return ContextSet{pairs: deduped}, nil
}

// IsEmpty reports whether the set has no pairs.
func (cs ContextSet) IsEmpty() bool {
	return len(cs.pairs) == 0
}

// Size returns the number of pairs in the set.
func (cs ContextSet) Size() int {
	return len(cs.pairs)
}

// Pairs returns a copy of the ordered pairs.
func (cs ContextSet) Pairs() []Pair {
	out := make([]Pair, len(cs.pairs))
	copy(out, cs.pairs)
	return out
}

// Contains reports whether the exact pair is a member of the set.
func (cs ContextSet) Contains(key, value string) bool {
	key = strings.ToLower(key)
	value = strings.ToLower(value)
	for _, p := range cs.pairs {
		if p.Key == key && p.Value == value {
			return true
		}
	}
	return false
}

// ContainsKey reports whether any pair in the set has the given key.
func (cs ContextSet) ContainsKey(key string) bool {
	key = strings.ToLower(key)
	for _, p := range cs.pairs {
		if p.Key == key {
			return true
		}
	}
	return false
}

// Value returns the first value recorded for key, or false if absent.
func (cs ContextSet) Value(key string) (string, bool) {
	key = strings.ToLower(key)
	for _, p := range cs.pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Values returns every value recorded for key, in set order.
func (cs ContextSet) Values(key string) []string {
	key = strings.ToLower(key)
	var out []string
	for _, p := range cs.pairs {
		if p.Key == key {
			out = append(out, p.Value)
		}
	}
	return out
}

// IsSatisfiedBy reports whether every pair in this set is present in other.
// The empty set is satisfied by anything, including the empty set.
func (cs ContextSet) IsSatisfiedBy(other ContextSet) bool {
	for _, p := range cs.pairs {
		if !other.Contains(p.Key, p.Value) {
			return false
		}
	}
	return true
}

// Equal reports structural equality of two sets.
func (cs ContextSet) Equal(other ContextSet) bool {
	if len(cs.pairs) != len(other.pairs) {
		return false
	}
	for i, p := range cs.pairs {
		if other.pairs[i] != p {
			return false
		}
	}
	return true
}

// String renders the set as "key=value;key=value" for logs and traces.
func (cs ContextSet) String() string {
	if len(cs.pairs) == 0 {
		return "global"
	}
	var sb strings.Builder
	for i, p := range cs.pairs {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(p.Key)
		sb.WriteByte('=')
		sb.WriteString(p.Value)
	}
	return sb.String()
}
