// Package goap implements the symbolic world-state model, A* planner, and
// hierarchical goal decomposer.
package goap

import (
	"fmt"
	"sort"
	"strings"
)

// ValueKind tags which variant of Value is populated.
type ValueKind uint8

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindString
)

// Value is a typed symbolic-state value: boolean, integer, floating, or a
// short string. Exactly one field is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	B    bool
	I    int64
	F    float64
	S    string
}

func Bool(b bool) Value     { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value     { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, F: f} }
func Str(s string) Value    { return Value{Kind: KindString, S: s} }

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.B == o.B
	case KindInt:
		return v.I == o.I
	case KindFloat:
		return v.F == o.F
	default:
		return v.S == o.S
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%v", v.B)
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	default:
		return v.S
	}
}

// State is a symbolic world state: a mapping from string key to typed
// Value. Keys are unique; every operation that needs a canonical
// ordering (Hash, Keys) sorts them, giving deterministic iteration.
type State map[string]Value

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// WithKey returns a copy of s with key set to value (used when a caller
// needs a non-mutating update; ApplyEffects below mutates in place for
// the hot planning path instead).
func (s State) WithKey(key string, value Value) State {
	out := s.Clone()
	out[key] = value
	return out
}

// ApplyEffects mutates s in place, setting every key/value in effects.
func (s State) ApplyEffects(effects State) {
	for k, v := range effects {
		s[k] = v
	}
}

// Keys returns s's keys in sorted order, giving the canonical iteration
// order the hash contract and distance metric rely on.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Hash returns a string digest such that equal states hash equal, the
// contract the planner's A* closed set relies on. It is a canonical
// "key=kind:value|" concatenation over sorted keys, not a cryptographic
// hash. Keys and string values are written unescaped, so a key or string
// value containing '=', ':' or '|' can make two distinct states produce
// the same digest.
func (s State) Hash() string {
	var b strings.Builder
	for _, k := range s.Keys() {
		v := s[k]
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteByte(byte('0' + v.Kind))
		b.WriteByte(':')
		b.WriteString(v.String())
		b.WriteByte('|')
	}
	return b.String()
}

// DistanceTo counts the keys in goal that are absent or differ in s. It is
// an admissible heuristic because each action fixes at most one key per
// step in the worst case, so this count never over-estimates the true
// remaining cost.
func (s State) DistanceTo(goal State) int {
	n := 0
	for k, want := range goal {
		have, ok := s[k]
		if !ok || !have.Equal(want) {
			n++
		}
	}
	return n
}

// Satisfies reports whether every key in goal matches s (goal.IsSatisfied
// semantics, hoisted onto State since a Goal is just a desired State plus
// metadata).
func (s State) Satisfies(goal State) bool {
	return s.DistanceTo(goal) == 0
}
