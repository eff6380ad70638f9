// Package enums holds the closed string sets persisted in the database and
// exchanged over the API, together with their lifecycle rules.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// set is the closed list of values one enum type accepts.
type set[T ~string] struct {
	kind   string
	values []T
}

func newSet[T ~string](kind string, values ...T) set[T] {
	return set[T]{kind: kind, values: values}
}

func (s set[T]) has(v T) bool {
	return slices.Contains(s.values, v)
}

// parse accepts surrounding whitespace and any letter case.
func (s set[T]) parse(raw string) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	if !s.has(v) {
		return "", fmt.Errorf("invalid %s %q", s.kind, raw)
	}
	return v, nil
}

// transitions maps a state to the states it may move to next. States with no
// entry are final.
type transitions[T ~string] map[T][]T

func (t transitions[T]) allows(from, to T) bool {
	return slices.Contains(t[from], to)
}
