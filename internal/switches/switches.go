// Package switches holds the feature switches enabled for one invocation.
package switches

import (
	"sort"
	"strings"
)

// Set is an immutable set of enabled switch names. The zero value has no
// switches enabled.
type Set struct {
	enabled map[string]struct{}
}

// New builds a Set from names. Blank names are ignored and each name is
// trimmed, so flag values such as "a, b" behave as expected after splitting.
func New(names ...string) Set {
	s := Set{enabled: make(map[string]struct{}, len(names))}
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				s.enabled[part] = struct{}{}
			}
		}
	}
	return s
}

// Enabled reports whether the named switch is on.
func (s Set) Enabled(name string) bool {
	_, ok := s.enabled[name]
	return ok
}

// Len returns the number of enabled switches.
func (s Set) Len() int { return len(s.enabled) }

// Names returns the enabled switches in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.enabled))
	for n := range s.enabled {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
