package answers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/igr88/archetect/internal/expr"
)

// Set maps variable names to resolved values, remembering insertion order.
// A Set handed to a render pass is not modified afterwards; children work
// on a Clone.
type Set struct {
	names  []string
	values map[string]any
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{values: make(map[string]any)}
}

// FromMap builds a Set from m in sorted key order.
func FromMap(m map[string]any) *Set {
	s := NewSet()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Put(k, m[k])
	}
	return s
}

// Lookup returns the value of name. A nil Set holds nothing.
func (s *Set) Lookup(name string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[name]
	return v, ok
}

// Put binds name to v. Rebinding keeps the original position.
func (s *Set) Put(name string, v any) {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = v
}

// Names returns the bound names in insertion order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// Len returns the number of bound names.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	c := NewSet()
	if s == nil {
		return c
	}
	for _, n := range s.names {
		c.Put(n, s.values[n])
	}
	return c
}

// Map returns the bindings as a plain map.
func (s *Set) Map() map[string]any {
	m := make(map[string]any, s.Len())
	if s == nil {
		return m
	}
	for k, v := range s.values {
		m[k] = v
	}
	return m
}

func (s *Set) String() string {
	parts := make([]string, 0, s.Len())
	for _, n := range s.Names() {
		parts = append(parts, fmt.Sprintf("%s=%s", n, expr.Format(s.values[n])))
	}
	return strings.Join(parts, " ")
}
