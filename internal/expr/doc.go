// Package expr implements the small expression language used by gating
// conditions ("when"), template conditionals, loop sources, and output
// substitutions. It supports identifiers and dotted paths, string, integer
// and boolean literals, list literals, the enabled()/defined() built-ins,
// not/and/or, ==, != and in, and a fixed set of pipe filters. There are no
// user-defined functions.
package expr
