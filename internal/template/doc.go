// Package template expands archetype templates: variable substitution
// ({{ expr }}), conditionals ({% if %}), iteration ({% for %}), raw blocks,
// and nested-archetype directives ({% archetype "src" into "dest" %}).
// Expressions are compiled by package expr and evaluated against a Context,
// so parsing and evaluation are testable without touching the filesystem.
package template
