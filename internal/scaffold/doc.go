// Package scaffold runs a render pass: it resolves an archetype source,
// checks its requirements, resolves answers, plans every file of the
// archetype and the archetypes it composes, and only then writes the plan
// to the destination. Resolution, answer, and template failures therefore
// leave the destination untouched.
package scaffold
