// Package answers resolves values for an archetype's declared variables from
// command-line answers, answer files, defaults, and interactive prompts.
package answers
