// Package prompt asks the user for answers and selections. The resolver and
// catalog engine depend on the Prompter interface only, so tests drive them
// with a Scripted prompter.
package prompt
