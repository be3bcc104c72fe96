// Package apperr defines the error taxonomy shared by every stage of a render.
// Each failure carries a stable Kind so the command layer can map it to an
// exit code, plus the subject (path, variable, or source specifier) it is about.
package apperr
