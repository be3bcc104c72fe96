// Package cli defines the Cobra command tree for the archetect CLI. Each file
// registers one top-level command (render, catalog, cache, config, version)
// with the root command. Commands parse flags and wire the render pipeline
// together; the work itself lives in the internal packages.
package cli
