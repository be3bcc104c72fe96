// Package manifest loads archetype and catalog manifests. Manifests are
// YAML (JSON is accepted as a subset), validated against embedded JSON
// schemas, and decoded through a swappable Decoder.
package manifest
