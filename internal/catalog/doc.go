// Package catalog walks catalog manifests until an archetype is chosen.
// Catalogs may nest; the engine tracks the sources it has entered on the
// current path so a catalog that leads back to itself fails instead of
// looping.
package catalog
