// Package materialize turns an archetype's contents into files. Rendering
// happens in two phases: a Planner walks the source tree and renders every
// name and file into an in-memory Plan, then a Writer commits the plan to
// the destination. A template error therefore leaves the destination
// untouched. During commit each file is staged and renamed into place, so
// an interrupted commit never leaves a partial file; files committed before
// a failure stay on disk.
package materialize
