// Package cache mirrors remote sources into a local store so renders can run
// without network access.
//
// Layout under Root:
//
//	git/<key>/entry.json          slot metadata, replaced atomically
//	git/<key>/tree-<commit>-<n>/  checked-out trees (current, previous, leased)
//	git/<key>/tree-<commit>-<n>.lock
//	                              shared by readers of that tree
//	locks/<key>.lock              cross-process lock per slot
//	staging/<key>-*/              fetches in progress
//
// A fetch always lands in staging first and is renamed into the slot before
// entry.json is switched over, so a reader never sees a partial tree.
//
// Trees are pruned after a refresh once they are neither current nor previous
// and no Store holds a lease on them. A Store leases every tree it resolves
// until Close.
package cache
