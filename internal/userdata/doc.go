// Package userdata defines the on-disk layout of the per-user store under
// ~/.archetect: where mirrored sources, lock files, and fetch staging areas
// live, and the permission bits used when creating them.
package userdata
