package source

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/logging"
)

// Cache mirrors remote specs to local trees. cache.Store satisfies it.
type Cache interface {
	Path(ctx context.Context, spec Spec, offline bool) (string, error)
}

// Resolved is a source made available on the local filesystem.
type Resolved struct {
	Spec Spec
	// Root is the directory holding the source.
	Root string
	// File is set when the specifier named a manifest file rather than a
	// directory.
	File string
}

// Resolver turns specifiers into local roots.
type Resolver struct {
	Cache   Cache
	Offline bool
	Logger  *slog.Logger
}

// Resolve parses raw relative to relativeTo and makes it available locally.
// Local paths are read live and never cached.
func (r *Resolver) Resolve(ctx context.Context, raw, relativeTo string) (Resolved, error) {
	spec, err := Parse(raw, relativeTo)
	if err != nil {
		return Resolved{}, err
	}
	return r.ResolveSpec(ctx, spec)
}

// ResolveSpec makes an already parsed spec available locally.
func (r *Resolver) ResolveSpec(ctx context.Context, spec Spec) (Resolved, error) {
	log := logging.OrDiscard(r.Logger)

	if spec.IsRemote() {
		if r.Cache == nil {
			return Resolved{}, apperr.New(apperr.KindSourceResolution, "resolve source", spec.String(), "no cache configured for remote sources")
		}
		path, err := r.Cache.Path(ctx, spec, r.Offline)
		if err != nil {
			return Resolved{}, err
		}
		log.Debug("resolved remote source", "source", spec.String(), "path", path)
		return Resolved{Spec: spec, Root: path}, nil
	}

	info, err := os.Stat(spec.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Resolved{}, apperr.New(apperr.KindSourceResolution, "resolve source", spec.String(), "source not found: "+spec.Path)
		}
		return Resolved{}, apperr.Wrap(apperr.KindSourceResolution, "resolve source", spec.String(), err)
	}
	if !info.IsDir() {
		return Resolved{Spec: spec, Root: filepath.Dir(spec.Path), File: spec.Path}, nil
	}
	log.Debug("resolved local source", "source", spec.String(), "path", spec.Path)
	return Resolved{Spec: spec, Root: spec.Path}, nil
}
