package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/logging"
	"github.com/igr88/archetect/internal/manifest"
	"github.com/igr88/archetect/internal/prompt"
	"github.com/igr88/archetect/internal/source"
)

// Selector picks an entry from a catalog. depth is 0 for the first catalog.
type Selector interface {
	Choose(ctx context.Context, c *manifest.Catalog, depth int) (int, error)
}

// PromptSelector asks the user.
type PromptSelector struct {
	Prompter prompt.Prompter
}

func (s PromptSelector) Choose(ctx context.Context, c *manifest.Catalog, _ int) (int, error) {
	items := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		items[i] = e.String()
		if e.Description != "" {
			items[i] += " - " + e.Description
		}
	}
	title := "Select an archetype:"
	if c.Name != "" {
		title = c.Name + ":"
	}
	return s.Prompter.Select(ctx, title, items)
}

// PathSelector replays a fixed selection, one 1-based index per level.
type PathSelector []int

// ParsePath parses a selection path such as "2/1".
func ParsePath(s string) (PathSelector, error) {
	var p PathSelector
	for _, part := range strings.Split(s, "/") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, apperr.Errorf(apperr.KindCatalog, "parse selection", s, "%q is not a positive number", part)
		}
		p = append(p, n)
	}
	return p, nil
}

func (p PathSelector) Choose(_ context.Context, _ *manifest.Catalog, depth int) (int, error) {
	if depth >= len(p) {
		return 0, fmt.Errorf("selection path has %d levels, catalog is deeper", len(p))
	}
	return p[depth] - 1, nil
}

// Choice is where a traversal ended.
type Choice struct {
	Entry manifest.CatalogEntry
	// Source is the archetype specifier, resolved against the catalog that
	// listed it.
	Source source.Spec
	// Trail holds the labels selected on the way, outermost first.
	Trail []string
}

// Engine loads and traverses catalogs.
type Engine struct {
	Resolver *source.Resolver
	Loader   *manifest.Loader
	Logger   *slog.Logger
}

// Traverse loads the catalog at raw and follows selections until an
// archetype entry is chosen.
func (e *Engine) Traverse(ctx context.Context, raw, relativeTo string, sel Selector) (*Choice, error) {
	spec, err := source.Parse(raw, relativeTo)
	if err != nil {
		return nil, err
	}
	return e.traverse(ctx, spec, sel, map[string]bool{}, nil)
}

func (e *Engine) traverse(ctx context.Context, spec source.Spec, sel Selector, visited map[string]bool, trail []string) (*Choice, error) {
	log := logging.OrDiscard(e.Logger)

	key := spec.Normalized()
	if visited[key] {
		return nil, apperr.Errorf(apperr.KindCatalogCycle, "traverse catalog", spec.String(),
			"catalog was already entered before selecting %s", strings.Join(trail, " > "))
	}
	visited[key] = true

	c, err := e.Load(ctx, spec)
	if err != nil {
		return nil, err
	}

	idx, err := sel.Choose(ctx, c, len(trail))
	if err != nil {
		if errors.Is(err, prompt.ErrCancelled) || errors.Is(err, context.Canceled) {
			return nil, apperr.Wrap(apperr.KindCancelled, "select entry", spec.String(), err)
		}
		return nil, apperr.Wrap(apperr.KindCatalog, "select entry", spec.String(), err)
	}
	if idx < 0 || idx >= len(c.Entries) {
		return nil, apperr.Errorf(apperr.KindCatalog, "select entry", spec.String(),
			"selection %d is out of range 1-%d", idx+1, len(c.Entries))
	}

	entry := c.Entries[idx]
	trail = append(trail, entry.Label)
	target, err := source.Parse(entry.Target(), c.Dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalog, "select entry", entry.Label, err)
	}
	log.Debug("Selected catalog entry", "catalog", spec.String(), "label", entry.Label, "target", target.String())

	if entry.IsCatalog() {
		return e.traverse(ctx, target, sel, visited, trail)
	}
	return &Choice{Entry: entry, Source: target, Trail: trail}, nil
}

// Load resolves spec and reads its catalog manifest.
func (e *Engine) Load(ctx context.Context, spec source.Spec) (*manifest.Catalog, error) {
	res, err := e.Resolver.ResolveSpec(ctx, spec)
	if err != nil {
		return nil, err
	}
	loader := e.Loader
	if loader == nil {
		loader = manifest.DefaultLoader
	}

	var c *manifest.Catalog
	if res.File != "" {
		c, err = loader.LoadCatalogFile(res.File)
	} else {
		c, err = loader.LoadCatalog(res.Root)
	}
	if err != nil {
		return nil, err
	}
	if len(c.Entries) == 0 {
		return nil, apperr.New(apperr.KindCatalog, "load catalog", spec.String(), "catalog has no entries")
	}
	return c, nil
}
