package materialize

import (
	"errors"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/expr"
	"github.com/igr88/archetect/internal/logging"
	"github.com/igr88/archetect/internal/manifest"
	"github.com/igr88/archetect/internal/template"
)

// excludedNames are never rendered, wherever they appear.
var excludedNames = map[string]bool{
	".git":         true,
	".DS_Store":    true,
	"node_modules": true,
}

// Planner renders one archetype's contents into a Plan.
type Planner struct {
	// Source is rooted at the archetype's contents directory.
	Source    billy.Filesystem
	Archetype *manifest.Archetype
	// Context supplies answers and switches. Its DestRoot is the prefix
	// every planned path is placed under.
	Context *template.Context
	// SkipManifests excludes manifest files at the top of Source, for
	// archetypes whose contents are the archetype root itself.
	SkipManifests bool
	Logger        *slog.Logger
}

// Plan walks Source depth first in name order and adds what it renders to
// plan. Nested archetype directives found in file contents are handed to
// the Context's Composer as they are rendered.
func (p *Planner) Plan(plan *Plan) error {
	return p.walk(plan, "", p.prefix())
}

func (p *Planner) prefix() string {
	if p.Context == nil || p.Context.DestRoot == "" {
		return "."
	}
	return path.Clean(p.Context.DestRoot)
}

func (p *Planner) walk(plan *Plan, srcDir, destDir string) error {
	log := logging.OrDiscard(p.Logger)

	readDir := srcDir
	if readDir == "" {
		readDir = "/"
	}
	infos, err := p.Source.ReadDir(readDir)
	if err != nil {
		return apperr.Wrap(apperr.KindMaterialization, "read directory", readDir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	for _, info := range infos {
		name := info.Name()
		rel := path.Join(srcDir, name)
		if excludedNames[name] || (srcDir == "" && p.SkipManifests && manifest.IsManifestName(name)) {
			continue
		}

		action, matched, err := p.Archetype.Classify(rel, p.Context)
		if err != nil {
			return ruleError(rel, err)
		}
		if action == manifest.ActionSkip {
			log.Debug("Skipping", "path", rel)
			continue
		}

		destName, err := template.Render(rel, name, p.Context)
		if err != nil {
			return err
		}
		if strings.TrimSpace(destName) == "" {
			log.Debug("Skipping", "path", rel, "reason", "empty name")
			continue
		}
		dest, err := joinDest(destDir, destName)
		if err != nil {
			return apperr.Wrap(apperr.KindMaterialization, "render name", rel, err)
		}

		switch {
		case info.IsDir():
			plan.Add(Entry{Path: dest, Dir: true, Mode: info.Mode().Perm() | 0o700, Source: rel})
			if err := p.walk(plan, rel, dest); err != nil {
				return err
			}

		case info.Mode().IsRegular():
			data, err := util.ReadFile(p.Source, rel)
			if err != nil {
				return apperr.Wrap(apperr.KindMaterialization, "read file", rel, err)
			}
			e := Entry{Path: dest, Mode: info.Mode().Perm(), Source: rel}
			if action == manifest.ActionCopy || (!matched && IsBinary(data)) {
				log.Debug("Copying", "path", rel, "to", dest)
				e.Data = data
				e.Verbatim = true
			} else {
				log.Debug("Rendering", "path", rel, "to", dest)
				out, err := template.Render(rel, string(data), p.Context)
				if err != nil {
					return err
				}
				e.Data = []byte(out)
			}
			plan.Add(e)

		default:
			log.Debug("Skipping", "path", rel, "reason", "not a regular file")
		}
	}
	return nil
}

// joinDest places a rendered name under dir. Rendered names may contain
// slashes but must not climb out of the destination.
func joinDest(dir, name string) (string, error) {
	if path.IsAbs(name) {
		return "", errors.New("rendered name " + name + " is absolute")
	}
	dest := path.Join(dir, name)
	if dest == ".." || strings.HasPrefix(dest, "../") {
		return "", errors.New("rendered name " + name + " leaves the destination")
	}
	return dest, nil
}

func ruleError(rel string, err error) error {
	var undef *expr.UndefinedError
	if errors.As(err, &undef) {
		return apperr.Wrap(apperr.KindUndefinedVariable, "evaluate rule", rel, err)
	}
	return apperr.Wrap(apperr.KindTemplate, "evaluate rule", rel, err)
}
