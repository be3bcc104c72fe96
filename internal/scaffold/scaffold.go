package scaffold

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/igr88/archetect/internal/answers"
	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/expr"
	"github.com/igr88/archetect/internal/logging"
	"github.com/igr88/archetect/internal/manifest"
	"github.com/igr88/archetect/internal/materialize"
	"github.com/igr88/archetect/internal/source"
	"github.com/igr88/archetect/internal/switches"
	"github.com/igr88/archetect/internal/template"
)

// Scaffolder renders archetypes.
type Scaffolder struct {
	Sources  *source.Resolver
	Loader   *manifest.Loader
	Answers  *answers.Resolver
	Switches switches.Set
	// Version is the running tool version checked against requirements.
	Version string
	Logger  *slog.Logger
}

// Rendered describes one archetype rendered in a pass.
type Rendered struct {
	Name        string
	Source      string
	Destination string
}

// Result is the outcome of planning a pass.
type Result struct {
	Archetype *manifest.Archetype
	Answers   *answers.Set
	Plan      *materialize.Plan
	// Rendered lists the root archetype and every composed one in the
	// order they were planned.
	Rendered []Rendered
}

// Plan resolves raw and renders it, with everything it composes, into
// memory. Nothing is written.
func (s *Scaffolder) Plan(ctx context.Context, raw string) (*Result, error) {
	spec, err := source.Parse(raw, "")
	if err != nil {
		return nil, err
	}
	return s.PlanSpec(ctx, spec)
}

// PlanSpec is Plan for an already parsed source.
func (s *Scaffolder) PlanSpec(ctx context.Context, spec source.Spec) (*Result, error) {
	p := &pass{s: s, ctx: ctx, plan: materialize.NewPlan(), log: logging.OrDiscard(s.Logger)}
	a, set, err := p.run(spec, ".", answers.Input{})
	if err != nil {
		return nil, err
	}
	return &Result{Archetype: a, Answers: set, Plan: p.plan, Rendered: p.rendered}, nil
}

// Render plans raw and commits the plan with w.
func (s *Scaffolder) Render(ctx context.Context, raw string, w *materialize.Writer) (*Result, *materialize.Report, error) {
	res, err := s.Plan(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	report, err := w.Commit(ctx, res.Plan)
	return res, report, err
}

// pass is one render pass. stack holds the archetypes being rendered on the
// current composition path.
type pass struct {
	s        *Scaffolder
	ctx      context.Context
	plan     *materialize.Plan
	stack    []string
	rendered []Rendered
	log      *slog.Logger
}

func (p *pass) run(spec source.Spec, destRoot string, in answers.Input) (*manifest.Archetype, *answers.Set, error) {
	key := spec.Normalized()
	for _, open := range p.stack {
		if open == key {
			return nil, nil, apperr.Errorf(apperr.KindArchetypeCycle, "compose archetype", spec.String(),
				"archetype is already being rendered: %s", strings.Join(append(p.stack, key), " > "))
		}
	}
	p.stack = append(p.stack, key)
	defer func() { p.stack = p.stack[:len(p.stack)-1] }()

	a, err := p.load(spec)
	if err != nil {
		return nil, nil, err
	}
	if err := a.CheckRequirements(p.s.Version); err != nil {
		return nil, nil, err
	}

	set, err := p.s.answerResolver().Resolve(p.ctx, a, in)
	if err != nil {
		return nil, nil, err
	}

	p.log.Info("Rendering archetype", "name", a.Name, "source", spec.String(), "destination", destRoot)
	p.rendered = append(p.rendered, Rendered{Name: a.Name, Source: spec.String(), Destination: destRoot})

	tctx := &template.Context{
		Answers:    set,
		Switches:   p.s.Switches,
		SourceRoot: a.Dir,
		DestRoot:   destRoot,
	}
	tctx.Composer = composer{pass: p, parent: a, answers: set}

	contents := a.ContentsDir()
	planner := &materialize.Planner{
		Source:        osfs.New(contents),
		Archetype:     a,
		Context:       tctx,
		SkipManifests: filepath.Clean(contents) == filepath.Clean(a.Dir),
		Logger:        p.s.Logger,
	}
	if err := planner.Plan(p.plan); err != nil {
		return nil, nil, err
	}

	for _, ref := range a.Archetypes {
		if err := p.compose(a, ref, tctx, set); err != nil {
			return nil, nil, err
		}
	}
	return a, set, nil
}

func (p *pass) load(spec source.Spec) (*manifest.Archetype, error) {
	res, err := p.s.Sources.ResolveSpec(p.ctx, spec)
	if err != nil {
		return nil, err
	}
	loader := p.s.Loader
	if loader == nil {
		loader = manifest.DefaultLoader
	}
	if res.File != "" {
		return loader.LoadArchetypeFile(res.File)
	}
	return loader.LoadArchetype(res.Root)
}

// compose renders a manifest archetype reference.
func (p *pass) compose(parent *manifest.Archetype, ref manifest.ArchetypeRef, tctx *template.Context, set *answers.Set) error {
	on, err := expr.EvalBool(ref.When, tctx)
	if err != nil {
		return apperr.Wrap(apperr.KindTemplate, "evaluate when", ref.Source, err)
	}
	if !on {
		p.log.Debug("Skipping archetype", "source", ref.Source, "when", ref.When)
		return nil
	}

	src, err := template.Render(parent.Name+" archetypes source", ref.Source, tctx)
	if err != nil {
		return err
	}
	dest, err := template.Render(parent.Name+" archetypes destination", ref.Destination, tctx)
	if err != nil {
		return err
	}
	overrides, err := renderAnswers(parent.Name, ref.Answers, tctx)
	if err != nil {
		return err
	}
	return p.child(parent, src, dest, tctx.DestRoot, answers.Input{Overrides: overrides, Inherited: set})
}

func (p *pass) child(parent *manifest.Archetype, src, dest, destRoot string, in answers.Input) error {
	spec, err := source.Parse(src, parent.Dir)
	if err != nil {
		return err
	}
	root, err := childRoot(destRoot, dest)
	if err != nil {
		return apperr.Wrap(apperr.KindMaterialization, "compose archetype", src, err)
	}
	_, _, err = p.run(spec, root, in)
	return err
}

// childRoot places a composed archetype's destination under the parent's.
func childRoot(parentRoot, dest string) (string, error) {
	if path.IsAbs(dest) || filepath.IsAbs(dest) {
		return "", fmt.Errorf("destination %q is absolute", dest)
	}
	root := path.Join(parentRoot, filepath.ToSlash(dest))
	if root == ".." || strings.HasPrefix(root, "../") {
		return "", fmt.Errorf("destination %q leaves the parent destination", dest)
	}
	return root, nil
}

// renderAnswers renders the string values of a reference's answers.
func renderAnswers(name string, in map[string]any, tctx *template.Context) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		r, err := template.Render(name+" answer "+k, s, tctx)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	return out, nil
}

func (s *Scaffolder) answerResolver() *answers.Resolver {
	if s.Answers == nil {
		return &answers.Resolver{Switches: s.Switches, Logger: s.Logger}
	}
	return s.Answers
}

// composer handles {% archetype %} directives found while rendering parent.
type composer struct {
	pass    *pass
	parent  *manifest.Archetype
	answers *answers.Set
}

func (c composer) Compose(ctx *template.Context, src, dest string) error {
	return c.pass.child(c.parent, src, dest, ctx.DestRoot, answers.Input{Inherited: c.answers})
}
