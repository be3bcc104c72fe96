package answers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/expr"
	"github.com/igr88/archetect/internal/logging"
	"github.com/igr88/archetect/internal/manifest"
	"github.com/igr88/archetect/internal/prompt"
	"github.com/igr88/archetect/internal/switches"
	"github.com/igr88/archetect/internal/template"
)

// Resolver produces the answer set for an archetype.
type Resolver struct {
	// CLI holds answers given on the command line. They beat everything.
	CLI map[string]any
	// File holds answers from answer files and configuration.
	File map[string]any
	// Prompter asks for missing values. Nil means headless.
	Prompter prompt.Prompter
	Switches switches.Set
	Logger   *slog.Logger
}

// Input carries what a parent render passes to a nested archetype.
type Input struct {
	// Overrides are the rendered answers of an archetype reference. They
	// rank below CLI answers and above everything else.
	Overrides map[string]any
	// Inherited is the parent's answer set. The result starts from a copy.
	Inherited *Set
}

// Interactive reports whether missing values are prompted for.
func (r *Resolver) Interactive() bool { return r.Prompter != nil }

// Resolve walks a's variables in declaration order. For each variable whose
// when holds, the value comes from the first of: CLI answer, reference
// override, inherited parent answer, answer file, default, prompt.
func (r *Resolver) Resolve(ctx context.Context, a *manifest.Archetype, in Input) (*Set, error) {
	log := logging.OrDiscard(r.Logger)
	set := in.Inherited.Clone()
	scope := &template.Context{Answers: set, Switches: r.Switches, SourceRoot: a.Dir}

	for _, v := range a.Variables {
		on, err := expr.EvalBool(v.When, scope)
		if err != nil {
			return nil, referenceError(v.Name, "evaluate when", err)
		}
		if !on {
			log.Debug("Skipping variable", "name", v.Name, "when", v.When)
			continue
		}

		value, origin, err := r.resolveOne(ctx, v, in, scope)
		if err != nil {
			return nil, err
		}
		log.Debug("Resolved variable", "name", v.Name, "from", origin)
		set.Put(v.Name, value)
	}
	return set, nil
}

func (r *Resolver) resolveOne(ctx context.Context, v manifest.VariableSpec, in Input, scope *template.Context) (any, string, error) {
	supplied := []struct {
		origin string
		lookup func() (any, bool)
	}{
		{"cli", func() (any, bool) { val, ok := r.CLI[v.Name]; return val, ok }},
		{"reference", func() (any, bool) { val, ok := in.Overrides[v.Name]; return val, ok }},
		{"parent", func() (any, bool) { return in.Inherited.Lookup(v.Name) }},
		{"answer file", func() (any, bool) { val, ok := r.File[v.Name]; return val, ok }},
	}
	for _, s := range supplied {
		raw, ok := s.lookup()
		if !ok {
			continue
		}
		value, err := Coerce(v, raw)
		if err != nil {
			return nil, "", apperr.Wrap(apperr.KindAnswerValidation, "validate answer", v.Name, err)
		}
		return value, s.origin, nil
	}

	def, hasDefault, err := r.evalDefault(v, scope)
	if err != nil {
		return nil, "", err
	}

	if !r.Interactive() {
		if hasDefault {
			return def, "default", nil
		}
		return nil, "", apperr.New(apperr.KindRequiredVariableMissing, "resolve answer", v.Name,
			"no value supplied and no default")
	}

	value, err := r.ask(ctx, v, def, hasDefault)
	if err != nil {
		return nil, "", err
	}
	return value, "prompt", nil
}

// evalDefault renders v's default against the answers resolved so far.
func (r *Resolver) evalDefault(v manifest.VariableSpec, scope *template.Context) (any, bool, error) {
	if v.Default == nil {
		return nil, false, nil
	}
	raw, err := renderDefault(v, v.Default, scope)
	if err != nil {
		return nil, false, err
	}
	value, err := Coerce(v, raw)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindAnswerValidation, "evaluate default", v.Name, err)
	}
	return value, true, nil
}

func renderDefault(v manifest.VariableSpec, def any, scope *template.Context) (any, error) {
	switch d := def.(type) {
	case string:
		out, err := template.Render(v.Name, d, scope)
		if err != nil {
			return nil, referenceError(v.Name, "evaluate default", err)
		}
		return out, nil
	case []any:
		items := make([]any, len(d))
		for i, it := range d {
			s, ok := it.(string)
			if !ok {
				items[i] = it
				continue
			}
			out, err := template.Render(v.Name, s, scope)
			if err != nil {
				return nil, referenceError(v.Name, "evaluate default", err)
			}
			items[i] = out
		}
		return items, nil
	default:
		return def, nil
	}
}

// referenceError reports a reference to a variable not yet resolved as
// UnresolvedReference; other failures keep their classification.
func referenceError(name, op string, err error) error {
	var te *template.Error
	var undef *expr.UndefinedError
	switch {
	case errors.As(err, &te) && te.Kind == template.ErrUndefined:
		return apperr.Errorf(apperr.KindUnresolvedReference, op, name,
			"%q is not declared before %q", te.Variable, name)
	case errors.As(err, &undef):
		return apperr.Errorf(apperr.KindUnresolvedReference, op, name,
			"%q is not declared before %q", undef.Name, name)
	case apperr.KindOf(err) != apperr.KindUnknown:
		return err
	default:
		return apperr.Wrap(apperr.KindAnswerValidation, op, name, err)
	}
}

// ask prompts until the response is valid. An empty response takes the
// default; without one it is rejected for required variables and yields
// the zero value otherwise.
func (r *Resolver) ask(ctx context.Context, v manifest.VariableSpec, def any, hasDefault bool) (any, error) {
	q := prompt.Question{
		Name:       v.Name,
		Text:       v.PromptText(),
		HasDefault: hasDefault,
	}
	if hasDefault {
		q.Default = expr.Format(def)
	}
	if v.EffectiveType() == manifest.TypeEnum {
		q.Options = v.Options
	}

	for {
		resp, err := r.Prompter.Ask(ctx, q)
		if err != nil {
			if errors.Is(err, prompt.ErrCancelled) || errors.Is(err, context.Canceled) {
				return nil, apperr.Wrap(apperr.KindCancelled, "prompt", v.Name, err)
			}
			return nil, apperr.Wrap(apperr.KindAnswerValidation, "prompt", v.Name, err)
		}

		if resp == "" {
			if hasDefault {
				return def, nil
			}
			if z, ok := zero(v.EffectiveType()); ok && !v.Required {
				return z, nil
			}
			q.Problem = "a value is required"
			continue
		}

		value, err := Coerce(v, resp)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				q.Problem = ve.Reason
			} else {
				q.Problem = err.Error()
			}
			continue
		}
		return value, nil
	}
}
