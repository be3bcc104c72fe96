package manifest

import (
	"fmt"
	"path"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/igr88/archetect/internal/expr"
)

// Classify decides the action for rel, a slash-separated path relative to
// the contents directory. The first rule whose pattern matches decides; if
// its When is false the entry is skipped. matched is false when no rule
// applies, leaving the caller to pick a default.
func (a *Archetype) Classify(rel string, scope expr.Scope) (action Action, matched bool, err error) {
	rel = path.Clean(rel)
	for _, r := range a.Rules {
		ok, err := doublestar.Match(r.Pattern, rel)
		if err != nil {
			return "", false, fmt.Errorf("rule %q: %w", r.Pattern, err)
		}
		if !ok {
			continue
		}
		include, err := expr.EvalBool(r.When, scope)
		if err != nil {
			return "", false, fmt.Errorf("rule %q: evaluating %q: %w", r.Pattern, r.When, err)
		}
		if !include {
			return ActionSkip, true, nil
		}
		return r.EffectiveAction(), true, nil
	}
	return ActionRender, false, nil
}
