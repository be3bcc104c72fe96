package template

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/igr88/archetect/internal/expr"
)

// Lookuper resolves answer names. answers.Set satisfies it.
type Lookuper interface {
	Lookup(name string) (any, bool)
}

// Switches reports enabled feature switches. switches.Set satisfies it.
type Switches interface {
	Enabled(name string) bool
}

// Composer runs a nested archetype named by an {% archetype %} directive.
// dest is relative to the destination root of ctx.
type Composer interface {
	Compose(ctx *Context, source, dest string) error
}

// Context is what a template is rendered against: the answers, the enabled
// switches, the roots of the render pass, and any loop bindings.
type Context struct {
	Answers    Lookuper
	Switches   Switches
	SourceRoot string
	DestRoot   string
	Composer   Composer

	parent   *Context
	bindings map[string]any
}

// Child returns a context that sees bindings on top of c. c is not modified.
func (c *Context) Child(bindings map[string]any) *Context {
	return &Context{
		Answers:    c.Answers,
		Switches:   c.Switches,
		SourceRoot: c.SourceRoot,
		DestRoot:   c.DestRoot,
		Composer:   c.Composer,
		parent:     c,
		bindings:   bindings,
	}
}

// Lookup checks loop bindings innermost first, then the answers.
func (c *Context) Lookup(name string) (any, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.bindings[name]; ok {
			return v, true
		}
	}
	if c.Answers == nil {
		return nil, false
	}
	return c.Answers.Lookup(name)
}

func (c *Context) Enabled(name string) bool {
	if c.Switches == nil {
		return false
	}
	return c.Switches.Enabled(name)
}

// Execute renders t against ctx.
func (t *Template) Execute(ctx *Context) (string, error) {
	var b strings.Builder
	if err := t.exec(&b, t.root, ctx); err != nil {
		return "", classify(err)
	}
	return b.String(), nil
}

// Render parses and executes src in one step.
func Render(name, src string, ctx *Context) (string, error) {
	if !strings.Contains(src, "{{") && !strings.Contains(src, "{%") && !strings.Contains(src, "{#") {
		return src, nil
	}
	t, err := Parse(name, src)
	if err != nil {
		return "", err
	}
	return t.Execute(ctx)
}

func (t *Template) evalError(pos int, err error) error {
	line, col := position(t.src, pos)
	te := &Error{Template: t.name, Line: line, Col: col, Kind: ErrEval, Msg: err.Error()}
	var undef *expr.UndefinedError
	if errors.As(err, &undef) {
		te.Kind = ErrUndefined
		te.Variable = undef.Name
	}
	return te
}

func (t *Template) exec(b *strings.Builder, nodes []node, ctx *Context) error {
	for _, n := range nodes {
		switch n := n.(type) {
		case textNode:
			b.WriteString(n.text)
		case outputNode:
			v, err := n.expr.Eval(ctx)
			if err != nil {
				return t.evalError(n.pos, err)
			}
			b.WriteString(expr.Format(v))
		case ifNode:
			matched := false
			for _, br := range n.branches {
				ok, err := br.cond.Bool(ctx)
				if err != nil {
					return t.evalError(br.pos, err)
				}
				if ok {
					matched = true
					if err := t.exec(b, br.body, ctx); err != nil {
						return err
					}
					break
				}
			}
			if !matched {
				if err := t.exec(b, n.orElse, ctx); err != nil {
					return err
				}
			}
		case forNode:
			if err := t.execFor(b, n, ctx); err != nil {
				return err
			}
		case archetypeNode:
			if err := t.execArchetype(n, ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Template) execFor(b *strings.Builder, n forNode, ctx *Context) error {
	v, err := n.source.Eval(ctx)
	if err != nil {
		return t.evalError(n.pos, err)
	}
	items, err := iterable(v)
	if err != nil {
		return t.evalError(n.pos, err)
	}
	if len(items) == 0 {
		return t.exec(b, n.orElse, ctx)
	}
	for i, it := range items {
		child := ctx.Child(map[string]any{
			n.name: it,
			"loop": map[string]any{
				"index":  i + 1,
				"index0": i,
				"first":  i == 0,
				"last":   i == len(items)-1,
				"length": len(items),
			},
		})
		if err := t.exec(b, n.body, child); err != nil {
			return err
		}
	}
	return nil
}

func (t *Template) execArchetype(n archetypeNode, ctx *Context) error {
	if ctx.Composer == nil {
		return t.evalError(n.pos, &expr.EvalError{Msg: "nested archetypes are not available here"})
	}
	src, err := n.source.Eval(ctx)
	if err != nil {
		return t.evalError(n.pos, err)
	}
	dest, err := n.dest.Eval(ctx)
	if err != nil {
		return t.evalError(n.pos, err)
	}
	return ctx.Composer.Compose(ctx, expr.Format(src), expr.Format(dest))
}

// iterable turns a loop source into its elements. Maps iterate their keys
// in sorted order; nil iterates nothing.
func iterable(v any) ([]any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, nil
	default:
		return nil, &expr.EvalError{Msg: fmt.Sprintf("cannot iterate over %v", v)}
	}
}
