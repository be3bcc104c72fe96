package template

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/igr88/archetect/internal/apperr"
	"github.com/igr88/archetect/internal/expr"
)

// ErrorKind distinguishes template failures.
type ErrorKind int

const (
	ErrSyntax ErrorKind = iota
	ErrUndefined
	ErrEval
)

// Error locates a template failure.
type Error struct {
	Kind     ErrorKind
	Template string
	Line     int
	Col      int
	Msg      string
	Variable string // set for ErrUndefined
}

func (e *Error) Error() string {
	loc := e.Template
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.Template, e.Line, e.Col)
	}
	return fmt.Sprintf("%s: %s", loc, e.Msg)
}

func syntaxErrorAt(name, src string, pos int, msg string) *Error {
	line, col := position(src, pos)
	return &Error{Kind: ErrSyntax, Template: name, Line: line, Col: col, Msg: msg}
}

func position(src string, pos int) (int, int) {
	if pos > len(src) {
		pos = len(src)
	}
	before := src[:pos]
	line := strings.Count(before, "\n") + 1
	col := pos - strings.LastIndex(before, "\n")
	return line, col
}

// classify wraps a template error with the matching taxonomy kind.
// Errors that are already classified, such as those from a nested
// archetype, pass through.
func classify(err error) error {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	var te *Error
	if !errors.As(err, &te) {
		return err
	}
	switch te.Kind {
	case ErrSyntax:
		return apperr.Wrap(apperr.KindTemplateSyntax, "parse template", te.Template, err)
	case ErrUndefined:
		return apperr.Wrap(apperr.KindUndefinedVariable, "render template", te.Template, err)
	default:
		return apperr.Wrap(apperr.KindTemplate, "render template", te.Template, err)
	}
}

type node interface{ tnode() }

type (
	textNode   struct{ text string }
	outputNode struct {
		expr *expr.Expr
		pos  int
	}
	branch struct {
		cond *expr.Expr
		pos  int
		body []node
	}
	ifNode struct {
		branches []branch
		orElse   []node
	}
	forNode struct {
		name   string
		source *expr.Expr
		pos    int
		body   []node
		orElse []node
	}
	archetypeNode struct {
		source *expr.Expr
		dest   *expr.Expr
		pos    int
	}
)

func (textNode) tnode()      {}
func (outputNode) tnode()    {}
func (ifNode) tnode()        {}
func (forNode) tnode()       {}
func (archetypeNode) tnode() {}

// Template is a parsed template.
type Template struct {
	name string
	src  string
	root []node
}

// Name returns the name the template was parsed under.
func (t *Template) Name() string { return t.name }

// Parse compiles src. Malformed control constructs fail with a
// KindTemplateSyntax error before anything is rendered.
func Parse(name, src string) (*Template, error) {
	t, err := parse(name, src)
	if err != nil {
		return nil, classify(err)
	}
	return t, nil
}

func parse(name, src string) (*Template, error) {
	items, err := scan(name, src)
	if err != nil {
		return nil, err
	}
	p := &tparser{name: name, src: src, items: items}
	root, end, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if end != nil {
		return nil, p.errorf(end.pos, "unexpected {%% %s %%}", end.val)
	}
	return &Template{name: name, src: src, root: root}, nil
}

var (
	forPattern       = regexp.MustCompile(`^for\s+([A-Za-z_][A-Za-z0-9_]*)\s+in\s+(.+)$`)
	archetypePattern = regexp.MustCompile(`^archetype\s+(.+?)\s+into\s+(.+)$`)
)

type tparser struct {
	name  string
	src   string
	items []item
	pos   int
}

func (p *tparser) errorf(pos int, format string, args ...any) *Error {
	return syntaxErrorAt(p.name, p.src, pos, fmt.Sprintf(format, args...))
}

func (p *tparser) compile(src string, pos int) (*expr.Expr, error) {
	e, err := expr.Parse(src)
	if err != nil {
		var se *expr.SyntaxError
		if errors.As(err, &se) {
			return nil, p.errorf(pos, "in %q: %s", src, se.Msg)
		}
		return nil, p.errorf(pos, "%v", err)
	}
	return e, nil
}

// parseList parses nodes until EOF or a block-closing tag, which it returns
// unconsumed as end.
func (p *tparser) parseList() ([]node, *item, error) {
	var nodes []node
	for p.pos < len(p.items) {
		it := p.items[p.pos]
		switch it.typ {
		case itemText, itemRaw:
			nodes = append(nodes, textNode{text: it.val})
			p.pos++
		case itemOutput:
			e, err := p.compile(it.val, it.pos)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, outputNode{expr: e, pos: it.pos})
			p.pos++
		case itemTag:
			keyword := firstWord(it.val)
			switch keyword {
			case "if":
				n, err := p.parseIf()
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "for":
				n, err := p.parseFor()
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "archetype":
				n, err := p.parseArchetype()
				if err != nil {
					return nil, nil, err
				}
				nodes = append(nodes, n)
			case "elif", "else", "endif", "endfor":
				return nodes, &it, nil
			default:
				return nil, nil, p.errorf(it.pos, "unknown tag %q", keyword)
			}
		}
	}
	return nodes, nil, nil
}

func (p *tparser) parseIf() (node, error) {
	open := p.items[p.pos]
	p.pos++
	var n ifNode
	cond, err := p.compile(strings.TrimSpace(strings.TrimPrefix(open.val, "if")), open.pos)
	if err != nil {
		return nil, err
	}
	cur := branch{cond: cond, pos: open.pos}
	for {
		body, end, err := p.parseList()
		if err != nil {
			return nil, err
		}
		if end == nil {
			return nil, p.errorf(open.pos, "{%% if %%} is never closed with {%% endif %%}")
		}
		p.pos++
		switch firstWord(end.val) {
		case "elif":
			cur.body = body
			n.branches = append(n.branches, cur)
			cond, err := p.compile(strings.TrimSpace(strings.TrimPrefix(end.val, "elif")), end.pos)
			if err != nil {
				return nil, err
			}
			cur = branch{cond: cond, pos: end.pos}
		case "else":
			if end.val != "else" {
				return nil, p.errorf(end.pos, "{%% else %%} takes no condition")
			}
			cur.body = body
			n.branches = append(n.branches, cur)
			elseBody, end2, err := p.parseList()
			if err != nil {
				return nil, err
			}
			if end2 == nil || end2.val != "endif" {
				return nil, p.errorf(open.pos, "{%% if %%} is never closed with {%% endif %%}")
			}
			p.pos++
			n.orElse = elseBody
			return n, nil
		case "endif":
			cur.body = body
			n.branches = append(n.branches, cur)
			return n, nil
		default:
			return nil, p.errorf(end.pos, "unexpected {%% %s %%} inside {%% if %%}", end.val)
		}
	}
}

func (p *tparser) parseFor() (node, error) {
	open := p.items[p.pos]
	p.pos++
	m := forPattern.FindStringSubmatch(open.val)
	if m == nil {
		return nil, p.errorf(open.pos, "malformed loop %q, want {%% for name in expression %%}", open.val)
	}
	source, err := p.compile(m[2], open.pos)
	if err != nil {
		return nil, err
	}
	n := forNode{name: m[1], source: source, pos: open.pos}
	body, end, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, p.errorf(open.pos, "{%% for %%} is never closed with {%% endfor %%}")
	}
	p.pos++
	n.body = body
	switch end.val {
	case "endfor":
		return n, nil
	case "else":
		elseBody, end2, err := p.parseList()
		if err != nil {
			return nil, err
		}
		if end2 == nil || end2.val != "endfor" {
			return nil, p.errorf(open.pos, "{%% for %%} is never closed with {%% endfor %%}")
		}
		p.pos++
		n.orElse = elseBody
		return n, nil
	default:
		return nil, p.errorf(end.pos, "unexpected {%% %s %%} inside {%% for %%}", end.val)
	}
}

func (p *tparser) parseArchetype() (node, error) {
	open := p.items[p.pos]
	p.pos++
	m := archetypePattern.FindStringSubmatch(open.val)
	if m == nil {
		return nil, p.errorf(open.pos, "malformed directive %q, want {%% archetype source into destination %%}", open.val)
	}
	source, err := p.compile(m[1], open.pos)
	if err != nil {
		return nil, err
	}
	dest, err := p.compile(m[2], open.pos)
	if err != nil {
		return nil, err
	}
	return archetypeNode{source: source, dest: dest, pos: open.pos}, nil
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
