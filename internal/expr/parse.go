package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is a parsed expression.
type Node interface {
	node()
}

type (
	// Literal is a string, int, or bool constant.
	Literal struct{ Value any }
	// Path looks up a name and walks into maps by dotted segments.
	Path struct{ Segments []string }
	// List is a list literal.
	List struct{ Items []Node }
	// Not negates its operand's truthiness.
	Not struct{ X Node }
	// Binary is an and/or/==/!=/in operation.
	Binary struct {
		Op   string
		L, R Node
	}
	// Call invokes a built-in function.
	Call struct {
		Name string
		Args []Node
	}
	// Pipe passes X through a chain of filters.
	Pipe struct {
		X       Node
		Filters []Filter
	}
)

// Filter is one stage of a pipe.
type Filter struct {
	Name string
	Args []Node
}

func (Literal) node() {}
func (Path) node()    {}
func (List) node()    {}
func (Not) node()     {}
func (Binary) node()  {}
func (Call) node()    {}
func (Pipe) node()    {}

// Expr is a compiled expression together with its source text.
type Expr struct {
	Source string
	Root   Node
}

// SyntaxError reports a malformed expression. Pos is a byte offset into
// the expression source.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// Parse compiles src. An empty or blank src is a syntax error.
func Parse(src string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &SyntaxError{Pos: 0, Msg: "empty expression"}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parsePipe()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.typ != tokEOF {
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s %q", t.typ, t.val)}
	}
	return &Expr{Source: src, Root: root}, nil
}

// MustParse is Parse that panics on error. Intended for tests and constants.
func MustParse(src string) *Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ tokenType) (token, error) {
	t := p.next()
	if t.typ != typ {
		return t, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected %s, found %s %q", typ, t.typ, t.val)}
	}
	return t, nil
}

func (p *parser) parsePipe() (Node, error) {
	x, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().typ != tokPipe {
		return x, nil
	}
	pipe := Pipe{X: x}
	for p.peek().typ == tokPipe {
		p.next()
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		f := Filter{Name: name.val}
		if p.peek().typ == tokLParen {
			f.Args, err = p.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		pipe.Filters = append(pipe.Filters, f)
	}
	return pipe, nil
}

func (p *parser) parseOr() (Node, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokOr {
		p.next()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = Binary{Op: "or", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Node, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokAnd {
		p.next()
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = Binary{Op: "and", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseNot() (Node, error) {
	if p.peek().typ == tokNot {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{X: x}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (Node, error) {
	l, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	var op string
	switch p.peek().typ {
	case tokEq:
		op = "=="
	case tokNeq:
		op = "!="
	case tokIn:
		op = "in"
	case tokNot:
		// "x not in list"
		if p.toks[p.pos+1].typ == tokIn {
			p.next()
			op = "not in"
		}
	}
	if op == "" {
		return l, nil
	}
	p.next()
	r, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if op == "not in" {
		return Not{X: Binary{Op: "in", L: l, R: r}}, nil
	}
	return Binary{Op: op, L: l, R: r}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.typ {
	case tokString:
		return Literal{Value: t.val}, nil
	case tokInt:
		n, err := strconv.Atoi(t.val)
		if err != nil {
			return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("invalid integer %q", t.val)}
		}
		return Literal{Value: n}, nil
	case tokTrue:
		return Literal{Value: true}, nil
	case tokFalse:
		return Literal{Value: false}, nil
	case tokLParen:
		x, err := p.parsePipe()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return x, nil
	case tokLBracket:
		var items []Node
		for p.peek().typ != tokRBracket {
			item, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.peek().typ != tokComma {
				break
			}
			p.next()
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return nil, err
		}
		return List{Items: items}, nil
	case tokIdent:
		if p.peek().typ == tokLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			if !isBuiltin(t.val) {
				return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unknown function %q", t.val)}
			}
			return Call{Name: t.val, Args: args}, nil
		}
		segs := []string{t.val}
		for p.peek().typ == tokDot {
			p.next()
			seg := p.next()
			if seg.typ != tokIdent && seg.typ != tokInt {
				return nil, &SyntaxError{Pos: seg.pos, Msg: fmt.Sprintf("expected name after '.', found %s", seg.typ)}
			}
			segs = append(segs, seg.val)
		}
		return Path{Segments: segs}, nil
	default:
		return nil, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unexpected %s %q", t.typ, t.val)}
	}
}

func (p *parser) parseArgs() ([]Node, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var args []Node
	for p.peek().typ != tokRParen {
		arg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.peek().typ != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return args, nil
}
