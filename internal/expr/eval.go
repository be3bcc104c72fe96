package expr

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Scope resolves names and switches during evaluation.
type Scope interface {
	// Lookup returns the value bound to name, if any.
	Lookup(name string) (any, bool)
	// Enabled reports whether a switch is on.
	Enabled(name string) bool
}

// UndefinedError reports a reference to a name the scope does not bind.
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("undefined variable %q", e.Name)
}

// EvalError reports a well-formed expression that cannot be evaluated,
// such as a filter applied to the wrong kind of value.
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string { return e.Msg }

// MapScope is a Scope backed by a map and a switch predicate.
type MapScope struct {
	Values   map[string]any
	Switches func(string) bool
}

func (m MapScope) Lookup(name string) (any, bool) {
	v, ok := m.Values[name]
	return v, ok
}

func (m MapScope) Enabled(name string) bool {
	if m.Switches == nil {
		return false
	}
	return m.Switches(name)
}

var builtins = map[string]bool{
	"enabled": true,
	"defined": true,
}

func isBuiltin(name string) bool { return builtins[name] }

// Eval evaluates e against scope.
func (e *Expr) Eval(scope Scope) (any, error) {
	return eval(e.Root, scope)
}

// Bool evaluates e and returns its truthiness.
func (e *Expr) Bool(scope Scope) (bool, error) {
	v, err := e.Eval(scope)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// EvalBool parses and evaluates src as a condition. A blank src is true,
// which is what an absent "when" means.
func EvalBool(src string, scope Scope) (bool, error) {
	if strings.TrimSpace(src) == "" {
		return true, nil
	}
	e, err := Parse(src)
	if err != nil {
		return false, err
	}
	return e.Bool(scope)
}

// References returns the root names e looks up, in first-use order.
// Names only inspected through defined() are not included.
func (e *Expr) References() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch n := n.(type) {
		case Path:
			if !seen[n.Segments[0]] {
				seen[n.Segments[0]] = true
				out = append(out, n.Segments[0])
			}
		case List:
			for _, it := range n.Items {
				walk(it)
			}
		case Not:
			walk(n.X)
		case Binary:
			walk(n.L)
			walk(n.R)
		case Call:
			if n.Name == "defined" {
				return
			}
			for _, a := range n.Args {
				walk(a)
			}
		case Pipe:
			walk(n.X)
			for _, f := range n.Filters {
				for _, a := range f.Args {
					walk(a)
				}
			}
		}
	}
	walk(e.Root)
	return out
}

func eval(n Node, scope Scope) (any, error) {
	switch n := n.(type) {
	case Literal:
		return n.Value, nil
	case Path:
		return lookupPath(n.Segments, scope)
	case List:
		out := make([]any, 0, len(n.Items))
		for _, it := range n.Items {
			v, err := eval(it, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case Not:
		v, err := eval(n.X, scope)
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	case Binary:
		return evalBinary(n, scope)
	case Call:
		return evalCall(n, scope)
	case Pipe:
		return evalPipe(n, scope)
	default:
		return nil, &EvalError{Msg: fmt.Sprintf("unknown node %T", n)}
	}
}

func lookupPath(segs []string, scope Scope) (any, error) {
	v, ok := scope.Lookup(segs[0])
	if !ok {
		return nil, &UndefinedError{Name: segs[0]}
	}
	for i, seg := range segs[1:] {
		name := strings.Join(segs[:i+2], ".")
		switch cur := v.(type) {
		case map[string]any:
			next, ok := cur[seg]
			if !ok {
				return nil, &UndefinedError{Name: name}
			}
			v = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur) {
				return nil, &UndefinedError{Name: name}
			}
			v = cur[idx]
		default:
			return nil, &UndefinedError{Name: name}
		}
	}
	return v, nil
}

func evalBinary(n Binary, scope Scope) (any, error) {
	l, err := eval(n.L, scope)
	if err != nil {
		return nil, err
	}
	// Short-circuit before touching the right operand.
	switch n.Op {
	case "and":
		if !Truthy(l) {
			return false, nil
		}
	case "or":
		if Truthy(l) {
			return true, nil
		}
	}
	r, err := eval(n.R, scope)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "and", "or":
		return Truthy(r), nil
	case "==":
		return Equal(l, r), nil
	case "!=":
		return !Equal(l, r), nil
	case "in":
		switch rv := r.(type) {
		case []any:
			for _, item := range rv {
				if Equal(l, item) {
					return true, nil
				}
			}
			return false, nil
		case []string:
			for _, item := range rv {
				if Equal(l, item) {
					return true, nil
				}
			}
			return false, nil
		case string:
			return strings.Contains(rv, Format(l)), nil
		case map[string]any:
			_, ok := rv[Format(l)]
			return ok, nil
		default:
			return nil, &EvalError{Msg: fmt.Sprintf("'in' needs a list, string, or map on the right, got %s", typeName(r))}
		}
	}
	return nil, &EvalError{Msg: fmt.Sprintf("unknown operator %q", n.Op)}
}

func evalCall(n Call, scope Scope) (any, error) {
	if len(n.Args) != 1 {
		return nil, &EvalError{Msg: fmt.Sprintf("%s() takes exactly one argument", n.Name)}
	}
	switch n.Name {
	case "enabled":
		v, err := eval(n.Args[0], scope)
		if err != nil {
			return nil, err
		}
		return scope.Enabled(Format(v)), nil
	case "defined":
		if p, ok := n.Args[0].(Path); ok {
			_, err := lookupPath(p.Segments, scope)
			return err == nil, nil
		}
		v, err := eval(n.Args[0], scope)
		if err != nil {
			return nil, err
		}
		_, err = lookupPath(strings.Split(Format(v), "."), scope)
		return err == nil, nil
	}
	return nil, &EvalError{Msg: fmt.Sprintf("unknown function %q", n.Name)}
}

func evalPipe(n Pipe, scope Scope) (any, error) {
	v, err := eval(n.X, scope)
	filters := n.Filters
	if err != nil {
		var undef *UndefinedError
		if !errors.As(err, &undef) || filters[0].Name != "default" {
			return nil, err
		}
		v = nil
	}
	for _, f := range filters {
		args := make([]any, 0, len(f.Args))
		for _, a := range f.Args {
			av, err := eval(a, scope)
			if err != nil {
				return nil, err
			}
			args = append(args, av)
		}
		v, err = applyFilter(f.Name, v, args)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Truthy reports the boolean meaning of v: false, "", 0, nil, and empty
// collections are false.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

// Equal compares two values, treating numbers and their string forms alike.
func Equal(a, b any) bool {
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	return Format(a) == Format(b)
}

// Format renders v as text: lists are joined with ", ", maps are rendered
// with sorted keys.
func Format(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, it := range v {
			parts[i] = Format(it)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(v, ", ")
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + Format(v[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprint(v)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nothing"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int64:
		return "int"
	case float64:
		return "number"
	case []any, []string:
		return "list"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}
