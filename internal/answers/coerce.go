package answers

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/igr88/archetect/internal/expr"
	"github.com/igr88/archetect/internal/manifest"
)

// ValidationError reports a value that does not fit its variable's type.
type ValidationError struct {
	Variable string
	Value    any
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %s", expr.Format(e.Value), e.Variable, e.Reason)
}

// Coerce converts v to the type spec declares. Strings are parsed, which is
// how command-line and prompt input arrive.
func Coerce(spec manifest.VariableSpec, v any) (any, error) {
	invalid := func(reason string) error {
		return &ValidationError{Variable: spec.Name, Value: v, Reason: reason}
	}

	switch spec.EffectiveType() {
	case manifest.TypeString:
		if isCollection(v) {
			return nil, invalid("expected a string")
		}
		return expr.Format(v), nil

	case manifest.TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true", "yes", "y", "on", "1":
				return true, nil
			case "false", "no", "n", "off", "0":
				return false, nil
			}
		}
		return nil, invalid("expected true or false")

	case manifest.TypeInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case uint64:
			if n <= math.MaxInt {
				return int(n), nil
			}
		case float64:
			if n == math.Trunc(n) {
				return int(n), nil
			}
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				return i, nil
			}
		}
		return nil, invalid("expected an integer")

	case manifest.TypeEnum:
		if isCollection(v) {
			return nil, invalid("expected one of " + strings.Join(spec.Options, ", "))
		}
		s := expr.Format(v)
		for _, opt := range spec.Options {
			if opt == s {
				return s, nil
			}
		}
		return nil, invalid("expected one of " + strings.Join(spec.Options, ", "))

	case manifest.TypeList:
		switch l := v.(type) {
		case []any:
			out := make([]any, len(l))
			for i, it := range l {
				if isCollection(it) {
					return nil, invalid("list items must be scalars")
				}
				out[i] = expr.Format(it)
			}
			return out, nil
		case []string:
			out := make([]any, len(l))
			for i, it := range l {
				out[i] = it
			}
			return out, nil
		case string:
			out := []any{}
			for _, part := range strings.Split(l, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
			return out, nil
		}
		return nil, invalid("expected a list")
	}
	return nil, invalid(fmt.Sprintf("unknown type %q", spec.Type))
}

// zero is the value an optional variable takes when nothing supplies one.
// Enums have none.
func zero(t manifest.VarType) (any, bool) {
	switch t {
	case manifest.TypeString:
		return "", true
	case manifest.TypeBool:
		return false, true
	case manifest.TypeInt:
		return 0, true
	case manifest.TypeList:
		return []any{}, true
	}
	return nil, false
}

func isCollection(v any) bool {
	switch v.(type) {
	case []any, []string, map[string]any:
		return true
	}
	return false
}
