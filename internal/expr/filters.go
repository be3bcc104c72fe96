package expr

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type filterFunc func(v any, args []any) (any, error)

// Casers carry state, so each call builds its own.
func toTitle(s string) string { return cases.Title(language.English).String(s) }
func toUpper(s string) string { return cases.Upper(language.English).String(s) }
func toLower(s string) string { return cases.Lower(language.English).String(s) }

var filters = map[string]filterFunc{
	"upper":         stringFilter(toUpper),
	"lower":         stringFilter(toLower),
	"title":         stringFilter(func(s string) string { return toTitle(strings.Join(words(s), " ")) }),
	"snake_case":    stringFilter(func(s string) string { return joinWords(s, "_", toLower) }),
	"kebab_case":    stringFilter(func(s string) string { return joinWords(s, "-", toLower) }),
	"constant_case": stringFilter(func(s string) string { return joinWords(s, "_", toUpper) }),
	"pascal_case":   stringFilter(func(s string) string { return joinWords(s, "", toTitle) }),
	"camel_case":    stringFilter(camelCase),
	"trim":          stringFilter(strings.TrimSpace),
	"length":        lengthFilter,
	"first":         indexFilter(func(n int) int { return 0 }),
	"last":          indexFilter(func(n int) int { return n - 1 }),
	"join":          joinFilter,
	"default":       defaultFilter,
}

// FilterNames returns the names of the built-in filters.
func FilterNames() []string {
	names := make([]string, 0, len(filters))
	for n := range filters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func applyFilter(name string, v any, args []any) (any, error) {
	f, ok := filters[name]
	if !ok {
		return nil, &EvalError{Msg: fmt.Sprintf("unknown filter %q", name)}
	}
	return f(v, args)
}

func stringFilter(fn func(string) string) filterFunc {
	return func(v any, args []any) (any, error) {
		if len(args) != 0 {
			return nil, &EvalError{Msg: "filter takes no arguments"}
		}
		return fn(Format(v)), nil
	}
}

func lengthFilter(v any, _ []any) (any, error) {
	switch v := v.(type) {
	case []any:
		return len(v), nil
	case []string:
		return len(v), nil
	case map[string]any:
		return len(v), nil
	default:
		return len([]rune(Format(v))), nil
	}
}

func indexFilter(pick func(n int) int) filterFunc {
	return func(v any, _ []any) (any, error) {
		list, ok := asList(v)
		if !ok {
			r := []rune(Format(v))
			if len(r) == 0 {
				return "", nil
			}
			return string(r[pick(len(r))]), nil
		}
		if len(list) == 0 {
			return nil, nil
		}
		return list[pick(len(list))], nil
	}
}

func joinFilter(v any, args []any) (any, error) {
	sep := ""
	if len(args) > 1 {
		return nil, &EvalError{Msg: "join takes at most one argument"}
	}
	if len(args) == 1 {
		sep = Format(args[0])
	}
	list, ok := asList(v)
	if !ok {
		return Format(v), nil
	}
	parts := make([]string, len(list))
	for i, it := range list {
		parts[i] = Format(it)
	}
	return strings.Join(parts, sep), nil
}

func defaultFilter(v any, args []any) (any, error) {
	if len(args) != 1 {
		return nil, &EvalError{Msg: "default takes exactly one argument"}
	}
	if !Truthy(v) {
		return args[0], nil
	}
	return v, nil
}

func asList(v any) ([]any, bool) {
	switch v := v.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func camelCase(s string) string {
	ws := words(s)
	for i, w := range ws {
		if i == 0 {
			ws[i] = toLower(w)
		} else {
			ws[i] = toTitle(w)
		}
	}
	return strings.Join(ws, "")
}

func joinWords(s, sep string, fn func(string) string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = fn(w)
	}
	return strings.Join(ws, sep)
}

// words splits s on separators and lower-to-upper case transitions, so
// "myHTTPServer-v2 name" yields [my HTTP Server v2 name].
func words(s string) []string {
	var out []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return out
}
