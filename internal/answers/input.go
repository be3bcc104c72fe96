package answers

import (
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/igr88/archetect/internal/apperr"
)

// ParseAssignments parses command-line answers of the form name=value.
// Later assignments to the same name win.
func ParseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, apperr.Errorf(apperr.KindAnswerValidation, "parse answer", arg, "expected name=value")
		}
		out[name] = value
	}
	return out, nil
}

// LoadFiles reads answer files, each a YAML mapping of name to value.
// Values from later files override earlier ones.
func LoadFiles(paths ...string) (map[string]any, error) {
	out := make(map[string]any)
	for _, p := range paths {
		m, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}

// LoadFile reads a single answer file.
func LoadFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAnswerValidation, "load answer file", path, err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, apperr.Wrap(apperr.KindAnswerValidation, "load answer file", path, fmt.Errorf("parsing answers: %w", err))
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// Merge overlays maps left to right; later maps win.
func Merge(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
