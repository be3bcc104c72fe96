package manifest

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/*.schema.json
var schemaFS embed.FS

// Schema names.
const (
	archetypeSchema = "archetype.schema.json"
	catalogSchema   = "catalog.schema.json"
)

var (
	compiled    map[string]*jsonschema.Schema
	compileOnce sync.Once
	compileErr  error
	printer     = message.NewPrinter(language.English)
)

// ValidationResult contains the outcome of a schema validation.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue represents a single validation error from the schema.
type ValidationIssue struct {
	Path    string // Instance location (e.g., "/variables/0/type")
	Message string // Human-readable error message
	Keyword string // Schema keyword location that failed
}

// getSchema compiles the embedded JSON schemas once and returns the named one.
func getSchema(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, n := range []string{archetypeSchema, catalogSchema} {
			raw, err := schemaFS.ReadFile("schema/" + n)
			if err != nil {
				compileErr = fmt.Errorf("reading schema %s: %w", n, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				compileErr = fmt.Errorf("unmarshaling schema %s: %w", n, err)
				return
			}
			if err := c.AddResource(n, doc); err != nil {
				compileErr = fmt.Errorf("adding schema resource %s: %w", n, err)
				return
			}
		}
		compiled = make(map[string]*jsonschema.Schema, 2)
		for _, n := range []string{archetypeSchema, catalogSchema} {
			s, err := c.Compile(n)
			if err != nil {
				compileErr = fmt.Errorf("compiling schema %s: %w", n, err)
				return
			}
			compiled[n] = s
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	s, ok := compiled[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return s, nil
}

// ValidateArchetype validates raw manifest bytes against the archetype schema.
func ValidateArchetype(data []byte) (*ValidationResult, error) {
	return DefaultLoader.Validate(archetypeSchema, data)
}

// ValidateCatalog validates raw manifest bytes against the catalog schema.
func ValidateCatalog(data []byte) (*ValidationResult, error) {
	return DefaultLoader.Validate(catalogSchema, data)
}

// Validate validates raw bytes against the named schema.
// The error return is for decoding or schema compilation failures.
// Validation issues are returned in the ValidationResult.
func (l *Loader) Validate(schemaName string, data []byte) (*ValidationResult, error) {
	schema, err := getSchema(schemaName)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	var raw interface{}
	if err := l.decoder().Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if raw == nil {
		return &ValidationResult{Issues: []ValidationIssue{{Message: "manifest is empty"}}}, nil
	}

	// Round-trip through JSON so the validator sees json.Number values.
	raw = normalizeYAML(raw)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("preparing JSON for validation: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}

	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("unexpected validation error type: %w", err)
	}

	return &ValidationResult{
		Valid:  false,
		Issues: extractIssues(validationErr),
	}, nil
}

// extractIssues walks the ValidationError tree and returns leaf-level issues.
func extractIssues(ve *jsonschema.ValidationError) []ValidationIssue {
	var issues []ValidationIssue
	collectValidationIssues(ve, &issues)

	if len(issues) == 0 {
		return []ValidationIssue{{
			Message: ve.Error(),
		}}
	}
	return deduplicateIssues(issues)
}

// collectValidationIssues recursively walks the error tree to find leaf errors
// with specific property information.
func collectValidationIssues(ve *jsonschema.ValidationError, issues *[]ValidationIssue) {
	if len(ve.Causes) == 0 {
		path := "/" + strings.Join(ve.InstanceLocation, "/")
		if len(ve.InstanceLocation) == 0 {
			path = ""
		}

		keyword := ""
		msg := ""
		if ve.ErrorKind != nil {
			if kwPath := ve.ErrorKind.KeywordPath(); len(kwPath) > 0 {
				keyword = kwPath[len(kwPath)-1]
			}
			msg = ve.ErrorKind.LocalizedString(printer)
		}

		// Container keywords only repeat what their causes say.
		if keyword == "oneOf" || keyword == "anyOf" || keyword == "allOf" || keyword == "$ref" || keyword == "" {
			return
		}

		*issues = append(*issues, ValidationIssue{
			Path:    path,
			Message: msg,
			Keyword: keyword,
		})
		return
	}

	for _, cause := range ve.Causes {
		collectValidationIssues(cause, issues)
	}
}

// deduplicateIssues removes duplicate issues (same path + keyword + message).
func deduplicateIssues(issues []ValidationIssue) []ValidationIssue {
	seen := make(map[string]bool)
	var result []ValidationIssue
	for _, issue := range issues {
		key := issue.Path + "|" + issue.Keyword + "|" + issue.Message
		if !seen[key] {
			seen[key] = true
			result = append(result, issue)
		}
	}
	return result
}

// normalizeYAML converts decoded YAML into values encoding/json accepts:
// maps with non-string keys are re-keyed by their printed form.
func normalizeYAML(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, v := range val {
			m[k] = normalizeYAML(v)
		}
		return m
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, v := range val {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case []interface{}:
		a := make([]interface{}, len(val))
		for i, v := range val {
			a[i] = normalizeYAML(v)
		}
		return a
	default:
		return val
	}
}
