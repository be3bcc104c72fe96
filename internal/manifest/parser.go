package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.yaml.in/yaml/v3"

	"github.com/igr88/archetect/internal/apperr"
)

// Decoder turns manifest bytes into a value. It is the seam for the on-disk
// grammar; everything past it works on the decoded structures.
type Decoder interface {
	Decode(data []byte, v any) error
}

// YAMLDecoder decodes YAML, and therefore JSON.
type YAMLDecoder struct{}

func (YAMLDecoder) Decode(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// Fallback order for manifest file names.
var (
	archetypeNames = []string{"archetype.yaml", "archetype.yml", "archetype.json"}
	catalogNames   = []string{"catalog.yaml", "catalog.yml", "catalog.json"}
)

// Loader reads and validates manifests.
type Loader struct {
	Decoder Decoder
}

// DefaultLoader uses YAMLDecoder.
var DefaultLoader = &Loader{Decoder: YAMLDecoder{}}

func (l *Loader) decoder() Decoder {
	if l == nil || l.Decoder == nil {
		return YAMLDecoder{}
	}
	return l.Decoder
}

// FindArchetype returns the archetype manifest in dir.
func FindArchetype(dir string) (string, error) {
	return findManifest(dir, archetypeNames)
}

// FindCatalog returns the catalog manifest in dir.
func FindCatalog(dir string) (string, error) {
	return findManifest(dir, catalogNames)
}

// HasArchetype reports whether dir holds an archetype manifest.
func HasArchetype(dir string) bool {
	_, err := FindArchetype(dir)
	return err == nil
}

// IsManifestName reports whether name is one of the manifest file names.
func IsManifestName(name string) bool {
	for _, n := range archetypeNames {
		if n == name {
			return true
		}
	}
	for _, n := range catalogNames {
		if n == name {
			return true
		}
	}
	return false
}

func findManifest(dir string, names []string) (string, error) {
	for _, name := range names {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no %s found in %s", strings.Join(names, ", "), dir)
}

// LoadArchetype finds, validates, and decodes the archetype manifest in dir.
func LoadArchetype(dir string) (*Archetype, error) {
	return DefaultLoader.LoadArchetype(dir)
}

// LoadCatalog finds, validates, and decodes the catalog manifest in dir.
func LoadCatalog(dir string) (*Catalog, error) {
	return DefaultLoader.LoadCatalog(dir)
}

func (l *Loader) LoadArchetype(dir string) (*Archetype, error) {
	path, err := FindArchetype(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "load archetype", dir, err)
	}
	return l.LoadArchetypeFile(path)
}

// LoadArchetypeFile loads the archetype manifest at path. The archetype root
// is the directory containing it.
func (l *Loader) LoadArchetypeFile(path string) (*Archetype, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "load archetype", path, err)
	}
	if err := l.validate(archetypeSchema, data); err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "load archetype", path, err)
	}

	var a Archetype
	if err := l.decoder().Decode(data, &a); err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "load archetype", path, fmt.Errorf("parsing manifest: %w", err))
	}
	a.File = path
	a.Dir = filepath.Dir(path)
	if err := a.check(); err != nil {
		return nil, apperr.Wrap(apperr.KindSourceResolution, "load archetype", path, err)
	}
	return &a, nil
}

func (l *Loader) LoadCatalog(dir string) (*Catalog, error) {
	path, err := FindCatalog(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalog, "load catalog", dir, err)
	}
	return l.LoadCatalogFile(path)
}

// LoadCatalogFile loads the catalog manifest at path.
func (l *Loader) LoadCatalogFile(path string) (*Catalog, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindCatalog, "load catalog", path, err)
	}
	if err := l.validate(catalogSchema, data); err != nil {
		return nil, apperr.Wrap(apperr.KindCatalog, "load catalog", path, err)
	}

	var c Catalog
	if err := l.decoder().Decode(data, &c); err != nil {
		return nil, apperr.Wrap(apperr.KindCatalog, "load catalog", path, fmt.Errorf("parsing manifest: %w", err))
	}
	c.File = path
	c.Dir = filepath.Dir(path)
	return &c, nil
}

// validate runs the schema check and folds the issues into one error.
func (l *Loader) validate(schema string, data []byte) error {
	result, err := l.Validate(schema, data)
	if err != nil {
		return err
	}
	if result.Valid {
		return nil
	}
	msgs := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		if issue.Path != "" {
			msgs = append(msgs, issue.Path+": "+issue.Message)
		} else {
			msgs = append(msgs, issue.Message)
		}
	}
	return fmt.Errorf("invalid manifest: %s", strings.Join(msgs, "; "))
}

// check enforces what the schema cannot express.
func (a *Archetype) check() error {
	seen := make(map[string]bool, len(a.Variables))
	for _, v := range a.Variables {
		if seen[v.Name] {
			return fmt.Errorf("variable %q is declared twice", v.Name)
		}
		seen[v.Name] = true
		if v.EffectiveType() == TypeEnum && len(v.Options) == 0 {
			return fmt.Errorf("enum variable %q has no options", v.Name)
		}
	}
	for _, r := range a.Rules {
		if !doublestar.ValidatePattern(r.Pattern) {
			return fmt.Errorf("rule pattern %q is malformed", r.Pattern)
		}
	}
	return nil
}

// ContentsDir returns the directory templates are read from: Contents when
// set, else "contents" when it exists, else the archetype root.
func (a *Archetype) ContentsDir() string {
	if a.Contents != "" {
		return filepath.Join(a.Dir, filepath.FromSlash(a.Contents))
	}
	candidate := filepath.Join(a.Dir, "contents")
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	return a.Dir
}

// Variable returns the declaration of name.
func (a *Archetype) Variable(name string) (VariableSpec, bool) {
	for _, v := range a.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableSpec{}, false
}

// readFile reads the contents of a file at the given path.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return data, nil
}
