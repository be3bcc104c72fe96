package manifest

import "fmt"

// VarType is the declared type of a variable.
type VarType string

const (
	TypeString VarType = "string"
	TypeBool   VarType = "bool"
	TypeInt    VarType = "int"
	TypeEnum   VarType = "enum"
	TypeList   VarType = "list"
)

// Action says what the materializer does with a matching entry.
type Action string

const (
	ActionRender Action = "render"
	ActionCopy   Action = "copy"
	ActionSkip   Action = "skip"
)

// Archetype is a parsed archetype manifest.
type Archetype struct {
	Name        string         `yaml:"name" json:"name"`
	Version     string         `yaml:"version,omitempty" json:"version,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Authors     []string       `yaml:"authors,omitempty" json:"authors,omitempty"`
	Requires    *Requirements  `yaml:"requires,omitempty" json:"requires,omitempty"`
	Contents    string         `yaml:"contents,omitempty" json:"contents,omitempty"`
	Variables   []VariableSpec `yaml:"variables,omitempty" json:"variables,omitempty"`
	Rules       []Rule         `yaml:"rules,omitempty" json:"rules,omitempty"`
	Archetypes  []ArchetypeRef `yaml:"archetypes,omitempty" json:"archetypes,omitempty"`

	// Dir is the archetype root and File the manifest it was loaded from.
	Dir  string `yaml:"-" json:"-"`
	File string `yaml:"-" json:"-"`
}

// VariableSpec declares one variable. Declaration order is resolution order.
type VariableSpec struct {
	Name     string   `yaml:"name" json:"name"`
	Prompt   string   `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Type     VarType  `yaml:"type,omitempty" json:"type,omitempty"`
	Default  any      `yaml:"default,omitempty" json:"default,omitempty"`
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Options  []string `yaml:"options,omitempty" json:"options,omitempty"`
	When     string   `yaml:"when,omitempty" json:"when,omitempty"`
}

// EffectiveType returns Type, defaulting to string.
func (v VariableSpec) EffectiveType() VarType {
	if v.Type == "" {
		return TypeString
	}
	return v.Type
}

// PromptText returns the prompt, falling back to the variable name.
func (v VariableSpec) PromptText() string {
	if v.Prompt != "" {
		return v.Prompt
	}
	return v.Name + ":"
}

// Rule applies an action to entries whose source path matches Pattern. An
// entry matched by a rule whose When is false is excluded.
type Rule struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Action  Action `yaml:"action,omitempty" json:"action,omitempty"`
	When    string `yaml:"when,omitempty" json:"when,omitempty"`
}

// EffectiveAction returns Action, defaulting to render.
func (r Rule) EffectiveAction() Action {
	if r.Action == "" {
		return ActionRender
	}
	return r.Action
}

// ArchetypeRef composes another archetype into a subpath of the
// destination. Source, Destination, and Answers values are templates.
type ArchetypeRef struct {
	Source      string         `yaml:"source" json:"source"`
	Destination string         `yaml:"destination,omitempty" json:"destination,omitempty"`
	When        string         `yaml:"when,omitempty" json:"when,omitempty"`
	Answers     map[string]any `yaml:"answers,omitempty" json:"answers,omitempty"`
}

// Catalog is a parsed catalog manifest.
type Catalog struct {
	Name        string         `yaml:"name,omitempty" json:"name,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Entries     []CatalogEntry `yaml:"entries" json:"entries"`

	Dir  string `yaml:"-" json:"-"`
	File string `yaml:"-" json:"-"`
}

// CatalogEntry targets either an archetype or another catalog.
type CatalogEntry struct {
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Archetype   string `yaml:"archetype,omitempty" json:"archetype,omitempty"`
	Catalog     string `yaml:"catalog,omitempty" json:"catalog,omitempty"`
}

// IsCatalog reports whether the entry leads to a nested catalog.
func (e CatalogEntry) IsCatalog() bool { return e.Catalog != "" }

// Target returns the source specifier the entry points at.
func (e CatalogEntry) Target() string {
	if e.Catalog != "" {
		return e.Catalog
	}
	return e.Archetype
}

func (e CatalogEntry) String() string {
	if e.IsCatalog() {
		return fmt.Sprintf("%s (catalog)", e.Label)
	}
	return e.Label
}
