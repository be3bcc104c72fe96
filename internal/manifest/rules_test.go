package manifest

import (
	"testing"

	"github.com/igr88/archetect/internal/expr"
)

func TestClassify(t *testing.T) {
	a := &Archetype{Rules: []Rule{
		{Pattern: "src/feature.ext", When: `enabled("feature-x")`},
		{Pattern: "**/*.png", Action: ActionCopy},
		{Pattern: "docs/**", Action: ActionSkip},
		{Pattern: "ci/**", When: "docker"},
	}}

	tests := []struct {
		path     string
		switches []string
		values   map[string]any
		want     Action
		matched  bool
	}{
		{"src/feature.ext", nil, nil, ActionSkip, true},
		{"src/feature.ext", []string{"feature-x"}, nil, ActionRender, true},
		{"src/main.ext", nil, nil, ActionRender, false},
		{"assets/img/logo.png", nil, nil, ActionCopy, true},
		{"logo.png", nil, nil, ActionCopy, true},
		{"docs/guide.md", nil, nil, ActionSkip, true},
		{"ci/build.yaml", nil, map[string]any{"docker": false}, ActionSkip, true},
		{"ci/build.yaml", nil, map[string]any{"docker": true}, ActionRender, true},
		{"./src/../src/feature.ext", []string{"feature-x"}, nil, ActionRender, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			on := map[string]bool{}
			for _, s := range tt.switches {
				on[s] = true
			}
			scope := expr.MapScope{Values: tt.values, Switches: func(n string) bool { return on[n] }}
			got, matched, err := a.Classify(tt.path, scope)
			if err != nil {
				t.Fatalf("Classify error: %v", err)
			}
			if got != tt.want || matched != tt.matched {
				t.Errorf("Classify(%q) = %q, %v; want %q, %v", tt.path, got, matched, tt.want, tt.matched)
			}
		})
	}
}

func TestClassify_UndefinedInWhen(t *testing.T) {
	a := &Archetype{Rules: []Rule{{Pattern: "*", When: "missing"}}}
	if _, _, err := a.Classify("x", expr.MapScope{}); err == nil {
		t.Fatal("expected error for undefined variable in rule condition")
	}
}

func TestRequirements_Check(t *testing.T) {
	tests := []struct {
		constraint string
		running    string
		ok         bool
	}{
		{">=2.0.0", "2.1.0", true},
		{">=2.0.0", "v2.0.0", true},
		{">=2.0.0", "1.9.3", false},
		{"^1.2", "1.4.0", true},
		{"^1.2", "2.0.0", false},
		{">=2.0.0", "dev", true},
		{"", "0.0.1", true},
	}
	for _, tt := range tests {
		t.Run(tt.constraint+"@"+tt.running, func(t *testing.T) {
			err := (&Requirements{Archetect: tt.constraint}).Check(tt.running)
			if (err == nil) != tt.ok {
				t.Errorf("Check = %v, want ok=%v", err, tt.ok)
			}
		})
	}

	var none *Requirements
	if err := none.Check("1.0.0"); err != nil {
		t.Errorf("nil requirements should pass, got %v", err)
	}
	if err := (&Requirements{Archetect: "not a constraint"}).Check("1.0.0"); err == nil {
		t.Error("expected error for malformed constraint")
	}
}
