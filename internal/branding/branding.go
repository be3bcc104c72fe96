// Package branding provides compile-time identity values for the CLI.
//
// The values live in branding.yaml next to this file and are baked into the
// binary with //go:embed, so a fork can rename the tool without touching code.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName        string `yaml:"cli_name"`
	DisplayName    string `yaml:"display_name"`
	Description    string `yaml:"description"`
	HomeDir        string `yaml:"home_dir"`
	EnvPrefix      string `yaml:"env_prefix"`
	GoModule       string `yaml:"go_module"`
	GitHubRepo     string `yaml:"github_repo"`
	DefaultCatalog string `yaml:"default_catalog"`
}

func load() {
	once.Do(func() {
		// Set hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:        "archetect",
			DisplayName:    "Archetect",
			Description:    "Scaffold projects from parameterized archetypes",
			HomeDir:        ".archetect",
			EnvPrefix:      "ARCHETECT",
			GoModule:       "github.com/igr88/archetect",
			GitHubRepo:     "igr88/archetect",
			DefaultCatalog: "",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "archetect").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".archetect").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "ARCHETECT").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path.
func GoModule() string { load(); return defaults.GoModule }

// GitHubRepo returns the "owner/repo" string.
func GitHubRepo() string { load(); return defaults.GitHubRepo }

// DefaultCatalog returns the catalog source used when none is configured.
func DefaultCatalog() string { load(); return defaults.DefaultCatalog }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("CACHE") → "ARCHETECT_CACHE".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
