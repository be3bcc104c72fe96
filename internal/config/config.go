package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/igr88/archetect/internal/branding"
	"github.com/igr88/archetect/internal/userdata"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Setting keys.
const (
	KeyOffline  = "offline"
	KeyHeadless = "headless"
	KeyConflict = "conflict"
	KeyCacheDir = "cache_dir"
	KeyFetcher  = "fetcher"
	KeySwitches = "switches"
	KeyAnswers  = "answers"
	KeyCatalog  = "catalog"
)

// Keys lists every setting key in display order.
var Keys = []string{KeyOffline, KeyHeadless, KeyConflict, KeyCacheDir, KeyFetcher, KeySwitches, KeyAnswers, KeyCatalog}

// IsKey reports whether key names a known setting.
func IsKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Settings is the typed view of the configuration consumed by commands.
type Settings struct {
	Offline  bool
	Headless bool
	Conflict string
	CacheDir string
	Fetcher  string
	Switches []string
	Answers  map[string]any
	Catalog  string
}

// Dir returns the path to the config directory (~/.archetect/).
// ARCHETECT_HOME overrides it.
func Dir() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.archetect/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	viper.SetDefault(KeyOffline, false)
	viper.SetDefault(KeyHeadless, false)
	viper.SetDefault(KeyConflict, "")
	cacheRoot, err := userdata.GetCacheRoot()
	if err != nil {
		cacheRoot = filepath.Join(Dir(), userdata.CacheDir)
	}
	viper.SetDefault(KeyCacheDir, cacheRoot)
	viper.SetDefault(KeyFetcher, "go-git")
	viper.SetDefault(KeyCatalog, branding.DefaultCatalog())

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

// Current returns the loaded settings. Call Load first.
func Current() Settings {
	return Settings{
		Offline:  viper.GetBool(KeyOffline),
		Headless: viper.GetBool(KeyHeadless),
		Conflict: viper.GetString(KeyConflict),
		CacheDir: viper.GetString(KeyCacheDir),
		Fetcher:  viper.GetString(KeyFetcher),
		Switches: viper.GetStringSlice(KeySwitches),
		Answers:  viper.GetStringMap(KeyAnswers),
		Catalog:  viper.GetString(KeyCatalog),
	}
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
