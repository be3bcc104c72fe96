package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func withHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ARCHETECT_HOME", dir)
	t.Setenv("ARCHETECT_CACHE", "")
	viper.Reset()
	t.Cleanup(viper.Reset)
	return dir
}

func TestDir_EnvOverride(t *testing.T) {
	dir := withHome(t)
	if Dir() != dir {
		t.Errorf("Dir() = %q, want %q", Dir(), dir)
	}
	if FilePath() != filepath.Join(dir, "config.yaml") {
		t.Errorf("FilePath() = %q", FilePath())
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := withHome(t)
	Load()
	s := Current()
	if s.Offline {
		t.Error("Offline should default to false")
	}
	if s.Fetcher != "go-git" {
		t.Errorf("Fetcher = %q, want go-git", s.Fetcher)
	}
	if s.CacheDir != filepath.Join(dir, "cache") {
		t.Errorf("CacheDir = %q", s.CacheDir)
	}
}

func TestLoad_File(t *testing.T) {
	dir := withHome(t)
	content := `offline: true
conflict: skip
switches: [a, b]
answers:
  author: Jane
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	Load()
	s := Current()
	if !s.Offline {
		t.Error("Offline = false, want true")
	}
	if s.Conflict != "skip" {
		t.Errorf("Conflict = %q, want skip", s.Conflict)
	}
	if len(s.Switches) != 2 || s.Switches[0] != "a" {
		t.Errorf("Switches = %v", s.Switches)
	}
	if s.Answers["author"] != "Jane" {
		t.Errorf("Answers = %v", s.Answers)
	}
}

func TestSet_Persists(t *testing.T) {
	withHome(t)
	Load()
	if err := Set(KeyConflict, "overwrite"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	viper.Reset()
	Load()
	if Get(KeyConflict) != "overwrite" {
		t.Errorf("Get(conflict) = %q, want overwrite", Get(KeyConflict))
	}
}

func TestIsKey(t *testing.T) {
	for _, k := range Keys {
		if !IsKey(k) {
			t.Errorf("IsKey(%q) = false", k)
		}
	}
	if IsKey("mirror") {
		t.Error("IsKey(mirror) = true, want false")
	}
}
