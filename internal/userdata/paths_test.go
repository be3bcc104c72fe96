package userdata

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestGetCacheRoot_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARCHETECT_CACHE", dir)

	got, err := GetCacheRoot()
	if err != nil {
		t.Fatalf("GetCacheRoot: %v", err)
	}
	if got != dir {
		t.Errorf("GetCacheRoot() = %q, want %q", got, dir)
	}
}

func TestGetCacheRoot_Default(t *testing.T) {
	t.Setenv("ARCHETECT_CACHE", "")
	t.Setenv("ARCHETECT_HOME", "")
	t.Setenv("HOME", "/home/tester")

	got, err := GetCacheRoot()
	if err != nil {
		t.Fatalf("GetCacheRoot: %v", err)
	}
	if !strings.HasSuffix(got, filepath.Join(".archetect", "cache")) {
		t.Errorf("GetCacheRoot() = %q, want suffix .archetect/cache", got)
	}
}

func TestGetCacheRoot_HomeOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARCHETECT_CACHE", "")
	t.Setenv("ARCHETECT_HOME", dir)

	got, err := GetCacheRoot()
	if err != nil {
		t.Fatalf("GetCacheRoot: %v", err)
	}
	if got != filepath.Join(dir, "cache") {
		t.Errorf("GetCacheRoot() = %q, want %q", got, filepath.Join(dir, "cache"))
	}
}

func TestLayout(t *testing.T) {
	root := "/tmp/c"
	if GitCacheDir(root) != filepath.Join(root, "git") {
		t.Errorf("GitCacheDir = %q", GitCacheDir(root))
	}
	if LockDir(root) != filepath.Join(root, "locks") {
		t.Errorf("LockDir = %q", LockDir(root))
	}
	if StagingRoot(root) != filepath.Join(root, "staging") {
		t.Errorf("StagingRoot = %q", StagingRoot(root))
	}
}
