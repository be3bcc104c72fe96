//go:build integration

package integration_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// testEnv holds paths to isolated test directories.
type testEnv struct {
	HomeDir  string // ARCHETECT_HOME
	CacheDir string // cache root handed to the store
	DestDir  string // render destination
}

// setupTestEnv creates isolated temp directories and points ARCHETECT_HOME at
// one of them so nothing touches the real home directory.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		HomeDir:  t.TempDir(),
		CacheDir: t.TempDir(),
		DestDir:  t.TempDir(),
	}
	t.Setenv("ARCHETECT_HOME", env.HomeDir)
	return env
}

// gitRepo commits files into a fresh repository and returns the file:// URL
// of its .git directory.
func gitRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}

	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	_, err = wt.Commit("archetypes", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(1700000000, 0)},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return "file://" + filepath.ToSlash(filepath.Join(dir, ".git"))
}

func assertFileContent(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("expected file to exist: %s", path)
		return
	}
	if string(data) != want {
		t.Errorf("%s = %q, want %q", path, string(data), want)
	}
}

func assertEmptyDir(t *testing.T, path string) {
	t.Helper()
	entries, err := os.ReadDir(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if len(entries) != 0 {
		t.Errorf("%s has %d entries, want none", path, len(entries))
	}
}
