package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestChmod(t *testing.T) {
	tmp := t.TempDir()
	fs := osfs.New(tmp)
	if err := util.WriteFile(fs, "run.sh", []byte("#!/bin/sh\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Chmod(fs, "run.sh", 0755); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(tmp, "run.sh"))
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0755 {
			t.Errorf("permissions = %o, want %o", perm, 0755)
		}
	}
}

func TestChmodMemfs(t *testing.T) {
	fs := memfs.New()
	if err := util.WriteFile(fs, "a.txt", []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Chmod(fs, "a.txt", 0600); err != nil {
		t.Fatalf("Chmod on memfs failed: %v", err)
	}
}

func TestExecutable(t *testing.T) {
	tests := []struct {
		mode os.FileMode
		want bool
	}{
		{0644, false},
		{0755, true},
		{0700, true},
		{0601, true},
	}
	for _, tt := range tests {
		if got := Executable(tt.mode); got != tt.want {
			t.Errorf("Executable(%o) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}
