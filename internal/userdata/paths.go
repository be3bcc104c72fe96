package userdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/igr88/archetect/internal/branding"
)

// Directory and file name constants for the per-user store.
const (
	CacheDir   = "cache"
	GitDir     = "git"
	LocksDir   = "locks"
	StagingDir = "staging"
)

// Permission constants.
const (
	DirPermNormal  os.FileMode = 0755
	FilePermNormal os.FileMode = 0644
)

// GetCacheRoot returns the directory holding mirrored sources.
// It checks the ARCHETECT_CACHE environment variable first, then
// $ARCHETECT_HOME/cache, then falls back to ~/.archetect/cache.
func GetCacheRoot() (string, error) {
	if v := os.Getenv(branding.EnvVar("CACHE")); v != "" {
		return v, nil
	}
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return filepath.Join(v, CacheDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, branding.HomeDir(), CacheDir), nil
}

// GitCacheDir returns the slot directory for git mirrors under root.
func GitCacheDir(root string) string {
	return filepath.Join(root, GitDir)
}

// LockDir returns the directory holding per-specifier lock files under root.
func LockDir(root string) string {
	return filepath.Join(root, LocksDir)
}

// StagingRoot returns the directory fetches are staged in before the swap.
// It lives under root so the final rename never crosses filesystems.
func StagingRoot(root string) string {
	return filepath.Join(root, StagingDir)
}
