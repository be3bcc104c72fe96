package platform

import (
	"os"
	"runtime"

	"github.com/go-git/go-billy/v5"
)

// Chmod sets the permissions of path in fs. On Windows, and on filesystems
// that cannot change modes, this is a no-op.
func Chmod(fs billy.Filesystem, path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	ch, ok := fs.(billy.Change)
	if !ok {
		return nil
	}
	return ch.Chmod(path, mode.Perm())
}

// Executable reports whether any execute bit is set in mode.
func Executable(mode os.FileMode) bool {
	return mode.Perm()&0o111 != 0
}
