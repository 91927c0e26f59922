//go:build !windows

package fsops

import "os"

// IsReparsePoint reports whether path is a symbolic link.
func IsReparsePoint(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// LongPath is the identity outside Windows.
func LongPath(path string) string { return path }
