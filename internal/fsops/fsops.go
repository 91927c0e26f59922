// Package fsops wraps the low-level filesystem primitives the deletion
// ladder escalates through. Platform-specific primitives that have no
// equivalent return ErrUnsupported.
package fsops

import (
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrUnsupported is returned by primitives that do not exist on this platform.
var ErrUnsupported = errors.New("operation not supported on this platform")

// Exists reports whether path names an object, without following links.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(LongPath(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Absent reports whether path is definitely gone. Errors other than
// "not found" (e.g. access denied) count as present.
func Absent(path string) bool {
	ok, err := Exists(path)
	return !ok && err == nil
}

// TempSibling returns a hidden, randomly named path in the same directory,
// e.g. "dir/.3f2a9c1b.tmp".
func TempSibling(path string) string {
	id := uuid.New()
	name := "." + hex.EncodeToString(id[:4]) + ".tmp"
	return filepath.Join(filepath.Dir(path), name)
}

// Size returns the size of a regular file, or zero.
func Size(path string) int64 {
	info, err := os.Lstat(LongPath(path))
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

// deletesFromPairs extracts the delete requests from a rename-pair list as
// stored in PendingFileRenameOperations.
func deletesFromPairs(vals []string) []string {
	var out []string
	for i := 0; i+1 < len(vals); i += 2 {
		if vals[i+1] != "" {
			continue
		}
		out = append(out, strings.TrimPrefix(vals[i], `\??\`))
	}
	return out
}
