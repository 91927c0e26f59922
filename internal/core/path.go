package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// ─── Paths ───────────────────────────────────────────────────────────────────

// Canonical returns the absolute, cleaned form of path. Every comparison
// against process tables and protection lists goes through this form.
func Canonical(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// SamePath reports whether two canonical paths name the same object.
// Comparison is case-insensitive on platforms with case-insensitive
// filesystems.
func SamePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if caseInsensitivePaths {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// Within reports whether path equals root or lies below it.
func Within(path, root string) bool {
	path, root = filepath.Clean(path), filepath.Clean(root)
	if SamePath(path, root) {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix += string(os.PathSeparator)
	}
	if len(path) < len(prefix) {
		return false
	}
	if caseInsensitivePaths {
		return strings.EqualFold(path[:len(prefix)], prefix)
	}
	return path[:len(prefix)] == prefix
}

// PathKey returns a map key for path that respects the platform's case rules.
func PathKey(path string) string {
	path = filepath.Clean(path)
	if caseInsensitivePaths {
		return strings.ToLower(path)
	}
	return path
}

// ─── Sizes ───────────────────────────────────────────────────────────────────

// FormatSize renders a byte count using binary units ("1.5 MiB").
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
