// Package safety decides which filesystem objects the engine may touch.
package safety

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lakshaymaurya-felt/purewipe/internal/config"
	"github.com/lakshaymaurya-felt/purewipe/internal/core"
)

var (
	ErrCritical  = errors.New("refused: critical system file")
	ErrProtected = errors.New("refused: protected system path")
	ErrSealed    = errors.New("refused: sealed directory")
)

// crashDumpName is skipped while walking the Windows directory; the dump
// is held by the kernel until the next boot.
const crashDumpName = "MEMORY.DMP"

// Lists are the protection tables a Guard enforces. Entries must be
// absolute; empty or relative entries are ignored.
type Lists struct {
	// Critical files are matched by exact absolute path.
	Critical []string
	// Trees protect the directory and everything below it.
	Trees []string
	// Roots may not be deleted; their contents may be.
	Roots []string
	// Sealed directories may neither be deleted nor cleaned wholesale.
	Sealed []string
	// WindowsDir enables the crash-dump skip rule when set.
	WindowsDir string
}

// DefaultLists returns the built-in tables plus the given extras.
func DefaultLists(extraCritical, extraTrees []string) Lists {
	return Lists{
		Critical:   append(config.CriticalSystemFiles(), extraCritical...),
		Trees:      append(config.ProtectedTrees(), extraTrees...),
		Roots:      config.ProtectedRoots(),
		Sealed:     config.SealedDirs(),
		WindowsDir: windowsDirFor(),
	}
}

// Guard answers "may this object be removed?". A guard built with
// unrestricted lifts the Critical and Trees rules; Roots and Sealed hold.
type Guard struct {
	critical     map[string]bool
	trees        []string
	roots        map[string]bool
	sealed       map[string]bool
	windowsDir   string
	unrestricted bool
}

// NewGuard compiles lists into a Guard.
func NewGuard(lists Lists, unrestricted bool) *Guard {
	g := &Guard{
		critical:     keySet(lists.Critical),
		roots:        keySet(lists.Roots),
		sealed:       keySet(lists.Sealed),
		unrestricted: unrestricted,
	}
	for _, t := range lists.Trees {
		if usable(t) {
			g.trees = append(g.trees, filepath.Clean(t))
		}
	}
	if usable(lists.WindowsDir) {
		g.windowsDir = filepath.Clean(lists.WindowsDir)
	}
	return g
}

// Unrestricted reports whether the guard runs with exclusions lifted.
func (g *Guard) Unrestricted() bool { return g.unrestricted }

// IsCritical reports whether path is one of the critical system files.
// This is the raw table lookup and ignores unrestricted mode.
func (g *Guard) IsCritical(path string) bool {
	return g.critical[core.PathKey(path)]
}

// Check returns nil when path may be deleted, or an error wrapping one of
// the sentinel errors describing why not.
func (g *Guard) Check(path string) error {
	key := core.PathKey(path)
	if g.sealed[key] {
		return fmt.Errorf("%w: %s", ErrSealed, path)
	}
	if g.roots[key] {
		return fmt.Errorf("%w: %s", ErrProtected, path)
	}
	if g.unrestricted {
		return nil
	}
	if g.critical[key] {
		return fmt.Errorf("%w: %s", ErrCritical, path)
	}
	if tree, ok := g.inTree(path); ok {
		return fmt.Errorf("%w: %s is inside %s", ErrProtected, path, tree)
	}
	return nil
}

// CheckContents returns nil when the entries of dir may be cleaned while
// dir itself is kept.
func (g *Guard) CheckContents(dir string) error {
	if g.sealed[core.PathKey(dir)] {
		return fmt.Errorf("%w: %s", ErrSealed, dir)
	}
	if g.unrestricted {
		return nil
	}
	if tree, ok := g.inTree(dir); ok {
		return fmt.Errorf("%w: %s is inside %s", ErrProtected, dir, tree)
	}
	return nil
}

// SkipInWalk reports whether child must be left alone while walking base.
// The Windows crash dump is skipped whenever both live under the Windows
// directory, in every mode.
func (g *Guard) SkipInWalk(base, child string) bool {
	if g.windowsDir == "" || !strings.EqualFold(filepath.Base(child), crashDumpName) {
		return false
	}
	return core.Within(base, g.windowsDir) && core.Within(child, g.windowsDir)
}

func windowsDirFor() string {
	if runtime.GOOS == "windows" {
		return config.WinDir()
	}
	return ""
}

func (g *Guard) inTree(path string) (string, bool) {
	for _, t := range g.trees {
		if core.Within(path, t) {
			return t, true
		}
	}
	return "", false
}

func keySet(paths []string) map[string]bool {
	m := make(map[string]bool, len(paths))
	for _, p := range paths {
		if usable(p) {
			m[core.PathKey(p)] = true
		}
	}
	return m
}

// usable filters out blanks, relative entries and unexpanded references.
func usable(p string) bool {
	p = strings.TrimSpace(p)
	return p != "" && filepath.IsAbs(p) && !strings.Contains(p, "%")
}
