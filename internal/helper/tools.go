package helper

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

var (
	handleNames = []string{"handle64.exe", "handle.exe"}
	psexecNames = []string{"PsExec64.exe", "PsExec.exe"}
)

// toolArchives maps a downloadable Sysinternals archive to the executables
// worth extracting from it.
var toolArchives = map[string][]string{
	"Handle.zip":  handleNames,
	"PSTools.zip": psexecNames,
}

// Tools finds helper executables. The configured tools directory is
// searched first, then the directory of the running executable, then PATH.
type Tools struct {
	dir      string
	extra    []string
	lookPath func(string) (string, error)
}

// NewTools returns a locator rooted at dir.
func NewTools(dir string) *Tools {
	t := &Tools{dir: dir, lookPath: exec.LookPath}
	if exe, err := os.Executable(); err == nil {
		t.extra = append(t.extra, filepath.Dir(exe))
	}
	return t
}

// Dir returns the tools directory.
func (t *Tools) Dir() string { return t.dir }

// Handle returns the path of the Sysinternals handle utility.
func (t *Tools) Handle() (string, error) { return t.find(handleNames) }

// PsExec returns the path of PsExec.
func (t *Tools) PsExec() (string, error) { return t.find(psexecNames) }

func (t *Tools) searchDirs() []string {
	var dirs []string
	if t.dir != "" {
		dirs = append(dirs, t.dir)
	}
	return append(dirs, t.extra...)
}

func (t *Tools) find(names []string) (string, error) {
	for _, dir := range t.searchDirs() {
		for _, name := range names {
			p := filepath.Join(dir, name)
			if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
				return p, nil
			}
		}
	}
	if t.lookPath != nil {
		for _, name := range names {
			if p, err := t.lookPath(name); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnavailable, strings.Join(names, " / "))
}

// Install extracts the helper executables from any Sysinternals archive
// found in the search directories into the tools directory. It returns the
// paths it wrote. Tools already present are left alone.
func (t *Tools) Install() ([]string, error) {
	if t.dir == "" {
		return nil, errors.New("no tools directory configured")
	}

	var written []string
	for archive, names := range toolArchives {
		if _, err := t.find(names); err == nil {
			continue
		}
		src := t.locateArchive(archive)
		if src == "" {
			continue
		}
		if err := os.MkdirAll(t.dir, 0o755); err != nil {
			return written, fmt.Errorf("create tools dir: %w", err)
		}
		got, err := extractZip(src, t.dir, names)
		written = append(written, got...)
		if err != nil {
			return written, fmt.Errorf("extract %s: %w", archive, err)
		}
	}
	return written, nil
}

func (t *Tools) locateArchive(name string) string {
	for _, dir := range t.searchDirs() {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// extractZip copies the entries of src whose base name is in wanted into
// dest. Directory components inside the archive are discarded.
func extractZip(src, dest string, wanted []string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	keep := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		keep[strings.ToLower(w)] = true
	}

	var written []string
	for _, f := range r.File {
		base := filepath.Base(filepath.FromSlash(f.Name))
		if f.FileInfo().IsDir() || !keep[strings.ToLower(base)] {
			continue
		}
		out := filepath.Join(dest, base)
		if err := copyZipEntry(f, out); err != nil {
			return written, err
		}
		written = append(written, out)
	}
	return written, nil
}

func copyZipEntry(f *zip.File, out string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	w, err := os.OpenFile(out, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
