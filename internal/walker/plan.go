package walker

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
)

// maxShown limits the children printed per level.
const maxShown = 20

// Entry is one node of a dry-run plan.
type Entry struct {
	Path     string
	Name     string
	Size     int64
	IsDir    bool
	Link     bool
	Skipped  bool
	Children []*Entry
}

// Count returns how many objects would be removed under and including e.
func (e *Entry) Count() int {
	if e.Skipped {
		return 0
	}
	n := 1
	for _, c := range e.Children {
		n += c.Count()
	}
	return n
}

// Plan lists what DeleteTree would visit, without deleting anything.
// Sibling directories are scanned concurrently; the result is ordered the
// way the walker visits it.
func (w *Walker) Plan(dir string, keepRoot bool) (*Entry, error) {
	base, err := core.Canonical(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Lstat(fsops.LongPath(base))
	if err != nil {
		return nil, err
	}
	root := &Entry{
		Path:  base,
		Name:  info.Name(),
		IsDir: info.IsDir() && !fsops.IsReparsePoint(base),
		Link:  fsops.IsReparsePoint(base),
	}
	if !root.IsDir {
		root.Size = info.Size()
		return root, nil
	}
	if err := w.checkBase(base, keepRoot); err != nil {
		root.Skipped = true
		return root, nil
	}

	p := &planner{Walker: w, base: base, sem: make(chan struct{}, 8)}
	p.scan(root)
	return root, nil
}

type planner struct {
	*Walker
	base string
	sem  chan struct{}
}

// scan fills entry's children. The semaphore is held only around ReadDir
// so nested scans cannot deadlock.
func (p *planner) scan(entry *Entry) {
	p.sem <- struct{}{}
	entries, err := os.ReadDir(fsops.LongPath(entry.Path))
	<-p.sem
	if err != nil {
		p.log.Warnf("Cannot read %s: %v", entry.Path, err)
		return
	}

	entry.Children = make([]*Entry, len(entries))
	var wg sync.WaitGroup
	for i, e := range entries {
		path := filepath.Join(entry.Path, e.Name())
		child := &Entry{Path: path, Name: e.Name()}
		entry.Children[i] = child

		if p.guard != nil && (p.guard.SkipInWalk(p.base, path) || p.guard.Check(path) != nil) {
			child.Skipped = true
		}
		if fsops.IsReparsePoint(path) {
			child.Link = true
			continue
		}
		if !e.IsDir() {
			if info, err := e.Info(); err == nil {
				child.Size = info.Size()
			}
			continue
		}
		child.IsDir = true
		if child.Skipped {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.scan(child)
		}()
	}
	wg.Wait()

	for _, c := range entry.Children {
		if !c.Skipped {
			entry.Size += c.Size
		}
	}
}

// PrintPlan writes a plain-text tree of a plan using ASCII connectors.
func PrintPlan(w io.Writer, root *Entry) {
	if root == nil {
		fmt.Fprintln(w, "  Nothing to delete.")
		return
	}
	fmt.Fprintf(w, "  Plan: %s\n", root.Path)
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
	printEntry(w, root, "", true, 0)
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
	fmt.Fprintf(w, "  %d object(s), %s\n", root.Count(), core.FormatSize(root.Size))
}

func printEntry(w io.Writer, e *Entry, prefix string, last bool, depth int) {
	connector, childPrefix := "+-- ", "|   "
	if last {
		connector, childPrefix = "\\-- ", "    "
	}
	if depth == 0 {
		connector, childPrefix = "", ""
	}

	name := e.Name
	switch {
	case e.Link:
		name += " -> (link, not followed)"
	case e.IsDir:
		name += "/"
	}
	note := core.FormatSize(e.Size)
	if e.Skipped {
		note = "skipped"
	}
	fmt.Fprintf(w, "  %s%s%s  %s\n", prefix, connector, name, note)

	children := e.Children
	hidden := 0
	if len(children) > maxShown {
		hidden = len(children) - maxShown
		children = children[:maxShown]
	}
	for i, c := range children {
		printEntry(w, c, prefix+childPrefix, i == len(children)-1 && hidden == 0, depth+1)
	}
	if hidden > 0 {
		fmt.Fprintf(w, "  %s\\-- ... and %d more entries\n", prefix+childPrefix, hidden)
	}
}
