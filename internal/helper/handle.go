package helper

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// HandleRef identifies one open handle in another process.
type HandleRef struct {
	PID    int
	Handle string
}

// handleLine matches a result line of the handle utility, e.g.
//
//	notepad.exe  pid: 4242  type: File  DOMAIN\bob  1A4: C:\Temp\x.txt
var handleLine = regexp.MustCompile(`(?i)pid:\s*(\d+)\s+type:\s*\S+.*?\s([0-9a-f]+):\s`)

// ParseHandleOutput extracts the (pid, handle) pairs from handle utility
// output. Duplicates are dropped, order is kept.
func ParseHandleOutput(out string) []HandleRef {
	seen := make(map[HandleRef]bool)
	var refs []HandleRef
	for _, m := range handleLine.FindAllStringSubmatch(out, -1) {
		pid, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ref := HandleRef{PID: pid, Handle: m[2]}
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// HandleTool closes handles held by other processes using the Sysinternals
// handle utility.
type HandleTool struct {
	tools   *Tools
	run     Runner
	timeout time.Duration
}

// NewHandleTool wires the handle utility to a runner.
func NewHandleTool(tools *Tools, run Runner, timeout time.Duration) *HandleTool {
	return &HandleTool{tools: tools, run: run, timeout: timeout}
}

// Find lists the handles open on path.
func (h *HandleTool) Find(ctx context.Context, path string) ([]HandleRef, error) {
	exe, err := h.tools.Handle()
	if err != nil {
		return nil, err
	}
	out, err := h.run.Run(ctx, h.timeout, exe, "-accepteula", "-nobanner", path)
	refs := ParseHandleOutput(string(out))
	// The utility exits non-zero when nothing matches.
	var exitErr *exec.ExitError
	if err != nil && len(refs) == 0 && !errors.As(err, &exitErr) {
		return nil, err
	}
	return refs, nil
}

// Close closes one handle in its owning process.
func (h *HandleTool) Close(ctx context.Context, ref HandleRef) error {
	exe, err := h.tools.Handle()
	if err != nil {
		return err
	}
	_, err = h.run.Run(ctx, h.timeout, exe, "-accepteula", "-nobanner",
		"-c", ref.Handle, "-p", strconv.Itoa(ref.PID), "-y")
	if err != nil {
		return fmt.Errorf("close handle %s in pid %d: %w", ref.Handle, ref.PID, err)
	}
	return nil
}
