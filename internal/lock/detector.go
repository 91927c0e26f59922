// Package lock finds the processes holding a filesystem object open and
// breaks their hold, either by terminating them or by closing the handles.
// Everything here is advisory: process tables change between enumeration
// and action, and the deletion ladder confirms the result on its own.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/helper"
	"github.com/lakshaymaurya-felt/purewipe/internal/safety"
)

// ErrProtected is returned when asked to break locks on a guarded path.
var ErrProtected = errors.New("refusing to break locks on a protected path")

// MatchKind tells how a holder was tied to the target.
type MatchKind int

const (
	// MatchExecutable: the target is the process's own image.
	MatchExecutable MatchKind = iota
	// MatchOpenHandle: the target is among the process's open files.
	MatchOpenHandle
)

func (m MatchKind) String() string {
	if m == MatchExecutable {
		return "executable"
	}
	return "open-handle"
}

// Holder is a process currently using a target.
type Holder struct {
	PID       int32
	Name      string
	Exe       string
	MatchedBy MatchKind
}

// HandleCloser lists and closes foreign handles on a path.
type HandleCloser interface {
	Find(ctx context.Context, path string) ([]helper.HandleRef, error)
	Close(ctx context.Context, ref helper.HandleRef) error
}

// Config wires a Detector.
type Config struct {
	Source ProcessSource
	Guard  *safety.Guard
	// Handles is optional; without it UnlockHandle relies on the
	// disposition fallback alone.
	Handles HandleCloser
	// Disposition marks a path for deletion through a fresh handle.
	Disposition func(path string) error
	// CriticalProcesses are lower-case image names never terminated.
	CriticalProcesses []string
	Reporter          events.Reporter
}

// Detector implements lock detection and breaking.
type Detector struct {
	source      ProcessSource
	guard       *safety.Guard
	handles     HandleCloser
	disposition func(string) error
	critical    map[string]bool
	self        int32
	log         events.Reporter
}

// NewDetector builds a Detector from cfg.
func NewDetector(cfg Config) *Detector {
	d := &Detector{
		source:      cfg.Source,
		guard:       cfg.Guard,
		handles:     cfg.Handles,
		disposition: cfg.Disposition,
		critical:    make(map[string]bool, len(cfg.CriticalProcesses)),
		self:        int32(os.Getpid()),
		log:         cfg.Reporter,
	}
	if d.log == nil {
		d.log = events.NopReporter
	}
	for _, name := range cfg.CriticalProcesses {
		d.critical[strings.ToLower(name)] = true
	}
	return d
}

// Holders returns the processes whose image is path or which have path
// open. Processes that vanish or deny access mid-scan are skipped.
func (d *Detector) Holders(ctx context.Context, path string) ([]Holder, error) {
	target, err := core.Canonical(path)
	if err != nil {
		return nil, err
	}
	procs, err := d.source.Processes(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}

	var holders []Holder
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return holders, err
		}
		name, _ := p.Name(ctx)
		exe, _ := p.Exe(ctx)

		if exe != "" && core.SamePath(exe, target) {
			holders = append(holders, Holder{PID: p.PID(), Name: name, Exe: exe, MatchedBy: MatchExecutable})
			continue
		}

		files, err := p.OpenFiles(ctx)
		if err != nil {
			continue
		}
		for _, f := range files {
			if core.SamePath(f, target) {
				holders = append(holders, Holder{PID: p.PID(), Name: name, Exe: exe, MatchedBy: MatchOpenHandle})
				break
			}
		}
	}
	return holders, nil
}

// IsLocked reports whether any process holds path.
func (d *Detector) IsLocked(ctx context.Context, path string) (bool, error) {
	holders, err := d.Holders(ctx, path)
	if err != nil {
		return false, err
	}
	return len(holders) > 0, nil
}

// KillHolders force-terminates every holder of path except critical system
// processes and this process. It reports whether at least one process was
// terminated. Guarded paths are refused outright.
func (d *Detector) KillHolders(ctx context.Context, path string) (bool, error) {
	if err := d.refuse(path); err != nil {
		return false, err
	}
	holders, err := d.Holders(ctx, path)
	if err != nil {
		return false, err
	}

	killed := false
	for _, h := range holders {
		if h.PID == d.self {
			continue
		}
		if d.critical[strings.ToLower(h.Name)] {
			d.log.Logf("Skipping critical process %s (pid %d) holding %s", h.Name, h.PID, path)
			continue
		}
		if err := d.kill(ctx, h.PID); err != nil {
			d.log.Logf("Could not terminate %s (pid %d): %v", h.Name, h.PID, err)
			continue
		}
		d.log.Logf("Terminated %s (pid %d) holding %s", h.Name, h.PID, path)
		killed = true
	}
	return killed, nil
}

func (d *Detector) kill(ctx context.Context, pid int32) error {
	procs, err := d.source.Processes(ctx)
	if err != nil {
		return err
	}
	for _, p := range procs {
		if p.PID() == pid {
			return p.Kill(ctx)
		}
	}
	return fmt.Errorf("process %d already exited", pid)
}

// UnlockHandle releases foreign handles on path. The handle utility is
// tried first; when it is missing or closes nothing, path is opened with
// delete intent and its disposition set, so the object goes away once the
// last handle closes. Either path succeeding satisfies the call.
func (d *Detector) UnlockHandle(ctx context.Context, path string) (bool, error) {
	if err := d.refuse(path); err != nil {
		return false, err
	}

	if d.handles != nil {
		closed, err := d.closeHandles(ctx, path)
		switch {
		case errors.Is(err, helper.ErrUnavailable):
		case err != nil:
			d.log.Logf("Handle utility failed for %s: %v", path, err)
		case closed > 0:
			d.log.Logf("Closed %d handle(s) on %s", closed, path)
			return true, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if d.disposition == nil {
		return false, nil
	}
	if err := d.disposition(path); err != nil {
		return false, nil
	}
	d.log.Logf("Marked %s for deletion on last handle close", path)
	return true, nil
}

func (d *Detector) closeHandles(ctx context.Context, path string) (int, error) {
	refs, err := d.handles.Find(ctx, path)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, ref := range refs {
		if int32(ref.PID) == d.self {
			continue
		}
		if err := d.handles.Close(ctx, ref); err != nil {
			d.log.Logf("%v", err)
			continue
		}
		closed++
	}
	return closed, nil
}

func (d *Detector) refuse(path string) error {
	if d.guard == nil {
		return nil
	}
	canon, err := core.Canonical(path)
	if err != nil {
		return err
	}
	if err := d.guard.Check(canon); err != nil {
		return fmt.Errorf("%w: %v", ErrProtected, err)
	}
	return nil
}
