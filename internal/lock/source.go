package lock

import (
	"context"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

// Process is the view of a running process the detector needs.
type Process interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	Exe(ctx context.Context) (string, error)
	OpenFiles(ctx context.Context) ([]string, error)
	Kill(ctx context.Context) error
}

// ProcessSource enumerates running processes.
type ProcessSource interface {
	Processes(ctx context.Context) ([]Process, error)
}

// SystemSource enumerates processes through gopsutil. When a process's
// executable path cannot be read directly (typically access denied for
// elevated or service processes), it is filled from a single WMI snapshot
// where WMI is available.
type SystemSource struct{}

// NewSystemSource returns the live process source.
func NewSystemSource() *SystemSource { return &SystemSource{} }

func (s *SystemSource) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	snap := &exeSnapshot{}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		out = append(out, &systemProcess{p: p, exes: snap})
	}
	return out, nil
}

// exeSnapshot lazily loads executable paths for all processes at once.
type exeSnapshot struct {
	once  sync.Once
	paths map[int32]string
}

func (s *exeSnapshot) lookup(pid int32) string {
	s.once.Do(func() {
		s.paths, _ = executablePaths()
	})
	return s.paths[pid]
}

type systemProcess struct {
	p    *process.Process
	exes *exeSnapshot
}

func (sp *systemProcess) PID() int32 { return sp.p.Pid }

func (sp *systemProcess) Name(ctx context.Context) (string, error) {
	return sp.p.NameWithContext(ctx)
}

func (sp *systemProcess) Exe(ctx context.Context) (string, error) {
	exe, err := sp.p.ExeWithContext(ctx)
	if err == nil && exe != "" {
		return exe, nil
	}
	if alt := sp.exes.lookup(sp.p.Pid); alt != "" {
		return alt, nil
	}
	return exe, err
}

func (sp *systemProcess) OpenFiles(ctx context.Context) ([]string, error) {
	files, err := sp.p.OpenFilesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths, nil
}

func (sp *systemProcess) Kill(ctx context.Context) error {
	return sp.p.KillWithContext(ctx)
}
