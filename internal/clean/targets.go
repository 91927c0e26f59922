// Package clean turns command-line arguments, presets and drive scans into
// the ordered task list the worker executes.
package clean

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lakshaymaurya-felt/purewipe/internal/config"
	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/ladder"
	"github.com/lakshaymaurya-felt/purewipe/internal/scheduler"
)

// Target is one object queued for deletion.
type Target struct {
	Path        string
	Description string
	// KeepRoot removes a directory's contents and leaves the directory.
	KeepRoot bool
	// RequiresAdmin is inherited from the preset the target came from.
	RequiresAdmin bool
}

// ─── Sources ─────────────────────────────────────────────────────────────────

// FromArgs canonicalizes explicit paths. Missing paths are kept: deleting
// them is a vacuous success and the worker reports it that way.
func FromArgs(args []string) ([]Target, error) {
	targets := make([]Target, 0, len(args))
	for _, a := range args {
		p, err := core.Canonical(a)
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{Path: p})
	}
	return targets, nil
}

// FromPreset expands a preset's paths, including glob patterns, into the
// directories that currently exist. Each is cleaned with its root kept.
func FromPreset(p config.Preset) []Target {
	var targets []Target
	for _, pattern := range p.Paths {
		if strings.TrimSpace(pattern) == "" || !filepath.IsAbs(pattern) {
			continue
		}
		matches := []string{pattern}
		if strings.ContainsAny(pattern, "*?[") {
			var err error
			matches, err = filepath.Glob(pattern)
			if err != nil {
				continue
			}
			sort.Strings(matches)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.IsDir() {
				continue
			}
			targets = append(targets, Target{
				Path:          filepath.Clean(m),
				Description:   p.Description,
				KeepRoot:      true,
				RequiresAdmin: p.RequiresAdmin,
			})
		}
	}
	return targets
}

// FromPresets resolves preset names in order.
func FromPresets(names []string) ([]Target, error) {
	var targets []Target
	for _, name := range names {
		p, ok := config.PresetByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
		}
		targets = append(targets, FromPreset(p)...)
	}
	return targets, nil
}

// PresetNames lists every preset name.
func PresetNames() []string {
	presets := config.GetPresets()
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	return names
}

// ─── Assembly ────────────────────────────────────────────────────────────────

// Dedupe drops repeated paths, keeping the first occurrence. %TEMP% and
// %LOCALAPPDATA%\Temp are usually the same directory.
func Dedupe(targets []Target) []Target {
	seen := make(map[string]bool, len(targets))
	out := targets[:0:0]
	for _, t := range targets {
		key := core.PathKey(t.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}

// Tasks converts targets into worker tasks, all run in mode.
func Tasks(targets []Target, mode ladder.Mode) []scheduler.Task {
	tasks := make([]scheduler.Task, 0, len(targets))
	for _, t := range targets {
		tasks = append(tasks, scheduler.Task{Target: t.Path, Mode: mode, KeepRoot: t.KeepRoot})
	}
	return tasks
}
