// Package walker deletes directory trees bottom-up through the ladder.
package walker

import (
	"context"
	"os"
	"path/filepath"

	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
	"github.com/lakshaymaurya-felt/purewipe/internal/ladder"
	"github.com/lakshaymaurya-felt/purewipe/internal/safety"
)

// Deleter removes one object. *ladder.Ladder implements it.
type Deleter interface {
	Delete(ctx context.Context, path string, mode ladder.Mode) (ladder.Outcome, error)
	PrepareDir(path string)
}

// Options control a single tree deletion.
type Options struct {
	Mode ladder.Mode
	// KeepRoot cleans the contents of the directory but keeps it.
	KeepRoot bool
	// Observe, when set, sees every outcome as soon as it is produced.
	Observe func(ladder.Outcome)
}

// Walker deletes trees in post-order: every entry before its parent,
// siblings in lexical order. Links and junctions are removed as entries
// and never followed.
type Walker struct {
	del   Deleter
	guard *safety.Guard
	log   events.Reporter
}

// New returns a Walker. guard may be nil.
func New(del Deleter, guard *safety.Guard, log events.Reporter) *Walker {
	if log == nil {
		log = events.NopReporter
	}
	return &Walker{del: del, guard: guard, log: log}
}

// ForceDeleteTree removes dir and everything below it in force mode.
func (w *Walker) ForceDeleteTree(ctx context.Context, dir string) ([]ladder.Outcome, error) {
	return w.DeleteTree(ctx, dir, Options{Mode: ladder.ModeForce})
}

// DeleteTree removes the tree rooted at dir. On cancellation it returns
// the outcomes produced so far together with the context error; entries
// not yet reached do not appear. A missing dir yields no outcomes.
func (w *Walker) DeleteTree(ctx context.Context, dir string, opts Options) ([]ladder.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := &run{Walker: w, opts: opts}

	base, err := core.Canonical(dir)
	if err != nil {
		r.record(ladder.Outcome{Target: dir, Err: err})
		return r.results, nil
	}
	info, err := os.Lstat(fsops.LongPath(base))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		r.record(ladder.Outcome{Target: base, Err: err})
		return r.results, nil
	}
	r.base = base

	if !info.IsDir() || fsops.IsReparsePoint(base) {
		if opts.KeepRoot {
			return nil, nil
		}
		_, err := r.remove(ctx, base)
		return r.results, err
	}

	if err := w.checkBase(base, opts.KeepRoot); err != nil {
		r.record(ladder.Outcome{Target: base, IsDir: true, Err: err})
		return r.results, nil
	}

	kept, err := r.walk(ctx, base)
	if err != nil {
		return r.results, err
	}
	if opts.KeepRoot {
		return r.results, nil
	}
	if kept {
		w.log.Logf("Keeping %s: it still holds entries that were not removed", base)
		return r.results, nil
	}
	_, err = r.remove(ctx, base)
	return r.results, err
}

func (w *Walker) checkBase(base string, keepRoot bool) error {
	if w.guard == nil {
		return nil
	}
	if keepRoot {
		return w.guard.CheckContents(base)
	}
	return w.guard.Check(base)
}

// skip reports whether child must be left in place.
func (w *Walker) skip(base, child string) bool {
	if w.guard == nil {
		return false
	}
	if w.guard.SkipInWalk(base, child) {
		w.log.Logf("Skipping %s", child)
		return true
	}
	if err := w.guard.Check(child); err != nil {
		w.log.Logf("Skipping %v", err)
		return true
	}
	return false
}

type run struct {
	*Walker
	opts    Options
	base    string
	results []ladder.Outcome
}

// walk empties dir. It reports whether anything was left behind (skipped,
// failed or deferred to reboot), in which case dir is not removed. A kept
// base is never prepared, so its owner and ACL stay untouched.
func (r *run) walk(ctx context.Context, dir string) (bool, error) {
	keptBase := r.opts.KeepRoot && dir == r.base
	if r.opts.Mode == ladder.ModeForce && !keptBase {
		r.del.PrepareDir(dir)
	}
	entries, err := os.ReadDir(fsops.LongPath(dir))
	if err != nil {
		r.log.Warnf("Cannot read %s: %v", dir, err)
	}

	kept := false
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return kept, err
		}
		child := filepath.Join(dir, e.Name())
		if r.skip(r.base, child) {
			kept = true
			continue
		}

		if e.IsDir() && !fsops.IsReparsePoint(child) {
			childKept, err := r.walk(ctx, child)
			if err != nil {
				return kept, err
			}
			if childKept {
				kept = true
				continue
			}
		}
		left, err := r.remove(ctx, child)
		if err != nil {
			return kept, err
		}
		if left {
			kept = true
		}
	}
	return kept, nil
}

// remove deletes one object and reports whether it is still in place. Its
// outcome is dropped when the deletion was interrupted by cancellation.
func (r *run) remove(ctx context.Context, path string) (bool, error) {
	out, err := r.del.Delete(ctx, path, r.opts.Mode)
	if err != nil {
		return false, err
	}
	r.record(out)
	return !out.Succeeded, nil
}

func (r *run) record(out ladder.Outcome) {
	r.results = append(r.results, out)
	if r.opts.Observe != nil {
		r.opts.Observe(out)
	}
}
