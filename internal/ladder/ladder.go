// Package ladder deletes a single filesystem object by escalating through
// progressively stronger strategies until the object is confirmed gone or
// registered for deletion at the next boot.
package ladder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/juju/clock"

	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
	"github.com/lakshaymaurya-felt/purewipe/internal/helper"
	"github.com/lakshaymaurya-felt/purewipe/internal/safety"
)

// ErrPendingReboot is the failure reason of an object left for the next boot.
var ErrPendingReboot = errors.New("pending reboot")

// DefaultSettleDelay is how long to wait after breaking a lock before the
// first strategy runs.
const DefaultSettleDelay = time.Second

// Mode selects how hard the ladder tries.
type Mode int

const (
	// ModeNormal runs the plain remove and never escalates.
	ModeNormal Mode = iota
	// ModeForce breaks locks, takes ownership and climbs the whole ladder.
	ModeForce
)

func (m Mode) String() string {
	if m == ModeForce {
		return "force"
	}
	return "normal"
}

// Outcome is the result of deleting one object. Strategy is empty when no
// strategy ran (object already gone, or refused).
type Outcome struct {
	Target           string
	IsDir            bool
	Succeeded        bool
	Strategy         StrategyID
	DeferredToReboot bool
	Err              error
	Bytes            int64
}

// Reason returns the failure text, or "" on success.
func (o Outcome) Reason() string {
	if o.Succeeded || o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// LockBreaker detects and breaks foreign holds on an object.
type LockBreaker interface {
	IsLocked(ctx context.Context, path string) (bool, error)
	KillHolders(ctx context.Context, path string) (bool, error)
	UnlockHandle(ctx context.Context, path string) (bool, error)
}

// Owner takes ownership of an object.
type Owner interface {
	TakeOwnership(path string) error
}

// Recorder observes every strategy attempt. Result is one of "removed",
// "deferred", "failed" or "skipped".
type Recorder interface {
	ObserveAttempt(strategy, result string)
}

// Config wires a Ladder. Every field is optional.
type Config struct {
	Guard   *safety.Guard
	Breaker LockBreaker
	Owner   Owner
	// Strategies is the force ladder; DefaultStrategies(nil) when empty.
	Strategies []Strategy
	// Plain is the normal-mode strategy; DirectRemove when nil.
	Plain       Strategy
	Reporter    events.Reporter
	Clock       clock.Clock
	SettleDelay time.Duration
	Recorder    Recorder
}

// Ladder deletes objects one at a time and must not be shared between
// goroutines.
type Ladder struct {
	guard      *safety.Guard
	breaker    LockBreaker
	owner      Owner
	strategies []Strategy
	plain      Strategy
	log        events.Reporter
	clock      clock.Clock
	settle     time.Duration
	recorder   Recorder
}

// New builds a Ladder from cfg.
func New(cfg Config) *Ladder {
	l := &Ladder{
		guard:      cfg.Guard,
		breaker:    cfg.Breaker,
		owner:      cfg.Owner,
		strategies: cfg.Strategies,
		plain:      cfg.Plain,
		log:        cfg.Reporter,
		clock:      cfg.Clock,
		settle:     cfg.SettleDelay,
		recorder:   cfg.Recorder,
	}
	if len(l.strategies) == 0 {
		l.strategies = DefaultStrategies(nil)
	}
	if l.plain == nil {
		l.plain = DirectRemove{}
	}
	if l.log == nil {
		l.log = events.NopReporter
	}
	if l.clock == nil {
		l.clock = clock.WallClock
	}
	return l
}

// ForceDelete removes path using every available means.
func (l *Ladder) ForceDelete(ctx context.Context, path string) (Outcome, error) {
	return l.Delete(ctx, path, ModeForce)
}

// Delete removes path. The returned error is non-nil only when ctx was
// canceled; every other failure is reported in the Outcome.
func (l *Ladder) Delete(ctx context.Context, path string, mode Mode) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{Target: path, Err: err}, err
	}
	target, err := core.Canonical(path)
	if err != nil {
		return Outcome{Target: path, Err: err}, nil
	}
	out := Outcome{Target: target}

	info, err := os.Lstat(fsops.LongPath(target))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		out.Succeeded = true
		return out, nil
	case err == nil:
		out.IsDir = info.IsDir()
		if info.Mode().IsRegular() {
			out.Bytes = info.Size()
		}
	}

	if l.guard != nil {
		if err := l.guard.Check(target); err != nil {
			out.Err = err
			return out, nil
		}
	}

	t := &Target{Path: target, Current: target, IsDir: out.IsDir}
	if mode == ModeNormal {
		return l.climb(ctx, out, t, []Strategy{l.plain})
	}

	if err := l.prepare(ctx, t); err != nil {
		out.Err = err
		return out, err
	}
	if l.gone(t) {
		out.Succeeded = true
		return out, nil
	}
	return l.climb(ctx, out, t, l.strategies)
}

// PrepareDir takes ownership of a directory before its entries are listed.
// Failure is logged and otherwise ignored.
func (l *Ladder) PrepareDir(path string) {
	if l.owner == nil {
		return
	}
	if err := l.owner.TakeOwnership(path); err != nil {
		l.log.Logf("Could not take ownership of %s: %v", path, err)
	}
}

func (l *Ladder) prepare(ctx context.Context, t *Target) error {
	if l.breaker != nil {
		acted, err := l.breakLocks(ctx, t.Current)
		if err != nil {
			return err
		}
		if acted && l.settle > 0 {
			select {
			case <-l.clock.After(l.settle):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	if l.owner != nil && !fsops.Absent(t.Current) {
		if err := l.owner.TakeOwnership(t.Current); err != nil {
			l.log.Logf("Could not take ownership of %s: %v", t.Current, err)
		}
	}
	return nil
}

// breakLocks returns a non-nil error only on cancellation.
func (l *Ladder) breakLocks(ctx context.Context, path string) (bool, error) {
	locked, err := l.breaker.IsLocked(ctx, path)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		l.log.Logf("Lock detection failed for %s: %v", path, err)
		return false, nil
	}
	if !locked {
		return false, nil
	}

	killed, err := l.breaker.KillHolders(ctx, path)
	if err != nil {
		l.log.Logf("Could not terminate holders of %s: %v", path, err)
	}
	if killed {
		return true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}

	unlocked, err := l.breaker.UnlockHandle(ctx, path)
	if err != nil {
		l.log.Logf("Could not release handles on %s: %v", path, err)
	}
	return unlocked, ctx.Err()
}

func (l *Ladder) climb(ctx context.Context, out Outcome, t *Target, strategies []Strategy) (Outcome, error) {
	var last error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out, err
		}

		verdict, err := s.Attempt(ctx, t)
		if err != nil {
			if errors.Is(err, fsops.ErrUnsupported) || errors.Is(err, helper.ErrUnavailable) {
				l.observe(s, "skipped")
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				l.observe(s, "failed")
				out.Err = ctxErr
				return out, ctxErr
			}
			if errors.Is(err, fs.ErrNotExist) && l.gone(t) {
				return l.won(out, s), nil
			}
			l.observe(s, "failed")
			l.log.Logf("%s failed for %s: %v", s.ID(), t.Path, err)
			last = fmt.Errorf("%s: %w", s.ID(), err)
			continue
		}

		if verdict == VerdictDeferred {
			l.observe(s, "deferred")
			l.log.Logf("Scheduled %s for deletion at next reboot", t.Path)
			out.Strategy = s.ID()
			out.DeferredToReboot = true
			out.Err = ErrPendingReboot
			return out, nil
		}
		if l.gone(t) {
			return l.won(out, s), nil
		}
		l.observe(s, "failed")
		l.log.Logf("%s reported success but %s is still present", s.ID(), t.Path)
		last = fmt.Errorf("%s: object still present", s.ID())
	}

	if last == nil {
		last = errors.New("no deletion strategy available")
	}
	out.Err = last
	return out, nil
}

func (l *Ladder) won(out Outcome, s Strategy) Outcome {
	l.observe(s, "removed")
	out.Succeeded = true
	out.Strategy = s.ID()
	out.Err = nil
	return out
}

// gone is the post-condition: neither the original nor the renamed name
// may still exist.
func (l *Ladder) gone(t *Target) bool {
	return fsops.Absent(t.Path) && fsops.Absent(t.Current)
}

func (l *Ladder) observe(s Strategy, result string) {
	if l.recorder != nil {
		l.recorder.ObserveAttempt(string(s.ID()), result)
	}
}
