package ladder

import (
	"context"
	"os"

	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
)

// StrategyID names a deletion strategy in outcomes, logs and metrics.
type StrategyID string

const (
	StrategyDirectRemove  StrategyID = "direct-remove"
	StrategyRenameUnlink  StrategyID = "rename-unlink"
	StrategyDeleteOnClose StrategyID = "delete-on-close"
	StrategyDisposition   StrategyID = "disposition"
	StrategyElevated      StrategyID = "elevated-command"
	StrategyRebootDefer   StrategyID = "reboot-defer"
)

// Verdict is what a strategy claims to have achieved. Removed claims are
// verified by the ladder before they count.
type Verdict int

const (
	VerdictRemoved Verdict = iota
	VerdictDeferred
)

// Target is the object a strategy works on. Current starts equal to Path
// and changes when a strategy renames the object; later strategies act on
// Current.
type Target struct {
	Path    string
	Current string
	IsDir   bool
}

// Strategy is one rung of the ladder.
type Strategy interface {
	ID() StrategyID
	Attempt(ctx context.Context, t *Target) (Verdict, error)
}

// ElevatedDeleter deletes an object through a privileged helper process.
type ElevatedDeleter interface {
	Delete(ctx context.Context, path string, isDir bool) error
}

// DefaultStrategies returns the force ladder in escalation order. The
// elevated rung is left out when elevated is nil.
func DefaultStrategies(elevated ElevatedDeleter) []Strategy {
	s := []Strategy{RenameUnlink{}, DeleteOnClose{}, Disposition{}}
	if elevated != nil {
		s = append(s, Elevated{Runner: elevated})
	}
	return append(s, RebootDefer{})
}

// DirectRemove is the plain remove used in normal mode.
type DirectRemove struct{}

func (DirectRemove) ID() StrategyID { return StrategyDirectRemove }

func (DirectRemove) Attempt(_ context.Context, t *Target) (Verdict, error) {
	return VerdictRemoved, os.Remove(fsops.LongPath(t.Current))
}

// RenameUnlink moves a file to a random hidden sibling and removes it
// under that name. Renaming often succeeds where deleting does not, and it
// frees the original name even if the unlink fails. Directories are never
// renamed; they are removed in place so any leftovers keep their paths.
type RenameUnlink struct{}

func (RenameUnlink) ID() StrategyID { return StrategyRenameUnlink }

func (RenameUnlink) Attempt(_ context.Context, t *Target) (Verdict, error) {
	if t.IsDir {
		return VerdictRemoved, os.Remove(fsops.LongPath(t.Current))
	}
	tmp := fsops.TempSibling(t.Current)
	if err := os.Rename(fsops.LongPath(t.Current), fsops.LongPath(tmp)); err != nil {
		return VerdictRemoved, err
	}
	t.Current = tmp
	return VerdictRemoved, os.Remove(fsops.LongPath(tmp))
}

// DeleteOnClose opens the object with delete-on-close and closes it.
type DeleteOnClose struct{}

func (DeleteOnClose) ID() StrategyID { return StrategyDeleteOnClose }

func (DeleteOnClose) Attempt(_ context.Context, t *Target) (Verdict, error) {
	return VerdictRemoved, fsops.DeleteOnClose(t.Current, t.IsDir)
}

// Disposition sets the delete disposition through a handle opened with
// delete access.
type Disposition struct{}

func (Disposition) ID() StrategyID { return StrategyDisposition }

func (Disposition) Attempt(_ context.Context, t *Target) (Verdict, error) {
	return VerdictRemoved, fsops.MarkForDeletion(t.Current)
}

// Elevated hands the object to a privileged helper.
type Elevated struct {
	Runner ElevatedDeleter
}

func (Elevated) ID() StrategyID { return StrategyElevated }

func (e Elevated) Attempt(ctx context.Context, t *Target) (Verdict, error) {
	return VerdictRemoved, e.Runner.Delete(ctx, t.Current, t.IsDir)
}

// RebootDefer registers the object for deletion at the next boot.
type RebootDefer struct{}

func (RebootDefer) ID() StrategyID { return StrategyRebootDefer }

func (RebootDefer) Attempt(_ context.Context, t *Target) (Verdict, error) {
	if err := fsops.DeleteOnReboot(t.Current); err != nil {
		return VerdictDeferred, err
	}
	return VerdictDeferred, nil
}
