package ladder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
	"github.com/lakshaymaurya-felt/purewipe/internal/helper"
	"github.com/lakshaymaurya-felt/purewipe/internal/safety"
)

type stubStrategy struct {
	id    StrategyID
	fn    func(ctx context.Context, t *Target) (Verdict, error)
	calls int
	seen  []string
}

func (s *stubStrategy) ID() StrategyID { return s.id }

func (s *stubStrategy) Attempt(ctx context.Context, t *Target) (Verdict, error) {
	s.calls++
	s.seen = append(s.seen, t.Current)
	return s.fn(ctx, t)
}

func failing(id StrategyID, err error) *stubStrategy {
	return &stubStrategy{id: id, fn: func(context.Context, *Target) (Verdict, error) {
		return VerdictRemoved, err
	}}
}

func removing(id StrategyID) *stubStrategy {
	return &stubStrategy{id: id, fn: func(_ context.Context, t *Target) (Verdict, error) {
		return VerdictRemoved, os.Remove(t.Current)
	}}
}

type logLines struct {
	mu    sync.Mutex
	lines []string
}

func (l *logLines) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *logLines) Warnf(format string, args ...any) { l.Logf(format, args...) }

func (l *logLines) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

type attempts map[string]int

func (a attempts) ObserveAttempt(strategy, result string) { a[strategy+"/"+result]++ }

type fakeBreaker struct {
	locked   bool
	killed   bool
	unlocked bool
	calls    []string
	onUnlock func()
}

func (b *fakeBreaker) IsLocked(context.Context, string) (bool, error) {
	b.calls = append(b.calls, "locked")
	return b.locked, nil
}

func (b *fakeBreaker) KillHolders(context.Context, string) (bool, error) {
	b.calls = append(b.calls, "kill")
	return b.killed, nil
}

func (b *fakeBreaker) UnlockHandle(context.Context, string) (bool, error) {
	b.calls = append(b.calls, "unlock")
	if b.onUnlock != nil {
		b.onUnlock()
	}
	return b.unlocked, nil
}

type fakeOwner struct{ paths []string }

func (o *fakeOwner) TakeOwnership(path string) error {
	o.paths = append(o.paths, path)
	return errors.New("not permitted")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestAbsentTargetIsVacuousSuccess(t *testing.T) {
	first := failing(StrategyRenameUnlink, errors.New("unreachable"))
	log := &logLines{}
	l := New(Config{Strategies: []Strategy{first}, Reporter: log})

	out, err := l.ForceDelete(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Empty(t, out.Strategy)
	assert.Zero(t, first.calls)
	assert.Empty(t, log.joined())
}

func TestNormalModeRunsOnlyPlainRemove(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.txt", "hello")
	force := failing(StrategyRenameUnlink, errors.New("unreachable"))
	l := New(Config{Strategies: []Strategy{force}})

	out, err := l.Delete(context.Background(), p, ModeNormal)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, StrategyDirectRemove, out.Strategy)
	assert.Equal(t, int64(5), out.Bytes)
	assert.NoFileExists(t, p)
	assert.Zero(t, force.calls)

	// A non-empty directory cannot be removed plainly and nothing escalates.
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "x", "")
	out, err = l.Delete(context.Background(), sub, ModeNormal)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.True(t, out.IsDir)
	assert.Error(t, out.Err)
	assert.Zero(t, force.calls)
}

func TestDefaultLadderRemovesPlainFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "b.log", "data")
	rec := attempts{}
	l := New(Config{Recorder: rec})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, StrategyRenameUnlink, out.Strategy)
	assert.Equal(t, 1, rec["rename-unlink/removed"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no renamed leftovers")
}

func TestGuardRefusesCriticalPath(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "ntoskrnl.exe", "MZ")
	breaker := &fakeBreaker{locked: true, killed: true}
	guard := safety.NewGuard(safety.Lists{Critical: []string{p}}, false)
	l := New(Config{Guard: guard, Breaker: breaker})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Empty(t, out.Strategy)
	assert.ErrorIs(t, out.Err, safety.ErrCritical)
	assert.Empty(t, breaker.calls)
	assert.FileExists(t, p)

	// Same basename elsewhere is not critical.
	other := writeFile(t, t.TempDir(), "ntoskrnl.exe", "MZ")
	out, err = l.ForceDelete(context.Background(), other)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)

	// Unrestricted lifts the exclusion.
	l = New(Config{Guard: safety.NewGuard(safety.Lists{Critical: []string{p}}, true)})
	out, err = l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
}

func TestEscalatesPastFailures(t *testing.T) {
	p := writeFile(t, t.TempDir(), "c.txt", "x")
	first := failing(StrategyRenameUnlink, errors.New("sharing violation"))
	second := failing(StrategyDeleteOnClose, fsops.ErrUnsupported)
	third := failing(StrategyElevated, fmt.Errorf("%w: psexec", helper.ErrUnavailable))
	fourth := removing(StrategyDisposition)
	log := &logLines{}
	rec := attempts{}
	l := New(Config{Strategies: []Strategy{first, second, third, fourth}, Reporter: log, Recorder: rec})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, StrategyDisposition, out.Strategy)
	assert.Nil(t, out.Err)
	assert.Contains(t, log.joined(), "rename-unlink failed")
	assert.NotContains(t, log.joined(), "delete-on-close")
	assert.Equal(t, attempts{
		"rename-unlink/failed":     1,
		"delete-on-close/skipped":  1,
		"elevated-command/skipped": 1,
		"disposition/removed":      1,
	}, rec)
}

func TestPostConditionIsVerified(t *testing.T) {
	p := writeFile(t, t.TempDir(), "d.txt", "x")
	liar := &stubStrategy{id: StrategyDeleteOnClose, fn: func(context.Context, *Target) (Verdict, error) {
		return VerdictRemoved, nil
	}}
	honest := removing(StrategyDisposition)
	l := New(Config{Strategies: []Strategy{liar, honest}})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StrategyDisposition, out.Strategy)
	assert.Equal(t, 1, honest.calls)
}

func TestLaterStrategiesActOnRenamedObject(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "e.txt", "x")
	renamed := filepath.Join(dir, ".deadbeef.tmp")

	rename := &stubStrategy{id: StrategyRenameUnlink, fn: func(_ context.Context, t *Target) (Verdict, error) {
		if err := os.Rename(t.Current, renamed); err != nil {
			return VerdictRemoved, err
		}
		t.Current = renamed
		return VerdictRemoved, errors.New("unlink denied")
	}}
	next := removing(StrategyDeleteOnClose)
	l := New(Config{Strategies: []Strategy{rename, next}})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, []string{renamed}, next.seen)
	assert.NoFileExists(t, renamed)
}

func TestRenamedLeftoverFailsPostCondition(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "f.txt", "x")
	renamed := filepath.Join(dir, ".cafebabe.tmp")

	// Removes nothing but claims success after renaming.
	rename := &stubStrategy{id: StrategyRenameUnlink, fn: func(_ context.Context, tg *Target) (Verdict, error) {
		require.NoError(t, os.Rename(tg.Current, renamed))
		tg.Current = renamed
		return VerdictRemoved, nil
	}}
	l := New(Config{Strategies: []Strategy{rename}})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.EqualError(t, out.Err, "rename-unlink: object still present")
}

func TestRebootDeferral(t *testing.T) {
	p := writeFile(t, t.TempDir(), "g.txt", "x")
	first := failing(StrategyRenameUnlink, errors.New("access denied"))
	defer1 := &stubStrategy{id: StrategyRebootDefer, fn: func(context.Context, *Target) (Verdict, error) {
		return VerdictDeferred, nil
	}}
	l := New(Config{Strategies: []Strategy{first, defer1}})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.True(t, out.DeferredToReboot)
	assert.Equal(t, StrategyRebootDefer, out.Strategy)
	assert.ErrorIs(t, out.Err, ErrPendingReboot)
	assert.Equal(t, "pending reboot", out.Reason())
}

func TestEveryStrategyFails(t *testing.T) {
	p := writeFile(t, t.TempDir(), "h.txt", "x")
	l := New(Config{Strategies: []Strategy{
		failing(StrategyRenameUnlink, errors.New("denied")),
		failing(StrategyRebootDefer, errors.New("registry locked")),
	}})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.False(t, out.DeferredToReboot)
	assert.Equal(t, "reboot-defer: registry locked", out.Reason())

	l = New(Config{Strategies: []Strategy{failing(StrategyDeleteOnClose, fsops.ErrUnsupported)}})
	out, err = l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.EqualError(t, out.Err, "no deletion strategy available")
}

func TestVanishedDuringAttemptIsSuccess(t *testing.T) {
	p := writeFile(t, t.TempDir(), "i.txt", "x")
	racer := &stubStrategy{id: StrategyRenameUnlink, fn: func(_ context.Context, tg *Target) (Verdict, error) {
		require.NoError(t, os.Remove(tg.Current))
		return VerdictRemoved, os.Remove(tg.Current)
	}}
	l := New(Config{Strategies: []Strategy{racer}})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
}

func TestCancellationStopsTheLadder(t *testing.T) {
	p := writeFile(t, t.TempDir(), "j.txt", "x")
	ctx, cancel := context.WithCancel(context.Background())
	first := &stubStrategy{id: StrategyRenameUnlink, fn: func(context.Context, *Target) (Verdict, error) {
		cancel()
		return VerdictRemoved, errors.New("interrupted")
	}}
	second := removing(StrategyDeleteOnClose)
	l := New(Config{Strategies: []Strategy{first, second}})

	out, err := l.ForceDelete(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, out.Succeeded)
	assert.Zero(t, second.calls)
	assert.FileExists(t, p)

	_, err = l.ForceDelete(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, first.calls)
}

func TestPreparationKillsThenSettles(t *testing.T) {
	p := writeFile(t, t.TempDir(), "k.txt", "x")
	clk := testclock.NewClock(time.Now())
	breaker := &fakeBreaker{locked: true, killed: true}
	owner := &fakeOwner{}
	log := &logLines{}
	l := New(Config{
		Breaker:     breaker,
		Owner:       owner,
		Clock:       clk,
		SettleDelay: time.Second,
		Reporter:    log,
		Strategies:  []Strategy{removing(StrategyRenameUnlink)},
	})

	done := make(chan Outcome, 1)
	go func() {
		out, _ := l.ForceDelete(context.Background(), p)
		done <- out
	}()

	require.NoError(t, clk.WaitAdvance(time.Second, 5*time.Second, 1))
	select {
	case out := <-done:
		assert.True(t, out.Succeeded)
	case <-time.After(5 * time.Second):
		t.Fatal("ladder did not resume after the settle delay")
	}
	assert.Equal(t, []string{"locked", "kill"}, breaker.calls)
	assert.Equal(t, []string{p}, owner.paths)
	assert.Contains(t, log.joined(), "Could not take ownership")
}

func TestPreparationFallsBackToUnlock(t *testing.T) {
	p := writeFile(t, t.TempDir(), "l.txt", "x")
	breaker := &fakeBreaker{locked: true}
	l := New(Config{Breaker: breaker, Strategies: []Strategy{removing(StrategyRenameUnlink)}})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, []string{"locked", "kill", "unlock"}, breaker.calls)
}

func TestObjectGoneAfterPreparation(t *testing.T) {
	p := writeFile(t, t.TempDir(), "m.txt", "x")
	breaker := &fakeBreaker{locked: true, onUnlock: func() { _ = os.Remove(p) }}
	first := failing(StrategyRenameUnlink, errors.New("unreachable"))
	l := New(Config{Breaker: breaker, Strategies: []Strategy{first}})

	out, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Empty(t, out.Strategy)
	assert.Zero(t, first.calls)
}

func TestPreparationSkippedInNormalMode(t *testing.T) {
	p := writeFile(t, t.TempDir(), "n.txt", "x")
	breaker := &fakeBreaker{locked: true, killed: true}
	owner := &fakeOwner{}
	l := New(Config{Breaker: breaker, Owner: owner})

	out, err := l.Delete(context.Background(), p, ModeNormal)
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Empty(t, breaker.calls)
	assert.Empty(t, owner.paths)
}

func TestDefaultStrategiesOrder(t *testing.T) {
	ids := func(ss []Strategy) []StrategyID {
		var out []StrategyID
		for _, s := range ss {
			out = append(out, s.ID())
		}
		return out
	}
	assert.Equal(t, []StrategyID{
		StrategyRenameUnlink, StrategyDeleteOnClose, StrategyDisposition, StrategyRebootDefer,
	}, ids(DefaultStrategies(nil)))

	elevated := helper.NewElevatedRunner(helper.NewTools(t.TempDir()), helper.ExecRunner{}, time.Second, time.Second)
	assert.Equal(t, []StrategyID{
		StrategyRenameUnlink, StrategyDeleteOnClose, StrategyDisposition, StrategyElevated, StrategyRebootDefer,
	}, ids(DefaultStrategies(elevated)))
}

func TestForceDeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "twice.bin", "data")
	rec := attempts{}
	l := New(Config{Recorder: rec})

	first, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, first.Succeeded)
	assert.Equal(t, StrategyRenameUnlink, first.Strategy)

	second, err := l.ForceDelete(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, second.Succeeded)
	assert.Empty(t, second.Strategy, "an absent object needs no strategy")
	assert.NoError(t, second.Err)
	assert.Equal(t, attempts{"rename-unlink/removed": 1}, rec)
}

func TestRenameUnlinkRemovesDirectoriesInPlace(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full")
	require.NoError(t, os.Mkdir(full, 0o755))
	writeFile(t, full, "left.txt", "x")

	tg := &Target{Path: full, Current: full, IsDir: true}
	_, err := RenameUnlink{}.Attempt(context.Background(), tg)
	require.Error(t, err)
	assert.Equal(t, full, tg.Current)
	assert.FileExists(t, filepath.Join(full, "left.txt"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "full", entries[0].Name())

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	tg = &Target{Path: empty, Current: empty, IsDir: true}
	_, err = RenameUnlink{}.Attempt(context.Background(), tg)
	require.NoError(t, err)
	assert.NoDirExists(t, empty)
}
