package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/history"
	"github.com/lakshaymaurya-felt/purewipe/internal/ladder"
	"github.com/lakshaymaurya-felt/purewipe/internal/walker"
)

var epoch = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type fakeFiles struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, path string) (ladder.Outcome, error)
}

func (f *fakeFiles) Delete(ctx context.Context, path string, _ ladder.Mode) (ladder.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, path)
	}
	return ladder.Outcome{Target: path, Succeeded: true, Strategy: ladder.StrategyRenameUnlink, Bytes: 10}, nil
}

func (f *fakeFiles) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeTree struct {
	dirs []string
	opts []walker.Options
}

func (f *fakeTree) DeleteTree(_ context.Context, dir string, opts walker.Options) ([]ladder.Outcome, error) {
	f.dirs = append(f.dirs, dir)
	f.opts = append(f.opts, opts)
	out := ladder.Outcome{Target: filepath.Join(dir, "inner.txt"), Err: errors.New("access denied")}
	opts.Observe(out)
	return []ladder.Outcome{out}, nil
}

type fakeHistory struct {
	outcomes []ladder.Outcome
	totals   *history.Totals
}

func (h *fakeHistory) RecordOutcome(out ladder.Outcome, _ time.Time) error {
	h.outcomes = append(h.outcomes, out)
	return nil
}

func (h *fakeHistory) Finish(t history.Totals, _ time.Time) error {
	h.totals = &t
	return nil
}

func newWorker(t *testing.T, files FileDeleter, tree TreeDeleter) (*Worker, *events.Recorder, *testclock.Clock) {
	t.Helper()
	rec := &events.Recorder{}
	clk := testclock.NewClock(epoch)
	w := New(Config{Sink: rec, Files: files, Tree: tree, Clock: clk, Logger: zerolog.Nop()})
	return w, rec, clk
}

func wait(t *testing.T, w *Worker) events.Summary {
	t.Helper()
	select {
	case <-w.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not finish")
	}
	return w.Summary()
}

func TestTasksRunInOrderWithProgress(t *testing.T) {
	files := &fakeFiles{}
	w, rec, _ := newWorker(t, files, &fakeTree{})
	dir := t.TempDir()
	var tasks []Task
	for _, name := range []string{"a", "b", "c", "d"} {
		tasks = append(tasks, Task{Target: filepath.Join(dir, name), Mode: ladder.ModeForce})
	}
	require.NoError(t, w.Submit(tasks...))
	require.NoError(t, w.Start(context.Background()))
	s := wait(t, w)

	assert.Equal(t, []string{tasks[0].Target, tasks[1].Target, tasks[2].Target, tasks[3].Target}, files.called())

	var pct []int
	for _, e := range rec.Of(events.KindProgress) {
		pct = append(pct, e.Percent)
	}
	assert.Equal(t, []int{25, 50, 75, 100}, pct)
	status := rec.Of(events.KindStatus)
	require.Len(t, status, 4)
	assert.Equal(t, "Cleaning: "+tasks[1].Target+" (50%)", status[1].Message)

	assert.Equal(t, 4, s.Tasks)
	assert.Equal(t, 4, s.Processed)
	assert.Equal(t, 4, s.Removed)
	assert.Equal(t, int64(40), s.FreedBytes)
	assert.False(t, s.Canceled)
	assert.Empty(t, s.Failures)

	all := rec.Events()
	last := all[len(all)-1]
	assert.Equal(t, events.KindCompleted, last.Kind)
	require.NotNil(t, last.Summary)
	assert.Equal(t, 4, last.Summary.Removed)
	assert.Len(t, rec.Of(events.KindCompleted), 1)
}

func TestFailuresAreLedgeredInOrder(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "cache")
	require.NoError(t, os.Mkdir(sub, 0o755))

	files := &fakeFiles{fn: func(_ context.Context, path string) (ladder.Outcome, error) {
		switch filepath.Base(path) {
		case "locked.dll":
			return ladder.Outcome{Target: path, Strategy: ladder.StrategyRebootDefer, DeferredToReboot: true, Err: ladder.ErrPendingReboot}, nil
		case "denied.txt":
			return ladder.Outcome{Target: path, Err: errors.New("access denied")}, nil
		}
		return ladder.Outcome{Target: path, Succeeded: true}, nil
	}}
	tree := &fakeTree{}
	hist := &fakeHistory{}
	rec := &events.Recorder{}
	w := New(Config{Sink: rec, Files: files, Tree: tree, Clock: testclock.NewClock(epoch), History: hist})

	require.NoError(t, w.Submit(
		Task{Target: filepath.Join(dir, "locked.dll"), Mode: ladder.ModeForce},
		Task{Target: sub, Mode: ladder.ModeNormal, KeepRoot: true},
		Task{Target: filepath.Join(dir, "denied.txt"), Mode: ladder.ModeForce},
		Task{Target: filepath.Join(dir, "ok.txt"), Mode: ladder.ModeForce},
	))
	require.NoError(t, w.Start(context.Background()))
	s := wait(t, w)

	assert.Equal(t, []string{sub}, tree.dirs)
	assert.True(t, tree.opts[0].KeepRoot)
	assert.Equal(t, ladder.ModeNormal, tree.opts[0].Mode)

	assert.Equal(t, []events.Failure{
		{Path: filepath.Join(dir, "locked.dll"), Reason: "pending reboot"},
		{Path: filepath.Join(sub, "inner.txt"), Reason: "access denied"},
		{Path: filepath.Join(dir, "denied.txt"), Reason: "access denied"},
	}, s.Failures)
	assert.Equal(t, 3, s.Failed)
	assert.Equal(t, 1, s.Deferred)
	assert.Equal(t, 1, s.Removed)
	assert.Len(t, w.Ledger().Pending(), 1)

	assert.Len(t, hist.outcomes, 4)
	require.NotNil(t, hist.totals)
	assert.Equal(t, 3, hist.totals.Failed)

	assert.NotEmpty(t, rec.Of(events.KindWarning))
}

func TestPanicIsRecoveredAndBatchContinues(t *testing.T) {
	dir := t.TempDir()
	files := &fakeFiles{fn: func(_ context.Context, path string) (ladder.Outcome, error) {
		if filepath.Base(path) == "boom" {
			panic("boom")
		}
		return ladder.Outcome{Target: path, Succeeded: true}, nil
	}}
	w, _, _ := newWorker(t, files, &fakeTree{})
	require.NoError(t, w.Submit(
		Task{Target: filepath.Join(dir, "boom")},
		Task{Target: filepath.Join(dir, "after")},
	))
	require.NoError(t, w.Start(context.Background()))
	s := wait(t, w)

	assert.Equal(t, 2, s.Processed)
	assert.Equal(t, 1, s.Removed)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, "panic: boom", s.Failures[0].Reason)
	assert.Contains(t, w.Logs()[len(w.Logs())-1], "Done: 1 removed")
}

func TestCancelStopsAtTaskBoundary(t *testing.T) {
	dir := t.TempDir()
	var w *Worker
	files := &fakeFiles{fn: func(ctx context.Context, path string) (ladder.Outcome, error) {
		if filepath.Base(path) == "b" {
			w.Cancel()
			return ladder.Outcome{Target: path, Err: ctx.Err()}, ctx.Err()
		}
		return ladder.Outcome{Target: path, Succeeded: true}, nil
	}}
	w, rec, _ := newWorker(t, files, &fakeTree{})
	require.NoError(t, w.Submit(
		Task{Target: filepath.Join(dir, "a")},
		Task{Target: filepath.Join(dir, "b")},
		Task{Target: filepath.Join(dir, "c")},
	))
	require.NoError(t, w.Start(context.Background()))
	s := wait(t, w)

	assert.True(t, s.Canceled)
	assert.Equal(t, 1, s.Processed)
	assert.NotContains(t, files.called(), filepath.Join(dir, "c"))
	assert.Empty(t, s.Failures)
	assert.Len(t, rec.Of(events.KindCompleted), 1)
}

func TestSubmitAndStartAfterStart(t *testing.T) {
	w, _, _ := newWorker(t, &fakeFiles{}, &fakeTree{})
	require.NoError(t, w.Start(context.Background()))
	assert.ErrorIs(t, w.Submit(Task{Target: "x"}), ErrStarted)
	assert.ErrorIs(t, w.Start(context.Background()), ErrStarted)

	s := wait(t, w)
	assert.Zero(t, s.Tasks)
	assert.Equal(t, s, w.Wait())
}

func TestHeartbeatAndWatchdog(t *testing.T) {
	release := make(chan struct{})
	files := &fakeFiles{fn: func(_ context.Context, path string) (ladder.Outcome, error) {
		<-release
		return ladder.Outcome{Target: path, Succeeded: true}, nil
	}}
	w, rec, clk := newWorker(t, files, &fakeTree{})
	require.NoError(t, w.Submit(Task{Target: filepath.Join(t.TempDir(), "slow")}))
	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return len(files.called()) == 1 }, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, clk.WaitAdvance(500*time.Millisecond, 5*time.Second, 1))
	assert.Eventually(t, func() bool { return len(rec.Of(events.KindHeartbeat)) == 1 },
		5*time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.Of(events.KindWarning))

	for i := 1; i < 20; i++ {
		require.NoError(t, clk.WaitAdvance(500*time.Millisecond, 5*time.Second, 1))
	}
	assert.Eventually(t, func() bool {
		for _, e := range rec.Of(events.KindWarning) {
			if e.Message == "[2026-05-04 12:00:10] Still working, no progress for 10s" {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)

	close(release)
	wait(t, w)

	all := rec.Events()
	assert.Equal(t, events.KindCompleted, all[len(all)-1].Kind)
	beats := len(rec.Of(events.KindHeartbeat))
	assert.GreaterOrEqual(t, beats, 20)

	// No heartbeat after completion even if time moves on.
	clk.Advance(5 * time.Second)
	assert.Len(t, rec.Of(events.KindHeartbeat), beats)
}

func TestJournalFormat(t *testing.T) {
	rec := &events.Recorder{}
	clk := testclock.NewClock(epoch)
	j := NewJournal(rec, zerolog.Nop(), clk)
	j.Logf("Processing: %s", "x")
	clk.Advance(3 * time.Second)
	j.Warnf("careful")

	assert.Equal(t, []string{
		"[2026-05-04 12:00:00] Processing: x",
		"[2026-05-04 12:00:03] careful",
	}, j.Lines())
	assert.Equal(t, events.KindWarning, rec.Events()[1].Kind)
	assert.Zero(t, j.Idle())
	clk.Advance(time.Second)
	assert.Equal(t, time.Second, j.Idle())
}
