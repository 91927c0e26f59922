// Package scheduler runs deletion tasks in order on a dedicated goroutine
// and reports on them through an event sink.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"github.com/lakshaymaurya-felt/purewipe/internal/core"
	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/fsops"
	"github.com/lakshaymaurya-felt/purewipe/internal/history"
	"github.com/lakshaymaurya-felt/purewipe/internal/ladder"
	"github.com/lakshaymaurya-felt/purewipe/internal/ledger"
	"github.com/lakshaymaurya-felt/purewipe/internal/metrics"
	"github.com/lakshaymaurya-felt/purewipe/internal/walker"
)

// ErrStarted is returned by Submit and Start once the worker is running.
var ErrStarted = errors.New("worker already started")

const (
	DefaultHeartbeatInterval = 500 * time.Millisecond
	DefaultWatchdogTimeout   = 10 * time.Second
)

// Task is one requested deletion.
type Task struct {
	Target string
	Mode   ladder.Mode
	// KeepRoot cleans a directory's contents and keeps the directory.
	KeepRoot bool
}

// TreeDeleter deletes directory trees. *walker.Walker implements it.
type TreeDeleter interface {
	DeleteTree(ctx context.Context, dir string, opts walker.Options) ([]ladder.Outcome, error)
}

// FileDeleter deletes single objects. *ladder.Ladder implements it.
type FileDeleter interface {
	Delete(ctx context.Context, path string, mode ladder.Mode) (ladder.Outcome, error)
}

// HistorySession persists outcomes. *history.Session implements it.
type HistorySession interface {
	RecordOutcome(out ladder.Outcome, at time.Time) error
	Finish(t history.Totals, at time.Time) error
}

// Config wires a Worker. Tree and Files are required.
type Config struct {
	Sink    events.Sink
	Journal *Journal
	Tree    TreeDeleter
	Files   FileDeleter
	Clock   clock.Clock
	Logger  zerolog.Logger

	HeartbeatInterval time.Duration
	WatchdogTimeout   time.Duration

	History HistorySession
	Metrics *metrics.Recorder
}

// Worker executes tasks strictly in submission order, one at a time.
type Worker struct {
	sink     events.Sink
	journal  *Journal
	tree     TreeDeleter
	files    FileDeleter
	clock    clock.Clock
	log      zerolog.Logger
	interval time.Duration
	watchdog time.Duration
	history  HistorySession
	metrics  *metrics.Recorder
	ledger   *ledger.Ledger

	mu      sync.Mutex
	queue   []Task
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	summary events.Summary
}

// New returns an idle worker.
func New(cfg Config) *Worker {
	w := &Worker{
		sink:     cfg.Sink,
		journal:  cfg.Journal,
		tree:     cfg.Tree,
		files:    cfg.Files,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		interval: cfg.HeartbeatInterval,
		watchdog: cfg.WatchdogTimeout,
		history:  cfg.History,
		metrics:  cfg.Metrics,
		ledger:   ledger.New(),
		done:     make(chan struct{}),
	}
	if w.sink == nil {
		w.sink = events.Discard
	}
	if w.clock == nil {
		w.clock = clock.WallClock
	}
	if w.journal == nil {
		w.journal = NewJournal(w.sink, w.log, w.clock)
	}
	if w.interval <= 0 {
		w.interval = DefaultHeartbeatInterval
	}
	if w.watchdog <= 0 {
		w.watchdog = DefaultWatchdogTimeout
	}
	return w
}

// Submit queues tasks. It fails once the worker has started.
func (w *Worker) Submit(tasks ...Task) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrStarted
	}
	w.queue = append(w.queue, tasks...)
	return nil
}

// Start runs the queued tasks in the background and returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrStarted
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	queue := append([]Task(nil), w.queue...)
	go w.run(ctx, queue)
	return nil
}

// Cancel asks the worker to stop at the next cancellation point.
func (w *Worker) Cancel() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed after the completion event was emitted.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Wait blocks until the worker finishes and returns its summary.
func (w *Worker) Wait() events.Summary {
	<-w.done
	return w.Summary()
}

// Summary returns the final summary; it is only complete after Done.
func (w *Worker) Summary() events.Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary
}

// Logs returns every journal line of the session.
func (w *Worker) Logs() []string { return w.journal.Lines() }

// Ledger returns the failure ledger.
func (w *Worker) Ledger() *ledger.Ledger { return w.ledger }

func (w *Worker) run(ctx context.Context, queue []Task) {
	defer close(w.done)

	s := events.Summary{Tasks: len(queue), Started: w.clock.Now()}
	w.journal.Logf("Starting %d task(s)", len(queue))

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go w.heartbeat(hbCtx, hbDone)

	for i, task := range queue {
		if ctx.Err() != nil {
			s.Canceled = true
			break
		}
		w.journal.Logf("Processing: %s", task.Target)

		began := w.clock.Now()
		err := w.runTask(ctx, task, &s)
		w.metrics.ObserveTask(w.clock.Now().Sub(began))
		if err != nil {
			s.Canceled = true
			break
		}

		s.Processed++
		pct := (i + 1) * 100 / len(queue)
		now := w.clock.Now()
		w.sink.Emit(events.Event{Kind: events.KindProgress, Time: now, Percent: pct})
		w.sink.Emit(events.Event{
			Kind:    events.KindStatus,
			Time:    now,
			Percent: pct,
			Message: fmt.Sprintf("Cleaning: %s (%d%%)", task.Target, pct),
		})
	}
	if s.Canceled {
		w.journal.Warnf("Operation cancelled after %d of %d task(s)", s.Processed, s.Tasks)
	}

	stopHeartbeat()
	<-hbDone

	s.Failures = w.ledger.Failures()
	s.Failed = len(s.Failures)
	s.Finished = w.clock.Now()
	w.finish(s)

	w.mu.Lock()
	w.summary = s
	w.mu.Unlock()

	final := s
	w.sink.Emit(events.Event{Kind: events.KindCompleted, Time: s.Finished, Percent: 100, Summary: &final})
}

// runTask executes one task. It returns an error only when the batch must
// stop; a panic is converted into a ledger failure.
func (w *Worker) runTask(ctx context.Context, task Task, s *events.Summary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.journal.Warnf("Task %s crashed: %v", task.Target, r)
			w.ledger.Add(task.Target, fmt.Sprintf("panic: %v", r))
			err = ctx.Err()
		}
	}()

	info, statErr := os.Lstat(fsops.LongPath(task.Target))
	if statErr == nil && info.IsDir() && !fsops.IsReparsePoint(task.Target) {
		_, err = w.tree.DeleteTree(ctx, task.Target, walker.Options{
			Mode:     task.Mode,
			KeepRoot: task.KeepRoot,
			Observe:  func(out ladder.Outcome) { w.observe(out, s) },
		})
		return err
	}

	out, err := w.files.Delete(ctx, task.Target, task.Mode)
	if err != nil {
		return err
	}
	w.observe(out, s)
	return nil
}

func (w *Worker) observe(out ladder.Outcome, s *events.Summary) {
	w.ledger.Record(out)
	switch {
	case out.Succeeded:
		s.Removed++
		s.FreedBytes += out.Bytes
	case out.DeferredToReboot:
		s.Deferred++
		w.journal.Warnf("Deferred until reboot: %s", out.Target)
	default:
		w.journal.Warnf("Failed: %s (%s)", out.Target, out.Reason())
	}
	w.journal.Touch()

	w.metrics.ObserveOutcome(out.Succeeded, out.DeferredToReboot, out.Bytes)
	if w.history != nil {
		if err := w.history.RecordOutcome(out, w.clock.Now()); err != nil {
			w.log.Warn().Err(err).Msg("history write failed")
		}
	}
}

func (w *Worker) finish(s events.Summary) {
	w.journal.Logf("Done: %d removed, %d deferred, %d failed, %s freed",
		s.Removed, s.Deferred, s.Failed, core.FormatSize(s.FreedBytes))
	w.metrics.Finish(s.Finished)
	if w.history != nil {
		err := w.history.Finish(history.Totals{
			Removed:    s.Removed,
			Deferred:   s.Deferred,
			Failed:     s.Failed,
			FreedBytes: s.FreedBytes,
			Canceled:   s.Canceled,
		}, s.Finished)
		if err != nil {
			w.log.Warn().Err(err).Msg("history write failed")
		}
	}
}

// heartbeat emits a liveness signal every interval until ctx ends, and
// logs when nothing has happened for the watchdog timeout.
func (w *Worker) heartbeat(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-w.clock.After(w.interval):
			if ctx.Err() != nil {
				return
			}
			w.sink.Emit(events.Event{Kind: events.KindHeartbeat, Time: now})
			if idle := w.journal.Idle(); idle >= w.watchdog {
				w.journal.Warnf("Still working, no progress for %s", idle.Round(time.Second))
			}
		}
	}
}
