package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog"

	"github.com/lakshaymaurya-felt/purewipe/internal/events"
)

// journalTimeFormat prefixes every journal line.
const journalTimeFormat = "2006-01-02 15:04:05"

// Journal is the session log. Every line is kept for the report shown
// after the run, mirrored into the process logger and emitted as a Log or
// Warning event. It also tracks the time of the last activity for the
// watchdog.
type Journal struct {
	sink  events.Sink
	log   zerolog.Logger
	clock clock.Clock

	mu    sync.Mutex
	lines []string
	last  time.Time
}

// NewJournal returns a journal writing to sink and log.
func NewJournal(sink events.Sink, log zerolog.Logger, clk clock.Clock) *Journal {
	if sink == nil {
		sink = events.Discard
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Journal{sink: sink, log: log, clock: clk, last: clk.Now()}
}

func (j *Journal) Logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	j.log.Info().Msg(msg)
	j.write(events.KindLog, msg)
}

func (j *Journal) Warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	j.log.Warn().Msg(msg)
	j.write(events.KindWarning, msg)
}

func (j *Journal) write(kind events.Kind, msg string) {
	now := j.clock.Now()
	line := fmt.Sprintf("[%s] %s", now.Format(journalTimeFormat), msg)

	j.mu.Lock()
	j.lines = append(j.lines, line)
	j.last = now
	j.mu.Unlock()

	j.sink.Emit(events.Event{Kind: kind, Time: now, Message: line})
}

// Touch records activity without writing a line.
func (j *Journal) Touch() {
	now := j.clock.Now()
	j.mu.Lock()
	j.last = now
	j.mu.Unlock()
}

// Idle returns the time since the last activity.
func (j *Journal) Idle() time.Duration {
	j.mu.Lock()
	last := j.last
	j.mu.Unlock()
	return j.clock.Now().Sub(last)
}

// Lines returns a copy of every line written so far.
func (j *Journal) Lines() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.lines...)
}
