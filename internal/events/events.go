// Package events defines what the deletion engine tells the outside world:
// progress, status lines, log output, warnings, liveness heartbeats and the
// final summary. Producers depend only on the Sink and Reporter interfaces.
package events

import (
	"fmt"
	"sync"
	"time"
)

// Kind identifies the type of an Event.
type Kind int

const (
	KindProgress Kind = iota
	KindStatus
	KindLog
	KindWarning
	KindHeartbeat
	KindCompleted
)

var kindNames = [...]string{"progress", "status", "log", "warning", "heartbeat", "completed"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one notification from a running batch.
type Event struct {
	Kind    Kind
	Time    time.Time
	Percent int
	Message string
	Summary *Summary
}

// Failure is one entry of the failure report.
type Failure struct {
	Path   string
	Reason string
}

// Summary is the payload of the completion event.
type Summary struct {
	Tasks      int
	Processed  int
	Removed    int
	Deferred   int
	Failed     int
	FreedBytes int64
	Canceled   bool
	Failures   []Failure
	Started    time.Time
	Finished   time.Time
}

// Duration returns the wall time the batch took.
func (s Summary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// ─── Sinks ───────────────────────────────────────────────────────────────────

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Reporter is the logging face the ladder, walker and lock breaker use.
type Reporter interface {
	Logf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopReporter struct{}

func (nopReporter) Logf(string, ...any)  {}
func (nopReporter) Warnf(string, ...any) {}

// NopReporter discards all log lines.
var NopReporter Reporter = nopReporter{}

// ChanSink delivers events over a buffered channel. Heartbeats are dropped
// when the buffer is full so a slow consumer never stalls the worker on a
// liveness signal; every other kind blocks until delivered.
type ChanSink struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

// NewChanSink returns a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	if buffer < 1 {
		buffer = 1
	}
	return &ChanSink{ch: make(chan Event, buffer)}
}

func (s *ChanSink) Emit(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	if e.Kind == KindHeartbeat {
		select {
		case s.ch <- e:
		default:
		}
		return
	}
	s.ch <- e
}

// Events returns the receive side of the sink.
func (s *ChanSink) Events() <-chan Event { return s.ch }

// Close closes the channel. Emits after Close are dropped.
func (s *ChanSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Of returns the recorded events of one kind.
func (r *Recorder) Of(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Tee fans every event out to all sinks in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}
