// Package ledger keeps the failures of a deletion session in the order
// they were attempted.
package ledger

import (
	"sync"

	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/ladder"
)

// Entry is one object that could not be removed.
type Entry struct {
	Target string
	Reason string
	// Pending is set when the object is registered for deletion at reboot.
	Pending bool
}

// Ledger is append-only. The worker is its only writer; readers get copies.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty ledger.
func New() *Ledger { return &Ledger{} }

// Record adds an entry for every outcome that did not succeed.
func (l *Ledger) Record(out ladder.Outcome) {
	if out.Succeeded {
		return
	}
	reason := out.Reason()
	if out.DeferredToReboot {
		reason = ladder.ErrPendingReboot.Error()
	}
	if reason == "" {
		reason = "unknown error"
	}
	l.append(Entry{Target: out.Target, Reason: reason, Pending: out.DeferredToReboot})
}

// Add records a failure that did not come from the ladder.
func (l *Ledger) Add(target, reason string) {
	l.append(Entry{Target: target, Reason: reason})
}

func (l *Ledger) append(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of every entry.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Pending returns the entries left for the next reboot.
func (l *Ledger) Pending() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Pending {
			out = append(out, e)
		}
	}
	return out
}

// Failures converts the ledger into the completion event payload.
func (l *Ledger) Failures() []events.Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.Failure, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, events.Failure{Path: e.Target, Reason: e.Reason})
	}
	return out
}
