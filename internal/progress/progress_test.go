package progress

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/purewipe/internal/events"
)

func TestModelAppliesEvents(t *testing.T) {
	ch := make(chan events.Event)
	canceled := 0
	m := New(ch, func() { canceled++ })

	step := func(msg tea.Msg) tea.Cmd {
		next, cmd := m.Update(msg)
		m = next.(Model)
		return cmd
	}

	assert.NotNil(t, step(eventMsg{Kind: events.KindStatus, Percent: 40, Message: "Cleaning: C:\\Temp (40%)"}))
	assert.Equal(t, 40, m.percent)
	assert.Equal(t, "Cleaning: C:\\Temp (40%)", m.status)

	for i := 0; i < logTail+3; i++ {
		step(eventMsg{Kind: events.KindLog, Message: "line"})
	}
	step(eventMsg{Kind: events.KindWarning, Message: "Failed: x"})
	assert.Len(t, m.logs, logTail)
	assert.Equal(t, "Failed: x", m.logs[logTail-1])
	assert.Equal(t, 1, m.warned)
	assert.Contains(t, m.View(), "1 warning(s)")

	step(tea.KeyMsg{Type: tea.KeyCtrlC})
	step(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, 1, canceled)
	assert.True(t, m.cancelling)

	step(eventMsg{Kind: events.KindStatus, Percent: 60, Message: "Cleaning: next"})
	assert.Equal(t, "Cancelling…", m.status)

	s := &events.Summary{Tasks: 2, Canceled: true}
	assert.NotNil(t, step(eventMsg{Kind: events.KindCompleted, Summary: s}))
	assert.Same(t, s, m.Summary)
	assert.Equal(t, "", m.View())
}

func TestModelQuitsWhenChannelCloses(t *testing.T) {
	ch := make(chan events.Event)
	close(ch)
	m := New(ch, nil)
	msg := m.Init()()
	assert.IsType(t, closedMsg{}, msg)

	next, cmd := m.Update(msg)
	assert.NotNil(t, cmd)
	assert.True(t, next.(Model).quitting)
}

func TestFollow(t *testing.T) {
	ch := make(chan events.Event, 8)
	s := &events.Summary{Removed: 1}
	ch <- events.Event{Kind: events.KindLog, Message: "[t] Processing: a"}
	ch <- events.Event{Kind: events.KindHeartbeat}
	ch <- events.Event{Kind: events.KindWarning, Message: "[t] Failed: b"}
	ch <- events.Event{Kind: events.KindStatus, Message: "Cleaning: a (100%)"}
	ch <- events.Event{Kind: events.KindCompleted, Summary: s}

	var buf bytes.Buffer
	got := Follow(&buf, ch, false)
	assert.Same(t, s, got)
	assert.NotContains(t, buf.String(), "Processing")
	assert.Contains(t, buf.String(), "! [t] Failed: b")
	assert.Contains(t, buf.String(), "Cleaning: a (100%)")

	close(ch)
	assert.Nil(t, Follow(&buf, ch, true))
}

func TestReport(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	Report(&buf, events.Summary{
		Tasks: 3, Processed: 3, Removed: 5, Deferred: 1, Failed: 2, FreedBytes: 3 << 20,
		Failures: []events.Failure{
			{Path: `C:\a.dll`, Reason: "pending reboot"},
			{Path: `C:\b`, Reason: "access denied"},
		},
		Started: start, Finished: start.Add(1500 * time.Millisecond),
	})
	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "Completed: 3 of 3 task(s) in 1.5s")
	assert.Contains(t, out, "5 removed")
	assert.Contains(t, out, "Freed: 3.0 MiB")
	assert.Contains(t, out, `C:\b  (access denied)`)
	assert.Contains(t, out, "Restart the computer")
}
