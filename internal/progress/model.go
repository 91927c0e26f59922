// Package progress renders a running deletion session: an interactive
// bubbletea view for terminals and a line printer for everything else.
package progress

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lakshaymaurya-felt/purewipe/internal/events"
	"github.com/lakshaymaurya-felt/purewipe/internal/ui"
)

// logTail is how many journal lines the view keeps on screen.
const logTail = 8

// ─── Messages ────────────────────────────────────────────────────────────────

type eventMsg events.Event

type closedMsg struct{}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return eventMsg(e)
	}
}

// ─── Model ───────────────────────────────────────────────────────────────────

// Model is the bubbletea model for a running session.
type Model struct {
	events <-chan events.Event
	cancel func()

	bar     progress.Model
	spin    spinner.Model
	percent int
	status  string
	logs    []string
	warned  int

	Summary    *events.Summary
	width      int
	cancelling bool
	quitting   bool
}

// New returns a model reading from ch. cancel is called when the user
// interrupts the session.
func New(ch <-chan events.Event, cancel func()) Model {
	return Model{
		events: ch,
		cancel: cancel,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		spin: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(ui.ColorPrimary)),
		),
		status: "Starting…",
		width:  80,
	}
}

// ─── tea.Model interface ─────────────────────────────────────────────────────

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = clamp(msg.Width-20, 20, 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.cancelling && m.cancel != nil {
				m.cancelling = true
				m.status = "Cancelling…"
				m.cancel()
			}
		}
		return m, nil

	case eventMsg:
		m = m.apply(events.Event(msg))
		if m.Summary != nil {
			m.quitting = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case closedMsg:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) apply(e events.Event) Model {
	switch e.Kind {
	case events.KindProgress:
		m.percent = e.Percent
	case events.KindStatus:
		m.percent = e.Percent
		if !m.cancelling {
			m.status = e.Message
		}
	case events.KindLog:
		m.logs = appendTail(m.logs, e.Message, logTail)
	case events.KindWarning:
		m.warned++
		m.logs = appendTail(m.logs, e.Message, logTail)
	case events.KindHeartbeat:
		// The spinner only moves while the worker is alive.
		m.spin, _ = m.spin.Update(m.spin.Tick())
	case events.KindCompleted:
		m.percent = 100
		m.Summary = e.Summary
	}
	return m
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderView()
}

func appendTail(lines []string, s string, max int) []string {
	lines = append(lines, s)
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
