package tui

import (
	"time"

	"github.com/atikulmunna/strand/internal/session"
	tea "github.com/charmbracelet/bubbletea"
)

// SessionEventMsg carries one session change into the view.
type SessionEventMsg struct {
	Event session.Event
}

// SessionClosedMsg is sent once the session stops broadcasting.
type SessionClosedMsg struct{}

// ControlDoneMsg reports the outcome of a transport control.
type ControlDoneMsg struct {
	Action string
	Err    error
}

// StatsTickMsg asks the view to refresh the footer statistics.
type StatsTickMsg time.Time

// WaitForEvent blocks on the next session event.
func WaitForEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return SessionClosedMsg{}
		}
		return SessionEventMsg{Event: ev}
	}
}

func statsTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return StatsTickMsg(t) })
}

// runControl runs a transport control off the update loop.
func runControl(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return ControlDoneMsg{Action: action, Err: fn()}
	}
}
