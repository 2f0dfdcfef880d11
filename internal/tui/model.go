package tui

import (
	"errors"
	"fmt"

	"github.com/atikulmunna/strand/internal/aggregator"
	"github.com/atikulmunna/strand/internal/coordinator"
	"github.com/atikulmunna/strand/internal/model"
	"github.com/atikulmunna/strand/internal/session"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Controls is the part of the coordinator the view drives.
type Controls interface {
	SwitchTo(kind model.TransportKind) error
	Active() model.TransportKind
	ManualRefresh() error
	Abort() error
	Continue() error
}

// Model is the session view: transport selector, connection indicator,
// the log console and a statistics footer.
type Model struct {
	sess   *session.Session
	ctl    Controls
	stats  func() aggregator.Stats
	events <-chan session.Event

	entries []model.LogEntry
	status  model.ConnectionStatus
	aborted bool
	busy    bool
	active  model.TransportKind
	footer  aggregator.Stats

	spinner spinner.Model
	width   int
	height  int
	offset  int // lines scrolled up from the newest entry
	follow  bool
	notice  string
}

// New creates the view for sess. stats may be nil.
func New(sess *session.Session, ctl Controls, stats func() aggregator.Stats) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = BusyStyle

	return Model{
		sess:    sess,
		ctl:     ctl,
		stats:   stats,
		events:  sess.Subscribe(),
		entries: sess.Entries(),
		status:  sess.Status(),
		aborted: sess.Aborted(),
		busy:    sess.Busy(),
		active:  ctl.Active(),
		spinner: sp,
		width:   80,
		height:  24,
		follow:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, WaitForEvent(m.events), statsTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SessionEventMsg:
		m.apply(msg.Event)
		return m, WaitForEvent(m.events)

	case SessionClosedMsg:
		return m, tea.Quit

	case ControlDoneMsg:
		m.active = m.ctl.Active()
		m.notice = describeControlError(msg, m.active)
		return m, nil

	case StatsTickMsg:
		if m.stats != nil {
			m.footer = m.stats()
		}
		return m, statsTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

// apply folds one session event into the view's copy of the state.
func (m *Model) apply(ev session.Event) {
	switch ev.Kind {
	case session.EntriesAppended:
		m.entries = append(m.entries, ev.Entries...)
		if !m.follow {
			// Keep the lines under the reader's eyes in place.
			m.offset += len(ev.Entries)
		}
	case session.EntriesReplaced:
		m.entries = append([]model.LogEntry(nil), ev.Entries...)
	case session.Cleared:
		m.entries = nil
		m.offset = 0
	case session.StatusChanged:
		m.status = ev.Status
	case session.FlagsChanged:
		m.aborted = ev.Aborted
		m.busy = ev.Busy
	}
	if ev.ScrollToLatest && m.follow {
		m.offset = 0
	}
	m.clampOffset()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "1", "2", "3", "4":
		kind := model.TransportKinds[int(msg.String()[0]-'1')]
		return m.switchTo(kind)
	case "tab":
		return m.switchTo(nextKind(m.active))

	case "r":
		m.notice = ""
		return m, runControl("refresh", m.ctl.ManualRefresh)
	case "a":
		m.notice = ""
		return m, runControl("abort", m.ctl.Abort)
	case "c":
		m.notice = ""
		return m, runControl("continue", m.ctl.Continue)
	case "x":
		m.notice = ""
		sess := m.sess
		return m, runControl("clear", func() error {
			sess.Clear()
			return nil
		})

	case "up", "k":
		m.scroll(1)
	case "down", "j":
		m.scroll(-1)
	case "pgup", "ctrl+u":
		m.scroll(m.logHeight())
	case "pgdown", "ctrl+d":
		m.scroll(-m.logHeight())
	case "home", "g":
		m.scroll(len(m.entries))
	case "end", "G":
		m.offset = 0
		m.follow = true
	}
	return m, nil
}

func (m Model) switchTo(kind model.TransportKind) (tea.Model, tea.Cmd) {
	m.active = kind
	m.notice = ""
	m.offset = 0
	m.follow = true
	ctl := m.ctl
	return m, runControl("switch", func() error { return ctl.SwitchTo(kind) })
}

// scroll moves the window by n lines; positive n goes back in time.
func (m *Model) scroll(n int) {
	m.offset += n
	m.clampOffset()
	m.follow = m.offset == 0
}

func (m *Model) clampOffset() {
	limit := len(m.entries) - m.logHeight()
	if limit < 0 {
		limit = 0
	}
	if m.offset > limit {
		m.offset = limit
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func nextKind(k model.TransportKind) model.TransportKind {
	for i, kind := range model.TransportKinds {
		if kind == k {
			return model.TransportKinds[(i+1)%len(model.TransportKinds)]
		}
	}
	return model.TransportKinds[0]
}

func describeControlError(msg ControlDoneMsg, active model.TransportKind) string {
	switch {
	case msg.Err == nil:
		return ""
	case errors.Is(msg.Err, coordinator.ErrUnsupported):
		return fmt.Sprintf("%s is not available on %s", msg.Action, active.Label())
	case errors.Is(msg.Err, coordinator.ErrSwitching):
		return fmt.Sprintf("%s ignored while switching to %s", msg.Action, active.Label())
	default:
		return fmt.Sprintf("%s failed: %v", msg.Action, msg.Err)
	}
}
