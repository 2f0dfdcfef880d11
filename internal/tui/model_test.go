package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/atikulmunna/strand/internal/aggregator"
	"github.com/atikulmunna/strand/internal/coordinator"
	"github.com/atikulmunna/strand/internal/model"
	"github.com/atikulmunna/strand/internal/session"
	tea "github.com/charmbracelet/bubbletea"
)

type fakeControls struct {
	active   model.TransportKind
	calls    []string
	err      error
	switched []model.TransportKind
}

func (f *fakeControls) SwitchTo(kind model.TransportKind) error {
	f.switched = append(f.switched, kind)
	f.active = kind
	return nil
}

func (f *fakeControls) Active() model.TransportKind { return f.active }

func (f *fakeControls) ManualRefresh() error {
	f.calls = append(f.calls, "refresh")
	return f.err
}

func (f *fakeControls) Abort() error {
	f.calls = append(f.calls, "abort")
	return f.err
}

func (f *fakeControls) Continue() error {
	f.calls = append(f.calls, "continue")
	return f.err
}

func newTestModel() (Model, *session.Session, *fakeControls) {
	s := session.New("inst-1", model.ShortPolling)
	ctl := &fakeControls{active: model.ShortPolling}
	return New(s, ctl, nil), s, ctl
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "end":
		return tea.KeyMsg{Type: tea.KeyEnd}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("expected Model, got %T", next)
	}
	return mm, cmd
}

// drain feeds every pending session event into the model.
func drain(t *testing.T, m Model) Model {
	t.Helper()
	for {
		select {
		case ev := <-m.events:
			m, _ = update(t, m, SessionEventMsg{Event: ev})
		default:
			return m
		}
	}
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func TestPlaceholderWhenEmpty(t *testing.T) {
	m, _, _ := newTestModel()
	if !strings.Contains(m.View(), "Waiting for log messages from instance inst-1...") {
		t.Errorf("expected placeholder, got:\n%s", m.View())
	}
}

func TestViewShowsEntriesAndStatus(t *testing.T) {
	m, s, _ := newTestModel()
	s.Log(model.LevelInfo, "first line")
	s.Log(model.LevelError, "second line")
	s.UpdateStatus(func(st *model.ConnectionStatus) { st.Connected = true })
	s.SetAborted(true)
	m = drain(t, m)

	view := m.View()
	for _, want := range []string{"first line", "second line", "ERROR", "Connected", "via Short Polling", "Log emission aborted"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q, got:\n%s", want, view)
		}
	}
	if strings.Index(view, "first line") > strings.Index(view, "second line") {
		t.Error("expected entries in append order")
	}
}

func TestBusyIndicator(t *testing.T) {
	s := session.New("inst-1", model.LongPolling)
	m := New(s, &fakeControls{active: model.LongPolling}, nil)
	s.UpdateStatus(func(st *model.ConnectionStatus) { st.Method = model.LongPolling })
	s.SetBusy(true)
	m = drain(t, m)

	if !strings.Contains(m.View(), "Long polling in progress...") {
		t.Errorf("expected long polling indicator, got:\n%s", m.View())
	}

	s.SetBusy(false)
	m = drain(t, m)
	if strings.Contains(m.View(), "in progress") {
		t.Error("expected indicator to disappear when idle")
	}
}

func TestSelectorHighlightsActive(t *testing.T) {
	m, _, _ := newTestModel()
	view := m.View()
	for i, kind := range model.TransportKinds {
		if !strings.Contains(view, fmt.Sprintf("%d %s", i+1, kind.Label())) {
			t.Errorf("expected selector to list %s", kind.Label())
		}
	}
}

func TestStatsFooter(t *testing.T) {
	s := session.New("inst-1", model.SSE)
	ctl := &fakeControls{active: model.SSE}
	m := New(s, ctl, func() aggregator.Stats {
		return aggregator.Stats{TotalReceived: 42, EPS: 2.5, DroppedEvents: 3, LevelCounts: map[model.Level]int64{model.LevelError: 7}}
	})

	m, cmd := update(t, m, StatsTickMsg{})
	if cmd == nil {
		t.Error("expected the stats tick to re-arm")
	}
	view := m.View()
	for _, want := range []string{"42 received", "2.5/s", "7 error", "3 dropped"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected footer to contain %q, got:\n%s", want, view)
		}
	}
}

// ---------------------------------------------------------------------------
// Keys
// ---------------------------------------------------------------------------

func TestSwitchKeys(t *testing.T) {
	m, _, ctl := newTestModel()

	m, cmd := update(t, m, key("4"))
	if m.active != model.WebSocket {
		t.Errorf("expected websocket selected, got %s", m.active)
	}
	m, _ = update(t, m, cmd())
	if len(ctl.switched) != 1 || ctl.switched[0] != model.WebSocket {
		t.Errorf("expected SwitchTo(websocket), got %v", ctl.switched)
	}

	m, cmd = update(t, m, key("tab"))
	if m.active != model.ShortPolling {
		t.Errorf("expected tab to wrap to short polling, got %s", m.active)
	}
	cmd()
	if ctl.switched[1] != model.ShortPolling {
		t.Errorf("expected SwitchTo(short-polling), got %v", ctl.switched)
	}
}

func TestControlKeys(t *testing.T) {
	m, _, ctl := newTestModel()

	for _, k := range []string{"r", "a", "c"} {
		var cmd tea.Cmd
		m, cmd = update(t, m, key(k))
		m, _ = update(t, m, cmd())
	}
	want := []string{"refresh", "abort", "continue"}
	if strings.Join(ctl.calls, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, ctl.calls)
	}
	if m.notice != "" {
		t.Errorf("expected no notice on success, got %q", m.notice)
	}
}

func TestUnsupportedControlShowsNotice(t *testing.T) {
	m, _, ctl := newTestModel()
	ctl.err = fmt.Errorf("abort on short-polling: %w", coordinator.ErrUnsupported)

	m, cmd := update(t, m, key("a"))
	m, _ = update(t, m, cmd())

	if m.notice != "abort is not available on Short Polling" {
		t.Errorf("unexpected notice %q", m.notice)
	}

	ctl.err = errors.New("boom")
	m, cmd = update(t, m, key("r"))
	m, _ = update(t, m, cmd())
	if m.notice != "refresh failed: boom" {
		t.Errorf("unexpected notice %q", m.notice)
	}
}

func TestClearKey(t *testing.T) {
	m, s, _ := newTestModel()
	s.Log(model.LevelInfo, "old")
	m = drain(t, m)

	_, cmd := update(t, m, key("x"))
	cmd()
	m = drain(t, m)

	if len(m.entries) != 1 || m.entries[0].Message != "Logs cleared" {
		t.Errorf("expected only the clear notice, got %v", m.entries)
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel()
	_, cmd := update(t, m, key("q"))
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

// ---------------------------------------------------------------------------
// Scrolling
// ---------------------------------------------------------------------------

func TestScrollAndFollow(t *testing.T) {
	m, s, _ := newTestModel()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: chromeLines + 3})
	for i := 0; i < 10; i++ {
		s.Log(model.LevelInfo, fmt.Sprintf("line %d", i))
	}
	m = drain(t, m)

	if !strings.Contains(m.View(), "line 9") {
		t.Error("expected newest line visible while following")
	}

	m, _ = update(t, m, key("up"))
	m, _ = update(t, m, key("up"))
	if m.follow || m.offset != 2 {
		t.Fatalf("expected offset 2 and follow off, got %d/%v", m.offset, m.follow)
	}
	view := m.View()
	if strings.Contains(view, "line 9") || !strings.Contains(view, "line 7") {
		t.Errorf("expected window ending at line 7, got:\n%s", view)
	}

	// New entries do not move a scrolled-back window.
	s.Log(model.LevelInfo, "line 10")
	m = drain(t, m)
	if !strings.Contains(m.View(), "line 7") || strings.Contains(m.View(), "line 10") {
		t.Errorf("expected window to stay put, got:\n%s", m.View())
	}

	m, _ = update(t, m, key("end"))
	if !m.follow || m.offset != 0 || !strings.Contains(m.View(), "line 10") {
		t.Errorf("expected follow mode at newest entry, got offset %d", m.offset)
	}
}

func TestSessionClosedQuits(t *testing.T) {
	m, _, _ := newTestModel()
	_, cmd := update(t, m, SessionClosedMsg{})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected quit when the session closes")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"héllo", 2, "h…"},
		{"hello", 1, "…"},
		{"hello", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
