package tui

import (
	"fmt"
	"strings"

	"github.com/atikulmunna/strand/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// chromeLines is everything around the log console: title, selector,
// status, two rules, stats, keys and the notice line.
const chromeLines = 8

const keyHelp = "1-4/tab transport · r refresh · a abort · c continue · x clear · ↑↓ pgup/pgdn scroll · G follow · q quit"

func (m Model) logHeight() int {
	h := m.height - chromeLines
	if h < 1 {
		return 1
	}
	return h
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("strand"))
	b.WriteString(MetaStyle.Render(" · instance "))
	b.WriteString(InstanceStyle.Render(m.sess.InstanceID()))
	b.WriteString("\n")

	b.WriteString(m.renderSelector())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	rule := RuleStyle.Render(strings.Repeat("─", max(m.width, 1)))
	b.WriteString(rule)
	b.WriteString("\n")
	b.WriteString(m.renderConsole())
	b.WriteString(rule)
	b.WriteString("\n")

	b.WriteString(m.renderStats())
	b.WriteString("\n")
	b.WriteString(FooterKeys.Render(truncate(keyHelp, m.width)))
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(NoticeStyle.Render(truncate(m.notice, m.width)))
	}
	return b.String()
}

func (m Model) renderSelector() string {
	tabs := make([]string, len(model.TransportKinds))
	for i, kind := range model.TransportKinds {
		label := fmt.Sprintf("%d %s", i+1, kind.Label())
		if kind == m.active {
			tabs[i] = ActiveTabStyle.Render(label)
		} else {
			tabs[i] = TabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderStatus() string {
	var parts []string
	if m.status.Connected {
		parts = append(parts, ConnectedStyle.Render("● Connected"))
	} else {
		parts = append(parts, DisconnectedStyle.Render("○ Disconnected"))
	}
	method := m.status.Method
	if method == "" {
		method = m.active
	}
	parts = append(parts, MetaStyle.Render("via "+method.Label()))
	if m.status.LastUpdate != nil {
		parts = append(parts, MetaStyle.Render("last update "+m.status.LastUpdate.Local().Format("15:04:05")))
	}
	if m.busy {
		label := " Refreshing..."
		if method == model.LongPolling {
			label = " Long polling in progress..."
		}
		parts = append(parts, m.spinner.View()+BusyStyle.Render(label))
	}
	if m.aborted {
		parts = append(parts, AbortedStyle.Render("Log emission aborted"))
	}
	if !m.follow {
		parts = append(parts, MetaStyle.Render(fmt.Sprintf("↑ %d newer", m.offset)))
	}
	return strings.Join(parts, "  ")
}

// renderConsole draws exactly logHeight lines, newest at the bottom.
func (m Model) renderConsole() string {
	h := m.logHeight()
	lines := make([]string, 0, h)

	if len(m.entries) == 0 {
		lines = append(lines, PlaceholderStyle.Render(
			fmt.Sprintf("Waiting for log messages from instance %s...", m.sess.InstanceID())))
	} else {
		end := len(m.entries) - m.offset
		start := end - h
		if start < 0 {
			start = 0
		}
		for _, e := range m.entries[start:end] {
			lines = append(lines, m.renderEntry(e))
		}
	}

	var b strings.Builder
	for i := 0; i < h; i++ {
		if i < len(lines) {
			b.WriteString(lines[i])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderEntry(e model.LogEntry) string {
	ts := e.Timestamp.Local().Format("15:04:05")
	tag := LevelStyles.LevelTag(e.Level)
	// timestamp, tag and two spaces
	room := m.width - len(ts) - 5 - 2
	msg := strings.ReplaceAll(e.Message, "\n", " ⏎ ")
	return LevelStyles.Time.Render(ts) + " " + tag + " " + truncate(msg, room)
}

func (m Model) renderStats() string {
	s := m.footer
	line := fmt.Sprintf("%d shown · %d received · %.1f/s · %d error · %d warn · %d debug",
		len(m.entries), s.TotalReceived, s.EPS,
		s.LevelCounts[model.LevelError], s.LevelCounts[model.LevelWarn], s.LevelCounts[model.LevelDebug])
	if s.DroppedEvents > 0 {
		line += fmt.Sprintf(" · %d dropped", s.DroppedEvents)
	}
	if s.Uptime != "" {
		line += " · up " + s.Uptime
	}
	return FooterStats.Render(truncate(line, m.width))
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
