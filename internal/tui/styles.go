package tui

import (
	"github.com/atikulmunna/strand/internal/output"
	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	InstanceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))

	TabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	ActiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("62")).Padding(0, 1)

	ConnectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	DisconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	AbortedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220")).Padding(0, 1)
	BusyStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	MetaStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	PlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	NoticeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("222"))
	RuleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	FooterStats = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	FooterKeys  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	LevelStyles = output.NewStyles(lipgloss.DefaultRenderer())
)
