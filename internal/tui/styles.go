package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/dong/internal/interval"
)

var (
	colorPrimary   = lipgloss.Color("#6C63FF")
	colorAction    = lipgloss.Color("#FF6B6B")
	colorBreak     = lipgloss.Color("#2ECC71")
	colorPaused    = lipgloss.Color("#F39C12")
	colorError     = lipgloss.Color("#E74C3C")
	colorMuted     = lipgloss.Color("#666666")
	colorFg        = lipgloss.Color("#C0CAF5")
	colorSubtle    = lipgloss.Color("#414868")
	colorHighlight = lipgloss.Color("#7AA2F7")
)

var (
	// Tabs
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorPrimary).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Padding(1, 2)

	activePanelStyle = panelStyle.BorderForeground(colorPrimary)

	// Countdown clock, one per phase plus idle and paused
	idleClockStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Align(lipgloss.Center)
	actionClockStyle = idleClockStyle.Foreground(colorAction)
	breakClockStyle  = idleClockStyle.Foreground(colorBreak)
	pausedClockStyle = idleClockStyle.Foreground(colorPaused)

	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorFg)
	subtitleStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	accentStyle    = lipgloss.NewStyle().Foreground(colorAction)
	successStyle   = lipgloss.NewStyle().Foreground(colorBreak)
	warningStyle   = lipgloss.NewStyle().Foreground(colorPaused)
	errorStyle     = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	highlightStyle = lipgloss.NewStyle().Foreground(colorHighlight)

	headerStyle = lipgloss.NewStyle().Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	normalItemStyle   = lipgloss.NewStyle().Foreground(colorFg)

	// Set list
	currentPhaseStyle = lipgloss.NewStyle().
				Foreground(colorHighlight).
				Bold(true)

	donePhaseStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Strikethrough(true)

	congratsStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBreak)
)

// clockStyle picks the countdown color for the current phase.
func clockStyle(kind interval.PhaseKind, paused bool) lipgloss.Style {
	switch {
	case paused:
		return pausedClockStyle
	case kind == interval.Break:
		return breakClockStyle
	default:
		return actionClockStyle
	}
}
