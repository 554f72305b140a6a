// Package tui renders the triage stats view with Bubble Tea.
//
// The TUI is opt-in (--tui), read-only, and draws the same
// reader.DayStats payload the plain renderers print.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("#7C3AED")
	mutedColor  = lipgloss.Color("#6B7280")
	textColor   = lipgloss.Color("#FFFFFF")

	itemsColor      = lipgloss.Color("#3B82F6")
	processedColor  = lipgloss.Color("#10B981")
	failedColor     = lipgloss.Color("#EF4444")
	moveFailedColor = lipgloss.Color("#F59E0B")
	strandedColor   = lipgloss.Color("#F97316")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginBottom(1)

	// LabelStyle pads class names so histogram bars line up.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	ValueStyle = lipgloss.NewStyle().Foreground(textColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	BarStyle = lipgloss.NewStyle().Foreground(processedColor)

	CleanStyle = lipgloss.NewStyle().Foreground(processedColor)

	ReasonCountStyle = lipgloss.NewStyle().Foreground(failedColor)

	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			Width(16).
			Align(lipgloss.Center)

	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Align(lipgloss.Center)
)
