package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/triage/cli/reader"
)

// keyMap defines key bindings.
type keyMap struct {
	Quit   key.Binding
	Toggle key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
	Toggle: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "classes/failures"),
	),
}

// pane selects the lower section of the stats view.
type pane int

const (
	paneClasses pane = iota
	paneReasons
)

// maxBarWidth bounds the class histogram bars.
const maxBarWidth = 40

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	pane     pane
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Toggle):
			if m.pane == paneClasses {
				m.pane = paneReasons
			} else {
				m.pane = paneClasses
			}
			return m, nil
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsDay:
		content = m.renderStatsDay()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render(fmt.Sprintf("%s %s • %s %s",
		keys.Toggle.Help().Key, keys.Toggle.Help().Desc,
		keys.Quit.Help().Key, keys.Quit.Help().Desc))
	return content + "\n" + help
}

func (m StatsModel) renderStatsDay() string {
	data, ok := m.data.(*reader.DayStats)
	if !ok {
		return "Invalid data type for stats_day"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Classification log %s (%s)", data.Day, data.Backend)))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Items", data.Items, itemsColor),
		m.renderStatBox("Processed", data.Status.Processed, processedColor),
		m.renderStatBox("Failed", data.Status.Failed, failedColor),
		m.renderStatBox("Move failed", data.Status.MoveFailed, moveFailedColor),
		m.renderStatBox("Stranded", data.Stranded, strandedColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	if data.FirstAt != nil && data.LastAt != nil {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Window:"),
			ValueStyle.Render(data.FirstAt.Format("15:04:05")+" to "+data.LastAt.Format("15:04:05")+" UTC")))
	}
	b.WriteString("\n")

	switch m.pane {
	case paneClasses:
		b.WriteString(m.renderClasses(data.Classes))
	case paneReasons:
		b.WriteString(m.renderReasons(data.Reasons))
	}
	return b.String()
}

func (m StatsModel) renderClasses(classes []reader.ClassCount) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Predicted classes"))
	b.WriteString("\n")
	if len(classes) == 0 {
		b.WriteString(HelpStyle.Render("no processed items"))
		return b.String()
	}

	peak := classes[0].Count
	for _, c := range classes {
		width := 1
		if peak > 0 {
			width = max(1, c.Count*maxBarWidth/peak)
		}
		b.WriteString(fmt.Sprintf("%s %s %d\n",
			LabelStyle.Render(c.Class),
			BarStyle.Render(strings.Repeat("█", width)),
			c.Count))
	}
	return b.String()
}

func (m StatsModel) renderReasons(reasons []reader.ReasonCount) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Failure reasons"))
	b.WriteString("\n")
	if len(reasons) == 0 {
		b.WriteString(CleanStyle.Render("no failures"))
		return b.String()
	}
	for _, r := range reasons {
		b.WriteString(fmt.Sprintf("%s %s\n",
			ReasonCountStyle.Render(fmt.Sprintf("%5d", r.Count)),
			ValueStyle.Render(r.Reason)))
	}
	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
