package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HelpModel is the help screen model
type HelpModel struct{}

// NewHelpModel creates a new help model
func NewHelpModel() HelpModel {
	return HelpModel{}
}

// Init initializes the help screen
func (m HelpModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m HelpModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

// View renders the help screen
func (m HelpModel) View() string {
	var sections []string
	sections = append(sections, cardTitleStyle.Render("Keyboard Shortcuts"))

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderSection("Navigation", []keyHelp{
			{"1", "Dashboard"},
			{"2", "Activities list"},
			{"3", "Weekly stats"},
			{"4 or s", "Sync screen"},
			{"?", "Help (this screen)"},
			{"q", "Quit"},
			{"esc", "Back / close help"},
		}),
		m.renderSection("Activities / Weeks", []keyHelp{
			{"j / k", "Move cursor"},
			{"enter", "Analyze workout"},
			{"r", "Reload data"},
		}),
		m.renderSection("Sync Screen", []keyHelp{
			{"s / enter", "Start sync"},
		}),
	)

	right := m.renderSection("Workout Analysis", []keyHelp{
		{"h / l", "Move cursor"},
		{"H / L", "Move cursor faster"},
		{"space", "Start, then end a selection"},
		{"z / enter", "Zoom to selection"},
		{"x", "Zoom out one level"},
		{"0", "Show the whole workout"},
		{"c", "Next channel"},
		{"[ / ]", "Less / more smoothing"},
		{"tab", "Switch to laps; enter selects a lap"},
		{"esc", "Clear selection, then back"},
	})

	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, "    ", right))
	sections = append(sections, m.renderMetricsHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

type keyHelp struct {
	key  string
	desc string
}

func (m HelpModel) renderSection(title string, keys []keyHelp) string {
	lines := []string{"", sectionStyle.Render(title)}
	for _, k := range keys {
		lines = append(lines, "  "+RenderKeyHelp(k.key, k.desc))
	}
	return strings.Join(lines, "\n")
}

func (m HelpModel) renderMetricsHelp() string {
	lines := []string{"", sectionStyle.Render("Metrics Explained"), ""}

	metrics := []struct {
		name string
		desc string
	}{
		{"TSS (Training Stress Score)", "Hours × IF² × 100. One hour at threshold is 100."},
		{"IF (Intensity Factor)", "Average power over FTP, or derived from TSS and duration."},
		{"CTL (Fitness)", "42 day exponentially weighted average of daily TSS."},
		{"ATL (Fatigue)", "7 day exponentially weighted average of daily TSS."},
		{"TSB (Form)", "Yesterday's CTL minus ATL. Positive means fresh."},
		{"Compliance", "Completed vs planned duration, distance or TSS. 80-120% is on target."},
	}

	for _, metric := range metrics {
		lines = append(lines, "  "+helpKeyStyle.Render(metric.name))
		lines = append(lines, "  "+mutedStyle.Render(metric.desc))
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}
