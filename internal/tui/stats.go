package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"planner/internal/analysis"
	"planner/internal/service"
	"planner/internal/store"
)

// weeksShown is how many weeks the stats screen lists, including next week
const weeksShown = 16

// StatsModel is the weekly stats screen: one row per week, with the
// selected week broken down by day and workout
type StatsModel struct {
	data   *service.AnalyticsContext
	units  Units
	weeks  []service.WeekSummary // newest first
	cursor int
}

// NewStatsModel creates a new stats model
func NewStatsModel(data *service.AnalyticsContext, units Units) StatsModel {
	m := StatsModel{data: data, units: units}
	if data == nil {
		return m
	}

	current, err := analysis.ParseDay(data.CurrentWeek().Start)
	if err != nil {
		return m
	}
	// Next week first so upcoming plans are visible
	start := current.AddDate(0, 0, service.DaysPerWeek)
	for i := range weeksShown {
		m.weeks = append(m.weeks, data.WeekSummary(start.AddDate(0, 0, -i*service.DaysPerWeek)))
	}
	m.cursor = 1
	return m
}

// Init initializes the stats screen
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.weeks)-1 {
				m.cursor++
			}
		case "home":
			m.cursor = 1
		case "r":
			return m, func() tea.Msg { return ReloadMsg{} }
		}
	}
	return m, nil
}

// View renders the stats screen
func (m StatsModel) View() string {
	if len(m.weeks) == 0 {
		return "\n  No data available. Sync some activities first."
	}

	var sections []string
	sections = append(sections, cardTitleStyle.Render("Weekly Stats"))

	header := tableHeaderStyle.Render(fmt.Sprintf("   %-12s  %8s  %5s  %4s  %4s  %4s",
		"Week of", "Time", "TSS", "CTL", "ATL", "TSB"))
	sections = append(sections, header)

	for i, w := range m.weeks {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		row := fmt.Sprintf("%s%-12s  %8s  %5.0f  %4d  %4d  %+4d",
			cursor, w.Start, formatMinutes(w.DurationMin), w.TSS, w.CTL, w.ATL, w.TSB)
		if i == m.cursor {
			sections = append(sections, tableSelectedStyle.Render(row))
		} else {
			sections = append(sections, tableRowStyle.Render(row))
		}
	}

	list := lipgloss.JoinVertical(lipgloss.Left, sections...)
	days := cardStyle.Render(m.renderDays(m.weeks[m.cursor]))
	help := statusStyle.Render("  j/k: select week  home: this week  r: reload")

	return lipgloss.JoinVertical(lipgloss.Left, lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", days), help)
}

// renderDays lists each day of the week with its workouts and compliance
func (m StatsModel) renderDays(w service.WeekSummary) string {
	start, err := analysis.ParseDay(w.Start)
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	aggregates := m.data.DayAggregates()
	today := m.data.TodayKey()

	var lines []string
	for d := range service.DaysPerWeek {
		day := start.AddDate(0, 0, d)
		key := day.Format(store.DateLayout)

		label := day.Format("Mon Jan 02")
		if key == today {
			label = navActiveStyle.Render(label + " *")
		}
		agg := aggregates[key]
		summary := ""
		if agg.DurationMin > 0 {
			summary = mutedStyle.Render(fmt.Sprintf("  %s, %.0f TSS", formatMinutes(agg.DurationMin), agg.TSS))
		}
		lines = append(lines, sectionStyle.Render(label)+summary)

		entries := m.data.DayCompliance(key)
		if len(entries) == 0 {
			lines = append(lines, mutedStyle.Render("  rest"))
		}
		for _, e := range entries {
			lines = append(lines, fmt.Sprintf("  %-24s %4.0f  %s",
				truncateName(e.Title(), 24), e.TSS, RenderCompliance(e.Compliance)))
		}
	}
	return strings.Join(lines, "\n")
}
