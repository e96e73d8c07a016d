package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"planner/internal/analysis"
	"planner/internal/service"
)

// trendLookback is how many days back the fitness trend arrow compares against
const trendLookback = 7

// DashboardModel is the dashboard screen model
type DashboardModel struct {
	data  *service.AnalyticsContext
	units Units
}

// NewDashboardModel creates a new dashboard model
func NewDashboardModel(data *service.AnalyticsContext, units Units) DashboardModel {
	return DashboardModel{data: data, units: units}
}

// Init initializes the dashboard
func (m DashboardModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "r" {
		return m, func() tea.Msg { return ReloadMsg{} }
	}
	return m, nil
}

// View renders the dashboard
func (m DashboardModel) View() string {
	if m.data == nil {
		return "\n  Loading dashboard..."
	}
	if len(m.data.Activities) == 0 && len(m.data.Planned) == 0 {
		return "\n  No data available. Press 's' to sync with Strava."
	}

	trend := m.data.CurrentTrend()

	var sections []string
	topRow := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderFitnessCard(trend), "  ", m.renderWeekCard(), "  ", m.renderTodayCard())
	sections = append(sections, topRow)
	sections = append(sections, m.renderChart(trend))
	sections = append(sections, m.renderRecentActivities())
	sections = append(sections, statusStyle.Render("Press 'r' to reload, 's' to sync, '2' for activities"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m DashboardModel) renderFitnessCard(trend analysis.LoadSeries) string {
	title := cardTitleStyle.Render("Current Fitness")

	lines := []string{
		RenderMetric("Fitness (CTL)", fmt.Sprintf("%d", trend.CTL), ctlChange(trend)),
		RenderMetric("Fatigue (ATL)", fmt.Sprintf("%d", trend.ATL), ""),
		RenderMetric("Form (TSB)", fmt.Sprintf("%+d", trend.TSB), ""),
		"",
		mutedStyle.Render(analysis.FormDescription(float64(trend.TSB))),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(38).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

// ctlChange returns the change in fitness over the last week, e.g. "+3"
func ctlChange(trend analysis.LoadSeries) string {
	n := len(trend.CTLSeries)
	if n <= trendLookback {
		return ""
	}
	delta := trend.CTLSeries[n-1] - trend.CTLSeries[n-1-trendLookback]
	switch {
	case delta >= 0.5:
		return fmt.Sprintf("+%.0f", delta)
	case delta <= -0.5:
		return fmt.Sprintf("%.0f", delta)
	}
	return ""
}

func (m DashboardModel) renderWeekCard() string {
	w := m.data.CurrentWeek()
	title := cardTitleStyle.Render("This Week")

	lines := []string{
		RenderMetric("Time", formatMinutes(w.DurationMin), ""),
		RenderMetric("TSS", fmt.Sprintf("%.0f", w.TSS), ""),
		RenderMetric("Form on Sunday", fmt.Sprintf("%+d", w.TSB), ""),
		mutedStyle.Render(w.Start + " to " + w.End),
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(34).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m DashboardModel) renderTodayCard() string {
	title := cardTitleStyle.Render("Today")

	entries := m.data.DayCompliance(m.data.TodayKey())
	if len(entries) == 0 {
		return cardStyle.Width(34).Render(lipgloss.JoinVertical(lipgloss.Left, title, mutedStyle.Render("Nothing planned")))
	}

	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%-18s %s", truncateName(e.Title(), 18), RenderCompliance(e.Compliance)))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(34).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m DashboardModel) renderChart(trend analysis.LoadSeries) string {
	title := cardTitleStyle.Render(fmt.Sprintf("Training Load - Last %d Days", analysis.TrendWindowDays))

	graph := asciigraph.PlotMany([][]float64{trend.CTLSeries, trend.ATLSeries},
		asciigraph.Height(8),
		asciigraph.Width(60),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.Caption("Fitness (CTL) blue, Fatigue (ATL) red"),
	)

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph))
}

func (m DashboardModel) renderRecentActivities() string {
	title := cardTitleStyle.Render("Recent Activities")

	recent := m.data.RecentActivities(service.RecentActivitiesLimit / 2)
	if len(recent) == 0 {
		return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, "No activities yet"))
	}

	header := tableHeaderStyle.Render(fmt.Sprintf("%-14s  %-22s  %-10s  %9s  %8s  %5s",
		"When", "Name", "Sport", "Distance", "Time", "TSS"))
	rows := []string{header}
	for _, a := range recent {
		rows = append(rows, tableRowStyle.Render(fmt.Sprintf("%-14s  %-22s  %-10s  %9s  %8s  %5.0f",
			humanize.Time(a.StartDateLocal),
			truncateName(a.Title(), 22),
			truncateName(a.Type, 10),
			m.units.FormatDistance(a.Distance),
			formatDuration(float64(a.MovingTime)),
			m.data.ActivityTSS(a),
		)))
	}

	table := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, table))
}
