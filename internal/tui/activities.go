package tui

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"planner/internal/service"
	"planner/internal/store"
)

// ActivitiesModel is the activities list screen model
type ActivitiesModel struct {
	data       *service.AnalyticsContext
	units      Units
	activities []store.Activity // newest first, in table order
	table      table.Model
}

// NewActivitiesModel creates a new activities model
func NewActivitiesModel(data *service.AnalyticsContext, units Units, height int) ActivitiesModel {
	m := ActivitiesModel{data: data, units: units}
	if data != nil {
		m.activities = slices.Clone(data.Activities)
		slices.Reverse(m.activities)
	}

	columns := []table.Column{
		{Title: "Date", Width: 10},
		{Title: "Name", Width: 26},
		{Title: "Sport", Width: 12},
		{Title: "Distance", Width: 9},
		{Title: "Time", Width: 8},
		{Title: "TSS", Width: 5},
		{Title: "IF", Width: 5},
		{Title: "Stream", Width: 6},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(m.rows()),
		table.WithFocused(true),
		table.WithHeight(tableHeight(height)),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(mutedColor).
		BorderBottom(true).
		Bold(true).
		Foreground(primaryColor)
	styles.Selected = styles.Selected.
		Foreground(textColor).
		Background(primaryColor).
		Bold(true)
	t.SetStyles(styles)
	m.table = t
	return m
}

func tableHeight(height int) int {
	if height <= 0 {
		return 15
	}
	return max(5, height-12)
}

func (m ActivitiesModel) rows() []table.Row {
	if m.data == nil {
		return nil
	}
	est := m.data.Estimator()
	rows := make([]table.Row, 0, len(m.activities))
	for _, a := range m.activities {
		ifv := "-"
		if v, ok := est.IFFor(a); ok {
			ifv = fmt.Sprintf("%.2f", v)
		}
		stream := ""
		if a.StreamID != "" {
			stream = "✓"
		}
		rows = append(rows, table.Row{
			a.StartDateLocal.Format("2006-01-02"),
			a.Title(),
			a.Type,
			m.units.FormatDistance(a.Distance),
			formatDuration(float64(a.MovingTime)),
			fmt.Sprintf("%.0f", est.TSSFor(a)),
			ifv,
			stream,
		})
	}
	return rows
}

// Init initializes the activities screen
func (m ActivitiesModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m ActivitiesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(tableHeight(msg.Height))

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			return m, func() tea.Msg { return ReloadMsg{} }
		case "enter":
			i := m.table.Cursor()
			if i >= 0 && i < len(m.activities) {
				id := m.activities[i].ID
				return m, func() tea.Msg { return OpenActivityDetailMsg{ActivityID: id} }
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the activities list
func (m ActivitiesModel) View() string {
	if len(m.activities) == 0 {
		return "\n  No activities found. Press 's' to sync with Strava."
	}

	title := cardTitleStyle.Render(fmt.Sprintf("Activities (%d)", len(m.activities)))
	help := statusStyle.Render("  enter: analyze  j/k: navigate  pgup/pgdn: page  r: reload")
	return lipgloss.JoinVertical(lipgloss.Left, title, m.table.View(), help)
}
