package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"planner/internal/config"
	"planner/internal/service"
)

// Screen identifiers
type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenActivities
	ScreenStats
	ScreenDetail
	ScreenSync
	ScreenHelp
)

// Loader builds a fresh analytics snapshot from the database
type Loader func() (*service.AnalyticsContext, error)

// App is the root Bubble Tea model
type App struct {
	screen     Screen
	prevScreen Screen

	// Screen models
	dashboard  DashboardModel
	activities ActivitiesModel
	stats      StatsModel
	detail     ActivityDetailModel
	syncScreen SyncModel
	help       HelpModel

	load  Loader
	data  *service.AnalyticsContext
	units Units

	// Window dimensions
	width  int
	height int

	// Status message
	status string
}

// NewApp creates a new App. syncer and limits may be nil when running offline.
func NewApp(load Loader, display config.DisplayConfig, syncer Syncer, limits RateLimits, lastSync time.Time) *App {
	units := NewUnits(display)
	return &App{
		screen:     ScreenDashboard,
		load:       load,
		units:      units,
		dashboard:  NewDashboardModel(nil, units),
		activities: NewActivitiesModel(nil, units, 0),
		stats:      NewStatsModel(nil, units),
		syncScreen: NewSyncModel(syncer, limits, lastSync),
		help:       NewHelpModel(),
	}
}

// OpenActivityDetailMsg opens the analysis screen for an activity
type OpenActivityDetailMsg struct {
	ActivityID string
}

// ReloadMsg asks the app to rebuild its data from the database
type ReloadMsg struct{}

// SyncCompleteMsg is sent when sync finishes
type SyncCompleteMsg struct{}

type dataLoadedMsg struct {
	data *service.AnalyticsContext
	err  error
}

func (a *App) loadData() tea.Msg {
	data, err := a.load()
	return dataLoadedMsg{data: data, err: err}
}

// Init initializes the app
func (a *App) Init() tea.Cmd {
	return a.loadData
}

// Update handles messages
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global keybindings (unless a sync is running)
		if a.screen != ScreenSync || !a.syncScreen.syncing {
			switch msg.String() {
			case "q", "ctrl+c":
				return a, tea.Quit
			case "1":
				a.screen = ScreenDashboard
				return a, nil
			case "2":
				a.screen = ScreenActivities
				return a, nil
			case "3":
				a.screen = ScreenStats
				return a, nil
			case "4", "s":
				if a.screen != ScreenSync {
					a.screen = ScreenSync
					return a, a.syncScreen.Init()
				}
				// Let 's' fall through to sync screen when already there
			case "?":
				if a.screen != ScreenHelp {
					a.prevScreen = a.screen
				}
				a.screen = ScreenHelp
				return a, nil
			case "esc":
				if a.screen == ScreenHelp {
					a.screen = a.prevScreen
					return a, nil
				}
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		var cmds []tea.Cmd
		var m tea.Model
		var cmd tea.Cmd
		m, cmd = a.activities.Update(msg)
		a.activities = m.(ActivitiesModel)
		cmds = append(cmds, cmd)
		m, cmd = a.detail.Update(msg)
		a.detail = m.(ActivityDetailModel)
		cmds = append(cmds, cmd)
		return a, tea.Batch(cmds...)

	case dataLoadedMsg:
		if msg.err != nil {
			a.status = fmt.Sprintf("Error loading data: %v", msg.err)
			return a, nil
		}
		a.status = ""
		a.setData(msg.data)
		return a, nil

	case ReloadMsg, SyncCompleteMsg:
		a.status = "Reloading..."
		return a, a.loadData

	case OpenActivityDetailMsg:
		a.screen = ScreenDetail
		a.detail = NewActivityDetailModel(a.data, a.units, msg.ActivityID, a.width)
		return a, a.detail.Init()

	case closeDetailMsg:
		a.screen = ScreenActivities
		return a, nil
	}

	// Delegate to current screen
	var cmd tea.Cmd
	switch a.screen {
	case ScreenDashboard:
		var m tea.Model
		m, cmd = a.dashboard.Update(msg)
		a.dashboard = m.(DashboardModel)
	case ScreenActivities:
		var m tea.Model
		m, cmd = a.activities.Update(msg)
		a.activities = m.(ActivitiesModel)
	case ScreenStats:
		var m tea.Model
		m, cmd = a.stats.Update(msg)
		a.stats = m.(StatsModel)
	case ScreenDetail:
		var m tea.Model
		m, cmd = a.detail.Update(msg)
		a.detail = m.(ActivityDetailModel)
	case ScreenSync:
		var m tea.Model
		m, cmd = a.syncScreen.Update(msg)
		a.syncScreen = m.(SyncModel)
	case ScreenHelp:
		var m tea.Model
		m, cmd = a.help.Update(msg)
		a.help = m.(HelpModel)
	}

	return a, cmd
}

// setData swaps in a new snapshot and rebuilds the screens that read it
func (a *App) setData(data *service.AnalyticsContext) {
	a.data = data
	a.dashboard = NewDashboardModel(data, a.units)
	a.activities = NewActivitiesModel(data, a.units, a.height)
	a.stats = NewStatsModel(data, a.units)
	if a.screen == ScreenDetail {
		a.screen = ScreenActivities
	}
}

// View renders the app
func (a *App) View() string {
	header := a.renderHeader()
	nav := a.renderNav()

	var content string
	switch a.screen {
	case ScreenDashboard:
		content = a.dashboard.View()
	case ScreenActivities:
		content = a.activities.View()
	case ScreenStats:
		content = a.stats.View()
	case ScreenDetail:
		content = a.detail.View()
	case ScreenSync:
		content = a.syncScreen.View()
	case ScreenHelp:
		content = a.help.View()
	}

	footer := a.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, nav, content, footer)
}

func (a *App) renderHeader() string {
	title := "Training Planner"
	if a.data != nil {
		title += "  " + a.data.Today.Format("Mon Jan 2")
	}
	return headerStyle.Render(title)
}

func (a *App) renderNav() string {
	items := []struct {
		key    string
		label  string
		screen Screen
	}{
		{"1", "Dashboard", ScreenDashboard},
		{"2", "Activities", ScreenActivities},
		{"3", "Weeks", ScreenStats},
		{"4", "Sync", ScreenSync},
		{"?", "Help", ScreenHelp},
	}

	var nav string
	for i, item := range items {
		if i > 0 {
			nav += "  "
		}

		label := "[" + item.key + "] " + item.label
		active := a.screen == item.screen || (a.screen == ScreenDetail && item.screen == ScreenActivities)
		if active {
			nav += navActiveStyle.Render(label)
		} else {
			nav += navInactiveStyle.Render(label)
		}
	}

	nav += "  " + navInactiveStyle.Render("[q] Quit")

	return navStyle.Render(nav)
}

func (a *App) renderFooter() string {
	if a.status != "" {
		return statusStyle.Render(a.status)
	}
	return ""
}
