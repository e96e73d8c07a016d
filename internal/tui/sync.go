package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"planner/internal/service"
)

// Syncer runs a sync, reporting progress on the channel until it closes
type Syncer interface {
	SyncAll(ctx context.Context, progress chan<- service.SyncProgress) (*service.SyncResult, error)
}

// RateLimits reports the remaining Strava API requests
type RateLimits interface {
	RateLimitStatus() (shortRemaining, dailyRemaining int)
}

// SyncModel is the sync screen model
type SyncModel struct {
	syncer   Syncer
	limits   RateLimits
	lastSync time.Time

	syncing  bool
	progress service.SyncProgress
	result   *service.SyncResult
	err      error
	done     bool
}

// NewSyncModel creates a new sync model. A nil syncer means the app runs
// offline.
func NewSyncModel(syncer Syncer, limits RateLimits, lastSync time.Time) SyncModel {
	return SyncModel{syncer: syncer, limits: limits, lastSync: lastSync}
}

// Init initializes the sync screen
func (m SyncModel) Init() tea.Cmd {
	return nil
}

// SyncDoneMsg is sent when sync finishes
type SyncDoneMsg struct {
	Result *service.SyncResult
	Err    error
}

type syncProgressMsg struct {
	progress service.SyncProgress
	ch       <-chan service.SyncProgress
}

// Update handles messages
func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case syncProgressMsg:
		m.progress = msg.progress
		return m, waitForProgress(msg.ch)

	case SyncDoneMsg:
		m.syncing = false
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		if msg.Err == nil {
			m.lastSync = time.Now()
		}
		return m, func() tea.Msg { return SyncCompleteMsg{} }

	case tea.KeyMsg:
		if !m.syncing && m.syncer != nil {
			switch msg.String() {
			case "enter", "s":
				m.syncing = true
				m.done = false
				m.err = nil
				m.result = nil
				m.progress = service.SyncProgress{}
				return m, m.startSync()
			}
		}
	}
	return m, nil
}

func (m SyncModel) startSync() tea.Cmd {
	ch := make(chan service.SyncProgress)
	syncer := m.syncer
	run := func() tea.Msg {
		result, err := syncer.SyncAll(context.Background(), ch)
		return SyncDoneMsg{Result: result, Err: err}
	}
	return tea.Batch(run, waitForProgress(ch))
}

// waitForProgress delivers the next progress report. It yields nothing once
// the sync closes the channel.
func waitForProgress(ch <-chan service.SyncProgress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return syncProgressMsg{progress: p, ch: ch}
	}
}

// View renders the sync screen
func (m SyncModel) View() string {
	var sections []string
	sections = append(sections, cardTitleStyle.Render("Strava Sync"))

	if m.syncer == nil {
		sections = append(sections, warningStyle.Render("\n  Running offline. Restart with --sync to sync with Strava."))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("\n  Error: %v", m.err)))
		sections = append(sections, m.renderSummary())
		sections = append(sections, "\n"+statusStyle.Render("  Press 's' or Enter to retry"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.done && !m.syncing {
		sections = append(sections, successStyle.Render("\n  Sync complete!"))
		sections = append(sections, m.renderSummary())
		sections = append(sections, "\n"+statusStyle.Render("  Press '1' to go to dashboard"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.syncing {
		sections = append(sections, m.renderProgress())
	} else {
		sections = append(sections, m.renderStartPrompt())
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m SyncModel) renderStartPrompt() string {
	lines := []string{
		"",
		"  This will sync your Strava activities:",
		"",
		"  1. Fetch activities started since the last sync",
		"  2. Download streams and laps",
		"  3. Summarize power, heart rate and load",
		"",
	}

	last := "never"
	if !m.lastSync.IsZero() {
		last = humanize.Time(m.lastSync)
	}
	lines = append(lines, statusStyle.Render("  Last sync: "+last))

	if m.limits != nil {
		short, daily := m.limits.RateLimitStatus()
		lines = append(lines, statusStyle.Render(fmt.Sprintf("  API requests left: %d (15min), %d (daily)", short, daily)))
	}
	lines = append(lines, "", statusStyle.Render("  Press 's' or Enter to start sync"))

	return strings.Join(lines, "\n")
}

func (m SyncModel) renderProgress() string {
	p := m.progress
	lines := []string{"", "  Syncing with Strava...", ""}

	switch p.Phase {
	case service.PhaseActivities:
		lines = append(lines, fmt.Sprintf("  Fetching activities: %s stored", humanize.Comma(int64(p.Completed))))
	case service.PhaseStreams:
		frac := 0.0
		if p.Total > 0 {
			frac = float64(p.Completed) / float64(p.Total)
		}
		lines = append(lines, fmt.Sprintf("  Downloading streams %d/%d", p.Completed, p.Total))
		lines = append(lines, "  "+RenderProgressBar(frac, 40))
		if p.CurrentActivity != "" {
			lines = append(lines, mutedStyle.Render("  "+truncateName(p.CurrentActivity, 40)))
		}
	default:
		lines = append(lines, "  Starting...")
	}

	lines = append(lines, "", statusStyle.Render("  This may take a moment..."))
	return strings.Join(lines, "\n")
}

func (m SyncModel) renderSummary() string {
	if m.result == nil {
		return ""
	}

	r := m.result
	lines := []string{""}

	if r.ActivitiesStored > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %s activities synced", humanize.Comma(int64(r.ActivitiesStored)))))
	} else {
		lines = append(lines, statusStyle.Render("  No new activities"))
	}

	if r.StreamsFetched > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %d streams downloaded", r.StreamsFetched)))
	}

	if len(r.Errors) > 0 {
		lines = append(lines, "", warningStyle.Render(fmt.Sprintf("  %d errors occurred, see the log", len(r.Errors))))
	}

	return strings.Join(lines, "\n")
}
