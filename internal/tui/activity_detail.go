package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"planner/internal/service"
	"planner/internal/store"
	"planner/internal/telemetry"
)

const (
	minChartWidth = 30
	maxChartWidth = 120
	chartHeight   = 10

	// fastMoveFactor multiplies the cursor step for the fast move keys
	fastMoveFactor = 10
)

type analysisKeyMap struct {
	Left      key.Binding
	Right     key.Binding
	FastLeft  key.Binding
	FastRight key.Binding
	Select    key.Binding
	Zoom      key.Binding
	ZoomOut   key.Binding
	Reset     key.Binding
	Smoother  key.Binding
	Rougher   key.Binding
	Channel   key.Binding
	Laps      key.Binding
	PickLap   key.Binding
	Back      key.Binding
}

func newAnalysisKeyMap() analysisKeyMap {
	return analysisKeyMap{
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "cursor left")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "cursor right")),
		FastLeft:  key.NewBinding(key.WithKeys("shift+left", "H"), key.WithHelp("H", "jump left")),
		FastRight: key.NewBinding(key.WithKeys("shift+right", "L"), key.WithHelp("L", "jump right")),
		Select:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "start/end selection")),
		Zoom:      key.NewBinding(key.WithKeys("z", "enter"), key.WithHelp("z", "zoom to selection")),
		ZoomOut:   key.NewBinding(key.WithKeys("x", "-"), key.WithHelp("x", "zoom out")),
		Reset:     key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "reset zoom")),
		Smoother:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "smoother")),
		Rougher:   key.NewBinding(key.WithKeys("["), key.WithHelp("[", "rougher")),
		Channel:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "next channel")),
		Laps:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "chart/laps")),
		PickLap:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select lap")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear/back")),
	}
}

// ShortHelp implements help.KeyMap
func (k analysisKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Select, k.Zoom, k.ZoomOut, k.Reset, k.Channel, k.Smoother, k.Rougher, k.Laps, k.Back}
}

// FullHelp implements help.KeyMap
func (k analysisKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.FastLeft, k.FastRight},
		{k.Select, k.Zoom, k.ZoomOut, k.Reset},
		{k.Channel, k.Smoother, k.Rougher},
		{k.Laps, k.PickLap, k.Back},
	}
}

// ActivityDetailModel is the workout analysis screen: a smoothed chart of
// one channel over the visible window with a cursor, selection, zoom and
// per-lap stats
type ActivityDetailModel struct {
	data       *service.AnalyticsContext
	units      Units
	activityID string
	activity   store.Activity

	session *telemetry.Session
	loading bool
	err     error

	channel     telemetry.Channel
	cursor      float64
	laps        table.Model
	lapsFocused bool

	keys  analysisKeyMap
	help  help.Model
	width int
}

// NewActivityDetailModel creates a new analysis model for an activity
func NewActivityDetailModel(data *service.AnalyticsContext, units Units, activityID string, width int) ActivityDetailModel {
	m := ActivityDetailModel{
		data:       data,
		units:      units,
		activityID: activityID,
		loading:    true,
		channel:    telemetry.Power,
		keys:       newAnalysisKeyMap(),
		help:       help.New(),
		width:      width,
	}
	if data != nil {
		m.activity, _ = data.Activity(activityID)
	}
	return m
}

// Init initializes the analysis screen
func (m ActivityDetailModel) Init() tea.Cmd {
	return m.loadSession
}

type sessionLoadedMsg struct {
	session *telemetry.Session
	err     error
}

// closeDetailMsg asks the app to return to the activities list
type closeDetailMsg struct{}

func (m ActivityDetailModel) loadSession() tea.Msg {
	s, err := m.data.OpenAnalysis(context.Background(), m.activityID)
	return sessionLoadedMsg{session: s, err: err}
}

// Update handles messages
func (m ActivityDetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.session = msg.session
		if m.session != nil {
			m.channel = firstChannelWithData(m.session, m.channel)
			m.laps = newLapsTable(m.session, m.units)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			if m.session != nil {
				if _, ok := m.session.Selection(); ok || m.session.Dragging() {
					m.session.ClearSelection()
					return m, nil
				}
			}
			return m, func() tea.Msg { return closeDetailMsg{} }
		}
		if m.session == nil {
			return m, nil
		}
		if key.Matches(msg, m.keys.Laps) {
			m.lapsFocused = !m.lapsFocused
			if m.lapsFocused {
				m.laps.Focus()
			} else {
				m.laps.Blur()
			}
			return m, nil
		}
		if m.lapsFocused {
			return m.updateLaps(msg)
		}
		m.handleChartKey(msg)
	}
	return m, nil
}

func (m ActivityDetailModel) updateLaps(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.PickLap) {
		if m.session.SelectLap(m.laps.Cursor()) {
			if r, ok := m.session.Selection(); ok {
				m.cursor = clampTo(r.Start, m.session.Window())
			}
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.laps, cmd = m.laps.Update(msg)
	return m, cmd
}

// handleChartKey applies a chart key to the shared session
func (m *ActivityDetailModel) handleChartKey(msg tea.KeyMsg) {
	s := m.session
	step := s.Window().Span() / float64(m.chartWidth())

	switch {
	case key.Matches(msg, m.keys.Left):
		m.moveCursor(-step)
	case key.Matches(msg, m.keys.Right):
		m.moveCursor(step)
	case key.Matches(msg, m.keys.FastLeft):
		m.moveCursor(-step * fastMoveFactor)
	case key.Matches(msg, m.keys.FastRight):
		m.moveCursor(step * fastMoveFactor)
	case key.Matches(msg, m.keys.Select):
		if s.Dragging() {
			s.CommitSelection()
		} else {
			s.BeginSelection(m.cursor)
		}
	case key.Matches(msg, m.keys.Zoom):
		if s.Dragging() {
			s.CommitSelection()
		}
		s.ZoomToSelection()
	case key.Matches(msg, m.keys.ZoomOut):
		s.ZoomOut()
	case key.Matches(msg, m.keys.Reset):
		s.ResetZoom()
	case key.Matches(msg, m.keys.Smoother):
		s.SetSmoothingStep(s.SmoothingStep() + 1)
		m.data.SetSmoothingStep(s.SmoothingStep())
	case key.Matches(msg, m.keys.Rougher):
		s.SetSmoothingStep(s.SmoothingStep() - 1)
		m.data.SetSmoothingStep(s.SmoothingStep())
	case key.Matches(msg, m.keys.Channel):
		m.channel = nextChannel(s, m.channel)
	}
	m.cursor = clampTo(m.cursor, s.Window())
}

func (m *ActivityDetailModel) moveCursor(delta float64) {
	m.cursor = clampTo(m.cursor+delta, m.session.Window())
	if m.session.Dragging() {
		m.session.UpdateSelection(m.cursor)
	}
}

func clampTo(t float64, r telemetry.Range) float64 {
	return math.Max(r.Start, math.Min(r.End, t))
}

func (m ActivityDetailModel) chartWidth() int {
	return max(minChartWidth, min(maxChartWidth, m.width-16))
}

// hasData reports whether any sample carries ch
func hasData(s *telemetry.Session, ch telemetry.Channel) bool {
	for _, p := range s.Points() {
		if p.Value(ch) != nil {
			return true
		}
	}
	return false
}

func firstChannelWithData(s *telemetry.Session, preferred telemetry.Channel) telemetry.Channel {
	if hasData(s, preferred) {
		return preferred
	}
	return nextChannel(s, preferred)
}

// nextChannel returns the next channel after ch that has data, or ch
func nextChannel(s *telemetry.Session, ch telemetry.Channel) telemetry.Channel {
	start := 0
	for i, c := range telemetry.Channels {
		if c == ch {
			start = i
		}
	}
	for i := 1; i <= len(telemetry.Channels); i++ {
		c := telemetry.Channels[(start+i)%len(telemetry.Channels)]
		if hasData(s, c) {
			return c
		}
	}
	return ch
}

// View renders the analysis screen
func (m ActivityDetailModel) View() string {
	if m.loading {
		return "\n  Loading workout..."
	}
	if m.err != nil {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderHeader(),
			errorStyle.Render(fmt.Sprintf("  No analysis available: %v", m.err)),
			statusStyle.Render("  esc: back to list"))
	}

	sections := []string{
		m.renderHeader(),
		m.renderChart(),
		m.renderTimeline(),
		m.renderReadout(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderStats(), "  ", m.renderLaps()),
		m.help.ShortHelpView(m.keys.ShortHelp()),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m ActivityDetailModel) renderHeader() string {
	a := m.activity
	title := cardTitleStyle.Render(a.Title())
	date := mutedStyle.Render(a.StartDateLocal.Format("Monday, January 2, 2006 at 3:04 PM"))

	parts := []string{a.Type, formatDuration(float64(a.MovingTime))}
	if a.Distance > 0 {
		parts = append(parts, m.units.FormatDistance(a.Distance))
	}
	if m.data != nil {
		parts = append(parts, fmt.Sprintf("%.0f TSS", m.data.ActivityTSS(a)))
	}
	stats := metricValueStyle.Render(strings.Join(parts, "  •  "))

	return lipgloss.JoinVertical(lipgloss.Left, title, date, stats, "")
}

func (m ActivityDetailModel) renderChart() string {
	s := m.session
	lo, hi := s.VisiblePoints()
	width := m.chartWidth()
	data := resample(s.Smoothed(m.channel)[lo:hi], width)
	if data == nil {
		return mutedStyle.Render(fmt.Sprintf("  No %s data in this range", channelLabel(m.channel)))
	}

	caption := fmt.Sprintf("%s  (smoothing %d)", channelLabel(m.channel), s.SmoothingStep())
	graph := asciigraph.Plot(data,
		asciigraph.Height(chartHeight),
		asciigraph.Width(width),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(asciigraph.Blue),
		asciigraph.Caption(caption),
	)
	return sectionStyle.Render(s.Title()) + "\n" + graph
}

// resample averages values into n buckets, carrying the previous bucket
// over gaps. It returns nil when no value is present.
func resample(values []*float64, n int) []float64 {
	if len(values) == 0 || n <= 0 {
		return nil
	}
	n = min(n, len(values))
	out := make([]float64, n)
	ratio := float64(len(values)) / float64(n)

	var seen bool
	for i := range n {
		start := int(float64(i) * ratio)
		end := min(len(values), max(start+1, int(float64(i+1)*ratio)))
		var sum float64
		var count int
		for _, v := range values[start:end] {
			if v != nil {
				sum += *v
				count++
			}
		}
		switch {
		case count > 0:
			out[i] = sum / float64(count)
			if !seen {
				// Backfill the leading gap with the first reading
				for j := range i {
					out[j] = out[i]
				}
			}
			seen = true
		case i > 0:
			out[i] = out[i-1]
		}
	}
	if !seen {
		return nil
	}
	return out
}

// renderTimeline draws the window as a bar with the selection and cursor
func (m ActivityDetailModel) renderTimeline() string {
	s := m.session
	w := s.Window()
	width := m.chartWidth()
	col := func(t float64) int {
		if w.Span() <= 0 {
			return 0
		}
		return max(0, min(width-1, int((t-w.Start)/w.Span()*float64(width-1)+0.5)))
	}

	sel, hasSel := s.Selection()
	cursor := col(m.cursor)
	var b strings.Builder
	for i := range width {
		switch {
		case i == cursor:
			b.WriteString(cursorStyle.Render("▲"))
		case hasSel && i >= col(sel.Start) && i <= col(sel.End):
			b.WriteString(selectionStyle.Render("━"))
		default:
			b.WriteString(mutedStyle.Render("─"))
		}
	}

	zoom := ""
	if s.IsZoomed() {
		zoom = warningStyle.Render("  zoomed")
	}
	return fmt.Sprintf("%s %s %s%s", formatDuration(w.Start), b.String(), formatDuration(w.End), zoom)
}

func (m ActivityDetailModel) renderReadout() string {
	_, p := m.session.NearestSample(m.cursor)
	parts := []string{cursorStyle.Render("@ " + formatDuration(p.T))}
	for _, ch := range telemetry.Channels {
		if v := p.Value(ch); v != nil {
			parts = append(parts, m.units.FormatChannel(string(ch), *v))
		}
	}
	if sel, ok := m.session.Selection(); ok {
		parts = append(parts, selectionStyle.Render(fmt.Sprintf("selected %s-%s",
			formatDuration(sel.Start), formatDuration(sel.End))))
	}
	return strings.Join(parts, "  ") + "\n"
}

func (m ActivityDetailModel) renderStats() string {
	stats, ok := m.session.ActiveStats()
	if !ok {
		return cardStyle.Render("No samples in range")
	}

	lines := []string{
		cardTitleStyle.Render(m.session.Title()),
		RenderMetric("Duration", formatDuration(stats.DurationS), ""),
		RenderMetric("Distance", m.units.FormatDistance(stats.DistanceM), ""),
	}
	if stats.TSS != nil {
		lines = append(lines, RenderMetric("TSS", fmt.Sprintf("%.1f", *stats.TSS), ""))
	}
	for _, ch := range telemetry.Channels {
		c, ok := stats.Channels[ch]
		if !ok || ch == telemetry.Distance {
			continue
		}
		lines = append(lines, RenderMetric(channelLabel(ch), m.units.FormatChannel(string(ch), c.Mean),
			fmt.Sprintf("(%s-%s)", trimUnit(m.units.FormatChannel(string(ch), c.Min)),
				trimUnit(m.units.FormatChannel(string(ch), c.Max)))))
	}
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// trimUnit keeps the number of a formatted reading
func trimUnit(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

func (m ActivityDetailModel) renderLaps() string {
	title := cardTitleStyle.Render("Laps")
	if m.lapsFocused {
		title = cardTitleStyle.Render("Laps (enter selects)")
	}
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, m.laps.View()))
}

func newLapsTable(s *telemetry.Session, units Units) table.Model {
	columns := []table.Column{
		{Title: "Lap", Width: 10},
		{Title: "Start", Width: 8},
		{Title: "Time", Width: 8},
		{Title: "Dist", Width: 9},
		{Title: "HR", Width: 4},
		{Title: "Watts", Width: 5},
		{Title: "IF", Width: 4},
		{Title: "TSS", Width: 4},
	}

	var rows []table.Row
	for _, lap := range s.Laps() {
		rows = append(rows, table.Row{
			truncateName(lap.Name, 10),
			formatDuration(lap.StartSec),
			formatDuration(lap.DurationS),
			optional(lap.DistanceM, units.FormatDistance),
			optional(lap.AvgHR, func(v float64) string { return fmt.Sprintf("%.0f", v) }),
			optional(lap.AvgPower, func(v float64) string { return fmt.Sprintf("%.0f", v) }),
			optional(lap.IF, func(v float64) string { return fmt.Sprintf("%.2f", v) }),
			optional(lap.TSS, func(v float64) string { return fmt.Sprintf("%.0f", v) }),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(min(8, len(rows)+1)),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(primaryColor)
	styles.Selected = styles.Selected.Foreground(textColor).Background(primaryColor)
	t.SetStyles(styles)
	return t
}

func optional(v *float64, format func(float64) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}

func channelLabel(ch telemetry.Channel) string {
	switch ch {
	case telemetry.HeartRate:
		return "Heart Rate"
	case telemetry.Power:
		return "Power"
	case telemetry.Cadence:
		return "Cadence"
	case telemetry.Speed:
		return "Speed"
	case telemetry.Distance:
		return "Distance"
	case telemetry.Altitude:
		return "Altitude"
	}
	return string(ch)
}
