package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"planner/internal/analysis"
	"planner/internal/store"
	"planner/internal/telemetry"
)

// Source supplies the records the analytics are computed from
type Source interface {
	ListActivities() ([]store.Activity, error)
	ListPlannedItems() ([]store.PlannedItem, error)
	ListPairs() ([]store.Pair, error)
	telemetry.StreamLoader
}

// AnalyticsContext is a snapshot of the athlete's records with the
// settings and clock they are analyzed against. It is not refreshed in
// place; call LoadContext again after the records change.
type AnalyticsContext struct {
	Activities []store.Activity // visible activities, oldest first
	Planned    []store.PlannedItem
	Pairs      []store.Pair
	Today      time.Time

	est    *analysis.Estimator
	loader telemetry.StreamLoader

	activityByID   map[string]*store.Activity
	plannedByID    map[string]*store.PlannedItem
	pairByPlanned  map[string]store.Pair
	pairByActivity map[string]store.Pair
	load           analysis.DailyLoad
	aggregates     map[string]DayAggregate
	smoothingStep  int
}

// LoadContext reads every record from src. ftp may be nil when no
// thresholds are configured.
func LoadContext(src Source, ftp analysis.FTPLookup, today time.Time) (*AnalyticsContext, error) {
	activities, err := src.ListActivities()
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	planned, err := src.ListPlannedItems()
	if err != nil {
		return nil, fmt.Errorf("listing planned items: %w", err)
	}
	pairs, err := src.ListPairs()
	if err != nil {
		return nil, fmt.Errorf("listing pairs: %w", err)
	}
	return NewContext(activities, planned, pairs, src, ftp, today), nil
}

// NewContext builds a context over records already in memory. Hidden
// activities are dropped.
func NewContext(activities []store.Activity, planned []store.PlannedItem, pairs []store.Pair,
	loader telemetry.StreamLoader, ftp analysis.FTPLookup, today time.Time) *AnalyticsContext {
	c := &AnalyticsContext{
		Planned:        planned,
		Pairs:          pairs,
		Today:          today,
		est:            analysis.NewEstimator(ftp),
		loader:         loader,
		activityByID:   make(map[string]*store.Activity),
		plannedByID:    make(map[string]*store.PlannedItem),
		pairByPlanned:  make(map[string]store.Pair),
		pairByActivity: make(map[string]store.Pair),
		smoothingStep:  telemetry.DefaultSmoothingStep,
	}

	for _, a := range activities {
		if !a.Hidden {
			c.Activities = append(c.Activities, a)
		}
	}
	slices.SortStableFunc(c.Activities, func(a, b store.Activity) int {
		return a.StartDateLocal.Compare(b.StartDateLocal)
	})
	for i := range c.Activities {
		c.activityByID[c.Activities[i].ID] = &c.Activities[i]
	}
	for i := range c.Planned {
		c.plannedByID[c.Planned[i].ID] = &c.Planned[i]
	}
	for _, p := range pairs {
		c.pairByPlanned[p.PlannedID] = p
		c.pairByActivity[p.ActivityID] = p
	}
	return c
}

// Estimator returns the effort estimator configured with the athlete's FTP
func (c *AnalyticsContext) Estimator() *analysis.Estimator { return c.est }

// TodayKey returns today's calendar day key
func (c *AnalyticsContext) TodayKey() string { return c.Today.Format(store.DateLayout) }

// DailyLoad returns the summed TSS of the visible activities per start day
func (c *AnalyticsContext) DailyLoad() analysis.DailyLoad {
	if c.load == nil {
		c.load = c.est.DailyLoadFor(c.Activities)
	}
	return c.load
}

// Trend returns the fitness trend for the window ending on end
func (c *AnalyticsContext) Trend(end time.Time) analysis.LoadSeries {
	return analysis.Trend(c.DailyLoad(), end, c.Today)
}

// CurrentTrend returns the fitness trend ending today
func (c *AnalyticsContext) CurrentTrend() analysis.LoadSeries {
	return c.Trend(c.Today)
}

// ActivityTSS returns the TSS of an activity
func (c *AnalyticsContext) ActivityTSS(a store.Activity) float64 {
	return c.est.TSSFor(a)
}

// Activity returns a visible activity by ID
func (c *AnalyticsContext) Activity(id string) (store.Activity, bool) {
	a, ok := c.activityByID[id]
	if !ok {
		return store.Activity{}, false
	}
	return *a, true
}

// RecentActivities returns up to n visible activities, newest first
func (c *AnalyticsContext) RecentActivities(n int) []store.Activity {
	out := make([]store.Activity, 0, min(n, len(c.Activities)))
	for i := len(c.Activities) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, c.Activities[i])
	}
	return out
}

// DayEntry is one workout shown on a calendar day with its compliance
type DayEntry struct {
	Planned    *store.PlannedItem      // nil for unplanned activities
	Activity   *store.Activity         // the paired or unplanned activity
	Shadow     *store.ShadowCompletion // results recorded on the planned item itself
	Compliance analysis.Compliance
	TSS        float64 // completed TSS when done, otherwise planned
}

// Completed reports whether the entry has completed results
func (e DayEntry) Completed() bool { return e.Activity != nil || e.Shadow != nil }

// Title returns the name to show for the entry
func (e DayEntry) Title() string {
	if e.Planned != nil {
		return e.Planned.Title
	}
	if e.Activity != nil {
		return e.Activity.Title()
	}
	return ""
}

// DayCompliance classifies every workout on dayKey. Planned workouts come
// first, each matched with its paired activity or, failing that, the
// completed values recorded on the item. Activities shown on the day that
// were not matched follow: against their plan when paired to a workout on
// another day, otherwise as unplanned.
func (c *AnalyticsContext) DayCompliance(dayKey string) []DayEntry {
	today := c.TodayKey()
	var entries []DayEntry
	shown := make(map[string]bool)

	for i := range c.Planned {
		p := &c.Planned[i]
		if p.Date != dayKey || !p.IsWorkout() {
			continue
		}
		entry := DayEntry{Planned: p}
		var completed analysis.Workout
		if pair, ok := c.pairByPlanned[p.ID]; ok {
			if a, ok := c.activityByID[pair.ActivityID]; ok {
				entry.Activity = a
				completed = *a
				shown[a.ID] = true
			}
		}
		if completed == nil {
			if shadow, ok := p.Shadow(); ok {
				entry.Shadow = &shadow
				completed = shadow
			}
		}
		entry.Compliance = c.est.Classify(*p, completed, dayKey, today)
		if completed != nil {
			entry.TSS = c.est.TSSFor(completed)
		} else {
			entry.TSS = c.est.TSSFor(*p)
		}
		entries = append(entries, entry)
	}

	for i := range c.Activities {
		a := &c.Activities[i]
		if a.DayKey() != dayKey || shown[a.ID] {
			continue
		}
		entry := DayEntry{Activity: a, TSS: c.est.TSSFor(*a)}
		if pair, ok := c.pairByActivity[a.ID]; ok {
			if p, ok := c.plannedByID[pair.PlannedID]; ok && p.IsWorkout() {
				entry.Planned = p
				entry.Compliance = c.est.Classify(*p, *a, dayKey, today)
				entries = append(entries, entry)
				continue
			}
		}
		entry.Compliance = c.est.Classify(nil, *a, dayKey, today)
		entries = append(entries, entry)
	}
	return entries
}

// DayAggregate is the completed volume of one calendar day
type DayAggregate struct {
	Activities  int
	Items       int
	DurationMin float64
	TSS         float64
}

// DayAggregates returns completed volume per day. Activities count on their
// start day; results recorded on an unpaired planned workout count on the
// item's day.
func (c *AnalyticsContext) DayAggregates() map[string]DayAggregate {
	if c.aggregates != nil {
		return c.aggregates
	}
	days := make(map[string]DayAggregate)
	for _, a := range c.Activities {
		key := a.StartDateLocal.Format(store.DateLayout)
		d := days[key]
		d.Activities++
		d.DurationMin += a.Minutes()
		d.TSS += c.est.TSSFor(a)
		days[key] = d
	}
	for _, p := range c.Planned {
		d := days[p.Date]
		d.Items++
		if _, paired := c.pairByPlanned[p.ID]; p.IsWorkout() && !paired {
			if shadow, ok := p.Shadow(); ok {
				d.DurationMin += shadow.Minutes()
				d.TSS += c.est.TSSFor(shadow)
			}
		}
		days[p.Date] = d
	}
	c.aggregates = days
	return days
}

// WeekSummary is the completed volume of a week and the trend at its end
type WeekSummary struct {
	Start       string
	End         string
	DurationMin float64
	TSS         float64
	CTL         int
	ATL         int
	TSB         int
}

// WeekSummary sums the seven days starting on start and reports the trend
// as of the last of them
func (c *AnalyticsContext) WeekSummary(start time.Time) WeekSummary {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, DaysPerWeek-1)
	days := c.DayAggregates()

	w := WeekSummary{Start: start.Format(store.DateLayout), End: end.Format(store.DateLayout)}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		agg := days[d.Format(store.DateLayout)]
		w.DurationMin += agg.DurationMin
		w.TSS += agg.TSS
	}
	trend := c.Trend(end)
	w.CTL, w.ATL, w.TSB = trend.CTL, trend.ATL, trend.TSB
	return w
}

// CurrentWeek returns the summary of the Monday-based week containing today
func (c *AnalyticsContext) CurrentWeek() WeekSummary {
	return c.WeekSummary(weekStart(c.Today))
}

// SetSmoothingStep sets the smoothing step new analysis sessions start with
func (c *AnalyticsContext) SetSmoothingStep(step int) { c.smoothingStep = max(1, step) }

// OpenAnalysis opens a telemetry session over an activity's stream. The
// activity's own TSS is used when the stream summary carries none. Every
// failure, including an unknown activity, wraps telemetry.ErrNoStreamData.
func (c *AnalyticsContext) OpenAnalysis(ctx context.Context, activityID string) (*telemetry.Session, error) {
	a, ok := c.activityByID[activityID]
	if !ok {
		return nil, fmt.Errorf("%w: %w", telemetry.ErrNoStreamData, store.ErrActivityNotFound)
	}
	return telemetry.Open(ctx, c.loader, a.StreamID, telemetry.Options{
		FallbackTSS:   c.est.TSSFor(*a),
		SmoothingStep: c.smoothingStep,
	})
}
