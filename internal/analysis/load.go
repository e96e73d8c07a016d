package analysis

import (
	"math"
	"time"

	"planner/internal/store"
)

// Trend model constants. The window and time constants are fixed.
const (
	TrendWindowDays = 120
	CTLTimeConstant = 42.0 // days, "Fitness"
	ATLTimeConstant = 7.0  // days, "Fatigue"
)

// DailyLoad maps a local calendar day (YYYY-MM-DD) to its summed TSS
type DailyLoad map[string]float64

// DailyLoadFor groups activities by local start date and sums their TSS.
// Hidden activities don't count.
func (e *Estimator) DailyLoadFor(activities []store.Activity) DailyLoad {
	load := make(DailyLoad)
	for _, a := range activities {
		if a.Hidden {
			continue
		}
		load[a.StartDateLocal.Format(store.DateLayout)] += e.TSSFor(a)
	}
	return load
}

// LoadSeries is the CTL/ATL/TSB model evaluated over the trend window
type LoadSeries struct {
	Dates     []string
	TSS       []float64
	CTLSeries []float64
	ATLSeries []float64
	TSBSeries []float64 // form going into each day

	// Final day values, rounded for display
	CTL int
	ATL int
	TSB int
}

// Trend evaluates the training load model over the TrendWindowDays days
// ending at end. Days after today contribute zero TSS.
//
// For each day, TSB is yesterday's CTL minus yesterday's ATL, then
// CTL += (TSS - CTL)/42 and ATL += (TSS - ATL)/7, both seeded at zero.
func Trend(load DailyLoad, end, today time.Time) LoadSeries {
	end = day(end)
	todayKey := day(today).Format(store.DateLayout)
	start := end.AddDate(0, 0, -(TrendWindowDays - 1))

	s := LoadSeries{
		Dates:     make([]string, 0, TrendWindowDays),
		TSS:       make([]float64, 0, TrendWindowDays),
		CTLSeries: make([]float64, 0, TrendWindowDays),
		ATLSeries: make([]float64, 0, TrendWindowDays),
		TSBSeries: make([]float64, 0, TrendWindowDays),
	}

	var ctl, atl float64
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(store.DateLayout)
		var tss float64
		if key <= todayKey {
			tss = load[key]
		}

		tsb := ctl - atl
		ctl += (tss - ctl) / CTLTimeConstant
		atl += (tss - atl) / ATLTimeConstant

		s.Dates = append(s.Dates, key)
		s.TSS = append(s.TSS, tss)
		s.CTLSeries = append(s.CTLSeries, ctl)
		s.ATLSeries = append(s.ATLSeries, atl)
		s.TSBSeries = append(s.TSBSeries, tsb)
	}

	n := len(s.Dates)
	s.CTL = int(math.Round(s.CTLSeries[n-1]))
	s.ATL = int(math.Round(s.ATLSeries[n-1]))
	s.TSB = int(math.Round(s.TSBSeries[n-1]))
	return s
}

// FormDescription returns a human-readable description of TSB
func FormDescription(tsb float64) string {
	switch {
	case tsb > 25:
		return "Very fresh (possibly detrained)"
	case tsb > 10:
		return "Fresh and ready to race"
	case tsb > 0:
		return "Neutral - good for training"
	case tsb > -10:
		return "Slightly fatigued"
	case tsb > -25:
		return "Tired but building fitness"
	default:
		return "Very fatigued - rest needed"
	}
}

// ParseDay parses a YYYY-MM-DD key into midnight UTC
func ParseDay(key string) (time.Time, error) {
	return time.Parse(store.DateLayout, key)
}

// day truncates t to its calendar date, at midnight UTC, so that day
// arithmetic is free of DST shifts.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
