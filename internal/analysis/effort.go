package analysis

import (
	"math"
	"strings"
)

// Workout is any record that carries training effort: a completed
// activity, a planned workout, or the completed values recorded on a plan.
// Zero means unknown for every accessor.
type Workout interface {
	Minutes() float64
	Kilometers() float64
	ExplicitTSS() float64
	ExplicitIF() float64
	Sport() string
}

// Optional capabilities, discovered by type assertion
type (
	intensityDialer interface{ IntensityDial() float64 }
	powerMeter      interface{ AveragePower() float64 }
	calendarEntry   interface{ IsWorkout() bool }
)

// FTPLookup returns the functional threshold power for a sport key, 0 when unknown.
type FTPLookup interface {
	FTPFor(sportKey string) float64
}

const (
	// DefaultIntensity is used for workout types missing from the table
	DefaultIntensity = 0.70
	// MinIntensity floors the heuristic intensity
	MinIntensity = 0.2
)

// typeIntensity maps workout type labels to a typical intensity factor
var typeIntensity = map[string]float64{
	"Run":        0.85,
	"Bike":       0.82,
	"Swim":       0.80,
	"Brick":      0.90,
	"Crosstrain": 0.70,
	"Day Off":    0.20,
	"Mtn Bike":   0.86,
	"Strength":   0.75,
	"Custom":     0.72,
	"XC-Ski":     0.88,
	"Rowing":     0.84,
	"Walk":       0.55,
	"Other":      0.65,
	"Ride":       0.82,
	"Workout":    0.80,
}

// TypeIntensity returns the typical intensity for a workout type
func TypeIntensity(workoutType string) float64 {
	if v, ok := typeIntensity[workoutType]; ok {
		return v
	}
	return DefaultIntensity
}

// DialIntensity converts a 1-10 intensity dial into an intensity factor
func DialIntensity(dial float64) float64 {
	return 0.4 + math.Min(10, dial)/10
}

// SportKey maps an activity or workout type onto the key used for FTP lookup
func SportKey(sport string) string {
	s := strings.ToLower(sport)
	switch {
	case strings.Contains(s, "ride"), strings.Contains(s, "cycl"), strings.Contains(s, "bike"):
		return "ride"
	case strings.Contains(s, "run"), strings.Contains(s, "walk"):
		return "run"
	case strings.Contains(s, "swim"):
		return "swim"
	case strings.Contains(s, "row"):
		return "row"
	case strings.Contains(s, "strength"), strings.Contains(s, "weight"):
		return "strength"
	default:
		return "other"
	}
}

// Estimator derives TSS and intensity factor from workout records
type Estimator struct {
	ftp FTPLookup
}

// NewEstimator creates an estimator. ftp may be nil when no thresholds are known.
func NewEstimator(ftp FTPLookup) *Estimator {
	return &Estimator{ftp: ftp}
}

// TSSFor returns the training stress score of w.
// Priority: explicit TSS, then hours × IF² × 100 when IF is known,
// then a heuristic from the intensity dial or workout type.
func (e *Estimator) TSSFor(w Workout) float64 {
	if w == nil || !isWorkout(w) {
		return 0
	}
	if tss := w.ExplicitTSS(); tss > 0 {
		return tss
	}

	hours := w.Minutes() / 60
	if hours <= 0 {
		return 0
	}
	if ifv, ok := e.IFFor(w); ok {
		return hours * ifv * ifv * 100
	}

	intensity := math.Max(heuristicIntensity(w), MinIntensity)
	return hours * intensity * intensity * 100
}

// IFFor returns the intensity factor of w, and false when it cannot be derived.
func (e *Estimator) IFFor(w Workout) (float64, bool) {
	if w == nil || !isWorkout(w) {
		return 0, false
	}
	if v := w.ExplicitIF(); v > 0 {
		return v, true
	}

	hours := w.Minutes() / 60
	if tss := w.ExplicitTSS(); tss > 0 && hours > 0 {
		return math.Sqrt(tss / (hours * 100)), true
	}

	if pm, ok := w.(powerMeter); ok && e.ftp != nil {
		avg := pm.AveragePower()
		ftp := e.ftp.FTPFor(SportKey(w.Sport()))
		if avg > 0 && ftp > 0 {
			return avg / ftp, true
		}
	}

	return 0, false
}

func heuristicIntensity(w Workout) float64 {
	if d, ok := w.(intensityDialer); ok {
		if dial := d.IntensityDial(); dial > 0 {
			return DialIntensity(dial)
		}
	}
	return TypeIntensity(w.Sport())
}

func isWorkout(w Workout) bool {
	if c, ok := w.(calendarEntry); ok {
		return c.IsWorkout()
	}
	return true
}
