package analysis

import (
	"math"
	"testing"

	"planner/internal/store"
)

func floatPtr(f float64) *float64 {
	return &f
}

// ftpTable is a fixed FTP lookup keyed by sport key
type ftpTable map[string]float64

func (f ftpTable) FTPFor(sportKey string) float64 { return f[sportKey] }

func TestSportKey(t *testing.T) {
	tests := []struct {
		sport string
		want  string
	}{
		{"Ride", "ride"},
		{"VirtualRide", "ride"},
		{"Mtn Bike", "ride"},
		{"cycling", "ride"},
		{"Run", "run"},
		{"TrailRun", "run"},
		{"Walk", "run"},
		{"Swim", "swim"},
		{"Rowing", "row"},
		{"Strength", "strength"},
		{"WeightTraining", "strength"},
		{"Brick", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		if got := SportKey(tt.sport); got != tt.want {
			t.Errorf("SportKey(%q) = %q, want %q", tt.sport, got, tt.want)
		}
	}
}

func TestTypeIntensity(t *testing.T) {
	if got := TypeIntensity("Run"); got != 0.85 {
		t.Errorf("TypeIntensity(Run) = %v, want 0.85", got)
	}
	if got := TypeIntensity("Kitesurf"); got != DefaultIntensity {
		t.Errorf("TypeIntensity(unknown) = %v, want %v", got, DefaultIntensity)
	}
}

func TestDialIntensity(t *testing.T) {
	tests := []struct {
		dial float64
		want float64
	}{
		{1, 0.5},
		{5, 0.9},
		{10, 1.4},
		{15, 1.4}, // capped at 10
	}

	for _, tt := range tests {
		if got := DialIntensity(tt.dial); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DialIntensity(%v) = %v, want %v", tt.dial, got, tt.want)
		}
	}
}

func TestTSSFor(t *testing.T) {
	e := NewEstimator(ftpTable{"ride": 250})

	tests := []struct {
		name     string
		workout  Workout
		expected float64
	}{
		{
			name:     "run heuristic",
			workout:  store.Activity{Type: "Run", MovingTime: 3600},
			expected: 72.25, // 1h × 0.85² × 100
		},
		{
			name:     "explicit override wins",
			workout:  store.Activity{Type: "Run", MovingTime: 3600, TSSOverride: 55, IF: 0.9},
			expected: 55,
		},
		{
			name:     "explicit IF",
			workout:  store.Activity{Type: "Run", MovingTime: 3600, IF: 0.8},
			expected: 64,
		},
		{
			name:     "IF from power and FTP",
			workout:  store.Activity{Type: "Ride", MovingTime: 5400, AvgPower: floatPtr(200)},
			expected: 96, // 1.5h × 0.8² × 100
		},
		{
			name:     "power without FTP for sport falls back to heuristic",
			workout:  store.Activity{Type: "Run", MovingTime: 3600, AvgPower: floatPtr(250)},
			expected: 72.25,
		},
		{
			name:     "zero duration",
			workout:  store.Activity{Type: "Run"},
			expected: 0,
		},
		{
			name:     "planned TSS",
			workout:  store.PlannedItem{Kind: store.KindWorkout, WorkoutType: "Run", DurationMin: 60, PlannedTSS: 90},
			expected: 90,
		},
		{
			name:     "planned IF",
			workout:  store.PlannedItem{Kind: store.KindWorkout, WorkoutType: "Run", DurationMin: 120, PlannedIF: 0.75},
			expected: 112.5,
		},
		{
			name:     "planned intensity dial",
			workout:  store.PlannedItem{Kind: store.KindWorkout, WorkoutType: "Swim", DurationMin: 60, Intensity: 5},
			expected: 81, // 0.9² × 100
		},
		{
			name:     "planned type table",
			workout:  store.PlannedItem{Kind: store.KindWorkout, WorkoutType: "Day Off", DurationMin: 60},
			expected: 4,
		},
		{
			name:     "non-workout entry",
			workout:  store.PlannedItem{Kind: store.KindNote, DurationMin: 60, PlannedTSS: 40},
			expected: 0,
		},
		{
			name:     "shadow completion with TSS",
			workout:  store.ShadowCompletion{DurationMin: 30, TSS: 50, WorkoutType: "Workout"},
			expected: 50,
		},
		{
			name:     "shadow completion heuristic",
			workout:  store.ShadowCompletion{DurationMin: 30, WorkoutType: "Workout"},
			expected: 32, // 0.5h × 0.8² × 100
		},
		{
			name:     "nil workout",
			workout:  nil,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.TSSFor(tt.workout)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("TSSFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIFFor(t *testing.T) {
	e := NewEstimator(ftpTable{"run": 300, "ride": 250})

	tests := []struct {
		name     string
		workout  Workout
		expected float64
		ok       bool
	}{
		{
			name:     "explicit",
			workout:  store.Activity{Type: "Run", MovingTime: 3600, IF: 0.92},
			expected: 0.92,
			ok:       true,
		},
		{
			name:     "derived from TSS",
			workout:  store.Activity{Type: "Run", MovingTime: 3600, TSSOverride: 100},
			expected: 1.0,
			ok:       true,
		},
		{
			name:     "derived from TSS over two hours",
			workout:  store.Activity{Type: "Ride", MovingTime: 7200, TSSOverride: 50},
			expected: 0.5,
			ok:       true,
		},
		{
			name:     "power over run FTP",
			workout:  store.Activity{Type: "Run", MovingTime: 1800, AvgPower: floatPtr(240)},
			expected: 0.8,
			ok:       true,
		},
		{
			name:    "TSS without duration is not enough",
			workout: store.Activity{Type: "Swim", TSSOverride: 40},
		},
		{
			name:    "planned item never uses power",
			workout: store.PlannedItem{Kind: store.KindWorkout, WorkoutType: "Ride", DurationMin: 60},
		},
		{
			name:     "planned TSS and duration",
			workout:  store.PlannedItem{Kind: store.KindWorkout, WorkoutType: "Ride", DurationMin: 60, PlannedTSS: 64},
			expected: 0.8,
			ok:       true,
		},
		{
			name:    "non-workout entry",
			workout: store.PlannedItem{Kind: store.KindEvent, PlannedIF: 0.9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.IFFor(tt.workout)
			if ok != tt.ok {
				t.Fatalf("IFFor() ok = %v, want %v", ok, tt.ok)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("IFFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIFForWithoutFTP(t *testing.T) {
	e := NewEstimator(nil)
	if _, ok := e.IFFor(store.Activity{Type: "Ride", MovingTime: 3600, AvgPower: floatPtr(200)}); ok {
		t.Error("IFFor() without FTP lookup should be unknown")
	}
}

func TestTSSNeverNegative(t *testing.T) {
	e := NewEstimator(ftpTable{"ride": 250})
	workouts := []Workout{
		store.Activity{Type: "Ride", MovingTime: -600, TSSOverride: -20, IF: -1},
		store.PlannedItem{Kind: store.KindWorkout, DurationMin: -30, Intensity: -4},
		store.ShadowCompletion{DurationMin: -5},
	}

	for _, w := range workouts {
		if got := e.TSSFor(w); got < 0 {
			t.Errorf("TSSFor(%+v) = %v, want >= 0", w, got)
		}
		if got, _ := e.IFFor(w); got < 0 {
			t.Errorf("IFFor(%+v) = %v, want >= 0", w, got)
		}
	}
}

func TestTSSMonotonicInDuration(t *testing.T) {
	e := NewEstimator(nil)
	types := []string{"Run", "Bike", "Day Off", "Unknown"}

	for _, typ := range types {
		prev := -1.0
		for minutes := 0; minutes <= 300; minutes += 15 {
			got := e.TSSFor(store.PlannedItem{Kind: store.KindWorkout, WorkoutType: typ, DurationMin: float64(minutes)})
			if got < prev {
				t.Errorf("%s: TSS decreased from %v to %v at %d min", typ, prev, got, minutes)
			}
			prev = got
		}
	}
}
