package store

import "time"

// Activity sources
const (
	SourceStrava = "strava"
	SourceImport = "import"
)

// Activity represents a completed workout
type Activity struct {
	ID             string    `db:"id"`
	Source         string    `db:"source"`
	Name           string    `db:"name"`
	Type           string    `db:"type"`
	StartDateLocal time.Time `db:"start_date_local"`
	MovingTime     int       `db:"moving_time"`    // seconds
	Distance       float64   `db:"distance"`       // meters
	ElevationGain  float64   `db:"elevation_gain"` // meters
	AvgHeartrate   *float64  `db:"avg_heartrate"`
	MinHeartrate   *float64  `db:"min_heartrate"`
	MaxHeartrate   *float64  `db:"max_heartrate"`
	AvgPower       *float64  `db:"avg_power"` // watts
	MinPower       *float64  `db:"min_power"`
	MaxPower       *float64  `db:"max_power"`
	TSSOverride    float64   `db:"tss_override"` // 0 = not set
	IF             float64   `db:"if_value"`     // 0 = not set
	StreamID       string    `db:"stream_id"`    // empty when no stream is attached
	Description    string    `db:"description"`
	Feel           int       `db:"feel"`        // 0-5, 0 = not rated
	RPE            int       `db:"rpe"`         // 0-10
	RPETouched     bool      `db:"rpe_touched"` // distinguishes an RPE of 0 from unset
	Comments       []string  `db:"comments_json"`
	Hidden         bool      `db:"hidden"`
	DisplayDate    string    `db:"display_date"` // YYYY-MM-DD override from a pair
	DisplayTitle   string    `db:"display_title"`
}

// Minutes returns the moving time in minutes.
func (a Activity) Minutes() float64 { return float64(a.MovingTime) / 60 }

// Kilometers returns the distance in kilometers.
func (a Activity) Kilometers() float64 { return a.Distance / 1000 }

// ExplicitTSS returns the user supplied TSS, or 0.
func (a Activity) ExplicitTSS() float64 { return positive(a.TSSOverride) }

// ExplicitIF returns the recorded intensity factor, or 0.
func (a Activity) ExplicitIF() float64 { return positive(a.IF) }

// Sport returns the activity type label.
func (a Activity) Sport() string { return a.Type }

// AveragePower returns the average power in watts, or 0 when not recorded.
func (a Activity) AveragePower() float64 {
	if a.AvgPower == nil {
		return 0
	}
	return positive(*a.AvgPower)
}

// DayKey returns the calendar day the activity is shown on
func (a Activity) DayKey() string {
	if a.DisplayDate != "" {
		return a.DisplayDate
	}
	return a.StartDateLocal.Format(DateLayout)
}

// Title returns the display title, falling back to the activity name
func (a Activity) Title() string {
	if a.DisplayTitle != "" {
		return a.DisplayTitle
	}
	return a.Name
}

// DateLayout is the layout of calendar day keys
const DateLayout = "2006-01-02"

// Planned item kinds
const (
	KindWorkout      = "workout"
	KindEvent        = "event"
	KindGoal         = "goal"
	KindNote         = "note"
	KindMetrics      = "metrics"
	KindAvailability = "availability"
)

// PlannedItem is a calendar entry. Only workouts carry planned effort.
type PlannedItem struct {
	ID                   string   `db:"id"`
	Kind                 string   `db:"kind"`
	Date                 string   `db:"date"` // YYYY-MM-DD
	Title                string   `db:"title"`
	WorkoutType          string   `db:"workout_type"`
	DurationMin          float64  `db:"duration_min"`
	DistanceKm           float64  `db:"distance_km"`
	Intensity            float64  `db:"intensity"` // 1-10 dial, 0 = not set
	PlannedTSS           float64  `db:"planned_tss"`
	PlannedIF            float64  `db:"planned_if"`
	CompletedDurationMin float64  `db:"completed_duration_min"`
	CompletedDistanceKm  float64  `db:"completed_distance_km"`
	CompletedTSS         float64  `db:"completed_tss"`
	CompletedIF          float64  `db:"completed_if"`
	Description          string   `db:"description"`
	Feel                 int      `db:"feel"`
	RPE                  int      `db:"rpe"`
	Comments             []string `db:"comments_json"`
}

// Minutes returns the planned duration in minutes.
func (p PlannedItem) Minutes() float64 { return positive(p.DurationMin) }

// Kilometers returns the planned distance.
func (p PlannedItem) Kilometers() float64 { return positive(p.DistanceKm) }

// ExplicitTSS returns the planned TSS, or 0.
func (p PlannedItem) ExplicitTSS() float64 { return positive(p.PlannedTSS) }

// ExplicitIF returns the planned intensity factor, or 0.
func (p PlannedItem) ExplicitIF() float64 { return positive(p.PlannedIF) }

// Sport returns the workout type label.
func (p PlannedItem) Sport() string { return p.WorkoutType }

// IntensityDial returns the 1-10 intensity dial, or 0 when unset.
func (p PlannedItem) IntensityDial() float64 { return positive(p.Intensity) }

// IsWorkout reports whether the item carries training effort.
func (p PlannedItem) IsWorkout() bool { return p.Kind == KindWorkout }

// Shadow returns the completed values recorded directly on the planned item.
// ok is false when none of them is set.
func (p PlannedItem) Shadow() (ShadowCompletion, bool) {
	s := ShadowCompletion{
		DurationMin: positive(p.CompletedDurationMin),
		DistanceKm:  positive(p.CompletedDistanceKm),
		TSS:         positive(p.CompletedTSS),
		IF:          positive(p.CompletedIF),
		WorkoutType: p.WorkoutType,
	}
	if s.DurationMin == 0 && s.DistanceKm == 0 && s.TSS == 0 && s.IF == 0 {
		return ShadowCompletion{}, false
	}
	if s.WorkoutType == "" {
		s.WorkoutType = "Workout"
	}
	return s, true
}

// ShadowCompletion is a completed record synthesized from a planned item
// when no activity is paired with it.
type ShadowCompletion struct {
	DurationMin float64
	DistanceKm  float64
	TSS         float64
	IF          float64
	WorkoutType string
}

func (s ShadowCompletion) Minutes() float64     { return s.DurationMin }
func (s ShadowCompletion) Kilometers() float64  { return s.DistanceKm }
func (s ShadowCompletion) ExplicitTSS() float64 { return s.TSS }
func (s ShadowCompletion) ExplicitIF() float64  { return s.IF }
func (s ShadowCompletion) Sport() string        { return s.WorkoutType }

// Pair links a planned workout to the activity that fulfilled it
type Pair struct {
	ID            string    `db:"id"`
	PlannedID     string    `db:"planned_id"`
	ActivityID    string    `db:"activity_id"`
	OverrideDate  string    `db:"override_date"`
	OverrideTitle string    `db:"override_title"`
	CreatedAt     time.Time `db:"created_at"`
}

// Sample is one time-stamped reading of a telemetry stream
type Sample struct {
	Timestamp time.Time
	HeartRate *float64 // bpm
	Power     *float64 // watts
	Cadence   *float64 // rpm or spm
	Speed     *float64 // m/s
	Distance  *float64 // cumulative meters
	Altitude  *float64 // meters
}

// Lap is a device-recorded segment of a stream
type Lap struct {
	Index           int       `json:"index"`
	Name            string    `json:"name"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end,omitzero"`
	DurationS       float64   `json:"duration_s,omitempty"`
	MovingDurationS float64   `json:"moving_duration_s,omitempty"`
	DistanceM       *float64  `json:"distance_m,omitempty"`
	AvgHR           *float64  `json:"avg_hr,omitempty"`
	MaxHR           *float64  `json:"max_hr,omitempty"`
	AvgPower        *float64  `json:"avg_power,omitempty"`
	MaxPower        *float64  `json:"max_power,omitempty"`
	NormalizedPower *float64  `json:"normalized_power,omitempty"`
	AvgSpeed        *float64  `json:"avg_speed,omitempty"`
	MaxSpeed        *float64  `json:"max_speed,omitempty"`
	AvgCadence      *float64  `json:"avg_cadence,omitempty"`
	MaxCadence      *float64  `json:"max_cadence,omitempty"`
	WorkKJ          *float64  `json:"work_kj,omitempty"`
	Calories        *float64  `json:"calories,omitempty"`
	IF              *float64  `json:"if,omitempty"`
	TSS             *float64  `json:"tss,omitempty"`
}

// Summary holds whole-stream aggregates
type Summary struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationS  float64   `json:"duration_s"`
	DistanceM  float64   `json:"distance_m"`
	AvgHR      *float64  `json:"avg_hr,omitempty"`
	MinHR      *float64  `json:"min_hr,omitempty"`
	MaxHR      *float64  `json:"max_hr,omitempty"`
	AvgPower   *float64  `json:"avg_power,omitempty"`
	MinPower   *float64  `json:"min_power,omitempty"`
	MaxPower   *float64  `json:"max_power,omitempty"`
	AvgSpeed   *float64  `json:"avg_speed,omitempty"`
	MaxSpeed   *float64  `json:"max_speed,omitempty"`
	AvgCadence *float64  `json:"avg_cadence,omitempty"`
	MaxCadence *float64  `json:"max_cadence,omitempty"`
	ElevGainM  *float64  `json:"elev_gain_m,omitempty"`
	Sport      string    `json:"sport,omitempty"`
	SportKey   string    `json:"sport_key,omitempty"`
	FTP        *float64  `json:"ftp,omitempty"`
	IF         *float64  `json:"if,omitempty"`
	TSS        *float64  `json:"tss,omitempty"`
}

// Stream is a recorded sensor stream with its laps and summary.
// Streams are immutable once stored.
type Stream struct {
	ID      string
	Series  []Sample
	Laps    []Lap
	Summary Summary
}

func positive(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}
