package strava

import "time"

// Activity is an activity summary from /athlete/activities
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Distance           float64   `json:"distance"`             // meters
	MovingTime         int       `json:"moving_time"`          // seconds
	ElapsedTime        int       `json:"elapsed_time"`         // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"` // meters
	AverageSpeed       float64   `json:"average_speed"`        // m/s
	MaxSpeed           float64   `json:"max_speed"`            // m/s
	AverageHeartrate   float64   `json:"average_heartrate"`
	MaxHeartrate       float64   `json:"max_heartrate"`
	AverageWatts       float64   `json:"average_watts"`
	MaxWatts           float64   `json:"max_watts"`
	DeviceWatts        bool      `json:"device_watts"`
	HasHeartrate       bool      `json:"has_heartrate"`
	Description        string    `json:"description"`
	Manual             bool      `json:"manual"`
}

// Sport returns the most specific sport label Strava gave the activity
func (a Activity) Sport() string {
	if a.SportType != "" {
		return a.SportType
	}
	return a.Type
}

// Lap is a lap from /activities/{id}/laps
type Lap struct {
	LapIndex         int       `json:"lap_index"`
	Name             string    `json:"name"`
	StartDate        time.Time `json:"start_date"`
	StartDateLocal   time.Time `json:"start_date_local"`
	ElapsedTime      int       `json:"elapsed_time"`
	MovingTime       int       `json:"moving_time"`
	Distance         float64   `json:"distance"`
	AverageSpeed     float64   `json:"average_speed"`
	MaxSpeed         float64   `json:"max_speed"`
	AverageHeartrate float64   `json:"average_heartrate"`
	MaxHeartrate     float64   `json:"max_heartrate"`
	AverageCadence   float64   `json:"average_cadence"`
	AverageWatts     float64   `json:"average_watts"`
}

// Streams holds an activity's streams keyed by type (key_by_type=true).
// Strava sends integer streams for heart rate, cadence and watts; they
// decode into float64 all the same.
type Streams struct {
	Time           *StreamData[int]     `json:"time"`
	Heartrate      *StreamData[float64] `json:"heartrate"`
	Watts          *StreamData[float64] `json:"watts"`
	Cadence        *StreamData[float64] `json:"cadence"`
	VelocitySmooth *StreamData[float64] `json:"velocity_smooth"`
	Distance       *StreamData[float64] `json:"distance"`
	Altitude       *StreamData[float64] `json:"altitude"`
}

// StreamKeys are the stream types requested from Strava
const StreamKeys = "time,heartrate,watts,cadence,velocity_smooth,distance,altitude"

// StreamData is a single stream
type StreamData[T any] struct {
	Data         []T    `json:"data"`
	SeriesType   string `json:"series_type"`
	OriginalSize int    `json:"original_size"`
	Resolution   string `json:"resolution"`
}

// At returns the i-th value, or nil when the stream is absent or short
func (s *StreamData[T]) At(i int) *T {
	if s == nil || i >= len(s.Data) {
		return nil
	}
	v := s.Data[i]
	return &v
}

// Len returns the number of samples, which is the length of the time stream
func (s *Streams) Len() int {
	if s == nil || s.Time == nil {
		return 0
	}
	return len(s.Time.Data)
}
