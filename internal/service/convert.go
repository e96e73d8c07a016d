package service

import (
	"strconv"
	"time"

	"planner/internal/store"
	"planner/internal/strava"
)

// convertActivity converts a Strava activity summary to a store activity
func convertActivity(a strava.Activity) *store.Activity {
	activity := &store.Activity{
		ID:             strconv.FormatInt(a.ID, 10),
		Source:         store.SourceStrava,
		Name:           a.Name,
		Type:           a.Sport(),
		StartDateLocal: a.StartDateLocal,
		MovingTime:     a.MovingTime,
		Distance:       a.Distance,
		ElevationGain:  a.TotalElevationGain,
		Description:    a.Description,
		AvgHeartrate:   positivePtr(a.AverageHeartrate),
		MaxHeartrate:   positivePtr(a.MaxHeartrate),
		AvgPower:       positivePtr(a.AverageWatts),
		MaxPower:       positivePtr(a.MaxWatts),
	}
	return activity
}

// convertStreams converts Strava's parallel streams to samples. Strava
// reports time as seconds from the activity start.
func convertStreams(start time.Time, s *strava.Streams) []store.Sample {
	n := s.Len()
	if n == 0 {
		return nil
	}

	samples := make([]store.Sample, n)
	for i := range n {
		samples[i] = store.Sample{
			Timestamp: start.Add(time.Duration(s.Time.Data[i]) * time.Second),
			HeartRate: s.Heartrate.At(i),
			Power:     s.Watts.At(i),
			Cadence:   s.Cadence.At(i),
			Speed:     s.VelocitySmooth.At(i),
			Distance:  s.Distance.At(i),
			Altitude:  s.Altitude.At(i),
		}
	}
	return samples
}

// convertLaps converts Strava laps onto the stream's clock, which starts at
// the activity's local start time
func convertLaps(start time.Time, laps []strava.Lap) []store.Lap {
	out := make([]store.Lap, 0, len(laps))
	for i, l := range laps {
		lapStart := start
		if !l.StartDateLocal.IsZero() && l.StartDateLocal.After(start) {
			lapStart = l.StartDateLocal
		}
		out = append(out, store.Lap{
			Index:           i,
			Name:            l.Name,
			Start:           lapStart,
			End:             lapStart.Add(time.Duration(l.ElapsedTime) * time.Second),
			DurationS:       float64(l.ElapsedTime),
			MovingDurationS: float64(l.MovingTime),
			DistanceM:       positivePtr(l.Distance),
			AvgHR:           positivePtr(l.AverageHeartrate),
			MaxHR:           positivePtr(l.MaxHeartrate),
			AvgPower:        positivePtr(l.AverageWatts),
			AvgSpeed:        positivePtr(l.AverageSpeed),
			MaxSpeed:        positivePtr(l.MaxSpeed),
			AvgCadence:      positivePtr(l.AverageCadence),
		})
	}
	return out
}

func positivePtr(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

// weekStart returns the Monday of the week containing t, at midnight UTC
func weekStart(t time.Time) time.Time {
	daysFromMonday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	monday := t.AddDate(0, 0, -daysFromMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}
