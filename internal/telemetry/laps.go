package telemetry

import (
	"fmt"
	"math"

	"planner/internal/store"
)

// LapStats describes one lap positioned on the session's time axis
type LapStats struct {
	Index     int
	Name      string
	StartSec  float64
	EndSec    float64
	DurationS float64
	DistanceM *float64
	AvgHR     *float64
	MaxHR     *float64
	AvgPower  *float64
	MaxPower  *float64
	AvgSpeed  *float64
	AvgCad    *float64
	IF        *float64
	TSS       *float64
}

// Range returns the lap's span on the session's time axis
func (l LapStats) Range() Range { return Range{Start: l.StartSec, End: l.EndSec} }

// Laps returns per-lap stats. A stream without recorded laps yields one
// lap spanning the whole workout.
func (s *Session) Laps() []LapStats {
	if len(s.stream.Laps) == 0 {
		return []LapStats{s.wholeWorkoutLap()}
	}
	out := make([]LapStats, len(s.stream.Laps))
	for i := range s.stream.Laps {
		out[i] = s.lapStats(i, s.stream.Laps[i])
	}
	return out
}

// LapStats returns the stats of lap i, and false when i is out of range
func (s *Session) LapStats(i int) (LapStats, bool) {
	laps := s.Laps()
	if i < 0 || i >= len(laps) {
		return LapStats{}, false
	}
	return laps[i], true
}

// SelectLap selects lap i so its range drives the stats
func (s *Session) SelectLap(i int) bool {
	lap, ok := s.LapStats(i)
	if !ok {
		return false
	}
	s.dragging = false
	r := lap.Range()
	s.selection = &r
	return true
}

func (s *Session) lapStats(i int, lap store.Lap) LapStats {
	start := math.Max(0, lap.Start.Sub(s.base).Seconds())
	end := s.total
	if !lap.End.IsZero() {
		end = lap.End.Sub(s.base).Seconds()
	}
	end = math.Max(start+1, end)

	dur := lap.DurationS
	if dur <= 0 {
		dur = end - start
	}

	name := lap.Name
	if name == "" {
		name = lapName(i)
	}

	out := LapStats{
		Index:     i,
		Name:      name,
		StartSec:  start,
		EndSec:    end,
		DurationS: dur,
		DistanceM: lap.DistanceM,
		AvgHR:     lap.AvgHR,
		MaxHR:     lap.MaxHR,
		AvgPower:  lap.AvgPower,
		MaxPower:  lap.MaxPower,
		AvgSpeed:  lap.AvgSpeed,
		AvgCad:    lap.AvgCadence,
		IF:        lap.IF,
	}

	switch {
	case lap.TSS != nil && *lap.TSS > 0:
		out.TSS = lap.TSS
	case lap.IF != nil && *lap.IF > 0:
		tss := dur / 3600 * *lap.IF * *lap.IF * 100
		out.TSS = &tss
	}
	return out
}

func (s *Session) wholeWorkoutLap() LapStats {
	sum := s.stream.Summary
	out := LapStats{
		Name:      lapName(0),
		StartSec:  0,
		EndSec:    s.total,
		DurationS: s.total,
		AvgHR:     sum.AvgHR,
		MaxHR:     sum.MaxHR,
		AvgPower:  sum.AvgPower,
		MaxPower:  sum.MaxPower,
		AvgSpeed:  sum.AvgSpeed,
		AvgCad:    sum.AvgCadence,
		IF:        sum.IF,
	}
	if sum.DistanceM > 0 {
		d := sum.DistanceM
		out.DistanceM = &d
	}
	if s.totalTSS > 0 {
		tss := s.totalTSS
		out.TSS = &tss
	}
	return out
}

func lapName(i int) string { return fmt.Sprintf("Lap %d", i+1) }
