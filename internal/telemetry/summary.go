package telemetry

import (
	"math"
	"slices"
	"time"

	"planner/internal/analysis"
	"planner/internal/store"
)

const (
	// Heart rate readings outside this range are treated as sensor noise
	MinValidHeartrate = 30
	MaxValidHeartrate = 230

	// MinMovingSpeed is the speed (m/s) below which a sample counts as stopped
	MinMovingSpeed = 0.5
)

type channelAcc struct {
	sum, min, max float64
	n             int
}

func (a *channelAcc) add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
}

func (a *channelAcc) avg() *float64 {
	if a.n == 0 {
		return nil
	}
	v := a.sum / float64(a.n)
	return &v
}

func (a *channelAcc) minPtr() *float64 {
	if a.n == 0 {
		return nil
	}
	v := a.min
	return &v
}

func (a *channelAcc) maxPtr() *float64 {
	if a.n == 0 {
		return nil
	}
	v := a.max
	return &v
}

type aggregate struct {
	hr, power, speed, cadence channelAcc
	firstDist, lastDist       *float64
	elevGain                  float64
	hasAlt                    bool
	moving                    float64
}

func aggregateSamples(series []store.Sample) aggregate {
	var agg aggregate
	var prevAlt *float64
	for i, smp := range series {
		if hr := smp.HeartRate; hr != nil && validReading(HeartRate, *hr) {
			agg.hr.add(*hr)
		}
		if smp.Power != nil && validReading(Power, *smp.Power) {
			agg.power.add(*smp.Power)
		}
		if smp.Speed != nil && validReading(Speed, *smp.Speed) {
			agg.speed.add(*smp.Speed)
			if i > 0 && *smp.Speed > MinMovingSpeed {
				agg.moving += smp.Timestamp.Sub(series[i-1].Timestamp).Seconds()
			}
		}
		if smp.Cadence != nil && validReading(Cadence, *smp.Cadence) {
			agg.cadence.add(*smp.Cadence)
		}
		if smp.Distance != nil {
			if agg.firstDist == nil {
				agg.firstDist = smp.Distance
			}
			agg.lastDist = smp.Distance
		}
		if smp.Altitude != nil {
			agg.hasAlt = true
			if prevAlt != nil && *smp.Altitude > *prevAlt {
				agg.elevGain += *smp.Altitude - *prevAlt
			}
			prevAlt = smp.Altitude
		}
	}
	return agg
}

func (a aggregate) distance() float64 {
	if a.firstDist == nil || a.lastDist == nil {
		return 0
	}
	return math.Max(0, *a.lastDist-*a.firstDist)
}

// Summarize computes whole-stream aggregates for samples recorded during a
// sport. When ftp is positive and power was recorded, IF and TSS are derived
// from average power. Laps without aggregates are filled in from the
// samples they cover; a stream with no laps gets one spanning everything.
func Summarize(series []store.Sample, laps []store.Lap, sport string, ftp float64) (store.Summary, []store.Lap) {
	sum := store.Summary{Sport: sport, SportKey: analysis.SportKey(sport)}
	if len(series) == 0 {
		return sum, laps
	}

	series = slices.Clone(series)
	slices.SortStableFunc(series, func(a, b store.Sample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	first, last := series[0].Timestamp, series[len(series)-1].Timestamp
	agg := aggregateSamples(series)

	sum.Start = first
	sum.End = last
	sum.DurationS = math.Max(1, last.Sub(first).Seconds())
	sum.DistanceM = agg.distance()
	sum.AvgHR, sum.MinHR, sum.MaxHR = agg.hr.avg(), agg.hr.minPtr(), agg.hr.maxPtr()
	sum.AvgPower, sum.MinPower, sum.MaxPower = agg.power.avg(), agg.power.minPtr(), agg.power.maxPtr()
	sum.AvgSpeed, sum.MaxSpeed = agg.speed.avg(), agg.speed.maxPtr()
	sum.AvgCadence, sum.MaxCadence = agg.cadence.avg(), agg.cadence.maxPtr()
	if agg.hasAlt {
		gain := agg.elevGain
		sum.ElevGainM = &gain
	}

	if ftp > 0 {
		f := ftp
		sum.FTP = &f
		if sum.AvgPower != nil && *sum.AvgPower > 0 {
			intensity := *sum.AvgPower / ftp
			tss := sum.DurationS / 3600 * intensity * intensity * 100
			sum.IF = &intensity
			sum.TSS = &tss
		}
	}

	if len(laps) == 0 {
		laps = []store.Lap{{Start: first, End: last}}
	} else {
		laps = slices.Clone(laps)
	}
	for i := range laps {
		fillLap(&laps[i], i, series, ftp)
	}
	return sum, laps
}

// fillLap sets whichever lap aggregates are missing from the samples
// inside the lap
func fillLap(lap *store.Lap, i int, series []store.Sample, ftp float64) {
	lap.Index = i
	if lap.Name == "" {
		lap.Name = lapName(i)
	}

	end := lap.End
	if end.IsZero() {
		end = series[len(series)-1].Timestamp
	}
	lo, _ := slices.BinarySearchFunc(series, lap.Start, func(s store.Sample, t time.Time) int {
		return s.Timestamp.Compare(t)
	})
	hi := lo
	for hi < len(series) && !series[hi].Timestamp.After(end) {
		hi++
	}
	in := series[lo:hi]
	agg := aggregateSamples(in)

	if lap.DurationS <= 0 {
		lap.DurationS = math.Max(0, end.Sub(lap.Start).Seconds())
	}
	if lap.MovingDurationS <= 0 && agg.moving > 0 {
		lap.MovingDurationS = agg.moving
	}
	if lap.DistanceM == nil && agg.firstDist != nil {
		d := agg.distance()
		lap.DistanceM = &d
	}
	lap.AvgHR = orElse(lap.AvgHR, agg.hr.avg())
	lap.MaxHR = orElse(lap.MaxHR, agg.hr.maxPtr())
	lap.AvgPower = orElse(lap.AvgPower, agg.power.avg())
	lap.MaxPower = orElse(lap.MaxPower, agg.power.maxPtr())
	lap.AvgSpeed = orElse(lap.AvgSpeed, agg.speed.avg())
	lap.MaxSpeed = orElse(lap.MaxSpeed, agg.speed.maxPtr())
	lap.AvgCadence = orElse(lap.AvgCadence, agg.cadence.avg())
	lap.MaxCadence = orElse(lap.MaxCadence, agg.cadence.maxPtr())

	if lap.IF == nil && ftp > 0 && lap.AvgPower != nil && *lap.AvgPower > 0 {
		intensity := *lap.AvgPower / ftp
		lap.IF = &intensity
	}
}

func orElse(v, fallback *float64) *float64 {
	if v != nil {
		return v
	}
	return fallback
}
