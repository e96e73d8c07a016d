package telemetry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/store"
)

var t0 = time.Date(2024, 5, 1, 6, 30, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

// steadySeries returns n samples one second apart with constant power and
// a distance channel advancing 3 m/s
func steadySeries(n int, watts float64) []store.Sample {
	out := make([]store.Sample, n)
	for i := range out {
		out[i] = store.Sample{
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			Power:     ptr(watts),
			HeartRate: ptr(140),
			Distance:  ptr(float64(i) * 3),
		}
	}
	return out
}

func newSession(t *testing.T, stream *store.Stream, opts Options) *Session {
	t.Helper()
	s, err := NewSession(stream, opts)
	require.NoError(t, err)
	return s
}

type fakeLoader struct {
	streams map[string]*store.Stream
	err     error
}

func (f fakeLoader) LoadStream(_ context.Context, id string) (*store.Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.streams[id]
	if !ok {
		return nil, store.ErrStreamNotFound
	}
	return s, nil
}

func TestNewSessionEmpty(t *testing.T) {
	_, err := NewSession(&store.Stream{}, Options{})
	assert.ErrorIs(t, err, ErrNoStreamData)

	_, err = NewSession(nil, Options{})
	assert.ErrorIs(t, err, ErrNoStreamData)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	loader := fakeLoader{streams: map[string]*store.Stream{
		"s1": {ID: "s1", Series: steadySeries(61, 200)},
	}}

	s, err := Open(ctx, loader, "s1", Options{})
	require.NoError(t, err)
	assert.Equal(t, 60.0, s.TotalSeconds())
	assert.Equal(t, DefaultSmoothingStep, s.SmoothingStep())

	_, err = Open(ctx, loader, "", Options{})
	assert.ErrorIs(t, err, ErrNoStreamData)

	_, err = Open(ctx, loader, "missing", Options{})
	assert.ErrorIs(t, err, ErrNoStreamData)
	assert.ErrorIs(t, err, store.ErrStreamNotFound)

	boom := errors.New("disk on fire")
	_, err = Open(ctx, fakeLoader{err: boom}, "s1", Options{})
	assert.ErrorIs(t, err, ErrNoStreamData)
	assert.ErrorIs(t, err, boom)
}

func TestNewSessionSortsSamples(t *testing.T) {
	series := steadySeries(5, 100)
	series[0], series[4] = series[4], series[0]

	s := newSession(t, &store.Stream{Series: series}, Options{})
	pts := s.Points()
	for i := 1; i < len(pts); i++ {
		assert.Less(t, pts[i-1].T, pts[i].T)
	}
	assert.Equal(t, 0.0, pts[0].T)
	// The caller's slice is left alone
	assert.Equal(t, t0.Add(4*time.Second), series[0].Timestamp)
}

func TestSingleSampleHasOneSecondTotal(t *testing.T) {
	s := newSession(t, &store.Stream{Series: steadySeries(1, 100)}, Options{})
	assert.Equal(t, 1.0, s.TotalSeconds())
	assert.Equal(t, Range{Start: 0, End: 1}, s.Window())
}

func TestSmooth(t *testing.T) {
	series := steadySeries(10, 0)
	for i := range series {
		series[i].Power = ptr(float64(i))
	}
	series[3].Power = nil
	s := newSession(t, &store.Stream{Series: series}, Options{})

	t.Run("step one is raw", func(t *testing.T) {
		raw := s.Smooth(Power, 1)
		require.Len(t, raw, 10)
		assert.Nil(t, raw[3])
		assert.Equal(t, 5.0, *raw[5])
	})

	t.Run("step two averages three either side", func(t *testing.T) {
		sm := s.Smooth(Power, 2)
		require.Len(t, sm, 10)
		// i=0 covers 0..3 without the missing 3
		assert.InDelta(t, 1.0, *sm[0], 1e-9)
		// i=5 covers 2..8 without 3
		assert.InDelta(t, (2+4+5+6+7+8)/6.0, *sm[5], 1e-9)
	})

	t.Run("missing channel stays nil", func(t *testing.T) {
		for _, v := range s.Smooth(Cadence, 3) {
			assert.Nil(t, v)
		}
	})

	t.Run("constant series is unchanged", func(t *testing.T) {
		for _, v := range s.Smooth(HeartRate, 4) {
			require.NotNil(t, v)
			assert.InDelta(t, 140.0, *v, 1e-9)
		}
	})
}

func TestSmoothCache(t *testing.T) {
	s := newSession(t, &store.Stream{Series: steadySeries(20, 150)}, Options{})

	a := s.Smoothed(Power)
	b := s.Smoothed(Power)
	assert.Same(t, &a[0], &b[0], "same step should hit the cache")

	s.SetSmoothingStep(3)
	assert.Equal(t, 3, s.SmoothingStep())
	assert.Empty(t, s.cache)

	c := s.Smoothed(Power)
	assert.NotSame(t, &a[0], &c[0])

	s.SetSmoothingStep(0)
	assert.Equal(t, 1, s.SmoothingStep())
}

func TestStatsForRange(t *testing.T) {
	series := steadySeries(101, 200)
	for i := range series {
		series[i].Power = ptr(float64(100 + i))
	}
	stream := &store.Stream{
		Series:  series,
		Summary: store.Summary{DistanceM: 300, TSS: ptr(80)},
	}
	s := newSession(t, stream, Options{})

	stats, ok := s.StatsForRange(0, 100)
	require.True(t, ok)
	assert.Equal(t, 100.0, stats.DurationS)
	assert.Equal(t, 300.0, stats.DistanceM)
	require.NotNil(t, stats.TSS)
	assert.InDelta(t, 80, *stats.TSS, 1e-9)

	power := stats.Channels[Power]
	assert.Equal(t, 100.0, power.Min)
	assert.Equal(t, 200.0, power.Max)
	assert.InDelta(t, 150, power.Mean, 1e-9)
	assert.Equal(t, 101, power.Count)
	_, ok = stats.Channels[Cadence]
	assert.False(t, ok)

	stats, ok = s.StatsForRange(25, 75)
	require.True(t, ok)
	assert.Equal(t, 50.0, stats.DurationS)
	assert.Equal(t, 150.0, stats.DistanceM)
	assert.InDelta(t, 40, *stats.TSS, 1e-9)
	assert.Equal(t, 125.0, stats.Channels[Power].Min)
	assert.Equal(t, 175.0, stats.Channels[Power].Max)

	t.Run("clamped to the stream", func(t *testing.T) {
		stats, ok := s.StatsForRange(-50, 500)
		require.True(t, ok)
		assert.Equal(t, Range{Start: 0, End: 100}, stats.Range)
	})

	t.Run("empty range", func(t *testing.T) {
		_, ok := s.StatsForRange(40, 40)
		assert.False(t, ok)
		_, ok = s.StatsForRange(60, 40)
		assert.False(t, ok)
		_, ok = s.StatsForRange(200, 300)
		assert.False(t, ok)
	})
}

func TestFullRangeStatsMatchSummary(t *testing.T) {
	series := steadySeries(61, 200)
	for i := range series {
		cadence := 90.0
		if i%4 == 0 {
			cadence = 0 // coasting
		}
		series[i].Cadence = ptr(cadence)
	}
	series[10].HeartRate = ptr(0) // strap dropout
	sum, laps := Summarize(series, nil, "Ride", 250)
	s := newSession(t, &store.Stream{Series: series, Laps: laps, Summary: sum}, Options{})

	stats, ok := s.StatsForRange(0, s.TotalSeconds())
	require.True(t, ok)
	assert.InDelta(t, sum.DurationS, stats.DurationS, 1e-9)
	assert.InDelta(t, sum.DistanceM, stats.DistanceM, 1e-9)
	require.NotNil(t, stats.TSS)
	assert.InDelta(t, *sum.TSS, *stats.TSS, 1e-9)

	cadence := stats.Channels[Cadence]
	assert.InDelta(t, *sum.AvgCadence, cadence.Mean, 1e-9)
	assert.Equal(t, *sum.MaxCadence, cadence.Max)
	assert.Equal(t, 90.0, cadence.Min)
	assert.Equal(t, 45, cadence.Count)

	hr := stats.Channels[HeartRate]
	assert.Equal(t, *sum.MinHR, hr.Min)
	assert.Equal(t, *sum.MaxHR, hr.Max)
	assert.InDelta(t, *sum.AvgHR, hr.Mean, 1e-9)
	assert.Equal(t, 60, hr.Count)

	power := stats.Channels[Power]
	assert.InDelta(t, *sum.AvgPower, power.Mean, 1e-9)
	assert.Equal(t, *sum.MinPower, power.Min)
	assert.Equal(t, *sum.MaxPower, power.Max)
}

func TestNonFiniteRanges(t *testing.T) {
	s := newSession(t, &store.Stream{Series: steadySeries(61, 200)}, Options{})

	_, ok := s.StatsForRange(math.NaN(), 50)
	assert.False(t, ok)
	_, ok = s.StatsForRange(0, math.NaN())
	assert.False(t, ok)
	_, ok = s.StatsForRange(0, math.Inf(1))
	assert.False(t, ok)

	assert.False(t, s.ZoomIn(Range{Start: math.NaN(), End: 50}))
	assert.False(t, s.ZoomIn(Range{Start: 10, End: math.Inf(1)}))
	assert.False(t, s.IsZoomed())
	assert.Equal(t, Range{Start: 0, End: 60}, s.Window())

	s.BeginSelection(math.NaN())
	_, ok = s.Selection()
	assert.False(t, ok)

	s.BeginSelection(10)
	s.UpdateSelection(math.NaN())
	s.UpdateSelection(30)
	require.True(t, s.CommitSelection())
	sel, _ := s.Selection()
	assert.Equal(t, Range{Start: 10, End: 30}, sel)
}

func TestStatsForRangeDistanceFallback(t *testing.T) {
	series := steadySeries(11, 200)
	for i := range series {
		series[i].Distance = nil
	}
	series[5].Distance = ptr(999)
	s := newSession(t, &store.Stream{Series: series, Summary: store.Summary{DistanceM: 1000}}, Options{})

	stats, ok := s.StatsForRange(0, 5)
	require.True(t, ok)
	assert.InDelta(t, 500, stats.DistanceM, 1e-9)
}

func TestStatsForRangeTSS(t *testing.T) {
	series := steadySeries(11, 200)

	s := newSession(t, &store.Stream{Series: series}, Options{})
	stats, _ := s.StatsForRange(0, 10)
	assert.Nil(t, stats.TSS, "no summary TSS and no fallback")

	s = newSession(t, &store.Stream{Series: series}, Options{FallbackTSS: 60})
	stats, _ = s.StatsForRange(0, 5)
	require.NotNil(t, stats.TSS)
	assert.InDelta(t, 30, *stats.TSS, 1e-9)

	s = newSession(t, &store.Stream{Series: series, Summary: store.Summary{TSS: ptr(20)}}, Options{FallbackTSS: 60})
	stats, _ = s.StatsForRange(0, 10)
	assert.InDelta(t, 20, *stats.TSS, 1e-9)
}

func TestSelection(t *testing.T) {
	s := newSession(t, &store.Stream{Series: steadySeries(101, 200)}, Options{})
	assert.Equal(t, "Entire Workout", s.Title())

	s.BeginSelection(60)
	assert.True(t, s.Dragging())
	s.UpdateSelection(20)
	sel, ok := s.Selection()
	require.True(t, ok)
	assert.Equal(t, Range{Start: 20, End: 60}, sel)

	assert.True(t, s.CommitSelection())
	assert.False(t, s.Dragging())
	assert.Equal(t, "Selection", s.Title())
	assert.Equal(t, Range{Start: 20, End: 60}, s.ActiveRange())

	// Updates after the drag ends are ignored
	s.UpdateSelection(90)
	sel, _ = s.Selection()
	assert.Equal(t, 60.0, sel.End)

	s.ClearSelection()
	_, ok = s.Selection()
	assert.False(t, ok)
	assert.Equal(t, s.Window(), s.ActiveRange())

	t.Run("tiny selection is discarded", func(t *testing.T) {
		s.BeginSelection(10)
		s.UpdateSelection(11)
		assert.False(t, s.CommitSelection())
		_, ok := s.Selection()
		assert.False(t, ok)
	})

	t.Run("selection is clamped to the window", func(t *testing.T) {
		s.BeginSelection(-20)
		s.UpdateSelection(400)
		s.CommitSelection()
		sel, _ := s.Selection()
		assert.Equal(t, Range{Start: 0, End: 100}, sel)
	})
}

func TestZoom(t *testing.T) {
	s := newSession(t, &store.Stream{Series: steadySeries(101, 200)}, Options{})

	assert.True(t, s.ZoomIn(Range{Start: 80, End: 20}))
	assert.Equal(t, Range{Start: 20, End: 80}, s.Window())
	assert.True(t, s.IsZoomed())
	assert.Equal(t, "Zoomed Range", s.Title())

	// Clamped to the current window
	assert.True(t, s.ZoomIn(Range{Start: 0, End: 40}))
	assert.Equal(t, Range{Start: 20, End: 40}, s.Window())

	assert.False(t, s.ZoomIn(Range{Start: 30, End: 30.5}))
	assert.Equal(t, Range{Start: 20, End: 40}, s.Window())

	s.ZoomOut()
	assert.Equal(t, Range{Start: 20, End: 80}, s.Window())
	s.ZoomOut()
	assert.Equal(t, Range{Start: 0, End: 100}, s.Window())
	assert.False(t, s.IsZoomed())

	// Zooming out at the top level is a reset
	s.ZoomOut()
	assert.Equal(t, Range{Start: 0, End: 100}, s.Window())
}

func TestZoomToSelection(t *testing.T) {
	s := newSession(t, &store.Stream{Series: steadySeries(101, 200)}, Options{})

	assert.False(t, s.ZoomToSelection())
	assert.False(t, s.IsZoomed())

	s.BeginSelection(10)
	s.UpdateSelection(50)
	s.CommitSelection()
	assert.True(t, s.ZoomToSelection())
	assert.Equal(t, Range{Start: 10, End: 50}, s.Window())
	_, ok := s.Selection()
	assert.False(t, ok, "zooming consumes the selection")

	s.BeginSelection(20)
	s.UpdateSelection(30)
	s.CommitSelection()
	assert.True(t, s.ZoomToSelection())
	assert.Equal(t, Range{Start: 20, End: 30}, s.Window())

	// Without a selection a zoomed session resets fully
	assert.False(t, s.ZoomToSelection())
	assert.Equal(t, Range{Start: 0, End: 100}, s.Window())
	assert.False(t, s.IsZoomed())
}

func TestNearestSample(t *testing.T) {
	series := []store.Sample{
		{Timestamp: t0},
		{Timestamp: t0.Add(2 * time.Second)},
		{Timestamp: t0.Add(4 * time.Second)},
	}
	s := newSession(t, &store.Stream{Series: series}, Options{})

	tests := []struct {
		t    float64
		want int
	}{
		{-5, 0},
		{0.9, 0},
		{1, 0}, // tie goes to the earlier sample
		{1.1, 1},
		{3, 1},
		{3.5, 2},
		{100, 2},
	}
	for _, tt := range tests {
		i, p := s.NearestSample(tt.t)
		assert.Equal(t, tt.want, i, "t=%v", tt.t)
		assert.Equal(t, float64(2*tt.want), p.T)
	}
}

func TestVisiblePoints(t *testing.T) {
	s := newSession(t, &store.Stream{Series: steadySeries(101, 200)}, Options{})

	lo, hi := s.VisiblePoints()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 101, hi)

	require.True(t, s.ZoomIn(Range{Start: 10.5, End: 20}))
	lo, hi = s.VisiblePoints()
	assert.Equal(t, 11, lo)
	assert.Equal(t, 21, hi)
}

func TestLapsSynthesized(t *testing.T) {
	stream := &store.Stream{
		Series:  steadySeries(61, 200),
		Summary: store.Summary{DistanceM: 180, AvgPower: ptr(200), TSS: ptr(12)},
	}
	s := newSession(t, stream, Options{})

	laps := s.Laps()
	require.Len(t, laps, 1)
	lap := laps[0]
	assert.Equal(t, "Lap 1", lap.Name)
	assert.Equal(t, 0.0, lap.StartSec)
	assert.Equal(t, 60.0, lap.EndSec)
	assert.Equal(t, 60.0, lap.DurationS)
	require.NotNil(t, lap.DistanceM)
	assert.Equal(t, 180.0, *lap.DistanceM)
	require.NotNil(t, lap.TSS)
	assert.Equal(t, 12.0, *lap.TSS)
}

func TestLapsFromStream(t *testing.T) {
	stream := &store.Stream{
		Series: steadySeries(3601, 200),
		Laps: []store.Lap{
			{Name: "Warmup", Start: t0, End: t0.Add(10 * time.Minute), TSS: ptr(9)},
			{Start: t0.Add(10 * time.Minute), End: t0.Add(40 * time.Minute), IF: ptr(0.9)},
			{Start: t0.Add(40 * time.Minute), DurationS: 900},
			{Start: t0.Add(-time.Minute), End: t0.Add(-30 * time.Second)},
		},
	}
	s := newSession(t, stream, Options{})

	laps := s.Laps()
	require.Len(t, laps, 4)

	assert.Equal(t, "Warmup", laps[0].Name)
	assert.Equal(t, 600.0, laps[0].DurationS)
	assert.Equal(t, 9.0, *laps[0].TSS)

	assert.Equal(t, "Lap 2", laps[1].Name)
	assert.Equal(t, 600.0, laps[1].StartSec)
	assert.Equal(t, 2400.0, laps[1].EndSec)
	require.NotNil(t, laps[1].TSS)
	assert.InDelta(t, 0.5*0.81*100, *laps[1].TSS, 1e-9)

	// Open-ended laps run to the end of the stream
	assert.Equal(t, 3600.0, laps[2].EndSec)
	assert.Equal(t, 900.0, laps[2].DurationS)
	assert.Nil(t, laps[2].TSS)

	// Laps before the first sample are pinned to the start
	assert.Equal(t, 0.0, laps[3].StartSec)
	assert.Equal(t, 1.0, laps[3].EndSec)

	_, ok := s.LapStats(4)
	assert.False(t, ok)
	_, ok = s.LapStats(-1)
	assert.False(t, ok)
}

func TestSelectLap(t *testing.T) {
	stream := &store.Stream{
		Series: steadySeries(121, 200),
		Laps: []store.Lap{
			{Start: t0, End: t0.Add(time.Minute)},
			{Start: t0.Add(time.Minute), End: t0.Add(2 * time.Minute)},
		},
	}
	s := newSession(t, stream, Options{})

	require.True(t, s.SelectLap(1))
	sel, ok := s.Selection()
	require.True(t, ok)
	assert.Equal(t, Range{Start: 60, End: 120}, sel)

	stats, ok := s.ActiveStats()
	require.True(t, ok)
	assert.InDelta(t, 180, stats.DistanceM, 1e-9)
	assert.True(t, s.ZoomToSelection())
	assert.Equal(t, Range{Start: 60, End: 120}, s.Window())

	assert.False(t, s.SelectLap(7))
}

func TestPointValue(t *testing.T) {
	p := Point{Sample: store.Sample{Speed: ptr(4.2), Altitude: ptr(12)}}
	assert.Equal(t, 4.2, *p.Value(Speed))
	assert.Equal(t, 12.0, *p.Value(Altitude))
	assert.Nil(t, p.Value(HeartRate))
	assert.Nil(t, p.Value(Channel("temperature")))
	assert.Equal(t, 2.0, Range{Start: 1, End: 3}.Span())
}
