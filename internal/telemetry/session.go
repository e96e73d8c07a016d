package telemetry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"planner/internal/store"
)

// ErrNoStreamData is returned when a stream can't be loaded or holds no samples
var ErrNoStreamData = errors.New("no stream data")

// DefaultSmoothingStep is the smoothing step a new session starts with
const DefaultSmoothingStep = 2

// Channel names a per-sample sensor value
type Channel string

const (
	HeartRate Channel = "heart_rate"
	Power     Channel = "power"
	Cadence   Channel = "cadence"
	Speed     Channel = "speed"
	Distance  Channel = "distance"
	Altitude  Channel = "altitude"
)

// Channels lists every channel in display order
var Channels = []Channel{HeartRate, Power, Cadence, Speed, Distance, Altitude}

// Point is a sample positioned at T seconds from the first sample
type Point struct {
	T      float64
	Sample store.Sample
}

// Value returns the reading for ch, or nil when the sample lacks it
func (p Point) Value(ch Channel) *float64 {
	switch ch {
	case HeartRate:
		return p.Sample.HeartRate
	case Power:
		return p.Sample.Power
	case Cadence:
		return p.Sample.Cadence
	case Speed:
		return p.Sample.Speed
	case Distance:
		return p.Sample.Distance
	case Altitude:
		return p.Sample.Altitude
	}
	return nil
}

// Reading returns the value for ch when it is a usable sensor reading
func (p Point) Reading(ch Channel) *float64 {
	v := p.Value(ch)
	if v == nil || !validReading(ch, *v) {
		return nil
	}
	return v
}

// validReading reports whether v is a usable reading for ch. Heart rate
// outside the sensor range and zero cadence are dropouts.
func validReading(ch Channel, v float64) bool {
	if !finite(v) {
		return false
	}
	switch ch {
	case HeartRate:
		return v > MinValidHeartrate && v < MaxValidHeartrate
	case Power, Speed:
		return v >= 0
	case Cadence:
		return v > 0
	}
	return true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Range is a time span in seconds from the start of the stream
type Range struct {
	Start float64
	End   float64
}

// Span returns the length of the range
func (r Range) Span() float64 { return r.End - r.Start }

// finite reports whether both bounds are real numbers
func (r Range) finite() bool { return finite(r.Start) && finite(r.End) }

func normRange(a, b float64) Range {
	return Range{Start: math.Min(a, b), End: math.Max(a, b)}
}

func (r Range) clamp(to Range) Range {
	return Range{
		Start: math.Max(to.Start, math.Min(to.End, r.Start)),
		End:   math.Max(to.Start, math.Min(to.End, r.End)),
	}
}

// Options configure a session
type Options struct {
	// FallbackTSS is the workout TSS used when the stream summary has none
	FallbackTSS float64
	// SmoothingStep overrides DefaultSmoothingStep when positive
	SmoothingStep int
}

// StreamLoader fetches telemetry streams by ID
type StreamLoader interface {
	LoadStream(ctx context.Context, id string) (*store.Stream, error)
}

type smoothKey struct {
	ch   Channel
	step int
}

// Session is the interactive analysis state over one stream: the visible
// window, a zoom stack, an in-progress selection and a smoothing cache.
// A Session is not safe for concurrent use.
type Session struct {
	stream   *store.Stream
	base     time.Time
	points   []Point
	total    float64
	totalTSS float64

	window    Range
	zoomStack []Range

	selection *Range
	dragging  bool
	anchor    float64

	step  int
	cache map[smoothKey][]*float64
}

// Open loads a stream and starts a session over it. Every failure,
// including an empty stream, is reported as ErrNoStreamData.
func Open(ctx context.Context, loader StreamLoader, streamID string, opts Options) (*Session, error) {
	if streamID == "" {
		return nil, ErrNoStreamData
	}
	stream, err := loader.LoadStream(ctx, streamID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoStreamData, err)
	}
	return NewSession(stream, opts)
}

// NewSession starts a session over an already loaded stream
func NewSession(stream *store.Stream, opts Options) (*Session, error) {
	if stream == nil || len(stream.Series) == 0 {
		return nil, ErrNoStreamData
	}

	series := slices.Clone(stream.Series)
	slices.SortStableFunc(series, func(a, b store.Sample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	base := series[0].Timestamp
	points := make([]Point, len(series))
	for i, smp := range series {
		points[i] = Point{T: smp.Timestamp.Sub(base).Seconds(), Sample: smp}
	}
	total := math.Max(1, points[len(points)-1].T)

	totalTSS := opts.FallbackTSS
	if stream.Summary.TSS != nil && *stream.Summary.TSS > 0 {
		totalTSS = *stream.Summary.TSS
	}

	step := DefaultSmoothingStep
	if opts.SmoothingStep > 0 {
		step = opts.SmoothingStep
	}

	return &Session{
		stream:   stream,
		base:     base,
		points:   points,
		total:    total,
		totalTSS: math.Max(0, totalTSS),
		window:   Range{Start: 0, End: total},
		step:     step,
		cache:    make(map[smoothKey][]*float64),
	}, nil
}

// Points returns the samples in time order
func (s *Session) Points() []Point { return s.points }

// TotalSeconds returns the stream length, at least one second
func (s *Session) TotalSeconds() float64 { return s.total }

// Summary returns the stream's whole-workout aggregates
func (s *Session) Summary() store.Summary { return s.stream.Summary }

// Window returns the visible time range
func (s *Session) Window() Range { return s.window }

// IsZoomed reports whether the window is narrower than the whole stream
func (s *Session) IsZoomed() bool { return len(s.zoomStack) > 0 }

// Title describes what the current stats cover
func (s *Session) Title() string {
	if s.selection != nil {
		return "Selection"
	}
	if s.IsZoomed() {
		return "Zoomed Range"
	}
	return "Entire Workout"
}

// ActiveRange returns the selection when there is one, otherwise the window
func (s *Session) ActiveRange() Range {
	if s.selection != nil {
		return *s.selection
	}
	return s.window
}

// SmoothingStep returns the current smoothing step
func (s *Session) SmoothingStep() int { return s.step }

// SetSmoothingStep changes the smoothing step. Cached series are dropped
// when the step changes.
func (s *Session) SetSmoothingStep(step int) {
	step = max(1, step)
	if step == s.step {
		return
	}
	s.step = step
	clear(s.cache)
}

// Smoothed returns ch smoothed with the session's current step
func (s *Session) Smoothed(ch Channel) []*float64 {
	return s.Smooth(ch, s.step)
}

// Smooth returns a centered moving average of ch, one value per sample.
// Steps of 1 or less return the raw readings. Otherwise each value is the
// mean of the present readings within step²-1 samples either side, or nil
// when there are none. Results are memoized per channel and step.
func (s *Session) Smooth(ch Channel, step int) []*float64 {
	step = max(1, step)
	key := smoothKey{ch: ch, step: step}
	if out, ok := s.cache[key]; ok {
		return out
	}

	out := make([]*float64, len(s.points))
	if step <= 1 {
		for i, p := range s.points {
			out[i] = p.Value(ch)
		}
		s.cache[key] = out
		return out
	}

	half := max(1, step*step-1)
	for i := range s.points {
		lo := max(0, i-half)
		hi := min(len(s.points)-1, i+half)
		var sum float64
		var n int
		for j := lo; j <= hi; j++ {
			if v := s.points[j].Value(ch); v != nil {
				sum += *v
				n++
			}
		}
		if n > 0 {
			mean := sum / float64(n)
			out[i] = &mean
		}
	}
	s.cache[key] = out
	return out
}

// ChannelStats are the min, mean and max of a channel's present readings
type ChannelStats struct {
	Min   float64
	Mean  float64
	Max   float64
	Count int
}

// RangeStats summarizes the samples inside a time range
type RangeStats struct {
	Range     Range
	DurationS float64
	DistanceM float64
	TSS       *float64 // nil when the workout TSS is unknown
	Channels  map[Channel]ChannelStats
}

// StatsForRange summarizes the samples with start <= t <= end. The range
// is clamped to the stream; ok is false when nothing remains or a bound
// is not a finite number.
func (s *Session) StatsForRange(start, end float64) (RangeStats, bool) {
	r := Range{Start: start, End: end}
	if !r.finite() {
		return RangeStats{}, false
	}
	r = r.clamp(Range{Start: 0, End: s.total})
	if r.End <= r.Start {
		return RangeStats{}, false
	}

	frac := r.Span() / s.total
	stats := RangeStats{
		Range:     r,
		DurationS: r.Span(),
		Channels:  make(map[Channel]ChannelStats),
	}

	var firstDist, lastDist *float64
	var distCount int
	acc := make(map[Channel]*ChannelStats)
	for _, p := range s.points {
		if p.T < r.Start || p.T > r.End {
			continue
		}
		for _, ch := range Channels {
			v := p.Reading(ch)
			if v == nil {
				continue
			}
			c, ok := acc[ch]
			if !ok {
				c = &ChannelStats{Min: *v, Max: *v}
				acc[ch] = c
			}
			c.Min = math.Min(c.Min, *v)
			c.Max = math.Max(c.Max, *v)
			c.Mean += *v
			c.Count++
		}
		if p.Sample.Distance != nil {
			if firstDist == nil {
				firstDist = p.Sample.Distance
			}
			lastDist = p.Sample.Distance
			distCount++
		}
	}
	for ch, c := range acc {
		c.Mean /= float64(c.Count)
		stats.Channels[ch] = *c
	}

	if distCount >= 2 {
		stats.DistanceM = math.Max(0, *lastDist-*firstDist)
	} else {
		stats.DistanceM = s.stream.Summary.DistanceM * frac
	}

	if s.totalTSS > 0 {
		tss := s.totalTSS * frac
		stats.TSS = &tss
	}

	return stats, true
}

// ActiveStats returns StatsForRange over the active range
func (s *Session) ActiveStats() (RangeStats, bool) {
	r := s.ActiveRange()
	return s.StatsForRange(r.Start, r.End)
}

// Selection returns the current selection, or false when there is none
func (s *Session) Selection() (Range, bool) {
	if s.selection == nil {
		return Range{}, false
	}
	return *s.selection, true
}

// BeginSelection starts a drag selection at t
func (s *Session) BeginSelection(t float64) {
	if !finite(t) {
		return
	}
	t = s.clampToWindow(t)
	s.dragging = true
	s.anchor = t
	s.selection = &Range{Start: t, End: t}
}

// UpdateSelection extends an in-progress selection to t
func (s *Session) UpdateSelection(t float64) {
	if !s.dragging || !finite(t) {
		return
	}
	r := normRange(s.anchor, s.clampToWindow(t))
	s.selection = &r
}

// CommitSelection ends the drag. Selections of one second or less are
// discarded. It reports whether a selection remains.
func (s *Session) CommitSelection() bool {
	s.dragging = false
	if s.selection == nil || s.selection.Span() <= 1 {
		s.selection = nil
		return false
	}
	return true
}

// ClearSelection drops any selection
func (s *Session) ClearSelection() {
	s.dragging = false
	s.selection = nil
}

// Dragging reports whether a selection is in progress
func (s *Session) Dragging() bool { return s.dragging }

// ZoomIn narrows the window to r, clamped to the current window.
// Ranges of one second or less are ignored.
func (s *Session) ZoomIn(r Range) bool {
	if !r.finite() {
		return false
	}
	r = normRange(r.Start, r.End).clamp(s.window)
	if r.Span() <= 1 {
		return false
	}
	s.zoomStack = append(s.zoomStack, s.window)
	s.window = r
	s.ClearSelection()
	return true
}

// ZoomToSelection zooms to the selection. With no usable selection a
// zoomed session resets to the full stream instead.
func (s *Session) ZoomToSelection() bool {
	if s.selection != nil && s.selection.Span() > 1 {
		return s.ZoomIn(*s.selection)
	}
	if s.IsZoomed() {
		s.ResetZoom()
	}
	return false
}

// ZoomOut restores the previous window, or the full stream when the
// zoom stack is empty
func (s *Session) ZoomOut() {
	if len(s.zoomStack) == 0 {
		s.ResetZoom()
		return
	}
	s.window = s.zoomStack[len(s.zoomStack)-1]
	s.zoomStack = s.zoomStack[:len(s.zoomStack)-1]
	s.ClearSelection()
}

// ResetZoom shows the whole stream and empties the zoom stack
func (s *Session) ResetZoom() {
	s.zoomStack = s.zoomStack[:0]
	s.window = Range{Start: 0, End: s.total}
	s.ClearSelection()
}

// NearestSample returns the index and point closest in time to t.
// The earliest sample wins ties.
func (s *Session) NearestSample(t float64) (int, Point) {
	best := 0
	bestDist := math.Abs(s.points[0].T - t)
	for i := 1; i < len(s.points); i++ {
		if d := math.Abs(s.points[i].T - t); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, s.points[best]
}

// VisiblePoints returns the index bounds [lo, hi) of samples inside the window
func (s *Session) VisiblePoints() (lo, hi int) {
	lo = sort.Search(len(s.points), func(i int) bool { return s.points[i].T >= s.window.Start })
	hi = sort.Search(len(s.points), func(i int) bool { return s.points[i].T > s.window.End })
	return lo, hi
}

func (s *Session) clampToWindow(t float64) float64 {
	return math.Max(s.window.Start, math.Min(s.window.End, t))
}
