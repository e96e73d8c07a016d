package strava

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClientWithHTTP(srv.Client(), srv.URL)
	c.rateLimiter.minInterval = 0
	return c
}

func TestGetActivities(t *testing.T) {
	after := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/athlete/activities" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("after") != fmt.Sprint(after.Unix()) || q.Get("page") != "2" || q.Get("per_page") != "50" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Header().Set("X-RateLimit-Usage", "10,200")
		w.Header().Set("X-RateLimit-Limit", "100,1000")
		fmt.Fprint(w, `[{"id": 9, "name": "Lunch Ride", "type": "Ride", "sport_type": "GravelRide",
			"moving_time": 3600, "distance": 30000, "average_watts": 185.5}]`)
	})

	got, err := c.GetActivities(context.Background(), after, 2, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 9 || got[0].AverageWatts != 185.5 {
		t.Fatalf("activities = %+v", got)
	}
	if got[0].Sport() != "GravelRide" {
		t.Errorf("Sport() = %q, want GravelRide", got[0].Sport())
	}
	short, daily := c.RateLimitStatus()
	if short != 90 || daily != 800 {
		t.Errorf("RateLimitStatus = %d/%d, want 90/800", short, daily)
	}
}

func TestGetActivityStreams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/activities/9/streams" || r.URL.Query().Get("keys") != StreamKeys {
			t.Errorf("request = %s", r.URL)
		}
		fmt.Fprint(w, `{"time": {"data": [0, 1, 2]}, "heartrate": {"data": [120, 121]}, "watts": {"data": [200, 210, 220]}}`)
	})

	s, err := c.GetActivityStreams(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	if hr := s.Heartrate.At(2); hr != nil {
		t.Errorf("Heartrate.At(2) = %v, want nil for a short stream", *hr)
	}
	if w := s.Watts.At(1); w == nil || *w != 210 {
		t.Errorf("Watts.At(1) = %v, want 210", w)
	}
	if s.Cadence.At(0) != nil {
		t.Error("absent stream should yield nil")
	}
}

func TestGetActivityLaps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lap_index": 1, "name": "Lap 1", "elapsed_time": 600, "distance": 5000, "average_watts": 230}]`)
	})

	laps, err := c.GetActivityLaps(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(laps) != 1 || laps[0].ElapsedTime != 600 || laps[0].AverageWatts != 230 {
		t.Errorf("laps = %+v", laps)
	}
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Authorization Error"}`, http.StatusUnauthorized)
	})

	_, err := c.GetActivities(context.Background(), time.Time{}, 1, PageSize)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("error = %v, want 401 APIError", err)
	}
}

func TestRateLimiterWindows(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiter()
	r.now = func() time.Time { return now }
	r.minInterval = 0
	r.short = window{limit: 2, resetsAt: now.Add(time.Minute), next: fifteenMinutesFrom}

	for range 2 {
		if d := r.reserve(); d != 0 {
			t.Fatalf("reserve() = %v, want 0", d)
		}
	}
	if d := r.reserve(); d != time.Minute {
		t.Errorf("reserve() on full window = %v, want 1m", d)
	}

	now = now.Add(2 * time.Minute)
	if d := r.reserve(); d != 0 {
		t.Errorf("reserve() after reset = %v, want 0", d)
	}
	if short, _ := r.Status(); short != 1 {
		t.Errorf("short remaining = %d, want 1", short)
	}
}

func TestRateLimiterMinInterval(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiter()
	r.now = func() time.Time { return now }

	if d := r.reserve(); d != 0 {
		t.Fatalf("first reserve() = %v", d)
	}
	now = now.Add(50 * time.Millisecond)
	if d := r.reserve(); d != 100*time.Millisecond {
		t.Errorf("reserve() = %v, want 100ms", d)
	}
}

func TestRateLimiterWaitHonoursContext(t *testing.T) {
	r := NewRateLimiter()
	r.short.usage = r.short.limit

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}

func TestUpdateFromHeadersIgnoresGarbage(t *testing.T) {
	r := NewRateLimiter()
	h := http.Header{}
	h.Set("X-RateLimit-Usage", "nope")
	r.UpdateFromHeaders(h)
	if short, daily := r.Status(); short != 100 || daily != 1000 {
		t.Errorf("Status = %d/%d, want untouched 100/1000", short, daily)
	}
}

func TestWindowResets(t *testing.T) {
	now := time.Date(2024, 5, 7, 10, 7, 30, 0, time.UTC)
	if got, want := fifteenMinutesFrom(now), now.Add(15*time.Minute); !got.Equal(want) {
		t.Errorf("fifteenMinutesFrom = %v, want %v", got, want)
	}
	if got, want := nextUTCDay(now), time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("nextUTCDay = %v, want %v", got, want)
	}
}
