package strava

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Strava allows 100 requests per 15 minutes and 1000 per day

// window is one fixed rate limit window
type window struct {
	limit    int
	usage    int
	resetsAt time.Time
	next     func(now time.Time) time.Time
}

func (w *window) roll(now time.Time) {
	if now.After(w.resetsAt) {
		w.usage = 0
		w.resetsAt = w.next(now)
	}
}

func (w *window) full() bool { return w.usage >= w.limit }

func fifteenMinutesFrom(now time.Time) time.Time { return now.Add(15 * time.Minute) }
func nextUTCDay(now time.Time) time.Time         { return now.Truncate(24 * time.Hour).Add(24 * time.Hour) }

// RateLimiter paces requests to stay inside Strava's limits
type RateLimiter struct {
	mu          sync.Mutex
	short       window
	daily       window
	minInterval time.Duration
	lastRequest time.Time
	now         func() time.Time
}

// NewRateLimiter creates a limiter with Strava's default limits
func NewRateLimiter() *RateLimiter {
	now := time.Now()
	return &RateLimiter{
		short:       window{limit: 100, resetsAt: fifteenMinutesFrom(now), next: fifteenMinutesFrom},
		daily:       window{limit: 1000, resetsAt: nextUTCDay(now), next: nextUTCDay},
		minInterval: 150 * time.Millisecond,
		now:         time.Now,
	}
}

// Wait blocks until a request may be sent or ctx is done
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		delay := r.reserve()
		if delay <= 0 {
			return nil
		}
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// reserve takes a request slot and returns 0, or returns how long to wait
// before trying again
func (r *RateLimiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.short.roll(now)
	r.daily.roll(now)

	switch {
	case r.daily.full():
		return r.daily.resetsAt.Sub(now)
	case r.short.full():
		return r.short.resetsAt.Sub(now)
	}
	if gap := now.Sub(r.lastRequest); gap < r.minInterval {
		return r.minInterval - gap
	}

	r.short.usage++
	r.daily.usage++
	r.lastRequest = now
	return 0
}

// UpdateFromHeaders syncs usage and limits with Strava's
// X-RateLimit-Usage and X-RateLimit-Limit headers ("short,daily")
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if short, daily, ok := parsePair(h.Get("X-RateLimit-Usage")); ok {
		r.short.usage, r.daily.usage = short, daily
	}
	if short, daily, ok := parsePair(h.Get("X-RateLimit-Limit")); ok {
		r.short.limit, r.daily.limit = short, daily
	}
}

// Status returns the requests left in the short and daily windows
func (r *RateLimiter) Status() (shortRemaining, dailyRemaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.short.limit - r.short.usage, r.daily.limit - r.daily.usage
}

func parsePair(v string) (int, int, bool) {
	a, b, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0, false
	}
	x, err1 := strconv.Atoi(strings.TrimSpace(a))
	y, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return x, y, true
}
