// Package ratelimit provides the process-wide request limiter for the market
// data provider. Counters live in fixed-size windows (per minute and per day)
// that reset when the window started at its first request expires.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Window names
const (
	WindowMinute = "minute"
	WindowDay    = "day"
)

// Clock abstracts time for tests
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock
func RealClock() Clock { return realClock{} }

// LimitError reports an exhausted window and when it reopens
type LimitError struct {
	RetryAt time.Time
	Window  string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s window, retry at %s", e.Window, e.RetryAt.Format(time.RFC3339))
}

// Config holds limiter quotas. Zero disables a window.
type Config struct {
	PerMinute int
	PerDay    int
}

type window struct {
	start time.Time
	size  time.Duration
	limit int
	count int
}

func (w *window) roll(now time.Time) {
	if w.start.IsZero() || !now.Before(w.start.Add(w.size)) {
		w.start = now
		w.count = 0
	}
}

func (w *window) full() bool {
	return w.limit > 0 && w.count >= w.limit
}

func (w *window) resetAt() time.Time {
	return w.start.Add(w.size)
}

// Limiter is a fixed-window limiter safe for concurrent use
type Limiter struct {
	clock  Clock
	minute window
	day    window
	mu     sync.Mutex
}

// New creates a limiter. A nil clock uses wall time.
func New(cfg Config, clock Clock) *Limiter {
	if clock == nil {
		clock = RealClock()
	}
	return &Limiter{
		clock:  clock,
		minute: window{size: time.Minute, limit: cfg.PerMinute},
		day:    window{size: 24 * time.Hour, limit: cfg.PerDay},
	}
}

// Allow consumes one request slot, or returns a *LimitError naming the
// exhausted window. The daily window is checked first.
func (l *Limiter) Allow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.minute.roll(now)
	l.day.roll(now)

	if l.day.full() {
		return &LimitError{Window: WindowDay, RetryAt: l.day.resetAt()}
	}
	if l.minute.full() {
		return &LimitError{Window: WindowMinute, RetryAt: l.minute.resetAt()}
	}

	l.minute.count++
	l.day.count++
	return nil
}

// Wait blocks until a slot is available. It returns immediately with the
// *LimitError when the daily quota is spent, and ctx.Err() on cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		err := l.Allow()
		if err == nil {
			return nil
		}
		limitErr, ok := err.(*LimitError)
		if !ok || limitErr.Window == WindowDay {
			return err
		}

		delay := limitErr.RetryAt.Sub(l.clock.Now())
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(delay):
		}
	}
}

// Remaining returns the requests left in the current minute and day windows
func (l *Limiter) Remaining() (minute, day int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	return l.minute.remaining(now), l.day.remaining(now)
}

// remaining reports -1 for a disabled window
func (w *window) remaining(now time.Time) int {
	if w.limit <= 0 {
		return -1
	}
	if w.start.IsZero() || !now.Before(w.resetAt()) {
		return w.limit
	}
	return w.limit - w.count
}
