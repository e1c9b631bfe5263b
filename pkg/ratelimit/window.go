package ratelimit

import (
	"time"

	"github.com/kandriws/authcore/pkg/config"
)

// Threshold is one rung of the lockout ladder: once Attempts failed attempts
// accumulate, the window locks for Lock.
type Threshold = config.Threshold

// Window tracks failed attempts against a tiered threshold ladder. It is a
// value computed per request from persisted counters; stores rehydrate it,
// mutate it through the methods below, and persist the result.
type Window struct {
	Thresholds  []Threshold
	Count       int
	WindowStart time.Time
	WindowEnd   time.Time
}

// NewWindow creates an empty window over the given ladder. Thresholds must be
// sorted ascending by attempts (config parsing enforces this).
func NewWindow(thresholds []Threshold) *Window {
	return &Window{Thresholds: thresholds}
}

// IsActive reports whether now falls inside [WindowStart, WindowEnd).
// While active the window represents an enforced lockout.
func (w *Window) IsActive(now time.Time) bool {
	if w.WindowStart.IsZero() || w.WindowEnd.IsZero() {
		return false
	}
	return !now.Before(w.WindowStart) && now.Before(w.WindowEnd)
}

// RegisterAttemptAndBlockIfLimitReached counts one failed attempt and locks
// the window when a threshold is crossed. No-op while the window is active.
func (w *Window) RegisterAttemptAndBlockIfLimitReached(now time.Time) {
	if w.IsActive(now) {
		return
	}
	w.Count++
	w.BlockIfNeeded(now)
}

// BlockIfNeeded evaluates the current count against the ladder without
// incrementing. Used when the increment already happened atomically at the
// storage layer.
func (w *Window) BlockIfNeeded(now time.Time) {
	threshold := w.applicableThreshold()
	if threshold.Attempts == 0 {
		return
	}
	if w.Count >= threshold.Attempts {
		w.WindowStart = now
		w.WindowEnd = now.Add(threshold.Lock)
	}
}

// RemainingAttempts returns how many attempts are left before the next lock
func (w *Window) RemainingAttempts() int {
	threshold := w.applicableThreshold()
	remaining := threshold.Attempts - w.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter returns how long until an active lockout expires, zero otherwise
func (w *Window) RetryAfter(now time.Time) time.Duration {
	if !w.IsActive(now) {
		return 0
	}
	return w.WindowEnd.Sub(now)
}

// applicableThreshold returns the first rung whose attempt limit is not yet
// below the count; counts beyond the ladder stay pinned to the highest rung.
func (w *Window) applicableThreshold() Threshold {
	if len(w.Thresholds) == 0 {
		return Threshold{}
	}
	for _, t := range w.Thresholds {
		if t.Attempts >= w.Count {
			return t
		}
	}
	return w.Thresholds[len(w.Thresholds)-1]
}
