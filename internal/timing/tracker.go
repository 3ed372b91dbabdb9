// Package timing measures wall-clock run time with paused intervals
// excluded, and derives a completion estimate from item throughput.
package timing

import (
	"sync"
	"time"
)

// Tracker accumulates elapsed processing time across pause/resume cycles.
// Elapsed time is always now - start - accumulated pause, so the reading
// freezes while paused and resumes from the frozen value, never jumping.
type Tracker struct {
	mu sync.Mutex

	now func() time.Time

	runStart    time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
}

// NewTracker builds a tracker on the given clock. A nil now falls back to
// time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Start marks the beginning of a fresh run, clearing any previous state.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.runStart = t.now()
	t.pausedAt = time.Time{}
	t.pausedTotal = 0
}

// OnPause records the instant the run paused. Elapsed readings freeze here.
func (t *Tracker) OnPause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runStart.IsZero() || !t.pausedAt.IsZero() {
		return
	}
	t.pausedAt = t.now()
}

// OnResume folds the completed pause interval into the accumulated total.
// The run start is left untouched; elapsed readings continue from the value
// frozen at OnPause.
func (t *Tracker) OnResume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pausedAt.IsZero() {
		return
	}
	t.pausedTotal += t.now().Sub(t.pausedAt)
	t.pausedAt = time.Time{}
}

// Reset clears all timing state. Called when the run returns to IDLE.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.runStart = time.Time{}
	t.pausedAt = time.Time{}
	t.pausedTotal = 0
}

// Elapsed returns processing time excluding pauses: zero before the first
// Start and after Reset, frozen while paused.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runStart.IsZero() {
		return 0
	}
	ref := t.now()
	if !t.pausedAt.IsZero() {
		ref = t.pausedAt
	}
	return ref.Sub(t.runStart) - t.pausedTotal
}

// ETA extrapolates remaining time from per-item throughput. The second
// return is false while no item has been processed yet.
func (t *Tracker) ETA(processed, total int) (time.Duration, bool) {
	if processed <= 0 {
		return 0, false
	}
	remaining := total - processed
	if remaining < 0 {
		remaining = 0
	}
	perItem := t.Elapsed() / time.Duration(processed)
	return perItem * time.Duration(remaining), true
}
