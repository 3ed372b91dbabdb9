package timing

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func TestElapsedAcrossPauseResume(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(clock.now)

	tr.Start()
	clock.advance(10 * time.Second)
	if got := tr.Elapsed(); got != 10*time.Second {
		t.Fatalf("elapsed before pause = %s, want 10s", got)
	}

	tr.OnPause()
	clock.advance(30 * time.Second)
	if got := tr.Elapsed(); got != 10*time.Second {
		t.Fatalf("elapsed while paused = %s, want frozen 10s", got)
	}

	tr.OnResume()
	if got := tr.Elapsed(); got != 10*time.Second {
		t.Fatalf("elapsed immediately after resume = %s, want 10s", got)
	}

	clock.advance(10 * time.Second)
	if got := tr.Elapsed(); got != 20*time.Second {
		t.Fatalf("elapsed 10s after resume = %s, want 20s", got)
	}
}

func TestElapsedAccumulatesMultiplePauses(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(clock.now)

	tr.Start()
	clock.advance(5 * time.Second)
	tr.OnPause()
	clock.advance(1 * time.Minute)
	tr.OnResume()
	clock.advance(5 * time.Second)
	tr.OnPause()
	clock.advance(2 * time.Minute)
	tr.OnResume()
	clock.advance(5 * time.Second)

	if got := tr.Elapsed(); got != 15*time.Second {
		t.Fatalf("elapsed = %s, want 15s", got)
	}
}

func TestElapsedZeroWhenIdle(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(clock.now)

	if got := tr.Elapsed(); got != 0 {
		t.Fatalf("elapsed before start = %s, want 0", got)
	}

	tr.Start()
	clock.advance(42 * time.Second)
	tr.Reset()
	if got := tr.Elapsed(); got != 0 {
		t.Fatalf("elapsed after reset = %s, want 0", got)
	}
}

func TestStartClearsPreviousRun(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(clock.now)

	tr.Start()
	clock.advance(10 * time.Second)
	tr.OnPause()
	clock.advance(10 * time.Second)

	tr.Start()
	clock.advance(3 * time.Second)
	if got := tr.Elapsed(); got != 3*time.Second {
		t.Fatalf("elapsed after restart = %s, want 3s", got)
	}
}

func TestPauseResumeAreIdempotent(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(clock.now)

	tr.OnResume() // resume with no pause pending
	tr.Start()
	clock.advance(4 * time.Second)
	tr.OnPause()
	clock.advance(6 * time.Second)
	tr.OnPause() // second pause keeps the first freeze point
	clock.advance(6 * time.Second)
	tr.OnResume()
	tr.OnResume()
	clock.advance(1 * time.Second)

	if got := tr.Elapsed(); got != 5*time.Second {
		t.Fatalf("elapsed = %s, want 5s", got)
	}
}

func TestETA(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(clock.now)

	if _, ok := tr.ETA(0, 5); ok {
		t.Fatal("ETA must be unknown before anything is processed")
	}

	tr.Start()
	clock.advance(20 * time.Second)

	eta, ok := tr.ETA(2, 5)
	if !ok {
		t.Fatal("ETA should be known with processed > 0")
	}
	if eta != 30*time.Second {
		t.Fatalf("eta = %s, want 30s", eta)
	}

	eta, ok = tr.ETA(5, 5)
	if !ok || eta != 0 {
		t.Fatalf("eta at completion = %s (known=%v), want 0s", eta, ok)
	}
}
