package orchestrator

import "sync/atomic"

// counters tracks per-run outcomes. Reset when a fresh run starts and when
// a run stops, never on resume.
type counters struct {
	processed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

func (c *counters) reset() {
	c.processed.Store(0)
	c.failed.Store(0)
	c.skipped.Store(0)
}

func (c *counters) snapshot() (processed, failed, skipped int) {
	return int(c.processed.Load()), int(c.failed.Load()), int(c.skipped.Load())
}
